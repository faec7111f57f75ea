/*
Package segserve is a small concurrent request-serving core: a fixed-size
worker pool paired with a segment-tree router.

Each accepted TCP connection becomes one pool task. The task reads a single
request line, resolves METHOD and PATH through the router, runs the handler and
writes a framed response before closing the connection.

Quick Start

Basic usage example:

package main

import (
    "context"

    "github.com/searchktools/segserve/app"
    "github.com/searchktools/segserve/config"
)

func main() {
    cfg := config.Default()
    application, _ := app.New(cfg)

    r := application.Router()
    r.GET("/hello", func() (string, error) {
        return "Hello, World!", nil
    })

    application.Run(context.Background())
}

Modules

  - app: Application lifecycle and graceful shutdown
  - config: Configuration from defaults, file, SEGSERVE_* env and flags
  - logs: Process logger (console plus optional rotated JSON file)
  - core: TCP server, per-connection handling, statistics
  - core/http: Request line parsing and response framing
  - core/router: Per-method dispatch trees keyed by path segment
  - core/pools: Worker pool and response buffer pool
  - core/observability: Per-route dispatch metrics

Routing

Paths are split on '/' and empty segments are dropped, so "/echo/" and "/echo"
are the same route and "/" is the root. Segments match whole strings; there
are no parameters or wildcards. Routes are registered before serving starts;
the server seals the router when it begins accepting connections.

Responses

A successful dispatch is written as

	HTTP/1.1 200 OK\r\nContent-Length: <n>\r\n\r\n<body>

Unknown paths get 404, methods without routes get 405, handler errors get 500,
unparseable request lines get 400 and clients that send nothing before the read
timeout get 408.
*/
package segserve
