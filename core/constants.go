package core

import "errors"

// Error definitions
var (
	ErrServerClosed  = errors.New("server closed")
	ErrServerRunning = errors.New("server already serving")
)

// unmatchedRoute is the monitor key for requests that resolved to no handler
const unmatchedRoute = "<unmatched>"
