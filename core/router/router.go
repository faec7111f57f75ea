package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Method is a request method the router can dispatch on
type Method string

// Supported methods. The set is closed.
const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

var (
	// ErrNoRoute means no handler is bound to the requested path
	ErrNoRoute = errors.New("no route available")
	// ErrMethodNotSupported wraps ErrNoRoute so callers that do not care
	// about the distinction can test for ErrNoRoute alone
	ErrMethodNotSupported = fmt.Errorf("method not supported: %w", ErrNoRoute)
	ErrRouterSealed       = errors.New("router is sealed")
	ErrInvalidPath        = errors.New("path must begin with '/'")
	ErrNilHandler         = errors.New("nil handler")
)

// Supported reports whether m belongs to the closed method set
func (m Method) Supported() bool {
	switch m {
	case MethodGet, MethodPost:
		return true
	}
	return false
}

// Route is a (method, path) binding reported by Routes
type Route struct {
	Method Method
	Path   string
}

// Router holds one dispatch tree per method.
//
// Routes are registered during startup and the router is then sealed. Dispatch
// does not lock: concurrent Dispatch calls are safe only once registration has
// finished, which Seal enforces by rejecting later registrations.
type Router struct {
	trees  map[Method]*Tree
	sealed atomic.Bool
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{
		trees: make(map[Method]*Tree, 2),
	}
}

// RegisterRoute binds handler to (method, path). The method's tree is created
// on first use. Last registration for an identical (method, path) wins.
func (r *Router) RegisterRoute(method Method, path string, handler Handler) error {
	if r.sealed.Load() {
		return fmt.Errorf("%w: %s %s", ErrRouterSealed, method, path)
	}
	if !method.Supported() {
		return fmt.Errorf("%w: %q", ErrMethodNotSupported, string(method))
	}
	if path == "" || path[0] != '/' {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if handler == nil {
		return fmt.Errorf("%w: %s %s", ErrNilHandler, method, path)
	}

	tree, ok := r.trees[method]
	if !ok {
		tree = NewTree()
		r.trees[method] = tree
	}
	tree.Insert(path, handler)
	return nil
}

// GET registers a GET route
func (r *Router) GET(path string, handler Handler) error {
	return r.RegisterRoute(MethodGet, path, handler)
}

// POST registers a POST route
func (r *Router) POST(path string, handler Handler) error {
	return r.RegisterRoute(MethodPost, path, handler)
}

// Seal ends the registration phase
func (r *Router) Seal() {
	r.sealed.Store(true)
}

// Sealed reports whether Seal has been called
func (r *Router) Sealed() bool {
	return r.sealed.Load()
}

// Lookup resolves (method, path) to its handler without invoking it
func (r *Router) Lookup(method Method, path string) (Handler, error) {
	tree, ok := r.trees[method]
	if !ok {
		return nil, ErrMethodNotSupported
	}
	return tree.Lookup(path)
}

// Dispatch resolves (method, path) and invokes the handler. A handler error is
// returned exactly as the handler produced it.
func (r *Router) Dispatch(method Method, path string) (string, error) {
	h, err := r.Lookup(method, path)
	if err != nil {
		return "", err
	}
	return h()
}

// Routes lists every registered route sorted by method then path
func (r *Router) Routes() []Route {
	var routes []Route
	for method, tree := range r.trees {
		for _, p := range tree.Paths() {
			routes = append(routes, Route{Method: method, Path: p})
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Method != routes[j].Method {
			return routes[i].Method < routes[j].Method
		}
		return strings.Compare(routes[i].Path, routes[j].Path) < 0
	})
	return routes
}
