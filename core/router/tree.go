package router

import "strings"

// Handler produces a response body or fails
type Handler func() (string, error)

// Tree is a per-method dispatch tree keyed by '/'-delimited path segments.
// Segments are matched whole; nodes are never split or merged.
type Tree struct {
	root *node
	size int
}

type node struct {
	key      string
	handler  Handler
	children []*node
}

// NewTree creates an empty tree whose root stands for "/"
func NewTree() *Tree {
	return &Tree{
		root: &node{key: "/"},
	}
}

// splitPath normalizes a path into its non-empty segments. Leading, trailing
// and repeated slashes produce no segments, so "/" is zero segments and
// "/echo/" equals "/echo".
func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/'
	})
}

// CleanPath returns the canonical form of path as the tree sees it: segments
// joined by single slashes with a leading slash, "/" for the root.
func CleanPath(path string) string {
	return "/" + strings.Join(splitPath(path), "/")
}

// Insert binds handler to path, creating intermediate nodes as needed.
// A second insert at the same path replaces the first handler.
func (t *Tree) Insert(path string, handler Handler) {
	n := t.root
	for _, seg := range splitPath(path) {
		child := n.child(seg)
		if child == nil {
			child = &node{key: seg}
			n.children = append(n.children, child)
		}
		n = child
	}

	if n.handler == nil {
		t.size++
	}
	n.handler = handler
}

// Lookup finds the handler registered at exactly path
func (t *Tree) Lookup(path string) (Handler, error) {
	n := t.root
	for _, seg := range splitPath(path) {
		n = n.child(seg)
		if n == nil {
			return nil, ErrNoRoute
		}
	}

	if n.handler == nil {
		return nil, ErrNoRoute
	}
	return n.handler, nil
}

// Len returns the number of paths with a handler
func (t *Tree) Len() int {
	return t.size
}

// Paths returns every routed path in depth-first insertion order
func (t *Tree) Paths() []string {
	paths := make([]string, 0, t.size)

	type frame struct {
		n      *node
		prefix string
	}
	stack := []frame{{n: t.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.n.handler != nil {
			if f.prefix == "" {
				paths = append(paths, "/")
			} else {
				paths = append(paths, f.prefix)
			}
		}

		// Push in reverse so the first child is visited first
		for i := len(f.n.children) - 1; i >= 0; i-- {
			c := f.n.children[i]
			stack = append(stack, frame{n: c, prefix: f.prefix + "/" + c.key})
		}
	}
	return paths
}

// child scans the children linearly; fan-out per node is small
func (n *node) child(key string) *node {
	for _, c := range n.children {
		if c.key == key {
			return c
		}
	}
	return nil
}
