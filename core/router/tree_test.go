package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func body(s string) Handler {
	return func() (string, error) { return s, nil }
}

// resolve looks up path and runs the handler, returning its body
func resolve(t *testing.T, tree *Tree, path string) (string, error) {
	t.Helper()
	h, err := tree.Lookup(path)
	if err != nil {
		return "", err
	}
	return h()
}

// TestTreeBasic tests basic static routing
func TestTreeBasic(t *testing.T) {
	tree := NewTree()
	tree.Insert("/", body("root"))
	tree.Insert("/hello", body("hello"))
	tree.Insert("/hello/world", body("world"))

	tests := []struct {
		path        string
		shouldMatch bool
		want        string
	}{
		{"/", true, "root"},
		{"/hello", true, "hello"},
		{"/hello/world", true, "world"},
		{"/notfound", false, ""},
		{"/hello/world/deeper", false, ""},
		{"/hell", false, ""},
	}

	for _, tt := range tests {
		got, err := resolve(t, tree, tt.path)
		if tt.shouldMatch {
			require.NoError(t, err, tt.path)
			assert.Equal(t, tt.want, got, tt.path)
		} else {
			assert.ErrorIs(t, err, ErrNoRoute, tt.path)
		}
	}
	assert.Equal(t, 3, tree.Len())
}

func TestTreeTrailingSlash(t *testing.T) {
	t.Run("insert without, lookup with", func(t *testing.T) {
		tree := NewTree()
		tree.Insert("/echo", body("echo"))

		got, err := resolve(t, tree, "/echo/")
		require.NoError(t, err)
		assert.Equal(t, "echo", got)
	})

	t.Run("insert with, lookup without", func(t *testing.T) {
		tree := NewTree()
		tree.Insert("/echo/", body("echo"))

		got, err := resolve(t, tree, "/echo")
		require.NoError(t, err)
		assert.Equal(t, "echo", got)
	})

	t.Run("repeated slashes", func(t *testing.T) {
		tree := NewTree()
		tree.Insert("//a///b", body("ab"))

		got, err := resolve(t, tree, "/a/b/")
		require.NoError(t, err)
		assert.Equal(t, "ab", got)
	})
}

func TestTreeRoot(t *testing.T) {
	tree := NewTree()

	_, err := tree.Lookup("/")
	assert.ErrorIs(t, err, ErrNoRoute, "root without a handler must not resolve")

	tree.Insert("/", body("root"))

	got, err := resolve(t, tree, "/")
	require.NoError(t, err)
	assert.Equal(t, "root", got)

	_, err = tree.Lookup("/anything")
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestTreePrefixDoesNotBleed(t *testing.T) {
	tree := NewTree()
	tree.Insert("/echo", body("echo"))
	tree.Insert("/echo/2", body("echo2"))

	got, err := resolve(t, tree, "/echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", got)

	got, err = resolve(t, tree, "/echo/2")
	require.NoError(t, err)
	assert.Equal(t, "echo2", got)

	_, err = tree.Lookup("/echo/3")
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestTreeIntermediateNodeHasNoHandler(t *testing.T) {
	tree := NewTree()
	tree.Insert("/a/b/c", body("abc"))

	for _, path := range []string{"/a", "/a/b", "/"} {
		_, err := tree.Lookup(path)
		assert.ErrorIs(t, err, ErrNoRoute, path)
	}

	// A shorter path inserted later gives the intermediate node a handler
	tree.Insert("/a/b", body("ab"))
	got, err := resolve(t, tree, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, "ab", got)

	got, err = resolve(t, tree, "/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestTreeLastInsertWins(t *testing.T) {
	tree := NewTree()
	tree.Insert("/dup", body("first"))
	tree.Insert("/dup/", body("second"))

	got, err := resolve(t, tree, "/dup")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
	assert.Equal(t, 1, tree.Len())
}

func TestTreeSegmentsMatchWhole(t *testing.T) {
	tree := NewTree()
	tree.Insert("/user/admin", body("admin"))
	tree.Insert("/user/administrator", body("administrator"))

	got, err := resolve(t, tree, "/user/admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", got)

	got, err = resolve(t, tree, "/user/administrator")
	require.NoError(t, err)
	assert.Equal(t, "administrator", got)

	_, err = tree.Lookup("/user/adm")
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestTreePaths(t *testing.T) {
	tree := NewTree()
	tree.Insert("/echo", body(""))
	tree.Insert("/", body(""))
	tree.Insert("/echo/2", body(""))
	tree.Insert("/sleep", body(""))

	assert.Equal(t, []string{"/", "/echo", "/echo/2", "/sleep"}, tree.Paths())
}

// Benchmarks
func BenchmarkTreeLookup(b *testing.B) {
	tree := NewTree()
	tree.Insert("/hello/world", body("hello"))
	tree.Insert("/hello/there", body("there"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tree.Lookup("/hello/world")
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"//", "/"},
		{"/echo", "/echo"},
		{"/echo/", "/echo"},
		{"//echo", "/echo"},
		{"///echo///", "/echo"},
		{"/echo//2/", "/echo/2"},
		{"echo/2", "/echo/2"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPath(tt.path))
		})
	}

	// Every cleaned form resolves to the same node as the raw path
	tree := NewTree()
	tree.Insert("/echo/2", body("echo 2"))
	got, err := resolve(t, tree, CleanPath("//echo///2//"))
	require.NoError(t, err)
	assert.Equal(t, "echo 2", got)
}
