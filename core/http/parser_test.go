package http

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		line    string
		want    RequestLine
		wantErr bool
	}{
		{"GET / HTTP/1.1\r\n", RequestLine{Method: "GET", Path: "/", Proto: "HTTP/1.1"}, false},
		{"POST /echo/2 HTTP/1.1", RequestLine{Method: "POST", Path: "/echo/2", Proto: "HTTP/1.1"}, false},
		{"GET /echo", RequestLine{Method: "GET", Path: "/echo"}, false},
		{"GET /search?q=go&page=2 HTTP/1.0", RequestLine{Method: "GET", Path: "/search", Proto: "HTTP/1.0", Query: "q=go&page=2"}, false},
		{"GET", RequestLine{}, true},
		{"", RequestLine{}, true},
		{"GET  /double-space", RequestLine{}, true},
		{" /leading-space", RequestLine{}, true},
	}

	for _, tt := range tests {
		got, err := ParseRequestLine(tt.line)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidRequest, "line %q", tt.line)
			continue
		}
		require.NoError(t, err, "line %q", tt.line)
		assert.Equal(t, tt.want, got)
	}
}

func TestReadRequestLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("GET /sleep HTTP/1.1\r\nHost: localhost\r\n\r\n"))

	req, err := ReadRequestLine(r)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/sleep", req.Path)
}

func TestReadRequestLine_NoNewline(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("POST /submit"))

	req, err := ReadRequestLine(r)
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/submit", req.Path)
}

func TestReadRequestLine_EmptyStream(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(""))

	_, err := ReadRequestLine(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRequestLine_TooLong(t *testing.T) {
	line := "GET /" + strings.Repeat("a", MaxRequestLine*2) + " HTTP/1.1\r\n"
	r := bufio.NewReaderSize(strings.NewReader(line), 1024)

	_, err := ReadRequestLine(r)
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, "no sleep"))
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 8\r\n\r\nno sleep", buf.String())
}

func TestWriteResponse_MultibyteLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, "héllo"))
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\nhéllo", buf.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{StatusNotFound, "HTTP/1.1 404 Not Found\r\nContent-Length: 9\r\n\r\nNot Found"},
		{StatusMethodNotAllowed, "HTTP/1.1 405 Method Not Allowed\r\nContent-Length: 18\r\n\r\nMethod Not Allowed"},
		{StatusBadRequest, "HTTP/1.1 400 Bad Request\r\nContent-Length: 11\r\n\r\nBad Request"},
		{StatusRequestTimeout, "HTTP/1.1 408 Request Timeout\r\nContent-Length: 15\r\n\r\nRequest Timeout"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		require.NoError(t, WriteError(&buf, tt.code))
		assert.Equal(t, tt.want, buf.String())
	}
}

func BenchmarkAppendResponse(b *testing.B) {
	dst := make([]byte, 0, 256)
	for i := 0; i < b.N; i++ {
		dst = AppendResponse(dst[:0], StatusOK, "Hello, World!")
	}
}
