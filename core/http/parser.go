package http

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrInvalidRequest = errors.New("invalid HTTP request")
	ErrLineTooLong    = errors.New("request line too long")
)

// MaxRequestLine bounds how much ReadRequestLine buffers before giving up
const MaxRequestLine = 8 * 1024

// RequestLine is the method and path extracted from the first request line
type RequestLine struct {
	Method string
	Path   string
	Proto  string
	Query  string
}

// ParseRequestLine splits "METHOD PATH [PROTO]" on single spaces. A line with
// fewer than two tokens is ErrInvalidRequest. The query string is split off
// the path.
func ParseRequestLine(line string) (RequestLine, error) {
	line = strings.TrimRight(line, "\r\n")

	parts := strings.Split(line, " ")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RequestLine{}, fmt.Errorf("%w: %q", ErrInvalidRequest, line)
	}

	req := RequestLine{
		Method: parts[0],
		Path:   parts[1],
	}
	if len(parts) > 2 {
		req.Proto = parts[2]
	}

	if idx := strings.IndexByte(req.Path, '?'); idx != -1 {
		req.Query = req.Path[idx+1:]
		req.Path = req.Path[:idx]
	}

	return req, nil
}

// ReadRequestLine reads and parses one line from r. It returns io.EOF
// unchanged when the peer closed the stream before sending anything.
func ReadRequestLine(r *bufio.Reader) (RequestLine, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				break
			}
			return RequestLine{}, err
		}

		sb.Write(chunk)
		if sb.Len() > MaxRequestLine {
			return RequestLine{}, ErrLineTooLong
		}
		if !isPrefix {
			break
		}
	}

	return ParseRequestLine(sb.String())
}
