package http

import (
	"io"
	"strconv"

	"github.com/searchktools/segserve/core/pools"
)

// Status codes written by the server
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusRequestTimeout      = 408
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusInternalServerError = 500
)

// StatusText returns the reason phrase for a status code
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusRequestTimeout:
		return "Request Timeout"
	case StatusNotFound:
		return "Not Found"
	case StatusMethodNotAllowed:
		return "Method Not Allowed"
	case StatusInternalServerError:
		return "Internal Server Error"
	}
	return "Unknown"
}

// AppendResponse appends a framed response to dst:
//
//	HTTP/1.1 <code> <reason>\r\nContent-Length: <n>\r\n\r\n<body>
func AppendResponse(dst []byte, code int, body string) []byte {
	dst = append(dst, "HTTP/1.1 "...)
	dst = strconv.AppendInt(dst, int64(code), 10)
	dst = append(dst, ' ')
	dst = append(dst, StatusText(code)...)
	dst = append(dst, "\r\nContent-Length: "...)
	dst = strconv.AppendInt(dst, int64(len(body)), 10)
	dst = append(dst, "\r\n\r\n"...)
	dst = append(dst, body...)
	return dst
}

// WriteResponse writes a 200 response carrying body
func WriteResponse(w io.Writer, body string) error {
	return writeFramed(w, StatusOK, body)
}

// WriteError writes an error status with its reason phrase as the body
func WriteError(w io.Writer, code int) error {
	return writeFramed(w, code, StatusText(code))
}

func writeFramed(w io.Writer, code int, body string) error {
	buf := pools.AcquireBuffer(len(body) + 64)
	defer pools.ReleaseBuffer(buf)

	*buf = AppendResponse(*buf, code, body)
	_, err := w.Write(*buf)
	return err
}
