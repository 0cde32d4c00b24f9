package h1

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// writeChunkSize bounds the work done by a single WriteChunk call so that a
// multi-megabyte transfer makes incremental progress across many readiness
// iterations instead of monopolizing the loop.
const writeChunkSize = 64 << 10

var crlf = []byte("\r\n")

// Response is a pending HTTP response: a status, ordered headers, and an
// optional body source (an in-memory buffer or an open file) with a read
// cursor. Headers are serialized and written in full before any body byte.
type Response struct {
	Status  int
	headers [][2]string

	str       []byte
	file      *os.File
	cursor    int64
	remaining int64

	scratch []byte
}

// NewResponse creates a response with the given status and no headers.
func NewResponse(status int) *Response {
	return &Response{Status: status, remaining: -1}
}

// Limit caps the number of body bytes WriteChunk will emit. A range response
// must stop short of the file's end even though the source has more bytes.
func (r *Response) Limit(n int64) {
	r.remaining = n
}

// AddHeader appends a header. Order is preserved on the wire.
func (r *Response) AddHeader(name, value string) {
	r.headers = append(r.headers, [2]string{name, value})
}

// SetContentLength adds a Content-Length header.
func (r *Response) SetContentLength(n int64) {
	r.AddHeader("Content-Length", strconv.FormatInt(n, 10))
}

// SetStringBody attaches an in-memory body.
func (r *Response) SetStringBody(s string) {
	r.str = []byte(s)
}

// SetFileBody attaches an open file as the body source. The response takes
// ownership and closes it when the body is cleared or the response is closed.
func (r *Response) SetFileBody(f *os.File) {
	r.file = f
}

// Seek positions the body read cursor, for serving a byte range.
func (r *Response) Seek(offset int64) {
	r.cursor = offset
}

// ClearBody drops the body source while keeping status and headers. Used for
// HEAD, after the headers (with their Content-Length) are committed.
func (r *Response) ClearBody() {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
	r.str = nil
}

// Close releases the body source.
func (r *Response) Close() {
	r.ClearBody()
}

// HeadBytes serializes the status line and headers, terminated by the blank
// line.
func (r *Response) HeadBytes() []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(r.Status), 10)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(r.Status)...)
	buf = append(buf, crlf...)
	for _, h := range r.headers {
		buf = append(buf, h[0]...)
		buf = append(buf, ": "...)
		buf = append(buf, h[1]...)
		buf = append(buf, crlf...)
	}
	buf = append(buf, crlf...)
	return buf
}

// WriteHead serializes and writes the full header block to fd synchronously.
func (r *Response) WriteHead(fd int) error {
	return writeFull(fd, r.HeadBytes())
}

// WriteChunk performs one bounded write of body bytes from the current
// cursor. It returns the number of bytes written and whether the body source
// is exhausted. A short write advances the cursor partially; the caller
// retries on the next writable event.
func (r *Response) WriteChunk(fd int) (int, bool, error) {
	if r.remaining == 0 {
		return 0, true, nil
	}
	var chunk []byte
	switch {
	case r.file != nil:
		if r.scratch == nil {
			r.scratch = make([]byte, writeChunkSize)
		}
		n, err := r.file.ReadAt(r.scratch, r.cursor)
		if n == 0 {
			if err != nil && err != io.EOF {
				return 0, false, err
			}
			return 0, true, nil
		}
		// err is io.EOF on the final partial chunk; the bytes still count.
		chunk = r.scratch[:n]
	case r.str != nil:
		if r.cursor >= int64(len(r.str)) {
			return 0, true, nil
		}
		end := r.cursor + writeChunkSize
		if end > int64(len(r.str)) {
			end = int64(len(r.str))
		}
		chunk = r.str[r.cursor:end]
	default:
		return 0, true, nil
	}
	if r.remaining > 0 && int64(len(chunk)) > r.remaining {
		chunk = chunk[:r.remaining]
	}

	written, err := unix.Write(fd, chunk)
	if err == unix.EAGAIN || err == unix.EINTR {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	r.cursor += int64(written)
	if r.remaining > 0 {
		r.remaining -= int64(written)
	}
	return written, r.remaining == 0, nil
}

var continueLine = []byte("HTTP/1.1 100 Continue\r\n\r\n")

// WriteContinue writes an interim 100 Continue line to fd synchronously.
func WriteContinue(fd int) error {
	return writeFull(fd, continueLine)
}

// writeFull writes b to fd in its entirety, waiting for writability when the
// socket buffer fills. Header blocks are small, so this cannot stall the
// loop for longer than the peer takes to drain a few hundred bytes.
func writeFull(fd int, b []byte) error {
	for len(b) > 0 {
		n, err := unix.Write(fd, b)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			if err := pollWritable(fd); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func pollWritable(fd int) error {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// StatusText returns the reason phrase for the status codes this server
// emits.
func StatusText(code int) string {
	switch code {
	case 100:
		return "Continue"
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 206:
		return "Partial Content"
	case 301:
		return "Moved Permanently"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Payload Too Large"
	case 422:
		return "Unprocessable Entity"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 503:
		return "Service Unavailable"
	default:
		return fmt.Sprintf("Status %d", code)
	}
}
