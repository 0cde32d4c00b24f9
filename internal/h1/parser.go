// Package h1 implements the HTTP/1.1 wire surface: request-head parsing,
// Range decoding, and response serialization with incremental body writes.
package h1

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Request is a parsed HTTP/1.1 request head.
type Request struct {
	Method  string
	Path    string
	Version string

	headers map[string]string
}

// Header returns the value of the named header. Lookup is ASCII
// case-insensitive; when a header is repeated the last value wins.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.headers[strings.ToLower(name)]
	return v, ok
}

// ParseRequest decodes a request head (everything before the blank line).
// The head must be valid UTF-8; the request line must carry method, path and
// an HTTP/1.0 or HTTP/1.1 version. Header names are folded to lower case.
func ParseRequest(head []byte) (*Request, error) {
	if !utf8.Valid(head) {
		return nil, fmt.Errorf("request head is not valid text")
	}

	lines := strings.Split(string(head), "\r\n")
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid request line")
	}
	req := &Request{
		Method:  parts[0],
		Path:    parts[1],
		Version: parts[2],
		headers: make(map[string]string, len(lines)),
	}
	if req.Version != "HTTP/1.1" && req.Version != "HTTP/1.0" {
		return nil, fmt.Errorf("unsupported HTTP version: %s", req.Version)
	}
	if req.Method == "" || req.Path == "" {
		return nil, fmt.Errorf("invalid request line")
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon == -1 {
			return nil, fmt.Errorf("invalid header line")
		}
		name := strings.ToLower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])
		req.headers[name] = value
	}

	return req, nil
}
