// Package mux owns the listening socket and the connection table: a
// single-threaded readiness-polling loop that drives every connection through
// an explicit protocol state machine, one bounded I/O operation per ready
// descriptor per iteration.
package mux

import (
	"github.com/48ca/hypershare/internal/h1"
	"github.com/48ca/hypershare/internal/upload"
	"golang.org/x/sys/unix"
)

// headerBufSize bounds a request head. A head that does not fit is answered
// with 431 and the connection is closed.
const headerBufSize = 4096

type connState int

const (
	stateReadingRequest connState = iota
	stateReadingPostBody
	stateWritingResponse
	stateClosing
)

func (s connState) String() string {
	switch s {
	case stateReadingRequest:
		return "reading-request"
	case stateReadingPostBody:
		return "reading-post-body"
	case stateWritingResponse:
		return "writing-response"
	case stateClosing:
		return "closing"
	}
	return "unknown"
}

// Connection is one accepted socket and everything the loop knows about it.
// A connection is reset, not destroyed, between keep-alive requests: the
// request/response state clears while the socket and counters survive.
type Connection struct {
	fd   int
	peer string

	state connState

	buf       [headerBufSize]byte
	bytesRead int
	bodyStart int

	upload *upload.Parser
	resp   *h1.Response

	lastMethod  string
	lastPath    string
	numRequests int
	keepAlive   bool

	bytesRequested int64
	bytesSent      int64
}

func newConnection(fd int, peer string) *Connection {
	return &Connection{fd: fd, peer: peer, state: stateReadingRequest}
}

// reset prepares the connection for the next keep-alive request.
func (c *Connection) reset() {
	c.state = stateReadingRequest
	c.bytesRead = 0
	c.bodyStart = 0
	if c.upload != nil {
		c.upload.Close()
		c.upload = nil
	}
	if c.resp != nil {
		c.resp.Close()
		c.resp = nil
	}
	c.bytesRequested = 0
	c.bytesSent = 0
	c.keepAlive = false
}

// close releases everything the connection holds, including the socket.
func (c *Connection) close() {
	if c.resp != nil {
		c.resp.Close()
		c.resp = nil
	}
	if c.upload != nil {
		c.upload.Close()
		c.upload = nil
	}
	unix.Close(c.fd)
}

// Read-only accessors for observers.

// Fd returns the connection's socket descriptor.
func (c *Connection) Fd() int { return c.fd }

// Peer returns the remote address as ip:port.
func (c *Connection) Peer() string { return c.peer }

// State returns a human-readable state name.
func (c *Connection) State() string { return c.state.String() }

// Requests returns how many requests the connection has started, including
// malformed ones.
func (c *Connection) Requests() int { return c.numRequests }

// LastRequest returns the most recent method and path seen, which may belong
// to a request still in flight.
func (c *Connection) LastRequest() (method, path string) {
	return c.lastMethod, c.lastPath
}

// KeepAlive reports whether the current request asked to keep the connection
// open.
func (c *Connection) KeepAlive() bool { return c.keepAlive }

// Progress returns body bytes sent so far and the total the pending response
// promised.
func (c *Connection) Progress() (sent, requested int64) {
	return c.bytesSent, c.bytesRequested
}
