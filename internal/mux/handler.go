package mux

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/48ca/hypershare/internal/h1"
	"github.com/48ca/hypershare/internal/render"
	"github.com/48ca/hypershare/internal/search"
	"github.com/48ca/hypershare/internal/upload"
)

// readRequestHead performs one bounded read into the header buffer and
// dispatches the request once the blank line arrives.
func (s *Server) readRequestHead(c *Connection) error {
	n, err := unix.Read(c.fd, c.buf[c.bytesRead:])
	if err == unix.EAGAIN || err == unix.EINTR {
		return nil
	}
	if err != nil {
		return err
	}
	if n == 0 {
		c.state = stateClosing
		return nil
	}
	c.bytesRead += n

	bodyStart := search.FindBodyStart(c.buf[:c.bytesRead])
	if bodyStart == -1 {
		if c.bytesRead == len(c.buf) {
			c.numRequests++
			c.keepAlive = false
			return s.respondError(c, 431, "request header block is too large")
		}
		return nil
	}
	c.bodyStart = bodyStart
	return s.dispatch(c)
}

// dispatch decodes the buffered request head and routes it by method. The
// request counter and last method/path are recorded before any processing,
// so aborted requests still reach the history sink.
func (s *Server) dispatch(c *Connection) error {
	c.numRequests++

	req, err := h1.ParseRequest(c.buf[:c.bodyStart-4])
	if err != nil {
		c.keepAlive = false
		return s.respondError(c, 400, err.Error())
	}
	c.lastMethod = req.Method
	c.lastPath = req.Path

	// Keep-alive only on an explicit header; absence means close even on
	// HTTP/1.1.
	if v, ok := req.Header("Connection"); ok && strings.EqualFold(v, "keep-alive") {
		c.keepAlive = true
	} else {
		c.keepAlive = false
	}

	if s.disabled {
		c.keepAlive = false
		return s.respondError(c, 503, "the server is temporarily not accepting requests")
	}

	switch req.Method {
	case "GET", "HEAD":
		return s.handleGet(c, req)
	case "POST":
		return s.handlePost(c, req)
	default:
		return s.respondError(c, 501, fmt.Sprintf("method %s is not implemented", req.Method))
	}
}

// handleGet serves files and directories, with byte-range support. HEAD
// shares this path and sheds the body after the headers are committed.
func (s *Server) handleGet(c *Connection, req *h1.Request) error {
	target, err := resolveTarget(s.opts.RootDir, req.Path)
	if err != nil {
		if status, msg, ok := statusFromFsError(err); ok {
			return s.respondError(c, status, msg)
		}
		return s.respondError(c, 500, err.Error())
	}
	info, err := os.Stat(target)
	if err != nil {
		if status, msg, ok := statusFromFsError(err); ok {
			return s.respondError(c, status, msg)
		}
		return s.respondError(c, 500, err.Error())
	}

	if info.IsDir() {
		if !strings.HasSuffix(req.Path, "/") && !s.opts.NoAppendSlash {
			resp := h1.NewResponse(301)
			resp.AddHeader("Server", serverName)
			resp.AddHeader("Location", req.Path+"/")
			resp.SetContentLength(0)
			s.addConnectionHeader(resp, c)
			c.bytesRequested = 0
			return s.commit(c, resp)
		}
		substituted := false
		if s.opts.IndexFile != "" {
			idx := filepath.Join(target, s.opts.IndexFile)
			if fi, err := os.Stat(idx); err == nil && fi.Mode().IsRegular() {
				target, info = idx, fi
				substituted = true
			}
		}
		if !substituted {
			if !s.opts.DirListings {
				return s.respondError(c, 403, "directory listings are disabled")
			}
			page, err := render.Directory(strings.TrimPrefix(req.Path, "/"), target, s.opts.Uploading)
			if err != nil {
				return s.respondError(c, 500, err.Error())
			}
			return s.respondPage(c, 200, page)
		}
	}
	if !info.Mode().IsRegular() {
		return s.respondError(c, 403, "not a regular file")
	}

	size := info.Size()
	status := 200
	var start int64
	length := size
	if v, ok := req.Header("Range"); ok {
		cr, valid := h1.DecodeContentRange(v)
		if !valid {
			c.keepAlive = false
			return s.respondError(c, 400, "malformed Range header")
		}
		// "bytes=0-" selects the whole resource and stays a 200.
		if cr.Start != 0 || cr.HasLength {
			status = 206
		}
		start = cr.Start
		if start > size {
			start = size
		}
		length = size - start
		if cr.HasLength && cr.Length < length {
			length = cr.Length
		}
	}

	f, err := os.Open(target)
	if err != nil {
		if st, msg, ok := statusFromFsError(err); ok {
			return s.respondError(c, st, msg)
		}
		return s.respondError(c, 500, err.Error())
	}

	resp := h1.NewResponse(status)
	resp.AddHeader("Server", serverName)
	resp.AddHeader("Accept-Ranges", "bytes")
	if status == 206 {
		end := start + length - 1
		if end < start {
			end = start
		}
		resp.AddHeader("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}
	if strings.HasSuffix(target, ".html") {
		resp.AddHeader("Content-Type", "text/html; charset=utf-8")
	}
	resp.SetContentLength(length)
	s.addConnectionHeader(resp, c)
	resp.SetFileBody(f)
	resp.Seek(start)
	resp.Limit(length)
	c.bytesRequested = length
	if req.Method == "HEAD" {
		resp.ClearBody()
		c.bytesRequested = 0
	}
	return s.commit(c, resp)
}

// handlePost starts a multipart upload into the requested directory.
func (s *Server) handlePost(c *Connection, req *h1.Request) error {
	if !s.opts.Uploading {
		return s.respondError(c, 405, "uploads are disabled")
	}
	ct, ok := req.Header("Content-Type")
	if !ok {
		c.keepAlive = false
		return s.respondError(c, 400, "POST without a Content-Type header")
	}
	boundary, ok := extractBoundary(ct)
	if !ok {
		c.keepAlive = false
		return s.respondError(c, 400, "Content-Type carries no multipart boundary")
	}

	target, err := resolveTarget(s.opts.RootDir, req.Path)
	if err != nil {
		if status, msg, ok := statusFromFsError(err); ok {
			return s.respondError(c, status, msg)
		}
		return s.respondError(c, 500, err.Error())
	}
	info, err := os.Stat(target)
	if err != nil {
		if status, msg, ok := statusFromFsError(err); ok {
			return s.respondError(c, status, msg)
		}
		return s.respondError(c, 500, err.Error())
	}
	if !info.IsDir() {
		c.keepAlive = false
		return s.respondError(c, 400, "upload destination is not a directory")
	}

	c.upload = upload.NewParser(target, "--"+boundary, c.buf[c.bodyStart:c.bytesRead], s.opts.UploadSizeLimit)
	c.state = stateReadingPostBody

	if v, ok := req.Header("Expect"); ok && strings.EqualFold(v, "100-continue") && req.Version == "HTTP/1.1" {
		// Pre-body check: the client has not streamed anything yet, so
		// errors surface immediately instead of being queued.
		done, err := c.upload.Parse()
		if err != nil {
			c.keepAlive = false
			return s.respondError(c, upload.StatusOf(err), err.Error())
		}
		if done {
			return s.respondCreated(c)
		}
		if err := h1.WriteContinue(c.fd); err != nil {
			return err
		}
		return nil
	}

	// Whatever body bytes arrived with the head may already complete the
	// upload; without them small uploads would stall waiting for a read
	// event that never comes.
	return s.advanceUpload(c)
}

// readPostBody performs one bounded read into the upload buffer.
func (s *Server) readPostBody(c *Connection) error {
	n, err := c.upload.ReadFrom(c.fd)
	if err == unix.EAGAIN || err == unix.EINTR {
		return nil
	}
	if err != nil {
		return err
	}
	if n == 0 {
		// Peer vanished mid-upload; nothing left to drain.
		c.keepAlive = false
		return s.respondError(c, 400, "client stopped sending during an upload")
	}
	return s.advanceUpload(c)
}

// advanceUpload runs the draining parser over the buffered bytes. Errors
// come back only once the body is fully drained, carrying every failure
// accumulated along the way.
func (s *Server) advanceUpload(c *Connection) error {
	done, err := c.upload.ParseDraining()
	if err != nil {
		c.keepAlive = false
		return s.respondError(c, upload.StatusOf(err), err.Error())
	}
	if done {
		return s.respondCreated(c)
	}
	return nil
}

// writeResponse performs one bounded write of the pending response body.
func (s *Server) writeResponse(c *Connection) error {
	if c.resp == nil {
		c.state = stateClosing
		return nil
	}
	n, done, err := c.resp.WriteChunk(c.fd)
	if err != nil {
		return err
	}
	if n > 0 {
		c.bytesSent += int64(n)
		s.metrics.BytesSent(n)
	}
	if done || c.bytesSent >= c.bytesRequested {
		c.resp.Close()
		c.resp = nil
		if c.keepAlive {
			c.reset()
		} else {
			c.state = stateClosing
		}
	}
	return nil
}

// respondCreated answers a completed upload.
func (s *Server) respondCreated(c *Connection) error {
	s.metrics.UploadStored(len(c.upload.NewFiles()), c.upload.TotalWritten())
	return s.respondPage(c, 201, render.StatusPage(201, "upload complete"))
}

// respondError answers one HTML error page. Every error path funnels through
// here so no failure silently drops the connection.
func (s *Server) respondError(c *Connection, status int, detail string) error {
	return s.respondPage(c, status, render.StatusPage(status, detail))
}

func (s *Server) respondPage(c *Connection, status int, page string) error {
	resp := h1.NewResponse(status)
	resp.AddHeader("Server", serverName)
	resp.AddHeader("Content-Type", "text/html; charset=utf-8")
	resp.SetContentLength(int64(len(page)))
	s.addConnectionHeader(resp, c)
	resp.SetStringBody(page)
	c.bytesRequested = int64(len(page))
	if c.lastMethod == "HEAD" {
		resp.ClearBody()
		c.bytesRequested = 0
	}
	return s.commit(c, resp)
}

// commit writes the header block synchronously, records the request, and
// enters WritingResponse. A response must never already be pending.
func (s *Server) commit(c *Connection, resp *h1.Response) error {
	if c.resp != nil {
		resp.Close()
		return fmt.Errorf("internal state violation: a response is already pending for %s", c.peer)
	}
	if err := resp.WriteHead(c.fd); err != nil {
		resp.Close()
		return err
	}
	c.resp = resp
	c.bytesSent = 0
	c.state = stateWritingResponse
	s.metrics.RequestServed(c.lastMethod, resp.Status)
	s.logHistory(c, resp.Status)
	return nil
}

func (s *Server) addConnectionHeader(resp *h1.Response, c *Connection) {
	if c.keepAlive {
		resp.AddHeader("Connection", "keep-alive")
	} else {
		resp.AddHeader("Connection", "close")
	}
}

// extractBoundary pulls the boundary parameter, quoted or bare, out of a
// multipart Content-Type value.
func extractBoundary(contentType string) (string, bool) {
	for _, param := range strings.Split(contentType, ";") {
		eq := strings.IndexByte(param, '=')
		if eq == -1 {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(param[:eq]), "boundary") {
			continue
		}
		boundary := strings.TrimSpace(param[eq+1:])
		if strings.HasPrefix(boundary, "\"") && strings.HasSuffix(boundary, "\"") && len(boundary) >= 2 {
			boundary = boundary[1 : len(boundary)-1]
		}
		if boundary == "" {
			return "", false
		}
		return boundary, true
	}
	return "", false
}
