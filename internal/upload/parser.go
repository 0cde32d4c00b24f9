// Package upload implements the streaming multipart/form-data parser that
// writes uploaded part bodies to disk. It consumes the request body
// incrementally from a fixed-size working buffer, so memory stays bounded no
// matter how large the upload is.
package upload

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/48ca/hypershare/internal/search"
)

// bufferSize is the fixed working-buffer capacity. If a boundary cannot be
// located within this window the client is stalled or lying, and the read
// side will eventually abort the connection.
const bufferSize = 32 << 20

type parserState int

const (
	// awaitingFirstBody scans for the boundary that opens the next part
	// (or the terminal boundary that ends the request).
	awaitingFirstBody parserState = iota
	// awaitingMeta scans for the blank line ending a part's header block.
	awaitingMeta
	// awaitingBody streams part bytes to the open file until the next
	// boundary.
	awaitingBody
	// discardingData consumes the rest of the body after an error so the
	// client can still receive the queued error response.
	discardingData
)

// Parser is the incremental multipart upload parser. Bytes are appended at
// fill and consumed at parseIdx; whenever consumed bytes are no longer
// needed the unconsumed remainder is compacted to offset zero to reclaim
// contiguous free space at the tail.
type Parser struct {
	buf      []byte
	fill     int
	parseIdx int
	state    parserState

	delim *search.Delimiter
	dir   string

	file     *os.File
	filename string

	newFiles     []string
	totalWritten int64
	sizeLimit    int64

	queued *Error
}

// NewParser creates a parser writing parts into dir. boundary is the full
// delimiter token including the leading dashes ("--<boundary>"). seed is
// whatever body bytes already arrived alongside the request head. sizeLimit
// caps the total bytes written across all parts; zero means unlimited.
func NewParser(dir, boundary string, seed []byte, sizeLimit int64) *Parser {
	p := &Parser{
		buf:       make([]byte, bufferSize),
		delim:     search.NewDelimiter(boundary),
		dir:       dir,
		sizeLimit: sizeLimit,
		queued:    &Error{},
	}
	p.Feed(seed)
	return p
}

// NewFiles returns the filenames recorded so far, in part order. A name is
// recorded as soon as the part's headers are accepted, even if writing the
// part later fails.
func (p *Parser) NewFiles() []string {
	return p.newFiles
}

// TotalWritten returns the cumulative bytes flushed to part files.
func (p *Parser) TotalWritten() int64 {
	return p.totalWritten
}

// Feed copies b into the buffer's free tail and returns how many bytes fit.
func (p *Parser) Feed(b []byte) int {
	n := copy(p.buf[p.fill:], b)
	p.fill += n
	return n
}

// ReadFrom performs one bounded read from fd into the buffer's free tail.
// A full buffer reads zero bytes, which the caller treats the same as a
// vanished client.
func (p *Parser) ReadFrom(fd int) (int, error) {
	n, err := unix.Read(fd, p.buf[p.fill:])
	if err != nil {
		return 0, err
	}
	p.fill += n
	return n, nil
}

// Parse advances the state machine as far as the buffered bytes allow and
// reports whether the terminal boundary was reached. The first error is
// returned immediately; the partially written file, if any, is deleted
// first. This direct mode is used only for the synchronous 100-continue
// pre-check, before the client has streamed its body.
func (p *Parser) Parse() (bool, error) {
	done, perr := p.run()
	if perr == nil {
		return done, nil
	}
	if p.filename != "" {
		if p.file != nil {
			p.file.Close()
			p.file = nil
		}
		if rmErr := os.Remove(p.filename); rmErr != nil {
			perr.add(serverError("could not remove partial file: %v", rmErr))
		}
		p.filename = ""
	}
	return done, perr
}

// ParseDraining advances the state machine like Parse, but on error switches
// to discarding mode and keeps consuming: the connection must drain the full
// body before the client will read our error page, so every failure is
// accumulated into one composite error that surfaces only once the terminal
// boundary arrives.
func (p *Parser) ParseDraining() (bool, error) {
	for {
		done, err := p.Parse()
		if err == nil {
			if done && p.state == discardingData {
				queued := p.queued
				p.queued = &Error{}
				return true, queued
			}
			return done, nil
		}
		p.state = discardingData
		p.queued.add(err)
	}
}

func (p *Parser) run() (bool, *Error) {
	for {
		switch p.state {
		case discardingData:
			idx := p.delim.Find(p.buf[p.parseIdx:p.fill])
			if idx == -1 {
				// Keep only the tail a split boundary could live in.
				p.discardKeepTail(p.delim.Len())
				return false, nil
			}
			next := p.parseIdx + idx + p.delim.Len()
			if p.fill-next < 2 {
				// Need the trailing CRLF or -- to classify the boundary.
				p.discardKeepTail(p.fill - (next - p.delim.Len()))
				return false, nil
			}
			if p.buf[next] == '-' && p.buf[next+1] == '-' {
				return true, nil
			}
			p.parseIdx = next

		case awaitingFirstBody:
			idx := p.delim.Find(p.buf[p.parseIdx:p.fill])
			if idx == -1 {
				return false, nil
			}
			next := p.parseIdx + idx + p.delim.Len()
			if p.fill-next < 2 {
				return false, nil
			}
			if p.buf[next] == '-' && p.buf[next+1] == '-' {
				return true, nil
			}
			// The two trailing bytes are taken to be the CRLF opening the
			// part's headers without being verified; anything else would
			// fail header parsing one state later anyway.
			p.parseIdx = next + 2
			p.state = awaitingMeta

		case awaitingMeta:
			bodyStart := search.FindBodyStart(p.buf[p.parseIdx:p.fill])
			if bodyStart == -1 {
				return false, nil
			}
			bodyStart += p.parseIdx
			if err := p.openPartFile(p.buf[p.parseIdx:bodyStart]); err != nil {
				return false, err
			}
			p.parseIdx = bodyStart
			p.state = awaitingBody

		case awaitingBody:
			idx := p.delim.Find(p.buf[p.parseIdx:p.fill])
			if idx == -1 {
				// Withhold the tail a split "\r\n--boundary" could
				// occupy; the rest is safe to flush.
				if _, err := p.flushWithheld(); err != nil {
					return false, err
				}
				return false, nil
			}
			at := p.parseIdx + idx
			if at < 2 || p.buf[at-2] != '\r' || p.buf[at-1] != '\n' {
				return false, newError(400, "no CRLF before boundary: malformed request")
			}
			complete, err := p.flushTo(at - 2)
			if err != nil {
				return false, err
			}
			if !complete {
				// Short write to disk; finish on a later pass.
				return false, nil
			}
			p.file.Close()
			p.file = nil
			p.filename = ""
			p.state = awaitingFirstBody
		}
	}
}

// openPartFile validates a part's header block and opens its destination
// file exclusively. Collisions are rejected, never overwritten.
func (p *Parser) openPartFile(meta []byte) *Error {
	metaStr := string(meta)

	var disposition string
	for _, line := range strings.Split(metaStr, "\r\n") {
		colon := strings.IndexByte(line, ':')
		if colon == -1 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(line[:colon]), "content-disposition") {
			disposition = line[colon+1:]
			break
		}
	}
	if disposition == "" {
		return newError(422, "part did not carry a Content-Disposition header")
	}

	var filename string
	for _, kv := range strings.Split(disposition, ";") {
		eq := strings.IndexByte(kv, '=')
		if eq == -1 {
			continue
		}
		if strings.TrimSpace(kv[:eq]) == "filename" {
			filename = strings.TrimSpace(kv[eq+1:])
			break
		}
	}
	if strings.HasPrefix(filename, "\"") && strings.HasSuffix(filename, "\"") && len(filename) >= 2 {
		filename = filename[1 : len(filename)-1]
	}
	if filename == "" {
		return newError(422, "could not find an attribute with a filename")
	}
	if strings.Contains(filename, "/") {
		// Filenames are a single segment joined to the destination
		// directory, never a path.
		return newError(422, "invalid filename: %s", filename)
	}

	p.newFiles = append(p.newFiles, filename)

	full := filepath.Join(p.dir, filename)
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return serverError("could not open %s for writing; if the file already exists, use a different name", filename)
	}
	p.file = f
	p.filename = full
	return nil
}

// flushWithheld flushes everything except the trailing boundary-length
// bytes plus two: the tail could be a split "\r\n--boundary" completed by
// the next read, and the candidate CRLF must not reach the file before the
// boundary after it is classified.
func (p *Parser) flushWithheld() (bool, *Error) {
	if p.file == nil {
		return false, serverError("attempted to write to a file before opening it")
	}
	withhold := p.delim.Len() + 2
	if p.fill < withhold {
		return false, serverError("not enough buffered data to flush")
	}
	return p.flushTo(p.fill - withhold)
}

// flushTo writes [parseIdx, upTo) to the open file in one call. The size
// limit is enforced before writing so the file on disk never transiently
// exceeds it. A short write advances parseIdx partially and is retried on a
// later pass; a complete flush compacts the unconsumed remainder to offset
// zero.
func (p *Parser) flushTo(upTo int) (bool, *Error) {
	if upTo <= p.parseIdx {
		return true, nil
	}
	if p.file == nil {
		return false, serverError("attempted to write to a file before opening it")
	}
	if p.fill < upTo {
		return false, serverError("asked to write more than is buffered")
	}
	pending := int64(upTo - p.parseIdx)
	if p.sizeLimit > 0 && p.totalWritten+pending > p.sizeLimit {
		return false, newError(413, "upload size limit of %d bytes exceeded", p.sizeLimit)
	}

	n, err := p.file.Write(p.buf[p.parseIdx:upTo])
	p.parseIdx += n
	p.totalWritten += int64(n)
	if err != nil {
		return false, serverError("error writing to file: %v", err)
	}
	if p.parseIdx < upTo {
		return false, nil
	}

	p.compact()
	return true, nil
}

// compact moves the unconsumed remainder to the start of the buffer. copy
// tolerates the overlapping ranges.
func (p *Parser) compact() {
	remain := p.fill - p.parseIdx
	copy(p.buf, p.buf[p.parseIdx:p.fill])
	p.parseIdx = 0
	p.fill = remain
}

// discardKeepTail drops the consumed region and everything scanned so far,
// keeping only the last n unconsumed bytes.
func (p *Parser) discardKeepTail(n int) {
	keep := n
	if avail := p.fill - p.parseIdx; keep > avail {
		keep = avail
	}
	copy(p.buf, p.buf[p.fill-keep:p.fill])
	p.parseIdx = 0
	p.fill = keep
}

// Close releases the open part file, if any, without deleting it. Used when
// the connection is dropped mid-upload.
func (p *Parser) Close() {
	if p.file != nil {
		p.file.Close()
		p.file = nil
	}
}
