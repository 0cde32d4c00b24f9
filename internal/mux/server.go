package mux

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/48ca/hypershare/internal/poller"
)

const serverName = "hypershare"

// Options configures the multiplexer. RootDir must already be canonical
// (see CanonicalRoot).
type Options struct {
	RootDir         string
	IndexFile       string // empty disables index substitution
	DirListings     bool
	Uploading       bool
	UploadSizeLimit int64 // bytes across all parts of one upload; 0 = unlimited
	StartDisabled   bool
	NoAppendSlash   bool

	Logger  *log.Logger
	Metrics MetricsRecorder
	History func(line string)
}

// MetricsRecorder receives counters from the loop. Implementations must not
// block; they run on the loop thread.
type MetricsRecorder interface {
	ConnectionOpened()
	ConnectionClosed()
	SetOpenConnections(n int)
	RequestServed(method string, status int)
	BytesSent(n int)
	UploadStored(files int, bytes int64)
}

type nopRecorder struct{}

func (nopRecorder) ConnectionOpened()         {}
func (nopRecorder) ConnectionClosed()         {}
func (nopRecorder) SetOpenConnections(int)    {}
func (nopRecorder) RequestServed(string, int) {}
func (nopRecorder) BytesSent(int)             {}
func (nopRecorder) UploadStored(int, int64)   {}

// Observer receives a read-only snapshot of the connection table once per
// loop iteration, sorted by descriptor.
type Observer interface {
	OnIteration(conns []*Connection)
}

// Server runs the readiness loop. All of its state is owned by the loop
// goroutine; nothing here is safe for concurrent use.
type Server struct {
	opts    Options
	logger  *log.Logger
	metrics MetricsRecorder

	conns    map[int]*Connection
	disabled bool
}

// New creates a multiplexer over the given options. A nil Logger stays nil
// only until here; callers always get a usable server.
func New(opts Options) *Server {
	s := &Server{
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		conns:    make(map[int]*Connection),
		disabled: opts.StartDisabled,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	return s
}

// Run drives the loop until the control channel reports EOF or the listening
// socket fails. listenFd must be a non-blocking listening socket; controlFd
// is the read end of the control pipe. Both are closed by the caller, not
// here. obs may be nil.
func (s *Server) Run(listenFd, controlFd int, obs Observer) error {
	defer s.closeAll()

	var set poller.Set
	for {
		set.Reset()
		set.Read(listenFd)
		set.Error(listenFd)
		set.Read(controlFd)
		set.Error(controlFd)
		for fd, c := range s.conns {
			switch c.state {
			case stateReadingRequest, stateReadingPostBody:
				set.Read(fd)
			case stateWritingResponse:
				set.Write(fd)
			}
			set.Error(fd)
		}

		if _, err := set.Wait(); err != nil {
			return fmt.Errorf("readiness wait: %w", err)
		}

		var shutdown, forceClose bool
	scan:
		// Ready descriptors are serviced in ascending numeric order, one
		// bounded operation each.
		for fd := 0; fd <= set.Max(); fd++ {
			if set.ErrReady(fd) {
				switch fd {
				case controlFd:
					shutdown = true
					break scan
				case listenFd:
					return errors.New("listening socket failed")
				default:
					if c, ok := s.conns[fd]; ok {
						s.drop(c)
					}
					continue
				}
			}
			if set.ReadReady(fd) {
				switch fd {
				case controlFd:
					var quit bool
					quit, forceClose = s.handleControl(controlFd, forceClose)
					if quit {
						shutdown = true
						break scan
					}
				case listenFd:
					s.accept(listenFd)
				default:
					if c, ok := s.conns[fd]; ok {
						s.step(c, false)
					}
				}
				continue
			}
			if set.WriteReady(fd) {
				if c, ok := s.conns[fd]; ok {
					s.step(c, true)
				}
			}
		}
		if shutdown {
			return nil
		}

		s.sweep(forceClose)
		s.metrics.SetOpenConnections(len(s.conns))
		if obs != nil {
			obs.OnIteration(s.snapshot())
		}
	}
}

// handleControl consumes one control byte. 't' toggles the disabled flag,
// 'k' force-closes every connection on this iteration's sweep, 'p' is a pure
// wake so the observer runs. EOF or a read failure means shutdown.
func (s *Server) handleControl(controlFd int, forceClose bool) (quit, force bool) {
	var b [1]byte
	n, err := unix.Read(controlFd, b[:])
	if err == unix.EAGAIN || err == unix.EINTR {
		return false, forceClose
	}
	if err != nil || n == 0 {
		return true, forceClose
	}
	switch b[0] {
	case 't':
		s.disabled = !s.disabled
		if s.disabled {
			s.logger.Print("request serving disabled")
		} else {
			s.logger.Print("request serving enabled")
		}
	case 'k':
		forceClose = true
	case 'p':
	}
	return false, forceClose
}

// accept admits one pending connection. Level-triggered readiness will wake
// the loop again if more are queued.
func (s *Server) accept(listenFd int) {
	fd, sa, err := unix.Accept(listenFd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR || err == unix.ECONNABORTED {
			return
		}
		s.logger.Printf("accept: %v", err)
		return
	}
	if !poller.Pollable(fd) {
		unix.Close(fd)
		s.logger.Printf("descriptor %d exceeds select capacity; connection dropped", fd)
		return
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return
	}
	s.conns[fd] = newConnection(fd, peerString(sa))
	s.metrics.ConnectionOpened()
}

// step performs one bounded state-machine operation on c. Transient socket
// errors close the connection silently; anything else is logged to the
// history sink and also closes it, but never kills the loop.
func (s *Server) step(c *Connection, writable bool) {
	var err error
	switch {
	case writable:
		err = s.writeResponse(c)
	case c.state == stateReadingRequest:
		err = s.readRequestHead(c)
	case c.state == stateReadingPostBody:
		err = s.readPostBody(c)
	}
	if err == nil {
		return
	}
	if !transientSocketErr(err) {
		line := fmt.Sprintf("%-22s %v", c.peer, err)
		s.logger.Print(line)
		if s.opts.History != nil {
			s.opts.History(line)
		}
	}
	c.state = stateClosing
}

// sweep removes every Closing connection, or every connection when a
// force-close byte arrived. Dropping a connection that never completed a
// request still leaves a history line.
func (s *Server) sweep(force bool) {
	for _, c := range s.conns {
		if force || c.state == stateClosing {
			s.drop(c)
		}
	}
}

func (s *Server) drop(c *Connection) {
	if c.numRequests == 0 {
		s.logHistory(c, 0)
	}
	delete(s.conns, c.fd)
	c.close()
	s.metrics.ConnectionClosed()
}

func (s *Server) closeAll() {
	for _, c := range s.conns {
		s.drop(c)
	}
	s.metrics.SetOpenConnections(0)
}

func (s *Server) snapshot() []*Connection {
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].fd < conns[j].fd })
	return conns
}

// logHistory emits one line per resolved request, or one per abandoned
// connection when status is 0.
func (s *Server) logHistory(c *Connection, status int) {
	code := "   "
	if status > 0 {
		code = strconv.Itoa(status)
	}
	method := c.lastMethod
	if method == "" {
		method = "???"
	}
	var files string
	if c.upload != nil {
		if names := c.upload.NewFiles(); len(names) > 0 {
			files = " files: " + strings.Join(names, ", ")
		}
	}
	line := fmt.Sprintf("%-22s %s %-4s %s%s", c.peer, code, method, c.lastPath, files)
	s.logger.Print(line)
	if s.opts.History != nil {
		s.opts.History(line)
	}
}

func transientSocketErr(err error) bool {
	return errors.Is(err, unix.EPIPE) ||
		errors.Is(err, unix.ECONNRESET) ||
		errors.Is(err, unix.ECONNABORTED)
}

func peerString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	}
	return "unknown"
}
