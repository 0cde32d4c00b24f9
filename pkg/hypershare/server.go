package hypershare

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/48ca/hypershare/internal/mux"
)

// Observer receives a read-only connection-table snapshot once per loop
// iteration. Trigger an immediate snapshot with Control('p').
type Observer = mux.Observer

// Server binds the listening socket and runs the connection multiplexer.
// Serve occupies the calling goroutine; Control and Shutdown are safe to
// call from others.
type Server struct {
	cfg *Config
	mux *mux.Server

	listenFd int
	addr     string

	controlR *os.File
	controlW *os.File

	history chan string
}

// NewServer validates cfg, canonicalizes the root, binds the listener and
// creates the control pipe. The server does not serve until Serve is called.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := mux.CanonicalRoot(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("root directory: %w", err)
	}
	fd, addr, err := listen(cfg.Addr)
	if err != nil {
		return nil, err
	}
	controlR, controlW, err := os.Pipe()
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	history := make(chan string, cfg.HistorySize)
	indexFile := cfg.IndexFile
	if cfg.NoIndexFile {
		indexFile = ""
	}
	m := mux.New(mux.Options{
		RootDir:         root,
		IndexFile:       indexFile,
		DirListings:     cfg.DirListings,
		Uploading:       cfg.Uploading,
		UploadSizeLimit: cfg.UploadSizeLimit,
		StartDisabled:   cfg.StartDisabled,
		NoAppendSlash:   cfg.NoAppendSlash,
		Logger:          cfg.Logger,
		Metrics:         metricsRecorder{},
		History: func(line string) {
			select {
			case history <- line:
			default:
			}
		},
	})

	return &Server{
		cfg:      cfg,
		mux:      m,
		listenFd: fd,
		addr:     addr,
		controlR: controlR,
		controlW: controlW,
		history:  history,
	}, nil
}

// Addr returns the bound listen address, useful when Addr was ":0".
func (s *Server) Addr() string {
	return s.addr
}

// History returns the request-history channel. It is closed when Serve
// returns.
func (s *Server) History() <-chan string {
	return s.history
}

// Control sends one control byte to the loop: 't' toggles request serving,
// 'k' closes every connection, 'p' wakes the loop so the observer runs.
func (s *Server) Control(b byte) error {
	_, err := s.controlW.Write([]byte{b})
	return err
}

// Shutdown closes the control pipe's write end; the loop observes EOF and
// exits cleanly.
func (s *Server) Shutdown() error {
	return s.controlW.Close()
}

// Serve runs the multiplexer loop on the calling goroutine until Shutdown or
// a fatal listener error. obs may be nil.
func (s *Server) Serve(obs Observer) error {
	defer func() {
		s.controlR.Close()
		unix.Close(s.listenFd)
		close(s.history)
	}()
	return s.mux.Run(s.listenFd, int(s.controlR.Fd()), obs)
}

// listen binds a non-blocking listening socket and returns its descriptor
// and bound address.
func listen(addr string) (int, string, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, "", err
	}

	var (
		fd int
		sa unix.Sockaddr
	)
	if ip4 := tcpAddr.IP.To4(); ip4 != nil || tcpAddr.IP == nil {
		s4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 != nil {
			copy(s4.Addr[:], ip4)
		}
		fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
		sa = s4
	} else {
		s6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(s6.Addr[:], tcpAddr.IP.To16())
		fd, err = unix.Socket(unix.AF_INET6, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
		sa = s6
	}
	if err != nil {
		return -1, "", err
	}

	fail := func(err error) (int, string, error) {
		unix.Close(fd)
		return -1, "", err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail(err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fail(fmt.Errorf("bind %s: %w", addr, err))
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return fail(err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return fail(err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		return fail(err)
	}
	return fd, sockaddrString(bound), nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	}
	return "unknown"
}
