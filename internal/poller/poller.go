// Package poller wraps select(2) interest sets. The caller rebuilds the sets
// before every wait, so interest always reflects the current state of each
// connection rather than edge-triggered registrations that can go stale.
package poller

import (
	"golang.org/x/sys/unix"
)

// MaxFd is the highest descriptor a select-based interest set can track.
const MaxFd = unix.FD_SETSIZE - 1

// Pollable reports whether fd fits in an interest set.
func Pollable(fd int) bool {
	return fd >= 0 && fd <= MaxFd
}

// Set is a select(2) interest set. Populate it with Read/Write/Error, call
// Wait, then query readiness with the *Ready methods. Reset and repopulate
// before each Wait.
type Set struct {
	read   unix.FdSet
	write  unix.FdSet
	except unix.FdSet
	max    int
}

// Reset clears all interest.
func (s *Set) Reset() {
	s.read.Zero()
	s.write.Zero()
	s.except.Zero()
	s.max = -1
}

func (s *Set) track(fd int) {
	if fd > s.max {
		s.max = fd
	}
}

// Read registers interest in fd becoming readable.
func (s *Set) Read(fd int) {
	s.read.Set(fd)
	s.track(fd)
}

// Write registers interest in fd becoming writable.
func (s *Set) Write(fd int) {
	s.write.Set(fd)
	s.track(fd)
}

// Error registers interest in an exceptional condition on fd.
func (s *Set) Error(fd int) {
	s.except.Set(fd)
	s.track(fd)
}

// Max returns the highest registered descriptor, or -1 when the set is empty.
func (s *Set) Max() int {
	return s.max
}

// Wait blocks until at least one registered descriptor is ready and returns
// the ready count. Interrupted waits are retried with the original interest
// restored, since the kernel leaves the sets undefined on failure.
func (s *Set) Wait() (int, error) {
	read, write, except := s.read, s.write, s.except
	for {
		n, err := unix.Select(s.max+1, &s.read, &s.write, &s.except, nil)
		if err == unix.EINTR {
			s.read, s.write, s.except = read, write, except
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// ReadReady reports readability of fd after a Wait.
func (s *Set) ReadReady(fd int) bool {
	return s.read.IsSet(fd)
}

// WriteReady reports writability of fd after a Wait.
func (s *Set) WriteReady(fd int) bool {
	return s.write.IsSet(fd)
}

// ErrReady reports an exceptional condition on fd after a Wait.
func (s *Set) ErrReady(fd int) bool {
	return s.except.IsSet(fd)
}
