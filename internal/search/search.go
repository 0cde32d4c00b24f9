// Package search provides exact substring search over byte buffers.
package search

import "bytes"

// Delimiter is a precompiled search pattern. It uses a Boyer-Moore-Horspool
// bad-character table so that repeated scans over large upload buffers skip
// ahead by up to the pattern length per mismatch.
type Delimiter struct {
	pattern []byte
	skip    [256]int
}

// NewDelimiter compiles pattern for repeated searching. An empty pattern is
// not valid and matches at offset 0 everywhere; callers are expected to pass
// at least one byte.
func NewDelimiter(pattern string) *Delimiter {
	d := &Delimiter{pattern: []byte(pattern)}
	for i := range d.skip {
		d.skip[i] = len(d.pattern)
	}
	for i := 0; i < len(d.pattern)-1; i++ {
		d.skip[d.pattern[i]] = len(d.pattern) - 1 - i
	}
	return d
}

// Len returns the pattern length in bytes.
func (d *Delimiter) Len() int {
	return len(d.pattern)
}

// String returns the pattern as a string.
func (d *Delimiter) String() string {
	return string(d.pattern)
}

// Find returns the offset of the first occurrence of the pattern in buf, or
// -1 when buf does not contain it.
func (d *Delimiter) Find(buf []byte) int {
	m := len(d.pattern)
	if m == 0 {
		return 0
	}
	i := 0
	for i+m <= len(buf) {
		j := m - 1
		for j >= 0 && buf[i+j] == d.pattern[j] {
			j--
		}
		if j < 0 {
			return i
		}
		i += d.skip[buf[i+m-1]]
	}
	return -1
}

var crlfcrlf = []byte("\r\n\r\n")

// FindBodyStart locates the blank line separating a header block from the
// body and returns the index of the first body byte, or -1 when the
// separator has not arrived yet.
func FindBodyStart(buf []byte) int {
	idx := bytes.Index(buf, crlfcrlf)
	if idx == -1 {
		return -1
	}
	return idx + len(crlfcrlf)
}
