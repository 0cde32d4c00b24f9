// Package hypershare is the public face of the file-sharing server: server
// construction and lifecycle, configuration, and metrics.
package hypershare

import (
	"errors"
	"io"
	"log"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP listen address, e.g. ":8080".
	Addr string

	// RootDir is the directory being shared. Every request path is
	// resolved and contained inside it.
	RootDir string

	// IndexFile is served in place of a directory listing when present.
	IndexFile string

	// NoIndexFile disables index-file substitution entirely.
	NoIndexFile bool

	// DirListings enables rendered directory listings.
	DirListings bool

	// Uploading enables multipart POST uploads into listed directories.
	Uploading bool

	// UploadSizeLimit caps total bytes written per upload; 0 is unlimited.
	UploadSizeLimit int64

	// StartDisabled starts the server answering 503 until toggled.
	StartDisabled bool

	// NoAppendSlash disables the 301 redirect to slash-suffixed directory
	// paths.
	NoAppendSlash bool

	// HistorySize bounds the buffered request-history channel. When the
	// consumer falls behind, new lines are dropped rather than blocking
	// the loop.
	HistorySize int

	// Logger receives operational output. Defaults to a silent logger.
	Logger *log.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:        ":8080",
		RootDir:     ".",
		IndexFile:   "index.html",
		HistorySize: 512,
		Logger:      log.New(io.Discard, "", 0),
	}
}

// Validate normalizes the configuration and reports invalid settings.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RootDir == "" {
		c.RootDir = "."
	}
	if c.IndexFile == "" {
		c.IndexFile = "index.html"
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 512
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	if c.UploadSizeLimit < 0 {
		return errors.New("upload size limit cannot be negative")
	}
	return nil
}
