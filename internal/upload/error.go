package upload

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Error is an upload failure carrying the HTTP status to answer with. In
// draining mode every failure encountered while consuming the rest of the
// body is appended, so the final error can name them all; the status of the
// first failure wins.
type Error struct {
	Status int
	err    error
}

func newError(status int, format string, args ...interface{}) *Error {
	return &Error{Status: status, err: fmt.Errorf(format, args...)}
}

func serverError(format string, args ...interface{}) *Error {
	return newError(500, format, args...)
}

func (e *Error) Error() string {
	if e.err == nil {
		return "upload failed"
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// empty reports whether no failure has been recorded yet.
func (e *Error) empty() bool {
	return e.err == nil
}

// add appends other to the composite. The first recorded failure fixes the
// status code.
func (e *Error) add(other error) {
	if e.err == nil {
		var ue *Error
		if errors.As(other, &ue) {
			e.Status = ue.Status
		} else {
			e.Status = 500
		}
	}
	e.err = multierror.Append(e.err, other)
}

// StatusOf extracts the HTTP status from an upload error, defaulting to 500.
func StatusOf(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 500
}
