package fut

import (
	"errors"
	"fmt"
)

var (
	// ErrReleased is returned when an array is used after Free.
	ErrReleased = errors.New("fut: array already released")

	// ErrNilArray is returned when a nil array is passed to an entry point.
	ErrNilArray = errors.New("fut: nil array")
)

// Status codes returned by Futhark entry points and array functions.
const (
	StatusSuccess      = 0
	StatusProgramError = 2
	StatusOutOfMemory  = 3
)

// StatusText returns a short description of a status code.
func StatusText(status int) string {
	switch status {
	case StatusSuccess:
		return "success"
	case StatusProgramError:
		return "program error"
	case StatusOutOfMemory:
		return "out of memory"
	default:
		return fmt.Sprintf("status %d", status)
	}
}

// EntryError reports a non-zero status from an entry point or array call.
type EntryError struct {
	Entry  string
	Status int
	Detail string // context error message, may be empty
}

func (e *EntryError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Entry, StatusText(e.Status))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// CheckStatus returns nil for StatusSuccess and an *EntryError otherwise.
// detail is only called on failure; it usually fetches the context's error
// message, which clears it.
func CheckStatus(entry string, status int, detail func() string) error {
	if status == StatusSuccess {
		return nil
	}
	e := &EntryError{Entry: entry, Status: status}
	if detail != nil {
		e.Detail = detail()
	}
	return e
}

// ContextError reports a failure to create or use a Futhark context.
type ContextError struct {
	Op     string
	Detail string
}

func (e *ContextError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("fut: %s failed", e.Op)
	}
	return fmt.Sprintf("fut: %s failed: %s", e.Op, e.Detail)
}

// ShapeError reports data that does not fit the requested shape.
type ShapeError struct {
	Rank   int
	Shape  []int64
	Len    int
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("fut: shape %v (rank %d) for %d elements: %s", e.Shape, e.Rank, e.Len, e.Reason)
}
