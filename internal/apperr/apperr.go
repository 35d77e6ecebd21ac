// Package apperr defines the error taxonomy shared by every gts component
// and the mapping from that taxonomy to process exit codes.
package apperr

import (
	"errors"
	"fmt"
)

// Input errors are rejected before any mutation.
var (
	ErrInvalidPath      = errors.New("not a repository root")
	ErrInvalidRange     = errors.New("hours out of range")
	ErrInvalidDate      = errors.New("invalid date")
	ErrDuplicateBinding = errors.New("binding already exists")
	ErrBindingNotFound  = errors.New("no matching binding")
	ErrInvalidClient    = errors.New("invalid client details")
)

// Resource errors.
var (
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	ErrStoreLocked           = errors.New("store is locked by another process")
	ErrStoreIO               = errors.New("store I/O failure")
)

// Network errors.
var (
	ErrSharingUnavailable = errors.New("sharing service unavailable")
	ErrLinkNotFound       = errors.New("share link not found or expired")
)

// Kind classifies an error for reporting and exit codes.
type Kind int

const (
	KindUnknown Kind = iota
	KindInput
	KindResource
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindResource:
		return "resource"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error attaches an operation name and the offending value to one of the
// sentinel errors above.
type Error struct {
	Op    string
	Value any
	Err   error
}

func (e *Error) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s %v: %v", e.Op, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an *Error.
func New(op string, value any, err error) *Error {
	return &Error{Op: op, Value: value, Err: err}
}

// KindOf reports the taxonomy class of err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidPath),
		errors.Is(err, ErrInvalidRange),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrDuplicateBinding),
		errors.Is(err, ErrBindingNotFound),
		errors.Is(err, ErrInvalidClient):
		return KindInput
	case errors.Is(err, ErrRepositoryUnavailable),
		errors.Is(err, ErrStoreLocked),
		errors.Is(err, ErrStoreIO):
		return KindResource
	case errors.Is(err, ErrSharingUnavailable),
		errors.Is(err, ErrLinkNotFound):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// ExitCode maps err to the process exit code: 0 for nil, 1 for input and
// unclassified errors, 2 for resource errors, 3 for network errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindResource:
		return 2
	case KindNetwork:
		return 3
	default:
		return 1
	}
}
