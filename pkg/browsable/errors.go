package browsable

import "errors"

// BrowseError represents a domain error from browsing operations.
//
// Adapters translate the Code into their own status values (HTTP status
// codes, CLI exit codes).
type BrowseError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the browsing path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *BrowseError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a browse error.
type ErrorCode int

const (
	// ErrNotFound indicates a path segment does not exist
	ErrNotFound ErrorCode = iota

	// ErrNotContainer indicates the target element cannot have children
	ErrNotContainer

	// ErrInvalidArgument indicates invalid request parameters
	ErrInvalidArgument

	// ErrUnsupported indicates the element does not offer the requested content kind
	ErrUnsupported

	// ErrSessionNotFound indicates an unknown or expired browsing session
	ErrSessionNotFound

	// ErrLimitExceeded indicates a configured limit (e.g. max sessions) was reached
	ErrLimitExceeded
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not_found"
	case ErrNotContainer:
		return "not_container"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrUnsupported:
		return "unsupported"
	case ErrSessionNotFound:
		return "session_not_found"
	case ErrLimitExceeded:
		return "limit_exceeded"
	default:
		return "unknown"
	}
}

// CodeOf extracts the ErrorCode from err. The second result is false when
// err is not (and does not wrap) a *BrowseError.
func CodeOf(err error) (ErrorCode, bool) {
	var be *BrowseError
	if errors.As(err, &be) {
		return be.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is a navigation miss.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrNotFound
}
