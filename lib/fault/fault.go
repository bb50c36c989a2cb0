package fault

import "fmt"

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type Code uint8

const (
	CodeInvariant     Code = iota + 1 // 1: A runtime invariant was violated.
	CodeReentrancy                    // 2: A non-reentrant operation was re-entered.
	CodeCacheOrdering                 // 3: A cache write was older than the stored entry.
	CodeInvalidGetter                 // 4: A malformed getter was evaluated.
	CodeInvalidPath                   // 5: A key path could not be walked or updated.
	CodeUnknownStore                  // 6: A store id is not registered.
)

func (c Code) String() string {
	switch c {
	case CodeInvariant:
		return "InvariantError"
	case CodeReentrancy:
		return "ReentrancyError"
	case CodeCacheOrdering:
		return "CacheOrderingError"
	case CodeInvalidGetter:
		return "InvalidGetterError"
	case CodeInvalidPath:
		return "InvalidPathError"
	case CodeUnknownStore:
		return "UnknownStoreError"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// --------------------------------------------------------------------------
// Error Type
// --------------------------------------------------------------------------

// Error wraps a Code and a human-readable message.
// Two errors are considered equal by errors.Is when their codes match.
type Error struct {
	Code Code   // The kind of failure
	Msg  string // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new *Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Newf creates a new *Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Sentinels (for errors.Is)
// --------------------------------------------------------------------------

var (
	ErrInvariant     = New(CodeInvariant, "invariant violation")
	ErrReentrancy    = New(CodeReentrancy, "reentrant call")
	ErrCacheOrdering = New(CodeCacheOrdering, "cache ordering violation")
	ErrInvalidGetter = New(CodeInvalidGetter, "invalid getter")
	ErrInvalidPath   = New(CodeInvalidPath, "invalid key path")
	ErrUnknownStore  = New(CodeUnknownStore, "unknown store")
)
