// Package aikoerr implements the error taxonomy of the Aiko framework:
// configuration, transport, stream, frame-drop and protocol errors, each
// carrying enough context for callers to branch on kind rather than on
// error text.
package aikoerr

import "fmt"

// Kind identifies which of the taxonomy's five categories an error belongs
// to.
type Kind int

const (
	// Configuration errors are fatal at construction time: bad pipeline
	// definitions, missing modules, unknown deploy types.
	Configuration Kind = iota
	// Transport errors come from the message broker: unreachable,
	// publish failures, disconnects.
	Transport
	// Stream errors destroy the offending stream but never other streams.
	Stream
	// FrameDrop is non-fatal: an element returned DROP_FRAME or NO_FRAME.
	FrameDrop
	// Protocol errors are malformed or unknown wire commands; logged and
	// discarded, never propagated.
	Protocol
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Transport:
		return "transport"
	case Stream:
		return "stream"
	case FrameDrop:
		return "frame_drop"
	case Protocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is a kind-tagged, wrapped error.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As keep working.
func (e *Error) Unwrap() error { return e.cause }

// Kind reports which taxonomy category this error belongs to.
func (e *Error) Kind() Kind { return e.kind }

func new_(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

// NewConfiguration builds a Configuration error.
func NewConfiguration(message string, cause error) *Error {
	return new_(Configuration, message, cause)
}

// NewTransport builds a Transport error.
func NewTransport(message string, cause error) *Error {
	return new_(Transport, message, cause)
}

// NewStream builds a Stream error.
func NewStream(message string, cause error) *Error {
	return new_(Stream, message, cause)
}

// NewFrameDrop builds a FrameDrop error.
func NewFrameDrop(message string) *Error {
	return new_(FrameDrop, message, nil)
}

// NewProtocol builds a Protocol error.
func NewProtocol(message string, cause error) *Error {
	return new_(Protocol, message, cause)
}

// KindOf reports the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// as is a tiny local shim over errors.As to avoid importing errors just
// for this one call site twice.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
