// Package lmerror defines the error taxonomy shared by the model hub,
// the wire protocol and the channel negotiator. Every fallible operation
// in the server surfaces one of these kinds instead of a bare error, so
// callers (and the RPC status mapping) can tell a bad certificate from a
// degenerate distribution.
package lmerror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is the zero value for errors produced outside this package.
	KindUnknown Kind = iota

	// KindConfig covers unsupported model types, malformed mixture weights
	// and other construction-time configuration faults.
	KindConfig

	// KindIO covers unreadable model, vocabulary and corpus files.
	KindIO

	// KindNetwork covers bind, connect and timeout failures.
	KindNetwork

	// KindAuth covers credential negotiation and handshake failures.
	KindAuth

	// KindEncoding covers malformed UTF-8 in contexts or corpora.
	KindEncoding

	// KindComputation covers degenerate distributions, invalid k and
	// zero-character entropy requests.
	KindComputation
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindEncoding:
		return "encoding"
	case KindComputation:
		return "computation"
	default:
		return "unknown"
	}
}

// Error carries a kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind. Returns nil if err is nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Errorf builds a kinded error from a format string. The %w verb works.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err, walking the wrap chain. Errors that did
// not originate here report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
