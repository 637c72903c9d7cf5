// internal/fault/fault.go

// Package fault is the error taxonomy shared by transports, adapters and
// the sink. Every kind carries a stable numeric code; the status block
// exposes it as last_error_code.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can choose retry, re-init or escalate
// without matching on error strings.
type Kind uint16

const (
	Unknown         Kind = 1
	Timeout         Kind = 2 // read returned short before the deadline
	Malformed       Kind = 3 // wrong length or terminator
	Validation      Kind = 4 // out of range or non-numeric value
	SinkWrite       Kind = 5 // sink rejected the batch
	SinkUnavailable Kind = 6 // cannot (re)connect to the sink
	FatalStartup    Kind = 7 // identity or handshake unusable
	Transport       Kind = 8 // I/O error on the link
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case Malformed:
		return "malformed_frame"
	case Validation:
		return "validation"
	case SinkWrite:
		return "sink_write"
	case SinkUnavailable:
		return "sink_unavailable"
	case FatalStartup:
		return "fatal_startup"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

// ErrNoMeasurement is returned by event-driven adapters when a cycle
// legitimately produced nothing (empty read, comment line, incomplete pair).
var ErrNoMeasurement = errors.New("no measurement this cycle")

// Error is a classified failure. Op names the operation in progress, e.g.
// "channel 17" or "query DIAG:TEMP?".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code satisfies the Code() uint16 convention used for status reporting.
func (e *Error) Code() uint16 { return uint16(e.Kind) }

// New wraps err with kind and op. A nil err yields an error carrying only
// the kind and op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in the chain,
// or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == kind {
			return true
		}
		err = fe.Err
	}
	return false
}
