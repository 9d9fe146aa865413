package warpq

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted is reported in place of the transport error when a transfer
	// ended after Abort was called for it.
	ErrAborted = errors.New("transfer aborted")
	// ErrTransportPanic is wrapped around a panic raised inside a Transport.
	ErrTransportPanic = errors.New("transport panicked")
	// ErrNoResult is reported when a Transport returns neither a result nor an error.
	ErrNoResult = errors.New("transport returned no result")
)

// FailureKind groups terminal transfer failures.
type FailureKind int

const (
	// NoFailure is the kind of a nil error.
	NoFailure FailureKind = iota
	// ProtocolFailure means the remote end answered with a non-success status.
	ProtocolFailure
	// TransportFailure covers network and transport exceptions.
	TransportFailure
	// CancelledByCaller means Abort was called while the transfer was in flight.
	CancelledByCaller
)

func (k FailureKind) String() string {
	switch k {
	case NoFailure:
		return "none"
	case ProtocolFailure:
		return "protocol"
	case TransportFailure:
		return "transport"
	case CancelledByCaller:
		return "cancelled"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// StatusError is returned by a Transport when the remote end responded with
// a non-success status code.
type StatusError struct {
	// Status is the protocol status code (HTTP status, FTP reply code, ...).
	Status int
	// Detail is the status text or server message.
	Detail string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("unexpected status %d", e.Status)
}

// FetchError is a structured transport error.
// Use errors.As to extract and inspect it.
type FetchError struct {
	// Scheme is the URL scheme of the transfer (e.g. "http", "sftp").
	Scheme string
	// Op is the operation that failed (e.g. "connect", "read").
	Op string
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
// Format: "scheme op: cause"
func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s", e.Scheme, e.Op, e.Cause.Error())
	}
	return fmt.Sprintf("%s %s", e.Scheme, e.Op)
}

// Unwrap returns the underlying cause, enabling errors.Is/As chaining.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewFetchError wraps cause into a FetchError. A nil cause yields nil.
func NewFetchError(scheme, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &FetchError{Scheme: scheme, Op: op, Cause: cause}
}

// Classify maps the outcome of a transfer to its FailureKind. aborted tells
// whether Abort was called for the attempt; it wins over whatever the
// transport reported.
func Classify(err error, aborted bool) FailureKind {
	if aborted {
		return CancelledByCaller
	}
	if err == nil {
		return NoFailure
	}
	var se *StatusError
	if errors.As(err, &se) {
		return ProtocolFailure
	}
	if errors.Is(err, ErrAborted) {
		return CancelledByCaller
	}
	// context.Canceled without an abort comes from outside the scheduler
	// and counts as a transport failure.
	return TransportFailure
}
