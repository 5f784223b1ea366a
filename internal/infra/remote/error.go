package remote

import (
	"errors"

	"order-service/internal/pkg/errs"
)

type ErrorKind string

// Outbound calls have exactly three outcomes: success, a well-formed rejection
// from the remote service, or transport-level unreachability. Only the last one
// counts against the circuit breaker.
const (
	KindRejected    ErrorKind = "REJECTED"
	KindUnreachable ErrorKind = "UNREACHABLE"
)

type Error struct {
	Kind ErrorKind
	msg  string
	err  error // wrapped transport error, if any
}

func (e Error) Error() string {
	if e.err != nil {
		return string(e.Kind) + ": " + e.msg + ": " + e.err.Error()
	}
	return string(e.Kind) + ": " + e.msg
}

func (e Error) Unwrap() error {
	return e.err
}

// Message returns the human-readable part without the kind prefix, suitable
// for failure_reason fields and API responses.
func (e Error) Message() string {
	return e.msg
}

func Rejected(msg string) error {
	return Error{Kind: KindRejected, msg: msg}
}

func Rejectedf(format string, args ...any) error {
	return Error{Kind: KindRejected, msg: errs.Newf(format, args...).Error()}
}

func Unreachable(err error, msg string) error {
	if err != nil {
		err = errs.Wrap(err, msg)
	}
	return Error{Kind: KindUnreachable, msg: msg, err: err}
}

func IsRejected(err error) bool {
	return isKind(err, KindRejected)
}

func IsUnreachable(err error) bool {
	return isKind(err, KindUnreachable)
}

// RejectionMessage extracts the remote's message from any outcome error,
// falling back to the raw error string.
func RejectionMessage(err error) string {
	var e Error
	if errors.As(err, &e) {
		return e.Message()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func isKind(err error, kind ErrorKind) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
