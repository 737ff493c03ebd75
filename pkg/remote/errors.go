package remote

import (
	"errors"
	"fmt"
)

// Kind classifies a remote failure for the retry decision.
type Kind int

const (
	// KindFatal errors abort the run.
	KindFatal Kind = iota
	// KindRateLimited errors are retried with backoff.
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate-limited"
	default:
		return "fatal"
	}
}

// Error is returned by API implementations after classifying a transport error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RateLimited wraps err as a retryable rate-limit failure of op.
func RateLimited(op string, err error) error {
	return &Error{Kind: KindRateLimited, Op: op, Err: err}
}

// Fatal wraps err as a non-retryable failure of op.
func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

// KindOf reports the kind of err. Errors that were never classified are fatal.
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return KindFatal
}
