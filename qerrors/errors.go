// Package qerrors defines the error taxonomy shared by every queue
// implementation in this module (mutex-guarded, lock-free, adaptive).
//
// Errors are surfaced as *QueueError, which carries a Kind for programmatic
// dispatch and wraps an optional underlying cause for errors.Is/As.
package qerrors

import (
	"errors"
	"fmt"
)

// Kind discriminates the reason a queue operation failed.
type Kind int

const (
	// KindUnknown is used for unexpected internal failures, such as no free
	// hazard-pointer record being available to a dequeue.
	KindUnknown Kind = iota
	// KindInvalidArgument is returned for a nil handle, an empty batch, or
	// a batch exceeding the configured maximum size.
	KindInvalidArgument
	// KindStopped is returned once a queue has been shut down via Stop.
	KindStopped
	// KindEmpty is returned by Dequeue when no item is available at the
	// linearization point.
	KindEmpty
	// KindAllocationFailed is returned when the node pool cannot produce a
	// cell (only reachable with a bounded pool configuration).
	KindAllocationFailed
	// KindRetryLimitExceeded is returned when a CAS retry loop exceeds its
	// configured total-retry ceiling under extreme contention.
	KindRetryLimitExceeded
)

// String renders a human-readable Kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindStopped:
		return "stopped"
	case KindEmpty:
		return "empty"
	case KindAllocationFailed:
		return "allocation_failed"
	case KindRetryLimitExceeded:
		return "retry_limit_exceeded"
	default:
		return "unknown"
	}
}

// QueueError is the concrete error type returned at the queue boundary.
type QueueError struct {
	// Kind discriminates the failure for programmatic handling.
	Kind Kind
	// Op names the operation that failed, e.g. "enqueue", "dequeue".
	Op string
	// Err is an optional underlying cause (e.g. the node pool's allocation
	// error). May be nil.
	Err error
}

// Error implements error.
func (e *QueueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jobqueue: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("jobqueue: %s: %s", e.Op, e.Kind)
}

// Unwrap enables errors.Is/As against the wrapped cause.
func (e *QueueError) Unwrap() error { return e.Err }

// New constructs a *QueueError with no underlying cause.
func New(op string, kind Kind) *QueueError {
	return &QueueError{Op: op, Kind: kind}
}

// Wrap constructs a *QueueError with an underlying cause.
func Wrap(op string, kind Kind, cause error) *QueueError {
	return &QueueError{Op: op, Kind: kind, Err: cause}
}

// Is reports whether err is a *QueueError of the given Kind.
func Is(err error, kind Kind) bool {
	var qe *QueueError
	if errors.As(err, &qe) {
		return qe.Kind == kind
	}
	return false
}
