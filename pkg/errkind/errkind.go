// Package errkind classifies errors into the four semantic kinds the core
// uses to decide propagation policy (spec.md §7): Transient, Invalid,
// Capacity, Fatal. The kinds are not Go error types the caller type-asserts
// against one by one; they're a single small enum attached to an error via
// Wrap, queried with KindOf.
package errkind

import "errors"

// Kind is the semantic class of an error.
type Kind int

const (
	// Unknown is the zero value; KindOf(err) returns this for plain errors
	// never wrapped through this package.
	Unknown Kind = iota
	// Transient errors are retry-class: network blips, rate limiting,
	// L2 timeouts. Propagation: logged + counted + absorbed.
	Transient
	// Invalid errors are malformed input: decoder failures, schema
	// mismatches, out-of-range profit. Propagation: DLQ (stream
	// consumers) or drop+count (decode path).
	Invalid
	// Capacity errors mean a budget would be exceeded: worker pool
	// saturated, warming already in-flight. Propagation: counted, no
	// user-visible error.
	Capacity
	// Fatal errors are program-invariant violations: negative reserves,
	// a pair vanishing after upsert. Propagation: process aborts after
	// flushing the last log line.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Invalid:
		return "invalid"
	case Capacity:
		return "capacity"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// Wrap attaches kind to err. A nil err returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf returns the semantic kind attached to err via Wrap, or Unknown if
// err was never wrapped (or is nil).
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
