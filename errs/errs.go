// Package errs defines the error taxonomy shared by every disruption
// package: the core's steady-state operations (claim/publish/recv) are
// infallible given a correctly joined bus, so only the join and wipe
// paths return one of these; corruption detection panics instead (see
// PublishInvariantViolation).
package errs

import "fmt"

// Kind classifies a disruption error for callers that branch on failure
// mode rather than matching error strings.
type Kind int

const (
	// KindInvalidName means an address or username fell outside the
	// [1, 31]-byte bound or contained a path separator.
	KindInvalidName Kind = iota
	// KindDirectory means the directory was unreachable, a key was
	// missing or unparseable, or a count was <= 0.
	KindDirectory
	// KindShm means a shared-memory open/map/resize call failed.
	KindShm
	// KindMapping means join failed to map an expected peer arena.
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindInvalidName:
		return "invalid_name"
	case KindDirectory:
		return "directory"
	case KindShm:
		return "shm"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and enough diagnostic
// context (the teacher's handleError functions print "component('name')
// error: ..."; we keep the same flavor as a structured field instead of
// a formatted string) for logs.
type Error struct {
	Kind    Kind
	Op      string // e.g. "join", "directory.resolve_or_assign"
	Address string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("disruption: %s(%s): %s: %v", e.Op, e.Address, e.Kind, e.Cause)
	}
	return fmt.Sprintf("disruption: %s(%s): %s", e.Op, e.Address, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no underlying cause.
func New(kind Kind, op, address string) *Error {
	return &Error{Kind: kind, Op: op, Address: address}
}

// Wrap builds an *Error around an underlying cause.
func Wrap(kind Kind, op, address string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Address: address, Cause: cause}
}

// PublishInvariantViolation is raised (by panicking, not returning an
// error) when a slot points somewhere the ring layout says it cannot —
// e.g. a sender_id outside [0, MAX_CONNECTIONS). This is a programming
// error or cross-process corruption; the spec gives it no recovery path
// short of wipe-and-rejoin, so unlike every other Kind it is never
// handed back to a caller as a value.
type PublishInvariantViolation struct {
	Reason string
}

func (e *PublishInvariantViolation) Error() string {
	return fmt.Sprintf("disruption: publish invariant violation: %s", e.Reason)
}
