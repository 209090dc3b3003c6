package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrMissingPrice  = errors.New("reference price not available")
	ErrLockHeld      = errors.New("lock already held")
)

// FailureKind classifies an error by how the bot reacts to it.
type FailureKind int

const (
	// KindTransient covers stream drops and failed venue calls. Retried on
	// the owning loop's cadence.
	KindTransient FailureKind = iota + 1
	// KindMalformed covers a single bad message or market record. The item
	// is dropped.
	KindMalformed
	// KindInvariant covers benign no-ops such as a duplicate open.
	KindInvariant
	// KindConfig is fatal and only raised at startup.
	KindConfig
)

func (k FailureKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	case KindInvariant:
		return "invariant"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Failure tags an error with its FailureKind and the operation that
// produced it.
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Transient wraps err as a KindTransient failure.
func Transient(op string, err error) error {
	return &Failure{Kind: KindTransient, Op: op, Err: err}
}

// Malformed wraps err as a KindMalformed failure.
func Malformed(op string, err error) error {
	return &Failure{Kind: KindMalformed, Op: op, Err: err}
}

// Invariant wraps err as a KindInvariant failure.
func Invariant(op string, err error) error {
	return &Failure{Kind: KindInvariant, Op: op, Err: err}
}

// ConfigFailure wraps err as a KindConfig failure.
func ConfigFailure(op string, err error) error {
	return &Failure{Kind: KindConfig, Op: op, Err: err}
}

// KindOf reports the kind of the first Failure in err's chain.
func KindOf(err error) (FailureKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries a Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
