package pgephemeral

import "errors"

// Result carries the outcome of one scope invocation in two slots: the
// primary outcome (setup failure, callback value, or callback failure) and
// the teardown outcome. Both slots are always populated independently so a
// teardown failure never masks a callback failure, and vice versa.
type Result[T any] struct {
	// Value is the callback's return value. Meaningful only when Err is nil
	// or wraps ErrCallbackFailed with a partial value.
	Value T

	// Err is the primary outcome: nil on success, a setup sentinel
	// (ErrProvisionFailed, ErrNotReady, ErrCreateFailed, ErrNameCollision)
	// when the callback never ran, or ErrCallbackFailed wrapping the
	// caller's own error.
	Err error

	// TeardownErr reports release failures (ErrTeardownFailed or
	// ErrDropFailed). The resource may have leaked; the primary outcome in
	// Err still stands.
	TeardownErr error
}

// Unwrap flattens the result into the conventional (value, error) pair,
// joining the primary and teardown slots. Callers that need to tell the two
// apart should inspect the fields directly.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, errors.Join(r.Err, r.TeardownErr)
}

// Failed reports whether anything went wrong, in either slot.
func (r Result[T]) Failed() bool {
	return r.Err != nil || r.TeardownErr != nil
}

// InfraFailed reports whether the fixture machinery itself broke, as
// opposed to the caller's test logic failing. Test frameworks can use this
// to report "fixture broke" separately from "test failed".
func (r Result[T]) InfraFailed() bool {
	if r.TeardownErr != nil {
		return true
	}
	return IsInfrastructureError(r.Err)
}

// CallbackFailed reports whether the primary outcome is a failure of the
// caller-supplied callback.
func (r Result[T]) CallbackFailed() bool {
	return errors.Is(r.Err, ErrCallbackFailed)
}
