package pgephemeral

import "errors"

// Sentinel errors for the fixture lifecycle. Results wrap these with
// fmt.Errorf("%w: ...") so callers can classify failures with errors.Is
// while still seeing the underlying cause.
var (
	// ErrProvisionFailed indicates the server container could not be
	// created or started. An unreachable container engine also maps here;
	// it gets no distinct kind.
	ErrProvisionFailed = errors.New("pgephemeral: server provisioning failed")

	// ErrNotReady indicates the server came up but never accepted a
	// connection within the readiness timeout. The callback was not invoked.
	ErrNotReady = errors.New("pgephemeral: server not ready")

	// ErrTimedOut is returned by WaitUntilReady when the probe never
	// succeeded before the timeout elapsed.
	ErrTimedOut = errors.New("pgephemeral: readiness polling timed out")

	// ErrCreateFailed indicates the scope could not create its database,
	// including failure to open the administrative connection.
	ErrCreateFailed = errors.New("pgephemeral: database creation failed")

	// ErrNameCollision indicates a generated database name already existed
	// on the server. Creation is retried once with a fresh name before this
	// surfaces.
	ErrNameCollision = errors.New("pgephemeral: generated database name already exists")

	// ErrCallbackFailed wraps an error returned (or a panic raised) by the
	// caller's callback. The infrastructure itself is healthy; the original
	// error remains reachable through errors.Is/errors.As.
	ErrCallbackFailed = errors.New("pgephemeral: callback failed")

	// ErrDropFailed indicates the temporary database (or its owner role)
	// could not be dropped during teardown.
	ErrDropFailed = errors.New("pgephemeral: database drop failed")

	// ErrTeardownFailed indicates the server container could not be stopped
	// and removed, leaving it in an indeterminate state.
	ErrTeardownFailed = errors.New("pgephemeral: server teardown failed")
)

// IsInfrastructureError reports whether err represents a failure of the
// fixture machinery itself rather than of caller-supplied test logic.
func IsInfrastructureError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrCallbackFailed)
}
