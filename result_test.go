package pgephemeral

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResultUnwrap verifies both slots are joined into one error.
func TestResultUnwrap(t *testing.T) {
	cbErr := fmt.Errorf("%w: %w", ErrCallbackFailed, errors.New("boom"))
	tdErr := fmt.Errorf("%w: stuck", ErrDropFailed)

	value, err := Result[int]{Value: 3, Err: cbErr, TeardownErr: tdErr}.Unwrap()
	assert.Equal(t, 3, value)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCallbackFailed)
	assert.ErrorIs(t, err, ErrDropFailed)

	value, err = Result[int]{Value: 7}.Unwrap()
	assert.Equal(t, 7, value)
	assert.NoError(t, err, "a clean result unwraps without error")
}

// TestResultClassification verifies the fixture-broke versus test-failed
// distinction across outcome combinations.
func TestResultClassification(t *testing.T) {
	testCases := []struct {
		name        string
		result      Result[int]
		failed      bool
		infraFailed bool
		cbFailed    bool
	}{
		{
			name:   "success",
			result: Result[int]{Value: 1},
		},
		{
			name:        "setup failure",
			result:      Result[int]{Err: fmt.Errorf("%w: no daemon", ErrProvisionFailed)},
			failed:      true,
			infraFailed: true,
		},
		{
			name:        "readiness timeout",
			result:      Result[int]{Err: fmt.Errorf("%w: %w", ErrNotReady, ErrTimedOut)},
			failed:      true,
			infraFailed: true,
		},
		{
			name:     "callback failure",
			result:   Result[int]{Err: fmt.Errorf("%w: assertion failed", ErrCallbackFailed)},
			failed:   true,
			cbFailed: true,
		},
		{
			name:        "teardown failure only",
			result:      Result[int]{TeardownErr: fmt.Errorf("%w: stuck", ErrTeardownFailed)},
			failed:      true,
			infraFailed: true,
		},
		{
			name: "callback and teardown failure",
			result: Result[int]{
				Err:         fmt.Errorf("%w: assertion failed", ErrCallbackFailed),
				TeardownErr: fmt.Errorf("%w: stuck", ErrDropFailed),
			},
			failed:      true,
			infraFailed: true,
			cbFailed:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.failed, tc.result.Failed(), "Failed()")
			assert.Equal(t, tc.infraFailed, tc.result.InfraFailed(), "InfraFailed()")
			assert.Equal(t, tc.cbFailed, tc.result.CallbackFailed(), "CallbackFailed()")
		})
	}
}

// TestIsInfrastructureError verifies the error-kind split used by
// InfraFailed.
func TestIsInfrastructureError(t *testing.T) {
	assert.False(t, IsInfrastructureError(nil))
	assert.False(t, IsInfrastructureError(fmt.Errorf("%w: boom", ErrCallbackFailed)))
	assert.True(t, IsInfrastructureError(fmt.Errorf("%w: boom", ErrCreateFailed)))
	assert.True(t, IsInfrastructureError(errors.New("anything else")))
}
