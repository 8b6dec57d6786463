package pgephemeral

import (
	"fmt"
	"time"
)

// Readiness polling defaults, mirroring the classic 100 x 100ms connect
// loop used for local postgres containers.
const (
	DefaultReadyTimeout = 30 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// WaitUntilReady invokes probe at a fixed interval until it succeeds or
// timeout elapses, sleeping the calling goroutine between attempts. Probe
// failures are treated uniformly; only success versus exhaustion matters.
//
// If timeout is smaller than one interval, exactly one probe attempt is
// made before the timeout is declared. On exhaustion the returned error
// wraps ErrTimedOut and records the last probe failure.
func WaitUntilReady(probe func() error, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	start := time.Now()
	deadline := start.Add(timeout)

	var lastErr error
	attempts := 0
	for {
		attempts++
		lastErr = probe()
		if lastErr == nil {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if remaining < interval {
			// Not enough budget for a full interval plus another attempt;
			// sleep out the rest so the elapsed time approximates timeout.
			time.Sleep(remaining)
			break
		}
		time.Sleep(interval)
	}

	return fmt.Errorf("%w after %d attempt(s) over %s: %v",
		ErrTimedOut, attempts, time.Since(start).Round(time.Millisecond), lastErr)
}
