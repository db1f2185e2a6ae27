// Package retry provides the delay strategies used between download attempts.
//
// Strategies:
//   - ExponentialBackoff: Base * Multiplier^(n-1) capped at MaxDelay, plus jitter.
//     AuthBackoff returns the 2s, 4s, 8s ... schedule used after 401 responses.
//   - LinearBackoff: Step * n capped at MaxDelay, plus jitter.
//   - JitteredDelay: a fixed pause plus jitter, used to pace successful downloads.
//
// Jitter is drawn from a RandFunc so tests can pin it. Sleeping goes through
// the Sleeper interface; TimerSleeper honours context cancellation.
//
//	b := retry.AuthBackoff(120*time.Second, 5*time.Second)
//	if err := retry.Wait(ctx, b.NextDelay(attempt)); err != nil {
//		return err
//	}
package retry
