// Package retry runs operations with bounded attempts and exponential backoff.
//
// A Config is an explicit policy value: attempt limit, backoff strategy,
// retry predicate and sleep function. Tests inject a fake Sleep so no real
// time passes.
//
//	cfg := retry.FromSettings(appConfig.Retry, log)
//	page, err := retry.DoWithResult(func() (*names.Page, error) {
//		return client.fetchOnce(ctx, category, page)
//	}, cfg)
//	if errors.Is(err, retry.ErrMaxAttemptsExceeded) {
//		// every attempt failed
//	}
//
// With the default backoff the waits after attempts 1..4 are 2s, 4s, 8s and
// 16s. No wait follows the final attempt.
package retry
