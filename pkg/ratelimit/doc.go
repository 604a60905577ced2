// Package ratelimit paces requests to the names API.
//
// TokenBucket hands out a fixed number of tokens per period and refills the
// bucket once the period has elapsed. NewPerMinute builds one from the
// upstream.requests_per_minute setting and returns Unlimited when pacing is
// disabled. Wait is context-aware so a cancelled run never blocks on the
// limiter.
package ratelimit
