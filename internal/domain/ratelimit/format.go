package ratelimit

import (
	"strconv"
	"time"
)

// FormatResetTime renders the wait until resetAt as "45s" or "3min".
// Waits under a minute are shown in seconds, longer ones in whole minutes,
// both rounded up. A reset in the past renders as "0s".
func FormatResetTime(resetAt, now time.Time) string {
	d := resetAt.Sub(now)
	if d <= 0 {
		return "0s"
	}
	seconds := ceilDiv(int64(d), int64(time.Second))
	if d < time.Minute {
		return strconv.FormatInt(seconds, 10) + "s"
	}
	return strconv.FormatInt(ceilDiv(seconds, 60), 10) + "min"
}

// RetryAfterSeconds is the Retry-After header value for a reset instant,
// never less than one second.
func RetryAfterSeconds(resetAt, now time.Time) int64 {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	return ceilDiv(int64(d), int64(time.Second))
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
