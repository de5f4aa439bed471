package dispatch

import (
	"math"
	"time"
)

// Backoff returns the delay before retry number retry (1-indexed):
// base * 2^(retry-1). Results that would overflow saturate at the largest duration.
func Backoff(base time.Duration, retry int) time.Duration {
	if base <= 0 {
		return 0
	}
	if retry < 1 {
		retry = 1
	}
	d := float64(base) * math.Pow(2, float64(retry-1))
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
