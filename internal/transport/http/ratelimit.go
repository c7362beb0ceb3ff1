package http

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter allows perMinute inbound frames per minute with bursts of
// the same size. perMinute <= 0 disables limiting.
func newRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func allowFrame(l *rate.Limiter) bool {
	return l == nil || l.Allow()
}
