package ratelimit

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultWindow is the minimum spacing between two OCR requests from the same caller.
const DefaultWindow = 300 * time.Second

// Limiter decides whether a caller may proceed and records the attempt in one step.
type Limiter interface {
	CheckAndRecord(key string) bool
}

// WindowLimiter allows one request per key per window.
// Entries live in a TTL cache, so memory is bounded by the number of callers
// seen within one window.
type WindowLimiter struct {
	window time.Duration
	cache  *cache.Cache
	now    func() time.Time
}

// NewWindowLimiter returns a WindowLimiter, or Unlimited when window <= 0.
func NewWindowLimiter(window time.Duration) Limiter {
	if window <= 0 {
		return Unlimited{}
	}
	cleanup := window
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &WindowLimiter{
		window: window,
		cache:  cache.New(window, cleanup),
		now:    time.Now,
	}
}

// CheckAndRecord is atomic: cache.Add fails while an unexpired entry exists.
func (l *WindowLimiter) CheckAndRecord(key string) bool {
	return l.cache.Add(key, l.now(), l.window) == nil
}

// RetryAfter reports how long key must wait, or 0 if it may proceed now.
func (l *WindowLimiter) RetryAfter(key string) time.Duration {
	v, ok := l.cache.Get(key)
	if !ok {
		return 0
	}
	last, ok := v.(time.Time)
	if !ok {
		return 0
	}
	wait := l.window - l.now().Sub(last)
	if wait < 0 {
		return 0
	}
	return wait
}

// Unlimited never throttles.
type Unlimited struct{}

func (Unlimited) CheckAndRecord(string) bool { return true }
