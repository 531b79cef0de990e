package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter throttles feedback submissions per client address.
type clientLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	reset    time.Time
	now      func() time.Time
}

// newClientLimiter returns nil when perSecond is zero, which disables
// throttling.
func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		reset:    time.Now(),
		now:      time.Now,
	}
}

// Allow reports whether client may submit now.
func (l *clientLimiter) Allow(client string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Forget idle clients once an hour.
	if l.now().Sub(l.reset) > time.Hour {
		l.limiters = make(map[string]*rate.Limiter)
		l.reset = l.now()
	}

	lim, ok := l.limiters[client]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[client] = lim
	}
	return lim.AllowN(l.now(), 1)
}
