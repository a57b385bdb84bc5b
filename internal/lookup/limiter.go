package lookup

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of a rate-limit check. Degraded means the request
// is still allowed but the key is burning through its budget; callers track
// it without blocking the lookup.
type Decision struct {
	Allowed    bool
	Degraded   bool
	RetryAfter time.Duration
}

// Limiter applies a token bucket per conversation/order/IP key to the guest
// order-lookup collaborator.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    rate.Limit
	burst    int
	degraded float64 // remaining-token threshold below which Allowed turns Degraded
	maxIdle  time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a limiter allowing the given number of lookups per
// minute with the given burst.
func NewLimiter(perMinute int, burst int) *Limiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	if burst <= 0 {
		burst = 2
	}
	return &Limiter{
		buckets:  make(map[string]*bucket),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		degraded: 1.0,
		maxIdle:  30 * time.Minute,
	}
}

// Key builds the composite limiter key.
func Key(conversationID, orderID, remoteIP string) string {
	return fmt.Sprintf("%s|%s|%s", conversationID, orderID, remoteIP)
}

// Check consumes one token for key and returns the decision.
func (l *Limiter) Check(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		// lastSeen must be set before pruning so the new bucket is not
		// itself collected as idle.
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
		l.buckets[key] = b
		l.pruneLocked(now)
	}
	b.lastSeen = now

	r := b.lim.Reserve()
	if !r.OK() {
		return Decision{Allowed: false}
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		slog.Debug("order lookup throttled", "key", key, "retry_after", delay)
		return Decision{Allowed: false, RetryAfter: delay}
	}

	d := Decision{Allowed: true, Degraded: b.lim.Tokens() < l.degraded}
	if d.Degraded {
		slog.Warn("order lookup rate budget nearly exhausted", "key", key)
	}
	return d
}

// pruneLocked drops buckets idle longer than maxIdle. Called with the lock
// held, on the new-bucket path only, so steady-state checks stay cheap.
func (l *Limiter) pruneLocked(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.maxIdle {
			delete(l.buckets, k)
		}
	}
}
