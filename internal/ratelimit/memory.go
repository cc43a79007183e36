package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryTokenBucket is a single-process limiter with the same capacity and
// refill rate as RedisTokenBucket, one rate.Limiter per subject. Subjects idle
// for two windows are evicted; their bucket would be full again anyway.
type MemoryTokenBucket struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	buckets   map[string]*memoryBucket
	lastSweep time.Time
	now       func() time.Time
}

type memoryBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewMemoryTokenBucket(capacity int, window time.Duration) (*MemoryTokenBucket, error) {
	if _, err := refillRate(capacity, window); err != nil {
		return nil, err
	}
	return &MemoryTokenBucket{
		limit:   rate.Every(window / time.Duration(capacity)),
		burst:   capacity,
		ttl:     2 * window,
		buckets: make(map[string]*memoryBucket),
		now:     time.Now,
	}, nil
}

func (l *MemoryTokenBucket) Allow(_ context.Context, subject string) (Decision, error) {
	subject = normalizeSubject(subject)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)

	b, ok := l.buckets[subject]
	if !ok {
		b = &memoryBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[subject] = b
	}
	b.seen = now

	reservation := b.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	remaining := math.Floor(b.limiter.TokensAt(now))
	return Decision{Allowed: true, Remaining: int64(max(0, remaining))}, nil
}

func (l *MemoryTokenBucket) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.ttl {
		return
	}
	for subject, b := range l.buckets {
		if now.Sub(b.seen) >= l.ttl {
			delete(l.buckets, subject)
		}
	}
	l.lastSweep = now
}
