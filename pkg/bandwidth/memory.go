package bandwidth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxIdleBuckets = 10000

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per owner, refilled so that a full
// allowance is restored over one window.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
}

// NewMemoryLimiter builds an in-process limiter.
func NewMemoryLimiter(bytesPerWindow int64, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(bytesPerWindow) / window.Seconds()),
		burst:   int(bytesPerWindow),
		window:  window,
		now:     time.Now,
	}
}

// CheckAndConsume takes bytes tokens from the owner's bucket when available.
func (m *MemoryLimiter) CheckAndConsume(_ context.Context, ownerID string, bytes int64) (Decision, error) {
	now := m.now()
	limiter := m.bucketFor(ownerID, now)

	if bytes > int64(m.burst) {
		return Decision{Allowed: false, ResetTime: now.Add(m.window)}, nil
	}
	reservation := limiter.ReserveN(now, int(bytes))
	if !reservation.OK() {
		return Decision{Allowed: false, ResetTime: now.Add(m.window)}, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Decision{Allowed: false, ResetTime: now.Add(delay)}, nil
	}
	return Decision{Allowed: true}, nil
}

func (m *MemoryLimiter) bucketFor(ownerID string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[ownerID]
	if !ok {
		if len(m.buckets) >= maxIdleBuckets {
			m.evictIdle(now)
		}
		b = &bucket{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[ownerID] = b
	}
	b.lastSeen = now
	return b.limiter
}

// evictIdle drops buckets untouched for a full window; they would be full again anyway.
func (m *MemoryLimiter) evictIdle(now time.Time) {
	for id, b := range m.buckets {
		if now.Sub(b.lastSeen) >= m.window {
			delete(m.buckets, id)
		}
	}
}
