// Package basic provides the default request policy: a per-user token bucket
// on top of the monthly generation quota.
package basic

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused user limiter is kept.
const DefaultIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Policy limits each user to perMinute requests with a burst of burst.
// A zero perMinute allows everything.
type Policy struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

// NewPolicy creates a policy. burst below 1 is raised to 1.
func NewPolicy(perMinute, burst int) *Policy {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Policy{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
	}
}

// Allow reports whether userID may make a request now. When it may not,
// retryAfter is how long until the next token.
func (p *Policy) Allow(userID string) (ok bool, retryAfter time.Duration) {
	if p.limit == rate.Inf {
		return true, 0
	}

	now := p.now()
	p.mu.Lock()
	v, exists := p.visitors[userID]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.visitors[userID] = v
	}
	v.lastSeen = now
	p.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Sweep drops limiters idle for longer than the idle TTL and returns how
// many were removed.
func (p *Policy) Sweep() int {
	cutoff := p.now().Add(-p.idleTTL)

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, v := range p.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(p.visitors, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked users.
func (p *Policy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.visitors)
}
