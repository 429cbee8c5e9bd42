package queryengine

import (
	"sync"

	"golang.org/x/time/rate"
)

// PerAddressLimiter hands out an independent token-bucket limiter per
// remote address, used as admission control at the trace.info RPC
// boundary.
type PerAddressLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewPerAddressLimiter returns a limiter allowing r events per second per
// remote address, with burst capacity burst.
func NewPerAddressLimiter(r rate.Limit, burst int) *PerAddressLimiter {
	return &PerAddressLimiter{
		limiters: map[string]*rate.Limiter{},
		r:        r,
		burst:    burst,
	}
}

// Allow reports whether addr may make a request now, consuming one token
// from its bucket if so.
func (p *PerAddressLimiter) Allow(addr string) bool {
	p.mu.Lock()
	l, ok := p.limiters[addr]
	if !ok {
		l = rate.NewLimiter(p.r, p.burst)
		p.limiters[addr] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
