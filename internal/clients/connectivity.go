// internal/clients/connectivity.go
package clients

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultProbeInterval = 5 * time.Second

// BreakerState is implemented by clients guarded by a circuit breaker.
type BreakerState interface {
	BreakerOpen() bool
}

// ConnectivityProbe answers checkout.Connectivity by polling the sales
// service health endpoint. Results are cached for the probe interval.
type ConnectivityProbe struct {
	healthURL string
	http      *http.Client
	breaker   BreakerState
	interval  time.Duration
	forced    atomic.Bool

	mu        sync.Mutex
	checkedAt time.Time
	online    bool
	now       func() time.Time
}

func NewConnectivityProbe(baseURL string, breaker BreakerState, interval time.Duration) *ConnectivityProbe {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &ConnectivityProbe{
		healthURL: fmt.Sprintf("%s/health", baseURL),
		http:      &http.Client{Timeout: 2 * time.Second},
		breaker:   breaker,
		interval:  interval,
		now:       time.Now,
	}
}

// SetForceOffline pins the probe to offline until cleared.
func (p *ConnectivityProbe) SetForceOffline(v bool) {
	p.forced.Store(v)
}

func (p *ConnectivityProbe) Online(ctx context.Context) bool {
	if p.forced.Load() {
		return false
	}
	if p.breaker != nil && p.breaker.BreakerOpen() {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.checkedAt.IsZero() && now.Sub(p.checkedAt) < p.interval {
		return p.online
	}

	ok := p.check(ctx)
	if ctx.Err() != nil {
		// A cancelled caller says nothing about the upstream.
		return ok
	}
	p.online = ok
	p.checkedAt = now
	return p.online
}

func (p *ConnectivityProbe) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
