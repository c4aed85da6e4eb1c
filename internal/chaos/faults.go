// internal/chaos/faults.go
package chaos

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"posnexus/internal/checkout"
)

var ErrInjectedFailure = errors.New("chaos: injected sales service failure")

// FaultyCommitter wraps a committer with injected failures and latency.
type FaultyCommitter struct {
	next checkout.SaleCommitter

	mu       sync.Mutex
	failRate float64
	latency  time.Duration
	rnd      *rand.Rand
}

func NewFaultyCommitter(next checkout.SaleCommitter, seed uint64) *FaultyCommitter {
	return &FaultyCommitter{
		next: next,
		rnd:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// SetFailureRate sets the share of calls, 0 to 1, that fail before reaching
// the wrapped committer.
func (f *FaultyCommitter) SetFailureRate(rate float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRate = min(max(rate, 0), 1)
}

// SetLatency delays every call. A call whose context ends first never
// reaches the wrapped committer.
func (f *FaultyCommitter) SetLatency(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = d
}

func (f *FaultyCommitter) Reset() {
	f.SetFailureRate(0)
	f.SetLatency(0)
}

func (f *FaultyCommitter) CommitSale(ctx context.Context, sale checkout.Sale) error {
	f.mu.Lock()
	fail := f.failRate > 0 && f.rnd.Float64() < f.failRate
	latency := f.latency
	f.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if fail {
		return ErrInjectedFailure
	}
	return f.next.CommitSale(ctx, sale)
}

// FlappingConnectivity alternates between online and offline every period
// probes while enabled, and reports online otherwise.
type FlappingConnectivity struct {
	period  int64
	enabled atomic.Bool
	calls   atomic.Int64
}

func NewFlappingConnectivity(period int) *FlappingConnectivity {
	if period <= 0 {
		period = 1
	}
	return &FlappingConnectivity{period: int64(period)}
}

func (c *FlappingConnectivity) SetEnabled(v bool) {
	c.enabled.Store(v)
}

func (c *FlappingConnectivity) Online(context.Context) bool {
	n := c.calls.Add(1) - 1
	if !c.enabled.Load() {
		return true
	}
	return (n/c.period)%2 == 0
}
