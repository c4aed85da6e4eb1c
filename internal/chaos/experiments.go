// internal/chaos/experiments.go
package chaos

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WorkloadOptions shapes the checkout workload behind every experiment.
type WorkloadOptions struct {
	Seed          uint64
	CommitTimeout time.Duration
	FlapPeriod    int
}

// Lab builds the sale-safety experiments.
type Lab struct {
	Checkouts   int
	Options     WorkloadOptions
	Duration    time.Duration
	SampleEvery time.Duration
	Logger      *zap.Logger
}

// Experiments returns every predefined experiment, each with its own
// fresh workload.
func (l Lab) Experiments() []Experiment {
	return []Experiment{
		l.SalesServiceOutageExperiment(),
		l.FlakySalesServiceExperiment(0.5),
		l.SlowSalesServiceExperiment(),
		l.ConnectivityFlappingExperiment(),
		l.OfflineQueueFailureExperiment(),
	}
}

func (l Lab) workload() *Workload {
	opts := l.Options
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = 50 * time.Millisecond
	}
	return NewWorkload(l.Checkouts, opts, l.Logger)
}

// saleSafety is the steady state and hypothesis shared by every
// experiment: no accepted sale is lost and none is recorded twice.
func (l Lab) saleSafety(name, hypothesis string, w *Workload, method, rollback []Action, extra ...Assertion) Experiment {
	metrics := []Metric{
		{
			Name:      "lost_sales",
			Query:     func(context.Context) (float64, error) { return w.Lost(), nil },
			Threshold: Threshold{Operator: "==", Value: 0},
		},
		{
			Name:      "double_recorded_sales",
			Query:     func(context.Context) (float64, error) { return w.DoubleRecorded(), nil },
			Threshold: Threshold{Operator: "==", Value: 0},
		},
		{
			Name:      "queued_sales",
			Query:     func(context.Context) (float64, error) { return w.Queued(), nil },
			Threshold: Threshold{Operator: ">=", Value: 0},
		},
		{
			Name:      "accepted_sales",
			Query:     func(context.Context) (float64, error) { return w.Accepted(), nil },
			Threshold: Threshold{Operator: ">=", Value: 0},
		},
	}

	validation := append([]Assertion{
		{
			Metric:    "lost_sales",
			Condition: func(v float64) bool { return v == 0 },
			Message:   "No accepted sale may be lost",
		},
		{
			Metric:    "double_recorded_sales",
			Condition: func(v float64) bool { return v == 0 },
			Message:   "No sale may be both committed and queued",
		},
	}, extra...)

	return Experiment{
		Name:        name,
		Hypothesis:  hypothesis,
		SteadyState: metrics,
		Method:      method,
		Rollback:    rollback,
		Validation:  validation,
		Duration:    l.Duration,
		SampleEvery: l.SampleEvery,
	}
}

func (l Lab) SalesServiceOutageExperiment() Experiment {
	w := l.workload()
	n := float64(l.Checkouts)
	return l.saleSafety(
		"sales-service-outage",
		"Every sale is queued offline when the sales service rejects all commits",
		w,
		[]Action{{
			Type:   "inject-failure",
			Target: "sales-service",
			Execute: func(ctx context.Context) error {
				w.Faults.SetFailureRate(1)
				return w.Run(ctx)
			},
		}},
		[]Action{{Type: "restore", Target: "sales-service", Execute: resetFaults(w)}},
		Assertion{
			Metric:    "queued_sales",
			Condition: func(v float64) bool { return v == n },
			Message:   "All sales should be in the offline queue",
		},
	)
}

func (l Lab) FlakySalesServiceExperiment(rate float64) Experiment {
	w := l.workload()
	n := float64(l.Checkouts)
	return l.saleSafety(
		"sales-service-flaky",
		"Sales are either committed or queued when a share of commits fail",
		w,
		[]Action{{
			Type:   "inject-failure",
			Target: "sales-service",
			Execute: func(ctx context.Context) error {
				w.Faults.SetFailureRate(rate)
				return w.Run(ctx)
			},
		}},
		[]Action{{Type: "restore", Target: "sales-service", Execute: resetFaults(w)}},
		Assertion{
			Metric:    "accepted_sales",
			Condition: func(v float64) bool { return v == n },
			Message:   "Every checkout should be accepted",
		},
	)
}

func (l Lab) SlowSalesServiceExperiment() Experiment {
	w := l.workload()
	return l.saleSafety(
		"sales-service-latency",
		"Commits slower than the timeout fall back to the offline queue",
		w,
		[]Action{{
			Type:   "inject-latency",
			Target: "sales-service",
			Execute: func(ctx context.Context) error {
				timeout := l.Options.CommitTimeout
				if timeout <= 0 {
					timeout = 50 * time.Millisecond
				}
				w.Faults.SetLatency(2 * timeout)
				return w.Run(ctx)
			},
		}},
		[]Action{{Type: "remove-latency", Target: "sales-service", Execute: resetFaults(w)}},
	)
}

func (l Lab) ConnectivityFlappingExperiment() Experiment {
	w := l.workload()
	return l.saleSafety(
		"connectivity-flapping",
		"Sales taken while the link flaps are committed or queued, never both",
		w,
		[]Action{{
			Type:   "network-partition",
			Target: "uplink",
			Execute: func(ctx context.Context) error {
				w.Link.SetEnabled(true)
				return w.Run(ctx)
			},
		}},
		[]Action{{
			Type:   "heal-partition",
			Target: "uplink",
			Execute: func(context.Context) error {
				w.Link.SetEnabled(false)
				return nil
			},
		}},
	)
}

func (l Lab) OfflineQueueFailureExperiment() Experiment {
	w := l.workload()
	return l.saleSafety(
		"offline-queue-failure",
		"When both the sales service and the offline queue fail, no sale is reported as taken",
		w,
		[]Action{{
			Type:   "inject-failure",
			Target: "offline-queue",
			Execute: func(ctx context.Context) error {
				w.Faults.SetFailureRate(1)
				w.Queue.FailWrites(ErrInjectedFailure)
				return w.Run(ctx)
			},
		}},
		[]Action{{
			Type:   "restore",
			Target: "offline-queue",
			Execute: func(ctx context.Context) error {
				w.Queue.FailWrites(nil)
				return resetFaults(w)(ctx)
			},
		}},
		Assertion{
			Metric:    "accepted_sales",
			Condition: func(v float64) bool { return v == 0 },
			Message:   "No checkout should be accepted without durable storage",
		},
	)
}

func resetFaults(w *Workload) func(context.Context) error {
	return func(context.Context) error {
		w.Faults.Reset()
		return nil
	}
}
