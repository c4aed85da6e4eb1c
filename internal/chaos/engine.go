// internal/chaos/engine.go
package chaos

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Experiment defines a chaos engineering test
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	Duration    time.Duration
	SampleEvery time.Duration
}

// Metric defines a measurable system property
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action represents a fault injection, workload or recovery step
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion validates experiment outcome against the final observation
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

type ExperimentResult struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	Failed           []string               `json:"failed_assertions,omitempty"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
	MTTR             *time.Duration         `json:"mttr,omitempty"`
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

var ErrSteadyStateInvalid = errors.New("steady state invalid - aborting experiment")

// Engine orchestrates chaos experiments
type Engine struct {
	tracer  trace.Tracer
	logger  *zap.Logger
	mu      sync.Mutex
	results []ExperimentResult
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		tracer: otel.Tracer("posnexus/chaos"),
		logger: logger,
	}
}

// Results returns every result recorded so far.
func (e *Engine) Results() []ExperimentResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ExperimentResult, len(e.results))
	copy(out, e.results)
	return out
}

// RunExperiment executes a single chaos experiment
func (e *Engine) RunExperiment(ctx context.Context, exp Experiment) (*ExperimentResult, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &ExperimentResult{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
		ErrorEvents:    make([]ErrorEvent, 0),
	}

	span.AddEvent("validating_steady_state")
	if valid, violations := e.validateSteadyState(ctx, exp.SteadyState); !valid {
		result.Violations = violations
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: action.Target,
			})
			span.RecordError(err)
		}
	}

	span.AddEvent("observing_system")
	e.observe(ctx, exp, result)

	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			span.RecordError(err)
		}
	}

	span.AddEvent("validating_assertions")
	result.HypothesisHeld, result.Failed = e.validateAssertions(exp.Validation, result)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

func (e *Engine) observe(ctx context.Context, exp Experiment, result *ExperimentResult) {
	every := exp.SampleEvery
	if every <= 0 {
		every = time.Second
	}
	observationCtx, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var recoveryStart time.Time
	recovered := false

	for {
		select {
		case <-observationCtx.Done():
			return
		case <-ticker.C:
		}

		for _, metric := range exp.SteadyState {
			value, err := metric.Query(ctx)
			now := time.Now()
			if err != nil {
				result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{Timestamp: now, Error: err.Error(), Component: metric.Name})
				continue
			}
			result.Observations[metric.Name] = append(result.Observations[metric.Name], DataPoint{Timestamp: now, Value: value})

			if !evaluateThreshold(value, metric.Threshold) {
				if recoveryStart.IsZero() {
					recoveryStart = now
				}
				result.Violations = append(result.Violations, MetricViolation{
					MetricName: metric.Name,
					Expected:   metric.Threshold.Value,
					Actual:     value,
					Timestamp:  now,
				})
			} else if !recoveryStart.IsZero() && !recovered {
				mttr := now.Sub(recoveryStart)
				result.MTTR = &mttr
				recovered = true
			}
		}
	}
}

func (e *Engine) validateSteadyState(ctx context.Context, metrics []Metric) (bool, []MetricViolation) {
	var violations []MetricViolation
	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			value = -1
		}
		if err != nil || !evaluateThreshold(value, metric.Threshold) {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}
	return len(violations) == 0, violations
}

func evaluateThreshold(value float64, threshold Threshold) bool {
	switch threshold.Operator {
	case ">":
		return value > threshold.Value
	case "<":
		return value < threshold.Value
	case ">=":
		return value >= threshold.Value
	case "<=":
		return value <= threshold.Value
	case "==":
		return value == threshold.Value
	default:
		return false
	}
}

func (e *Engine) validateAssertions(assertions []Assertion, result *ExperimentResult) (bool, []string) {
	var failed []string
	for _, a := range assertions {
		observations := result.Observations[a.Metric]
		if len(observations) == 0 || !a.Condition(observations[len(observations)-1].Value) {
			failed = append(failed, a.Message)
		}
	}
	return len(failed) == 0, failed
}

// GameDay orchestrates a series of chaos experiments.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
	Pause     time.Duration
}

// ExecuteGameDay runs every scenario and reports whether all hypotheses held.
func (e *Engine) ExecuteGameDay(ctx context.Context, gameDay GameDay) (bool, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("gameday.name", gameDay.Name)),
	)
	defer span.End()

	e.logger.Info("starting game day",
		zap.String("name", gameDay.Name),
		zap.Time("date", gameDay.Date),
		zap.Int("scenarios", len(gameDay.Scenarios)),
	)

	allHeld := true
	for i, scenario := range gameDay.Scenarios {
		e.logger.Info("running experiment",
			zap.Int("index", i+1),
			zap.String("name", scenario.Name),
			zap.String("hypothesis", scenario.Hypothesis),
		)

		result, err := e.RunExperiment(ctx, scenario)
		if err != nil {
			e.logger.Error("experiment aborted", zap.String("name", scenario.Name), zap.Error(err))
			allHeld = false
			continue
		}
		e.logResult(result)
		allHeld = allHeld && result.HypothesisHeld

		if gameDay.Pause > 0 && i < len(gameDay.Scenarios)-1 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(gameDay.Pause):
			}
		}
	}
	return allHeld, nil
}

func (e *Engine) logResult(result *ExperimentResult) {
	fields := []zap.Field{
		zap.String("name", result.ExperimentName),
		zap.Bool("hypothesis_held", result.HypothesisHeld),
		zap.Int("violations", len(result.Violations)),
		zap.Int("error_events", len(result.ErrorEvents)),
		zap.Duration("duration", result.Duration),
	}
	if result.MTTR != nil {
		fields = append(fields, zap.Duration("mttr", *result.MTTR))
	}
	if result.HypothesisHeld {
		e.logger.Info("hypothesis held", fields...)
		return
	}
	e.logger.Warn("hypothesis violated", append(fields, zap.Strings("failed", result.Failed))...)
}
