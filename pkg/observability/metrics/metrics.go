// Package metrics defines the Prometheus counters each module records.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "frag_arena"

// Operations is the per-operation telemetry every application service records.
type Operations interface {
	RecordOperationAttempt(ctx context.Context, operation string)
	RecordOperationSuccess(ctx context.Context, operation string)
	RecordOperationFailure(ctx context.Context, operation string)
	RecordOperationDuration(ctx context.Context, operation string, d time.Duration)
	RecordHandlerAttempt(ctx context.Context, handlerName string)
	RecordHandlerFailure(ctx context.Context, handlerName string)
}

// MatchMetrics is what the match lifecycle records.
type MatchMetrics interface {
	Operations
	RecordMatchFinished(ctx context.Context, mode string, forced bool)
	RecordMatchCancelled(ctx context.Context, reason string)
	RecordEvidence(ctx context.Context, source string)
	RecordProvisioningFailure(ctx context.Context)
	RecordTeardownFailure(ctx context.Context)
}

// MatchmakingMetrics is what the pairing engine records.
type MatchmakingMetrics interface {
	Operations
	RecordTick(ctx context.Context, mode string, queued, paired int)
}

type operations struct {
	attempts  *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	handlers  *prometheus.CounterVec
	hfailures *prometheus.CounterVec
}

func newOperations(reg prometheus.Registerer, subsystem string) operations {
	o := operations{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_attempts_total", Help: "Service operations started.",
		}, []string{"operation"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_outcomes_total", Help: "Service operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_duration_seconds", Help: "Service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		handlers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "handler_attempts_total", Help: "Event handler invocations.",
		}, []string{"handler"}),
		hfailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "handler_failures_total", Help: "Event handler invocations that returned an error.",
		}, []string{"handler"}),
	}
	reg.MustRegister(o.attempts, o.outcomes, o.duration, o.handlers, o.hfailures)
	return o
}

func (o operations) RecordOperationAttempt(_ context.Context, operation string) {
	o.attempts.WithLabelValues(operation).Inc()
}

func (o operations) RecordOperationSuccess(_ context.Context, operation string) {
	o.outcomes.WithLabelValues(operation, "success").Inc()
}

func (o operations) RecordOperationFailure(_ context.Context, operation string) {
	o.outcomes.WithLabelValues(operation, "failure").Inc()
}

func (o operations) RecordOperationDuration(_ context.Context, operation string, d time.Duration) {
	o.duration.WithLabelValues(operation).Observe(d.Seconds())
}

func (o operations) RecordHandlerAttempt(_ context.Context, handlerName string) {
	o.handlers.WithLabelValues(handlerName).Inc()
}

func (o operations) RecordHandlerFailure(_ context.Context, handlerName string) {
	o.hfailures.WithLabelValues(handlerName).Inc()
}

type matchMetrics struct {
	operations
	finished     *prometheus.CounterVec
	cancelled    *prometheus.CounterVec
	evidence     *prometheus.CounterVec
	provisioning prometheus.Counter
	teardown     prometheus.Counter
}

// NewMatchMetrics registers the match counters on reg.
func NewMatchMetrics(reg prometheus.Registerer) MatchMetrics {
	m := &matchMetrics{
		operations: newOperations(reg, "match"),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "matches_finished_total", Help: "Matches settled.",
		}, []string{"mode", "forced"}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "matches_cancelled_total", Help: "Matches cancelled by reason.",
		}, []string{"reason"}),
		evidence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "evidence_received_total", Help: "Server evidence reconciled by source.",
		}, []string{"source"}),
		provisioning: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "provisioning_failures_total", Help: "Provider create calls that failed.",
		}),
		teardown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "teardown_failures_total", Help: "Server stop or delete calls that failed.",
		}),
	}
	reg.MustRegister(m.finished, m.cancelled, m.evidence, m.provisioning, m.teardown)
	return m
}

func (m *matchMetrics) RecordMatchFinished(_ context.Context, mode string, forced bool) {
	label := "false"
	if forced {
		label = "true"
	}
	m.finished.WithLabelValues(mode, label).Inc()
}

func (m *matchMetrics) RecordMatchCancelled(_ context.Context, reason string) {
	m.cancelled.WithLabelValues(reason).Inc()
}

func (m *matchMetrics) RecordEvidence(_ context.Context, source string) {
	m.evidence.WithLabelValues(source).Inc()
}

func (m *matchMetrics) RecordProvisioningFailure(context.Context) { m.provisioning.Inc() }

func (m *matchMetrics) RecordTeardownFailure(context.Context) { m.teardown.Inc() }

type matchmakingMetrics struct {
	operations
	queued *prometheus.GaugeVec
	paired *prometheus.CounterVec
}

// NewMatchmakingMetrics registers the pairing counters on reg.
func NewMatchmakingMetrics(reg prometheus.Registerer) MatchmakingMetrics {
	m := &matchmakingMetrics{
		operations: newOperations(reg, "matchmaking"),
		queued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "matchmaking",
			Name: "queue_size", Help: "Eligible queue entries seen by the last tick.",
		}, []string{"mode"}),
		paired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "matchmaking",
			Name: "matches_created_total", Help: "Matches formed by the pairing engine.",
		}, []string{"mode"}),
	}
	reg.MustRegister(m.queued, m.paired)
	return m
}

func (m *matchmakingMetrics) RecordTick(_ context.Context, mode string, queued, paired int) {
	m.queued.WithLabelValues(mode).Set(float64(queued))
	m.paired.WithLabelValues(mode).Add(float64(paired))
}

// Noop discards everything. Tests use it where counters are not under test.
type Noop struct{}

func (Noop) RecordOperationAttempt(context.Context, string)                 {}
func (Noop) RecordOperationSuccess(context.Context, string)                 {}
func (Noop) RecordOperationFailure(context.Context, string)                 {}
func (Noop) RecordOperationDuration(context.Context, string, time.Duration) {}
func (Noop) RecordHandlerAttempt(context.Context, string)                   {}
func (Noop) RecordHandlerFailure(context.Context, string)                   {}
func (Noop) RecordMatchFinished(context.Context, string, bool)              {}
func (Noop) RecordMatchCancelled(context.Context, string)                   {}
func (Noop) RecordEvidence(context.Context, string)                         {}
func (Noop) RecordProvisioningFailure(context.Context)                      {}
func (Noop) RecordTeardownFailure(context.Context)                          {}
func (Noop) RecordTick(context.Context, string, int, int)                   {}

var (
	_ MatchMetrics       = Noop{}
	_ MatchmakingMetrics = Noop{}
)
