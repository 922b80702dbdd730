// Package metrics exposes the pilot's Prometheus instrumentation.
//
// A nil *Metrics is valid and records nothing, so components take metrics as
// an optional constructor dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "dagpilot"

// Label names.
const (
	LabelSource  = "source"
	LabelOutcome = "outcome"
	LabelReason  = "reason"
)

// Retrain outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
	OutcomeTimeout   = "timeout"
)

// Skip reasons.
const (
	ReasonMalformed = "malformed"
	ReasonPredict   = "predict_error"
	ReasonSend      = "send_error"
)

// Metrics holds the control-loop collectors.
type Metrics struct {
	ticksTotal      prometheus.Counter
	decisionsTotal  *prometheus.CounterVec
	skippedTotal    *prometheus.CounterVec
	retrainsTotal   *prometheus.CounterVec
	iteration       prometheus.Gauge
	expertProb      prometheus.Gauge
	windowSize      prometheus.Gauge
	predictDuration prometheus.Histogram
	fitDuration     prometheus.Histogram
	savedFrames     prometheus.Counter
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics creates the collectors and registers them with registry.
// A nil registry creates unregistered collectors.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "ticks_total",
			Help:      "Inbound messages processed by the control loop.",
		}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "decisions_total",
			Help:      "Commands sent, by the policy that produced them.",
		}, []string{LabelSource}),
		skippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "skipped_total",
			Help:      "Ticks that produced no command.",
		}, []string{LabelReason}),
		retrainsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "retrains_total",
			Help:      "Retraining phases by outcome.",
		}, []string{LabelOutcome}),
		iteration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "dagger_iteration",
			Help:      "Successful retrains so far.",
		}),
		expertProb: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "expert_probability",
			Help:      "Probability of acting on the expert at the current iteration.",
		}),
		windowSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "window_samples",
			Help:      "Samples recorded since the last retrain.",
		}),
		predictDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "predictor",
			Name:      "predict_duration_seconds",
			Help:      "Latency of Predict calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		fitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "predictor",
			Name:      "fit_duration_seconds",
			Help:      "Duration of Fit calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		savedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "saved_frames_total",
			Help:      "Frames written to session artifacts.",
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.ticksTotal,
			m.decisionsTotal,
			m.skippedTotal,
			m.retrainsTotal,
			m.iteration,
			m.expertProb,
			m.windowSize,
			m.predictDuration,
			m.fitDuration,
			m.savedFrames,
		)
	}
	return m
}

// ObserveTick counts one processed message and the current window size.
func (m *Metrics) ObserveTick(window int) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	m.windowSize.Set(float64(window))
}

// ObserveDecision counts a sent command by source.
func (m *Metrics) ObserveDecision(source string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(source).Inc()
}

// ObserveSkip counts a tick that sent nothing.
func (m *Metrics) ObserveSkip(reason string) {
	if m == nil {
		return
	}
	m.skippedTotal.WithLabelValues(reason).Inc()
}

// ObservePredict records Predict latency.
func (m *Metrics) ObservePredict(d time.Duration) {
	if m == nil {
		return
	}
	m.predictDuration.Observe(d.Seconds())
}

// ObserveRetrain records a retraining phase.
func (m *Metrics) ObserveRetrain(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.retrainsTotal.WithLabelValues(outcome).Inc()
	m.fitDuration.Observe(d.Seconds())
}

// SetIteration publishes the dagger iteration and its expert probability.
func (m *Metrics) SetIteration(iteration int64, expertProbability float64) {
	if m == nil {
		return
	}
	m.iteration.Set(float64(iteration))
	m.expertProb.Set(expertProbability)
}

// ObserveSave counts persisted frames.
func (m *Metrics) ObserveSave(frames int) {
	if m == nil {
		return
	}
	m.savedFrames.Add(float64(frames))
}
