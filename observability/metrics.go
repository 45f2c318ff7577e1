package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the adjoint drivers
const TracerName = "github.com/notargets/DGAdjoint/adjoint"

// Tracer returns the driver tracer from tp, or from the global provider when tp is nil
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(TracerName)
}

// Metrics counts driver activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Segments      *prometheus.CounterVec   // Labels: phase (checkpoint, forward, replay)
	SolveRecords  *prometheus.CounterVec   // Labels: field
	Warnings      *prometheus.CounterVec   // Labels: kind
	PhaseDuration *prometheus.HistogramVec // Labels: phase
}

// NewMetrics creates the collectors and registers them on reg unless reg is nil
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ServiceName,
			Name:      "segments_total",
			Help:      "Segments solved, by phase",
		}, []string{"phase"}),
		SolveRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ServiceName,
			Name:      "solve_records_total",
			Help:      "Recorded solves extracted, by field",
		}, []string{"field"}),
		Warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ServiceName,
			Name:      "warnings_total",
			Help:      "Non fatal warnings emitted, by kind",
		}, []string{"kind"}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ServiceName,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of driver phases",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}, []string{"phase"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Segments, m.SolveRecords, m.Warnings, m.PhaseDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) SegmentDone(phase string) {
	if m == nil {
		return
	}
	m.Segments.WithLabelValues(phase).Inc()
}

func (m *Metrics) RecordsExtracted(field string, n int) {
	if m == nil {
		return
	}
	m.SolveRecords.WithLabelValues(field).Add(float64(n))
}

func (m *Metrics) Warning(kind string) {
	if m == nil {
		return
	}
	m.Warnings.WithLabelValues(kind).Inc()
}

// ObservePhase records the time elapsed since start
func (m *Metrics) ObservePhase(phase string, start time.Time) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
