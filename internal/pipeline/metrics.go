package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Step names used as metric labels and span names.
const (
	stepClassify  = "classify"
	stepContext   = "context"
	stepExtract   = "extract"
	stepEnrich    = "enrich"
	stepTemplate  = "template"
	stepCreate    = "create"
	stepGenerate  = "generate"
	stepReview    = "review"
	stepLink      = "link"
	stepPersist   = "persist"
	stepConflicts = "conflicts"
)

// Metrics records pipeline runs and steps.
type Metrics struct {
	// Runs counts runs by route (single, hierarchy) and outcome
	// (success, partial, failure).
	Runs *prometheus.CounterVec
	// StepDuration observes each step.
	StepDuration *prometheus.HistogramVec
	// Fallbacks counts degraded steps: ai_extract, ai_enrich,
	// ai_context, legacy_template.
	Fallbacks *prometheus.CounterVec
	// ItemsCreated counts tracker items by type.
	ItemsCreated *prometheus.CounterVec
	// PersistErrors counts failed store writes.
	PersistErrors prometheus.Counter
}

// NewMetrics registers the pipeline metrics with reg. A nil reg uses a
// private registry, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pm",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by route and outcome",
		}, []string{"route", "outcome"}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pm",
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Duration of pipeline steps in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"}),
		Fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pm",
			Subsystem: "pipeline",
			Name:      "fallbacks_total",
			Help:      "Steps that degraded to rule-based or legacy behavior",
		}, []string{"kind"}),
		ItemsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pm",
			Subsystem: "tracker",
			Name:      "items_created_total",
			Help:      "Items created in the tracker by type",
		}, []string{"item_type"}),
		PersistErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pm",
			Subsystem: "pipeline",
			Name:      "persist_errors_total",
			Help:      "Failed writes to the blob store",
		}),
	}
}

func (m *Metrics) observe(step string, start time.Time) {
	m.StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}
