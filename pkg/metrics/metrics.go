// Package metrics exposes a Prometheus registry for the capture
// pipeline, following the teacher's Registry/promauto.With pattern
// (pkg/metrics/metrics_types.go in the teacher repo) but scoped to the
// save pipeline's own instrumentation instead of cluster/replication
// metrics: hash cache effectiveness, extraction latency, and the
// fallback stage distribution per container format.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metrics emitted by the capture pipeline.
type Registry struct {
	HashCacheHitsTotal   prometheus.Counter
	HashCacheMissesTotal prometheus.Counter

	ExtractionDuration *prometheus.HistogramVec // labeled by container
	NodesEvaluatedTotal prometheus.Counter
	FieldsOmittedTotal  *prometheus.CounterVec // labeled by reason

	FallbackStageTotal *prometheus.CounterVec // labeled by stage
	EncoderRejectedTotal prometheus.Counter

	ScannerProposalsTotal prometheus.Counter
	ScannerBaselineCacheHitsTotal   prometheus.Counter
	ScannerBaselineCacheMissesTotal prometheus.Counter

	PersistenceWritesTotal *prometheus.CounterVec // labeled by mode
	BackupSetsPrunedTotal  prometheus.Counter

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a fresh metrics registry with all series
// initialized against their own prometheus.Registry, so multiple
// pipelines (e.g. in tests) don't collide on metric registration.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.HashCacheHitsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "nodemeta_hash_cache_hits_total",
		Help: "Number of hash cache lookups served from an existing sidecar.",
	})
	r.HashCacheMissesTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "nodemeta_hash_cache_misses_total",
		Help: "Number of hash cache lookups that required streaming the artifact.",
	})

	r.ExtractionDuration = promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nodemeta_extraction_duration_seconds",
		Help:    "Duration of one field-extraction pass over the traced node order.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"container"})

	r.NodesEvaluatedTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "nodemeta_nodes_evaluated_total",
		Help: "Total number of graph nodes evaluated by the field extractor.",
	})

	r.FieldsOmittedTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "nodemeta_fields_omitted_total",
		Help: "Fields omitted from the semantic field map, by reason.",
	}, []string{"reason"})

	r.FallbackStageTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "nodemeta_fallback_stage_total",
		Help: "Images written at each staged-encoder fallback stage.",
	}, []string{"stage"})

	r.EncoderRejectedTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "nodemeta_encoder_rejected_total",
		Help: "Number of times a container library refused an assembled metadata segment.",
	})

	r.ScannerProposalsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "nodemeta_scanner_proposals_total",
		Help: "Number of rule scanner proposals produced.",
	})
	r.ScannerBaselineCacheHitsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "nodemeta_scanner_baseline_cache_hits_total",
		Help: "Scanner baseline cache hits (no rebuild needed).",
	})
	r.ScannerBaselineCacheMissesTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "nodemeta_scanner_baseline_cache_misses_total",
		Help: "Scanner baseline cache misses (baseline rebuilt).",
	})

	r.PersistenceWritesTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "nodemeta_persistence_writes_total",
		Help: "User rule persistence writes, by save mode.",
	}, []string{"mode"})
	r.BackupSetsPrunedTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "nodemeta_backup_sets_pruned_total",
		Help: "Backup sets removed by retention pruning.",
	})

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

func (r *Registry) RecordHashCacheHit()  { r.HashCacheHitsTotal.Inc() }
func (r *Registry) RecordHashCacheMiss() { r.HashCacheMissesTotal.Inc() }

func (r *Registry) RecordExtraction(container string, d time.Duration) {
	r.ExtractionDuration.WithLabelValues(container).Observe(d.Seconds())
}

func (r *Registry) RecordFieldOmitted(reason string) {
	r.FieldsOmittedTotal.WithLabelValues(reason).Inc()
}

func (r *Registry) RecordFallbackStage(stage string) {
	r.FallbackStageTotal.WithLabelValues(stage).Inc()
}

func (r *Registry) RecordPersistenceWrite(mode string) {
	r.PersistenceWritesTotal.WithLabelValues(mode).Inc()
}
