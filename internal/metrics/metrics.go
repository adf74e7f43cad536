package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Storage metrics
	EntitySavesTotal   *prometheus.CounterVec
	EntityDeletesTotal *prometheus.CounterVec
	StorageErrorsTotal prometheus.Counter
	OperationDuration  *prometheus.HistogramVec

	// Index metrics
	IndexedMemories prometheus.Gauge
	IndexedTasks    prometheus.Gauge
	IndexRebuilds   prometheus.Counter

	// Linker metrics
	EdgesCreatedTotal *prometheus.CounterVec

	// Automation metrics
	AutomationProposalsTotal *prometheus.CounterVec
	AutomationAppliedTotal   *prometheus.CounterVec
	AutomationRejectedTotal  prometheus.Counter
	AutomationAdvisories     prometheus.Counter

	// Deduplication metrics
	DedupGroupsTotal  prometheus.Counter
	DedupMergedTotal  prometheus.Counter
	DedupEdgeRewrites prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Storage metrics
		EntitySavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recall_entity_saves_total",
				Help: "Total number of entity writes by kind",
			},
			[]string{"kind"},
		),
		EntityDeletesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recall_entity_deletes_total",
				Help: "Total number of entity deletions by kind",
			},
			[]string{"kind"},
		),
		StorageErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recall_storage_errors_total",
				Help: "Total number of storage read/write failures",
			},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recall_operation_duration_seconds",
				Help:    "Duration of service operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// Index metrics
		IndexedMemories: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "recall_indexed_memories",
				Help: "Number of memories currently indexed",
			},
		),
		IndexedTasks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "recall_indexed_tasks",
				Help: "Number of tasks currently indexed",
			},
		),
		IndexRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recall_index_rebuilds_total",
				Help: "Total number of full index rebuilds",
			},
		),

		// Linker metrics
		EdgesCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recall_edges_created_total",
				Help: "Total number of connection edges written by origin",
			},
			[]string{"origin"},
		),

		// Automation metrics
		AutomationProposalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recall_automation_proposals_total",
				Help: "Total number of automation decisions proposed by rule",
			},
			[]string{"rule"},
		),
		AutomationAppliedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recall_automation_applied_total",
				Help: "Total number of automation decisions applied by rule",
			},
			[]string{"rule"},
		),
		AutomationRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recall_automation_rejected_total",
				Help: "Total number of automation decisions rejected at apply",
			},
		),
		AutomationAdvisories: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recall_automation_advisories_total",
				Help: "Total number of advisory suggestions surfaced",
			},
		),

		// Deduplication metrics
		DedupGroupsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recall_dedup_groups_total",
				Help: "Total number of duplicate groups detected",
			},
		),
		DedupMergedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recall_dedup_merged_total",
				Help: "Total number of duplicate entities merged away",
			},
		),
		DedupEdgeRewrites: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recall_dedup_edge_rewrites_total",
				Help: "Total number of edges re-pointed at dedup survivors",
			},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	// Storage metrics
	m.registry.MustRegister(m.EntitySavesTotal)
	m.registry.MustRegister(m.EntityDeletesTotal)
	m.registry.MustRegister(m.StorageErrorsTotal)
	m.registry.MustRegister(m.OperationDuration)

	// Index metrics
	m.registry.MustRegister(m.IndexedMemories)
	m.registry.MustRegister(m.IndexedTasks)
	m.registry.MustRegister(m.IndexRebuilds)

	// Linker metrics
	m.registry.MustRegister(m.EdgesCreatedTotal)

	// Automation metrics
	m.registry.MustRegister(m.AutomationProposalsTotal)
	m.registry.MustRegister(m.AutomationAppliedTotal)
	m.registry.MustRegister(m.AutomationRejectedTotal)
	m.registry.MustRegister(m.AutomationAdvisories)

	// Deduplication metrics
	m.registry.MustRegister(m.DedupGroupsTotal)
	m.registry.MustRegister(m.DedupMergedTotal)
	m.registry.MustRegister(m.DedupEdgeRewrites)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
