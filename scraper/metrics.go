package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scan engine.
type Metrics struct {
	Registry            *prometheus.Registry
	ScansTotal          *prometheus.CounterVec
	ScanDuration        prometheus.Histogram
	FetchAttemptsTotal  *prometheus.CounterVec
	CartBatchesTotal    *prometheus.CounterVec
	BlacklistedVariants prometheus.Counter
	ExtractionsTotal    *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	scans := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_scans_total",
			Help: "Total inventory scans by outcome.",
		},
		[]string{"status"},
	)
	scanDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monitor_scan_duration_seconds",
			Help:    "Wall-clock duration of inventory scans.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)
	fetchAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_fetch_attempts_total",
			Help: "Catalog fetch attempts by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)
	cartBatches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_cart_batches_total",
			Help: "Cart add batches by outcome.",
		},
		[]string{"outcome"},
	)
	blacklisted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_blacklisted_variants_total",
			Help: "Variants blacklisted after provable add failures.",
		},
	)
	extractions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_inventory_extractions_total",
			Help: "Inventory extractions by parsing method.",
		},
		[]string{"method"},
	)

	registry.MustRegister(scans, scanDuration, fetchAttempts, cartBatches, blacklisted, extractions)

	return &Metrics{
		Registry:            registry,
		ScansTotal:          scans,
		ScanDuration:        scanDuration,
		FetchAttemptsTotal:  fetchAttempts,
		CartBatchesTotal:    cartBatches,
		BlacklistedVariants: blacklisted,
		ExtractionsTotal:    extractions,
	}
}

// IncScan increments the scan counter for an outcome.
func (m *Metrics) IncScan(status string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(status).Inc()
}

// ObserveScanDuration records a scan duration.
func (m *Metrics) ObserveScanDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(d.Seconds())
}

// IncFetchAttempt increments the fetch attempt counter.
func (m *Metrics) IncFetchAttempt(strategy, outcome string) {
	if m == nil {
		return
	}
	m.FetchAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
}

// IncCartBatch increments the cart batch counter for an outcome.
func (m *Metrics) IncCartBatch(outcome string) {
	if m == nil {
		return
	}
	m.CartBatchesTotal.WithLabelValues(outcome).Inc()
}

// IncBlacklisted increments the blacklisted variants counter.
func (m *Metrics) IncBlacklisted() {
	if m == nil {
		return
	}
	m.BlacklistedVariants.Inc()
}

// IncExtraction records which parsing method produced inventory.
func (m *Metrics) IncExtraction(method string) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(method).Inc()
}
