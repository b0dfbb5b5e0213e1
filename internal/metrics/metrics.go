package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors of one scraping run.
type Metrics struct {
	Registry           *prometheus.Registry
	RecordedTotal      *prometheus.CounterVec
	SkippedTotal       *prometheus.CounterVec
	FailuresTotal      *prometheus.CounterVec
	SubcategoriesTotal prometheus.Counter
	ProductDuration    prometheus.Histogram
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	recorded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_products_recorded_total",
			Help: "Total products appended to the record store.",
		},
		[]string{"category"},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_products_skipped_total",
			Help: "Total product entries skipped without opening them.",
		},
		[]string{"reason"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_failures_total",
			Help: "Total failures by kind.",
		},
		[]string{"kind"},
	)
	subcategories := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_subcategories_total",
			Help: "Total subcategories walked.",
		},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_product_duration_seconds",
			Help:    "Time from opening a product to returning to its listing.",
			Buckets: []float64{1, 2, 4, 6, 8, 12, 20, 30, 60},
		},
	)

	registry.MustRegister(recorded, skipped, failures, subcategories, duration)

	return &Metrics{
		Registry:           registry,
		RecordedTotal:      recorded,
		SkippedTotal:       skipped,
		FailuresTotal:      failures,
		SubcategoriesTotal: subcategories,
		ProductDuration:    duration,
	}
}

func (m *Metrics) IncRecorded(category string) {
	if m == nil {
		return
	}
	m.RecordedTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncFailure(kind string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncSubcategory() {
	if m == nil {
		return
	}
	m.SubcategoriesTotal.Inc()
}

// ObserveProduct records how long one product took.
func (m *Metrics) ObserveProduct(d time.Duration) {
	if m == nil {
		return
	}
	m.ProductDuration.Observe(d.Seconds())
}
