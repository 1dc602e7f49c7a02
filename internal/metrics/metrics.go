package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrderEvents   prometheus.Counter
	ItemEvents    prometheus.Counter
	ProductEvents prometheus.Counter
	DecodeErrors  prometheus.Counter

	EnrichmentMisses   prometheus.Counter
	DocumentsPublished prometheus.Counter
	DocumentsDeleted   prometheus.Counter
	CorrectionsApplied prometheus.Counter
	SinkFailures       prometheus.Counter

	PendingOrders     prometheus.Gauge
	PublishLatencySec prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	orderEvents := prometheus.NewCounter(prometheus.CounterOpts{Name: "denorm_order_events_total"})
	itemEvents := prometheus.NewCounter(prometheus.CounterOpts{Name: "denorm_item_events_total"})
	productEvents := prometheus.NewCounter(prometheus.CounterOpts{Name: "denorm_product_events_total"})
	decodeErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "denorm_decode_errors_total"})

	enrichMisses := prometheus.NewCounter(prometheus.CounterOpts{Name: "denorm_enrichment_misses_total"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "denorm_documents_published_total"})
	deleted := prometheus.NewCounter(prometheus.CounterOpts{Name: "denorm_documents_deleted_total"})
	corrections := prometheus.NewCounter(prometheus.CounterOpts{Name: "denorm_corrections_applied_total"})
	sinkFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "denorm_sink_failures_total"})

	pending := prometheus.NewGauge(prometheus.GaugeOpts{Name: "denorm_pending_orders"})
	publishLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "denorm_publish_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(orderEvents, itemEvents, productEvents, decodeErrors,
		enrichMisses, published, deleted, corrections, sinkFailures,
		pending, publishLatency)
	return &Registry{
		reg:                r,
		OrderEvents:        orderEvents,
		ItemEvents:         itemEvents,
		ProductEvents:      productEvents,
		DecodeErrors:       decodeErrors,
		EnrichmentMisses:   enrichMisses,
		DocumentsPublished: published,
		DocumentsDeleted:   deleted,
		CorrectionsApplied: corrections,
		SinkFailures:       sinkFailures,
		PendingOrders:      pending,
		PublishLatencySec:  publishLatency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
