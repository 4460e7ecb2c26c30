package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keiba_page_fetches_total",
			Help: "Total netkeiba page fetches",
		},
		[]string{"endpoint", "status"},
	)

	PageFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keiba_page_fetch_latency_seconds",
			Help:    "Page fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RowsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keiba_rows_ingested_total",
			Help: "Total rows merged into the data store",
		},
		[]string{"table"},
	)

	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keiba_parse_errors_total",
			Help: "Total pages or rows rejected as malformed",
		},
		[]string{"endpoint"},
	)

	DatasetRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keiba_dataset_rows",
			Help: "Feature rows in the last exported dataset per course",
		},
		[]string{"venue", "course"},
	)
)
