package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrl_documents_fetched_total",
			Help: "Total document fetch outcomes by status",
		},
		[]string{"status"},
	)

	FetchCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nrl_fetch_cache_hits_total",
			Help: "Fetches served from the local document cache",
		},
	)

	FetchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nrl_fetch_retries_total",
			Help: "Download attempts beyond the first",
		},
	)

	RecordsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrl_records_parsed_total",
			Help: "Raw activity records emitted by the parser, by confidence",
		},
		[]string{"confidence"},
	)

	ColumnSwapsRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nrl_column_swaps_recovered_total",
			Help: "Rows whose id and class columns arrived swapped and were corrected",
		},
	)

	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nrl_pipeline_duration_seconds",
			Help:    "Wall-clock duration of full pipeline runs",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrl_searches_total",
			Help: "Queries served, by search type",
		},
		[]string{"search_type"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nrl_search_duration_seconds",
			Help:    "Query latency by search type",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"search_type"},
	)

	SearchCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nrl_search_cache_hits_total",
			Help: "Search responses served from the redis cache",
		},
	)

	StudentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nrl_students_total",
			Help: "Students in the loaded snapshot",
		},
	)

	ActivitiesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nrl_activities_total",
			Help: "Activity entries in the loaded snapshot",
		},
	)
)

func Init() {
	prometheus.MustRegister(DocumentsFetched)
	prometheus.MustRegister(FetchCacheHits)
	prometheus.MustRegister(FetchRetries)
	prometheus.MustRegister(RecordsParsed)
	prometheus.MustRegister(ColumnSwapsRecovered)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchCacheHits)
	prometheus.MustRegister(StudentsTotal)
	prometheus.MustRegister(ActivitiesTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
