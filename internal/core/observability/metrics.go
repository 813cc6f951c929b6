package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	assetReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_asset_reads_total",
			Help: "Asset header reads by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	assetReadSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_asset_read_seconds",
			Help:    "Latency of a single asset header read.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"source"},
	)

	catalogBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_builds_total",
			Help: "Catalog builds by outcome.",
		},
		[]string{"outcome"},
	)

	catalogAssets = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_assets",
			Help:    "Number of assets in a built catalog.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	reprojectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reprojections_total",
			Help: "Bounding box reprojections by outcome.",
		},
		[]string{"outcome"},
	)

	transformSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_transform_samples_total",
			Help: "Edge sample points submitted to the transformer, by validity.",
		},
		[]string{"valid"},
	)

	crsCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crs_cache_results_total",
			Help: "CRS parse cache results by outcome.",
		},
		[]string{"outcome"},
	)

	reportsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reports_published_total",
			Help: "Catalog reports handed to the message broker, by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// ObserveAssetRead records one header read. source is "local" or "http".
func ObserveAssetRead(source string, ok bool, durationSeconds float64) {
	assetReadsTotal.WithLabelValues(source, outcome(ok)).Inc()
	assetReadSeconds.WithLabelValues(source).Observe(durationSeconds)
}

func ObserveCatalogBuild(ok bool, assets int) {
	catalogBuildsTotal.WithLabelValues(outcome(ok)).Inc()
	if ok {
		catalogAssets.Observe(float64(assets))
	}
}

func ObserveReprojection(ok bool) {
	reprojectionsTotal.WithLabelValues(outcome(ok)).Inc()
}

func AddTransformSamples(valid, invalid int) {
	if valid > 0 {
		transformSamplesTotal.WithLabelValues("true").Add(float64(valid))
	}
	if invalid > 0 {
		transformSamplesTotal.WithLabelValues("false").Add(float64(invalid))
	}
}

func IncCRSCacheHit() {
	crsCacheResults.WithLabelValues("hit").Inc()
}

func IncCRSCacheMiss() {
	crsCacheResults.WithLabelValues("miss").Inc()
}

func ObservePublish(ok bool) {
	reportsPublished.WithLabelValues(outcome(ok)).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
