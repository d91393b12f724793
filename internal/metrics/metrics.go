// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsDiscoveredTotal     *prometheus.CounterVec
	imagesDownloadedTotal    prometheus.Counter
	imagesSkippedTotal       *prometheus.CounterVec
	downloadFailuresTotal    *prometheus.CounterVec
	downloadDurationSeconds  prometheus.Histogram
	queueDepth               prometheus.Gauge
	activeDownloadWorkers    prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call multiple
// times.
func Init() {
	once.Do(func() {
		itemsDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_items_discovered_total",
				Help: "Total number of gallery items discovered, labeled by source index.",
			},
			[]string{"source"},
		)

		imagesDownloadedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_images_downloaded_total",
				Help: "Total number of images fetched, normalized, and persisted.",
			},
		)

		imagesSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_images_skipped_total",
				Help: "Total number of items skipped before download, labeled by reason.",
			},
			[]string{"reason"},
		)

		downloadFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_download_failures_total",
				Help: "Total number of per-item download failures, labeled by kind.",
			},
			[]string{"kind"},
		)

		downloadDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_download_duration_seconds",
				Help:    "Histogram of fetch/convert/store latencies per image.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_queue_depth",
				Help: "Best-effort depth of the crawl/download item queue.",
			},
		)

		activeDownloadWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_download_workers",
				Help: "Number of download workers currently processing a batch.",
			},
		)
	})
}

// ItemDiscovered records one discovered gallery item.
func ItemDiscovered(source string) {
	if itemsDiscoveredTotal == nil {
		return
	}
	itemsDiscoveredTotal.WithLabelValues(source).Inc()
}

// ImageDownloaded records one persisted image.
func ImageDownloaded() {
	if imagesDownloadedTotal == nil {
		return
	}
	imagesDownloadedTotal.Inc()
}

// ImageSkipped records one item dropped before download.
func ImageSkipped(reason string) {
	if imagesSkippedTotal == nil {
		return
	}
	imagesSkippedTotal.WithLabelValues(reason).Inc()
}

// DownloadFailed records one per-item failure.
func DownloadFailed(kind string) {
	if downloadFailuresTotal == nil {
		return
	}
	downloadFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveDownloadDuration records the latency of one pipeline pass.
func ObserveDownloadDuration(d time.Duration) {
	if downloadDurationSeconds == nil {
		return
	}
	downloadDurationSeconds.Observe(d.Seconds())
}

// SetQueueDepth updates the queue depth gauge.
func SetQueueDepth(depth int) {
	if queueDepth == nil {
		return
	}
	queueDepth.Set(float64(depth))
}

// WorkerActive marks a download worker as busy or idle.
func WorkerActive(busy bool) {
	if activeDownloadWorkers == nil {
		return
	}
	if busy {
		activeDownloadWorkers.Inc()
	} else {
		activeDownloadWorkers.Dec()
	}
}
