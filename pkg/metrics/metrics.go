package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a harvest run.
// All methods are safe on a nil receiver.
type Metrics struct {
	Registry          *prometheus.Registry
	ListingPages      prometheus.Counter
	FilenamesFound    prometheus.Counter
	FileRequests      *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	Retries           *prometheus.CounterVec
	SessionRotations  *prometheus.CounterVec
	FilesDownloaded   prometheus.Counter
	FilesSkipped      prometheus.Counter
	FilesFailed       prometheus.Counter
	BytesDownloaded   prometheus.Counter
	ArchiveEntries    prometheus.Gauge
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		ListingPages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docharvest_listing_pages_total",
			Help: "Listing pages rendered.",
		}),
		FilenamesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docharvest_filenames_found_total",
			Help: "Unique document filenames collected from listing pages.",
		}),
		FileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docharvest_file_requests_total",
			Help: "Document GET requests by outcome.",
		}, []string{"outcome"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docharvest_file_request_duration_seconds",
			Help:    "Document request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docharvest_retries_total",
			Help: "Backoffs scheduled by error type.",
		}, []string{"error_type"}),
		SessionRotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docharvest_session_rotations_total",
			Help: "Browser session rotations by reason.",
		}, []string{"reason"}),
		FilesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docharvest_files_downloaded_total",
			Help: "Documents fetched and written during this run.",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docharvest_files_skipped_total",
			Help: "Documents already present in the output directory.",
		}),
		FilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docharvest_files_failed_total",
			Help: "Documents that exhausted every attempt.",
		}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docharvest_bytes_downloaded_total",
			Help: "Bytes written to the output directory.",
		}),
		ArchiveEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docharvest_archive_entries",
			Help: "Files added to the final archive.",
		}),
	}

	registry.MustRegister(
		m.ListingPages, m.FilenamesFound, m.FileRequests, m.RequestDuration,
		m.Retries, m.SessionRotations, m.FilesDownloaded, m.FilesSkipped,
		m.FilesFailed, m.BytesDownloaded, m.ArchiveEntries,
	)
	return m
}

func (m *Metrics) IncListingPage() {
	if m == nil {
		return
	}
	m.ListingPages.Inc()
}

func (m *Metrics) AddFilenames(n int) {
	if m == nil {
		return
	}
	m.FilenamesFound.Add(float64(n))
}

// ObserveRequest records one document request
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FileRequests.WithLabelValues(outcome).Inc()
	m.RequestDuration.Observe(d.Seconds())
}

func (m *Metrics) IncRetry(errorType string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(errorType).Inc()
}

func (m *Metrics) IncRotation(reason string) {
	if m == nil {
		return
	}
	m.SessionRotations.WithLabelValues(reason).Inc()
}

// IncDownloaded counts a written document and its size
func (m *Metrics) IncDownloaded(bytes int64) {
	if m == nil {
		return
	}
	m.FilesDownloaded.Inc()
	m.BytesDownloaded.Add(float64(bytes))
}

func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.FilesSkipped.Inc()
}

func (m *Metrics) IncFailed() {
	if m == nil {
		return
	}
	m.FilesFailed.Inc()
}

func (m *Metrics) SetArchiveEntries(n int) {
	if m == nil {
		return
	}
	m.ArchiveEntries.Set(float64(n))
}

// WriteTextfile dumps the registry in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
