package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Processing metrics
var (
	FilesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_files_processed_total",
			Help: "Total number of input files processed",
		},
		[]string{"mode", "kind", "status"}, // status: "succeeded", "failed", "skipped"
	)

	FileProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framecut_file_processing_duration_seconds",
			Help:    "Time to process a single input file in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode", "kind"},
	)

	FileErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_file_errors_total",
			Help: "Total number of per-file failures by error kind",
		},
		[]string{"kind"},
	)

	FramesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framecut_frames_processed_total",
			Help: "Total number of video frames passed through the frame processor",
		},
	)

	PixelsClearedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framecut_pixels_cleared_total",
			Help: "Total number of pixels made transparent",
		},
	)

	MaskCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_mask_cache_lookups_total",
			Help: "Mask cache lookups by result",
		},
		[]string{"result"}, // "hit" or "miss"
	)
)

// Batch metrics
var (
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_batch_runs_total",
			Help: "Total number of batch runs",
		},
		[]string{"mode"},
	)

	BatchLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framecut_batch_last_run_timestamp",
			Help: "Unix timestamp of the last batch completion",
		},
	)

	BatchLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framecut_batch_last_run_duration_seconds",
			Help: "Duration of the last batch run in seconds",
		},
	)

	BatchLastRunFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "framecut_batch_last_run_files",
			Help: "Number of files in the last batch run by status",
		},
		[]string{"status"},
	)
)

// Transcoder metrics
var (
	TranscoderInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_transcoder_invocations_total",
			Help: "Total number of ffmpeg/ffprobe invocations",
		},
		[]string{"operation", "status"},
	)

	TranscoderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framecut_transcoder_duration_seconds",
			Help:    "ffmpeg/ffprobe invocation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)
)

// Ledger metrics
var (
	LedgerQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_ledger_queries_total",
			Help: "Total number of ledger queries",
		},
		[]string{"operation", "status"},
	)

	LedgerQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framecut_ledger_query_duration_seconds",
			Help:    "Ledger query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Publish metrics
var (
	PublishUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_publish_uploads_total",
			Help: "Total number of output uploads",
		},
		[]string{"status"},
	)

	PublishUploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framecut_publish_upload_bytes_total",
			Help: "Total bytes uploaded to the publish bucket",
		},
	)
)

// Preview server metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_http_requests_total",
			Help: "Total number of preview HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framecut_http_request_duration_seconds",
			Help:    "Preview HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after ESTALE",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded on retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framecut_filesystem_commits_total",
			Help: "Total number of output commits by status",
		},
		[]string{"status"}, // "committed", "aborted", "error"
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "framecut_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
