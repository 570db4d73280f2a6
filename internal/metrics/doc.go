// Package metrics provides Prometheus instrumentation for framecut.
//
// All metrics are prefixed with "framecut_" and registered with the default
// registry through promauto.
//
// # Metric Categories
//
// ## Processing Metrics
//
//   - FilesProcessedTotal: Counter by mode, kind (image/video) and status
//   - FileProcessingDuration: Histogram of per-file duration by mode and kind
//   - FileErrorsTotal: Counter of per-file failures by error kind
//   - FramesProcessedTotal: Counter of video frames through the frame processor
//   - PixelsClearedTotal: Counter of pixels made transparent
//   - MaskCacheLookups: Counter of mask cache hits and misses
//
// ## Batch Metrics
//
//   - BatchRunsTotal: Counter of batch runs by mode
//   - BatchLastRunTimestamp / BatchLastRunDuration: last completion time and duration
//   - BatchLastRunFiles: Gauge of files in the last run by status
//
// ## Transcoder, Ledger and Publish Metrics
//
//   - TranscoderInvocationsTotal / TranscoderDuration: ffmpeg and ffprobe calls by operation
//   - LedgerQueryTotal / LedgerQueryDuration: SQLite ledger queries by operation
//   - PublishUploadsTotal / PublishUploadBytes: bucket uploads
//
// ## Preview Server and Filesystem Metrics
//
//   - HTTPRequestsTotal / HTTPRequestDuration: preview endpoint requests
//   - FilesystemRetry*: ESTALE retries by operation
//   - FilesystemCommitsTotal: atomic output commits by status
//
// # Exporting
//
// The preview server mounts promhttp.Handler() on /metrics. Batch runs are
// short-lived, so they can also dump the registry to a file for
// node_exporter's textfile collector:
//
//	if err := metrics.WriteTextfile("/var/lib/node_exporter/framecut.prom"); err != nil {
//	    logging.Warn("%v", err)
//	}
//
// Example PromQL:
//
//	sum(rate(framecut_files_processed_total{status="failed"}[1h])) by (mode)
//
//	rate(framecut_mask_cache_lookups_total{result="hit"}[5m]) /
//	rate(framecut_mask_cache_lookups_total[5m])
package metrics
