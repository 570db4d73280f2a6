package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first scrape or textfile write.
// Call this once at startup.
func InitializeMetrics() {
	modes := []string{"mask", "crop"}
	kinds := []string{"image", "video"}

	for _, m := range modes {
		BatchRunsTotal.WithLabelValues(m)
		for _, k := range kinds {
			FileProcessingDuration.WithLabelValues(m, k)
			for _, s := range []string{"succeeded", "failed", "skipped"} {
				FilesProcessedTotal.WithLabelValues(m, k, s)
			}
		}
	}

	for _, s := range []string{"succeeded", "failed", "skipped"} {
		BatchLastRunFiles.WithLabelValues(s)
	}

	for _, k := range []string{"probe", "decode", "encode", "filesystem", "config"} {
		FileErrorsTotal.WithLabelValues(k)
	}

	for _, r := range []string{"hit", "miss"} {
		MaskCacheLookups.WithLabelValues(r)
	}

	for _, op := range []string{"probe", "decode_frames", "encode_frames", "extract_frames", "assemble_frames", "crop"} {
		TranscoderInvocationsTotal.WithLabelValues(op, "success")
		TranscoderInvocationsTotal.WithLabelValues(op, "error")
		TranscoderDuration.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "start_run", "record_result", "finish_run", "last_success", "history", "results"} {
		LedgerQueryTotal.WithLabelValues(op, "success")
		LedgerQueryTotal.WithLabelValues(op, "error")
		LedgerQueryDuration.WithLabelValues(op)
	}

	for _, s := range []string{"success", "error"} {
		PublishUploadsTotal.WithLabelValues(s)
	}

	for _, op := range []string{"stat", "open", "readdir", "rename"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
	}

	for _, s := range []string{"committed", "aborted", "error"} {
		FilesystemCommitsTotal.WithLabelValues(s)
	}
}
