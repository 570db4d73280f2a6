// Package startup handles configuration loading and startup/shutdown logging
// for framecut.
//
// # Configuration
//
// Configuration is read from environment variables with
// github.com/caarlos0/env/v11 struct tags ([ParseEnv]); command-line flags
// override the parsed values before validation. [LoadConfig] does both and
// prepares the output, work and ledger directories.
//
//   - INPUT_DIR: Directory or single file to process (default: input)
//   - OUTPUT_DIR: Directory for outputs (default: output)
//   - MODE: mask or crop (default: mask)
//   - WHITE_THRESHOLD: Background threshold 0-255 (default: 250)
//   - CALIBRATION_FILE: YAML preset overrides (default: built-in presets)
//   - VIDEO_STRATEGY: stream or frames (default: stream)
//   - WORK_DIR: Parent of per-video frame workspaces (default: os.TempDir)
//   - FFMPEG_PATH, FFPROBE_PATH: Tool binaries (default: ffmpeg, ffprobe)
//   - FFMPEG_TIMEOUT: Per-invocation bound as Go duration (default: 0, none)
//   - VIDEO_BITRATE: VP9 target bitrate (default: 2M)
//   - CROP_CRF, CROP_PRESET: libx264 settings for crops (default: 18, fast)
//   - LEDGER_PATH: SQLite run ledger (default: disabled)
//   - SKIP_UNCHANGED: Skip inputs already processed with the same calibration
//   - METRICS_TEXTFILE: Write Prometheus metrics here after a batch
//   - USE_VIPS: Use libvips for still crops when available (default: true)
//   - LISTEN_ADDR: Preview server address (default: :8080)
//   - COS_BUCKET_URL, COS_SECRET_ID, COS_SECRET_KEY, COS_PREFIX: Output upload
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
// The Log* functions print the banner-style sections used on startup, after a
// batch ([LogRunComplete]) and on shutdown.
package startup
