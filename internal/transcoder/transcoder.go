package transcoder

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"framecut/internal/logging"
	"framecut/internal/metrics"
)

// Config holds the ffmpeg settings used by every invocation.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	// Timeout bounds each blocking invocation. Zero means no timeout.
	Timeout time.Duration

	// VideoBitrate is the libvpx-vp9 target bitrate for masked videos.
	VideoBitrate string
	// CropCRF and CropPreset tune the libx264 encode of cropped videos.
	// A negative CropCRF selects the default; zero is lossless.
	CropCRF    int
	CropPreset string
}

// DefaultConfig returns the encoder settings the website assets were
// produced with.
func DefaultConfig() Config {
	return Config{
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		VideoBitrate: "2M",
		CropCRF:      18,
		CropPreset:   "fast",
	}
}

// Transcoder runs ffmpeg and ffprobe for probing, frame streaming, frame
// extraction and reassembly, and crop encoding.
type Transcoder struct {
	cfg Config

	processMu sync.Mutex
	processes map[*exec.Cmd]string
}

// New creates a new Transcoder instance.
func New(cfg Config) *Transcoder {
	def := DefaultConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = def.FFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = def.FFprobePath
	}
	if cfg.VideoBitrate == "" {
		cfg.VideoBitrate = def.VideoBitrate
	}
	if cfg.CropPreset == "" {
		cfg.CropPreset = def.CropPreset
	}
	if cfg.CropCRF < 0 {
		cfg.CropCRF = def.CropCRF
	}
	return &Transcoder{
		cfg:       cfg,
		processes: make(map[*exec.Cmd]string),
	}
}

// Config returns the effective configuration.
func (t *Transcoder) Config() Config {
	return t.cfg
}

func (t *Transcoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, t.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (t *Transcoder) track(cmd *exec.Cmd, op string) {
	t.processMu.Lock()
	t.processes[cmd] = op
	t.processMu.Unlock()
}

func (t *Transcoder) untrack(cmd *exec.Cmd) {
	t.processMu.Lock()
	delete(t.processes, cmd)
	t.processMu.Unlock()
}

// run executes a command to completion, recording metrics. stdout may be nil.
func (t *Transcoder) run(ctx context.Context, op, bin string, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay
	stderr := newTailBuffer(stderrTail)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logging.Debug("%s: %s %v", op, bin, args)

	t.track(cmd, op)
	defer t.untrack(cmd)

	start := time.Now()
	err := cmd.Run()
	observe(op, start, err)

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", bin, op, ctx.Err())
		}
		return fmt.Errorf("%s error: %w - %s", bin, err, stderr.String())
	}
	return nil
}

func observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.TranscoderInvocationsTotal.WithLabelValues(op, status).Inc()
	metrics.TranscoderDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Cleanup stops all active ffmpeg processes.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for cmd, op := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing %s process (pid %d)", op, cmd.Process.Pid)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill %s process: %v", op, err)
			}
		}
	}
}

// waitDelay bounds how long Wait blocks on inherited pipes after the
// process has been killed.
const waitDelay = 2 * time.Second

// stderrTail is how much ffmpeg stderr is kept for error messages.
const stderrTail = 4096

// tailBuffer keeps the last n bytes written to it. ffmpeg can print a lot
// before it fails; only the end is useful.
type tailBuffer struct {
	mu  sync.Mutex
	n   int
	buf []byte
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.n; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
