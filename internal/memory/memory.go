package memory

import (
	"fmt"
	"math"
	"runtime/debug"
	"strconv"

	"framecut/internal/logging"

	"github.com/caarlos0/env/v11"
)

// DefaultRatio is the share of the container limit given to the Go heap.
// The rest is left for the ffmpeg children and libvips.
const DefaultRatio = 0.75

// Settings are read from the environment.
type Settings struct {
	// GoMemLimit mirrors the standard GOMEMLIMIT variable; when set the
	// runtime has already applied it.
	GoMemLimit string `env:"GOMEMLIMIT"`
	// Limit is the container memory limit in bytes, typically from the
	// Kubernetes Downward API.
	Limit int64 `env:"MEMORY_LIMIT"`
	// Ratio is applied to Limit.
	Ratio float64 `env:"MEMORY_RATIO" envDefault:"0.75"`
}

// Result describes what Configure did.
type Result struct {
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source     string
	Limit      int64
	GoMemLimit int64
	Ratio      float64
}

// setMemoryLimit is swapped in tests.
var setMemoryLimit = debug.SetMemoryLimit

// ConfigureFromEnv reads Settings and applies them. Call it before the first
// frame is decoded.
func ConfigureFromEnv() (Result, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Result{Source: "none"}, fmt.Errorf("memory settings: %w", err)
	}
	return Configure(s)
}

// Configure sets the Go soft memory limit to Limit*Ratio unless GOMEMLIMIT
// is already in effect. A zero Limit leaves the runtime untouched.
func Configure(s Settings) (Result, error) {
	if s.GoMemLimit != "" {
		res := Result{Source: "GOMEMLIMIT"}
		if limit := setMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			res.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", s.GoMemLimit)
		return res, nil
	}
	if s.Limit <= 0 {
		logging.Debug("MEMORY_LIMIT not set, leaving the Go memory limit alone")
		return Result{Source: "none"}, nil
	}
	if s.Ratio <= 0 || s.Ratio > 1 {
		return Result{Source: "none"}, fmt.Errorf("MEMORY_RATIO %v out of range (0,1]", s.Ratio)
	}

	goLimit := int64(float64(s.Limit) * s.Ratio)
	setMemoryLimit(goLimit)
	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		FormatBytes(goLimit), s.Ratio*100, FormatBytes(s.Limit))

	return Result{Source: "MEMORY_LIMIT", Limit: s.Limit, GoMemLimit: goLimit, Ratio: s.Ratio}, nil
}

// FormatBytes renders b with binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}

// FrameBytes is the size of one decoded RGBA frame.
func FrameBytes(width, height int) int64 {
	return int64(width) * int64(height) * 4
}
