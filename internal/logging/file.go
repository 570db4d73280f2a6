package logging

import (
	"os"
	"sync"

	"golang.org/x/term"
)

// ProgressInterval is how many frames pass between progress lines.
const ProgressInterval = 30

// FileLogger tags every message with the input file it concerns.
type FileLogger struct {
	prefix string
}

// ForFile returns a logger whose lines start with "[name] ".
func ForFile(name string) FileLogger {
	return FileLogger{prefix: "[" + name + "] "}
}

func (l FileLogger) Debug(format string, args ...interface{}) { Debug(l.prefix+format, args...) }
func (l FileLogger) Info(format string, args ...interface{})  { Info(l.prefix+format, args...) }
func (l FileLogger) Warn(format string, args ...interface{})  { Warn(l.prefix+format, args...) }
func (l FileLogger) Error(format string, args ...interface{}) { Error(l.prefix+format, args...) }

var (
	interactive     bool
	interactiveOnce sync.Once
)

// isInteractive reports whether stdout is a terminal. Frame progress on a
// pipe or in a log collector is noise, so it is demoted to debug there.
func isInteractive() bool {
	interactiveOnce.Do(func() {
		interactive = term.IsTerminal(int(os.Stdout.Fd()))
	})
	return interactive
}

// ShouldReportProgress reports whether frame (1-based) is one of the frames
// a progress line is written for: the first, the last, and every
// ProgressInterval-th frame. total may be 0 when the frame count is unknown.
func ShouldReportProgress(frame, total int) bool {
	if frame <= 1 {
		return true
	}
	if total > 0 && frame == total {
		return true
	}
	return frame%ProgressInterval == 0
}

// Progress logs frame progress for a video at the cadence of
// ShouldReportProgress.
func (l FileLogger) Progress(frame, total int) {
	if !ShouldReportProgress(frame, total) {
		return
	}
	logf := l.Info
	if !isInteractive() {
		logf = l.Debug
	}
	if total > 0 {
		logf("frame %d/%d", frame, total)
		return
	}
	logf("frame %d", frame)
}
