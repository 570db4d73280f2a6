package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrFinished is returned when an Output is committed or aborted twice.
var ErrFinished = errors.New("output already finished")

// Output is a reservation for a file that must appear at its final path
// complete or not at all. Writers produce the content at Path, a hidden
// partial file in the same directory, and Commit renames it into place.
type Output struct {
	final   string
	partial string
	config  RetryConfig

	mu   sync.Mutex
	done bool
}

// partialPattern keeps the final extension last so tools that infer the
// container from the file name (ffmpeg) still see it.
func partialPattern(final string) string {
	base := filepath.Base(final)
	ext := filepath.Ext(base)
	return "." + strings.TrimSuffix(base, ext) + ".partial-*" + ext
}

// NewOutput reserves a partial file next to finalPath. The output directory
// must already exist.
func NewOutput(finalPath string) (*Output, error) {
	f, err := os.CreateTemp(filepath.Dir(finalPath), partialPattern(finalPath))
	if err != nil {
		return nil, fmt.Errorf("failed to reserve output %s: %w", finalPath, err)
	}
	partial := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(partial)
		return nil, fmt.Errorf("failed to reserve output %s: %w", finalPath, err)
	}

	return &Output{
		final:   finalPath,
		partial: partial,
		config:  DefaultRetryConfig(),
	}, nil
}

// Path returns the partial path writers should produce content at.
func (o *Output) Path() string {
	return o.partial
}

// Final returns the path the content will have after Commit.
func (o *Output) Final() string {
	return o.final
}

// Commit atomically replaces the final path with the partial file.
func (o *Output) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done {
		return ErrFinished
	}
	o.done = true

	if err := renameWithRetry(o.partial, o.final, o.config); err != nil {
		_ = os.Remove(o.partial)
		if obs := observe(); obs != nil {
			obs.ObserveCommit("error")
		}
		return fmt.Errorf("failed to commit %s: %w", o.final, err)
	}

	if obs := observe(); obs != nil {
		obs.ObserveCommit("committed")
	}
	return nil
}

// Abort removes the partial file. It is safe to call after Commit, in which
// case it does nothing, so callers can defer it unconditionally.
func (o *Output) Abort() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done {
		return nil
	}
	o.done = true

	if obs := observe(); obs != nil {
		obs.ObserveCommit("aborted")
	}
	if err := os.Remove(o.partial); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove partial output %s: %w", o.partial, err)
	}
	return nil
}

// IsPartial reports whether name looks like an uncommitted output.
func IsPartial(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, ".partial-")
}
