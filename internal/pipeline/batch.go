package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"framecut/internal/filesystem"
	"framecut/internal/ledger"
	"framecut/internal/logging"
	"framecut/internal/mediatypes"
	"framecut/internal/metrics"
)

// Status is the outcome of one file.
type Status string

const (
	StatusSucceeded Status = ledger.StatusSucceeded
	StatusFailed    Status = ledger.StatusFailed
	StatusSkipped   Status = ledger.StatusSkipped
)

// Result is the outcome of processing one input.
type Result struct {
	Input  string
	Output string
	Type   mediatypes.FileType
	Status Status
	// Kind and Err are set when Status is StatusFailed.
	Kind Kind
	Err  error
	// Frames is the number of frames written (1 for a masked still, 0 for crops).
	Frames      int
	Cleared     int
	ContentHash string
	Duration    time.Duration
}

// Report summarises a batch.
type Report struct {
	RunID     string
	Results   []Result
	Succeeded int
	Failed    int
	Skipped   int
	// NotStarted counts inputs left untouched after cancellation.
	NotStarted int
	Canceled   bool
	Started    time.Time
	Duration   time.Duration
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case StatusSucceeded:
		r.Succeeded++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

// Failures returns the failed results in input order.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Err joins every per-file error, or returns nil when the batch had none.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failures() {
		errs = append(errs, res.Err)
	}
	return errors.Join(errs...)
}

// Discover lists the inputs to process. A directory is listed without
// recursion and sorted by name; hidden files, partial outputs and outputs of
// earlier masking runs are skipped. A file is returned alone when it is a
// supported media type.
func Discover(input string, filter Filter) ([]string, error) {
	retry := filesystem.DefaultRetryConfig()
	info, err := filesystem.StatWithRetry(input, retry)
	if err != nil {
		return nil, fail(input, FilesystemFailure, err)
	}

	if !info.IsDir() {
		t := mediatypes.GetFileTypeForPath(input)
		if !filter.Accepts(t) {
			return nil, fail(input, ConfigFailure, fmt.Errorf("not a supported %s", filterNoun(filter)))
		}
		return []string{input}, nil
	}

	entries, err := filesystem.ReadDirWithRetry(input, retry)
	if err != nil {
		return nil, fail(input, FilesystemFailure, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filesystem.IsPartial(name) || mediatypes.IsDerived(name) {
			continue
		}
		if filter.Accepts(mediatypes.GetFileTypeForPath(name)) {
			files = append(files, filepath.Join(input, name))
		}
	}
	slices.Sort(files)
	return files, nil
}

func filterNoun(f Filter) string {
	switch f {
	case FilterImages:
		return "image"
	case FilterVideos:
		return "video"
	default:
		return "image or video"
	}
}

// RunBatch processes inputs in order. A failing file is logged, recorded and
// skipped over; the batch stops starting new files once ctx is done.
func (p *Pipeline) RunBatch(ctx context.Context, inputs []string) *Report {
	rep := &Report{Started: time.Now()}
	mode := string(p.opts.Mode)
	metrics.BatchRunsTotal.WithLabelValues(mode).Inc()

	if p.ledger != nil {
		id, err := p.ledger.StartRun(ctx, mode, p.fingerprint)
		if err != nil {
			logging.Warn("ledger: failed to start run: %v", err)
		} else {
			rep.RunID = id
		}
	}

	logging.Info("Processing %d files (%s mode)", len(inputs), mode)
	clashes := p.outputClashes(inputs)

	for i, input := range inputs {
		if ctx.Err() != nil {
			rep.Canceled = true
			rep.NotStarted = len(inputs) - i
			logging.Warn("run canceled, %d files not started", rep.NotStarted)
			break
		}
		logging.Info("[%d/%d] %s", i+1, len(inputs), filepath.Base(input))

		var res Result
		if first, ok := clashes[input]; ok {
			res = p.rejectClash(input, first)
		} else {
			res = p.ProcessFile(ctx, input)
		}
		rep.add(res)
		p.record(rep.RunID, res)
	}
	if ctx.Err() != nil {
		rep.Canceled = true
	}
	rep.Duration = time.Since(rep.Started)

	if p.ledger != nil && rep.RunID != "" {
		// The run context may be canceled; the summary is still written.
		if err := p.ledger.FinishRun(context.WithoutCancel(ctx), rep.RunID, ledger.Summary{
			Succeeded: rep.Succeeded,
			Failed:    rep.Failed,
			Skipped:   rep.Skipped,
			Canceled:  rep.Canceled,
		}); err != nil {
			logging.Warn("ledger: failed to finish run: %v", err)
		}
	}

	metrics.BatchLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.BatchLastRunDuration.Set(rep.Duration.Seconds())
	metrics.BatchLastRunFiles.WithLabelValues(string(StatusSucceeded)).Set(float64(rep.Succeeded))
	metrics.BatchLastRunFiles.WithLabelValues(string(StatusFailed)).Set(float64(rep.Failed))
	metrics.BatchLastRunFiles.WithLabelValues(string(StatusSkipped)).Set(float64(rep.Skipped))

	return rep
}

// outputClashes maps each input whose output path was already claimed by an
// earlier input to that earlier input.
func (p *Pipeline) outputClashes(inputs []string) map[string]string {
	clashes := make(map[string]string)
	owners := make(map[string]string)
	for _, input := range inputs {
		ftype := mediatypes.GetFileTypeForPath(input)
		if ftype != mediatypes.FileTypeImage && ftype != mediatypes.FileTypeVideo {
			continue
		}
		out := p.outputPath(input, ftype)
		if first, ok := owners[out]; ok {
			clashes[input] = first
			continue
		}
		owners[out] = input
	}
	return clashes
}

func (p *Pipeline) rejectClash(input, first string) Result {
	ftype := mediatypes.GetFileTypeForPath(input)
	output := p.outputPath(input, ftype)
	err := fail(input, FilesystemFailure, fmt.Errorf("output %s is already produced by %s", filepath.Base(output), filepath.Base(first)))
	res := Result{
		Input:  input,
		Output: output,
		Type:   ftype,
		Status: StatusFailed,
		Kind:   FilesystemFailure,
		Err:    err,
	}
	logging.ForFile(filepath.Base(input)).Error("%v", unwrapCause(err))
	p.observe(res)
	return res
}

func (p *Pipeline) record(runID string, res Result) {
	if p.ledger == nil || runID == "" {
		return
	}
	rec := ledger.Record{
		RunID:       runID,
		Input:       res.Input,
		Fingerprint: p.fingerprint,
		ContentHash: res.ContentHash,
		Status:      string(res.Status),
		Kind:        string(res.Kind),
		Frames:      res.Frames,
		Duration:    res.Duration,
	}
	if res.Status != StatusFailed {
		rec.Output = res.Output
	}
	if res.Err != nil {
		rec.Error = unwrapCause(res.Err)
	}
	if err := p.ledger.RecordResult(context.Background(), rec); err != nil {
		logging.Warn("ledger: failed to record %s: %v", filepath.Base(res.Input), err)
	}
}
