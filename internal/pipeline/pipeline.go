package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"time"

	"framecut/internal/calibration"
	"framecut/internal/filesystem"
	"framecut/internal/geometry"
	"framecut/internal/ledger"
	"framecut/internal/logging"
	"framecut/internal/matte"
	"framecut/internal/mediatypes"
	"framecut/internal/metrics"
	"framecut/internal/transcoder"
)

// VideoTool is the ffmpeg boundary.
type VideoTool interface {
	Probe(ctx context.Context, path string) (*transcoder.VideoInfo, error)
	DecodeFrames(ctx context.Context, path string, size geometry.Size, rate transcoder.FrameRate) (transcoder.FrameSource, error)
	NewEncoder(ctx context.Context, dst string, size geometry.Size, rate transcoder.FrameRate) (transcoder.FrameSink, error)
	ExtractFrames(ctx context.Context, src, dir string, rate transcoder.FrameRate) ([]string, error)
	AssembleFrames(ctx context.Context, dir, dst string, rate transcoder.FrameRate) error
	Crop(ctx context.Context, src, dst string, r geometry.Rect) error
}

// ImageCodec is the still-image boundary.
type ImageCodec interface {
	Decode(path string) (*image.NRGBA, error)
	Encode(path string, img image.Image) error
	Dimensions(path string) (geometry.Size, error)
	CropImage(src, dst string, r geometry.Rect) error
}

// Ledger records runs and answers skip queries. *ledger.Ledger implements it.
type Ledger interface {
	StartRun(ctx context.Context, mode, fingerprint string) (string, error)
	RecordResult(ctx context.Context, rec ledger.Record) error
	FinishRun(ctx context.Context, runID string, s ledger.Summary) error
	LastSuccess(ctx context.Context, input, fingerprint string) (*ledger.Record, error)
}

// Publisher uploads a committed output.
type Publisher interface {
	Publish(ctx context.Context, localPath string) error
}

// Strategy selects how masked videos are processed.
type Strategy string

const (
	// StrategyStream pipes raw frames between two ffmpeg processes.
	StrategyStream Strategy = "stream"
	// StrategyFrames extracts numbered PNGs into a workspace and reassembles them.
	StrategyFrames Strategy = "frames"
)

// Filter restricts which media types a batch handles.
type Filter int

const (
	FilterAll Filter = iota
	FilterImages
	FilterVideos
)

// Accepts reports whether t passes the filter.
func (f Filter) Accepts(t mediatypes.FileType) bool {
	switch f {
	case FilterImages:
		return t == mediatypes.FileTypeImage
	case FilterVideos:
		return t == mediatypes.FileTypeVideo
	default:
		return t == mediatypes.FileTypeImage || t == mediatypes.FileTypeVideo
	}
}

// Options configures a Pipeline.
type Options struct {
	Mode        calibration.Mode
	Calibration calibration.Set
	Threshold   matte.Threshold
	OutputDir   string
	// WorkDir is the parent of frame workspaces; os.TempDir when empty.
	WorkDir       string
	Strategy      Strategy
	Filter        Filter
	SkipUnchanged bool
}

// Pipeline processes media files one at a time.
type Pipeline struct {
	opts        Options
	video       VideoTool
	codec       ImageCodec
	processor   *matte.Processor
	fingerprint string

	ledger    Ledger
	publisher Publisher
	retry     filesystem.RetryConfig
}

// New creates a pipeline. The calibration must already be validated.
func New(opts Options, video VideoTool, codec ImageCodec) *Pipeline {
	if opts.Mode == "" {
		opts.Mode = calibration.ModeMask
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyStream
	}
	return &Pipeline{
		opts:        opts,
		video:       video,
		codec:       codec,
		processor:   matte.NewProcessor(opts.Calibration.Mask, opts.Threshold),
		fingerprint: opts.Calibration.Fingerprint(string(opts.Mode), strconv.Itoa(int(opts.Threshold))),
		retry:       filesystem.DefaultRetryConfig(),
	}
}

// SetLedger enables run recording and, with SkipUnchanged, skipping.
func (p *Pipeline) SetLedger(l Ledger) {
	p.ledger = l
}

// SetPublisher enables uploading of committed outputs.
func (p *Pipeline) SetPublisher(pub Publisher) {
	p.publisher = pub
}

// Fingerprint identifies the calibration, mode and threshold in effect.
func (p *Pipeline) Fingerprint() string {
	return p.fingerprint
}

// Mode returns the processing mode.
func (p *Pipeline) Mode() calibration.Mode {
	return p.opts.Mode
}

// ProcessFile handles a single input and returns its result. It never
// panics on bad media; failures are reported in Result.Err as *FileError.
func (p *Pipeline) ProcessFile(ctx context.Context, input string) Result {
	start := time.Now()
	log := logging.ForFile(filepath.Base(input))
	ftype := mediatypes.GetFileTypeForPath(input)
	output := p.outputPath(input, ftype)

	res := Result{Input: input, Output: output, Type: ftype}

	var err error
	switch {
	case ftype != mediatypes.FileTypeImage && ftype != mediatypes.FileTypeVideo:
		err = fail(input, ConfigFailure, fmt.Errorf("unsupported file type %q", filepath.Ext(input)))
	case sameFile(input, output):
		err = fail(input, FilesystemFailure, errors.New("output would overwrite the input"))
	default:
		var skipped bool
		var hash string
		skipped, hash = p.checkUnchanged(ctx, log, input, output)
		res.ContentHash = hash
		if skipped {
			res.Status = StatusSkipped
			res.Duration = time.Since(start)
			log.Info("unchanged since last run, skipped")
			p.observe(res)
			return res
		}
		err = p.dispatch(ctx, log, input, output, ftype, &res)
	}

	res.Duration = time.Since(start)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		res.Kind = KindOf(err)
		log.Error("%v", unwrapCause(err))
	} else {
		res.Status = StatusSucceeded
		log.Info("saved %s (%v)", filepath.Base(output), res.Duration.Round(time.Millisecond))
		p.publish(ctx, log, output)
	}
	p.observe(res)
	return res
}

func (p *Pipeline) dispatch(ctx context.Context, log logging.FileLogger, input, output string, ftype mediatypes.FileType, res *Result) error {
	switch {
	case p.opts.Mode == calibration.ModeCrop && ftype == mediatypes.FileTypeImage:
		return p.cropImage(log, input, output)
	case p.opts.Mode == calibration.ModeCrop:
		return p.cropVideo(ctx, log, input, output)
	case ftype == mediatypes.FileTypeImage:
		n, err := p.maskImage(log, input, output)
		res.Cleared = n
		if err == nil {
			res.Frames = 1
		}
		return err
	case p.opts.Strategy == StrategyFrames:
		return p.maskVideoFrames(ctx, log, input, output, res)
	default:
		return p.maskVideoStream(ctx, log, input, output, res)
	}
}

// checkUnchanged reports whether input can be skipped. The content hash is
// returned whenever a ledger is attached so the result can record it.
func (p *Pipeline) checkUnchanged(ctx context.Context, log logging.FileLogger, input, output string) (bool, string) {
	if p.ledger == nil {
		return false, ""
	}
	hash, err := ledger.HashFile(input)
	if err != nil {
		log.Warn("failed to hash input: %v", err)
		return false, ""
	}
	if !p.opts.SkipUnchanged {
		return false, hash
	}

	prev, err := p.ledger.LastSuccess(ctx, input, p.fingerprint)
	if err != nil {
		log.Warn("ledger lookup failed: %v", err)
		return false, hash
	}
	if prev == nil || prev.ContentHash != hash || prev.Output != output {
		return false, hash
	}
	if _, err := filesystem.StatWithRetry(output, p.retry); err != nil {
		log.Debug("previous output missing, reprocessing")
		return false, hash
	}
	return true, hash
}

func (p *Pipeline) publish(ctx context.Context, log logging.FileLogger, output string) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, output); err != nil {
		log.Warn("publish failed: %v", err)
		return
	}
	log.Debug("published %s", filepath.Base(output))
}

func (p *Pipeline) observe(res Result) {
	kind := string(res.Type)
	mode := string(p.opts.Mode)
	metrics.FilesProcessedTotal.WithLabelValues(mode, kind, string(res.Status)).Inc()
	if res.Status != StatusSkipped {
		metrics.FileProcessingDuration.WithLabelValues(mode, kind).Observe(res.Duration.Seconds())
	}
	if res.Status == StatusFailed && res.Kind != "" {
		metrics.FileErrorsTotal.WithLabelValues(string(res.Kind)).Inc()
	}
}

// commit renames the partial into place, or removes it when err is set.
func commit(out *filesystem.Output, input string, err error) error {
	if err != nil {
		if abortErr := out.Abort(); abortErr != nil {
			logging.Warn("failed to remove partial output %s: %v", out.Path(), abortErr)
		}
		return err
	}
	if err := out.Commit(); err != nil {
		return fail(input, FilesystemFailure, err)
	}
	return nil
}

func (p *Pipeline) outputPath(input string, ftype mediatypes.FileType) string {
	return mediatypes.OutputPath(p.opts.OutputDir, input, ftype, p.opts.Mode == calibration.ModeMask)
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// unwrapCause drops the file name prefix for per-file log lines, which are
// already tagged with it.
func unwrapCause(err error) string {
	var fe *FileError
	if errors.As(err, &fe) {
		return fmt.Sprintf("%s failure: %v", fe.Kind, fe.Err)
	}
	return err.Error()
}
