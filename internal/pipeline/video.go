package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"framecut/internal/filesystem"
	"framecut/internal/geometry"
	"framecut/internal/logging"
	"framecut/internal/metrics"
	"framecut/internal/transcoder"
)

// probeVideo reads stream parameters and logs them.
func (p *Pipeline) probeVideo(ctx context.Context, log logging.FileLogger, input string) (*transcoder.VideoInfo, geometry.Size, error) {
	info, err := p.video.Probe(ctx, input)
	if err != nil {
		return nil, geometry.Size{}, fail(input, ProbeFailure, err)
	}
	size := info.Size()
	if size.Empty() {
		return nil, geometry.Size{}, fail(input, ProbeFailure, fmt.Errorf("invalid frame size %s", size))
	}
	if !info.FrameRate.Valid() {
		return nil, geometry.Size{}, fail(input, ProbeFailure, errors.New("no usable frame rate"))
	}
	log.Info("%s, %s, %s fps, %s", size, geometry.OrientationOf(size), info.FrameRate, framesString(info.Frames))
	return info, size, nil
}

func framesString(n int) string {
	if n <= 0 {
		return "frame count unknown"
	}
	return fmt.Sprintf("%d frames", n)
}

// maskVideoStream decodes frames over a pipe, masks each one and feeds it to
// the encoder. Only one decoded frame is held at a time.
func (p *Pipeline) maskVideoStream(ctx context.Context, log logging.FileLogger, input, output string, res *Result) error {
	info, size, err := p.probeVideo(ctx, log, input)
	if err != nil {
		return err
	}

	src, err := p.video.DecodeFrames(ctx, input, size, info.FrameRate)
	if err != nil {
		return fail(input, DecodeFailure, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Debug("closing decoder: %v", err)
		}
	}()

	out, err := filesystem.NewOutput(output)
	if err != nil {
		return fail(input, FilesystemFailure, err)
	}

	sink, err := p.video.NewEncoder(ctx, out.Path(), size, info.FrameRate)
	if err != nil {
		return commit(out, input, fail(input, EncodeFailure, err))
	}

	if err := p.streamFrames(ctx, log, input, src, sink, info.Frames, res); err != nil {
		sink.Abort()
		return commit(out, input, err)
	}
	if err := sink.Close(); err != nil {
		return commit(out, input, fail(input, EncodeFailure, err))
	}
	return commit(out, input, nil)
}

func (p *Pipeline) streamFrames(ctx context.Context, log logging.FileLogger, input string, src transcoder.FrameSource, sink transcoder.FrameSink, total int, res *Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return fail(input, DecodeFailure, err)
		}
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(input, DecodeFailure, err)
		}

		cleared, err := p.processor.ProcessFrame(frame)
		if err != nil {
			return fail(input, DecodeFailure, err)
		}
		if err := sink.WriteFrame(frame); err != nil {
			return fail(input, EncodeFailure, err)
		}

		res.Frames++
		res.Cleared += cleared
		metrics.FramesProcessedTotal.Inc()
		log.Progress(res.Frames, total)
	}
	if res.Frames == 0 {
		return fail(input, DecodeFailure, errors.New("no frames decoded"))
	}
	return nil
}

// maskVideoFrames extracts numbered PNG frames into a private workspace,
// masks them one by one and reassembles them at the source frame rate. The
// workspace is removed on every exit path.
func (p *Pipeline) maskVideoFrames(ctx context.Context, log logging.FileLogger, input, output string, res *Result) error {
	info, _, err := p.probeVideo(ctx, log, input)
	if err != nil {
		return err
	}

	ws, err := filesystem.NewWorkspace(p.opts.WorkDir, "framecut")
	if err != nil {
		return fail(input, FilesystemFailure, err)
	}
	defer func() {
		if cleanupErr := ws.Cleanup(); cleanupErr != nil {
			log.Warn("%s failure during cleanup: %v", FilesystemFailure, cleanupErr)
		}
	}()

	inDir := filepath.Join(ws.Dir(), "input")
	outDir := filepath.Join(ws.Dir(), "output")
	for _, dir := range []string{inDir, outDir} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			return fail(input, FilesystemFailure, err)
		}
	}

	log.Info("extracting frames...")
	frames, err := p.video.ExtractFrames(ctx, input, inDir, info.FrameRate)
	if err != nil {
		return fail(input, DecodeFailure, err)
	}
	if len(frames) == 0 {
		return fail(input, DecodeFailure, errors.New("no frames extracted"))
	}
	log.Info("processing %d frames...", len(frames))

	for i, path := range frames {
		if err := ctx.Err(); err != nil {
			return fail(input, DecodeFailure, err)
		}
		img, err := p.codec.Decode(path)
		if err != nil {
			return fail(input, DecodeFailure, fmt.Errorf("frame %d: %w", i+1, err))
		}
		cleared, err := p.processor.ProcessFrame(img)
		if err != nil {
			return fail(input, DecodeFailure, fmt.Errorf("frame %d: %w", i+1, err))
		}
		if err := p.codec.Encode(filepath.Join(outDir, filepath.Base(path)), img); err != nil {
			return fail(input, EncodeFailure, fmt.Errorf("frame %d: %w", i+1, err))
		}

		res.Frames++
		res.Cleared += cleared
		metrics.FramesProcessedTotal.Inc()
		log.Progress(i+1, len(frames))
	}

	out, err := filesystem.NewOutput(output)
	if err != nil {
		return fail(input, FilesystemFailure, err)
	}
	log.Info("encoding video...")
	if err := p.video.AssembleFrames(ctx, outDir, out.Path(), info.FrameRate); err != nil {
		return commit(out, input, fail(input, EncodeFailure, err))
	}
	return commit(out, input, nil)
}

// cropVideo crops a video to the frame's inner rectangle in one ffmpeg pass.
func (p *Pipeline) cropVideo(ctx context.Context, log logging.FileLogger, input, output string) error {
	_, size, err := p.probeVideo(ctx, log, input)
	if err != nil {
		return err
	}
	rect, err := p.planCrop(input, size)
	if err != nil {
		return err
	}
	log.Info("crop %dx%d+%d+%d", rect.Width, rect.Height, rect.X, rect.Y)

	out, err := filesystem.NewOutput(output)
	if err != nil {
		return fail(input, FilesystemFailure, err)
	}
	if err := p.video.Crop(ctx, input, out.Path(), rect); err != nil {
		return commit(out, input, fail(input, EncodeFailure, err))
	}
	return commit(out, input, nil)
}
