package transcoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"time"

	"framecut/internal/geometry"
	"framecut/internal/logging"
)

// ErrShortFrame is returned when the decoder ends in the middle of a frame.
var ErrShortFrame = errors.New("truncated raw frame")

// FrameSource yields decoded frames in presentation order.
type FrameSource interface {
	// Next returns the next frame, or io.EOF after the last one. The frame
	// is only valid until the following call.
	Next() (*image.NRGBA, error)
	Close() error
}

// FrameSink consumes frames and encodes them into a video.
type FrameSink interface {
	WriteFrame(img *image.NRGBA) error
	// Close finishes the encode and waits for the encoder.
	Close() error
	// Abort stops the encoder without finishing the file.
	Abort()
}

// decodeArgs builds an ffmpeg command that writes raw RGBA frames of the
// first video stream to stdout at a constant rate.
func decodeArgs(path string, rate FrameRate) []string {
	return []string{
		"-v", "error",
		"-i", path,
		"-map", "0:v:0",
		"-vf", "fps=" + rate.String(),
		"-an", "-sn",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}
}

// encodeArgs builds an ffmpeg command that reads raw RGBA frames from stdin
// and encodes VP9 with alpha into a WebM container.
func encodeArgs(dst string, size geometry.Size, rate FrameRate, bitrate string) []string {
	return []string{
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", size.String(),
		"-framerate", rate.String(),
		"-i", "pipe:0",
		"-c:v", "libvpx-vp9",
		"-pix_fmt", "yuva420p",
		"-b:v", bitrate,
		"-auto-alt-ref", "0",
		"-an",
		"-f", "webm",
		dst,
	}
}

type process struct {
	t      *Transcoder
	op     string
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr *tailBuffer
	start  time.Time
	done   bool
}

func (t *Transcoder) startProcess(ctx context.Context, op string, args []string) *process {
	ctx, cancel := t.withTimeout(ctx)
	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, args...)
	cmd.WaitDelay = waitDelay
	p := &process{
		t:      t,
		op:     op,
		cmd:    cmd,
		cancel: cancel,
		stderr: newTailBuffer(stderrTail),
	}
	cmd.Stderr = p.stderr
	logging.Debug("%s: %s %v", op, t.cfg.FFmpegPath, args)
	return p
}

func (p *process) begin() error {
	p.start = time.Now()
	if err := p.cmd.Start(); err != nil {
		p.cancel()
		observe(p.op, p.start, err)
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	p.t.track(p.cmd, p.op)
	return nil
}

// wait reaps the process once and folds its stderr into the error.
func (p *process) wait() error {
	if p.done {
		return nil
	}
	p.done = true
	defer p.cancel()
	defer p.t.untrack(p.cmd)

	err := p.cmd.Wait()
	observe(p.op, p.start, err)
	if err != nil {
		return fmt.Errorf("ffmpeg error: %w - %s", err, p.stderr.String())
	}
	return nil
}

func (p *process) kill() {
	p.cancel()
	_ = p.wait()
}

// FrameReader streams raw frames out of an ffmpeg decode.
type FrameReader struct {
	proc   *process
	stdout io.ReadCloser
	frame  *image.NRGBA
	count  int
}

// DecodeFrames starts decoding path into frames of the given size at rate.
func (t *Transcoder) DecodeFrames(ctx context.Context, path string, size geometry.Size, rate FrameRate) (FrameSource, error) {
	if size.Empty() {
		return nil, fmt.Errorf("invalid frame size %s", size)
	}
	p := t.startProcess(ctx, "decode_frames", decodeArgs(path, rate))
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		p.cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := p.begin(); err != nil {
		return nil, err
	}
	return &FrameReader{
		proc:   p,
		stdout: stdout,
		frame:  image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height)),
	}, nil
}

// Next reads one frame. The returned image is reused by the next call.
func (r *FrameReader) Next() (*image.NRGBA, error) {
	_, err := io.ReadFull(r.stdout, r.frame.Pix)
	switch {
	case err == nil:
		r.count++
		return r.frame, nil
	case errors.Is(err, io.EOF):
		if werr := r.proc.wait(); werr != nil {
			return nil, werr
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		if werr := r.proc.wait(); werr != nil {
			return nil, werr
		}
		return nil, fmt.Errorf("%w after %d frames", ErrShortFrame, r.count)
	default:
		r.proc.kill()
		return nil, err
	}
}

// Close stops the decoder if it is still running.
func (r *FrameReader) Close() error {
	if r.proc.done {
		return nil
	}
	r.proc.kill()
	return nil
}

// FrameWriter feeds raw frames into an ffmpeg encode.
type FrameWriter struct {
	proc  *process
	stdin io.WriteCloser
	size  geometry.Size
}

// NewEncoder starts an ffmpeg encode of size frames at rate into dst.
func (t *Transcoder) NewEncoder(ctx context.Context, dst string, size geometry.Size, rate FrameRate) (FrameSink, error) {
	if size.Empty() {
		return nil, fmt.Errorf("invalid frame size %s", size)
	}
	p := t.startProcess(ctx, "encode_frames", encodeArgs(dst, size, rate, t.cfg.VideoBitrate))
	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		p.cancel()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if err := p.begin(); err != nil {
		return nil, err
	}
	return &FrameWriter{proc: p, stdin: stdin, size: size}, nil
}

// WriteFrame sends one frame to the encoder.
func (w *FrameWriter) WriteFrame(img *image.NRGBA) error {
	b := img.Bounds()
	if b.Dx() != w.size.Width || b.Dy() != w.size.Height {
		return fmt.Errorf("frame is %dx%d, encoder expects %s", b.Dx(), b.Dy(), w.size)
	}

	rowLen := w.size.Width * 4
	if img.Stride == rowLen {
		_, err := w.stdin.Write(img.Pix[:rowLen*w.size.Height])
		return w.writeErr(err)
	}
	for y := 0; y < w.size.Height; y++ {
		off := y * img.Stride
		if _, err := w.stdin.Write(img.Pix[off : off+rowLen]); err != nil {
			return w.writeErr(err)
		}
	}
	return nil
}

// writeErr turns a broken pipe into the encoder's own error message.
func (w *FrameWriter) writeErr(err error) error {
	if err == nil {
		return nil
	}
	_ = w.stdin.Close()
	if werr := w.proc.wait(); werr != nil {
		return werr
	}
	return fmt.Errorf("failed to write frame: %w", err)
}

// Close flushes the encoder and waits for the output to be finalised.
func (w *FrameWriter) Close() error {
	if w.proc.done {
		return nil
	}
	if err := w.stdin.Close(); err != nil {
		logging.Debug("closing encoder stdin: %v", err)
	}
	return w.proc.wait()
}

// Abort kills the encoder.
func (w *FrameWriter) Abort() {
	if w.proc.done {
		return
	}
	_ = w.stdin.Close()
	w.proc.kill()
}
