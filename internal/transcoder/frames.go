package transcoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"framecut/internal/crop"
	"framecut/internal/geometry"
)

// FramePattern names extracted frames inside a workspace.
const FramePattern = "frame_%05d.png"

func extractArgs(src, dir string, rate FrameRate) []string {
	return []string{
		"-y",
		"-v", "error",
		"-i", src,
		"-map", "0:v:0",
		"-vf", "fps=" + rate.String(),
		filepath.Join(dir, FramePattern),
	}
}

func assembleArgs(dir, dst string, rate FrameRate, bitrate string) []string {
	return []string{
		"-y",
		"-v", "error",
		"-framerate", rate.String(),
		"-i", filepath.Join(dir, FramePattern),
		"-c:v", "libvpx-vp9",
		"-pix_fmt", "yuva420p",
		"-b:v", bitrate,
		"-auto-alt-ref", "0",
		"-an",
		"-f", "webm",
		dst,
	}
}

func cropArgs(src, dst string, r geometry.Rect, preset string, crf int) []string {
	return []string{
		"-y",
		"-v", "error",
		"-i", src,
		"-vf", crop.FilterExpr(r),
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", fmt.Sprint(crf),
		"-an",
		"-f", "mp4",
		dst,
	}
}

// ExtractFrames writes every frame of src into dir as numbered PNGs at the
// given rate and returns their paths in order.
func (t *Transcoder) ExtractFrames(ctx context.Context, src, dir string, rate FrameRate) ([]string, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	if err := t.run(ctx, "extract_frames", t.cfg.FFmpegPath, extractArgs(src, dir, rate), nil); err != nil {
		return nil, err
	}
	return ListFrames(dir)
}

// ListFrames returns the numbered frame files in dir, sorted.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var frames []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".png") {
			frames = append(frames, filepath.Join(dir, name))
		}
	}
	slices.Sort(frames)
	return frames, nil
}

// AssembleFrames encodes the numbered PNGs in dir into a VP9 WebM with alpha.
func (t *Transcoder) AssembleFrames(ctx context.Context, dir, dst string, rate FrameRate) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	return t.run(ctx, "assemble_frames", t.cfg.FFmpegPath, assembleArgs(dir, dst, rate, t.cfg.VideoBitrate), nil)
}

// Crop encodes the r rectangle of src into an H.264 MP4 without audio.
func (t *Transcoder) Crop(ctx context.Context, src, dst string, r geometry.Rect) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	return t.run(ctx, "crop", t.cfg.FFmpegPath, cropArgs(src, dst, r, t.cfg.CropPreset, t.cfg.CropCRF), nil)
}

// Version returns the first line of `ffmpeg -version`.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	var out strings.Builder
	if err := t.run(ctx, "version", t.cfg.FFmpegPath, []string{"-version"}, &out); err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line), nil
}
