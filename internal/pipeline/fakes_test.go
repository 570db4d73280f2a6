package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"framecut/internal/calibration"
	"framecut/internal/geometry"
	"framecut/internal/matte"
	"framecut/internal/media"
	"framecut/internal/transcoder"

	"github.com/disintegration/imaging"
)

// fakeClip describes a synthetic video known to fakeVideo.
type fakeClip struct {
	size   geometry.Size
	rate   transcoder.FrameRate
	frames int
	// probeErr fails Probe.
	probeErr error
}

// encoded captures what an encoder received.
type encoded struct {
	size       geometry.Size
	rate       transcoder.FrameRate
	frames     int
	badOutside int
	badInside  int
}

// fakeVideo stands in for ffmpeg. Clips are white frames; encoders check
// the alpha of every frame they receive against the expected mask.
type fakeVideo struct {
	mu        sync.Mutex
	clips     map[string]fakeClip
	expect    *geometry.Mask
	encodes   map[string]*encoded
	crops     map[string]geometry.Rect
	probed    []string
	onProbe   func(path string)
	failWrite int
	codec     *media.Codec
}

func newFakeVideo() *fakeVideo {
	return &fakeVideo{
		clips:   map[string]fakeClip{},
		encodes: map[string]*encoded{},
		crops:   map[string]geometry.Rect{},
		codec:   media.NewCodec(),
	}
}

func (f *fakeVideo) clip(path string) (fakeClip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clips[filepath.Base(path)]
	if !ok {
		return fakeClip{}, fmt.Errorf("no clip %s", path)
	}
	return c, nil
}

func (f *fakeVideo) Probe(_ context.Context, path string) (*transcoder.VideoInfo, error) {
	f.mu.Lock()
	f.probed = append(f.probed, filepath.Base(path))
	hook := f.onProbe
	f.mu.Unlock()
	if hook != nil {
		hook(path)
	}

	c, err := f.clip(path)
	if err != nil {
		return nil, err
	}
	if c.probeErr != nil {
		return nil, c.probeErr
	}
	return &transcoder.VideoInfo{
		Width:     c.size.Width,
		Height:    c.size.Height,
		FrameRate: c.rate,
		Frames:    c.frames,
		Codec:     "h264",
	}, nil
}

func whiteFrame(size geometry.Size) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

type fakeSource struct {
	frame     *image.NRGBA
	remaining int
	closed    bool
}

func (s *fakeSource) Next() (*image.NRGBA, error) {
	if s.remaining == 0 {
		return nil, io.EOF
	}
	s.remaining--
	// refill, since the previous frame was mutated in place
	for i := range s.frame.Pix {
		s.frame.Pix[i] = 255
	}
	return s.frame, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func (f *fakeVideo) DecodeFrames(_ context.Context, path string, size geometry.Size, rate transcoder.FrameRate) (transcoder.FrameSource, error) {
	c, err := f.clip(path)
	if err != nil {
		return nil, err
	}
	if size != c.size || rate != c.rate {
		return nil, fmt.Errorf("decode called with %s@%s, clip is %s@%s", size, rate, c.size, c.rate)
	}
	return &fakeSource{frame: whiteFrame(size), remaining: c.frames}, nil
}

type fakeSink struct {
	f       *fakeVideo
	dst     string
	rec     *encoded
	aborted bool
}

func (s *fakeSink) WriteFrame(img *image.NRGBA) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.failWrite > 0 && s.rec.frames+1 >= s.f.failWrite {
		return errors.New("encoder exited: broken pipe")
	}
	s.rec.frames++
	s.f.checkFrame(img, s.rec)
	return nil
}

func (f *fakeVideo) checkFrame(img *image.NRGBA, rec *encoded) {
	if f.expect == nil {
		return
	}
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			a := img.NRGBAAt(b.Min.X+x, b.Min.Y+y).A
			if f.expect.Inside(x, y) {
				if a != 255 {
					rec.badInside++
				}
			} else if a != 0 {
				rec.badOutside++
			}
		}
	}
}

func (s *fakeSink) Close() error {
	return os.WriteFile(s.dst, []byte(fmt.Sprintf("webm frames=%d", s.rec.frames)), 0o644)
}

func (s *fakeSink) Abort() {
	s.aborted = true
}

func (f *fakeVideo) NewEncoder(_ context.Context, dst string, size geometry.Size, rate transcoder.FrameRate) (transcoder.FrameSink, error) {
	rec := &encoded{size: size, rate: rate}
	f.mu.Lock()
	f.encodes[dst] = rec
	f.mu.Unlock()
	return &fakeSink{f: f, dst: dst, rec: rec}, nil
}

func (f *fakeVideo) ExtractFrames(_ context.Context, src, dir string, rate transcoder.FrameRate) ([]string, error) {
	c, err := f.clip(src)
	if err != nil {
		return nil, err
	}
	if rate != c.rate {
		return nil, fmt.Errorf("extract at %s, clip is %s", rate, c.rate)
	}
	frame := whiteFrame(c.size)
	for i := 1; i <= c.frames; i++ {
		if err := f.codec.Encode(filepath.Join(dir, fmt.Sprintf(transcoder.FramePattern, i)), frame); err != nil {
			return nil, err
		}
	}
	return transcoder.ListFrames(dir)
}

func (f *fakeVideo) AssembleFrames(_ context.Context, dir, dst string, rate transcoder.FrameRate) error {
	frames, err := transcoder.ListFrames(dir)
	if err != nil {
		return err
	}
	rec := &encoded{rate: rate}
	for _, path := range frames {
		img, err := f.codec.Decode(path)
		if err != nil {
			return err
		}
		b := img.Bounds()
		rec.size = geometry.Size{Width: b.Dx(), Height: b.Dy()}
		rec.frames++
		f.checkFrame(img, rec)
	}
	f.mu.Lock()
	f.encodes[dst] = rec
	f.mu.Unlock()
	return os.WriteFile(dst, []byte(fmt.Sprintf("webm frames=%d", rec.frames)), 0o644)
}

func (f *fakeVideo) Crop(_ context.Context, src, dst string, r geometry.Rect) error {
	if _, err := f.clip(src); err != nil {
		return err
	}
	f.mu.Lock()
	f.crops[filepath.Base(src)] = r
	f.mu.Unlock()
	return os.WriteFile(dst, []byte("mp4"), 0o644)
}

// encodedFor returns the capture for the committed output or its partial.
func (f *fakeVideo) encodedFor(t *testing.T) *encoded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.encodes) != 1 {
		t.Fatalf("encodes = %d, want 1", len(f.encodes))
	}
	for _, rec := range f.encodes {
		return rec
	}
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, localPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, filepath.Base(localPath))
	return nil
}

// touch creates placeholder input files.
func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(n), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

// writeWhiteImage saves an opaque white image in a format chosen by extension.
func writeWhiteImage(t *testing.T, path string, size geometry.Size) {
	t.Helper()
	img := imaging.New(size.Width, size.Height, color.White)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
}

func testOptions(t *testing.T, mode calibration.Mode) Options {
	t.Helper()
	return Options{
		Mode:        mode,
		Calibration: calibration.Default(),
		Threshold:   matte.DefaultThreshold,
		OutputDir:   t.TempDir(),
		WorkDir:     t.TempDir(),
	}
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
