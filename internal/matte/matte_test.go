package matte

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"framecut/internal/calibration"
	"framecut/internal/geometry"
)

func TestIsBackground(t *testing.T) {
	tests := []struct {
		name      string
		c         color.NRGBA
		threshold Threshold
		want      bool
	}{
		{"pure white", color.NRGBA{255, 255, 255, 255}, 250, true},
		{"red just below", color.NRGBA{249, 255, 255, 255}, 250, false},
		{"green just below", color.NRGBA{255, 249, 255, 255}, 250, false},
		{"blue just below", color.NRGBA{255, 255, 249, 255}, 250, false},
		{"exactly at threshold", color.NRGBA{250, 250, 250, 255}, 250, true},
		{"alpha ignored", color.NRGBA{255, 255, 255, 0}, 250, true},
		{"zero threshold matches black", color.NRGBA{0, 0, 0, 255}, 0, true},
		{"max threshold needs pure white", color.NRGBA{254, 255, 255, 255}, 255, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBackground(tt.c, tt.threshold); got != tt.want {
				t.Errorf("IsBackground(%v, %d) = %v, want %v", tt.c, tt.threshold, got, tt.want)
			}
		})
	}
}

func fill(img *image.NRGBA, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func TestApplyWideCalibrationAtBaseSize(t *testing.T) {
	s := calibration.Default()
	size := geometry.Size{Width: 883, Height: 737}
	if geometry.OrientationOf(size) != geometry.Wide {
		t.Fatal("883x737 must be wide")
	}

	img := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	fill(img, color.NRGBA{255, 255, 255, 255})

	p := NewProcessor(s.Mask, DefaultThreshold)
	if _, err := p.ProcessFrame(img); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}

	region := s.Mask.Wide.Region
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			a := img.NRGBAAt(x, y).A
			if region.Contains(x, y) {
				if a != 255 {
					t.Fatalf("inside pixel (%d,%d) alpha = %d, want 255", x, y, a)
				}
			} else if a != 0 {
				t.Fatalf("outside pixel (%d,%d) alpha = %d, want 0", x, y, a)
			}
		}
	}
}

func TestApplyLeavesInsideAndColoredPixels(t *testing.T) {
	size := geometry.Size{Width: 20, Height: 20}
	mask := geometry.NewMask(geometry.RectRegion(geometry.Rect{X: 5, Y: 5, Width: 10, Height: 10}), size)

	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	fill(img, color.NRGBA{255, 255, 255, 255})
	// A dark pixel outside the frame must keep its alpha.
	img.SetNRGBA(1, 1, color.NRGBA{30, 30, 30, 255})
	// A half-transparent white pixel inside must stay as is.
	img.SetNRGBA(7, 7, color.NRGBA{255, 255, 255, 128})

	n, err := Apply(img, mask, 250)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if want := 400 - 100 - 1; n != want {
		t.Errorf("cleared = %d, want %d", n, want)
	}
	if got := img.NRGBAAt(1, 1); got.A != 255 {
		t.Errorf("dark outside pixel alpha = %d, want 255", got.A)
	}
	if got := img.NRGBAAt(7, 7); got != (color.NRGBA{255, 255, 255, 128}) {
		t.Errorf("inside pixel changed to %v", got)
	}
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{255, 255, 255, 0}) {
		t.Errorf("outside white pixel = %v, want color kept with alpha 0", got)
	}
}

func TestApplyIdempotent(t *testing.T) {
	size := geometry.Size{Width: 64, Height: 48}
	region := geometry.QuadRegion(geometry.Quad{{X: 5, Y: 4}, {X: 7, Y: 40}, {X: 60, Y: 44}, {X: 58, Y: 3}})
	mask := geometry.NewMask(region, size)

	img := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			v := uint8(240 + (x+y)%16)
			img.SetNRGBA(x, y, color.NRGBA{v, v, 255, uint8(200 + x%56)})
		}
	}

	if _, err := Apply(img, mask, 250); err != nil {
		t.Fatal(err)
	}
	once := bytes.Clone(img.Pix)

	n, err := Apply(img, mask, 250)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second pass cleared %d pixels, want 0", n)
	}
	if !bytes.Equal(once, img.Pix) {
		t.Error("second pass changed the frame")
	}
}

func TestApplySizeMismatch(t *testing.T) {
	mask := geometry.NewMask(geometry.RectRegion(geometry.Rect{Width: 5, Height: 5}), geometry.Size{Width: 10, Height: 10})
	img := image.NewNRGBA(image.Rect(0, 0, 10, 11))
	if _, err := Apply(img, mask, 250); !errors.Is(err, ErrMaskSize) {
		t.Errorf("Apply() error = %v, want ErrMaskSize", err)
	}
}

func TestApplySubImage(t *testing.T) {
	parent := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	fill(parent, color.NRGBA{255, 255, 255, 255})
	sub := parent.SubImage(image.Rect(5, 5, 10, 10)).(*image.NRGBA)

	mask := geometry.NewMask(geometry.RectRegion(geometry.Rect{X: 0, Y: 0, Width: 2, Height: 5}), geometry.Size{Width: 5, Height: 5})
	n, err := Apply(sub, mask, 250)
	if err != nil {
		t.Fatal(err)
	}
	if n != 15 {
		t.Errorf("cleared = %d, want 15", n)
	}
	if parent.NRGBAAt(6, 6).A != 255 || parent.NRGBAAt(8, 6).A != 0 {
		t.Error("sub-image offsets not respected")
	}
	if parent.NRGBAAt(0, 0).A != 255 {
		t.Error("pixels outside the sub-image were modified")
	}
}

func TestProcessorCachesMasks(t *testing.T) {
	p := NewProcessor(calibration.Default().Mask, DefaultThreshold)
	size := geometry.Size{Width: 720, Height: 1280}

	a := p.Mask(size)
	b := p.Mask(size)
	if a != b {
		t.Error("expected cached mask to be reused")
	}
	if c := p.Mask(geometry.Size{Width: 1280, Height: 720}); c == a {
		t.Error("different orientation must not share a mask")
	}

	region, o := p.Region(size)
	if o != geometry.Tall {
		t.Errorf("orientation = %s, want tall", o)
	}
	want := geometry.Scale(calibration.Default().Mask.Tall, size)
	if region != want {
		t.Errorf("Region() = %+v, want %+v", region, want)
	}
}

func TestProcessorCacheBound(t *testing.T) {
	p := NewProcessor(calibration.Default().Mask, DefaultThreshold)
	for i := 0; i < maxCachedMasks+4; i++ {
		p.Mask(geometry.Size{Width: 100 + i, Height: 50})
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.masks) > maxCachedMasks {
		t.Errorf("cache holds %d masks, limit %d", len(p.masks), maxCachedMasks)
	}
}
