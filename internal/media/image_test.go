package media

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"framecut/internal/geometry"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// createTestImage creates a gradient test image and saves it to the given path
func createTestImage(t *testing.T, path string, width, height int, format string) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image file: %v", err)
	}
	defer f.Close()

	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	case "png":
		err = png.Encode(f, img)
	case "bmp":
		err = bmp.Encode(f, img)
	case "tiff":
		err = tiff.Encode(f, img, nil)
	default:
		t.Fatalf("Unsupported test image format: %s", format)
	}

	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

func TestCodecDimensions(t *testing.T) {
	tmpDir := t.TempDir()
	c := NewCodec()

	tests := []struct {
		name   string
		file   string
		format string
		width  int
		height int
	}{
		{"wide png", "wide.png", "png", 883, 737},
		{"tall jpeg", "tall.jpg", "jpeg", 737, 883},
		{"bmp", "still.bmp", "bmp", 40, 30},
		{"tiff", "still.tif", "tiff", 30, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			createTestImage(t, path, tt.width, tt.height, tt.format)

			got, err := c.Dimensions(path)
			if err != nil {
				t.Fatalf("Dimensions() error = %v", err)
			}
			if want := (geometry.Size{Width: tt.width, Height: tt.height}); got != want {
				t.Errorf("Dimensions() = %v, want %v", got, want)
			}
		})
	}
}

func TestCodecDimensionsErrors(t *testing.T) {
	tmpDir := t.TempDir()
	c := NewCodec()

	if _, err := c.Dimensions(filepath.Join(tmpDir, "missing.png")); !os.IsNotExist(err) {
		t.Errorf("missing file error = %v, want not exist", err)
	}

	garbage := filepath.Join(tmpDir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Dimensions(garbage); err == nil {
		t.Error("expected error for corrupt image")
	}
}

func TestCodecDecodeReturnsNRGBA(t *testing.T) {
	tmpDir := t.TempDir()
	c := NewCodec()

	for _, format := range []string{"png", "jpeg", "bmp", "tiff"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(tmpDir, "img."+format)
			createTestImage(t, path, 16, 12, format)

			img, err := c.Decode(path)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if img.Bounds() != image.Rect(0, 0, 16, 12) {
				t.Errorf("bounds = %v", img.Bounds())
			}
			if a := img.NRGBAAt(3, 3).A; a != 255 {
				t.Errorf("alpha = %d, want 255", a)
			}
		})
	}
}

func TestCodecEncodeRoundTripKeepsAlpha(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	c := NewCodec()

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(0, 0, color.NRGBA{255, 255, 255, 0})
	img.SetNRGBA(1, 1, color.NRGBA{10, 20, 30, 255})
	img.SetNRGBA(2, 2, color.NRGBA{200, 100, 50, 128})

	if err := c.Encode(path, img); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := c.Decode(path)
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range []image.Point{{0, 0}, {1, 1}, {2, 2}} {
		if got.NRGBAAt(p.X, p.Y) != img.NRGBAAt(p.X, p.Y) {
			t.Errorf("pixel %v = %v, want %v", p, got.NRGBAAt(p.X, p.Y), img.NRGBAAt(p.X, p.Y))
		}
	}
}

func TestCodecEncodeUnsupported(t *testing.T) {
	c := NewCodec()
	err := c.Encode(filepath.Join(t.TempDir(), "out.xyz"), image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Encode(.xyz) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestCodecEncodeUsesPartialExtension(t *testing.T) {
	// Atomic outputs are written under names like ".art.partial-123.png".
	path := filepath.Join(t.TempDir(), ".art.partial-123.png")
	if err := NewCodec().Encode(path, image.NewNRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, format, err := image.DecodeConfig(f); err != nil || format != "png" {
		t.Errorf("format = %q, err = %v; want png", format, err)
	}
}
