package media

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"

	"framecut/internal/filesystem"
	"framecut/internal/geometry"
	"framecut/internal/logging"

	// Image format decoders
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

// DefaultJPEGQuality is used for cropped stills.
const DefaultJPEGQuality = 95

// ErrUnsupportedFormat is returned when an output extension has no encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Codec decodes and encodes still frames. Decoded images are always
// *image.NRGBA so the frame processor can edit alpha directly. EXIF
// orientation is not applied: the calibration is measured on the stored
// pixel grid.
type Codec struct {
	JPEGQuality    int
	PNGCompression png.CompressionLevel
	RetryConfig    filesystem.RetryConfig
}

// NewCodec returns a codec with the default quality settings.
func NewCodec() *Codec {
	return &Codec{
		JPEGQuality:    DefaultJPEGQuality,
		PNGCompression: png.DefaultCompression,
		RetryConfig:    filesystem.DefaultRetryConfig(),
	}
}

// Decode reads an image file into a straight-alpha RGBA buffer.
func (c *Codec) Decode(path string) (*image.NRGBA, error) {
	f, err := filesystem.OpenWithRetry(path, c.RetryConfig)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	img, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return toNRGBA(img), nil
}

// toNRGBA returns img itself when it is already NRGBA at the origin, and a
// converted copy otherwise.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

// Encode writes img to path, choosing the format from the file extension.
func (c *Codec) Encode(path string, img image.Image) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := imaging.Encode(f, img, format,
		imaging.JPEGQuality(c.JPEGQuality),
		imaging.PNGCompressionLevel(c.PNGCompression),
	); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// Dimensions returns the size of an image without decoding its pixels.
func (c *Codec) Dimensions(path string) (geometry.Size, error) {
	f, err := filesystem.OpenWithRetry(path, c.RetryConfig)
	if err != nil {
		return geometry.Size{}, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		return geometry.Size{}, fmt.Errorf("failed to read dimensions of %s: %w", path, err)
	}
	return geometry.Size{Width: config.Width, Height: config.Height}, nil
}
