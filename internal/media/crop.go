package media

import (
	"image"
	"image/color"

	"framecut/internal/geometry"

	"github.com/disintegration/imaging"
)

// CropImage writes the region r of src to dst. libvips is used when it has
// been initialised, otherwise the image is decoded and cropped in memory.
// The result is flattened onto white so JPEG output has no alpha.
func (c *Codec) CropImage(src, dst string, r geometry.Rect) error {
	if IsVipsAvailable() {
		return CropWithVips(src, dst, r, c.JPEGQuality)
	}

	img, err := c.Decode(src)
	if err != nil {
		return err
	}
	return c.Encode(dst, CropFrame(img, r))
}

// CropFrame returns the r sub-rectangle of img composited over opaque white.
func CropFrame(img image.Image, r geometry.Rect) *image.NRGBA {
	rect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height).Add(img.Bounds().Min)
	cropped := imaging.Crop(img, rect)
	bg := imaging.New(cropped.Bounds().Dx(), cropped.Bounds().Dy(), color.White)
	return imaging.Overlay(bg, cropped, image.Point{}, 1.0)
}
