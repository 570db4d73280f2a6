package matte

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"framecut/internal/geometry"
)

// Threshold is the minimum value every color channel must reach for a pixel
// to count as white backdrop.
type Threshold uint8

// DefaultThreshold matches the near-white paper behind the frame.
const DefaultThreshold Threshold = 250

// ErrMaskSize is returned when a mask does not match the frame dimensions.
var ErrMaskSize = errors.New("mask size does not match frame")

// IsBackground reports whether red, green and blue are all at or above the
// threshold. Alpha is ignored.
func IsBackground(c color.NRGBA, t Threshold) bool {
	return c.R >= uint8(t) && c.G >= uint8(t) && c.B >= uint8(t)
}

// Apply clears the alpha channel of every pixel that lies outside the mask
// and is background white. Pixels inside the mask are never touched. The
// frame is modified in place and the number of pixels whose alpha changed is
// returned. Applying the same mask twice is a no-op the second time.
func Apply(img *image.NRGBA, mask *geometry.Mask, t Threshold) (int, error) {
	b := img.Bounds()
	if mask.Size() != (geometry.Size{Width: b.Dx(), Height: b.Dy()}) {
		return 0, fmt.Errorf("%w: mask %s, frame %dx%d", ErrMaskSize, mask.Size(), b.Dx(), b.Dy())
	}

	cleared := 0
	w := b.Dx()
	thr := uint8(t)
	for y := 0; y < b.Dy(); y++ {
		inside := mask.Row(y)
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			if inside[x] != 0 {
				continue
			}
			px := row[x*4 : x*4+4 : x*4+4]
			if px[0] >= thr && px[1] >= thr && px[2] >= thr && px[3] != 0 {
				px[3] = 0
				cleared++
			}
		}
	}
	return cleared, nil
}
