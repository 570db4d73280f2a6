// Package crop plans the axis-aligned crop that trims footage to the inner
// edge of the picture frame.
package crop

import (
	"errors"
	"fmt"

	"framecut/internal/geometry"
)

// ErrNotRectangle is returned when a crop is planned from a quadrilateral
// region.
var ErrNotRectangle = errors.New("crop region must be a rectangle")

// Plan scales a calibrated crop rectangle to the actual input size. x, y, w
// and h are scaled independently and truncated, so the result may extend
// past the input when the calibration does; callers clip with Clip.
func Plan(c geometry.CalibrationRegion, actual geometry.Size) (geometry.Rect, error) {
	if c.Region.Shape != geometry.ShapeRect {
		return geometry.Rect{}, ErrNotRectangle
	}
	if actual.Empty() {
		return geometry.Rect{}, fmt.Errorf("%w: input size %s", geometry.ErrInvalidRegion, actual)
	}
	return geometry.Scale(c, actual).Rect, nil
}

// Clip intersects a planned rectangle with the input bounds and fails when
// nothing is left.
func Clip(r geometry.Rect, actual geometry.Size) (geometry.Rect, error) {
	clipped := r.Intersect(actual)
	if clipped.Empty() {
		return geometry.Rect{}, fmt.Errorf("%w: crop %+v lies outside %s", geometry.ErrInvalidRegion, r, actual)
	}
	return clipped, nil
}

// FilterExpr renders the rectangle as an ffmpeg crop filter.
func FilterExpr(r geometry.Rect) string {
	return fmt.Sprintf("crop=%d:%d:%d:%d", r.Width, r.Height, r.X, r.Y)
}
