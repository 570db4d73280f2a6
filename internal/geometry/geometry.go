package geometry

import (
	"errors"
	"fmt"
)

// Point is an integer pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a pixel resolution.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is an axis-aligned rectangle given by its top-left corner and extent.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// Quad is a four-point polygon. Vertices are used in the order given.
type Quad [4]Point

// Shape identifies which geometry a Region carries.
type Shape int

const (
	// ShapeRect is an axis-aligned rectangle region.
	ShapeRect Shape = iota
	// ShapeQuad is a four-point polygon region.
	ShapeQuad
)

// Orientation classifies media as wide or tall.
type Orientation string

const (
	// Wide media has width strictly greater than height.
	Wide Orientation = "wide"
	// Tall media has height greater than or equal to width.
	Tall Orientation = "tall"
)

// ErrInvalidRegion is returned when a calibration region violates its invariants.
var ErrInvalidRegion = errors.New("invalid calibration region")

// OrientationOf returns Wide when width > height, otherwise Tall.
func OrientationOf(s Size) Orientation {
	if s.Width > s.Height {
		return Wide
	}
	return Tall
}

// ParseOrientation accepts "wide"/"horizontal" and "tall"/"vertical".
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "wide", "horizontal":
		return Wide, nil
	case "tall", "vertical":
		return Tall, nil
	}
	return "", fmt.Errorf("unknown orientation %q", s)
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Empty reports whether the size has no pixels.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Intersect clips r to the rectangle [0,w)x[0,h) of the given size.
func (r Rect) Intersect(s Size) Rect {
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.Width, s.Width), min(r.Y+r.Height, s.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Region is rectangle or quadrilateral geometry in pixel space.
type Region struct {
	Shape Shape
	Rect  Rect
	Quad  Quad
}

// RectRegion wraps a rectangle.
func RectRegion(r Rect) Region {
	return Region{Shape: ShapeRect, Rect: r}
}

// QuadRegion wraps a quadrilateral.
func QuadRegion(q Quad) Region {
	return Region{Shape: ShapeQuad, Quad: q}
}

// Contains reports whether pixel (x, y) lies inside the region.
//
// Rectangles are half-open: [x, x+w) by [y, y+h). Quadrilaterals use the
// even-odd crossing rule, in which an edge is crossed when it straddles y
// (one endpoint strictly above, the other not) and x lies strictly left of
// the intersection. Left and top edges are therefore inside, right and bottom
// edges outside, matching the rectangle convention.
func (r Region) Contains(x, y int) bool {
	if r.Shape == ShapeRect {
		return x >= r.Rect.X && x < r.Rect.X+r.Rect.Width &&
			y >= r.Rect.Y && y < r.Rect.Y+r.Rect.Height
	}

	inside := false
	q := r.Quad
	for i, j := 0, len(q)-1; i < len(q); j, i = i, i+1 {
		xi, yi := int64(q[i].X), int64(q[i].Y)
		xj, yj := int64(q[j].X), int64(q[j].Y)
		py := int64(y)
		if (yi > py) == (yj > py) {
			continue
		}
		// x < xi + (xj-xi)*(y-yi)/(yj-yi), compared without division.
		lhs := (int64(x) - xi) * (yj - yi)
		rhs := (xj - xi) * (py - yi)
		if yj-yi > 0 {
			if lhs < rhs {
				inside = !inside
			}
		} else if lhs > rhs {
			inside = !inside
		}
	}
	return inside
}

// Bounds returns the smallest rectangle enclosing the region.
func (r Region) Bounds() Rect {
	if r.Shape == ShapeRect {
		return r.Rect
	}
	minX, minY := r.Quad[0].X, r.Quad[0].Y
	maxX, maxY := minX, minY
	for _, p := range r.Quad[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Points returns the region vertices. Rectangles yield their four corners
// clockwise from the top-left.
func (r Region) Points() []Point {
	if r.Shape == ShapeQuad {
		return r.Quad[:]
	}
	x0, y0 := r.Rect.X, r.Rect.Y
	x1, y1 := x0+r.Rect.Width, y0+r.Rect.Height
	return []Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// CalibrationRegion is a region measured against a known base resolution.
type CalibrationRegion struct {
	Base   Size
	Region Region
}

// Validate checks that the base size is positive and every point lies in
// [0, base_w] x [0, base_h].
func (c CalibrationRegion) Validate() error {
	if c.Base.Empty() {
		return fmt.Errorf("%w: base size %s", ErrInvalidRegion, c.Base)
	}
	if c.Region.Shape == ShapeRect && c.Region.Rect.Empty() {
		return fmt.Errorf("%w: empty rectangle %+v", ErrInvalidRegion, c.Region.Rect)
	}
	for _, p := range c.Region.Points() {
		if p.X < 0 || p.Y < 0 || p.X > c.Base.Width || p.Y > c.Base.Height {
			return fmt.Errorf("%w: point (%d,%d) outside base %s", ErrInvalidRegion, p.X, p.Y, c.Base)
		}
	}
	return nil
}

// Scale maps the calibration region onto the actual resolution. Each axis is
// scaled independently by actual/base and truncated toward zero. The result
// is not clipped to the actual bounds.
func Scale(c CalibrationRegion, actual Size) Region {
	sx := float64(actual.Width) / float64(c.Base.Width)
	sy := float64(actual.Height) / float64(c.Base.Height)

	if c.Region.Shape == ShapeRect {
		r := c.Region.Rect
		return RectRegion(Rect{
			X:      scaleAxis(r.X, sx),
			Y:      scaleAxis(r.Y, sy),
			Width:  scaleAxis(r.Width, sx),
			Height: scaleAxis(r.Height, sy),
		})
	}

	var q Quad
	for i, p := range c.Region.Quad {
		q[i] = Point{X: scaleAxis(p.X, sx), Y: scaleAxis(p.Y, sy)}
	}
	return QuadRegion(q)
}

func scaleAxis(v int, s float64) int {
	return int(float64(v) * s)
}
