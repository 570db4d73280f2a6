package geometry

import (
	"image"
	"slices"
)

const (
	maskOutside uint8 = 0
	maskInside  uint8 = 255
)

// Mask is a precomputed per-pixel containment map for one region at one
// resolution. Row-major, one byte per pixel: 255 inside, 0 outside.
type Mask struct {
	size Size
	pix  []uint8
}

// NewMask rasterises the region over a canvas of the given size. The result
// matches Region.Contains for every pixel. Regions extending past the canvas
// are clipped.
func NewMask(r Region, s Size) *Mask {
	m := &Mask{size: s}
	if s.Empty() {
		return m
	}
	m.pix = make([]uint8, s.Width*s.Height)

	if r.Shape == ShapeRect {
		c := r.Rect.Intersect(s)
		for y := c.Y; y < c.Y+c.Height; y++ {
			m.fillSpan(y, c.X, c.X+c.Width)
		}
		return m
	}

	b := r.Bounds()
	y0, y1 := max(b.Y, 0), min(b.Y+b.Height+1, s.Height)
	xs := make([]int, 0, len(r.Quad))
	for y := y0; y < y1; y++ {
		xs = quadCrossings(r.Quad, y, xs[:0])
		slices.Sort(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			m.fillSpan(y, xs[i], xs[i+1])
		}
	}
	return m
}

// quadCrossings appends, for each edge straddling row y, the smallest
// integer x that is not left of the edge's intersection with that row.
// Pixels with x below the returned threshold count the edge as crossed.
func quadCrossings(q Quad, y int, dst []int) []int {
	py := int64(y)
	for i, j := 0, len(q)-1; i < len(q); j, i = i, i+1 {
		xi, yi := int64(q[i].X), int64(q[i].Y)
		xj, yj := int64(q[j].X), int64(q[j].Y)
		if (yi > py) == (yj > py) {
			continue
		}
		num := (xj - xi) * (py - yi)
		den := yj - yi
		if den < 0 {
			num, den = -num, -den
		}
		dst = append(dst, int(xi+ceilDiv(num, den)))
	}
	return dst
}

func ceilDiv(num, den int64) int64 {
	q := num / den
	if num%den != 0 && num > 0 {
		q++
	}
	return q
}

func (m *Mask) fillSpan(y, x0, x1 int) {
	x0, x1 = max(x0, 0), min(x1, m.size.Width)
	if x1 <= x0 {
		return
	}
	row := m.pix[y*m.size.Width : (y+1)*m.size.Width]
	for x := x0; x < x1; x++ {
		row[x] = maskInside
	}
}

// Size returns the mask resolution.
func (m *Mask) Size() Size {
	return m.size
}

// Inside reports whether (x, y) is inside the region. Coordinates outside
// the canvas are outside.
func (m *Mask) Inside(x, y int) bool {
	if x < 0 || y < 0 || x >= m.size.Width || y >= m.size.Height {
		return false
	}
	return m.pix[y*m.size.Width+x] == maskInside
}

// Row returns the mask bytes for row y. Callers must not modify it.
func (m *Mask) Row(y int) []uint8 {
	return m.pix[y*m.size.Width : (y+1)*m.size.Width]
}

// InsideCount returns the number of pixels inside the region.
func (m *Mask) InsideCount() int {
	n := 0
	for _, v := range m.pix {
		if v == maskInside {
			n++
		}
	}
	return n
}

// Gray returns the mask as a grayscale image sharing the mask's storage.
func (m *Mask) Gray() *image.Gray {
	return &image.Gray{
		Pix:    m.pix,
		Stride: m.size.Width,
		Rect:   image.Rect(0, 0, m.size.Width, m.size.Height),
	}
}
