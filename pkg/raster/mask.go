// Package raster turns ROI contours into pixel-space polygons and binary
// coverage masks.
package raster

import (
	"image"
	"math"
	"sort"
)

// Polygon is a closed ring of pixel coordinates. The last point connects
// back to the first.
type Polygon []image.Point

// Mask is a binary coverage grid the size of one slice.
type Mask struct {
	width  int
	height int
	data   []bool
}

// NewMask creates an empty mask with the given dimensions.
func NewMask(width, height int) *Mask {
	return &Mask{
		width:  width,
		height: height,
		data:   make([]bool, width*height),
	}
}

// Bounds returns the mask dimensions as an image.Rectangle.
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// At reports whether (x, y) is covered.
// Returns false for coordinates outside the mask bounds.
func (m *Mask) At(x, y int) bool {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return false
	}
	return m.data[y*m.width+x]
}

// Set marks (x, y) as covered.
// Coordinates outside the mask bounds are ignored.
func (m *Mask) Set(x, y int) {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return
	}
	m.data[y*m.width+x] = true
}

// Xor combines other into m with exclusive-or. Both masks must have the
// same dimensions.
func (m *Mask) Xor(other *Mask) {
	if m.width != other.width || m.height != other.height {
		panic("raster: mask dimensions differ")
	}
	for i, v := range other.data {
		m.data[i] = m.data[i] != v
	}
}

// Count returns the number of covered pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.data {
		if v {
			n++
		}
	}
	return n
}

// Each calls fn for every covered pixel in row-major order.
func (m *Mask) Each(fn func(x, y int)) {
	for i, v := range m.data {
		if v {
			fn(i%m.width, i/m.width)
		}
	}
}

// FillPolygon marks the interior and the outline of a single polygon.
//
// Interior pixels are found per row: edges contribute where the row lies in
// the half-open span between their end points, and pixels from the ceiling
// of each left crossing to the floor of the matching right crossing are set.
// The outline is then drawn edge by edge so that pixels on the polygon's
// bottom and right sides are covered as well.
func (m *Mask) FillPolygon(poly Polygon) {
	if len(poly) == 0 {
		return
	}

	minY, maxY := poly[0].Y, poly[0].Y
	for _, p := range poly[1:] {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	minY = max(minY, 0)
	maxY = min(maxY, m.height-1)

	var xs []float64
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		for i, a := range poly {
			b := poly[(i+1)%len(poly)]
			if a.Y == b.Y {
				continue
			}
			lo, hi := a.Y, b.Y
			if lo > hi {
				lo, hi = hi, lo
			}
			if y < lo || y >= hi {
				continue
			}
			t := float64(y-a.Y) / float64(b.Y-a.Y)
			xs = append(xs, float64(a.X)+t*float64(b.X-a.X))
		}
		sort.Float64s(xs)

		for i := 0; i+1 < len(xs); i += 2 {
			x0 := max(int(math.Ceil(xs[i])), 0)
			x1 := min(int(math.Floor(xs[i+1])), m.width-1)
			for x := x0; x <= x1; x++ {
				m.data[y*m.width+x] = true
			}
		}
	}

	for i, a := range poly {
		m.drawLine(a, poly[(i+1)%len(poly)])
	}
}

// drawLine marks the pixels of the segment a–b using Bresenham's algorithm.
// Only the steps whose major-axis coordinate falls inside the mask are
// visited; the minor-axis offset of step k is k·minor/major rounded half up,
// which is where the incremental error walk lands.
func (m *Mask) drawLine(a, b image.Point) {
	adx, ady := abs(b.X-a.X), abs(b.Y-a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}

	if adx >= ady {
		lo, hi := stepRange(a.X, sx, adx, m.width)
		for k := lo; k <= hi; k++ {
			m.Set(a.X+sx*k, a.Y+sy*minorOffset(k, ady, adx))
		}
		return
	}
	lo, hi := stepRange(a.Y, sy, ady, m.height)
	for k := lo; k <= hi; k++ {
		m.Set(a.X+sx*minorOffset(k, adx, ady), a.Y+sy*k)
	}
}

// stepRange returns the steps k in [0, n] for which start+step·k lies in
// [0, size). lo > hi when there are none.
func stepRange(start, step, n, size int) (lo, hi int) {
	if step > 0 {
		lo, hi = -start, size-1-start
	} else {
		lo, hi = start-size+1, start
	}
	return max(lo, 0), min(hi, n)
}

func minorOffset(k, minor, major int) int {
	if major == 0 {
		return 0
	}
	return (2*k*minor + major) / (2 * major)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
