// Package geometry converts structure set contour geometry into the
// coordinate system of the image grid.
package geometry

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"ctburnin/internal/models"
)

// DefaultMaxSegment is the largest allowed distance in mm between
// consecutive contour points after densification.
const DefaultMaxSegment = 1.0

// ZKey returns the canonical key for a position along the volume axis.
// Image slices and contour rings must both be keyed through this function
// so that they meet on the same plane.
func ZKey(z float64) string {
	key := fmt.Sprintf("%.2f", z)
	if key == "-0.00" {
		return "0.00"
	}
	return key
}

// Densify inserts points along each edge of the closed ring so that no two
// consecutive points, including last and first, are more than maxSegment apart.
// The original vertices are kept in order and the end point of each edge is
// not repeated.
func Densify(ring []r3.Vec, maxSegment float64) []r3.Vec {
	if len(ring) == 0 || maxSegment <= 0 {
		return ring
	}

	out := make([]r3.Vec, 0, len(ring))
	for i, p0 := range ring {
		p1 := ring[(i+1)%len(ring)]
		d := r3.Sub(p1, p0)
		steps := int(math.Ceil(r3.Norm(d) / maxSegment))
		if steps < 1 {
			steps = 1
		}
		for k := 0; k < steps; k++ {
			t := float64(k) / float64(steps)
			out = append(out, r3.Add(p0, r3.Scale(t, d)))
		}
	}
	return out
}

// PatientToPixel maps a patient-space point onto the pixel grid of a slice.
// The mapping is axis aligned: the image orientation is not consulted.
func PatientToPixel(p, origin r3.Vec, spacing models.Spacing) image.Point {
	return image.Point{
		X: int(math.Floor((p.X - origin.X) / spacing.X)),
		Y: int(math.Floor((p.Y - origin.Y) / spacing.Y)),
	}
}

// ParseContourData groups a flat x,y,z coordinate list into points.
func ParseContourData(flat []float64) ([]r3.Vec, error) {
	if len(flat)%3 != 0 {
		return nil, fmt.Errorf("contour data has %d values, not a multiple of 3", len(flat))
	}
	pts := make([]r3.Vec, 0, len(flat)/3)
	for i := 0; i < len(flat); i += 3 {
		pts = append(pts, r3.Vec{X: flat[i], Y: flat[i+1], Z: flat[i+2]})
	}
	return pts, nil
}
