// Package rescale converts between stored pixel samples and calibrated
// intensities.
package rescale

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"ctburnin/internal/models"
)

// ToIntensity applies the linear rescale to a stored sample.
func ToIntensity(raw int64, scale models.StorageScale) float64 {
	return float64(raw)*scale.Slope + scale.Intercept
}

// ToRaw inverts the rescale for one intensity. The quotient is rounded half
// to even and saturated to the range of the element type, never wrapped.
func ToRaw(intensity float64, scale models.StorageScale) int64 {
	v := math.RoundToEven((intensity - scale.Intercept) / scale.Slope)
	lo, hi := scale.Type.Min(), scale.Type.Max()
	switch {
	case math.IsNaN(v):
		return 0
	case v <= float64(lo):
		return lo
	case v >= float64(hi):
		return hi
	}
	return int64(v)
}

// Window computes the display window for a grid of intensities: the
// centre is the truncated midpoint of the range and the width is the range,
// at least 1.
func Window(intensity mat.Matrix) (center, width int) {
	lo, hi := mat.Min(intensity), mat.Max(intensity)
	center = int(math.Trunc((hi + lo) / 2))
	width = int(math.Max(hi-lo, 1))
	return center, width
}
