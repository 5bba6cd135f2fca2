package raster

import (
	"gonum.org/v1/gonum/spatial/r3"

	"ctburnin/internal/models"
	"ctburnin/pkg/geometry"
)

// RasterizeROI converts the contour rings of one ROI into pixel-space
// polygons grouped by slice z-key. Each ring is densified to maxSegment mm,
// matched to a slice by the z-key of its first point and mapped onto that
// slice's pixel grid. Rings whose plane has no loaded slice are dropped and
// counted in the second return value.
func RasterizeROI(rings [][]r3.Vec, vol *models.Volume, maxSegment float64) (map[string][]Polygon, int) {
	byKey := make(map[string][]Polygon)
	dropped := 0

	for _, ring := range rings {
		if len(ring) == 0 {
			continue
		}
		dense := geometry.Densify(ring, maxSegment)

		key := geometry.ZKey(dense[0].Z)
		slice := vol.Get(key)
		if slice == nil {
			dropped++
			continue
		}

		poly := make(Polygon, len(dense))
		for i, p := range dense {
			poly[i] = geometry.PatientToPixel(p, slice.Position, slice.Spacing)
		}
		byKey[key] = append(byKey[key], poly)
	}

	return byKey, dropped
}
