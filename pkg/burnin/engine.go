// Package burnin overwrites CT intensities inside structure set ROIs and
// drives complete burn-in runs from a source directory to a new series.
package burnin

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"ctburnin/internal/logging"
	"ctburnin/internal/models"
	"ctburnin/pkg/raster"
)

// Stats summarises what one override changed
type Stats struct {
	// ROI is the name of the burned structure
	ROI string

	// Slices counts the slices that received at least one polygon
	Slices int

	// Polygons counts the polygons burned
	Polygons int

	// Dropped counts contour rings whose plane matched no loaded slice
	Dropped int

	// Pixels counts pixel writes; a pixel set by both passes counts twice
	Pixels int

	// MeanReplaced is the mean intensity the writes replaced, NaN without writes
	MeanReplaced float64
}

// Engine burns overrides into the intensity grids of one volume
type Engine struct {
	vol *models.Volume
}

// NewEngine creates an engine writing into vol
func NewEngine(vol *models.Volume) *Engine {
	return &Engine{vol: vol}
}

// Apply burns one override. polys maps z-keys to the pixel-space polygons
// of the ROI on that slice. The contour pass marks every polygon vertex
// inside the grid. The fill pass then composes the filled polygons of each
// slice by exclusive or, so nested rings leave holes, and sets every masked
// pixel. Slices are visited in volume order.
func (e *Engine) Apply(o models.ROIOverride, polys map[string][]raster.Polygon) Stats {
	st := Stats{ROI: o.ROIName}
	value := float64(o.Uniform)
	var replaced []float64

	write := func(s *models.Slice, x, y int) {
		replaced = append(replaced, s.Intensity.At(y, x))
		s.Intensity.Set(y, x, value)
		st.Pixels++
	}

	for _, key := range e.vol.Keys() {
		ps := polys[key]
		if len(ps) == 0 {
			continue
		}
		s := e.vol.Get(key)
		width, height := s.Size()
		st.Slices++
		st.Polygons += len(ps)

		if o.Contour {
			for _, p := range ps {
				for _, pt := range p {
					if pt.X < 0 || pt.Y < 0 || pt.X >= width || pt.Y >= height {
						continue
					}
					write(s, pt.X, pt.Y)
				}
			}
		}

		if o.Fill {
			mask := raster.NewMask(width, height)
			for _, p := range ps {
				single := raster.NewMask(width, height)
				single.FillPolygon(p)
				mask.Xor(single)
			}
			mask.Each(func(x, y int) { write(s, x, y) })
		}

		logging.Logger().Debug("slice burned", "roi", o.ROIName, "zkey", key, "polygons", len(ps))
	}

	st.MeanReplaced = math.NaN()
	if len(replaced) > 0 {
		st.MeanReplaced = stat.Mean(replaced, nil)
	}
	return st
}
