// Package visualization renders burned CT slices as preview images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"ctburnin/internal/models"
	"ctburnin/pkg/rescale"
)

// Viewer renders the slices of a volume as 16 bit grayscale images
type Viewer struct {
	// vol holds the slices to render
	vol *models.Volume
}

// NewViewer creates a viewer for vol
func NewViewer(vol *models.Volume) *Viewer {
	return &Viewer{vol: vol}
}

// ExtractSlice renders the slice stored under zkey. Intensities are mapped
// linearly through the slice's display window onto the full gray range.
func (v *Viewer) ExtractSlice(zkey string) (*image.Gray16, error) {
	s := v.vol.Get(zkey)
	if s == nil {
		return nil, fmt.Errorf("no slice at z-key %s", zkey)
	}

	center, width := rescale.Window(s.Intensity)
	lo := float64(center) - float64(width)/2

	rows, cols := s.Intensity.Dims()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			t := (s.Intensity.At(y, x) - lo) / float64(width)
			value := uint16(math.Round(math.Max(0, math.Min(1, t)) * 65535))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// SaveSlice saves a rendered slice as a deflate-compressed TIFF image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return err
	}
	return file.Close()
}

// SaveSliceSequence renders every slice into outputDir as slice_<zkey>.tiff
// and returns the written paths in volume order.
func (v *Viewer) SaveSliceSequence(outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var paths []string
	for _, key := range v.vol.Keys() {
		img, err := v.ExtractSlice(key)
		if err != nil {
			return paths, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s.tiff", key))
		if err := v.SaveSlice(img, filename); err != nil {
			return paths, fmt.Errorf("failed to save preview %s: %w", filepath.Base(filename), err)
		}
		paths = append(paths, filename)
	}
	return paths, nil
}
