package dicomio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"ctburnin/internal/logging"
	"ctburnin/internal/models"
	"ctburnin/pkg/rescale"
)

// OutputName returns the file name a slice is written under.
func OutputName(zkey string) string {
	return "CT." + zkey + ".dcm"
}

// WriteSeries writes every slice of vol into dir, creating it when needed.
// Files written before a failure are left in place.
func WriteSeries(vol *models.Volume, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, vol.Len())
	for _, key := range vol.Keys() {
		path, err := WriteSlice(vol.Get(key), dir)
		if err != nil {
			return paths, fmt.Errorf("failed to write slice %s: %w", key, err)
		}
		paths = append(paths, path)
	}

	logging.Logger().Info("series written", "dir", dir, "slices", len(paths))
	return paths, nil
}

// WriteSlice converts the slice intensities back to stored samples in the
// slice's own scale and type, updates the display window and saves the record.
// Rescale slope and intercept are left as they were.
func WriteSlice(s *models.Slice, dir string) (string, error) {
	if err := EncodePixels(s); err != nil {
		return "", err
	}

	center, width := rescale.Window(s.Intensity)
	if err := setValue(s.Header, tag.WindowCenter, []string{strconv.Itoa(center)}); err != nil {
		return "", err
	}
	if err := setValue(s.Header, tag.WindowWidth, []string{strconv.Itoa(width)}); err != nil {
		return "", err
	}
	sortElements(s.Header.Elements)

	path := filepath.Join(dir, OutputName(s.ZKey))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := dicom.Write(f, *s.Header, dicom.SkipVRVerification(), dicom.SkipValueTypeVerification()); err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}

	logging.Logger().Debug("slice written", "zkey", s.ZKey, "file", filepath.Base(path),
		"windowCenter", center, "windowWidth", width)
	return path, nil
}

// EncodePixels writes the slice intensities into the native frame of the
// header as stored samples.
func EncodePixels(s *models.Slice) error {
	rows, cols := s.Intensity.Dims()
	data, err := nativeSamples(s.Header.Elements, rows*cols)
	if err != nil {
		return err
	}
	for i, px := range data {
		px[0] = int(rescale.ToRaw(s.Intensity.At(i/cols, i%cols), s.Scale))
	}
	return nil
}
