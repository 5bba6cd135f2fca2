package dicomio

import (
	"fmt"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"ctburnin/internal/logging"
	"ctburnin/internal/models"
	"ctburnin/pkg/geometry"
	"ctburnin/pkg/rescale"
)

// FindSeriesFiles lists the CT slice files of dir: files matching pattern
// whose name contains "CT" in any case.
func FindSeriesFiles(dir, pattern string) ([]string, error) {
	entries, err := listFiles(dir, pattern, "CT")
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCTData, dir)
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = filepath.Join(dir, e.Name())
	}
	return paths, nil
}

// LoadSeries reads every CT slice of dir into a volume keyed by z-key.
// Each slice header is re-identified with id: new study, series and frame
// of reference, a fresh instance UID and the series description.
func LoadSeries(dir, pattern string, id *models.OutputIdentity) (*models.Volume, error) {
	paths, err := FindSeriesFiles(dir, pattern)
	if err != nil {
		return nil, err
	}

	vol := models.NewVolume()
	for _, path := range paths {
		s, err := LoadSlice(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
		}
		if err := stampIdentity(s, id); err != nil {
			return nil, fmt.Errorf("failed to update header of %s: %w", filepath.Base(path), err)
		}
		if vol.Add(s) {
			logging.Logger().Warn("duplicate slice position, keeping later file",
				"zkey", s.ZKey, "file", filepath.Base(path))
		}
	}

	logging.Logger().Info("series loaded", "dir", dir, "files", len(paths), "slices", vol.Len())
	return vol, nil
}

// LoadSlice parses one CT record and converts its pixels to intensities.
func LoadSlice(path string) (*models.Slice, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	elems := ds.Elements

	pos, err := floatValues(elems, tag.ImagePositionPatient, 3)
	if err != nil {
		return nil, err
	}
	spacing, err := floatValues(elems, tag.PixelSpacing, 2)
	if err != nil {
		return nil, err
	}
	if spacing[0] <= 0 || spacing[1] <= 0 {
		return nil, fmt.Errorf("invalid pixel spacing %v", spacing)
	}

	scale, err := readStorageScale(elems)
	if err != nil {
		return nil, err
	}

	rows, err := requireInt(elems, tag.Rows)
	if err != nil {
		return nil, err
	}
	cols, err := requireInt(elems, tag.Columns)
	if err != nil {
		return nil, err
	}

	data, err := nativeSamples(elems, rows*cols)
	if err != nil {
		return nil, err
	}

	grid := mat.NewDense(rows, cols, nil)
	for i, px := range data {
		raw := signExtend(px[0], scale.Type)
		grid.Set(i/cols, i%cols, rescale.ToIntensity(raw, scale))
	}

	position := r3.Vec{X: pos[0], Y: pos[1], Z: pos[2]}
	return &models.Slice{
		ZKey:       geometry.ZKey(position.Z),
		SourcePath: path,
		Position:   position,
		// x follows the first spacing value, y the second
		Spacing:   models.Spacing{X: spacing[0], Y: spacing[1]},
		Intensity: grid,
		Scale:     scale,
		Header:    &ds,
	}, nil
}

// readStorageScale reads slope, intercept and sample type. Slope defaults
// to 1 and intercept to 0; samples are unsigned unless PixelRepresentation is 1.
// BitsStored is only recorded when it is narrower than BitsAllocated.
func readStorageScale(elems []*dicom.Element) (models.StorageScale, error) {
	var scale models.StorageScale

	slope, err := optionalFloat(elems, tag.RescaleSlope, 1.0)
	if err != nil {
		return scale, err
	}
	if slope == 0 {
		return scale, fmt.Errorf("rescale slope is zero")
	}
	intercept, err := optionalFloat(elems, tag.RescaleIntercept, 0.0)
	if err != nil {
		return scale, err
	}

	bits, err := requireInt(elems, tag.BitsAllocated)
	if err != nil {
		return scale, err
	}
	if bits != 8 && bits != 16 && bits != 32 {
		return scale, fmt.Errorf("unsupported bits allocated: %d", bits)
	}
	stored, ok, err := intValue(elems, tag.BitsStored)
	if err != nil {
		return scale, err
	}
	if !ok || stored <= 0 || stored >= bits {
		stored = 0
	}
	rep, _, err := intValue(elems, tag.PixelRepresentation)
	if err != nil {
		return scale, err
	}

	scale.Slope = slope
	scale.Intercept = intercept
	scale.Type = models.ElementType{Bits: bits, Stored: stored, Signed: rep == 1}
	return scale, nil
}

// nativeSamples returns the per-pixel samples of the single native frame.
// The returned slice aliases the dataset so that writes go back into it.
func nativeSamples(elems []*dicom.Element, pixels int) ([][]int, error) {
	e := findElement(elems, tag.PixelData)
	if e == nil || e.Value == nil {
		return nil, fmt.Errorf("missing %s", tagName(tag.PixelData))
	}
	info, ok := e.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("unexpected pixel data value %T", e.Value.GetValue())
	}
	if info.IsEncapsulated {
		return nil, fmt.Errorf("encapsulated pixel data is not supported")
	}
	if len(info.Frames) != 1 {
		return nil, fmt.Errorf("expected 1 frame, found %d", len(info.Frames))
	}

	data := info.Frames[0].NativeData.Data
	if len(data) != pixels {
		return nil, fmt.Errorf("pixel data has %d pixels, expected %d", len(data), pixels)
	}
	for _, px := range data {
		if len(px) != 1 {
			return nil, fmt.Errorf("expected 1 sample per pixel, found %d", len(px))
		}
	}
	return data, nil
}

// signExtend interprets a decoded sample according to the element type.
// Signed samples narrower than their allocation are extended from the top
// stored bit; bits above it are ignored.
func signExtend(v int, t models.ElementType) int64 {
	switch {
	case t.Signed && t.SignBits() < t.Bits:
		shift := 64 - t.SignBits()
		return int64(v) << shift >> shift
	case t.Signed && t.Bits == 8:
		return int64(int8(v))
	case t.Signed && t.Bits == 16:
		return int64(int16(v))
	case t.Signed && t.Bits == 32:
		return int64(int32(v))
	case t.Bits == 8:
		return int64(uint8(v))
	case t.Bits == 16:
		return int64(uint16(v))
	default:
		return int64(uint32(v))
	}
}

// stampIdentity writes the run identity and a fresh instance UID into the
// slice header.
func stampIdentity(s *models.Slice, id *models.OutputIdentity) error {
	if uids, ok := stringValues(s.Header.Elements, tag.StudyInstanceUID); ok && len(uids) > 0 {
		s.SourceStudyUID = trimUID(uids[0])
	}
	s.InstanceUID = id.NewInstanceUID()

	updates := []struct {
		t    tag.Tag
		data []string
	}{
		{tag.StudyInstanceUID, []string{id.StudyUID}},
		{tag.SeriesInstanceUID, []string{id.SeriesUID}},
		{tag.FrameOfReferenceUID, []string{id.FrameOfReferenceUID}},
		{tag.SOPInstanceUID, []string{s.InstanceUID}},
		{tag.SeriesDescription, []string{id.SeriesDescription}},
	}
	for _, u := range updates {
		if err := setValue(s.Header, u.t, u.data); err != nil {
			return err
		}
	}

	// file meta keeps its own copy of the instance UID
	if e := findElement(s.Header.Elements, tag.MediaStorageSOPInstanceUID); e != nil {
		if err := replaceValue(e, []string{s.InstanceUID}); err != nil {
			return err
		}
	}
	return nil
}
