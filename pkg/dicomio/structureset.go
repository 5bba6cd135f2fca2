package dicomio

import (
	"fmt"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gonum.org/v1/gonum/spatial/r3"

	"ctburnin/internal/logging"
	"ctburnin/internal/models"
	"ctburnin/pkg/geometry"
)

// RT structure set tags.
var (
	tagReferencedFrameOfReferenceSequence = tag.Tag{Group: 0x3006, Element: 0x0010}
	tagRTReferencedStudySequence          = tag.Tag{Group: 0x3006, Element: 0x0012}
	tagRTReferencedSeriesSequence         = tag.Tag{Group: 0x3006, Element: 0x0014}
	tagStructureSetROISequence            = tag.Tag{Group: 0x3006, Element: 0x0020}
	tagROINumber                          = tag.Tag{Group: 0x3006, Element: 0x0022}
	tagROIName                            = tag.Tag{Group: 0x3006, Element: 0x0026}
	tagROIContourSequence                 = tag.Tag{Group: 0x3006, Element: 0x0039}
	tagContourSequence                    = tag.Tag{Group: 0x3006, Element: 0x0040}
	tagContourData                        = tag.Tag{Group: 0x3006, Element: 0x0050}
	tagReferencedROINumber                = tag.Tag{Group: 0x3006, Element: 0x0084}
)

// StructureSet is a parsed RT structure set.
type StructureSet struct {
	// Path is the file the structure set was read from
	Path string

	dataset    dicom.Dataset
	roiNumbers map[string]int
	roiNames   map[int]string
	rings      map[int][][]r3.Vec
}

// Target is an ROI of the structure set selected by an override.
type Target struct {
	Number   int
	Name     string
	Override models.ROIOverride

	// Rings holds the patient-space contour rings, one per contour item.
	// It is empty for an ROI without contour items.
	Rings [][]r3.Vec
}

// lowerName is the key ROI names are matched by.
func lowerName(name string) string {
	return cases.Lower(language.Und).String(name)
}

// FindStructureSet returns the structure set file of dir: a file matching
// pattern whose name contains "RS" in any case. With several candidates the
// most recently modified wins; equal times resolve to the first name.
func FindStructureSet(dir, pattern string) (string, error) {
	entries, err := listFiles(dir, pattern, "RS")
	if err != nil {
		return "", fmt.Errorf("failed to read source directory: %w", err)
	}

	var best string
	var bestTime int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		mt := info.ModTime().UnixNano()
		if best == "" || mt > bestTime {
			best, bestTime = e.Name(), mt
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w in %s", ErrNoStructureSet, dir)
	}
	if len(entries) > 1 {
		logging.Logger().Info("several structure sets found, using most recent",
			"count", len(entries), "file", best)
	}
	return filepath.Join(dir, best), nil
}

// LoadStructureSet finds and parses the structure set of dir.
func LoadStructureSet(dir, pattern string) (*StructureSet, error) {
	path, err := FindStructureSet(dir, pattern)
	if err != nil {
		return nil, err
	}
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	rs, err := NewStructureSet(ds)
	if err != nil {
		return nil, fmt.Errorf("invalid structure set %s: %w", filepath.Base(path), err)
	}
	rs.Path = path
	return rs, nil
}

// NewStructureSet reads the ROI list and contour geometry from a parsed dataset.
func NewStructureSet(ds dicom.Dataset) (*StructureSet, error) {
	rs := &StructureSet{
		dataset:    ds,
		roiNumbers: make(map[string]int),
		roiNames:   make(map[int]string),
		rings:      make(map[int][][]r3.Vec),
	}

	for _, item := range sequenceItems(ds.Elements, tagStructureSetROISequence) {
		num, err := requireInt(item, tagROINumber)
		if err != nil {
			return nil, err
		}
		names, _ := stringValues(item, tagROIName)
		if len(names) == 0 {
			continue
		}
		rs.roiNumbers[lowerName(names[0])] = num
		rs.roiNames[num] = names[0]
	}

	for _, item := range sequenceItems(ds.Elements, tagROIContourSequence) {
		num, err := requireInt(item, tagReferencedROINumber)
		if err != nil {
			return nil, err
		}
		for i, contour := range sequenceItems(item, tagContourSequence) {
			if findElement(contour, tagContourData) == nil {
				continue
			}
			flat, err := floatValues(contour, tagContourData, 0)
			if err != nil {
				return nil, fmt.Errorf("ROI %d contour %d: %w", num, i, err)
			}
			ring, err := geometry.ParseContourData(flat)
			if err != nil {
				return nil, fmt.Errorf("ROI %d contour %d: %w", num, i, err)
			}
			rs.rings[num] = append(rs.rings[num], ring)
		}
	}

	return rs, nil
}

// ROINames returns the ROI names in structure set order.
func (rs *StructureSet) ROINames() []string {
	var names []string
	for _, item := range sequenceItems(rs.dataset.Elements, tagStructureSetROISequence) {
		if n, _ := stringValues(item, tagROIName); len(n) > 0 {
			names = append(names, n[0])
		}
	}
	return names
}

// Targets selects the ROIs named by overrides, in override order. Overrides
// naming an ROI the structure set does not contain are dropped.
func (rs *StructureSet) Targets(overrides []models.ROIOverride) []Target {
	var targets []Target
	for _, o := range overrides {
		num, ok := rs.roiNumbers[lowerName(o.ROIName)]
		if !ok {
			logging.Logger().Debug("ROI not in structure set, ignoring", "roi", o.ROIName)
			continue
		}
		targets = append(targets, Target{
			Number:   num,
			Name:     rs.roiNames[num],
			Override: o,
			Rings:    rs.rings[num],
		})
	}
	return targets
}

// Repoint makes every referenced frame of reference, study and series in
// the structure set refer to the output identity. Only the in-memory
// dataset changes.
func (rs *StructureSet) Repoint(id *models.OutputIdentity) error {
	for _, ref := range sequenceItems(rs.dataset.Elements, tagReferencedFrameOfReferenceSequence) {
		if e := findElement(ref, tag.FrameOfReferenceUID); e != nil {
			if err := replaceValue(e, []string{id.FrameOfReferenceUID}); err != nil {
				return err
			}
		}
		for _, study := range sequenceItems(ref, tagRTReferencedStudySequence) {
			if e := findElement(study, tag.ReferencedSOPInstanceUID); e != nil {
				if err := replaceValue(e, []string{id.StudyUID}); err != nil {
					return err
				}
			}
			for _, series := range sequenceItems(study, tagRTReferencedSeriesSequence) {
				if e := findElement(series, tag.SeriesInstanceUID); e != nil {
					if err := replaceValue(e, []string{id.SeriesUID}); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// ReferencesStudy reports whether any referenced study of the structure set
// is studyUID.
func (rs *StructureSet) ReferencesStudy(studyUID string) bool {
	for _, ref := range sequenceItems(rs.dataset.Elements, tagReferencedFrameOfReferenceSequence) {
		for _, study := range sequenceItems(ref, tagRTReferencedStudySequence) {
			if uids, _ := stringValues(study, tag.ReferencedSOPInstanceUID); len(uids) > 0 && trimUID(uids[0]) == trimUID(studyUID) {
				return true
			}
		}
	}
	return false
}

// Dataset returns the structure set dataset, including any repointed references.
func (rs *StructureSet) Dataset() dicom.Dataset {
	return rs.dataset
}
