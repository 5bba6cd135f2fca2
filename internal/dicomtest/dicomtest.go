// Package dicomtest builds synthetic CT slices and RT structure sets for tests.
package dicomtest

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// RT structure set tags used by the fixtures.
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

const (
	ctImageStorage         = "1.2.840.10008.5.1.4.1.1.2"
	rtStructureSetStorage  = "1.2.840.10008.5.1.4.1.1.481.3"
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	// SourceStudyUID is the study every fixture belongs to.
	SourceStudyUID = "1.2.826.0.1.3680043.2.1125.1"
)

// Position of the first pixel of every fixture slice.
const (
	OriginX = -10.0
	OriginY = -20.0
)

func mustElement(tb testing.TB, tg tag.Tag, data any) *dicom.Element {
	tb.Helper()
	e, err := dicom.NewElement(tg, data)
	if err != nil {
		tb.Fatalf("NewElement(%v): %v", tg, err)
	}
	return e
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CT describes a synthetic CT slice at (OriginX, OriginY, Z) with 1 mm
// pixel spacing and 16 bit samples.
type CT struct {
	Z                float64
	Rows, Cols       int
	Slope, Intercept string // empty omits the element
	Signed           bool
	BitsStored       int   // zero stores all 16 bits
	Pixels           []int // stored samples, row-major
}

// Dataset returns the slice as a dataset with SOP instance UID instance.
func (f CT) Dataset(tb testing.TB, instance string) dicom.Dataset {
	tb.Helper()

	data := make([][]int, len(f.Pixels))
	for i, v := range f.Pixels {
		data[i] = []int{v}
	}
	rep := 0
	if f.Signed {
		rep = 1
	}
	stored := f.BitsStored
	if stored == 0 {
		stored = 16
	}

	elems := []*dicom.Element{
		mustElement(tb, tag.FileMetaInformationVersion, []byte{0, 1}),
		mustElement(tb, tag.MediaStorageSOPClassUID, []string{ctImageStorage}),
		mustElement(tb, tag.MediaStorageSOPInstanceUID, []string{instance}),
		mustElement(tb, tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustElement(tb, tag.SOPClassUID, []string{ctImageStorage}),
		mustElement(tb, tag.SOPInstanceUID, []string{instance}),
		mustElement(tb, tag.Modality, []string{"CT"}),
		mustElement(tb, tag.SeriesDescription, []string{"source"}),
		mustElement(tb, tag.StudyInstanceUID, []string{SourceStudyUID}),
		mustElement(tb, tag.SeriesInstanceUID, []string{"1.2.826.0.1.3680043.2.1125.2"}),
		mustElement(tb, tag.ImagePositionPatient, []string{fmtFloat(OriginX), fmtFloat(OriginY), fmtFloat(f.Z)}),
		mustElement(tb, tag.FrameOfReferenceUID, []string{"1.2.826.0.1.3680043.2.1125.3"}),
		mustElement(tb, tag.SamplesPerPixel, []int{1}),
		mustElement(tb, tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustElement(tb, tag.Rows, []int{f.Rows}),
		mustElement(tb, tag.Columns, []int{f.Cols}),
		mustElement(tb, tag.PixelSpacing, []string{"1", "1"}),
		mustElement(tb, tag.BitsAllocated, []int{16}),
		mustElement(tb, tag.BitsStored, []int{stored}),
		mustElement(tb, tag.HighBit, []int{stored - 1}),
		mustElement(tb, tag.PixelRepresentation, []int{rep}),
	}
	if f.Intercept != "" {
		elems = append(elems, mustElement(tb, tag.RescaleIntercept, []string{f.Intercept}))
	}
	if f.Slope != "" {
		elems = append(elems, mustElement(tb, tag.RescaleSlope, []string{f.Slope}))
	}
	elems = append(elems, mustElement(tb, tag.PixelData, dicom.PixelDataInfo{
		IsEncapsulated: false,
		Frames: []*frame.Frame{{
			Encapsulated: false,
			NativeData: frame.NativeFrame{
				BitsPerSample: 16,
				Rows:          f.Rows,
				Cols:          f.Cols,
				Data:          data,
			},
		}},
	}))
	return dicom.Dataset{Elements: elems}
}

// WriteDataset encodes ds to path.
func WriteDataset(tb testing.TB, path string, ds dicom.Dataset) {
	tb.Helper()
	out, err := os.Create(path)
	if err != nil {
		tb.Fatalf("Failed to create %s: %v", path, err)
	}
	defer out.Close()
	if err := dicom.Write(out, ds, dicom.SkipVRVerification(), dicom.SkipValueTypeVerification()); err != nil {
		tb.Fatalf("Failed to write %s: %v", path, err)
	}
}

// WriteCT writes f to dir/name and returns the path.
func WriteCT(tb testing.TB, dir, name string, f CT) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	instance := "1.2.826.0.1.3680043.2.1125.4." + strconv.Itoa(100000+int(f.Z*100))
	WriteDataset(tb, path, f.Dataset(tb, instance))
	return path
}

// Contour is one closed ring on one plane as flat x, y, z triples.
type Contour []float64

// StructureSet builds a structure set with ROIs numbered from 1 in the order
// given. Its reference chain points at SourceStudyUID.
func StructureSet(tb testing.TB, names []string, contours map[string][]Contour) dicom.Dataset {
	tb.Helper()

	var roiItems, contourItems [][]*dicom.Element
	for i, name := range names {
		num := strconv.Itoa(i + 1)
		roiItems = append(roiItems, []*dicom.Element{
			mustElement(tb, tagROINumber, []string{num}),
			mustElement(tb, tagROIName, []string{name}),
		})

		rings, ok := contours[name]
		if !ok {
			continue
		}
		var seq [][]*dicom.Element
		for _, ring := range rings {
			strs := make([]string, len(ring))
			for k, v := range ring {
				strs[k] = fmtFloat(v)
			}
			seq = append(seq, []*dicom.Element{
				mustElement(tb, tagContourData, strs),
			})
		}
		item := []*dicom.Element{}
		if len(seq) > 0 {
			item = append(item, mustElement(tb, tagContourSequence, seq))
		}
		item = append(item, mustElement(tb, tagReferencedROINumber, []string{num}))
		contourItems = append(contourItems, item)
	}

	series := [][]*dicom.Element{{
		mustElement(tb, tag.SeriesInstanceUID, []string{"1.2.826.0.1.3680043.2.1125.2"}),
	}}
	study := [][]*dicom.Element{{
		mustElement(tb, tag.ReferencedSOPInstanceUID, []string{SourceStudyUID}),
		mustElement(tb, tagRTReferencedSeriesSequence, series),
	}}
	frameRef := [][]*dicom.Element{{
		mustElement(tb, tag.FrameOfReferenceUID, []string{"1.2.826.0.1.3680043.2.1125.3"}),
		mustElement(tb, tagRTReferencedStudySequence, study),
	}}

	elems := []*dicom.Element{
		mustElement(tb, tag.FileMetaInformationVersion, []byte{0, 1}),
		mustElement(tb, tag.MediaStorageSOPClassUID, []string{rtStructureSetStorage}),
		mustElement(tb, tag.MediaStorageSOPInstanceUID, []string{"1.2.826.0.1.3680043.2.1125.9"}),
		mustElement(tb, tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustElement(tb, tag.SOPClassUID, []string{rtStructureSetStorage}),
		mustElement(tb, tag.SOPInstanceUID, []string{"1.2.826.0.1.3680043.2.1125.9"}),
		mustElement(tb, tag.Modality, []string{"RTSTRUCT"}),
		mustElement(tb, tagReferencedFrameOfReferenceSequence, frameRef),
		mustElement(tb, tagStructureSetROISequence, roiItems),
	}
	if len(contourItems) > 0 {
		elems = append(elems, mustElement(tb, tagROIContourSequence, contourItems))
	}
	return dicom.Dataset{Elements: elems}
}

// SquareRing returns a square contour with corners at the pixel centres
// (x0,y0) and (x1,y1) of a fixture slice.
func SquareRing(x0, y0, x1, y1 int, z float64) Contour {
	px := func(i int) float64 { return OriginX + float64(i) + 0.5 }
	py := func(j int) float64 { return OriginY + float64(j) + 0.5 }
	return Contour{
		px(x0), py(y0), z,
		px(x1), py(y0), z,
		px(x1), py(y1), z,
		px(x0), py(y1), z,
	}
}
