package models

import (
	"github.com/suyashkumar/dicom"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ElementType describes the integer type of the stored pixel samples
type ElementType struct {
	// Bits is the allocated width of one sample (8, 16 or 32)
	Bits int

	// Stored is the number of significant bits when smaller than Bits
	// (BitsStored), zero otherwise
	Stored int

	// Signed is true for two's complement samples (PixelRepresentation 1)
	Signed bool
}

// SignBits returns the width signed samples are extended from. Unsigned
// samples always use the allocated width.
func (t ElementType) SignBits() int {
	if t.Signed && t.Stored > 0 && t.Stored < t.Bits {
		return t.Stored
	}
	return t.Bits
}

// Min returns the smallest representable sample value
func (t ElementType) Min() int64 {
	if !t.Signed {
		return 0
	}
	return -(int64(1) << (t.SignBits() - 1))
}

// Max returns the largest representable sample value
func (t ElementType) Max() int64 {
	if t.Signed {
		return int64(1)<<(t.SignBits()-1) - 1
	}
	return int64(1)<<t.Bits - 1
}

// StorageScale is the linear rescale a slice was stored with. It is kept so
// that overridden intensities can be written back in the original representation.
type StorageScale struct {
	Slope     float64
	Intercept float64
	Type      ElementType
}

// Spacing is the physical pixel size in mm along the x and y grid axes
type Spacing struct {
	X, Y float64
}

// Slice represents a single CT slice with its calibrated intensities
type Slice struct {
	// ZKey is the canonical key of the slice position along the volume axis
	ZKey string

	// SourcePath is the file the slice was read from
	SourcePath string

	// Position is the patient-space position of the first transmitted pixel
	Position r3.Vec

	// Spacing is the pixel spacing in mm
	Spacing Spacing

	// Intensity holds the calibrated values, rows × columns
	Intensity *mat.Dense

	// Scale is the storage scale of the source pixel data
	Scale StorageScale

	// InstanceUID is the new SOP instance identity assigned to this slice
	InstanceUID string

	// SourceStudyUID is the study the slice belonged to before re-identification
	SourceStudyUID string

	// Header is the parsed record; the writer updates it in place
	Header *dicom.Dataset
}

// Size returns the grid dimensions as width, height.
func (s *Slice) Size() (width, height int) {
	rows, cols := s.Intensity.Dims()
	return cols, rows
}

// Volume maps z-keys to slices. It remembers the order slices were added
// in so that output is written in source order.
type Volume struct {
	slices map[string]*Slice
	order  []string
}

// NewVolume creates an empty volume
func NewVolume() *Volume {
	return &Volume{slices: make(map[string]*Slice)}
}

// Add stores a slice under its z-key. It reports whether a slice with the
// same key was replaced.
func (v *Volume) Add(s *Slice) bool {
	_, replaced := v.slices[s.ZKey]
	if !replaced {
		v.order = append(v.order, s.ZKey)
	}
	v.slices[s.ZKey] = s
	return replaced
}

// Get returns the slice for a z-key, or nil
func (v *Volume) Get(zkey string) *Slice {
	return v.slices[zkey]
}

// Keys returns the z-keys in insertion order
func (v *Volume) Keys() []string {
	keys := make([]string, len(v.order))
	copy(keys, v.order)
	return keys
}

// Len returns the number of slices
func (v *Volume) Len() int {
	return len(v.order)
}
