package models

// ROIOverride configures how one ROI is burned into the image data
type ROIOverride struct {
	// ROIName is matched case-insensitively against the structure set
	ROIName string `yaml:"name"`

	// Contour marks the densified outline vertices
	Contour bool `yaml:"contour"`

	// Fill sets every pixel inside the ROI using the even-odd rule
	Fill bool `yaml:"fill"`

	// Uniform is the intensity written into the ROI
	Uniform int `yaml:"uniform"`

	// Preset names a material whose intensity replaces Uniform when set
	Preset string `yaml:"preset,omitempty"`

	// ImageSetName is the output series name used when each ROI gets its own series
	ImageSetName string `yaml:"imageSetName,omitempty"`
}

// OutputIdentity is the identity shared by every slice of one output series
type OutputIdentity struct {
	StudyUID            string
	SeriesUID           string
	FrameOfReferenceUID string
	SeriesDescription   string

	newUID func() string
}

// NewOutputIdentity draws a fresh study, series and frame of reference from
// newUID. Instance identities for individual slices come from the same source.
func NewOutputIdentity(description string, newUID func() string) *OutputIdentity {
	return &OutputIdentity{
		StudyUID:            newUID(),
		SeriesUID:           newUID(),
		FrameOfReferenceUID: newUID(),
		SeriesDescription:   description,
		newUID:              newUID,
	}
}

// NewInstanceUID returns a unique SOP instance identity for one slice
func (id *OutputIdentity) NewInstanceUID() string {
	return id.newUID()
}
