package burnin

import (
	"fmt"
	"path/filepath"

	"ctburnin/internal/logging"
	"ctburnin/internal/models"
	"ctburnin/pkg/dicomio"
	"ctburnin/pkg/geometry"
	"ctburnin/pkg/raster"
	"ctburnin/pkg/uid"
	"ctburnin/pkg/visualization"
)

// Params holds the parameters of one burn-in run.
type Params struct {
	// SourceDir is the directory holding the CT slices and the structure set.
	SourceDir string

	// OutputDir receives the new series. It is created when missing.
	OutputDir string

	// Pattern selects the candidate files of SourceDir. Empty means
	// dicomio.DefaultPattern.
	Pattern string

	// SeriesDescription is written into every output slice.
	SeriesDescription string

	// Overrides are applied in order; a later override wins where ROIs overlap.
	Overrides []models.ROIOverride

	// MaxSegment is the densification step in mm. Zero or less means
	// geometry.DefaultMaxSegment.
	MaxSegment float64

	// Preview additionally renders every written slice as a TIFF under
	// OutputDir/preview.
	Preview bool

	// NewUID generates identifiers for the output series. Nil means uid.New.
	NewUID func() string
}

// Summary reports the outcome of a finished run
type Summary struct {
	Identity models.OutputIdentity
	Files    []string
	Previews []string
	Stats    []Stats
}

// Runner executes one burn-in run:
// 1. Loading the CT series under a fresh output identity
// 2. Loading the structure set and pointing it at the new identity
// 3. Rasterizing and burning every selected ROI
// 4. Writing the new series
// 5. Rendering previews when requested
type Runner struct {
	params *Params

	identity *models.OutputIdentity
	volume   *models.Volume
	rs       *dicomio.StructureSet

	files    []string
	previews []string
	stats    []Stats
}

// NewRunner creates a runner for params.
func NewRunner(params *Params) *Runner {
	return &Runner{params: params}
}

// Process runs the complete burn-in. A failure stops the run; files already
// written stay in place.
func (r *Runner) Process() error {
	log := logging.Logger().With("output", r.params.OutputDir)

	newUID := r.params.NewUID
	if newUID == nil {
		newUID = uid.New
	}
	pattern := r.params.Pattern
	if pattern == "" {
		pattern = dicomio.DefaultPattern
	}
	r.identity = models.NewOutputIdentity(r.params.SeriesDescription, newUID)

	// Step 1: Load the CT series
	log.Info("step 1: loading CT series", "source", r.params.SourceDir)
	vol, err := dicomio.LoadSeries(r.params.SourceDir, pattern, r.identity)
	if err != nil {
		return fmt.Errorf("failed to load series: %w", err)
	}
	r.volume = vol

	// Step 2: Load the structure set
	log.Info("step 2: loading structure set")
	rs, err := dicomio.LoadStructureSet(r.params.SourceDir, pattern)
	if err != nil {
		return fmt.Errorf("failed to load structure set: %w", err)
	}
	r.rs = rs
	r.checkStudyReference()
	if err := rs.Repoint(r.identity); err != nil {
		return fmt.Errorf("failed to repoint structure set: %w", err)
	}

	// Step 3: Burn the selected ROIs
	log.Info("step 3: burning ROIs", "overrides", len(r.params.Overrides))
	r.burn()

	// Step 4: Write the new series
	log.Info("step 4: writing series")
	files, err := dicomio.WriteSeries(vol, r.params.OutputDir)
	r.files = files
	if err != nil {
		return fmt.Errorf("failed to write series: %w", err)
	}

	// Step 5: Render previews
	if r.params.Preview {
		log.Info("step 5: rendering previews")
		viewer := visualization.NewViewer(vol)
		previews, err := viewer.SaveSliceSequence(filepath.Join(r.params.OutputDir, "preview"))
		r.previews = previews
		if err != nil {
			return fmt.Errorf("failed to render previews: %w", err)
		}
	}

	log.Info("run complete", "slices", len(r.files), "series", r.identity.SeriesUID)
	return nil
}

// checkStudyReference warns when the structure set was drawn on another study.
func (r *Runner) checkStudyReference() {
	keys := r.volume.Keys()
	if len(keys) == 0 {
		return
	}
	study := r.volume.Get(keys[0]).SourceStudyUID
	if study == "" || r.rs.ReferencesStudy(study) {
		return
	}
	logging.Logger().Warn("structure set does not reference the CT study",
		"structureSet", filepath.Base(r.rs.Path), "study", study)
}

func (r *Runner) burn() {
	maxSegment := r.params.MaxSegment
	if maxSegment <= 0 {
		maxSegment = geometry.DefaultMaxSegment
	}

	engine := NewEngine(r.volume)
	for _, target := range r.rs.Targets(r.params.Overrides) {
		if len(target.Rings) == 0 {
			logging.Logger().Debug("ROI has no contours, skipping", "roi", target.Name)
			continue
		}
		polys, dropped := raster.RasterizeROI(target.Rings, r.volume, maxSegment)
		o := target.Override
		o.ROIName = target.Name
		st := engine.Apply(o, polys)
		st.Dropped = dropped

		logging.Logger().Info("ROI burned", "roi", st.ROI, "value", o.Uniform,
			"slices", st.Slices, "pixels", st.Pixels, "dropped", st.Dropped)
		r.stats = append(r.stats, st)
	}
}

// GetSummary returns the outcome of the last Process call.
func (r *Runner) GetSummary() Summary {
	var id models.OutputIdentity
	if r.identity != nil {
		id = *r.identity
	}
	return Summary{
		Identity: id,
		Files:    r.files,
		Previews: r.previews,
		Stats:    r.stats,
	}
}
