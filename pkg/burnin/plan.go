package burnin

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"ctburnin/internal/models"
)

// Mode selects how overrides are grouped into output series
type Mode string

const (
	// ModeCombined burns every override into one series
	ModeCombined Mode = "combined"

	// ModeSeparate writes one series per override
	ModeSeparate Mode = "separate"
)

var (
	// ErrNoOverrides is returned when a plan has nothing to burn
	ErrNoOverrides = errors.New("no ROI overrides")

	// ErrInvalidRunName is returned when a run directory name is unusable
	// or shared by two runs
	ErrInvalidRunName = errors.New("invalid run name")
)

// PlanOptions controls how runs are laid out on disk
type PlanOptions struct {
	Mode Mode

	// ImageSetName is the combined series description. Empty falls back to
	// the first ROI name.
	ImageSetName string

	// OutputDir is the base directory of all runs
	OutputDir string

	// Timestamped places the runs under ROIOverrideOutput_<Now> in OutputDir
	Timestamped bool
	Now         time.Time
}

// Run is one planned output series
type Run struct {
	Name        string
	Dir         string
	Description string
	Overrides   []models.ROIOverride
}

// PlanRuns groups overrides into runs. Combined mode gives one run in
// Combined_<names>; separate mode gives one run per override named by its
// ImageSetName or, failing that, its ROI name.
func PlanRuns(overrides []models.ROIOverride, opts PlanOptions) ([]Run, error) {
	if len(overrides) == 0 {
		return nil, ErrNoOverrides
	}

	parent := opts.OutputDir
	if opts.Timestamped {
		parent = filepath.Join(parent, "ROIOverrideOutput_"+opts.Now.Format("20060102-150405"))
	}

	switch opts.Mode {
	case ModeCombined, "":
		names := make([]string, len(overrides))
		for i, o := range overrides {
			names[i] = strings.ReplaceAll(o.ROIName, " ", "_")
		}
		dir := "Combined_" + strings.Join(names, "_")
		desc := strings.TrimSpace(opts.ImageSetName)
		if desc == "" {
			desc = overrides[0].ROIName
		}
		if err := checkRunName(dir); err != nil {
			return nil, err
		}
		return []Run{{
			Name:        dir,
			Dir:         filepath.Join(parent, dir),
			Description: desc,
			Overrides:   overrides,
		}}, nil

	case ModeSeparate:
		runs := make([]Run, 0, len(overrides))
		// keyed case-folded, output may land on a case-insensitive filesystem
		seen := make(map[string]string, len(overrides))
		fold := cases.Fold()
		for _, o := range overrides {
			name := strings.TrimSpace(o.ImageSetName)
			if name == "" {
				name = strings.TrimSpace(o.ROIName)
			}
			if err := checkRunName(name); err != nil {
				return nil, err
			}
			key := fold.String(name)
			if prev, ok := seen[key]; ok {
				return nil, fmt.Errorf("%w: %q and %q share an output directory", ErrInvalidRunName, prev, name)
			}
			seen[key] = name
			runs = append(runs, Run{
				Name:        name,
				Dir:         filepath.Join(parent, name),
				Description: name,
				Overrides:   []models.ROIOverride{o},
			})
		}
		return runs, nil
	}

	return nil, fmt.Errorf("unknown output mode %q", opts.Mode)
}

// checkRunName rejects names that are not a single directory below the
// output parent.
func checkRunName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidRunName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidRunName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidRunName, name)
	}
	return nil
}

// Execute processes runs one after another with the shared settings of base.
// It stops at the first failed run and returns the summaries of the runs
// that completed.
func Execute(runs []Run, base Params) ([]Summary, error) {
	summaries := make([]Summary, 0, len(runs))
	for _, run := range runs {
		p := base
		p.OutputDir = run.Dir
		p.SeriesDescription = run.Description
		p.Overrides = run.Overrides

		runner := NewRunner(&p)
		if err := runner.Process(); err != nil {
			return summaries, fmt.Errorf("run %s: %w", run.Name, err)
		}
		summaries = append(summaries, runner.GetSummary())
	}
	return summaries, nil
}
