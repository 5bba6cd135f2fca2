package dicomio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/spatial/r3"

	"ctburnin/internal/dicomtest"
	"ctburnin/internal/models"
)

func TestFindStructureSetMostRecent(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "RS.old.dcm")
	recent := filepath.Join(dir, "rs.new.dcm")
	dicomtest.WriteDataset(t, old, dicomtest.StructureSet(t, []string{"PTV"}, nil))
	dicomtest.WriteDataset(t, recent, dicomtest.StructureSet(t, []string{"PTV"}, nil))

	now := time.Now()
	if err := os.Chtimes(old, now, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(recent, now, now); err != nil {
		t.Fatal(err)
	}

	got, err := FindStructureSet(dir, DefaultPattern)
	if err != nil {
		t.Fatalf("FindStructureSet: %v", err)
	}
	if got != recent {
		t.Errorf("FindStructureSet = %s, want %s", got, recent)
	}

	// equal times resolve to the first name
	if err := os.Chtimes(old, now, now); err != nil {
		t.Fatal(err)
	}
	got, err = FindStructureSet(dir, DefaultPattern)
	if err != nil {
		t.Fatalf("FindStructureSet: %v", err)
	}
	if got != old {
		t.Errorf("FindStructureSet with equal times = %s, want %s", got, old)
	}
}

func TestLoadStructureSetMissing(t *testing.T) {
	dir := t.TempDir()
	dicomtest.WriteCT(t, dir, "CT.1.dcm", dicomtest.CT{Rows: 1, Cols: 1, Slope: "1", Intercept: "0", Pixels: []int{0}})

	_, err := LoadStructureSet(dir, DefaultPattern)
	if !errors.Is(err, ErrNoStructureSet) {
		t.Fatalf("LoadStructureSet error = %v, want ErrNoStructureSet", err)
	}
}

func TestLoadStructureSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "RS.plan.dcm")
	dicomtest.WriteDataset(t, path, dicomtest.StructureSet(t, []string{"Body", "PTV"}, map[string][]dicomtest.Contour{
		"PTV": {dicomtest.SquareRing(1, 1, 4, 4, 0), dicomtest.SquareRing(1, 1, 4, 4, 1)},
	}))

	rs, err := LoadStructureSet(dir, DefaultPattern)
	if err != nil {
		t.Fatalf("LoadStructureSet: %v", err)
	}
	if rs.Path != path {
		t.Errorf("Path = %s, want %s", rs.Path, path)
	}
	if diff := cmp.Diff([]string{"Body", "PTV"}, rs.ROINames()); diff != "" {
		t.Errorf("ROINames mismatch (-want +got):\n%s", diff)
	}

	targets := rs.Targets([]models.ROIOverride{{ROIName: "ptv", Fill: true, Uniform: 100}})
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	ptv := targets[0]
	if ptv.Name != "PTV" || ptv.Number != 2 {
		t.Errorf("target = %s #%d, want PTV #2", ptv.Name, ptv.Number)
	}
	if len(ptv.Rings) != 2 {
		t.Fatalf("got %d rings, want 2", len(ptv.Rings))
	}
	wantFirst := []r3.Vec{
		{X: -8.5, Y: -18.5, Z: 0},
		{X: -5.5, Y: -18.5, Z: 0},
		{X: -5.5, Y: -15.5, Z: 0},
		{X: -8.5, Y: -15.5, Z: 0},
	}
	if diff := cmp.Diff(wantFirst, ptv.Rings[0]); diff != "" {
		t.Errorf("first ring mismatch (-want +got):\n%s", diff)
	}
	if ptv.Rings[1][0].Z != 1 {
		t.Errorf("second ring z = %v, want 1", ptv.Rings[1][0].Z)
	}
}

func TestTargets(t *testing.T) {
	rs, err := NewStructureSet(dicomtest.StructureSet(t, []string{"Body", "PTV", "Bolus"}, map[string][]dicomtest.Contour{
		"PTV":   {dicomtest.SquareRing(1, 1, 4, 4, 0)},
		"Bolus": {},
	}))
	if err != nil {
		t.Fatalf("NewStructureSet: %v", err)
	}

	overrides := []models.ROIOverride{
		{ROIName: "bolus", Fill: true, Uniform: 50},
		{ROIName: "Missing", Fill: true, Uniform: 1},
		{ROIName: "PTV", Contour: true, Uniform: 2},
		{ROIName: "BODY", Fill: true, Uniform: 3},
	}
	targets := rs.Targets(overrides)

	var names []string
	for _, tg := range targets {
		names = append(names, tg.Name)
	}
	if diff := cmp.Diff([]string{"Bolus", "PTV", "Body"}, names); diff != "" {
		t.Errorf("target order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(overrides[2], targets[1].Override); diff != "" {
		t.Errorf("override mismatch (-want +got):\n%s", diff)
	}
	if len(targets[0].Rings) != 0 {
		t.Errorf("ROI without contour items has %d rings", len(targets[0].Rings))
	}
	if len(targets[2].Rings) != 0 {
		t.Errorf("ROI without contour sequence has %d rings", len(targets[2].Rings))
	}
}

func TestRepointAndReferencesStudy(t *testing.T) {
	rs, err := NewStructureSet(dicomtest.StructureSet(t, []string{"PTV"}, nil))
	if err != nil {
		t.Fatalf("NewStructureSet: %v", err)
	}
	if !rs.ReferencesStudy(dicomtest.SourceStudyUID) {
		t.Fatal("structure set should reference the source study")
	}
	if rs.ReferencesStudy("1.2.3") {
		t.Error("structure set should not reference an unrelated study")
	}

	id := models.NewOutputIdentity("out", sequentialUIDs())
	if err := rs.Repoint(id); err != nil {
		t.Fatalf("Repoint: %v", err)
	}
	if !rs.ReferencesStudy(id.StudyUID) {
		t.Error("repointed structure set should reference the new study")
	}
	if rs.ReferencesStudy(dicomtest.SourceStudyUID) {
		t.Error("repointed structure set still references the source study")
	}

	elems := rs.Dataset().Elements
	refs := sequenceItems(elems, tagReferencedFrameOfReferenceSequence)
	if len(refs) != 1 {
		t.Fatalf("got %d frame of reference items, want 1", len(refs))
	}
	if got, _ := stringValues(refs[0], tag.FrameOfReferenceUID); len(got) == 0 || got[0] != id.FrameOfReferenceUID {
		t.Errorf("FrameOfReferenceUID = %v, want %s", got, id.FrameOfReferenceUID)
	}
	study := sequenceItems(refs[0], tagRTReferencedStudySequence)
	series := sequenceItems(study[0], tagRTReferencedSeriesSequence)
	if got, _ := stringValues(series[0], tag.SeriesInstanceUID); len(got) == 0 || got[0] != id.SeriesUID {
		t.Errorf("SeriesInstanceUID = %v, want %s", got, id.SeriesUID)
	}
}

func TestNewStructureSetBadContour(t *testing.T) {
	_, err := NewStructureSet(dicomtest.StructureSet(t, []string{"PTV"}, map[string][]dicomtest.Contour{
		"PTV": {{1, 2, 3, 4}},
	}))
	if err == nil {
		t.Fatal("NewStructureSet accepted contour data that is not a multiple of 3")
	}
}
