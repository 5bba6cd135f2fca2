// Package dicomio reads CT series and RT structure sets from a source
// directory and writes overridden CT series back out.
package dicomio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var (
	// ErrNoCTData is returned when the source directory holds no CT slices.
	ErrNoCTData = errors.New("no CT data found")

	// ErrNoStructureSet is returned when the source directory holds no structure set.
	ErrNoStructureSet = errors.New("no structure set found")
)

// DefaultPattern selects the files considered in a source directory.
const DefaultPattern = "*.dcm"

// listFiles returns the regular files of dir whose name matches pattern
// (case-insensitively) and contains marker, sorted by name.
func listFiles(dir, pattern, marker string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	pattern = strings.ToLower(pattern)
	var out []os.DirEntry
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		ok, err := filepath.Match(pattern, strings.ToLower(name))
		if err != nil {
			return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
		}
		if ok && strings.Contains(strings.ToUpper(name), marker) {
			out = append(out, e)
		}
	}
	return out, nil
}

// findElement returns the element with tag t, or nil.
func findElement(elems []*dicom.Element, t tag.Tag) *dicom.Element {
	for _, e := range elems {
		if e.Tag == t {
			return e
		}
	}
	return nil
}

// stringValues returns the string values of tag t.
func stringValues(elems []*dicom.Element, t tag.Tag) ([]string, bool) {
	e := findElement(elems, t)
	if e == nil || e.Value == nil {
		return nil, false
	}
	s, ok := e.Value.GetValue().([]string)
	return s, ok
}

// floatValues parses the decimal string values of tag t. want > 0 requires
// at least that many values.
func floatValues(elems []*dicom.Element, t tag.Tag, want int) ([]float64, error) {
	strs, ok := stringValues(elems, t)
	if !ok {
		return nil, fmt.Errorf("missing %s", tagName(t))
	}
	if len(strs) < want {
		return nil, fmt.Errorf("%s has %d values, need %d", tagName(t), len(strs), want)
	}
	out := make([]float64, len(strs))
	for i, s := range strs {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tagName(t), err)
		}
		out[i] = v
	}
	return out, nil
}

// optionalFloat returns the first value of tag t, or def when it is absent or empty.
func optionalFloat(elems []*dicom.Element, t tag.Tag, def float64) (float64, error) {
	strs, ok := stringValues(elems, t)
	if !ok || len(strs) == 0 || strings.TrimSpace(strs[0]) == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(strs[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", tagName(t), err)
	}
	return v, nil
}

// intValue returns the first value of an integer tag, stored either as a
// binary integer or an integer string.
func intValue(elems []*dicom.Element, t tag.Tag) (int, bool, error) {
	e := findElement(elems, t)
	if e == nil || e.Value == nil {
		return 0, false, nil
	}
	switch v := e.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], true, nil
		}
	case []string:
		if len(v) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(v[0]))
			if err != nil {
				return 0, false, fmt.Errorf("%s: %w", tagName(t), err)
			}
			return n, true, nil
		}
	}
	return 0, false, nil
}

// requireInt is intValue for mandatory tags.
func requireInt(elems []*dicom.Element, t tag.Tag) (int, error) {
	n, ok, err := intValue(elems, t)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("missing %s", tagName(t))
	}
	return n, nil
}

// sequenceItems returns the element lists of each item of sequence tag t.
func sequenceItems(elems []*dicom.Element, t tag.Tag) [][]*dicom.Element {
	e := findElement(elems, t)
	if e == nil || e.Value == nil {
		return nil
	}
	items, ok := e.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil
	}
	out := make([][]*dicom.Element, 0, len(items))
	for _, item := range items {
		if sub, ok := item.GetValue().([]*dicom.Element); ok {
			out = append(out, sub)
		}
	}
	return out
}

// replaceValue swaps the value of an existing element.
func replaceValue(e *dicom.Element, data any) error {
	v, err := dicom.NewValue(data)
	if err != nil {
		return fmt.Errorf("%s: %w", tagName(e.Tag), err)
	}
	e.Value = v
	return nil
}

// setValue replaces the value of tag t in ds, adding the element when it is
// missing. Elements stay ordered by tag.
func setValue(ds *dicom.Dataset, t tag.Tag, data any) error {
	if e := findElement(ds.Elements, t); e != nil {
		return replaceValue(e, data)
	}
	e, err := dicom.NewElement(t, data)
	if err != nil {
		return fmt.Errorf("%s: %w", tagName(t), err)
	}
	ds.Elements = append(ds.Elements, e)
	sortElements(ds.Elements)
	return nil
}

// sortElements orders elements by group, then element number.
func sortElements(elems []*dicom.Element) {
	sort.SliceStable(elems, func(i, j int) bool {
		a, b := elems[i].Tag, elems[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})
}

// trimUID drops the padding a UID value may carry.
func trimUID(s string) string {
	return strings.TrimRight(s, "\x00 ")
}

func tagName(t tag.Tag) string {
	if info, err := tag.Find(t); err == nil {
		return info.Name
	}
	return t.String()
}
