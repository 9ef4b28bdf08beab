package merge

import (
	"fmt"
	"slices"
	"strings"

	"scholarsphere/internal/domain/works"
)

// Difference is one metadata field whose values disagree between two records.
type Difference struct {
	Field string
	Left  string
	Right string
}

func (d Difference) String() string {
	return fmt.Sprintf("%s (%s vs %s)", d.Field, d.Left, d.Right)
}

func joinDifferences(diffs []Difference) string {
	parts := make([]string, 0, len(diffs))
	for _, d := range diffs {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "; ")
}

type scalarField struct {
	name string
	get  func(*works.WorkVersion) string
}

type listField struct {
	name string
	get  func(*works.WorkVersion) []string
}

// Title is not compared: the merged version takes the collection's title, or
// the first work's when the collection has none, and other member titles are
// dropped. Keywords are compared against the collection instead.
var versionScalars = []scalarField{
	{"subtitle", func(v *works.WorkVersion) string { return v.Subtitle }},
	{"description", func(v *works.WorkVersion) string { return v.Description }},
	{"rights", func(v *works.WorkVersion) string { return v.Rights }},
	{"publisher_statement", func(v *works.WorkVersion) string { return v.PublisherStatement }},
	{"version_name", func(v *works.WorkVersion) string { return v.VersionName }},
	{"published_date", func(v *works.WorkVersion) string { return v.PublishedDate }},
}

var versionLists = []listField{
	{"contributor", func(v *works.WorkVersion) []string { return v.Contributor }},
	{"publisher", func(v *works.WorkVersion) []string { return v.Publisher }},
	{"subject", func(v *works.WorkVersion) []string { return v.Subject }},
	{"language", func(v *works.WorkVersion) []string { return v.Language }},
	{"identifier", func(v *works.WorkVersion) []string { return v.Identifier }},
	{"based_near", func(v *works.WorkVersion) []string { return v.BasedNear }},
	{"related_url", func(v *works.WorkVersion) []string { return v.RelatedURL }},
	{"source", func(v *works.WorkVersion) []string { return v.Source }},
}

// VersionDifferences compares the descriptive metadata of two versions.
// List fields compare as sets.
func VersionDifferences(a, b *works.WorkVersion) []Difference {
	var diffs []Difference
	for _, f := range versionScalars {
		if l, r := f.get(a), f.get(b); l != r {
			diffs = append(diffs, Difference{Field: f.name, Left: fmt.Sprintf("%q", l), Right: fmt.Sprintf("%q", r)})
		}
	}
	for _, f := range versionLists {
		if l, r := f.get(a), f.get(b); !SameSet(l, r) {
			diffs = append(diffs, Difference{Field: f.name, Left: fmt.Sprintf("%q", l), Right: fmt.Sprintf("%q", r)})
		}
	}
	return diffs
}

// WorkDifferences compares the non-version fields of two works.
func WorkDifferences(a, b *works.Work) []Difference {
	var diffs []Difference
	if a.WorkType != b.WorkType {
		diffs = append(diffs, Difference{Field: "work_type", Left: fmt.Sprintf("%q", a.WorkType), Right: fmt.Sprintf("%q", b.WorkType)})
	}
	if a.Visibility != b.Visibility {
		diffs = append(diffs, Difference{Field: "visibility", Left: fmt.Sprintf("%q", a.Visibility), Right: fmt.Sprintf("%q", b.Visibility)})
	}
	return diffs
}

type accessList struct {
	name string
	get  func(*works.Work) []string
}

var accessLists = []accessList{
	{"discover users", func(w *works.Work) []string { return w.DiscoverUsers }},
	{"discover groups", func(w *works.Work) []string { return w.DiscoverGroups }},
	{"edit users", func(w *works.Work) []string { return w.EditUsers }},
	{"edit groups", func(w *works.Work) []string { return w.EditGroups }},
}

// AccessDifferences names the access lists that differ between two works.
func AccessDifferences(a, b *works.Work) []string {
	var names []string
	for _, l := range accessLists {
		if !SameSet(l.get(a), l.get(b)) {
			names = append(names, l.name)
		}
	}
	return names
}

// SameSet reports whether a and b hold the same distinct values, ignoring
// order and repeats.
func SameSet(a, b []string) bool {
	return slices.Equal(distinctSorted(a), distinctSorted(b))
}

// SameMultiset reports whether a and b hold the same values with the same
// multiplicity, ignoring order.
func SameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := slices.Clone(a), slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

func distinctSorted(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// CreatorNames returns display names in position order.
func CreatorNames(creators []works.Authorship) []string {
	names := make([]string, 0, len(creators))
	for _, c := range creators {
		names = append(names, c.DisplayName)
	}
	return names
}
