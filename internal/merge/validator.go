package merge

import (
	"fmt"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/works"
)

// Violation is one reason a collection cannot be merged. Soft violations are
// metadata mismatches that a forced merge may ignore; the rest make the merge
// structurally impossible.
type Violation struct {
	Message string
	Soft    bool
}

func hard(format string, args ...any) Violation {
	return Violation{Message: fmt.Sprintf(format, args...)}
}

func soft(format string, args ...any) Violation {
	return Violation{Message: fmt.Sprintf(format, args...), Soft: true}
}

// Validate returns the violation messages that block merging c. With
// opts.Force soft violations are left out.
func Validate(c *collections.Collection, opts Options) []string {
	var msgs []string
	for _, v := range Violations(c) {
		if v.Soft && opts.Force {
			continue
		}
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// Violations runs every eligibility check over c. Works are visited in the
// order they were loaded (ascending id) and compared against the first one.
func Violations(c *collections.Collection) []Violation {
	if len(c.Works) == 0 {
		return []Violation{hard("Collection-%d has no works", c.ID)}
	}

	var out []Violation
	first := &c.Works[0]
	firstVersion := singleVersion(first)

	for i := range c.Works {
		w := &c.Works[i]

		if n := len(w.Versions); n != 1 {
			out = append(out, hard("Work-%d has %d work versions, but must only have 1", w.ID, n))
		}
		v := singleVersion(w)
		if v != nil {
			if n := len(v.FileVersionMemberships); n != 1 {
				out = append(out, hard("Work-%d has %d files, but must only have 1", w.ID, n))
			}
			if !v.Published() {
				out = append(out, hard("Work-%d is not published", w.ID))
			}
		}

		if i > 0 {
			if diffs := WorkDifferences(first, w); len(diffs) > 0 {
				out = append(out, hard("Work-%d has different work metadata than Work-%d: %s", first.ID, w.ID, joinDifferences(diffs)))
			}
			if v != nil && firstVersion != nil {
				if diffs := VersionDifferences(firstVersion, v); len(diffs) > 0 {
					out = append(out, soft("Work-%d has different WorkVersion metadata than Work-%d: %s", first.ID, w.ID, joinDifferences(diffs)))
				}
			}
			for _, list := range AccessDifferences(first, w) {
				out = append(out, soft("Work-%d has different %s than Work-%d", first.ID, list, w.ID))
			}
		}

		if v != nil {
			if !SameMultiset(CreatorNames(c.Creators), CreatorNames(v.Creators)) {
				out = append(out, soft("Collection-%d has different creators than Work-%d", c.ID, w.ID))
			}
			if !SameSet(c.Keyword, v.Keyword) {
				out = append(out, soft("Collection-%d has different keywords than Work-%d", c.ID, w.ID))
			}
		}
	}
	return out
}

func singleVersion(w *works.Work) *works.WorkVersion {
	if len(w.Versions) != 1 {
		return nil
	}
	return &w.Versions[0]
}
