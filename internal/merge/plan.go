package merge

import (
	"slices"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/works"
)

// plan is the merged work staged in memory before any write.
type plan struct {
	work     *works.Work
	sources  []*works.WorkVersion
	files    []works.FileVersionMembership
	creators []works.Authorship
}

// stagePlan builds the merged work from c. Collection metadata wins where it
// is present; otherwise the first member work (lowest id) supplies it. The
// collection must have at least one work with exactly one version.
func stagePlan(c *collections.Collection) *plan {
	first := &c.Works[0]
	fv := &first.Versions[0]

	depositor := c.DepositorID
	if depositor == 0 {
		depositor = first.DepositorID
	}

	version := works.WorkVersion{
		VersionNumber:      1,
		State:              works.StateDraft,
		Title:              orString(c.Title, fv.Title),
		Subtitle:           orString(c.Subtitle, fv.Subtitle),
		Description:        orString(c.Description, fv.Description),
		PublishedDate:      orString(c.PublishedDate, fv.PublishedDate),
		Rights:             fv.Rights,
		PublisherStatement: fv.PublisherStatement,
		VersionName:        fv.VersionName,
		Keyword:            orList(c.Keyword, fv.Keyword),
		Contributor:        orList(c.Contributor, fv.Contributor),
		Publisher:          orList(c.Publisher, fv.Publisher),
		Subject:            orList(c.Subject, fv.Subject),
		Language:           orList(c.Language, fv.Language),
		Identifier:         orList(c.Identifier, fv.Identifier),
		BasedNear:          orList(c.BasedNear, fv.BasedNear),
		RelatedURL:         orList(c.RelatedURL, fv.RelatedURL),
		Source:             orList(c.Source, fv.Source),
	}

	p := &plan{
		work: &works.Work{
			WorkType:         first.WorkType,
			Visibility:       first.Visibility,
			DepositorID:      depositor,
			ProxyDepositorID: first.ProxyDepositorID,
			DiscoverUsers:    slices.Clone(c.DiscoverUsers),
			DiscoverGroups:   slices.Clone(c.DiscoverGroups),
			EditUsers:        slices.Clone(c.EditUsers),
			EditGroups:       slices.Clone(c.EditGroups),
			Versions:         []works.WorkVersion{version},
		},
	}

	type creatorKey struct {
		actor uint
		name  string
	}
	seen := map[creatorKey]bool{}

	for i := range c.Works {
		for j := range c.Works[i].Versions {
			src := &c.Works[i].Versions[j]
			p.sources = append(p.sources, src)
			p.files = append(p.files, src.FileVersionMemberships...)

			for _, a := range src.Creators {
				key := creatorKey{name: a.DisplayName}
				if a.ActorID != nil {
					key.actor = *a.ActorID
				}
				if seen[key] {
					continue
				}
				seen[key] = true
				dup := a.Dup()
				dup.Position = len(p.creators)
				p.creators = append(p.creators, dup)
			}
		}
	}
	return p
}

// rowIDs lists the ids of every row a merge reads or moves, with counts
// between groups, so two loads of one collection can be compared.
func rowIDs(c *collections.Collection) []uint {
	ids := []uint{uint(len(c.Works))}
	for _, w := range c.Works {
		ids = append(ids, w.ID, uint(len(w.Versions)))
		for _, v := range w.Versions {
			ids = append(ids, v.ID, uint(len(v.FileVersionMemberships)), uint(len(v.Creators)))
			for _, m := range v.FileVersionMemberships {
				ids = append(ids, m.ID)
			}
			for _, a := range v.Creators {
				ids = append(ids, a.ID)
			}
		}
	}
	return ids
}

// errors validates the staged work as it will look after the merge.
func (p *plan) errors() []string {
	errs := p.work.Errors()
	v := p.work.Versions[0]
	v.FileVersionMemberships = p.files
	v.Creators = p.creators
	return append(errs, v.Errors()...)
}

func orString(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func orList(preferred, fallback []string) []string {
	if len(preferred) > 0 {
		return slices.Clone(preferred)
	}
	return slices.Clone(fallback)
}
