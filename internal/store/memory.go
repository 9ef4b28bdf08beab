package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/media"
	"scholarsphere/internal/domain/works"
	"scholarsphere/internal/platform/sentinel"
)

// Memory is an in-process store. Rows are kept normalised (no associations)
// and assembled on read. RunInTx holds the store lock for the whole callback
// and restores a snapshot when the callback fails.
type Memory struct {
	mu   sync.Mutex
	seq  uint
	data *memData
}

type memData struct {
	works           map[uint]works.Work
	versions        map[uint]works.WorkVersion
	memberships     map[uint]works.FileVersionMembership
	files           map[string]media.FileResource
	authorships     map[uint]works.Authorship
	collections     map[uint]collections.Collection
	collectionWorks map[uint][]uint
}

func NewMemory() *Memory {
	return &Memory{data: &memData{
		works:           map[uint]works.Work{},
		versions:        map[uint]works.WorkVersion{},
		memberships:     map[uint]works.FileVersionMembership{},
		files:           map[string]media.FileResource{},
		authorships:     map[uint]works.Authorship{},
		collections:     map[uint]collections.Collection{},
		collectionWorks: map[uint][]uint{},
	}}
}

func (d *memData) clone() *memData {
	cw := make(map[uint][]uint, len(d.collectionWorks))
	for k, v := range d.collectionWorks {
		cw[k] = slices.Clone(v)
	}
	return &memData{
		works:           maps.Clone(d.works),
		versions:        maps.Clone(d.versions),
		memberships:     maps.Clone(d.memberships),
		files:           maps.Clone(d.files),
		authorships:     maps.Clone(d.authorships),
		collections:     maps.Clone(d.collections),
		collectionWorks: cw,
	}
}

func (s *Memory) nextID() uint {
	s.seq++
	return s.seq
}

// Counts reports the number of work and collection rows.
func (s *Memory) Counts() (workCount, collectionCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.works), len(s.data.collections)
}

func (s *Memory) FindCollection(ctx context.Context, uuid string) (*collections.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.data.collections {
		if c.UUID == uuid {
			return s.assembleCollection(id), nil
		}
	}
	return nil, fmt.Errorf("find collection: %w", sentinel.ErrNotFound)
}

func (s *Memory) FindWork(ctx context.Context, uuid string) (*works.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.data.works {
		if w.UUID == uuid {
			return s.assembleWork(id), nil
		}
	}
	return nil, fmt.Errorf("find work: %w", sentinel.ErrNotFound)
}

func (s *Memory) FindWorkByID(ctx context.Context, id uint) (*works.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.works[id]; !ok {
		return nil, fmt.Errorf("find work: %w", sentinel.ErrNotFound)
	}
	return s.assembleWork(id), nil
}

func (s *Memory) FindVersion(ctx context.Context, uuid string) (*works.WorkVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.data.versions {
		if v.UUID == uuid {
			return s.assembleVersion(id), nil
		}
	}
	return nil, fmt.Errorf("find version: %w", sentinel.ErrNotFound)
}

func (s *Memory) LatestVersion(ctx context.Context, workID uint) (*works.WorkVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *works.WorkVersion
	for id, v := range s.data.versions {
		if v.WorkID == workID && (latest == nil || v.VersionNumber > latest.VersionNumber) {
			latest = s.assembleVersion(id)
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("latest version: %w", sentinel.ErrNotFound)
	}
	return latest, nil
}

func (s *Memory) SaveWork(ctx context.Context, w *works.Work) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWork(w)
}

// SaveCollection inserts a collection and links the works already present in
// c.Works by id.
func (s *Memory) SaveCollection(ctx context.Context, c *collections.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.BeforeCreate(nil); err != nil {
		return err
	}
	if err := c.BeforeSave(nil); err != nil {
		return err
	}
	for _, w := range c.Works {
		if _, ok := s.data.works[w.ID]; !ok {
			return fmt.Errorf("save collection: work %d: %w", w.ID, sentinel.ErrNotFound)
		}
	}

	c.ID = s.nextID()
	stamp(&c.CreatedAt, &c.UpdatedAt)
	row := *c
	row.Works = nil
	row.Creators = nil
	cloneCollectionLists(&row)
	s.data.collections[c.ID] = row
	s.data.collectionWorks[c.ID] = c.WorkIDs()

	for i := range c.Creators {
		c.Creators[i].ResourceType = works.ResourceCollection
		c.Creators[i].ResourceID = c.ID
		s.insertAuthorship(&c.Creators[i])
	}
	return nil
}

// ModifyWork edits a stored work row without running validations, the way a
// column update does.
func (s *Memory) ModifyWork(id uint, fn func(w *works.Work)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.data.works[id]
	if !ok {
		return fmt.Errorf("modify work: %w", sentinel.ErrNotFound)
	}
	fn(&w)
	cloneWorkLists(&w)
	s.data.works[id] = w
	return nil
}

// ModifyVersion edits a stored version row without running validations.
func (s *Memory) ModifyVersion(id uint, fn func(v *works.WorkVersion)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.versions[id]
	if !ok {
		return fmt.Errorf("modify version: %w", sentinel.ErrNotFound)
	}
	fn(&v)
	cloneVersionLists(&v)
	s.data.versions[id] = v
	return nil
}

func (s *Memory) SetVersionDOI(ctx context.Context, id uint, doi string) error {
	return s.ModifyVersion(id, func(v *works.WorkVersion) { v.DOI = &doi })
}

func (s *Memory) SetWorkDOI(ctx context.Context, id uint, doi string) error {
	return s.ModifyWork(id, func(w *works.Work) { w.DOI = &doi })
}

func (s *Memory) SetCollectionDOI(ctx context.Context, id uint, doi string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.collections[id]
	if !ok {
		return fmt.Errorf("set doi: %w", sentinel.ErrNotFound)
	}
	c.DOI = &doi
	s.data.collections[id] = c
	return nil
}

func (s *Memory) PublishVersion(ctx context.Context, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.versions[id]
	if !ok {
		return fmt.Errorf("publish version: %w", sentinel.ErrNotFound)
	}
	if !v.Draft() {
		return fmt.Errorf("publish version: %w", sentinel.ErrInvalidState)
	}
	v.State = works.StatePublished
	v.PublishedAt = &at
	s.data.versions[id] = v
	return nil
}

func (s *Memory) AddFile(ctx context.Context, versionID uint, file *media.FileResource, title string) (*works.FileVersionMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.versions[versionID]; !ok {
		return nil, fmt.Errorf("add file: %w", sentinel.ErrNotFound)
	}
	for _, m := range s.data.memberships {
		if m.WorkVersionID == versionID && m.Title == title {
			return nil, fmt.Errorf("add file: %w", sentinel.ErrConflict)
		}
	}
	if err := file.BeforeCreate(nil); err != nil {
		return nil, err
	}
	s.data.files[file.ID] = *file

	m := works.FileVersionMembership{
		ID:             s.nextID(),
		WorkVersionID:  versionID,
		FileResourceID: file.ID,
		Title:          title,
	}
	s.data.memberships[m.ID] = m
	m.FileResource = file
	return &m, nil
}

func (s *Memory) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&memoryTx{s: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// createWork mirrors gorm's nested create: hooks first, then the work, its
// versions and their memberships and creators.
func (s *Memory) createWork(w *works.Work) error {
	if err := w.BeforeCreate(nil); err != nil {
		return err
	}
	if err := w.BeforeSave(nil); err != nil {
		return err
	}
	for i := range w.Versions {
		v := &w.Versions[i]
		if err := v.BeforeCreate(nil); err != nil {
			return err
		}
		if err := v.BeforeSave(nil); err != nil {
			return err
		}
	}

	w.ID = s.nextID()
	stamp(&w.CreatedAt, &w.UpdatedAt)
	row := *w
	row.Versions = nil
	cloneWorkLists(&row)
	s.data.works[w.ID] = row

	for i := range w.Versions {
		v := &w.Versions[i]
		v.WorkID = w.ID
		v.ID = s.nextID()
		stamp(&v.CreatedAt, &v.UpdatedAt)
		vrow := *v
		vrow.FileVersionMemberships = nil
		vrow.Creators = nil
		cloneVersionLists(&vrow)
		s.data.versions[v.ID] = vrow

		for j := range v.FileVersionMemberships {
			m := &v.FileVersionMemberships[j]
			m.WorkVersionID = v.ID
			if m.FileResource != nil {
				if err := m.FileResource.BeforeCreate(nil); err != nil {
					return err
				}
				s.data.files[m.FileResource.ID] = *m.FileResource
				m.FileResourceID = m.FileResource.ID
			}
			m.ID = s.nextID()
			mrow := *m
			mrow.FileResource = nil
			s.data.memberships[m.ID] = mrow
		}
		for j := range v.Creators {
			v.Creators[j].ResourceType = works.ResourceWorkVersion
			v.Creators[j].ResourceID = v.ID
			s.insertAuthorship(&v.Creators[j])
		}
	}
	return nil
}

// stamp fills zero timestamps the way gorm's autoCreateTime does.
func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

func (s *Memory) insertAuthorship(a *works.Authorship) {
	a.ID = s.nextID()
	s.data.authorships[a.ID] = *a
}

func (s *Memory) assembleCollection(id uint) *collections.Collection {
	c := s.data.collections[id]
	cloneCollectionLists(&c)
	c.Creators = s.creatorsOf(works.ResourceCollection, id)
	workIDs := slices.Clone(s.data.collectionWorks[id])
	slices.Sort(workIDs)
	for _, wid := range workIDs {
		c.Works = append(c.Works, *s.assembleWork(wid))
	}
	return &c
}

func (s *Memory) assembleWork(id uint) *works.Work {
	w := s.data.works[id]
	cloneWorkLists(&w)
	var versionIDs []uint
	for vid, v := range s.data.versions {
		if v.WorkID == id {
			versionIDs = append(versionIDs, vid)
		}
	}
	for _, vid := range versionIDs {
		w.Versions = append(w.Versions, *s.assembleVersion(vid))
	}
	slices.SortFunc(w.Versions, func(a, b works.WorkVersion) int {
		return cmp.Compare(a.VersionNumber, b.VersionNumber)
	})
	return &w
}

func (s *Memory) assembleVersion(id uint) *works.WorkVersion {
	v := s.data.versions[id]
	cloneVersionLists(&v)
	for _, m := range s.data.memberships {
		if m.WorkVersionID != id {
			continue
		}
		if f, ok := s.data.files[m.FileResourceID]; ok {
			m.FileResource = &f
		}
		v.FileVersionMemberships = append(v.FileVersionMemberships, m)
	}
	slices.SortFunc(v.FileVersionMemberships, func(a, b works.FileVersionMembership) int {
		return cmp.Compare(a.ID, b.ID)
	})
	v.Creators = s.creatorsOf(works.ResourceWorkVersion, id)
	return &v
}

// Stored rows never share list backing arrays with the records handed in or
// out, so edits only land through the store.

func cloneWorkLists(w *works.Work) {
	w.DiscoverUsers = slices.Clone(w.DiscoverUsers)
	w.DiscoverGroups = slices.Clone(w.DiscoverGroups)
	w.EditUsers = slices.Clone(w.EditUsers)
	w.EditGroups = slices.Clone(w.EditGroups)
}

func cloneVersionLists(v *works.WorkVersion) {
	v.Keyword = slices.Clone(v.Keyword)
	v.Contributor = slices.Clone(v.Contributor)
	v.Publisher = slices.Clone(v.Publisher)
	v.Subject = slices.Clone(v.Subject)
	v.Language = slices.Clone(v.Language)
	v.Identifier = slices.Clone(v.Identifier)
	v.BasedNear = slices.Clone(v.BasedNear)
	v.RelatedURL = slices.Clone(v.RelatedURL)
	v.Source = slices.Clone(v.Source)
}

func cloneCollectionLists(c *collections.Collection) {
	c.Keyword = slices.Clone(c.Keyword)
	c.Contributor = slices.Clone(c.Contributor)
	c.Publisher = slices.Clone(c.Publisher)
	c.Subject = slices.Clone(c.Subject)
	c.Language = slices.Clone(c.Language)
	c.Identifier = slices.Clone(c.Identifier)
	c.BasedNear = slices.Clone(c.BasedNear)
	c.RelatedURL = slices.Clone(c.RelatedURL)
	c.Source = slices.Clone(c.Source)
	c.DiscoverUsers = slices.Clone(c.DiscoverUsers)
	c.DiscoverGroups = slices.Clone(c.DiscoverGroups)
	c.EditUsers = slices.Clone(c.EditUsers)
	c.EditGroups = slices.Clone(c.EditGroups)
}

func (s *Memory) creatorsOf(resourceType string, id uint) []works.Authorship {
	var out []works.Authorship
	for _, a := range s.data.authorships {
		if a.ResourceType == resourceType && a.ResourceID == id {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b works.Authorship) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// memoryTx runs under the lock taken by RunInTx.
type memoryTx struct {
	s *Memory
}

func (t *memoryTx) LockCollection(ctx context.Context, id uint) (*collections.Collection, error) {
	if _, ok := t.s.data.collections[id]; !ok {
		return nil, fmt.Errorf("lock collection: %w", sentinel.ErrNotFound)
	}
	return t.s.assembleCollection(id), nil
}

func (t *memoryTx) CreateWork(ctx context.Context, w *works.Work) error {
	return t.s.createWork(w)
}

func (t *memoryTx) MoveFileMemberships(ctx context.Context, fromVersionID, toVersionID uint) error {
	if _, ok := t.s.data.versions[toVersionID]; !ok {
		return fmt.Errorf("move file memberships: %w", sentinel.ErrNotFound)
	}
	taken := map[string]bool{}
	for _, m := range t.s.data.memberships {
		if m.WorkVersionID == toVersionID {
			taken[m.Title] = true
		}
	}
	for id, m := range t.s.data.memberships {
		if m.WorkVersionID != fromVersionID {
			continue
		}
		if taken[m.Title] {
			return fmt.Errorf("move file memberships: title %q: %w", m.Title, sentinel.ErrConflict)
		}
		taken[m.Title] = true
		m.WorkVersionID = toVersionID
		t.s.data.memberships[id] = m
	}
	return nil
}

func (t *memoryTx) CreateAuthorships(ctx context.Context, rows []works.Authorship) error {
	for i := range rows {
		t.s.insertAuthorship(&rows[i])
	}
	return nil
}

func (t *memoryTx) DeleteWork(ctx context.Context, id uint) error {
	d := t.s.data
	if _, ok := d.works[id]; !ok {
		return fmt.Errorf("delete work %d: %w", id, sentinel.ErrNotFound)
	}
	for vid, v := range d.versions {
		if v.WorkID != id {
			continue
		}
		for aid, a := range d.authorships {
			if a.ResourceType == works.ResourceWorkVersion && a.ResourceID == vid {
				delete(d.authorships, aid)
			}
		}
		for mid, m := range d.memberships {
			if m.WorkVersionID == vid {
				delete(d.memberships, mid)
			}
		}
		delete(d.versions, vid)
	}
	for cid, ids := range d.collectionWorks {
		d.collectionWorks[cid] = slices.DeleteFunc(ids, func(wid uint) bool { return wid == id })
	}
	delete(d.works, id)
	return nil
}

func (t *memoryTx) DeleteCollection(ctx context.Context, id uint) error {
	d := t.s.data
	if _, ok := d.collections[id]; !ok {
		return fmt.Errorf("delete collection %d: %w", id, sentinel.ErrNotFound)
	}
	for aid, a := range d.authorships {
		if a.ResourceType == works.ResourceCollection && a.ResourceID == id {
			delete(d.authorships, aid)
		}
	}
	delete(d.collectionWorks, id)
	delete(d.collections, id)
	return nil
}
