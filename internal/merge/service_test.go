package merge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/media"
	"scholarsphere/internal/domain/works"
	"scholarsphere/internal/platform/metrics"
	"scholarsphere/internal/platform/sentinel"
	"scholarsphere/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) UpdateWork(ctx context.Context, w *works.Work) error {
	return m.Called(w.UUID).Error(0)
}

func (m *mockIndexer) DeleteWork(ctx context.Context, uuid string) error {
	return m.Called(uuid).Error(0)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, target any) error {
	return m.Called(target).Error(0)
}

// staleStore hands out a collection that is missing its last work, as if
// another request had changed the membership after it was read.
type staleStore struct {
	*store.Memory
}

func (s staleStore) FindCollection(ctx context.Context, uuid string) (*collections.Collection, error) {
	c, err := s.Memory.FindCollection(ctx, uuid)
	if err != nil {
		return nil, err
	}
	c.Works = c.Works[:len(c.Works)-1]
	return c, nil
}

// racingStore runs change right after the collection is read, before the
// merge takes its lock.
type racingStore struct {
	*store.Memory
	change func(c *collections.Collection)
}

func (s racingStore) FindCollection(ctx context.Context, uuid string) (*collections.Collection, error) {
	c, err := s.Memory.FindCollection(ctx, uuid)
	if err != nil {
		return nil, err
	}
	s.change(c)
	return c, nil
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.Memory
	indexer *mockIndexer
	metrics *metrics.Metrics
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.indexer = new(mockIndexer)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store, s.indexer, WithMetrics(s.metrics))
}

func (s *ServiceSuite) TearDownTest() {
	s.indexer.AssertExpectations(s.T())
}

func actor(id uint) *uint { return &id }

// seed stores a collection whose n works are published, share metadata and
// carry one file each named work<i>.png.
func (s *ServiceSuite) seed(n int) *collections.Collection {
	var members []works.Work
	for i := 1; i <= n; i++ {
		w := &works.Work{
			WorkType:    "image",
			Visibility:  works.VisibilityOpen,
			DepositorID: 1,
			EditUsers:   []string{"abc123"},
			Versions: []works.WorkVersion{{
				VersionNumber: 1,
				State:         works.StateDraft,
				Title:         fmt.Sprintf("Work %d", i),
				Description:   "Photographs of the field site",
				PublishedDate: "2019-06",
				Rights:        "https://creativecommons.org/licenses/by/4.0/",
				Keyword:       []string{"soil", "field"},
				Subject:       []string{"Geology"},
				Creators: []works.Authorship{
					{ActorID: actor(5), DisplayName: "Pat Researcher", GivenName: "Pat", Surname: "Researcher"},
				},
				FileVersionMemberships: []works.FileVersionMembership{{
					Title:        fmt.Sprintf("work%d.png", i),
					FileResource: &media.FileResource{StorageKey: fmt.Sprintf("files/%d/work.png", i), Filename: "work.png"},
				}},
			}},
		}
		s.Require().NoError(s.store.SaveWork(s.ctx, w))
		s.publish(w)
		members = append(members, *w)
	}

	c := &collections.Collection{
		Title:       "Field site photographs",
		Description: "Every photograph from the 2019 season",
		DepositorID: 1,
		Keyword:     []string{"field", "soil"},
		EditUsers:   []string{"abc123"},
		Creators:    []works.Authorship{{ActorID: actor(5), DisplayName: "Pat Researcher"}},
		Works:       members,
	}
	s.Require().NoError(s.store.SaveCollection(s.ctx, c))
	return c
}

func (s *ServiceSuite) publish(w *works.Work) {
	s.Require().NoError(s.store.ModifyVersion(w.Versions[0].ID, func(v *works.WorkVersion) {
		v.State = works.StatePublished
	}))
}

func (s *ServiceSuite) version(w works.Work, fn func(v *works.WorkVersion)) {
	s.Require().NoError(s.store.ModifyVersion(w.Versions[0].ID, fn))
}

func (s *ServiceSuite) expectMerged(c *collections.Collection) {
	s.indexer.On("UpdateWork", mock.AnythingOfType("string")).Return(nil).Once()
	for _, w := range c.Works {
		s.indexer.On("DeleteWork", w.UUID).Return(nil).Once()
	}
}

func (s *ServiceSuite) TestMergesCollection() {
	c := s.seed(2)
	s.expectMerged(c)

	out, err := s.service.Merge(s.ctx, c.UUID, Options{})
	s.Require().NoError(err)
	s.Require().True(out.Successful)
	s.Empty(out.Errors)

	workCount, collectionCount := s.store.Counts()
	s.Equal(1, workCount)
	s.Equal(0, collectionCount)

	merged, err := s.store.FindWork(s.ctx, out.Work.UUID)
	s.Require().NoError(err)
	s.Nil(merged.DOI)
	s.Equal("image", merged.WorkType)
	s.Equal(uint(1), merged.DepositorID)
	s.Equal([]string{"abc123"}, []string(merged.EditUsers))

	s.Require().Len(merged.Versions, 1)
	v := merged.Versions[0]
	s.True(v.Draft())
	s.Nil(v.DOI)
	s.Equal("Field site photographs", v.Title)
	s.Equal("Every photograph from the 2019 season", v.Description)
	s.Equal("2019-06", v.PublishedDate)
	s.Equal("https://creativecommons.org/licenses/by/4.0/", v.Rights)
	s.ElementsMatch([]string{"field", "soil"}, v.Keyword)

	s.Require().Len(v.FileVersionMemberships, 2)
	s.Equal("work1.png", v.FileVersionMemberships[0].Title)
	s.Equal("work2.png", v.FileVersionMemberships[1].Title)
	s.Equal("files/1/work.png", v.FileVersionMemberships[0].FileResource.StorageKey)

	s.Require().Len(v.Creators, 1)
	s.Equal("Pat Researcher", v.Creators[0].DisplayName)
	s.Equal(0, v.Creators[0].Position)

	for _, old := range c.Works {
		_, err := s.store.FindWork(s.ctx, old.UUID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
	_, err = s.store.FindCollection(s.ctx, c.UUID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.MergeRuns.WithLabelValues("success")))
}

func (s *ServiceSuite) TestRejects() {
	tests := []struct {
		name    string
		arrange func(c *collections.Collection)
		force   bool
		want    func(c *collections.Collection) []string
	}{
		{
			name: "too many files",
			arrange: func(c *collections.Collection) {
				_, err := s.store.AddFile(s.ctx, c.Works[1].Versions[0].ID, &media.FileResource{StorageKey: "x", Filename: "x.png"}, "extra.png")
				s.Require().NoError(err)
			},
			want: func(c *collections.Collection) []string {
				return []string{fmt.Sprintf("Work-%d has 2 files, but must only have 1", c.Works[1].ID)}
			},
		},
		{
			name: "unpublished work",
			arrange: func(c *collections.Collection) {
				s.version(c.Works[0], func(v *works.WorkVersion) { v.State = works.StateDraft })
			},
			force: true,
			want: func(c *collections.Collection) []string {
				return []string{fmt.Sprintf("Work-%d is not published", c.Works[0].ID)}
			},
		},
		{
			name: "different version metadata",
			arrange: func(c *collections.Collection) {
				s.version(c.Works[1], func(v *works.WorkVersion) { v.Subtitle = "Second season" })
			},
			want: func(c *collections.Collection) []string {
				return []string{fmt.Sprintf(`Work-%d has different WorkVersion metadata than Work-%d: subtitle ("" vs "Second season")`, c.Works[0].ID, c.Works[1].ID)}
			},
		},
		{
			name: "different work metadata even when forced",
			arrange: func(c *collections.Collection) {
				s.Require().NoError(s.store.ModifyWork(c.Works[1].ID, func(w *works.Work) { w.Visibility = works.VisibilityRestricted }))
			},
			force: true,
			want: func(c *collections.Collection) []string {
				return []string{fmt.Sprintf(`Work-%d has different work metadata than Work-%d: visibility ("open" vs "restricted")`, c.Works[0].ID, c.Works[1].ID)}
			},
		},
		{
			name: "different access",
			arrange: func(c *collections.Collection) {
				s.Require().NoError(s.store.ModifyWork(c.Works[1].ID, func(w *works.Work) { w.EditUsers = nil }))
			},
			want: func(c *collections.Collection) []string {
				return []string{fmt.Sprintf("Work-%d has different edit users than Work-%d", c.Works[0].ID, c.Works[1].ID)}
			},
		},
		{
			name: "different creators",
			arrange: func(c *collections.Collection) {
				s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
					return tx.CreateAuthorships(s.ctx, []works.Authorship{{
						ResourceType: works.ResourceWorkVersion,
						ResourceID:   c.Works[1].Versions[0].ID,
						DisplayName:  "Sam Assistant",
						Position:     1,
					}})
				}))
			},
			want: func(c *collections.Collection) []string {
				return []string{fmt.Sprintf("Collection-%d has different creators than Work-%d", c.ID, c.Works[1].ID)}
			},
		},
		{
			name: "different keywords",
			arrange: func(c *collections.Collection) {
				s.version(c.Works[0], func(v *works.WorkVersion) { v.Keyword = []string{"soil"} })
			},
			want: func(c *collections.Collection) []string {
				return []string{fmt.Sprintf("Collection-%d has different keywords than Work-%d", c.ID, c.Works[0].ID)}
			},
		},
		{
			name: "blank work type",
			arrange: func(c *collections.Collection) {
				for _, w := range c.Works {
					s.Require().NoError(s.store.ModifyWork(w.ID, func(w *works.Work) { w.WorkType = "" }))
				}
			},
			want: func(c *collections.Collection) []string {
				return []string{"Work type can't be blank"}
			},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			c := s.seed(2)
			tt.arrange(c)

			out, err := s.service.Merge(s.ctx, c.UUID, Options{Force: tt.force})
			s.Require().NoError(err)
			s.False(out.Successful)
			s.Nil(out.Work)
			s.Equal(tt.want(c), out.Errors)

			_, err = s.store.FindCollection(s.ctx, c.UUID)
			s.NoError(err)
		})
	}
}

func (s *ServiceSuite) TestRejectsTooManyVersions() {
	c := s.seed(1)
	w := &works.Work{
		WorkType:    "image",
		Visibility:  works.VisibilityOpen,
		DepositorID: 1,
		Versions: []works.WorkVersion{
			{VersionNumber: 1, State: works.StateDraft, Title: "v1"},
			{VersionNumber: 2, State: works.StateDraft, Title: "v2"},
		},
	}
	s.Require().NoError(s.store.SaveWork(s.ctx, w))
	c2 := &collections.Collection{Title: "Two", Description: "d", DepositorID: 1, Works: []works.Work{c.Works[0], *w}}
	s.Require().NoError(s.store.SaveCollection(s.ctx, c2))

	out, err := s.service.Merge(s.ctx, c2.UUID, Options{Force: true})
	s.Require().NoError(err)
	s.Contains(out.Errors, fmt.Sprintf("Work-%d has 2 work versions, but must only have 1", w.ID))
}

func (s *ServiceSuite) TestRejectsEmptyCollection() {
	c := &collections.Collection{Title: "Empty", Description: "d", DepositorID: 1}
	s.Require().NoError(s.store.SaveCollection(s.ctx, c))

	out, err := s.service.Merge(s.ctx, c.UUID, Options{})
	s.Require().NoError(err)
	s.Equal([]string{fmt.Sprintf("Collection-%d has no works", c.ID)}, out.Errors)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.MergeRuns.WithLabelValues("rejected")))
}

func (s *ServiceSuite) TestForceIgnoresMetadataAndUsesFirstWork() {
	c := s.seed(2)
	s.version(c.Works[0], func(v *works.WorkVersion) { v.Subtitle = "From the first" })
	s.version(c.Works[1], func(v *works.WorkVersion) { v.Subtitle = "From the second" })
	s.Require().NoError(s.store.ModifyWork(c.Works[1].ID, func(w *works.Work) { w.EditGroups = []string{"umg/geology"} }))
	s.expectMerged(c)

	out, err := s.service.Merge(s.ctx, c.UUID, Options{Force: true})
	s.Require().NoError(err)
	s.Require().True(out.Successful)
	s.Equal("From the first", out.Work.Versions[0].Subtitle)
}

func (s *ServiceSuite) TestDedupesCreators() {
	c := s.seed(2)
	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		return tx.CreateAuthorships(s.ctx, []works.Authorship{{
			ResourceType: works.ResourceWorkVersion,
			ResourceID:   c.Works[1].Versions[0].ID,
			DisplayName:  "Sam Assistant",
			Position:     1,
		}})
	}))
	s.expectMerged(c)

	out, err := s.service.Merge(s.ctx, c.UUID, Options{Force: true})
	s.Require().NoError(err)
	s.Require().True(out.Successful)

	creators := out.Work.Versions[0].Creators
	s.Require().Len(creators, 2)
	s.Equal("Pat Researcher", creators[0].DisplayName)
	s.Equal(0, creators[0].Position)
	s.Equal("Sam Assistant", creators[1].DisplayName)
	s.Equal(1, creators[1].Position)
}

func (s *ServiceSuite) TestIndexFailureRollsBack() {
	c := s.seed(2)
	boom := errors.New("connection refused")
	s.indexer.On("UpdateWork", mock.AnythingOfType("string")).Return(boom).Once()
	s.indexer.On("DeleteWork", mock.AnythingOfType("string")).Return(nil).Once()

	out, err := s.service.Merge(s.ctx, c.UUID, Options{})
	s.ErrorIs(err, boom)
	s.Nil(out)

	workCount, collectionCount := s.store.Counts()
	s.Equal(2, workCount)
	s.Equal(1, collectionCount)

	found, err := s.store.FindCollection(s.ctx, c.UUID)
	s.Require().NoError(err)
	s.Require().Len(found.Works, 2)
	for _, w := range found.Works {
		s.Len(w.Versions[0].FileVersionMemberships, 1)
	}
	s.Equal(1.0, testutil.ToFloat64(s.metrics.MergeRuns.WithLabelValues("failed")))
}

func (s *ServiceSuite) TestConcurrentMembershipChange() {
	c := s.seed(2)
	svc := New(staleStore{s.store}, s.indexer)

	out, err := svc.Merge(s.ctx, c.UUID, Options{})
	s.ErrorIs(err, sentinel.ErrConflict)
	s.Nil(out)

	workCount, collectionCount := s.store.Counts()
	s.Equal(2, workCount)
	s.Equal(1, collectionCount)
}

func (s *ServiceSuite) TestChangeBetweenReadAndLock() {
	tests := []struct {
		name   string
		change func(c *collections.Collection)
	}{
		{
			name: "file added",
			change: func(c *collections.Collection) {
				_, err := s.store.AddFile(s.ctx, c.Works[0].Versions[0].ID, &media.FileResource{StorageKey: "files/extra", Filename: "extra.png"}, "extra.png")
				s.Require().NoError(err)
			},
		},
		{
			name: "creator added",
			change: func(c *collections.Collection) {
				s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
					return tx.CreateAuthorships(s.ctx, []works.Authorship{{
						ResourceType: works.ResourceWorkVersion,
						ResourceID:   c.Works[1].Versions[0].ID,
						DisplayName:  "Sam Assistant",
						Position:     1,
					}})
				}))
			},
		},
		{
			name: "version unpublished",
			change: func(c *collections.Collection) {
				s.version(c.Works[0], func(v *works.WorkVersion) { v.State = works.StateDraft })
			},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			c := s.seed(2)
			svc := New(racingStore{Memory: s.store, change: tt.change}, s.indexer)
			before, _ := s.store.Counts()

			out, err := svc.Merge(s.ctx, c.UUID, Options{})
			s.ErrorIs(err, sentinel.ErrConflict)
			s.Nil(out)

			after, _ := s.store.Counts()
			s.Equal(before, after)
			found, err := s.store.FindCollection(s.ctx, c.UUID)
			s.Require().NoError(err)
			s.Len(found.Works, 2)
		})
	}
}

func (s *ServiceSuite) TestMissingCollection() {
	_, err := s.service.Merge(s.ctx, "missing", Options{})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestMintDOI() {
	s.Run("dispatches for the new work", func() {
		c := s.seed(2)
		s.expectMerged(c)
		d := new(mockDispatcher)
		d.On("Dispatch", mock.AnythingOfType("*works.Work")).Return(nil).Once()
		svc := New(s.store, s.indexer, WithDispatcher(d))

		out, err := svc.Merge(s.ctx, c.UUID, Options{MintDOI: true})
		s.Require().NoError(err)
		s.True(out.Successful)
		d.AssertExpectations(s.T())
	})

	s.Run("failure after commit keeps the merge", func() {
		c := s.seed(2)
		s.expectMerged(c)
		d := new(mockDispatcher)
		d.On("Dispatch", mock.Anything).Return(errors.New("registrar down")).Once()
		svc := New(s.store, s.indexer, WithDispatcher(d))

		out, err := svc.Merge(s.ctx, c.UUID, Options{MintDOI: true})
		s.ErrorIs(err, ErrDOIAfterCommit)
		s.Require().NotNil(out)
		s.True(out.Successful)

		_, err = s.store.FindWork(s.ctx, out.Work.UUID)
		s.NoError(err)
	})

	s.Run("not requested", func() {
		c := s.seed(2)
		s.expectMerged(c)
		d := new(mockDispatcher)
		svc := New(s.store, s.indexer, WithDispatcher(d))

		_, err := svc.Merge(s.ctx, c.UUID, Options{})
		s.Require().NoError(err)
		d.AssertNotCalled(s.T(), "Dispatch", mock.Anything)
	})
}
