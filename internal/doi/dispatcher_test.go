package doi

import (
	"context"
	"errors"
	"testing"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/media"
	"scholarsphere/internal/domain/works"
	"scholarsphere/internal/infra/datacite"
	"scholarsphere/internal/platform/sentinel"
	"scholarsphere/internal/store"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) Register(ctx context.Context) (string, datacite.Attributes, error) {
	args := m.Called(ctx)
	return args.String(0), nil, args.Error(1)
}

func (m *mockRegistrar) Publish(ctx context.Context, doi *string, md datacite.Attributes) (string, datacite.Attributes, error) {
	args := m.Called(ctx, doi, md)
	return args.String(0), md, args.Error(1)
}

type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) UpdateWork(ctx context.Context, w *works.Work) error {
	return m.Called(ctx, w).Error(0)
}

type DispatcherSuite struct {
	suite.Suite
	ctx        context.Context
	store      *store.Memory
	registrar  *mockRegistrar
	indexer    *mockIndexer
	dispatcher *Dispatcher
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.registrar = new(mockRegistrar)
	s.indexer = new(mockIndexer)
	mapper := datacite.NewMapper("https://scholarsphere.example.edu", "ScholarSphere")
	s.dispatcher = NewDispatcher(s.store, s.registrar, mapper, s.indexer)
}

func (s *DispatcherSuite) TearDownTest() {
	s.registrar.AssertExpectations(s.T())
	s.indexer.AssertExpectations(s.T())
}

func (s *DispatcherSuite) saveWork(state works.State) *works.Work {
	w := &works.Work{
		WorkType:    "dataset",
		Visibility:  works.VisibilityOpen,
		DepositorID: 1,
		Versions: []works.WorkVersion{{
			VersionNumber: 1,
			State:         works.StateDraft,
			Title:         "Soil samples",
			Description:   "Core samples",
			PublishedDate: "2020-04-01",
			Rights:        "https://creativecommons.org/licenses/by/4.0/",
			Creators:      []works.Authorship{{DisplayName: "Pat Researcher", GivenName: "Pat", Surname: "Researcher"}},
			FileVersionMemberships: []works.FileVersionMembership{
				{Title: "samples.csv", FileResource: &media.FileResource{StorageKey: "k", Filename: "samples.csv"}},
			},
		}},
	}
	s.Require().NoError(s.store.SaveWork(s.ctx, w))
	if state == works.StatePublished {
		s.Require().NoError(s.store.ModifyVersion(w.Versions[0].ID, func(v *works.WorkVersion) {
			v.State = works.StatePublished
		}))
	}
	found, err := s.store.FindWorkByID(s.ctx, w.ID)
	s.Require().NoError(err)
	return found
}

func (s *DispatcherSuite) stored(w *works.Work) *works.Work {
	found, err := s.store.FindWorkByID(s.ctx, w.ID)
	s.Require().NoError(err)
	return found
}

func ptr(s string) *string { return &s }

func (s *DispatcherSuite) TestVersion() {
	s.Run("draft without doi registers", func() {
		w := s.saveWork(works.StateDraft)
		v := &w.Versions[0]
		s.registrar.On("Register", s.ctx).Return("10.80000/draft", nil).Once()

		s.Require().NoError(s.dispatcher.Dispatch(s.ctx, v))
		s.Equal("10.80000/draft", *v.DOI)
		s.Equal("10.80000/draft", *s.stored(w).Versions[0].DOI)
	})

	s.Run("published without doi publishes a new one", func() {
		w := s.saveWork(works.StatePublished)
		v := &w.Versions[0]
		s.registrar.On("Publish", s.ctx, (*string)(nil), mock.Anything).Return("10.80000/pub", nil).Once()

		s.Require().NoError(s.dispatcher.Dispatch(s.ctx, v))
		s.Equal("10.80000/pub", *s.stored(w).Versions[0].DOI)
	})

	s.Run("draft with doi is a no-op", func() {
		w := s.saveWork(works.StateDraft)
		v := &w.Versions[0]
		v.DOI = ptr("10.80000/existing")

		s.Require().NoError(s.dispatcher.Dispatch(s.ctx, v))
		s.Nil(s.stored(w).Versions[0].DOI)
	})

	s.Run("published with doi updates without persisting", func() {
		w := s.saveWork(works.StatePublished)
		v := &w.Versions[0]
		v.DOI = ptr("10.80000/existing")
		s.registrar.On("Publish", s.ctx, v.DOI, mock.MatchedBy(func(md datacite.Attributes) bool {
			return md["url"] == "https://scholarsphere.example.edu/resources/"+v.UUID
		})).Return("10.80000/existing", nil).Once()

		s.Require().NoError(s.dispatcher.Dispatch(s.ctx, v))
		s.Nil(s.stored(w).Versions[0].DOI)
	})
}

func (s *DispatcherSuite) TestWork() {
	s.Run("draft without doi registers and indexes", func() {
		w := s.saveWork(works.StateDraft)
		s.registrar.On("Register", s.ctx).Return("10.80000/w1", nil).Once()
		s.indexer.On("UpdateWork", s.ctx, w).Return(nil).Once()

		s.Require().NoError(s.dispatcher.Dispatch(s.ctx, w))
		s.Equal("10.80000/w1", *s.stored(w).DOI)
	})

	s.Run("published without doi publishes, persists and indexes once", func() {
		w := s.saveWork(works.StatePublished)
		s.registrar.On("Publish", s.ctx, (*string)(nil), mock.MatchedBy(func(md datacite.Attributes) bool {
			return md["url"] == "https://scholarsphere.example.edu/resources/"+w.UUID
		})).Return("10.80000/w2", nil).Once()
		s.indexer.On("UpdateWork", s.ctx, w).Return(nil).Once()

		s.Require().NoError(s.dispatcher.Dispatch(s.ctx, w))
		s.Equal("10.80000/w2", *s.stored(w).DOI)
	})

	s.Run("draft with doi is a no-op", func() {
		w := s.saveWork(works.StateDraft)
		w.DOI = ptr("10.80000/w3")

		s.Require().NoError(s.dispatcher.Dispatch(s.ctx, w))
		s.Nil(s.stored(w).DOI)
	})

	s.Run("published with doi publishes and indexes", func() {
		w := s.saveWork(works.StatePublished)
		w.DOI = ptr("10.80000/w4")
		s.registrar.On("Publish", s.ctx, w.DOI, mock.Anything).Return("10.80000/w4", nil).Once()
		s.indexer.On("UpdateWork", s.ctx, w).Return(nil).Once()

		s.Require().NoError(s.dispatcher.Dispatch(s.ctx, w))
	})

	s.Run("loads latest version when versions are not attached", func() {
		w := s.saveWork(works.StateDraft)
		w.Versions = nil
		s.registrar.On("Register", s.ctx).Return("10.80000/w5", nil).Once()
		s.indexer.On("UpdateWork", s.ctx, w).Return(nil).Once()

		s.Require().NoError(s.dispatcher.Dispatch(s.ctx, w))
		s.Equal("10.80000/w5", *s.stored(w).DOI)
	})

	s.Run("work resource loads its latest version when none is given", func() {
		w := s.saveWork(works.StateDraft)
		w.Versions = nil
		s.registrar.On("Register", s.ctx).Return("10.80000/w6", nil).Once()
		s.indexer.On("UpdateWork", s.ctx, w).Return(nil).Once()

		s.Require().NoError(s.dispatcher.DispatchResource(s.ctx, WorkResource{Work: w}))
		s.Equal("10.80000/w6", *s.stored(w).DOI)
	})
}

func (s *DispatcherSuite) TestCollection() {
	c := &collections.Collection{
		Title:       "Field season",
		Description: "All samples",
		DepositorID: 1,
		Creators:    []works.Authorship{{DisplayName: "Pat Researcher"}},
	}
	s.Require().NoError(s.store.SaveCollection(s.ctx, c))

	s.registrar.On("Publish", s.ctx, (*string)(nil), mock.Anything).Return("10.80000/c1", nil).Once()
	s.Require().NoError(s.dispatcher.Dispatch(s.ctx, c))
	s.Equal("10.80000/c1", *c.DOI)

	s.registrar.On("Publish", s.ctx, c.DOI, mock.Anything).Return("10.80000/c1", nil).Once()
	s.Require().NoError(s.dispatcher.Dispatch(s.ctx, c))

	found, err := s.store.FindCollection(s.ctx, c.UUID)
	s.Require().NoError(err)
	s.Equal("10.80000/c1", *found.DOI)
}

func (s *DispatcherSuite) TestRegistersAtMostOnce() {
	w := s.saveWork(works.StateDraft)
	v := &w.Versions[0]
	s.registrar.On("Register", s.ctx).Return("10.80000/once", nil).Once()

	s.Require().NoError(s.dispatcher.Dispatch(s.ctx, v))
	s.Require().NoError(s.dispatcher.Dispatch(s.ctx, v))
	s.registrar.AssertNumberOfCalls(s.T(), "Register", 1)
}

func (s *DispatcherSuite) TestPersistsOnInvalidResource() {
	w := s.saveWork(works.StatePublished)
	s.Require().NoError(s.store.ModifyVersion(w.Versions[0].ID, func(v *works.WorkVersion) {
		v.Description = ""
	}))
	w = s.stored(w)
	s.Require().Error(w.Versions[0].Validate())

	s.registrar.On("Publish", s.ctx, (*string)(nil), mock.Anything).Return("10.80000/invalid", nil).Once()
	s.Require().NoError(s.dispatcher.Dispatch(s.ctx, &w.Versions[0]))
	s.Equal("10.80000/invalid", *s.stored(w).Versions[0].DOI)
}

func (s *DispatcherSuite) TestErrors() {
	s.Run("unsupported resource", func() {
		s.ErrorIs(s.dispatcher.Dispatch(s.ctx, "work-1"), ErrInvalidResource)
		s.ErrorIs(s.dispatcher.Dispatch(s.ctx, (*works.Work)(nil)), ErrInvalidResource)
		s.ErrorIs(s.dispatcher.DispatchResource(s.ctx, nil), ErrInvalidResource)
		s.ErrorIs(s.dispatcher.DispatchResource(s.ctx, WorkResource{}), ErrInvalidResource)
		s.ErrorIs(s.dispatcher.DispatchResource(s.ctx, VersionResource{}), ErrInvalidResource)
		s.ErrorIs(s.dispatcher.DispatchResource(s.ctx, CollectionResource{}), ErrInvalidResource)
	})

	s.Run("work resource without latest version or stored versions", func() {
		err := s.dispatcher.DispatchResource(s.ctx, WorkResource{Work: &works.Work{}})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("metadata failure persists nothing", func() {
		c := &collections.Collection{Title: "No creators", Description: "d", DepositorID: 1}
		s.Require().NoError(s.store.SaveCollection(s.ctx, c))

		err := s.dispatcher.Dispatch(s.ctx, c)
		var verr *datacite.ValidationError
		s.Require().ErrorAs(err, &verr)
		s.Contains(verr.Missing, "creators")
		s.Nil(c.DOI)
	})

	s.Run("registrar failure propagates", func() {
		w := s.saveWork(works.StateDraft)
		boom := &datacite.ClientError{StatusCode: 503, Body: "unavailable"}
		s.registrar.On("Register", s.ctx).Return("", boom).Once()

		err := s.dispatcher.Dispatch(s.ctx, &w.Versions[0])
		s.ErrorIs(err, boom)
		s.Nil(s.stored(w).Versions[0].DOI)
	})

	s.Run("index failure is returned", func() {
		w := s.saveWork(works.StateDraft)
		s.registrar.On("Register", s.ctx).Return("10.80000/idx", nil).Once()
		s.indexer.On("UpdateWork", s.ctx, w).Return(errors.New("redis down")).Once()

		s.Error(s.dispatcher.Dispatch(s.ctx, w))
		s.Equal("10.80000/idx", *s.stored(w).DOI)
	})
}
