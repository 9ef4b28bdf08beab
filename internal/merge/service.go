// Package merge collapses the works of a collection into a single new work.
package merge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/works"
	"scholarsphere/internal/platform/metrics"
	"scholarsphere/internal/platform/sentinel"
	"scholarsphere/internal/store"

	"go.uber.org/zap"
)

type Store interface {
	FindCollection(ctx context.Context, uuid string) (*collections.Collection, error)
	RunInTx(ctx context.Context, fn func(tx store.Tx) error) error
}

// Indexer is the search index hook.
type Indexer interface {
	UpdateWork(ctx context.Context, w *works.Work) error
	DeleteWork(ctx context.Context, uuid string) error
}

type DOIDispatcher interface {
	Dispatch(ctx context.Context, target any) error
}

// ErrDOIAfterCommit wraps a DOI failure that happened after the merge itself
// was committed.
var ErrDOIAfterCommit = errors.New("merge committed but doi dispatch failed")

type Service struct {
	store      Store
	indexer    Indexer
	dispatcher DOIDispatcher
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithDispatcher(d DOIDispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

func New(st Store, indexer Indexer, opts ...Option) *Service {
	s := &Service{store: st, indexer: indexer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Merge validates the collection and, if nothing blocks it, replaces its
// works with one new draft work in a single transaction.
//
// Violations found before the transaction come back as an unsuccessful
// Outcome with a nil error. Anything that fails once writing has started is
// returned as an error and leaves the store untouched. When opts.MintDOI is
// set and the DOI step fails after commit, both the successful Outcome and an
// error wrapping ErrDOIAfterCommit are returned.
func (s *Service) Merge(ctx context.Context, collectionUUID string, opts Options) (*Outcome, error) {
	log := s.logger.With(zap.String("collection", collectionUUID), zap.Bool("force", opts.Force))

	c, err := s.store.FindCollection(ctx, collectionUUID)
	if err != nil {
		s.metrics.IncMerge("failed")
		return nil, fmt.Errorf("load collection %s: %w", collectionUUID, err)
	}

	if errs := Validate(c, opts); len(errs) > 0 {
		log.Info("merge rejected", zap.Strings("errors", errs))
		s.metrics.IncMerge("rejected")
		return failure(errs), nil
	}

	if errs := stagePlan(c).errors(); len(errs) > 0 {
		log.Info("merged work would be invalid", zap.Strings("errors", errs))
		s.metrics.IncMerge("rejected")
		return failure(errs), nil
	}

	var (
		merged *works.Work
		staged string
	)
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		w, err := s.apply(ctx, tx, c, opts)
		if err != nil {
			return err
		}
		staged = w.UUID
		if err := s.indexer.UpdateWork(ctx, w); err != nil {
			return fmt.Errorf("index merged work: %w", err)
		}
		merged = w
		return nil
	})
	if err != nil {
		s.unindex(ctx, log, staged)
		log.Error("merge failed", zap.Error(err))
		s.metrics.IncMerge("failed")
		return nil, err
	}

	for _, w := range c.Works {
		s.unindex(ctx, log, w.UUID)
	}
	s.metrics.IncMerge("success")
	log.Info("collection merged", zap.String("work", merged.UUID), zap.Int("works", len(c.Works)))

	out := success(merged)
	if opts.MintDOI && s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, merged); err != nil {
			log.Error("doi dispatch after merge failed", zap.String("work", merged.UUID), zap.Error(err))
			return out, fmt.Errorf("%w: %w", ErrDOIAfterCommit, err)
		}
	}
	return out, nil
}

// apply performs every write of the merge. It re-reads the collection under
// lock and stages the new work from that copy; any difference from the
// validated read is a conflict. It returns the new work with its moved files
// and copied creators attached.
func (s *Service) apply(ctx context.Context, tx store.Tx, c *collections.Collection, opts Options) (*works.Work, error) {
	locked, err := tx.LockCollection(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(rowIDs(locked), rowIDs(c)) {
		return nil, fmt.Errorf("collection %d changed during merge: %w", c.ID, sentinel.ErrConflict)
	}
	if errs := Validate(locked, opts); len(errs) > 0 {
		return nil, fmt.Errorf("collection %d changed during merge: %s: %w", c.ID, strings.Join(errs, "; "), sentinel.ErrConflict)
	}
	p := stagePlan(locked)
	if errs := p.errors(); len(errs) > 0 {
		return nil, fmt.Errorf("collection %d changed during merge: %s: %w", c.ID, strings.Join(errs, "; "), sentinel.ErrConflict)
	}

	w := p.work
	if err := tx.CreateWork(ctx, w); err != nil {
		return nil, err
	}
	version := &w.Versions[0]

	for _, src := range p.sources {
		if err := tx.MoveFileMemberships(ctx, src.ID, version.ID); err != nil {
			return nil, err
		}
	}
	for _, m := range p.files {
		m.WorkVersionID = version.ID
		version.FileVersionMemberships = append(version.FileVersionMemberships, m)
	}

	creators := slices.Clone(p.creators)
	for i := range creators {
		creators[i].ResourceType = works.ResourceWorkVersion
		creators[i].ResourceID = version.ID
	}
	if err := tx.CreateAuthorships(ctx, creators); err != nil {
		return nil, err
	}
	version.Creators = creators

	for _, old := range locked.Works {
		if err := tx.DeleteWork(ctx, old.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.DeleteCollection(ctx, c.ID); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) unindex(ctx context.Context, log *zap.Logger, uuid string) {
	if uuid == "" {
		return
	}
	if err := s.indexer.DeleteWork(ctx, uuid); err != nil {
		log.Warn("remove work from index", zap.String("work", uuid), zap.Error(err))
	}
}
