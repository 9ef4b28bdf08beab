// Package doi decides, per resource, whether to register a new DOI or publish
// an existing one, and records the result on the resource.
package doi

import (
	"context"
	"fmt"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/works"
	"scholarsphere/internal/infra/datacite"
	"scholarsphere/internal/platform/metrics"

	"go.uber.org/zap"
)

// Store writes the doi column alone, skipping model validation.
type Store interface {
	LatestVersion(ctx context.Context, workID uint) (*works.WorkVersion, error)
	FindWorkByID(ctx context.Context, id uint) (*works.Work, error)
	SetVersionDOI(ctx context.Context, id uint, doi string) error
	SetWorkDOI(ctx context.Context, id uint, doi string) error
	SetCollectionDOI(ctx context.Context, id uint, doi string) error
}

// Registrar is the external DOI service.
type Registrar interface {
	Register(ctx context.Context) (string, datacite.Attributes, error)
	Publish(ctx context.Context, doi *string, md datacite.Attributes) (string, datacite.Attributes, error)
}

type MetadataBuilder interface {
	WorkVersion(v *works.WorkVersion, workType, publicIdentifier string) (datacite.Attributes, error)
	Collection(c *collections.Collection, publicIdentifier string) (datacite.Attributes, error)
}

type Indexer interface {
	UpdateWork(ctx context.Context, w *works.Work) error
}

const (
	actionRegister = "register"
	actionPublish  = "publish"
	actionNoop     = "noop"
)

type Dispatcher struct {
	store   Store
	client  Registrar
	mapper  MetadataBuilder
	indexer Indexer
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type Option func(d *Dispatcher)

func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(st Store, client Registrar, mapper MetadataBuilder, indexer Indexer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   st,
		client:  client,
		mapper:  mapper,
		indexer: indexer,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch accepts a Resource or a *works.WorkVersion, *works.Work or
// *collections.Collection and runs it through DispatchResource.
func (d *Dispatcher) Dispatch(ctx context.Context, target any) error {
	r, err := d.resolve(ctx, target)
	if err != nil {
		return err
	}
	return d.DispatchResource(ctx, r)
}

func (d *Dispatcher) resolve(ctx context.Context, target any) (Resource, error) {
	switch t := target.(type) {
	case Resource:
		return t, nil
	case *works.WorkVersion:
		if t == nil {
			break
		}
		w, err := d.store.FindWorkByID(ctx, t.WorkID)
		if err != nil {
			return nil, fmt.Errorf("load work of version %s: %w", t.UUID, err)
		}
		return VersionResource{Version: t, WorkType: w.WorkType}, nil
	case *works.Work:
		if t == nil {
			break
		}
		latest, err := d.latestVersion(ctx, t)
		if err != nil {
			return nil, err
		}
		return WorkResource{Work: t, Latest: latest}, nil
	case *collections.Collection:
		if t == nil {
			break
		}
		return CollectionResource{Collection: t}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidResource, target)
}

func (d *Dispatcher) latestVersion(ctx context.Context, w *works.Work) (*works.WorkVersion, error) {
	if latest := w.LatestVersion(); latest != nil {
		return latest, nil
	}
	v, err := d.store.LatestVersion(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("latest version of work %s: %w", w.UUID, err)
	}
	return v, nil
}

// DispatchResource applies the register/publish decision to r. Only the doi
// column is written, so a resource that fails its own validation still gets
// its identifier. Mapper and registrar errors abort before anything is
// persisted.
func (d *Dispatcher) DispatchResource(ctx context.Context, r Resource) error {
	switch t := r.(type) {
	case VersionResource:
		if t.Version == nil {
			return fmt.Errorf("%w: version resource without a version", ErrInvalidResource)
		}
	case WorkResource:
		if t.Work == nil {
			return fmt.Errorf("%w: work resource without a work", ErrInvalidResource)
		}
		if t.Latest == nil {
			latest, err := d.latestVersion(ctx, t.Work)
			if err != nil {
				return err
			}
			t.Latest = latest
			r = t
		}
	case CollectionResource:
		if t.Collection == nil {
			return fmt.Errorf("%w: collection resource without a collection", ErrInvalidResource)
		}
	default:
		return fmt.Errorf("%w: %T", ErrInvalidResource, r)
	}

	existing := r.Identifier()
	action := actionNoop
	var minted string

	switch {
	case existing == nil && r.Draft():
		doi, _, err := d.client.Register(ctx)
		if err != nil {
			return fmt.Errorf("register doi: %w", err)
		}
		action, minted = actionRegister, doi

	case r.Published():
		md, err := r.metadata(d.mapper)
		if err != nil {
			return fmt.Errorf("build %s metadata: %w", r.Kind(), err)
		}
		doi, _, err := d.client.Publish(ctx, existing, md)
		if err != nil {
			return fmt.Errorf("publish doi: %w", err)
		}
		action, minted = actionPublish, doi
	}

	if action != actionNoop && (existing == nil || *existing != minted) {
		if err := r.setIdentifier(ctx, d.store, minted); err != nil {
			return fmt.Errorf("persist doi %s: %w", minted, err)
		}
	}

	if wr, ok := r.(WorkResource); ok && action != actionNoop {
		if err := d.indexer.UpdateWork(ctx, wr.Work); err != nil {
			return fmt.Errorf("index work %s: %w", wr.Work.UUID, err)
		}
	}

	d.metrics.IncDOIDispatch(string(r.Kind()), action)
	d.logger.Info("doi dispatched",
		zap.String("kind", string(r.Kind())),
		zap.String("action", action),
		zap.String("doi", minted),
	)
	return nil
}
