package doi

import (
	"context"
	"errors"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/works"
	"scholarsphere/internal/infra/datacite"
)

// ErrInvalidResource is returned for anything that cannot carry a DOI.
var ErrInvalidResource = errors.New("resource cannot carry a doi")

type Kind string

const (
	KindVersion    Kind = "WorkVersion"
	KindWork       Kind = "Work"
	KindCollection Kind = "Collection"
)

// Resource is a DOI-bearing record. The set of implementations is closed:
// VersionResource, WorkResource and CollectionResource.
type Resource interface {
	Kind() Kind
	Draft() bool
	Published() bool
	Identifier() *string

	setIdentifier(ctx context.Context, st Store, doi string) error
	metadata(m MetadataBuilder) (datacite.Attributes, error)
}

// VersionResource mints against a single version.
type VersionResource struct {
	Version *works.WorkVersion
	// WorkType of the owning work, used for the DataCite resource type.
	WorkType string
}

func (r VersionResource) Kind() Kind          { return KindVersion }
func (r VersionResource) Draft() bool         { return r.Version.Draft() }
func (r VersionResource) Published() bool     { return r.Version.Published() }
func (r VersionResource) Identifier() *string { return r.Version.DOI }

func (r VersionResource) setIdentifier(ctx context.Context, st Store, doi string) error {
	if err := st.SetVersionDOI(ctx, r.Version.ID, doi); err != nil {
		return err
	}
	r.Version.DOI = &doi
	return nil
}

func (r VersionResource) metadata(m MetadataBuilder) (datacite.Attributes, error) {
	return m.WorkVersion(r.Version, r.WorkType, r.Version.UUID)
}

// WorkResource mints against a work. Its lifecycle state is that of Latest.
type WorkResource struct {
	Work   *works.Work
	Latest *works.WorkVersion
}

func (r WorkResource) Kind() Kind          { return KindWork }
func (r WorkResource) Draft() bool         { return r.Latest.Draft() }
func (r WorkResource) Published() bool     { return r.Latest.Published() }
func (r WorkResource) Identifier() *string { return r.Work.DOI }

func (r WorkResource) setIdentifier(ctx context.Context, st Store, doi string) error {
	if err := st.SetWorkDOI(ctx, r.Work.ID, doi); err != nil {
		return err
	}
	r.Work.DOI = &doi
	return nil
}

func (r WorkResource) metadata(m MetadataBuilder) (datacite.Attributes, error) {
	return m.WorkVersion(r.Latest, r.Work.WorkType, r.Work.UUID)
}

// CollectionResource has no draft state; it is always published.
type CollectionResource struct {
	Collection *collections.Collection
}

func (r CollectionResource) Kind() Kind          { return KindCollection }
func (r CollectionResource) Draft() bool         { return false }
func (r CollectionResource) Published() bool     { return true }
func (r CollectionResource) Identifier() *string { return r.Collection.DOI }

func (r CollectionResource) setIdentifier(ctx context.Context, st Store, doi string) error {
	if err := st.SetCollectionDOI(ctx, r.Collection.ID, doi); err != nil {
		return err
	}
	r.Collection.DOI = &doi
	return nil
}

func (r CollectionResource) metadata(m MetadataBuilder) (datacite.Attributes, error) {
	return m.Collection(r.Collection, r.Collection.UUID)
}
