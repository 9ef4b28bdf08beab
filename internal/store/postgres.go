package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/media"
	"scholarsphere/internal/domain/works"
	"scholarsphere/internal/platform/sentinel"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func orderVersions(db *gorm.DB) *gorm.DB {
	return db.Order("version_number ASC")
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func orderCreators(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, sentinel.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func workPreloads(db *gorm.DB, prefix string) *gorm.DB {
	return db.
		Preload(prefix+"Versions", orderVersions).
		Preload(prefix+"Versions.FileVersionMemberships", orderByID).
		Preload(prefix+"Versions.FileVersionMemberships.FileResource").
		Preload(prefix+"Versions.Creators", orderCreators)
}

// FindCollection loads a collection with its works ordered by id, and every
// work's versions, files and creators.
func (s *Postgres) FindCollection(ctx context.Context, uuid string) (*collections.Collection, error) {
	var c collections.Collection
	q := s.db.WithContext(ctx).
		Preload("Creators", orderCreators).
		Preload("Works", func(db *gorm.DB) *gorm.DB {
			return db.Order("works.id ASC")
		})
	err := workPreloads(q, "Works.").First(&c, "uuid = ?", uuid).Error
	if err != nil {
		return nil, translate(err, "find collection")
	}
	return &c, nil
}

func (s *Postgres) FindWork(ctx context.Context, uuid string) (*works.Work, error) {
	var w works.Work
	if err := workPreloads(s.db.WithContext(ctx), "").First(&w, "uuid = ?", uuid).Error; err != nil {
		return nil, translate(err, "find work")
	}
	return &w, nil
}

func (s *Postgres) FindWorkByID(ctx context.Context, id uint) (*works.Work, error) {
	var w works.Work
	if err := workPreloads(s.db.WithContext(ctx), "").First(&w, id).Error; err != nil {
		return nil, translate(err, "find work")
	}
	return &w, nil
}

func (s *Postgres) FindVersion(ctx context.Context, uuid string) (*works.WorkVersion, error) {
	var v works.WorkVersion
	err := s.db.WithContext(ctx).
		Preload("FileVersionMemberships", orderByID).
		Preload("FileVersionMemberships.FileResource").
		Preload("Creators", orderCreators).
		First(&v, "uuid = ?", uuid).Error
	if err != nil {
		return nil, translate(err, "find version")
	}
	return &v, nil
}

func (s *Postgres) LatestVersion(ctx context.Context, workID uint) (*works.WorkVersion, error) {
	var v works.WorkVersion
	err := s.db.WithContext(ctx).
		Preload("FileVersionMemberships", orderByID).
		Preload("FileVersionMemberships.FileResource").
		Preload("Creators", orderCreators).
		Where("work_id = ?", workID).
		Order("version_number DESC").
		First(&v).Error
	if err != nil {
		return nil, translate(err, "latest version")
	}
	return &v, nil
}

// SaveWork inserts a work with its nested versions, memberships and creators.
func (s *Postgres) SaveWork(ctx context.Context, w *works.Work) error {
	return translate(s.db.WithContext(ctx).Create(w).Error, "save work")
}

// SaveCollection inserts a collection, its creators and the join rows for
// its works, which must already exist.
func (s *Postgres) SaveCollection(ctx context.Context, c *collections.Collection) error {
	err := s.db.WithContext(ctx).Omit("Works.*").Create(c).Error
	return translate(err, "save collection")
}

// The DOI setters write one column and skip model hooks, so an identifier can
// be stored on a record that fails unrelated validations.

func (s *Postgres) SetVersionDOI(ctx context.Context, id uint, doi string) error {
	return s.setDOI(ctx, &works.WorkVersion{}, id, doi)
}

func (s *Postgres) SetWorkDOI(ctx context.Context, id uint, doi string) error {
	return s.setDOI(ctx, &works.Work{}, id, doi)
}

func (s *Postgres) SetCollectionDOI(ctx context.Context, id uint, doi string) error {
	return s.setDOI(ctx, &collections.Collection{}, id, doi)
}

func (s *Postgres) setDOI(ctx context.Context, model any, id uint, doi string) error {
	res := s.db.WithContext(ctx).Model(model).Where("id = ?", id).UpdateColumn("doi", doi)
	if res.Error != nil {
		return translate(res.Error, "set doi")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set doi: %w", sentinel.ErrNotFound)
	}
	return nil
}

// PublishVersion flips the state column. Callers validate first.
func (s *Postgres) PublishVersion(ctx context.Context, id uint, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&works.WorkVersion{}).
		Where("id = ? AND aasm_state = ?", id, works.StateDraft).
		UpdateColumns(map[string]interface{}{
			"aasm_state":   works.StatePublished,
			"published_at": at,
		})
	if res.Error != nil {
		return translate(res.Error, "publish version")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("publish version: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// AddFile stores a new FileResource and attaches it to a version. A title
// already used on the version yields sentinel.ErrConflict.
func (s *Postgres) AddFile(ctx context.Context, versionID uint, file *media.FileResource, title string) (*works.FileVersionMembership, error) {
	m := works.FileVersionMembership{WorkVersionID: versionID, Title: title}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		m.FileResourceID = file.ID
		return tx.Create(&m).Error
	})
	if err != nil {
		return nil, translate(err, "add file")
	}
	m.FileResource = file
	return &m, nil
}

func (s *Postgres) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&postgresTx{db: tx})
	})
}

type postgresTx struct {
	db *gorm.DB
}

func (t *postgresTx) LockCollection(ctx context.Context, id uint) (*collections.Collection, error) {
	db := t.db.WithContext(ctx)
	forUpdate := clause.Locking{Strength: "UPDATE"}

	var locked []uint
	if err := db.Model(&collections.Collection{}).Clauses(forUpdate).
		Where("id = ?", id).Pluck("id", &locked).Error; err != nil {
		return nil, translate(err, "lock collection")
	}
	if len(locked) == 0 {
		return nil, fmt.Errorf("lock collection %d: %w", id, sentinel.ErrNotFound)
	}

	var workIDs []uint
	if err := db.Table("collection_works").
		Where("collection_id = ?", id).
		Order("work_id ASC").
		Pluck("work_id", &workIDs).Error; err != nil {
		return nil, translate(err, "lock collection")
	}
	if len(workIDs) > 0 {
		var lockedWorks []uint
		if err := db.Model(&works.Work{}).Clauses(forUpdate).
			Where("id IN ?", workIDs).Order("id ASC").Pluck("id", &lockedWorks).Error; err != nil {
			return nil, translate(err, "lock collection works")
		}
		var versionIDs []uint
		if err := db.Model(&works.WorkVersion{}).Clauses(forUpdate).
			Where("work_id IN ?", workIDs).Order("id ASC").Pluck("id", &versionIDs).Error; err != nil {
			return nil, translate(err, "lock collection versions")
		}
		if len(versionIDs) > 0 {
			var memberships []uint
			if err := db.Model(&works.FileVersionMembership{}).Clauses(forUpdate).
				Where("work_version_id IN ?", versionIDs).Order("id ASC").Pluck("id", &memberships).Error; err != nil {
				return nil, translate(err, "lock collection files")
			}
		}
	}

	// Rows read after the locks are the ones the merge will write.
	var c collections.Collection
	q := db.
		Preload("Creators", orderCreators).
		Preload("Works", func(db *gorm.DB) *gorm.DB {
			return db.Order("works.id ASC")
		})
	if err := workPreloads(q, "Works.").First(&c, id).Error; err != nil {
		return nil, translate(err, "lock collection")
	}
	return &c, nil
}

func (t *postgresTx) CreateWork(ctx context.Context, w *works.Work) error {
	return translate(t.db.WithContext(ctx).Create(w).Error, "create work")
}

func (t *postgresTx) MoveFileMemberships(ctx context.Context, fromVersionID, toVersionID uint) error {
	err := t.db.WithContext(ctx).Model(&works.FileVersionMembership{}).
		Where("work_version_id = ?", fromVersionID).
		Update("work_version_id", toVersionID).Error
	return translate(err, "move file memberships")
}

func (t *postgresTx) CreateAuthorships(ctx context.Context, rows []works.Authorship) error {
	if len(rows) == 0 {
		return nil
	}
	return translate(t.db.WithContext(ctx).Create(&rows).Error, "create authorships")
}

func (t *postgresTx) DeleteWork(ctx context.Context, id uint) error {
	db := t.db.WithContext(ctx)

	var versionIDs []uint
	if err := db.Model(&works.WorkVersion{}).Where("work_id = ?", id).Pluck("id", &versionIDs).Error; err != nil {
		return translate(err, "delete work")
	}
	if len(versionIDs) > 0 {
		if err := db.Where("resource_type = ? AND resource_id IN ?", works.ResourceWorkVersion, versionIDs).
			Delete(&works.Authorship{}).Error; err != nil {
			return translate(err, "delete work creators")
		}
		if err := db.Where("work_version_id IN ?", versionIDs).
			Delete(&works.FileVersionMembership{}).Error; err != nil {
			return translate(err, "delete work files")
		}
		if err := db.Where("work_id = ?", id).Delete(&works.WorkVersion{}).Error; err != nil {
			return translate(err, "delete work versions")
		}
	}
	if err := db.Exec("DELETE FROM collection_works WHERE work_id = ?", id).Error; err != nil {
		return translate(err, "delete work memberships")
	}

	res := db.Delete(&works.Work{}, id)
	if res.Error != nil {
		return translate(res.Error, "delete work")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete work %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (t *postgresTx) DeleteCollection(ctx context.Context, id uint) error {
	db := t.db.WithContext(ctx)

	if err := db.Where("resource_type = ? AND resource_id = ?", works.ResourceCollection, id).
		Delete(&works.Authorship{}).Error; err != nil {
		return translate(err, "delete collection creators")
	}
	if err := db.Exec("DELETE FROM collection_works WHERE collection_id = ?", id).Error; err != nil {
		return translate(err, "delete collection memberships")
	}

	res := db.Delete(&collections.Collection{}, id)
	if res.Error != nil {
		return translate(res.Error, "delete collection")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete collection %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
