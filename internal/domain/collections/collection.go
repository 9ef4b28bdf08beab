package collections

import (
	"time"

	"scholarsphere/internal/domain/works"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Collection groups Works and carries its own descriptive metadata.
type Collection struct {
	ID   uint   `gorm:"primaryKey" json:"-"`
	UUID string `gorm:"type:uuid;uniqueIndex;not null" json:"id"`

	Title         string `gorm:"not null" json:"title"`
	Subtitle      string `json:"subtitle,omitempty"`
	Description   string `json:"description,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`

	Keyword     pq.StringArray `gorm:"type:text[]" json:"keyword"`
	Contributor pq.StringArray `gorm:"type:text[]" json:"contributor"`
	Publisher   pq.StringArray `gorm:"type:text[]" json:"publisher"`
	Subject     pq.StringArray `gorm:"type:text[]" json:"subject"`
	Language    pq.StringArray `gorm:"type:text[]" json:"language"`
	Identifier  pq.StringArray `gorm:"type:text[]" json:"identifier"`
	BasedNear   pq.StringArray `gorm:"type:text[]" json:"based_near"`
	RelatedURL  pq.StringArray `gorm:"column:related_url;type:text[]" json:"related_url"`
	Source      pq.StringArray `gorm:"type:text[]" json:"source"`

	DOI *string `json:"doi,omitempty"`

	DepositorID uint `gorm:"index;not null" json:"-"`

	DiscoverUsers  pq.StringArray `gorm:"type:text[]" json:"discover_users"`
	DiscoverGroups pq.StringArray `gorm:"type:text[]" json:"discover_groups"`
	EditUsers      pq.StringArray `gorm:"type:text[]" json:"edit_users"`
	EditGroups     pq.StringArray `gorm:"type:text[]" json:"edit_groups"`

	Works    []works.Work       `gorm:"many2many:collection_works;" json:"works,omitempty"`
	Creators []works.Authorship `gorm:"polymorphic:Resource;polymorphicValue:Collection" json:"creators,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Collection) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	return nil
}

func (c *Collection) BeforeSave(tx *gorm.DB) error {
	return c.Validate()
}

func (c *Collection) Errors() []string {
	var errs []string
	if c.Title == "" {
		errs = append(errs, "Title can't be blank")
	}
	if c.Description == "" {
		errs = append(errs, "Description can't be blank")
	}
	return errs
}

func (c *Collection) Validate() error {
	if errs := c.Errors(); len(errs) > 0 {
		return &works.ValidationError{Record: "Collection", Messages: errs}
	}
	return nil
}

// WorkIDs returns the member work ids in load order.
func (c *Collection) WorkIDs() []uint {
	ids := make([]uint, 0, len(c.Works))
	for _, w := range c.Works {
		ids = append(ids, w.ID)
	}
	return ids
}
