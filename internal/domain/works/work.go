package works

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	VisibilityOpen          = "open"
	VisibilityAuthenticated = "authenticated"
	VisibilityRestricted    = "restricted"
)

var Visibilities = []string{VisibilityOpen, VisibilityAuthenticated, VisibilityRestricted}

var WorkTypes = []string{
	"article",
	"audio",
	"book",
	"capstone_project",
	"conference_proceeding",
	"dataset",
	"dissertation",
	"image",
	"journal",
	"map_or_cartographic_material",
	"masters_culminating_experience",
	"masters_thesis",
	"other",
	"part_of_book",
	"poster",
	"presentation",
	"project",
	"report",
	"research_paper",
	"software_or_program_code",
	"thesis",
	"unspecified",
	"video",
}

// Work is the aggregate root for a deposited item. Versions are append-only
// and at most one of them is a draft.
type Work struct {
	ID   uint   `gorm:"primaryKey" json:"-"`
	UUID string `gorm:"type:uuid;uniqueIndex;not null" json:"id"`

	WorkType   string `json:"work_type"`
	Visibility string `gorm:"not null;default:'open'" json:"visibility"`

	DepositorID      uint  `gorm:"index;not null" json:"-"`
	ProxyDepositorID *uint `gorm:"index" json:"-"`

	DOI *string `json:"doi,omitempty"`

	DiscoverUsers  pq.StringArray `gorm:"type:text[]" json:"discover_users"`
	DiscoverGroups pq.StringArray `gorm:"type:text[]" json:"discover_groups"`
	EditUsers      pq.StringArray `gorm:"type:text[]" json:"edit_users"`
	EditGroups     pq.StringArray `gorm:"type:text[]" json:"edit_groups"`

	Versions []WorkVersion `json:"versions,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *Work) BeforeCreate(tx *gorm.DB) error {
	if w.UUID == "" {
		w.UUID = uuid.NewString()
	}
	return nil
}

func (w *Work) BeforeSave(tx *gorm.DB) error {
	return w.Validate()
}

// Errors lists the work-level validation messages.
func (w *Work) Errors() []string {
	var errs []string
	switch {
	case w.WorkType == "":
		errs = append(errs, "Work type can't be blank")
	case !slices.Contains(WorkTypes, w.WorkType):
		errs = append(errs, "Work type is not included in the list")
	}
	if !slices.Contains(Visibilities, w.Visibility) {
		errs = append(errs, "Visibility is not included in the list")
	}
	return errs
}

func (w *Work) Validate() error {
	if errs := w.Errors(); len(errs) > 0 {
		return &ValidationError{Record: "Work", Messages: errs}
	}
	return nil
}

// LatestVersion returns the version with the highest version number, or nil.
func (w *Work) LatestVersion() *WorkVersion {
	var latest *WorkVersion
	for i := range w.Versions {
		if latest == nil || w.Versions[i].VersionNumber > latest.VersionNumber {
			latest = &w.Versions[i]
		}
	}
	return latest
}

func (w *Work) DraftVersion() *WorkVersion {
	for i := range w.Versions {
		if w.Versions[i].Draft() {
			return &w.Versions[i]
		}
	}
	return nil
}

func (w *Work) LatestPublishedVersion() *WorkVersion {
	var latest *WorkVersion
	for i := range w.Versions {
		v := &w.Versions[i]
		if v.Published() && (latest == nil || v.VersionNumber > latest.VersionNumber) {
			latest = v
		}
	}
	return latest
}

func (w *Work) OpenAccess() bool {
	return w.Visibility == VisibilityOpen
}
