package works

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type State string

const (
	StateDraft     State = "draft"
	StatePublished State = "published"
)

// Loose EDTF check: a four digit year, optionally followed by more precision.
var publishedDatePattern = regexp.MustCompile(`^\d{4}([-/~?].*)?$`)

// WorkVersion is a metadata snapshot of a Work. Once published its core
// metadata is not edited in place; edits go into a new draft version.
type WorkVersion struct {
	ID            uint   `gorm:"primaryKey" json:"-"`
	UUID          string `gorm:"type:uuid;uniqueIndex;not null" json:"id"`
	WorkID        uint   `gorm:"index;not null" json:"-"`
	VersionNumber int    `gorm:"not null;default:1" json:"version_number"`
	State         State  `gorm:"column:aasm_state;type:text;not null;default:'draft'" json:"state"`

	Title              string `gorm:"not null" json:"title"`
	Subtitle           string `json:"subtitle,omitempty"`
	Description        string `json:"description,omitempty"`
	Rights             string `json:"rights,omitempty"`
	PublisherStatement string `json:"publisher_statement,omitempty"`
	VersionName        string `json:"version_name,omitempty"`
	PublishedDate      string `json:"published_date,omitempty"`

	Keyword     pq.StringArray `gorm:"type:text[]" json:"keyword"`
	Contributor pq.StringArray `gorm:"type:text[]" json:"contributor"`
	Publisher   pq.StringArray `gorm:"type:text[]" json:"publisher"`
	Subject     pq.StringArray `gorm:"type:text[]" json:"subject"`
	Language    pq.StringArray `gorm:"type:text[]" json:"language"`
	Identifier  pq.StringArray `gorm:"type:text[]" json:"identifier"`
	BasedNear   pq.StringArray `gorm:"type:text[]" json:"based_near"`
	RelatedURL  pq.StringArray `gorm:"column:related_url;type:text[]" json:"related_url"`
	Source      pq.StringArray `gorm:"type:text[]" json:"source"`

	DOI         *string    `json:"doi,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	FileVersionMemberships []FileVersionMembership `json:"files,omitempty"`
	Creators               []Authorship            `gorm:"polymorphic:Resource;polymorphicValue:WorkVersion" json:"creators,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (v *WorkVersion) BeforeCreate(tx *gorm.DB) error {
	if v.UUID == "" {
		v.UUID = uuid.NewString()
	}
	return nil
}

// BeforeSave checks column-level rules only. Association rules (creators,
// files) need the associations loaded and are enforced by Validate.
func (v *WorkVersion) BeforeSave(tx *gorm.DB) error {
	if errs := v.attributeErrors(); len(errs) > 0 {
		return &ValidationError{Record: "WorkVersion", Messages: errs}
	}
	return nil
}

func (v *WorkVersion) Draft() bool     { return v.State == StateDraft }
func (v *WorkVersion) Published() bool { return v.State == StatePublished }

func (v *WorkVersion) attributeErrors() []string {
	var errs []string
	if v.Title == "" {
		errs = append(errs, "Title can't be blank")
	}
	if !v.Published() {
		return errs
	}
	if v.Description == "" {
		errs = append(errs, "Description can't be blank")
	}
	switch {
	case v.PublishedDate == "":
		errs = append(errs, "Published date can't be blank")
	case !publishedDatePattern.MatchString(v.PublishedDate):
		errs = append(errs, "Published date is not a valid date in EDTF format")
	}
	if v.Rights == "" {
		errs = append(errs, "Rights can't be blank")
	}
	return errs
}

// Errors lists every validation message for the version in its current state.
func (v *WorkVersion) Errors() []string {
	errs := v.attributeErrors()

	seen := make(map[string]bool, len(v.FileVersionMemberships))
	for _, m := range v.FileVersionMemberships {
		if seen[m.Title] {
			errs = append(errs, "File "+m.Title+" has already been taken")
		}
		seen[m.Title] = true
	}

	if v.Published() {
		if len(v.Creators) == 0 {
			errs = append(errs, "Creators can't be blank")
		}
		if len(v.FileVersionMemberships) == 0 {
			errs = append(errs, "Files can't be blank")
		}
	}
	return errs
}

func (v *WorkVersion) Validate() error {
	if errs := v.Errors(); len(errs) > 0 {
		return &ValidationError{Record: "WorkVersion", Messages: errs}
	}
	return nil
}

// PublishErrors reports what would prevent v from being published. v itself
// is left untouched.
func PublishErrors(v WorkVersion) []string {
	v.State = StatePublished
	return v.Errors()
}

func (v *WorkVersion) FileResourceIDs() []string {
	ids := make([]string, 0, len(v.FileVersionMemberships))
	for _, m := range v.FileVersionMemberships {
		ids = append(ids, m.FileResourceID)
	}
	return ids
}
