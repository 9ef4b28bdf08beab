package works

import (
	"time"

	"scholarsphere/internal/domain/media"
)

// FileVersionMembership attaches a FileResource to a WorkVersion under a
// display title. Titles are unique per version.
type FileVersionMembership struct {
	ID             uint                `gorm:"primaryKey" json:"-"`
	WorkVersionID  uint                `gorm:"not null;uniqueIndex:idx_fvm_version_title,priority:1" json:"-"`
	FileResourceID string              `gorm:"type:uuid;not null;index" json:"file_resource_id"`
	FileResource   *media.FileResource `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"file_resource,omitempty"`
	Title          string              `gorm:"not null;uniqueIndex:idx_fvm_version_title,priority:2" json:"title"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
