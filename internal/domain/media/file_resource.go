package media

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileResource is an uploaded payload. It is never mutated after creation and
// may be shared by several work versions.
type FileResource struct {
	ID           string  `gorm:"type:uuid;primaryKey" json:"id"`
	StorageKey   string  `gorm:"not null" json:"storage_key"`
	Filename     string  `gorm:"not null" json:"filename"`
	ContentType  string  `json:"content_type,omitempty"`
	Size         int64   `json:"size"`
	ThumbnailKey *string `json:"thumbnail_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f *FileResource) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
