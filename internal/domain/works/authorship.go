package works

import "time"

const (
	ResourceWorkVersion = "WorkVersion"
	ResourceCollection  = "Collection"
)

// Authorship is a positional creator credit owned by a WorkVersion or a
// Collection. Rows are copied, never shared, between owners.
type Authorship struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	ResourceType string `gorm:"not null;index:idx_authorships_resource,priority:1" json:"-"`
	ResourceID   uint   `gorm:"not null;index:idx_authorships_resource,priority:2" json:"-"`
	ActorID      *uint  `gorm:"index" json:"actor_id,omitempty"`

	DisplayName string `gorm:"not null" json:"display_name"`
	GivenName   string `json:"given_name,omitempty"`
	Surname     string `json:"surname,omitempty"`
	Email       string `json:"email,omitempty"`
	Position    int    `gorm:"not null;default:0" json:"position"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dup returns a copy detached from its owner, ready to be attached elsewhere.
func (a Authorship) Dup() Authorship {
	a.ID = 0
	a.ResourceType = ""
	a.ResourceID = 0
	a.CreatedAt = time.Time{}
	a.UpdatedAt = time.Time{}
	return a
}
