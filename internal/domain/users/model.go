package users

import "time"

// Actor is a person who can be credited as a creator or act as a depositor.
// Actors exist independently of login accounts.
type Actor struct {
	ID          uint    `gorm:"primaryKey"`
	GivenName   string  `json:"given_name"`
	Surname     string  `json:"surname"`
	Email       string  `gorm:"index" json:"email,omitempty"`
	PSUID       *string `gorm:"column:psu_id;uniqueIndex:idx_actors_psu_id" json:"psu_id,omitempty"`
	DisplayName string  `json:"display_name"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID       uint     `gorm:"primaryKey"`
	AccessID string   `gorm:"not null;uniqueIndex:idx_users_access_id"`
	Email    string   `gorm:"not null;uniqueIndex:idx_users_email"`
	Admin    bool     `gorm:"not null;default:false"`
	Groups   []string `gorm:"-"`

	ActorID uint
	Actor   *Actor

	CreatedAt time.Time
	UpdatedAt time.Time
}
