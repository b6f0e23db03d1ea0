package models

import (
	"time"
)

// Player is a local snapshot of user data needed to show opponents.
// Populated by the player sync worker from the profile sync service.
type Player struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID    string    `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username          string    `gorm:"index;not null" json:"username"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
