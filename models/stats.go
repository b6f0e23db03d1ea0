package models

import (
	"time"

	"gorm.io/gorm"
)

// Stats holds per-user running totals. Columns only ever grow.
type Stats struct {
	UserID string `gorm:"primaryKey" json:"user_id"` // external user id

	GamesPlayed int64 `json:"games_played" gorm:"default:0"`
	GamesWon    int64 `json:"games_won" gorm:"default:0"`
	TotalShots  int64 `json:"total_shots" gorm:"default:0"`
	Hits        int64 `json:"hits" gorm:"default:0"`
	ShipsSunk   int64 `json:"ships_sunk" gorm:"default:0"`

	// Derived, not stored
	Accuracy float64 `json:"accuracy" gorm:"-"`

	Timestamps
}

// StatsDelta is an additive update applied to a Stats row.
type StatsDelta struct {
	GamesPlayed int64
	GamesWon    int64
	TotalShots  int64
	Hits        int64
	ShipsSunk   int64
}

// IsZero reports whether applying d would change nothing.
func (d StatsDelta) IsZero() bool {
	return d == StatsDelta{}
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
