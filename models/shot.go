package models

import "time"

// Shot is an append-only record of a fired cell. A shooter fires at a
// given cell at most once per match.
type Shot struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID   string    `gorm:"not null;index;uniqueIndex:idx_shot_cell" json:"match_id"`
	ShooterID string    `gorm:"not null;uniqueIndex:idx_shot_cell" json:"shooter_id"`
	X         int       `gorm:"not null;uniqueIndex:idx_shot_cell" json:"x"`
	Y         int       `gorm:"not null;uniqueIndex:idx_shot_cell" json:"y"`
	Hit       bool      `json:"hit"`
	ShipID    *string   `gorm:"type:uuid" json:"ship_id,omitempty"` // set iff hit
	Sunk      bool      `json:"sunk"`                               // this shot sank ShipID
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
