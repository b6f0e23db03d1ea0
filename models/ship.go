package models

import "time"

// ShipType fixes a ship's size.
type ShipType string

const (
	ShipCarrier    ShipType = "carrier"
	ShipBattleship ShipType = "battleship"
	ShipCruiser    ShipType = "cruiser"
	ShipSubmarine  ShipType = "submarine"
	ShipDestroyer  ShipType = "destroyer"
)

type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// Ship is one placed ship of a player's fleet. Position is immutable once
// created; HitCount and Sunk change only through shot resolution.
type Ship struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID     string      `gorm:"not null;uniqueIndex:idx_ship_owner_type" json:"match_id"`
	OwnerID     string      `gorm:"not null;uniqueIndex:idx_ship_owner_type" json:"owner_id"`
	Type        ShipType    `gorm:"type:varchar(16);not null;uniqueIndex:idx_ship_owner_type" json:"type"`
	X           int         `gorm:"not null" json:"x"`
	Y           int         `gorm:"not null" json:"y"`
	Orientation Orientation `gorm:"type:varchar(16);not null" json:"orientation"`
	Size        int         `gorm:"not null" json:"size"`
	HitCount    int         `gorm:"default:0" json:"hit_count"`
	Sunk        bool        `gorm:"default:false" json:"sunk"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}
