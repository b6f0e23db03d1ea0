// Package fleet holds the pure geometry of a naval fleet: ship sizes,
// occupied cells, grid bounds and placement checks. Nothing here touches
// storage; every function is deterministic and safe to call for previews.
package fleet

import (
	"errors"
	"fmt"

	"naval-combat/models"
)

// GridSize is the width and height of every board.
const GridSize = 10

// FleetSize is the number of ships each player must place.
const FleetSize = 5

var (
	ErrInvalidShipType    = errors.New("invalid ship type")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrOutOfBounds        = errors.New("placement out of bounds")
	ErrOverlap            = errors.New("placement overlaps another ship")
)

var shipSizes = map[models.ShipType]int{
	models.ShipCarrier:    5,
	models.ShipBattleship: 4,
	models.ShipCruiser:    3,
	models.ShipSubmarine:  3,
	models.ShipDestroyer:  2,
}

// Types lists the ship types of a complete fleet, largest first.
var Types = []models.ShipType{
	models.ShipCarrier,
	models.ShipBattleship,
	models.ShipCruiser,
	models.ShipSubmarine,
	models.ShipDestroyer,
}

// Cell is a grid coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ShipSize returns the fixed size of a ship type.
func ShipSize(t models.ShipType) (int, error) {
	size, ok := shipSizes[t]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidShipType, t)
	}
	return size, nil
}

// ValidOrientation reports whether o is horizontal or vertical.
func ValidOrientation(o models.Orientation) bool {
	return o == models.Horizontal || o == models.Vertical
}

// InBounds reports whether (x,y) lies on the grid.
func InBounds(x, y int) bool {
	return x >= 0 && x < GridSize && y >= 0 && y < GridSize
}

// Placement describes a ship's footprint independent of its type.
type Placement struct {
	X           int
	Y           int
	Size        int
	Orientation models.Orientation
}

// PlacementOf returns the footprint of a placed ship.
func PlacementOf(s *models.Ship) Placement {
	return Placement{X: s.X, Y: s.Y, Size: s.Size, Orientation: s.Orientation}
}

// Cells returns the cells covered by p, starting at its origin.
// Horizontal ships grow along x, vertical ships along y.
func (p Placement) Cells() []Cell {
	cells := make([]Cell, 0, p.Size)
	for i := 0; i < p.Size; i++ {
		if p.Orientation == models.Vertical {
			cells = append(cells, Cell{X: p.X, Y: p.Y + i})
		} else {
			cells = append(cells, Cell{X: p.X + i, Y: p.Y})
		}
	}
	return cells
}

// Contains reports whether p covers (x,y).
func (p Placement) Contains(x, y int) bool {
	switch p.Orientation {
	case models.Horizontal:
		return y == p.Y && x >= p.X && x < p.X+p.Size
	case models.Vertical:
		return x == p.X && y >= p.Y && y < p.Y+p.Size
	}
	return false
}

// Occupies reports whether ship s covers (x,y).
func Occupies(s *models.Ship, x, y int) bool {
	return PlacementOf(s).Contains(x, y)
}

// ValidatePlacement checks a candidate footprint against the grid and the
// owner's already placed ships. The caller is responsible for passing only
// ships of the same owner in the same match.
func ValidatePlacement(existing []models.Ship, candidate Placement) error {
	if !ValidOrientation(candidate.Orientation) {
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, candidate.Orientation)
	}
	if candidate.Size <= 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidShipType, candidate.Size)
	}

	cells := candidate.Cells()
	for _, c := range cells {
		if !InBounds(c.X, c.Y) {
			return fmt.Errorf("%w: cell (%d,%d)", ErrOutOfBounds, c.X, c.Y)
		}
	}

	for i := range existing {
		for _, c := range cells {
			if Occupies(&existing[i], c.X, c.Y) {
				return fmt.Errorf("%w: %s at (%d,%d)", ErrOverlap, existing[i].Type, c.X, c.Y)
			}
		}
	}
	return nil
}
