package fleet

import "naval-combat/models"

// Resolution is the outcome of one shot against a defending fleet.
type Resolution struct {
	Hit      bool
	Ship     *models.Ship // the ship that was hit, nil on a miss
	JustSunk bool
}

// ResolveShot applies a shot at (x,y) to the defender's fleet. On a hit the
// ship's HitCount is incremented in place and JustSunk is set on the shot
// that brings HitCount to the ship's size. Hitting an already sunk ship is
// reported as a hit without touching the ship.
func ResolveShot(defender []models.Ship, x, y int) Resolution {
	for i := range defender {
		ship := &defender[i]
		if !Occupies(ship, x, y) {
			continue
		}
		if ship.Sunk {
			return Resolution{Hit: true, Ship: ship}
		}
		ship.HitCount++
		if ship.HitCount >= ship.Size {
			ship.HitCount = ship.Size
			ship.Sunk = true
			return Resolution{Hit: true, Ship: ship, JustSunk: true}
		}
		return Resolution{Hit: true, Ship: ship}
	}
	return Resolution{}
}

// IsFleetDestroyed reports whether every ship of a non-empty fleet is sunk.
func IsFleetDestroyed(defender []models.Ship) bool {
	if len(defender) == 0 {
		return false
	}
	for i := range defender {
		if !defender[i].Sunk {
			return false
		}
	}
	return true
}
