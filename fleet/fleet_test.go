package fleet

import (
	"errors"
	"testing"

	"naval-combat/models"
)

func ship(t models.ShipType, x, y int, o models.Orientation) models.Ship {
	size, _ := ShipSize(t)
	return models.Ship{ID: string(t), Type: t, X: x, Y: y, Size: size, Orientation: o}
}

func TestShipSize(t *testing.T) {
	want := map[models.ShipType]int{
		models.ShipCarrier:    5,
		models.ShipBattleship: 4,
		models.ShipCruiser:    3,
		models.ShipSubmarine:  3,
		models.ShipDestroyer:  2,
	}
	for typ, size := range want {
		got, err := ShipSize(typ)
		if err != nil {
			t.Fatalf("ShipSize(%s): %v", typ, err)
		}
		if got != size {
			t.Errorf("ShipSize(%s) = %d, want %d", typ, got, size)
		}
		p := Placement{X: 0, Y: 0, Size: got, Orientation: models.Vertical}
		if n := len(p.Cells()); n != size {
			t.Errorf("%s occupies %d cells, want %d", typ, n, size)
		}
	}

	if _, err := ShipSize("rowboat"); !errors.Is(err, ErrInvalidShipType) {
		t.Fatalf("expected ErrInvalidShipType, got %v", err)
	}
	if len(Types) != FleetSize {
		t.Fatalf("fleet has %d types, want %d", len(Types), FleetSize)
	}
}

func TestPlacementCells(t *testing.T) {
	h := Placement{X: 2, Y: 3, Size: 3, Orientation: models.Horizontal}
	wantH := []Cell{{2, 3}, {3, 3}, {4, 3}}
	for i, c := range h.Cells() {
		if c != wantH[i] {
			t.Errorf("horizontal cell %d = %v, want %v", i, c, wantH[i])
		}
	}

	v := Placement{X: 2, Y: 3, Size: 2, Orientation: models.Vertical}
	wantV := []Cell{{2, 3}, {2, 4}}
	for i, c := range v.Cells() {
		if c != wantV[i] {
			t.Errorf("vertical cell %d = %v, want %v", i, c, wantV[i])
		}
	}
	if !v.Contains(2, 4) || v.Contains(3, 3) || v.Contains(2, 5) {
		t.Error("Contains disagrees with Cells")
	}
}

func TestValidatePlacement(t *testing.T) {
	tests := []struct {
		name      string
		existing  []models.Ship
		candidate Placement
		wantErr   error
	}{
		{
			name:      "fits on empty grid",
			candidate: Placement{X: 0, Y: 0, Size: 5, Orientation: models.Horizontal},
		},
		{
			name:      "touches far edge",
			candidate: Placement{X: 5, Y: 9, Size: 5, Orientation: models.Horizontal},
		},
		{
			name:      "runs off the right edge",
			candidate: Placement{X: 8, Y: 0, Size: 5, Orientation: models.Horizontal},
			wantErr:   ErrOutOfBounds,
		},
		{
			name:      "runs off the bottom edge",
			candidate: Placement{X: 0, Y: 7, Size: 4, Orientation: models.Vertical},
			wantErr:   ErrOutOfBounds,
		},
		{
			name:      "negative origin",
			candidate: Placement{X: -1, Y: 0, Size: 2, Orientation: models.Horizontal},
			wantErr:   ErrOutOfBounds,
		},
		{
			name:      "overlaps destroyer at origin",
			existing:  []models.Ship{ship(models.ShipDestroyer, 0, 0, models.Horizontal)},
			candidate: Placement{X: 0, Y: 0, Size: 5, Orientation: models.Horizontal},
			wantErr:   ErrOverlap,
		},
		{
			name:      "crosses a vertical ship",
			existing:  []models.Ship{ship(models.ShipCruiser, 4, 2, models.Vertical)},
			candidate: Placement{X: 2, Y: 3, Size: 4, Orientation: models.Horizontal},
			wantErr:   ErrOverlap,
		},
		{
			name:      "adjacent is allowed",
			existing:  []models.Ship{ship(models.ShipDestroyer, 0, 0, models.Horizontal)},
			candidate: Placement{X: 0, Y: 1, Size: 5, Orientation: models.Horizontal},
		},
		{
			name:      "bad orientation",
			candidate: Placement{X: 0, Y: 0, Size: 2, Orientation: "diagonal"},
			wantErr:   ErrInvalidOrientation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlacement(tt.existing, tt.candidate)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePlacementIsPure(t *testing.T) {
	existing := []models.Ship{ship(models.ShipDestroyer, 0, 0, models.Horizontal)}
	candidate := Placement{X: 0, Y: 0, Size: 5, Orientation: models.Horizontal}
	for i := 0; i < 3; i++ {
		if err := ValidatePlacement(existing, candidate); !errors.Is(err, ErrOverlap) {
			t.Fatalf("call %d: got %v", i, err)
		}
	}
	if len(existing) != 1 || existing[0].HitCount != 0 {
		t.Fatal("existing fleet was modified")
	}
}
