package services

import (
	"context"
	"errors"
	"time"

	"naval-combat/models"
)

// ErrNoRecord is returned by Store lookups that find nothing.
var ErrNoRecord = errors.New("record not found")

// ErrDuplicateRecord is returned when a unique constraint rejects a write.
var ErrDuplicateRecord = errors.New("duplicate record")

// Store is the persistence collaborator of the match engine. Every method
// must be safe for concurrent use; Transaction runs fn against a Store bound
// to a single transaction and rolls back if fn returns an error.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateMatch(ctx context.Context, m *models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	SaveMatch(ctx context.Context, m *models.Match) error
	ListMatchesByStatus(ctx context.Context, status models.MatchStatus, limit int) ([]models.Match, error)
	ListMatchesForPlayer(ctx context.Context, userID string, limit int) ([]models.Match, error)
	ListUnarchivedFinished(ctx context.Context, limit int) ([]models.Match, error)
	MarkArchived(ctx context.Context, matchID string, at time.Time) error

	CreateShip(ctx context.Context, s *models.Ship) error
	SaveShip(ctx context.Context, s *models.Ship) error
	ListShips(ctx context.Context, matchID, ownerID string) ([]models.Ship, error)
	CountShips(ctx context.Context, matchID, ownerID string) (int64, error)
	CountUnsunkShips(ctx context.Context, matchID, ownerID string) (int64, error)

	CreateShot(ctx context.Context, s *models.Shot) error
	ListShots(ctx context.Context, matchID string) ([]models.Shot, error)

	EnsureStats(ctx context.Context, userID string) error
	GetStats(ctx context.Context, userID string) (*models.Stats, error)
	AddStats(ctx context.Context, userID string, delta models.StatsDelta) error

	UpsertPlayers(ctx context.Context, players []models.Player) error
	PlayerNames(ctx context.Context, externalIDs []string) (map[string]string, error)
	LatestPlayerUpdate(ctx context.Context) (time.Time, error)
}
