package services

import (
	"context"
	"errors"
	"log"

	"naval-combat/models"

	"github.com/gofiber/fiber/v2"
)

// StatsService keeps the per-user running totals. It only ever adds; the
// match service calls it once per committed shot or match end.
type StatsService struct {
	Store Store
}

func NewStatsService(store Store) *StatsService {
	return &StatsService{Store: store}
}

// RecordShot counts one resolved shot for shooterID.
func (s *StatsService) RecordShot(ctx context.Context, shooterID string, hit, sunk bool) {
	delta := models.StatsDelta{TotalShots: 1}
	if hit {
		delta.Hits = 1
	}
	if sunk {
		delta.ShipsSunk = 1
	}
	s.apply(ctx, shooterID, delta)
}

// RecordMatchEnd counts a played game for both participants and a win for
// the winner. Matches without a second player are not counted.
func (s *StatsService) RecordMatchEnd(ctx context.Context, m *models.Match) {
	if m == nil || m.Player2ID == "" {
		return
	}
	for _, id := range []string{m.Player1ID, m.Player2ID} {
		delta := models.StatsDelta{GamesPlayed: 1}
		if id == m.WinnerID {
			delta.GamesWon = 1
		}
		s.apply(ctx, id, delta)
	}
}

func (s *StatsService) apply(ctx context.Context, userID string, delta models.StatsDelta) {
	// the match outcome is already committed; a lost increment is logged, not retried
	if err := s.Store.AddStats(context.WithoutCancel(ctx), userID, delta); err != nil {
		log.Printf("❌ [STATS] failed to add %+v for %s: %v", delta, userID, err)
	}
}

// GetStats returns userID's totals, zeroed if the user never played.
func (s *StatsService) GetStats(ctx context.Context, userID string) (*models.Stats, error) {
	st, err := s.Store.GetStats(ctx, userID)
	if errors.Is(err, ErrNoRecord) {
		st = &models.Stats{UserID: userID}
	} else if err != nil {
		return nil, storageError("get stats", err)
	}
	if st.TotalShots > 0 {
		st.Accuracy = float64(st.Hits) / float64(st.TotalShots)
	}
	return st, nil
}

// GetMyStats handles GET /user/stats
func (s *StatsService) GetMyStats(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	return s.respondStats(c, userID)
}

// GetUserStats handles GET /users/:id/stats
func (s *StatsService) GetUserStats(c *fiber.Ctx) error {
	return s.respondStats(c, c.Params("id"))
}

func (s *StatsService) respondStats(c *fiber.Ctx, userID string) error {
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user id required"})
	}
	st, err := s.GetStats(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(st)
}
