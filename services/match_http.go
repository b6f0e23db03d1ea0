package services

import (
	"strconv"
	"strings"

	"naval-combat/models"

	"github.com/gofiber/fiber/v2"
)

func currentUser(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

// CreateMatch handles POST /matches
func (s *MatchService) CreateMatch(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
	}
	m, err := s.StartMatch(c.UserContext(), currentUser(c), req.Title)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// GetOpenMatches handles GET /matches/open
func (s *MatchService) GetOpenMatches(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	list, err := s.ListOpenMatches(c.UserContext(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// GetMyMatches handles GET /matches/mine
func (s *MatchService) GetMyMatches(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	list, err := s.ListPlayerMatches(c.UserContext(), currentUser(c), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// GetMatchDetail handles GET /matches/:id
func (s *MatchService) GetMatchDetail(c *fiber.Ctx) error {
	detail, err := s.MatchDetail(c.UserContext(), c.Params("id"), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// Join handles POST /matches/:id/join
func (s *MatchService) Join(c *fiber.Ctx) error {
	m, err := s.JoinMatch(c.UserContext(), c.Params("id"), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(m)
}

type placeShipRequest struct {
	Type        models.ShipType    `json:"type"`
	X           *int               `json:"x"`
	Y           *int               `json:"y"`
	Orientation models.Orientation `json:"orientation"`
	Size        int                `json:"size"`
}

func (r *placeShipRequest) normalize() {
	r.Type = models.ShipType(strings.ToLower(strings.TrimSpace(string(r.Type))))
	r.Orientation = models.Orientation(strings.ToLower(strings.TrimSpace(string(r.Orientation))))
}

// PlaceShipHandler handles POST /matches/:id/ships
func (s *MatchService) PlaceShipHandler(c *fiber.Ctx) error {
	var req placeShipRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	req.normalize()
	if req.Type == "" || req.Orientation == "" || req.X == nil || req.Y == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type, x, y and orientation are required", "kind": KindInvalidInput})
	}
	ship, err := s.PlaceShip(c.UserContext(), c.Params("id"), currentUser(c), req.Type, *req.X, *req.Y, req.Orientation)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ship)
}

// ValidatePlacementHandler handles POST /matches/:id/ships/validate
func (s *MatchService) ValidatePlacementHandler(c *fiber.Ctx) error {
	var req placeShipRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	req.normalize()
	if req.Orientation == "" || req.X == nil || req.Y == nil || req.Size == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "x, y, orientation and size are required", "kind": KindInvalidInput})
	}
	check, err := s.ValidatePlacement(c.UserContext(), c.Params("id"), currentUser(c), *req.X, *req.Y, req.Size, req.Orientation)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(check)
}

// Ready handles POST /matches/:id/ready
func (s *MatchService) Ready(c *fiber.Ctx) error {
	m, err := s.SetReady(c.UserContext(), c.Params("id"), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(m)
}

// CheckReady handles GET /matches/:id/ready
func (s *MatchService) CheckReady(c *fiber.Ctx) error {
	both, m, err := s.BothReady(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"both_ready":    both,
		"player1_ready": m.Player1Ready,
		"player2_ready": m.Player2Ready,
		"status":        m.Status,
	})
}

// Fire handles POST /matches/:id/shots
func (s *MatchService) Fire(c *fiber.Ctx) error {
	var req struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.X == nil || req.Y == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "x and y are required", "kind": KindInvalidInput})
	}
	out, err := s.FireShot(c.UserContext(), c.Params("id"), currentUser(c), *req.X, *req.Y)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Abandon handles POST /matches/:id/abandon
func (s *MatchService) Abandon(c *fiber.Ctx) error {
	m, err := s.AbandonMatch(c.UserContext(), c.Params("id"), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(m)
}
