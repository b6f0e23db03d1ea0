package handlers

import (
	"time"

	"naval-combat/middleware"
	"naval-combat/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const socketTokenTTL = 15 * time.Minute

func SetupMatchRoutes(app *fiber.App, matchService *services.MatchService, jwtSecret string) {
	// 🔐 Secured routes, require user context
	secured := app.Group("/matches", middleware.UserContextMiddleware())

	secured.Post("/", matchService.CreateMatch)
	secured.Get("/open", matchService.GetOpenMatches)
	secured.Get("/mine", matchService.GetMyMatches)
	secured.Get("/:id", matchService.GetMatchDetail)
	secured.Post("/:id/join", matchService.Join)
	secured.Post("/:id/ships", matchService.PlaceShipHandler)
	secured.Post("/:id/ships/validate", matchService.ValidatePlacementHandler)
	secured.Post("/:id/ready", matchService.Ready)
	secured.Get("/:id/ready", matchService.CheckReady)
	secured.Post("/:id/shots", matchService.Fire)
	secured.Post("/:id/abandon", matchService.Abandon)

	// 🔑 Short-lived token for browser sockets that cannot send gateway headers
	app.Post("/user/socket-token", middleware.UserContextMiddleware(), func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		token, err := middleware.IssueSocketToken(jwtSecret, userID, socketTokenTTL)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to issue token"})
		}
		return c.JSON(fiber.Map{
			"token":      token,
			"expires_in": int(socketTokenTTL.Seconds()),
		})
	})

	// 🔌 Push channel
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/matches/:id", middleware.SocketAuthMiddleware(jwtSecret), websocket.New(matchService.ServeSocket))
}

func SetupStatsRoutes(app *fiber.App, statsService *services.StatsService) {
	// per route: a "/" group would gate /ws and /health as well
	userCtx := middleware.UserContextMiddleware()
	app.Get("/user/stats", userCtx, statsService.GetMyStats)
	app.Get("/users/:id/stats", userCtx, statsService.GetUserStats)
}
