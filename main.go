package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"naval-combat/handlers"
	"naval-combat/middleware"
	"naval-combat/realtime"
	"naval-combat/services"
	"naval-combat/utils"
	"naval-combat/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed (plus token-bearing sockets)
	app.Use(middleware.GatewayAuthMiddleware(os.Getenv("GAME_SERVICE_TOKEN")))

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Println("⚠️  JWT_SECRET not set, sockets must come through the gateway with X-User-ID")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	store := services.NewGormStore(db)
	if err := store.AutoMigrate(); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	writeTimeout := realtime.DefaultWriteTimeout
	if v := os.Getenv("SOCKET_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			writeTimeout = d
		} else {
			log.Printf("⚠️  invalid SOCKET_WRITE_TIMEOUT %q, using %s", v, writeTimeout)
		}
	}
	coordinator := realtime.NewCoordinator(writeTimeout, realtime.DefaultQueueSize)

	statsService := services.NewStatsService(store)
	matchService := services.NewMatchService(store, statsService, coordinator)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lockSweeper := workers.NewLockSweepWorker(matchService, 10*time.Minute, time.Hour)
	if err := lockSweeper.Start(); err != nil {
		log.Fatal("failed to start lock sweep worker:", err)
	}

	// --- Optional: player profile mirror ---
	if syncServiceURL := os.Getenv("SYNC_SERVICE_URL"); syncServiceURL != "" {
		syncWorker := workers.NewPlayerSyncWorker(store, syncServiceURL, "/api/v1/public/profiles", os.Getenv("GAME_SERVICE_TOKEN"))
		syncWorker.Start(ctx)
	} else {
		log.Println("⚠️  SYNC_SERVICE_URL not set, player profiles will not be mirrored")
	}

	// --- Optional: finished match archive to R2 ---
	var archiveWorker *workers.MatchArchiveWorker
	if r2Cfg, ok := utils.R2ConfigFromEnv(); ok {
		r2, err := utils.NewR2Client(ctx, r2Cfg)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		archiveWorker = workers.NewMatchArchiveWorker(store, r2, 5*time.Minute)
		if err := archiveWorker.Start(); err != nil {
			log.Fatal("failed to start archive worker:", err)
		}
	} else {
		log.Println("⚠️  R2 not configured, finished matches will not be archived")
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "error": err.Error()})
		}
		return c.JSON(fiber.Map{
			"status":          "ok",
			"active_sessions": coordinator.ActiveSessions(),
		})
	})

	handlers.SetupMatchRoutes(app, matchService, jwtSecret)
	handlers.SetupStatsRoutes(app, statsService)

	port := os.Getenv("PORT")
	if _, err := strconv.Atoi(port); err != nil {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ GatewayAuthMiddleware enforced globally")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if archiveWorker != nil {
		archiveWorker.Stop()
	}
	lockSweeper.Stop()
	coordinator.Shutdown()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
