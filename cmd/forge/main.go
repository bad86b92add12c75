// Command forge runs the app-generation API server
package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	gormlogger "gorm.io/gorm/logger"

	"github.com/appforge/forge/config"
	"github.com/appforge/forge/internal/agents"
	v1 "github.com/appforge/forge/internal/api/v1/routes"
	"github.com/appforge/forge/internal/db"
	"github.com/appforge/forge/internal/db/repos"
	"github.com/appforge/forge/internal/hub"
	"github.com/appforge/forge/internal/jobs"
	"github.com/appforge/forge/internal/logger"
	"github.com/appforge/forge/internal/orchestrator"
	"github.com/appforge/forge/internal/packager"
	"github.com/appforge/forge/internal/watchdog"

	"github.com/appforge/forge/internal/api/v1/handlers"
)

func main() {
	// A missing .env file just means configuration comes from the
	// environment directly
	_ = godotenv.Load()
	logger.Init()

	cfg := config.Load()

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("failed to open job store: %v", err)
	}

	zipPackager, err := packager.NewZipPackager(cfg.OutputDir)
	if err != nil {
		logger.Fatalf("failed to prepare output dir: %v", err)
	}

	statusHub := hub.New()
	var pusher packager.RepoPusher
	if gh := packager.NewGithubPusher(cfg.GithubToken); gh != nil {
		pusher = gh
	}
	orch := orchestrator.New(store, agents.NewLocal(), statusHub, zipPackager, pusher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchdog.New(store, statusHub, cfg.JobTimeout, cfg.WatchdogInterval).Start(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	jobHandler := handlers.NewJobHandler(orch, store, zipPackager)
	v1.Register(app, jobHandler, store, statusHub)

	logger.Infof("forge listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}

func openStore(cfg config.Config) (jobs.Store, error) {
	if cfg.UseMemoryStore {
		logger.Warn("using in-memory job store; jobs will not survive a restart")
		return jobs.NewMemoryStore(), nil
	}
	conn, err := db.New(db.Options{
		Host:       cfg.DBHost,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		DBName:     cfg.DBName,
		Port:       cfg.DBPort,
		SSLEnabled: cfg.DBSSLEnabled,
		LogLevel:   gormlogger.Warn,
	})
	if err != nil {
		return nil, err
	}
	return repos.NewJobRepository(conn), nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
