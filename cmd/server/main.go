package main

import (
	"fmt"
	"log"

	"satriarisk/backend/internal/auth"
	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/filestorage"
	"satriarisk/backend/internal/router"
	"satriarisk/backend/internal/seeders"
	"satriarisk/backend/pkg/config"
	srlog "satriarisk/backend/pkg/log"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Cfg
	defer srlog.Sync()

	sslMode := "disable"
	if cfg.EnableDBSSL {
		sslMode = "require"
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, sslMode)

	if err := database.ConnectDB(dsn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	srlog.L.Info("Database connection established")

	if err := database.MigrateDB(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	if cfg.Environment == "development" {
		db := database.GetDB()
		if err := seeders.SeedInitialData(db); err != nil {
			srlog.L.Warn("Initial data seeding failed", zap.Error(err))
		}
		if err := seeders.SeedDemoContext(db); err != nil {
			srlog.L.Warn("Demo context seeding failed", zap.Error(err))
		}
	}

	if err := auth.InitializeJWT(); err != nil {
		log.Fatalf("Failed to initialize JWT: %v", err)
	}

	filestorage.InitFileStorage()

	engine := router.SetupRouter(srlog.L)
	srlog.L.Info("Starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
	if err := engine.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
