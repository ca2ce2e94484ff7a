package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/KevinKickass/MokuCore/internal/auth"
	"github.com/KevinKickass/MokuCore/internal/config"
	"github.com/KevinKickass/MokuCore/internal/storage"
	"github.com/KevinKickass/MokuCore/internal/system"
)

func main() {
	fs := pflag.NewFlagSet("mokucore", pflag.ExitOnError)
	config.Flags(fs)
	issueToken := fs.String("issue-token", "", "print an API token for this client name and exit")
	role := fs.String("role", string(auth.RoleOperator), "role of the issued token (viewer, operator, admin)")
	fs.Parse(os.Args[1:])

	// Logger initialisieren
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Config laden
	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Config loaded successfully", zap.String("path", configPath))

	if *issueToken != "" {
		j := auth.NewJWTHandler(cfg.Auth.GetJWTSecret(), cfg.Auth.AccessTokenTTL)
		token, err := j.GenerateAccessToken(*issueToken, auth.Role(*role))
		if err != nil {
			logger.Fatal("Failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	// PostgreSQL verbinden (optional)
	var repo storage.Repository
	if cfg.Database.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := storage.NewPostgresClient(ctx, cfg.Database, logger)
		if err != nil {
			cancel()
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		err = db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		defer db.Close()

		logger.Info("Database connected successfully")
		repo = db
	} else {
		logger.Warn("No database configured, deployments are kept in memory only")
		repo = storage.NewMemoryStore()
	}

	// Lifecycle Manager
	lifecycle, err := system.NewLifecycleManager(repo, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create lifecycle manager", zap.Error(err))
	}

	// System starten
	if err := lifecycle.Start(); err != nil {
		logger.Fatal("Failed to start system", zap.Error(err))
	}

	logger.Info("MokuCore started successfully")

	// Graceful Shutdown auf Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := lifecycle.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("MokuCore stopped successfully")
}
