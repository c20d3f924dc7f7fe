package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/api"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/config"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/handler"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/storage"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/logger"
)

// Database connection timeout.
const dbPingTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	db, err := connectDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	return runServer(cfg, log, db)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	configPath := config.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// connectDatabase opens and verifies a database connection.
func connectDatabase(cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	return db, nil
}

// runServer creates all dependencies and starts the HTTP server.
func runServer(cfg *config.Config, log logger.Logger, db *sql.DB) int {
	// Event buffer and background write path.
	buf := storage.NewBuffer(cfg.Service.BufferSize)
	store := storage.NewStore(db, buf, log, cfg.Service.FlushInterval, cfg.Service.FlushThreshold)
	store.Start()
	defer store.Stop()

	repo := storage.NewExperimentRepo(db)

	analyticsHandler := handler.NewAnalyticsHandler(buf, log, cfg.Service.MaxBatchSize)
	experimentsHandler := handler.NewExperimentsHandler(repo, buf, log)
	healthHandler := handler.NewHealthHandler(cfg.Service.Version, db.Ping)

	server := api.NewServer(cfg, log, func(router *gin.Engine) {
		api.SetupRoutes(router, analyticsHandler, experimentsHandler, healthHandler, cfg)
	})

	log.Info("Growth-labs starting",
		logger.Int("port", cfg.Service.Port),
	)

	if err := server.Run(); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Growth-labs exited cleanly")
	return 0
}
