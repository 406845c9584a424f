package main

import (
	"context"
	"distance-matrix-service/internal/adapters/repositories"
	"distance-matrix-service/internal/config"
	"distance-matrix-service/internal/platform/db"
	"distance-matrix-service/internal/platform/logger"
	"distance-matrix-service/internal/ports"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// dbtool initializes the schema for the configured driver and writes the
// seed file into the state store, replacing any persisted points.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.NewNamed(cfg.AppEnv, "dbtool")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := initAndSeed(context.Background(), cfg, log); err != nil {
		log.Fatal("dbtool failed", zap.Error(err))
	}
}

func initAndSeed(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var state ports.StateStore

	log.Info("initializing database schema", zap.String("driver", cfg.DBDriver))
	switch cfg.DBDriver {
	case db.DriverPostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := repositories.InitPostgresSchema(ctx, conn); err != nil {
			return fmt.Errorf("schema initialization failed: %w", err)
		}
		state = repositories.NewSQLStateStore(conn, log)

	default:
		conn, err := db.OpenSqlite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := repositories.InitSchema(ctx, conn); err != nil {
			return fmt.Errorf("schema initialization failed: %w", err)
		}
		state = repositories.NewSqliteStateStore(conn)
	}
	log.Info("schema ready")

	log.Info("seeding points", zap.String("path", cfg.SeedPath))
	if err := repositories.SeedFromJSON(ctx, state, cfg.SeedPath); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Info("seeding complete")

	return nil
}
