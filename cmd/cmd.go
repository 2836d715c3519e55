package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tonewheel/studiorag/internal/config"
	"github.com/tonewheel/studiorag/internal/gemini"
	"github.com/tonewheel/studiorag/internal/log"
)

// loadConfig loads and validates configuration. Commands that never call
// the Gemini API pass needsAPIKey=false so they work without a key.
func loadConfig(needsAPIKey bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if needsAPIKey {
		if err := cfg.ValidateAPIKey(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

func newGeminiClient(ctx context.Context, cfg *config.Config, logger log.Logger) (*gemini.Client, error) {
	return gemini.New(ctx, cfg.GeminiAPIKey, logger)
}

// connectPool opens the PostgreSQL pool the load and chat commands share.
// pgx takes the key=value DSN form; the URL form is for golang-migrate.
func connectPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	return pool, nil
}
