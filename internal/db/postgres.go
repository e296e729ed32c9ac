// internal/db/postgres.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresConfig struct {
	URL      string
	MaxConns int32
	Attempts int
	Delay    time.Duration
}

// ConnectDB opens a pgx pool, retrying while the database comes up.
func ConnectDB(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}

	var lastErr error
	for i := 1; i <= cfg.Attempts; i++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

		if i < cfg.Attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}
	}
	return nil, fmt.Errorf("db connect failed after %d attempts: %w", cfg.Attempts, lastErr)
}
