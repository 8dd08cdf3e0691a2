package storage

import (
	"context"
	"fmt"
	"time"

	"genix/util"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenPostgres creates a verified connection pool and ensures the quota schema exists
func OpenPostgres(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	LoadQueries()
	util.LogInfo("Initializing PostgreSQL database connection...")

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := InitializeTables(initCtx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	util.LogInfo("Successfully connected to PostgreSQL")
	return pool, nil
}

// InitializeTables creates all necessary database tables
func InitializeTables(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, GetQuery("quota.create_user_quotas_table")); err != nil {
		return fmt.Errorf("failed to create user quotas table: %w", err)
	}
	return nil
}
