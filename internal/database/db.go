package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// NewDB creates a new database connection pool and runs migrations.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	db := &DB{Pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// migrate creates the schema when missing.
func (db *DB) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tracked_patterns (
			id UUID PRIMARY KEY,
			symbol TEXT NOT NULL,
			pattern_type TEXT NOT NULL,
			direction TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			win_rate_hint DOUBLE PRECISION NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			entry DOUBLE PRECISION NOT NULL,
			stop DOUBLE PRECISION NOT NULL,
			target DOUBLE PRECISION NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			current_price DOUBLE PRECISION NOT NULL,
			high_water DOUBLE PRECISION NOT NULL,
			low_water DOUBLE PRECISION NOT NULL,
			resolved_at TIMESTAMPTZ,
			resolution_price DOUBLE PRECISION,
			was_correct BOOLEAN,
			actual_pnl_percent DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracked_patterns_symbol_status
			ON tracked_patterns (symbol, status)`,
		`CREATE TABLE IF NOT EXISTS simulated_trades (
			id UUID PRIMARY KEY,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry DOUBLE PRECISION NOT NULL,
			stop DOUBLE PRECISION NOT NULL,
			target_1 DOUBLE PRECISION NOT NULL,
			target_2 DOUBLE PRECISION,
			share_count INTEGER NOT NULL DEFAULT 0,
			regime_at_entry TEXT NOT NULL DEFAULT '',
			pattern_context JSONB,
			status TEXT NOT NULL,
			outcome TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			activated_at TIMESTAMPTZ NOT NULL,
			days_held INTEGER NOT NULL DEFAULT 0,
			max_expiration_days INTEGER NOT NULL,
			highest_seen DOUBLE PRECISION NOT NULL,
			lowest_seen DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION,
			pnl_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			pnl_dollar DOUBLE PRECISION NOT NULL DEFAULT 0,
			r_multiple DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_drawdown_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_simulated_trades_status
			ON simulated_trades (status)`,
		`CREATE TABLE IF NOT EXISTS pattern_performance (
			pattern_type TEXT NOT NULL,
			direction TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			regime TEXT NOT NULL,
			stats JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (pattern_type, direction, timeframe, regime)
		)`,
		`CREATE TABLE IF NOT EXISTS regime_history (
			id BIGSERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			regime TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			rationale JSONB,
			features JSONB,
			detected_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_regime_history_symbol
			ON regime_history (symbol, detected_at DESC)`,
		`CREATE TABLE IF NOT EXISTS watchlist (
			symbol TEXT PRIMARY KEY,
			timeframe TEXT NOT NULL DEFAULT '1d',
			scan_interval_minutes INTEGER NOT NULL DEFAULT 60,
			last_scanned_at TIMESTAMPTZ,
			added_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS advisory_log (
			id BIGSERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			prompt_hash TEXT NOT NULL,
			response TEXT,
			parsed BOOLEAN NOT NULL,
			fallback_used BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
