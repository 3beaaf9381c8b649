package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewDB creates a new database connection from a connection string
func NewDB(databaseURL string, log zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	dbLog := log.With().Str("component", "database").Logger()
	dbLog.Info().Msg("connected to PostgreSQL")

	return &DB{Pool: pool, log: dbLog}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info().Msg("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.log.Info().Msg("running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS market_data (
			symbol VARCHAR(20) NOT NULL,
			bid DECIMAL(20, 8) NOT NULL,
			ask DECIMAL(20, 8) NOT NULL,
			high DECIMAL(20, 8) NOT NULL,
			low DECIMAL(20, 8) NOT NULL,
			volume BIGINT NOT NULL DEFAULT 0,
			timestamp TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (symbol, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_data_timestamp ON market_data(timestamp)`,

		`CREATE TABLE IF NOT EXISTS challenges (
			id SERIAL PRIMARY KEY,
			account_size DECIMAL(20, 2) NOT NULL,
			max_daily_loss DECIMAL(20, 2),
			profit_target DECIMAL(20, 2),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS trading_accounts (
			id SERIAL PRIMARY KEY,
			balance DECIMAL(20, 2) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			user_challenge_id INTEGER,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS user_challenges (
			id SERIAL PRIMARY KEY,
			trading_account_id INTEGER REFERENCES trading_accounts(id),
			challenge_id INTEGER REFERENCES challenges(id),
			current_balance DECIMAL(20, 2) NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL DEFAULT 'ACTIVE',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_challenges_account ON user_challenges(trading_account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_challenges_status ON user_challenges(status)`,

		`CREATE TABLE IF NOT EXISTS positions (
			id SERIAL PRIMARY KEY,
			trading_account_id INTEGER NOT NULL REFERENCES trading_accounts(id),
			ticket VARCHAR(50) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			type VARCHAR(4) NOT NULL,
			volume DECIMAL(20, 8) NOT NULL,
			open_price DECIMAL(20, 8) NOT NULL,
			current_price DECIMAL(20, 8),
			stop_loss DECIMAL(20, 8),
			take_profit DECIMAL(20, 8),
			open_time TIMESTAMP NOT NULL,
			commission DECIMAL(20, 8) NOT NULL DEFAULT 0,
			swap DECIMAL(20, 8) NOT NULL DEFAULT 0,
			profit DECIMAL(20, 8) NOT NULL DEFAULT 0,
			comment TEXT,
			magic_number BIGINT DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_account ON positions(trading_account_id)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			user_challenge_id INTEGER NOT NULL REFERENCES user_challenges(id),
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			lot_size DECIMAL(20, 8) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			pnl DECIMAL(20, 8) NOT NULL,
			commission DECIMAL(20, 8) NOT NULL DEFAULT 0,
			swap DECIMAL(20, 8) NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL DEFAULT 'CLOSED',
			open_time TIMESTAMP NOT NULL,
			close_time TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_challenge ON trades(user_challenge_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.log.Info().Msg("database migrations completed")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
