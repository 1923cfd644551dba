// Package storage persists closed-trade lessons to PostgreSQL so the
// learning history survives restarts and can be inspected with plain SQL.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"adaptive-trading-bot/internal/brain"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// LessonStore writes and reads trade lessons. A nil pool means no database
// is configured and every operation becomes a no-op.
type LessonStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewLessonStore connects to PostgreSQL and ensures the lessons table
// exists.
func NewLessonStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*LessonStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
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

	store := &LessonStore{
		pool:   pool,
		logger: logger.With().Str("component", "lesson_store").Logger(),
	}
	if err := store.migrate(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}

	store.logger.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")
	return store, nil
}

// NewNopLessonStore returns a store with no backing database. SaveLesson
// succeeds without writing anything.
func NewNopLessonStore(logger zerolog.Logger) *LessonStore {
	return &LessonStore{logger: logger.With().Str("component", "lesson_store").Logger()}
}

func (s *LessonStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trade_lessons (
			id UUID PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			strategy VARCHAR(100) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			profit DECIMAL(20, 8) NOT NULL,
			profit_percent DECIMAL(10, 4) NOT NULL,
			holding_seconds BIGINT NOT NULL,
			win BOOLEAN NOT NULL,
			market JSONB NOT NULL,
			indicators JSONB NOT NULL,
			entry_timing JSONB NOT NULL,
			exit_timing JSONB NOT NULL,
			closed_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_lessons_symbol ON trade_lessons(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_lessons_strategy ON trade_lessons(strategy)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_lessons_closed_at ON trade_lessons(closed_at)`,
	}

	for i, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// SaveLesson inserts one closed-trade lesson. Duplicate IDs are ignored so
// a retried save cannot double-count a trade.
func (s *LessonStore) SaveLesson(ctx context.Context, lesson *brain.Lesson) error {
	if s.pool == nil {
		return nil
	}

	market, err := json.Marshal(lesson.Market)
	if err != nil {
		return fmt.Errorf("failed to encode market state: %w", err)
	}
	indicators, err := json.Marshal(lesson.Indicators)
	if err != nil {
		return fmt.Errorf("failed to encode indicators: %w", err)
	}
	entryTiming, err := json.Marshal(lesson.EntryTiming)
	if err != nil {
		return fmt.Errorf("failed to encode entry timing: %w", err)
	}
	exitTiming, err := json.Marshal(lesson.ExitTiming)
	if err != nil {
		return fmt.Errorf("failed to encode exit timing: %w", err)
	}

	query := `
		INSERT INTO trade_lessons (
			id, symbol, strategy, entry_price, exit_price, profit,
			profit_percent, holding_seconds, win, market, indicators,
			entry_timing, exit_timing, closed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		lesson.ID,
		lesson.Symbol,
		lesson.Strategy,
		lesson.EntryPrice,
		lesson.ExitPrice,
		lesson.Profit,
		lesson.ProfitPercent,
		int64(lesson.HoldingTime.Seconds()),
		lesson.Win,
		market,
		indicators,
		entryTiming,
		exitTiming,
		lesson.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save lesson: %w", err)
	}
	return nil
}

// LessonRow is a flattened lesson as read back from the database.
type LessonRow struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Strategy      string    `json:"strategy"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     float64   `json:"exit_price"`
	Profit        float64   `json:"profit"`
	ProfitPercent float64   `json:"profit_percent"`
	Win           bool      `json:"win"`
	ClosedAt      time.Time `json:"closed_at"`
}

// RecentLessons returns the most recently closed lessons, newest first.
func (s *LessonStore) RecentLessons(ctx context.Context, limit int) ([]LessonRow, error) {
	if s.pool == nil {
		return []LessonRow{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, symbol, strategy, entry_price, exit_price,
		       profit, profit_percent, win, closed_at
		FROM trade_lessons
		ORDER BY closed_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	lessons := []LessonRow{}
	for rows.Next() {
		var row LessonRow
		if err := rows.Scan(
			&row.ID, &row.Symbol, &row.Strategy, &row.EntryPrice, &row.ExitPrice,
			&row.Profit, &row.ProfitPercent, &row.Win, &row.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, row)
	}
	return lessons, rows.Err()
}

// HealthCheck pings the database.
func (s *LessonStore) HealthCheck(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *LessonStore) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info().Msg("database connection closed")
	}
}
