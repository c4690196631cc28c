package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campuspulse/internal/domain"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT PRIMARY KEY,
		allow_ubahn BOOLEAN NOT NULL DEFAULT TRUE,
		allow_sbahn BOOLEAN NOT NULL DEFAULT TRUE,
		allow_regional BOOLEAN NOT NULL DEFAULT TRUE,
		allow_tram BOOLEAN NOT NULL DEFAULT TRUE,
		allow_bus BOOLEAN NOT NULL DEFAULT TRUE,
		timing_pref TEXT NOT NULL DEFAULT 'earlier',
		arrival_time TEXT,
		home_location TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

type PostgresPreferences struct {
	pool *pgxpool.Pool
}

func NewPostgresPreferences(ctx context.Context, databaseURL string) (*PostgresPreferences, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresPreferences{pool: pool}, nil
}

func (r *PostgresPreferences) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresPreferences) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	query := `
		SELECT allow_ubahn, allow_sbahn, allow_regional, allow_tram, allow_bus,
		       timing_pref, COALESCE(arrival_time, ''), COALESCE(home_location, '')
		FROM user_preferences
		WHERE user_id = $1
	`

	p := domain.Preferences{UserID: userID}
	var timing string
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.AllowSubway,
		&p.AllowSuburban,
		&p.AllowRegional,
		&p.AllowTram,
		&p.AllowBus,
		&timing,
		&p.ArrivalTime,
		&p.HomeLocation,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultPreferences(userID), nil
	}
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("failed to query preferences: %w", err)
	}
	p.TimingPref = domain.TimingPref(timing)
	return p, nil
}

func (r *PostgresPreferences) PutPreferences(ctx context.Context, p domain.Preferences) error {
	query := `
		INSERT INTO user_preferences (
			user_id, allow_ubahn, allow_sbahn, allow_regional, allow_tram, allow_bus,
			timing_pref, arrival_time, home_location, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			allow_ubahn = EXCLUDED.allow_ubahn,
			allow_sbahn = EXCLUDED.allow_sbahn,
			allow_regional = EXCLUDED.allow_regional,
			allow_tram = EXCLUDED.allow_tram,
			allow_bus = EXCLUDED.allow_bus,
			timing_pref = EXCLUDED.timing_pref,
			arrival_time = EXCLUDED.arrival_time,
			home_location = EXCLUDED.home_location,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		p.UserID, p.AllowSubway, p.AllowSuburban, p.AllowRegional, p.AllowTram, p.AllowBus,
		string(p.TimingPref), p.ArrivalTime, p.HomeLocation,
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
