package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campuspulse/internal/domain"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT PRIMARY KEY,
		allow_ubahn INTEGER NOT NULL DEFAULT 1,
		allow_sbahn INTEGER NOT NULL DEFAULT 1,
		allow_regional INTEGER NOT NULL DEFAULT 1,
		allow_tram INTEGER NOT NULL DEFAULT 1,
		allow_bus INTEGER NOT NULL DEFAULT 1,
		timing_pref TEXT NOT NULL DEFAULT 'earlier',
		arrival_time TEXT NOT NULL DEFAULT '',
		home_location TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	)
`

type SQLitePreferences struct {
	db *sql.DB
}

// NewSQLitePreferences opens (and creates) the database at dbPath.
// ":memory:" keeps everything in a single connection.
func NewSQLitePreferences(ctx context.Context, dbPath string) (*SQLitePreferences, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_journal=WAL"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLitePreferences{db: db}, nil
}

func (r *SQLitePreferences) Close() error {
	return r.db.Close()
}

func (r *SQLitePreferences) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	query := `
		SELECT allow_ubahn, allow_sbahn, allow_regional, allow_tram, allow_bus,
		       timing_pref, arrival_time, home_location
		FROM user_preferences
		WHERE user_id = ?
	`

	p := domain.Preferences{UserID: userID}
	var timing string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.AllowSubway,
		&p.AllowSuburban,
		&p.AllowRegional,
		&p.AllowTram,
		&p.AllowBus,
		&timing,
		&p.ArrivalTime,
		&p.HomeLocation,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultPreferences(userID), nil
	}
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("failed to query preferences: %w", err)
	}
	p.TimingPref = domain.TimingPref(timing)
	return p, nil
}

func (r *SQLitePreferences) PutPreferences(ctx context.Context, p domain.Preferences) error {
	query := `
		INSERT INTO user_preferences (
			user_id, allow_ubahn, allow_sbahn, allow_regional, allow_tram, allow_bus,
			timing_pref, arrival_time, home_location, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			allow_ubahn = excluded.allow_ubahn,
			allow_sbahn = excluded.allow_sbahn,
			allow_regional = excluded.allow_regional,
			allow_tram = excluded.allow_tram,
			allow_bus = excluded.allow_bus,
			timing_pref = excluded.timing_pref,
			arrival_time = excluded.arrival_time,
			home_location = excluded.home_location,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		p.UserID, p.AllowSubway, p.AllowSuburban, p.AllowRegional, p.AllowTram, p.AllowBus,
		string(p.TimingPref), p.ArrivalTime, p.HomeLocation, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
