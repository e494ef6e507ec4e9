package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Setting keys.
const (
	SettingJWTSecret   = "jwt_secret"
	SettingLastSweepAt = "last_sweep_at"
)

// GetSetting returns the value stored under key and whether it was set.
func GetSetting(ctx context.Context, db *sql.DB, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key, replacing any previous value.
func SetSetting(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}

// GetJWTSecret returns the signing secret, generating and storing one on
// first use. INSERT OR IGNORE followed by a read keeps concurrent first
// starts on the same value.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		SettingJWTSecret, hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt secret: %w", err)
	}

	secret, _, err := GetSetting(ctx, db, SettingJWTSecret)
	return secret, err
}

// LastSweep returns when the roll-forward job last completed, or the zero
// time if it never ran.
func LastSweep(ctx context.Context, db *sql.DB) (time.Time, error) {
	value, ok, err := GetSetting(ctx, db, SettingLastSweepAt)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := parseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last sweep time: %w", err)
	}
	return t, nil
}

// RecordSweep stores the completion time of a roll-forward run.
func RecordSweep(ctx context.Context, db *sql.DB, at time.Time) error {
	return SetSetting(ctx, db, SettingLastSweepAt, formatTime(at))
}
