package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SettingsRepository keeps runtime switches in the shared database so every
// server instance observes the same value.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get reports ok=false when the setting has never been written.
func (r *SettingsRepository) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE name = ?`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting %s: %w", name, err)
	}
	return value, true, nil
}

func (r *SettingsRepository) Set(ctx context.Context, name, value string) error {
	const query = `
INSERT INTO settings (name, value) VALUES (?, ?)
ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, name, value); err != nil {
		return fmt.Errorf("set setting %s: %w", name, err)
	}
	return nil
}
