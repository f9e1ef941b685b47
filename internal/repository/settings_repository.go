package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solmate-labs/solmate-bot/internal/domain"
)

// SettingsRepository defines persistence operations for per-user preferences.
type SettingsRepository interface {
	Get(ctx context.Context, userID int64) (*domain.UserSettings, error)
	Upsert(ctx context.Context, settings *domain.UserSettings) error
}

type settingsRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSettingsRepository creates a new SQL-backed settings repository.
func NewSettingsRepository(db *sql.DB, log *slog.Logger) SettingsRepository {
	return &settingsRepository{
		db:  db,
		log: log,
	}
}

// Get returns the user's settings, or defaults when the user has none yet.
func (r *settingsRepository) Get(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	const query = `
		SELECT user_id, language, network, updated_at
		FROM user_settings
		WHERE user_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, userID)

	var s domain.UserSettings
	if err := row.Scan(&s.UserID, &s.Language, &s.Network, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			defaults := domain.DefaultSettings(userID)
			return &defaults, nil
		}

		if r.log != nil {
			r.log.Error("failed to fetch user settings", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user settings: %w", err)
	}

	return &s, nil
}

// Upsert stores the user's settings, inserting the row on first write.
func (r *settingsRepository) Upsert(ctx context.Context, settings *domain.UserSettings) error {
	const query = `
		INSERT INTO user_settings (user_id, language, network, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET language = EXCLUDED.language,
		    network = EXCLUDED.network,
		    updated_at = EXCLUDED.updated_at
	`

	settings.UpdatedAt = time.Now().UTC()

	if _, err := r.db.ExecContext(
		ctx,
		query,
		settings.UserID,
		settings.Language,
		settings.Network,
		settings.UpdatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to upsert user settings", slog.Int64("user_id", settings.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("upsert user settings: %w", err)
	}

	return nil
}
