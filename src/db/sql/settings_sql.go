package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	store "plaid-mcp-server/src/db"
	"plaid-mcp-server/src/models"
)

func (s *PostgresStore) GetRefreshSetting(ctx context.Context, userID string) (*models.RefreshSetting, error) {
	query := `
		SELECT user_id, frequency, schedule, custom_schedule, last_refreshed, updated_at
		FROM refresh_settings WHERE user_id = $1
	`
	var r models.RefreshSetting
	var frequency string
	err := s.pool.QueryRow(ctx, query, userID).
		Scan(&r.UserID, &frequency, &r.Schedule, &r.CustomSchedule, &r.LastRefreshed, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNoSetting
		}
		return nil, err
	}
	r.Frequency = models.Frequency(frequency)
	return &r, nil
}

func (s *PostgresStore) SaveRefreshSetting(ctx context.Context, setting models.RefreshSetting) error {
	query := `
		INSERT INTO refresh_settings (user_id, frequency, schedule, custom_schedule, last_refreshed, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			frequency = $2,
			schedule = $3,
			custom_schedule = $4,
			last_refreshed = $5,
			updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query, setting.UserID, string(setting.Frequency), setting.Schedule, setting.CustomSchedule, setting.LastRefreshed)
	return err
}

func (s *PostgresStore) TouchLastRefreshed(ctx context.Context, userID string, at time.Time) error {
	query := `
		INSERT INTO refresh_settings (user_id, last_refreshed, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET last_refreshed = $2
	`
	_, err := s.pool.Exec(ctx, query, userID, at)
	return err
}
