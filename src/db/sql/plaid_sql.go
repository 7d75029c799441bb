package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	store "plaid-mcp-server/src/db"
	"plaid-mcp-server/src/models"
)

func (s *PostgresStore) SaveItem(ctx context.Context, item models.PlaidItem) error {
	query := `
		INSERT INTO plaid_items (user_id, item_id, access_token, institution_id, sync_cursor, created_at)
		VALUES ($1, $2, $3, $4, NULL, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			item_id = $2,
			access_token = $3,
			institution_id = $4,
			created_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query, item.UserID, item.ItemID, item.AccessToken, item.InstitutionID)
	return err
}

func (s *PostgresStore) GetItem(ctx context.Context, userID string) (*models.PlaidItem, error) {
	query := `SELECT user_id, item_id, access_token, institution_id, created_at FROM plaid_items WHERE user_id = $1`

	var item models.PlaidItem
	err := s.pool.QueryRow(ctx, query, userID).Scan(&item.UserID, &item.ItemID, &item.AccessToken, &item.InstitutionID, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotLinked
		}
		return nil, err
	}
	return &item, nil
}

func (s *PostgresStore) UserIDForItem(ctx context.Context, itemID string) (string, error) {
	query := `SELECT user_id FROM plaid_items WHERE item_id = $1`

	var userID string
	err := s.pool.QueryRow(ctx, query, itemID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrItemNotFound
		}
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM plaid_items ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) GetCursor(ctx context.Context, userID string) (string, error) {
	query := `SELECT COALESCE(sync_cursor, '') FROM plaid_items WHERE user_id = $1`
	var cursor string
	err := s.pool.QueryRow(ctx, query, userID).Scan(&cursor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return cursor, nil
}

func (s *PostgresStore) SetCursor(ctx context.Context, userID, cursor string) error {
	query := `UPDATE plaid_items SET sync_cursor = $1 WHERE user_id = $2`
	cmd, err := s.pool.Exec(ctx, query, cursor, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return store.ErrNotLinked
	}
	return nil
}
