package db

import (
	"context"

	"plaid-mcp-server/src/models"
)

func (s *PostgresStore) AppendWebhookEvent(ctx context.Context, userID string, event models.WebhookEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO webhook_events (user_id, item_id, webhook_type, webhook_code, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err = tx.Exec(ctx, query, userID, event.ItemID, event.WebhookType, event.WebhookCode, string(payload), event.ReceivedAt)
	if err != nil {
		return err
	}

	if s.eventsLimit > 0 {
		trim := `
			DELETE FROM webhook_events
			WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM webhook_events WHERE user_id = $1 ORDER BY id DESC LIMIT $2
			)
		`
		if _, err := tx.Exec(ctx, trim, userID, s.eventsLimit); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListWebhookEvents(ctx context.Context, userID string) ([]models.WebhookEvent, error) {
	query := `
		SELECT item_id, webhook_type, webhook_code, payload, received_at
		FROM webhook_events WHERE user_id = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.WebhookEvent{}
	for rows.Next() {
		var e models.WebhookEvent
		var payload []byte
		if err := rows.Scan(&e.ItemID, &e.WebhookType, &e.WebhookCode, &payload, &e.ReceivedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		events = append(events, e)
	}
	return events, rows.Err()
}
