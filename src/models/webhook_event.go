package models

import (
	"encoding/json"
	"time"
)

type WebhookPayload struct {
	WebhookType string `json:"webhook_type"`
	WebhookCode string `json:"webhook_code"`
	ItemID      string `json:"item_id"`
}

type WebhookEvent struct {
	ReceivedAt  time.Time       `json:"received_at"`
	WebhookType string          `json:"webhook_type"`
	WebhookCode string          `json:"webhook_code"`
	ItemID      string          `json:"item_id"`
	Payload     json.RawMessage `json:"payload"`
}
