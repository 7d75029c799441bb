package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"plaid-mcp-server/src/db"
	"plaid-mcp-server/src/metrics"
	"plaid-mcp-server/src/models"
	"plaid-mcp-server/src/txsync"
)

var (
	ErrUnknownItem   = db.ErrItemNotFound
	ErrMissingItemID = errors.New("webhook payload has no item_id")
)

const TransactionsWebhook = "TRANSACTIONS"

// syncCodes are the TRANSACTIONS codes that mean new data is ready. The
// legacy update codes are kept for items created before delta sync.
var syncCodes = map[string]bool{
	"SYNC_UPDATES_AVAILABLE": true,
	"INITIAL_UPDATE":         true,
	"HISTORICAL_UPDATE":      true,
	"DEFAULT_UPDATE":         true,
	"TRANSACTIONS_REMOVED":   true,
}

type Syncer interface {
	AdvanceSync(ctx context.Context, userID string) (*models.SyncResult, error)
}

type Store interface {
	db.CredentialStore
	db.EventLog
}

// DispatchResult reports what happened to one webhook. A failed sync is
// reported here rather than failing the dispatch, since the event itself was
// accepted and recorded.
type DispatchResult struct {
	UserID      string              `json:"user_id"`
	WebhookType string              `json:"webhook_type"`
	WebhookCode string              `json:"webhook_code"`
	Synced      bool                `json:"synced"`
	Sync        *models.SyncSummary `json:"sync,omitempty"`
	SyncError   string              `json:"sync_error,omitempty"`
}

type Dispatcher struct {
	store  Store
	syncer Syncer
	now    func() time.Time
}

func NewDispatcher(store Store, syncer Syncer) *Dispatcher {
	return &Dispatcher{store: store, syncer: syncer, now: time.Now}
}

// IsSyncTrigger reports whether the event should pull new transactions.
func IsSyncTrigger(webhookType, webhookCode string) bool {
	return webhookType == TransactionsWebhook && syncCodes[webhookCode]
}

func (d *Dispatcher) Handle(ctx context.Context, body []byte) (*DispatchResult, error) {
	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhookEvents.WithLabelValues("invalid", "error").Inc()
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if payload.ItemID == "" {
		metrics.WebhookEvents.WithLabelValues(payload.WebhookType, "error").Inc()
		return nil, ErrMissingItemID
	}

	userID, err := d.store.UserIDForItem(ctx, payload.ItemID)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(payload.WebhookType, "unknown_item").Inc()
		log.Printf("WARN: Webhook %s/%s for unrecognized item %s", payload.WebhookType, payload.WebhookCode, payload.ItemID)
		return nil, err
	}

	event := models.WebhookEvent{
		ReceivedAt:  d.now(),
		WebhookType: payload.WebhookType,
		WebhookCode: payload.WebhookCode,
		ItemID:      payload.ItemID,
		Payload:     json.RawMessage(append([]byte(nil), body...)),
	}
	if err := d.store.AppendWebhookEvent(ctx, userID, event); err != nil {
		metrics.WebhookEvents.WithLabelValues(payload.WebhookType, "error").Inc()
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}

	log.Printf("INFO: Webhook %s/%s recorded for user %s", payload.WebhookType, payload.WebhookCode, userID)

	result := &DispatchResult{
		UserID:      userID,
		WebhookType: payload.WebhookType,
		WebhookCode: payload.WebhookCode,
	}
	if !IsSyncTrigger(payload.WebhookType, payload.WebhookCode) {
		metrics.WebhookEvents.WithLabelValues(payload.WebhookType, "recorded").Inc()
		return result, nil
	}

	sync, err := d.syncer.AdvanceSync(ctx, userID)
	txsync.RecordRun("webhook", err)
	if err != nil {
		log.Printf("ERROR: Webhook triggered sync for user %s failed: %v", userID, err)
		metrics.WebhookEvents.WithLabelValues(payload.WebhookType, "sync_failed").Inc()
		result.SyncError = err.Error()
		return result, nil
	}

	summary := sync.Summary()
	result.Synced = true
	result.Sync = &summary
	metrics.WebhookEvents.WithLabelValues(payload.WebhookType, "synced").Inc()
	return result, nil
}
