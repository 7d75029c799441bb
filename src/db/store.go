package db

import (
	"context"
	"errors"
	"time"

	"plaid-mcp-server/src/models"
)

var (
	ErrNotLinked    = errors.New("user has no linked Plaid item")
	ErrItemNotFound = errors.New("Item ID not found for any user")
	ErrNoSetting    = errors.New("no refresh setting configured")
)

type CredentialStore interface {
	SaveItem(ctx context.Context, item models.PlaidItem) error
	GetItem(ctx context.Context, userID string) (*models.PlaidItem, error)
	UserIDForItem(ctx context.Context, itemID string) (string, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// CursorStore returns "" for a user that has never synced.
type CursorStore interface {
	GetCursor(ctx context.Context, userID string) (string, error)
	SetCursor(ctx context.Context, userID, cursor string) error
}

// ResetLedger drops both the ledger and the cursor, so the next sync
// replays full history.
type Ledger interface {
	ApplyDelta(ctx context.Context, userID string, delta models.TransactionDelta) error
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	ResetLedger(ctx context.Context, userID string) error
}

type SettingsStore interface {
	GetRefreshSetting(ctx context.Context, userID string) (*models.RefreshSetting, error)
	SaveRefreshSetting(ctx context.Context, setting models.RefreshSetting) error
	TouchLastRefreshed(ctx context.Context, userID string, at time.Time) error
}

type EventLog interface {
	AppendWebhookEvent(ctx context.Context, userID string, event models.WebhookEvent) error
	ListWebhookEvents(ctx context.Context, userID string) ([]models.WebhookEvent, error)
}

// Store is the full per-user state of the server. Every entry is keyed by
// the caller supplied user identifier.
type Store interface {
	CredentialStore
	CursorStore
	Ledger
	SettingsStore
	EventLog
}
