package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	store "plaid-mcp-server/src/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS plaid_items (
	user_id        TEXT PRIMARY KEY,
	item_id        TEXT NOT NULL UNIQUE,
	access_token   TEXT NOT NULL,
	institution_id TEXT NOT NULL DEFAULT '',
	sync_cursor    TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
	user_id           TEXT NOT NULL,
	transaction_id    TEXT NOT NULL,
	account_id        TEXT NOT NULL,
	amount            DOUBLE PRECISION NOT NULL,
	date              TEXT NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	merchant_name     TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT '',
	pending           BOOLEAN NOT NULL DEFAULT FALSE,
	iso_currency_code TEXT NOT NULL DEFAULT '',
	payment_channel   TEXT NOT NULL DEFAULT '',
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, transaction_id)
);

CREATE TABLE IF NOT EXISTS refresh_settings (
	user_id         TEXT PRIMARY KEY,
	frequency       TEXT NOT NULL DEFAULT '',
	schedule        TEXT NOT NULL DEFAULT '',
	custom_schedule TEXT NOT NULL DEFAULT '',
	last_refreshed  TIMESTAMPTZ,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS webhook_events (
	id           BIGSERIAL PRIMARY KEY,
	user_id      TEXT NOT NULL,
	item_id      TEXT NOT NULL,
	webhook_type TEXT NOT NULL,
	webhook_code TEXT NOT NULL,
	payload      JSONB NOT NULL,
	received_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS webhook_events_user_idx ON webhook_events (user_id, id);
`

var _ store.Store = (*PostgresStore)(nil)

// PostgresStore is the durable backend of db.Store.
type PostgresStore struct {
	pool        *pgxpool.Pool
	eventsLimit int
}

func NewPostgresStore(pool *pgxpool.Pool, eventsLimit int) *PostgresStore {
	return &PostgresStore{pool: pool, eventsLimit: eventsLimit}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}
