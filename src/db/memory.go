package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"plaid-mcp-server/src/models"
)

// MemoryStore keeps all state in process memory. State is lost on restart.
type MemoryStore struct {
	mu          sync.RWMutex
	items       map[string]models.PlaidItem
	itemOwners  map[string]string
	cursors     map[string]string
	ledgers     map[string]map[string]models.Transaction
	settings    map[string]models.RefreshSetting
	events      map[string][]models.WebhookEvent
	eventsLimit int
}

// NewMemoryStore creates an empty store. eventsLimit caps the webhook log
// per user; zero or less keeps every event.
func NewMemoryStore(eventsLimit int) *MemoryStore {
	return &MemoryStore{
		items:       make(map[string]models.PlaidItem),
		itemOwners:  make(map[string]string),
		cursors:     make(map[string]string),
		ledgers:     make(map[string]map[string]models.Transaction),
		settings:    make(map[string]models.RefreshSetting),
		events:      make(map[string][]models.WebhookEvent),
		eventsLimit: eventsLimit,
	}
}

func (s *MemoryStore) SaveItem(ctx context.Context, item models.PlaidItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.items[item.UserID]; ok && prev.ItemID != item.ItemID {
		delete(s.itemOwners, prev.ItemID)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	s.items[item.UserID] = item
	s.itemOwners[item.ItemID] = item.UserID
	return nil
}

func (s *MemoryStore) GetItem(ctx context.Context, userID string) (*models.PlaidItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[userID]
	if !ok {
		return nil, ErrNotLinked
	}
	return &item, nil
}

func (s *MemoryStore) UserIDForItem(ctx context.Context, itemID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.itemOwners[itemID]
	if !ok {
		return "", ErrItemNotFound
	}
	return userID, nil
}

func (s *MemoryStore) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) GetCursor(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[userID], nil
}

func (s *MemoryStore) SetCursor(ctx context.Context, userID, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[userID] = cursor
	return nil
}

func (s *MemoryStore) ApplyDelta(ctx context.Context, userID string, delta models.TransactionDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[userID]
	if !ok {
		ledger = make(map[string]models.Transaction)
		s.ledgers[userID] = ledger
	}
	ApplyDelta(ledger, delta)
	return nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger := s.ledgers[userID]
	txns := make([]models.Transaction, 0, len(ledger))
	for _, txn := range ledger {
		txns = append(txns, txn)
	}
	SortTransactions(txns)
	return txns, nil
}

func (s *MemoryStore) ResetLedger(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.ledgers, userID)
	delete(s.cursors, userID)
	return nil
}

func (s *MemoryStore) GetRefreshSetting(ctx context.Context, userID string) (*models.RefreshSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, ok := s.settings[userID]
	if !ok {
		return nil, ErrNoSetting
	}
	return &setting, nil
}

func (s *MemoryStore) SaveRefreshSetting(ctx context.Context, setting models.RefreshSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now()
	}
	s.settings[setting.UserID] = setting
	return nil
}

func (s *MemoryStore) TouchLastRefreshed(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	setting, ok := s.settings[userID]
	if !ok {
		setting = models.RefreshSetting{UserID: userID}
	}
	setting.LastRefreshed = &at
	s.settings[userID] = setting
	return nil
}

func (s *MemoryStore) AppendWebhookEvent(ctx context.Context, userID string, event models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := append(s.events[userID], event)
	if s.eventsLimit > 0 && len(events) > s.eventsLimit {
		events = append([]models.WebhookEvent(nil), events[len(events)-s.eventsLimit:]...)
	}
	s.events[userID] = events
	return nil
}

func (s *MemoryStore) ListWebhookEvents(ctx context.Context, userID string) ([]models.WebhookEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]models.WebhookEvent, len(s.events[userID]))
	copy(events, s.events[userID])
	return events, nil
}
