package txsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"plaid-mcp-server/src/db"
	"plaid-mcp-server/src/metrics"
	"plaid-mcp-server/src/models"
)

// Provider is the part of the Plaid API the engine drives.
type Provider interface {
	SyncTransactions(ctx context.Context, accessToken, cursor string, count int32) (*models.SyncPage, error)
	RefreshTransactions(ctx context.Context, accessToken string) error
}

// Store is the state the engine reads and advances.
type Store interface {
	db.CredentialStore
	db.CursorStore
	db.Ledger
	db.SettingsStore
}

type Config struct {
	PageSize       int32
	SettleInterval time.Duration
}

// Engine drains the delta-sync endpoint for one user at a time and merges
// the result into the ledger.
type Engine struct {
	provider Provider
	store    Store
	config   Config

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

func NewEngine(provider Provider, store Store, config Config) *Engine {
	return &Engine{
		provider: provider,
		store:    store,
		config:   config,
		locks:    make(map[string]*semaphore.Weighted),
		now:      time.Now,
		wait:     sleep,
	}
}

// AdvanceSync pulls every pending page for the user. Runs for the same user
// are serialized: a caller that arrives during a run waits for it and then
// drains from the cursor that run committed. Each caller's run is bound to
// its own context.
//
// Each page is merged before its cursor is stored. On error the returned
// result covers the pages that were merged, and a retry resumes from the
// last stored cursor.
func (e *Engine) AdvanceSync(ctx context.Context, userID string) (*models.SyncResult, error) {
	lock := e.userLock(userID)
	if err := lock.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for running sync: %w", err)
	}
	defer lock.Release(1)

	return e.advance(ctx, userID)
}

func (e *Engine) userLock(userID string) *semaphore.Weighted {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[userID]
	if !ok {
		lock = semaphore.NewWeighted(1)
		e.locks[userID] = lock
	}
	return lock
}

func (e *Engine) advance(ctx context.Context, userID string) (*models.SyncResult, error) {
	item, err := e.store.GetItem(ctx, userID)
	if err != nil {
		return nil, err
	}

	cursor, err := e.store.GetCursor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync cursor: %w", err)
	}

	result := &models.SyncResult{UserID: userID, StartCursor: cursor, Cursor: cursor}
	for {
		page, err := e.provider.SyncTransactions(ctx, item.AccessToken, cursor, e.config.PageSize)
		if err != nil {
			return result, fmt.Errorf("failed to fetch sync page %d: %w", result.Pages+1, err)
		}

		if err := e.store.ApplyDelta(ctx, userID, page.TransactionDelta); err != nil {
			return result, fmt.Errorf("failed to merge sync page %d: %w", result.Pages+1, err)
		}
		if err := e.store.SetCursor(ctx, userID, page.NextCursor); err != nil {
			return result, fmt.Errorf("failed to update sync cursor: %w", err)
		}

		cursor = page.NextCursor
		result.Accumulate(*page)
		metrics.SyncPages.Inc()

		if !page.HasMore {
			break
		}
	}

	if err := e.store.TouchLastRefreshed(ctx, userID, e.now()); err != nil {
		log.Printf("ERROR: Failed to record last refresh for user %s: %v", userID, err)
	}

	log.Printf("INFO: Transaction sync for user %s completed: pages=%d added=%d modified=%d removed=%d",
		userID, result.Pages, result.AddedCount(), result.ModifiedCount(), result.RemovedCount())

	return result, nil
}

// Refresh asks Plaid to pull fresh data from the institution.
func (e *Engine) Refresh(ctx context.Context, userID string) error {
	item, err := e.store.GetItem(ctx, userID)
	if err != nil {
		return err
	}
	return e.provider.RefreshTransactions(ctx, item.AccessToken)
}

// RefreshAndSync requests an upstream refresh, waits the settle interval and
// then syncs. A failed refresh is logged and the sync still runs against
// whatever data Plaid already has.
func (e *Engine) RefreshAndSync(ctx context.Context, userID string) (*models.SyncResult, error) {
	if err := e.Refresh(ctx, userID); err != nil {
		if errors.Is(err, db.ErrNotLinked) {
			return nil, err
		}
		log.Printf("WARN: Transaction refresh failed for user %s, syncing existing data: %v", userID, err)
	}

	if err := e.wait(ctx, e.config.SettleInterval); err != nil {
		return nil, err
	}

	return e.AdvanceSync(ctx, userID)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RecordRun counts a finished run under the given trigger.
func RecordRun(trigger string, err error) {
	metrics.SyncRuns.WithLabelValues(trigger, metrics.Outcome(err)).Inc()
}
