package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"plaid-mcp-server/src/db"
	"plaid-mcp-server/src/metrics"
	"plaid-mcp-server/src/models"
	"plaid-mcp-server/src/txsync"
)

var ErrInvalidSchedule = errors.New("invalid refresh schedule")

// Runner registers recurring triggers. *cron.Cron satisfies it.
type Runner interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Remove(id cron.EntryID)
}

type Syncer interface {
	RefreshAndSync(ctx context.Context, userID string) (*models.SyncResult, error)
}

type Store interface {
	db.CredentialStore
	db.SettingsStore
}

// Scheduler keeps at most one refresh trigger per user.
type Scheduler struct {
	runner  Runner
	syncer  Syncer
	store   Store
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewCron builds the cron runner used in production. A panicking firing is
// recovered and logged instead of taking the runner down.
func NewCron() *cron.Cron {
	return cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
}

func New(runner Runner, syncer Syncer, store Store, timeout time.Duration) *Scheduler {
	return &Scheduler{
		runner:  runner,
		syncer:  syncer,
		store:   store,
		timeout: timeout,
		entries: make(map[string]cron.EntryID),
	}
}

// ScheduleFor maps a frequency to a standard five field cron expression.
func ScheduleFor(frequency models.Frequency, custom string) (string, error) {
	switch frequency {
	case models.FrequencyDaily:
		return "0 0 * * *", nil
	case models.FrequencyWeekly:
		return "0 0 * * 0", nil
	case models.FrequencyMonthly:
		return "0 0 1 * *", nil
	case models.FrequencyCustom:
		if custom == "" {
			return "", fmt.Errorf("%w: custom frequency requires a schedule", ErrInvalidSchedule)
		}
		if _, err := cron.ParseStandard(custom); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		return custom, nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidSchedule, frequency)
	}
}

// Configure replaces the user's refresh trigger and persists the setting.
// Nothing changes when validation fails.
func (s *Scheduler) Configure(ctx context.Context, userID string, frequency models.Frequency, custom string) (*models.RefreshSetting, error) {
	schedule, err := ScheduleFor(frequency, custom)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetItem(ctx, userID); err != nil {
		return nil, err
	}

	setting := models.RefreshSetting{
		UserID:    userID,
		Frequency: frequency,
		Schedule:  schedule,
		UpdatedAt: time.Now(),
	}
	if frequency == models.FrequencyCustom {
		setting.CustomSchedule = custom
	}

	prev, err := s.store.GetRefreshSetting(ctx, userID)
	switch {
	case err == nil:
		setting.LastRefreshed = prev.LastRefreshed
	case !errors.Is(err, db.ErrNoSetting):
		return nil, fmt.Errorf("failed to load refresh setting: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.runner.AddFunc(schedule, s.fireFunc(userID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if err := s.store.SaveRefreshSetting(ctx, setting); err != nil {
		s.runner.Remove(id)
		return nil, fmt.Errorf("failed to save refresh setting: %w", err)
	}
	if old, ok := s.entries[userID]; ok {
		s.runner.Remove(old)
	}
	s.entries[userID] = id

	log.Printf("INFO: Refresh schedule for user %s set to %s (%s)", userID, frequency, schedule)
	return &setting, nil
}

// Cancel removes the user's trigger. It reports whether one existed.
func (s *Scheduler) Cancel(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[userID]
	if !ok {
		return false
	}
	s.runner.Remove(id)
	delete(s.entries, userID)
	return true
}

func (s *Scheduler) Active(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[userID]
	return ok
}

// RestoreSchedules registers a trigger for every persisted setting. It is
// run once at startup and returns the number of triggers registered.
func (s *Scheduler) RestoreSchedules(ctx context.Context) (int, error) {
	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for _, userID := range userIDs {
		setting, err := s.store.GetRefreshSetting(ctx, userID)
		if errors.Is(err, db.ErrNoSetting) || (err == nil && setting.Schedule == "") {
			continue
		}
		if err != nil {
			log.Printf("ERROR: Failed to load refresh setting for user %s: %v", userID, err)
			continue
		}
		if _, ok := s.entries[userID]; ok {
			continue
		}

		id, err := s.runner.AddFunc(setting.Schedule, s.fireFunc(userID))
		if err != nil {
			log.Printf("ERROR: Stored schedule %q for user %s rejected: %v", setting.Schedule, userID, err)
			continue
		}
		s.entries[userID] = id
		restored++
	}
	return restored, nil
}

func (s *Scheduler) fireFunc(userID string) func() {
	return func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		log.Printf("INFO: Scheduled refresh firing for user %s", userID)
		result, err := s.syncer.RefreshAndSync(ctx, userID)
		txsync.RecordRun("scheduled", err)
		metrics.ScheduledFirings.WithLabelValues(metrics.Outcome(err)).Inc()
		if err != nil {
			log.Printf("ERROR: Scheduled refresh for user %s failed: %v", userID, err)
			return
		}
		log.Printf("INFO: Scheduled refresh for user %s merged %d pages", userID, result.Pages)
	}
}
