package logics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-history/internal/api/models"
	"go-history/internal/config"
	"go-history/internal/utils"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Journal fans refresh summaries out to every configured store and keeps
// them within the retention window.
type Journal struct {
	stores    []utils.JournalStore
	retention time.Duration
	clock     func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewJournal wraps already opened stores. A retention of zero disables cleanup.
func NewJournal(retention time.Duration, stores ...utils.JournalStore) *Journal {
	return &Journal{stores: stores, retention: retention, clock: utils.NowUTC}
}

// OpenJournal opens the stores selected by STORAGE. A backend that fails to
// open is logged and skipped.
func OpenJournal(ctx context.Context, env *config.EnvConfig) *Journal {
	var stores []utils.JournalStore
	for _, backend := range utils.StorageBackends(env.Storage) {
		var (
			store utils.JournalStore
			err   error
		)
		switch backend {
		case "file":
			store, err = utils.NewFileJournal(env.BaseLogFolder)
		case "db":
			store, err = utils.OpenSQLiteJournal(env.GetDatabasePath(), utils.DefaultJournalTable)
		case "postgres":
			store, err = utils.OpenPostgresJournal(ctx, env.GetPostgresDSN(), utils.DefaultJournalTable)
		}
		if err != nil {
			utils.LogWarnWithContext("journal", fmt.Sprintf("storage backend %s unavailable", backend), err)
			continue
		}
		stores = append(stores, store)
	}

	retention := time.Duration(env.JournalRetentionDays) * 24 * time.Hour
	if !env.JournalCleanupEnabled {
		retention = 0
	}
	return NewJournal(retention, stores...)
}

// Enabled reports whether at least one store is attached.
func (j *Journal) Enabled() bool { return j != nil && len(j.stores) > 0 }

// Backends lists the names of the attached stores.
func (j *Journal) Backends() []string {
	if !j.Enabled() {
		return []string{}
	}
	names := make([]string, 0, len(j.stores))
	for _, s := range j.stores {
		names = append(names, s.Name())
	}
	return names
}

// Record assigns ids to entries without one and writes them to every store.
func (j *Journal) Record(ctx context.Context, entries []models.JournalEntry) error {
	if !j.Enabled() || len(entries) == 0 {
		return nil
	}
	batch := make([]models.JournalEntry, len(entries))
	copy(batch, entries)
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = uuid.NewString()
		}
	}

	var errs []error
	for _, s := range j.stores {
		if err := s.WriteJournal(ctx, batch); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Query reads from the first store that answers.
func (j *Journal) Query(ctx context.Context, filter utils.JournalFilter) ([]models.JournalEntry, error) {
	if !j.Enabled() {
		return []models.JournalEntry{}, nil
	}
	var lastErr error
	for _, s := range j.stores {
		entries, err := s.QueryJournal(ctx, filter)
		if err == nil {
			if entries == nil {
				entries = []models.JournalEntry{}
			}
			return entries, nil
		}
		utils.LogWarnWithContext("journal", fmt.Sprintf("query failed on %s", s.Name()), err)
		lastErr = err
	}
	return nil, lastErr
}

// Cleanup removes entries older than the retention window from every store.
func (j *Journal) Cleanup(ctx context.Context) (int64, error) {
	if !j.Enabled() || j.retention <= 0 {
		return 0, nil
	}
	cutoff := j.clock().Add(-j.retention)

	var total int64
	var errs []error
	for _, s := range j.stores {
		n, err := s.CleanJournal(ctx, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		total += n
	}
	utils.LogInfo("journal cleanup completed: %d old entries removed before %s", total, utils.FormatTimestampUTC(cutoff))
	return total, errors.Join(errs...)
}

// StartRetention schedules Cleanup daily. It is a no-op when cleanup is disabled.
func (j *Journal) StartRetention() error {
	if !j.Enabled() || j.retention <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc("@daily", func() {
		if _, err := j.Cleanup(context.Background()); err != nil {
			utils.LogWarnWithContext("journal", "scheduled cleanup failed", err)
		}
	}); err != nil {
		return utils.NewConfigError("CRON_FAILED", "failed to schedule journal cleanup", err)
	}
	c.Start()
	j.cron = c
	return nil
}

// Close stops the scheduler and closes every store.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	if j.cron != nil {
		<-j.cron.Stop().Done()
		j.cron = nil
	}
	j.mu.Unlock()

	var errs []error
	for _, s := range j.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
