package utils

import (
	"context"
	"strings"
	"time"

	"go-history/internal/api/models"
)

// JournalStore persists refresh summaries.
type JournalStore interface {
	Name() string
	WriteJournal(ctx context.Context, entries []models.JournalEntry) error
	QueryJournal(ctx context.Context, filter JournalFilter) ([]models.JournalEntry, error)
	CleanJournal(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// JournalFilter narrows a journal query. Zero fields are ignored.
type JournalFilter struct {
	From     time.Time
	To       time.Time
	DeviceID string
	Limit    int
}

func (f JournalFilter) matches(e models.JournalEntry) bool {
	if !f.From.IsZero() && e.Time.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Time.After(f.To) {
		return false
	}
	if f.DeviceID != "" && e.DeviceID != f.DeviceID {
		return false
	}
	return true
}

// StorageBackends expands a STORAGE mode into backend names.
func StorageBackends(mode string) []string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "file":
		return []string{"file"}
	case "db":
		return []string{"db"}
	case "postgres":
		return []string{"postgres"}
	case "both":
		return []string{"file", "db"}
	}
	return nil
}

// HasStorage checks if the desired backend exists in the configured list.
func HasStorage(backends []string, want string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	for _, b := range backends {
		if strings.ToLower(strings.TrimSpace(b)) == want {
			return true
		}
	}
	return false
}
