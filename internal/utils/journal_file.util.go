package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go-history/internal/api/models"
)

const journalDayLayout = "2006-01-02"

// FileJournal keeps one JSON array file per UTC day under dir.
type FileJournal struct {
	dir string
	mu  sync.Mutex
}

// NewFileJournal creates dir if needed.
func NewFileJournal(dir string) (*FileJournal, error) {
	if IsEmptyOrWhitespace(dir) {
		return nil, NewConfigError("INVALID_LOG_FOLDER", "journal folder is empty", ErrInvalidConfig)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, NewFileSystemError("MKDIR_FAILED", "failed to create journal directory", err)
	}
	return &FileJournal{dir: dir}, nil
}

func (j *FileJournal) Name() string { return "file" }

func (j *FileJournal) pathFor(day time.Time) string {
	return filepath.Join(j.dir, fmt.Sprintf("%s.log", day.UTC().Format(journalDayLayout)))
}

// WriteJournal appends entries to the file of each entry's day.
func (j *FileJournal) WriteJournal(ctx context.Context, entries []models.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	byFile := make(map[string][]models.JournalEntry)
	for _, e := range entries {
		p := j.pathFor(e.Time)
		byFile[p] = append(byFile[p], e)
	}

	for path, batch := range byFile {
		existing, err := readJournalFile(path)
		if err != nil {
			return err
		}
		existing = append(existing, batch...)

		data, err := json.Marshal(existing)
		if err != nil {
			return NewDataError("MARSHAL_FAILED", "failed to marshal journal entries", errors.Join(ErrDataMarshalFailed, err))
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return NewFileSystemError("WRITE_FAILED", "failed to write journal file", err)
		}
	}
	return nil
}

// QueryJournal reads the day files overlapping the filter, newest first.
func (j *FileJournal) QueryJournal(ctx context.Context, filter JournalFilter) ([]models.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	files, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, NewFileSystemError("READ_DIR_FAILED", "failed to read journal directory", err)
	}

	var out []models.JournalEntry
	for _, file := range files {
		day, ok := journalFileDay(file)
		if !ok {
			continue
		}
		if !filter.From.IsZero() && day.Add(24*time.Hour).Before(filter.From.UTC()) {
			continue
		}
		if !filter.To.IsZero() && day.After(filter.To.UTC()) {
			continue
		}
		entries, err := readJournalFile(filepath.Join(j.dir, file.Name()))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if filter.matches(e) {
				out = append(out, e)
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Time.After(out[b].Time) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CleanJournal removes day files older than cutoff.
func (j *FileJournal) CleanJournal(ctx context.Context, cutoff time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	files, err := os.ReadDir(j.dir)
	if err != nil {
		return 0, NewFileSystemError("READ_DIR_FAILED", "failed to read journal directory", err)
	}

	cutoffDay := cutoff.UTC().Truncate(24 * time.Hour)
	var removed int64
	for _, file := range files {
		day, ok := journalFileDay(file)
		if !ok || !day.Before(cutoffDay) {
			continue
		}
		path := filepath.Join(j.dir, file.Name())
		if err := os.Remove(path); err != nil {
			LogWarnWithContext("journal", fmt.Sprintf("failed to remove old journal file %s", path), err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (j *FileJournal) Close() error { return nil }

func journalFileDay(file os.DirEntry) (time.Time, bool) {
	if file.IsDir() || filepath.Ext(file.Name()) != ".log" {
		return time.Time{}, false
	}
	day, err := time.Parse(journalDayLayout, strings.TrimSuffix(file.Name(), ".log"))
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func readJournalFile(path string) ([]models.JournalEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewFileSystemError("READ_FAILED", "failed to read journal file", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []models.JournalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupted day file restarts empty.
		LogWarnWithContext("journal", fmt.Sprintf("discarding unreadable journal file %s", path), err)
		return nil, nil
	}
	return entries, nil
}
