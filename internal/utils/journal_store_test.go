package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-history/internal/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func journalFixture() []models.JournalEntry {
	return []models.JournalEntry{
		{ID: "a", Time: time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC), DeviceID: "dev-1", MeasurementID: "temp", Period: models.PeriodLastHour, Stats: models.Stats{Avg: 1}},
		{ID: "b", Time: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), DeviceID: "dev-1", MeasurementID: "hum", Period: models.PeriodLastHour, Failed: true},
		{ID: "c", Time: time.Date(2024, 3, 10, 11, 0, 0, 500, time.UTC), DeviceID: "dev-2", MeasurementID: "temp", Period: models.PeriodThisYear, Stats: models.Stats{Total: 9.5}},
	}
}

func exerciseJournalStore(t *testing.T, store JournalStore) {
	ctx := context.Background()
	require.NoError(t, store.WriteJournal(ctx, journalFixture()))

	all, err := store.QueryJournal(ctx, JournalFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)
	assert.Equal(t, 9.5, all[0].Stats.Total)
	assert.Equal(t, models.PeriodThisYear, all[0].Period)

	day, err := store.QueryJournal(ctx, JournalFilter{
		From: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, day, 2)

	dev, err := store.QueryJournal(ctx, JournalFilter{DeviceID: "dev-1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, dev, 1)
	assert.Equal(t, "b", dev[0].ID)
	assert.True(t, dev[0].Failed)

	removed, err := store.CleanJournal(ctx, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	rest, err := store.QueryJournal(ctx, JournalFilter{})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestFileJournal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileJournal(dir)
	require.NoError(t, err)
	defer store.Close()

	exerciseJournalStore(t, store)
	_, err = os.Stat(filepath.Join(dir, "2024-03-10.log"))
	assert.NoError(t, err)
}

func TestFileJournalCorruptedFileRestarts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-03-10.log"), []byte("{not json"), 0644))

	store, err := NewFileJournal(dir)
	require.NoError(t, err)
	require.NoError(t, store.WriteJournal(context.Background(), journalFixture()[1:2]))

	entries, err := store.QueryJournal(context.Background(), JournalFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewFileJournalEmptyDir(t *testing.T) {
	_, err := NewFileJournal("  ")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestUnopenedJournalsReportNotInitialized(t *testing.T) {
	ctx := context.Background()
	for _, store := range []JournalStore{&SQLiteJournal{table: DefaultJournalTable}, &PostgresJournal{table: DefaultJournalTable}} {
		t.Run(store.Name(), func(t *testing.T) {
			assert.ErrorIs(t, store.WriteJournal(ctx, journalFixture()), ErrDatabaseNotInit)

			_, err := store.QueryJournal(ctx, JournalFilter{})
			assert.ErrorIs(t, err, ErrDatabaseNotInit)

			_, err = store.CleanJournal(ctx, time.Now())
			assert.ErrorIs(t, err, ErrDatabaseNotInit)
			assert.Equal(t, ErrorTypeDatabase, GetErrorType(err))

			assert.NoError(t, store.Close())
		})
	}
}

func TestSQLiteJournal(t *testing.T) {
	store, err := OpenSQLiteJournal(filepath.Join(t.TempDir(), "history.db"), "")
	require.NoError(t, err)
	defer store.Close()

	exerciseJournalStore(t, store)
}

func TestSQLiteJournalUpsert(t *testing.T) {
	store, err := OpenSQLiteJournal(filepath.Join(t.TempDir(), "history.db"), "journal test")
	require.NoError(t, err)
	defer store.Close()

	entry := journalFixture()[0]
	require.NoError(t, store.WriteJournal(context.Background(), []models.JournalEntry{entry}))
	entry.Stats.Avg = 42
	require.NoError(t, store.WriteJournal(context.Background(), []models.JournalEntry{entry}))

	entries, err := store.QueryJournal(context.Background(), JournalFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 42.0, entries[0].Stats.Avg)
}

func TestBuildPGJournalQuery(t *testing.T) {
	q, args := buildPGJournalQuery("history_journal", JournalFilter{
		From:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DeviceID: "dev-1",
		Limit:    10,
	})
	assert.Equal(t, `SELECT data FROM "history_journal" WHERE timestamp >= $1 AND device_id = $2 ORDER BY timestamp DESC LIMIT 10`, q)
	assert.Len(t, args, 2)

	q, args = buildPGJournalQuery("history_journal", JournalFilter{})
	assert.Equal(t, `SELECT data FROM "history_journal" ORDER BY timestamp DESC`, q)
	assert.Empty(t, args)
}

func TestOpenPostgresJournalRequiresDSN(t *testing.T) {
	_, err := OpenPostgresJournal(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStorageBackends(t *testing.T) {
	assert.Equal(t, []string{"file", "db"}, StorageBackends("BOTH"))
	assert.Equal(t, []string{"postgres"}, StorageBackends("postgres"))
	assert.Nil(t, StorageBackends("none"))
	assert.True(t, HasStorage(StorageBackends("both"), "db"))
	assert.False(t, HasStorage(StorageBackends("file"), "db"))
}
