package utils

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-history/internal/api/models"
	"go-history/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultJournalTable is the table journal entries are written to.
const DefaultJournalTable = "history_journal"

// journalTimeLayout is fixed width so text comparison follows time order.
const journalTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatJournalTime(t time.Time) string {
	return t.UTC().Format(journalTimeLayout)
}

// SQLiteJournal stores journal entries in a SQLite table.
type SQLiteJournal struct {
	db    *sql.DB
	table string
}

// OpenSQLiteJournal opens dsn and ensures the journal table exists.
func OpenSQLiteJournal(dsn, table string) (*SQLiteJournal, error) {
	name := SanitizeTableName(table)
	if name == "" {
		name = DefaultJournalTable
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, NewDatabaseError("OPEN_FAILED", "failed to open sqlite database", err)
	}

	maxConn, connTimeout, idleTimeout := getDatabaseConfig()
	db.SetMaxOpenConns(maxConn)
	db.SetConnMaxLifetime(time.Duration(connTimeout) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(idleTimeout) * time.Second)

	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, NewDatabaseError("PING_FAILED", "failed to ping database", fmt.Errorf("%w: %v", ErrDatabaseConnection, err))
	}

	j := &SQLiteJournal{db: db, table: name}
	if err = j.ensureTable(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func getDatabaseConfig() (maxConn, connTimeout, idleTimeout int) {
	env := config.GetEnvConfig()
	return env.DBMaxConnections, env.DBConnectionTimeout, env.DBIdleTimeout
}

// open returns the handle, or ErrDatabaseNotInit for a journal that was never opened.
func (j *SQLiteJournal) open() (*sql.DB, error) {
	if j == nil || j.db == nil {
		return nil, NewDatabaseError("NOT_INITIALIZED", "sqlite journal is not open", ErrDatabaseNotInit)
	}
	return j.db, nil
}

func (j *SQLiteJournal) Name() string { return "db" }

// ensureTable creates the journal table and its indexes if they don't exist
func (j *SQLiteJournal) ensureTable() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			device_id TEXT NOT NULL,
			measurement_id TEXT NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`, j.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s(timestamp);`, j.table, j.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_device ON %s(device_id, timestamp);`, j.table, j.table),
	}

	for _, stmt := range statements {
		if _, err := j.db.Exec(stmt); err != nil {
			return NewDatabaseError("SCHEMA_FAILED", fmt.Sprintf("failed to ensure table %s", j.table), err)
		}
	}
	return nil
}

// WriteJournal inserts entries in one transaction.
func (j *SQLiteJournal) WriteJournal(ctx context.Context, entries []models.JournalEntry) error {
	db, err := j.open()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError("TX_FAILED", "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (id, timestamp, device_id, measurement_id, failed, data) VALUES (?, ?, ?, ?, ?, ?)`, j.table)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return NewDataError("MARSHAL_FAILED", "failed to marshal journal entry", errors.Join(ErrDataMarshalFailed, err))
		}
		if _, err := tx.ExecContext(ctx, query, e.ID, formatJournalTime(e.Time), e.DeviceID, e.MeasurementID, e.Failed, string(data)); err != nil {
			return NewDatabaseError("WRITE_FAILED", "failed to write journal entry", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return NewDatabaseError("TX_FAILED", "failed to commit journal entries", err)
	}
	return nil
}

// QueryJournal returns matching entries, newest first.
func (j *SQLiteJournal) QueryJournal(ctx context.Context, filter JournalFilter) ([]models.JournalEntry, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE 1=1`, j.table)
	var args []any

	if !filter.From.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, formatJournalTime(filter.From))
	}
	if !filter.To.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, formatJournalTime(filter.To))
	}
	if filter.DeviceID != "" {
		query += ` AND device_id = ?`
		args = append(args, filter.DeviceID)
	}
	query += ` ORDER BY timestamp DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	db, err := j.open()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewDatabaseError("QUERY_FAILED", "failed to query journal", fmt.Errorf("%w: %v", ErrQueryFailed, err))
	}
	defer rows.Close()

	return scanJournalRows(rows)
}

// CleanJournal deletes entries older than cutoff.
func (j *SQLiteJournal) CleanJournal(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE timestamp < ?`, j.table)
	db, err := j.open()
	if err != nil {
		return 0, err
	}
	result, err := db.ExecContext(ctx, query, formatJournalTime(cutoff))
	if err != nil {
		return 0, NewDatabaseError("CLEAN_FAILED", "failed to delete old entries", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (j *SQLiteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func scanJournalRows(rows *sql.Rows) ([]models.JournalEntry, error) {
	var entries []models.JournalEntry
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, NewDatabaseError("SCAN_FAILED", "failed to scan row", err)
		}
		var entry models.JournalEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, NewDataError("UNMARSHAL_FAILED", "failed to unmarshal journal entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError("QUERY_FAILED", "row iteration error", err)
	}
	return entries, nil
}
