package utils

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-history/internal/api/models"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// PostgresJournal stores journal entries in a Postgres table with a jsonb payload.
type PostgresJournal struct {
	db    *sql.DB
	table string
}

func pqQuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// OpenPostgresJournal connects to dsn. It tries the "pgx" driver name first,
// then falls back to "postgres".
func OpenPostgresJournal(ctx context.Context, dsn, table string) (*PostgresJournal, error) {
	dsn = strings.TrimSpace(dsn)
	if IsEmptyOrWhitespace(dsn) {
		return nil, NewConfigError("POSTGRES_CONFIG", "postgres configuration is incomplete", ErrInvalidConfig)
	}

	db, err := openPostgres(dsn)
	if err != nil {
		return nil, NewDatabaseError("OPEN_FAILED", "failed to open postgres", err)
	}

	maxConn, connTimeout, idleTimeout := getDatabaseConfig()
	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxConn / 2)
	db.SetConnMaxLifetime(time.Duration(connTimeout) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(idleTimeout) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, NewDatabaseError("PING_FAILED", "failed to ping postgres", fmt.Errorf("%w: %v", ErrDatabaseConnection, err))
	}

	name := SanitizeTableName(table)
	if name == "" {
		name = DefaultJournalTable
	}
	j := &PostgresJournal{db: db, table: name}
	if err := j.ensureTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	LogInfo("postgres journal initialized with max_connections=%d, connection_timeout=%ds, idle_timeout=%ds",
		maxConn, connTimeout, idleTimeout)
	return j, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err == nil {
		return db, nil
	}
	if !strings.Contains(strings.ToLower(err.Error()), "unknown driver") {
		return nil, err
	}
	return sql.Open("postgres", dsn)
}

// open returns the handle, or ErrDatabaseNotInit for a journal that was never opened.
func (j *PostgresJournal) open() (*sql.DB, error) {
	if j == nil || j.db == nil {
		return nil, NewDatabaseError("NOT_INITIALIZED", "postgres journal is not open", ErrDatabaseNotInit)
	}
	return j.db, nil
}

func (j *PostgresJournal) Name() string { return "postgres" }

func (j *PostgresJournal) ensureTable(ctx context.Context) error {
	quoted := pqQuoteIdent(j.table)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id text PRIMARY KEY,
			timestamp timestamptz NOT NULL,
			device_id text NOT NULL,
			measurement_id text NOT NULL,
			failed boolean NOT NULL DEFAULT false,
			data jsonb NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		);`, quoted),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s (timestamp);`, j.table, quoted),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_device ON %s (device_id, timestamp);`, j.table, quoted),
	}
	for _, s := range stmts {
		if _, err := j.db.ExecContext(ctx, s); err != nil {
			return NewDatabaseError("SCHEMA_FAILED", fmt.Sprintf("failed to ensure table %s", j.table), err)
		}
	}
	return nil
}

// WriteJournal upserts entries in one transaction.
func (j *PostgresJournal) WriteJournal(ctx context.Context, entries []models.JournalEntry) error {
	db, err := j.open()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError("TX_FAILED", "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf(`INSERT INTO %s (id, timestamp, device_id, measurement_id, failed, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, pqQuoteIdent(j.table))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return NewDataError("MARSHAL_FAILED", "failed to marshal journal entry", errors.Join(ErrDataMarshalFailed, err))
		}
		if _, err := tx.ExecContext(ctx, q, e.ID, e.Time.UTC(), e.DeviceID, e.MeasurementID, e.Failed, data); err != nil {
			return NewDatabaseError("WRITE_FAILED", "failed to write to postgres", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return NewDatabaseError("TX_FAILED", "failed to commit journal entries", err)
	}
	return nil
}

// QueryJournal returns matching entries, newest first.
func (j *PostgresJournal) QueryJournal(ctx context.Context, filter JournalFilter) ([]models.JournalEntry, error) {
	query, args := buildPGJournalQuery(j.table, filter)
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

func buildPGJournalQuery(table string, filter JournalFilter) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT data FROM %s`, pqQuoteIdent(table))

	var conds []string
	var args []any
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		conds = append(conds, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	if filter.DeviceID != "" {
		args = append(args, filter.DeviceID)
		conds = append(conds, fmt.Sprintf("device_id = $%d", len(args)))
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY timestamp DESC")
	if filter.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", filter.Limit)
	}
	return b.String(), args
}

// CleanJournal deletes entries older than cutoff.
func (j *PostgresJournal) CleanJournal(ctx context.Context, cutoff time.Time) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE timestamp < $1`, pqQuoteIdent(j.table))
	db, err := j.open()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, NewDatabaseError("CLEAN_FAILED", "failed to delete old entries", err)
	}
	return res.RowsAffected()
}

func (j *PostgresJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
