package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// sqliteTimeLayout is a fixed-width RFC 3339 form. Timestamps are stored as
// text, so the fractional part must not be trimmed or lexicographic comparison
// diverges from chronological order at sub-second granularity.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements RecordStore for SQLite databases. Commonly-filtered
// fields live in indexed columns; the full entry is kept as a JSON blob.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite record store and its schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			method TEXT,
			url TEXT,
			status_code INTEGER DEFAULT 0,
			action TEXT,
			entity TEXT,
			correlation_id TEXT,
			entry JSON NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_logs(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_logs(action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs(entity)",
		"CREATE INDEX IF NOT EXISTS idx_audit_status ON audit_logs(status_code)",
		"CREATE INDEX IF NOT EXISTS idx_audit_correlation ON audit_logs(correlation_id)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Insert writes a single entry.
func (s *SQLiteStore) Insert(ctx context.Context, entry *LogEntry) error {
	if entry == nil {
		return nil
	}

	blob, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO audit_logs
			(id, timestamp, method, url, status_code, action, entity, correlation_id, entry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC().Format(sqliteTimeLayout),
		entry.Method,
		entry.URL,
		entry.StatusCode,
		string(entry.Action),
		entry.Entity,
		entry.CorrelationID,
		string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Count returns the total number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// DeleteBefore removes entries older than the cutoff.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_logs WHERE timestamp < ?",
		cutoff.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit records: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted audit records: %w", err)
	}
	return deleted, nil
}

// List returns a filtered page of entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, params ListParams) (*ListResult, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)

	where, args := sqliteFilters(params)

	var total int64
	countQuery := "SELECT COUNT(*) FROM audit_logs" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count audit records: %w", err)
	}

	query := "SELECT entry FROM audit_logs" + where +
		" ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	entries := make([]LogEntry, 0, limit)
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(blob), &entry); err != nil {
			slog.Warn("skipping undecodable audit record", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// Close is a no-op; the connection is managed by the storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}

func sqliteFilters(params ListParams) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if params.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, params.Action)
	}
	if params.Entity != "" {
		clauses = append(clauses, "entity = ?")
		args = append(args, params.Entity)
	}
	if params.StatusCode != nil {
		clauses = append(clauses, "status_code = ?")
		args = append(args, *params.StatusCode)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
