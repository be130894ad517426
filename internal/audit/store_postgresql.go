package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements RecordStore for PostgreSQL. The full entry is
// kept as a JSONB column next to the indexed filter columns.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates a PostgreSQL record store and its schema.
func NewPostgreSQLStore(pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			method TEXT,
			url TEXT,
			status_code INTEGER DEFAULT 0,
			action TEXT,
			entity TEXT,
			correlation_id TEXT,
			entry JSONB NOT NULL
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
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &PostgreSQLStore{pool: pool}, nil
}

// Insert writes a single entry.
func (s *PostgreSQLStore) Insert(ctx context.Context, entry *LogEntry) error {
	if entry == nil {
		return nil
	}

	blob, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_logs
			(id, timestamp, method, url, status_code, action, entity, correlation_id, entry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID,
		entry.Timestamp.UTC(),
		entry.Method,
		entry.URL,
		entry.StatusCode,
		string(entry.Action),
		entry.Entity,
		entry.CorrelationID,
		blob,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Count returns the total number of stored entries.
func (s *PostgreSQLStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// DeleteBefore removes entries older than the cutoff.
func (s *PostgreSQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM audit_logs WHERE timestamp < $1", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List returns a filtered page of entries, newest first.
func (s *PostgreSQLStore) List(ctx context.Context, params ListParams) (*ListResult, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)

	where, args := postgresFilters(params)

	var total int64
	countQuery := "SELECT COUNT(*) FROM audit_logs" + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count audit records: %w", err)
	}

	query := fmt.Sprintf("SELECT entry FROM audit_logs%s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	entries := make([]LogEntry, 0, limit)
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		var entry LogEntry
		if err := json.Unmarshal(blob, &entry); err != nil {
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

// Close is a no-op; the pool is managed by the storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}

func postgresFilters(params ListParams) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if params.Action != "" {
		args = append(args, params.Action)
		clauses = append(clauses, fmt.Sprintf("action = $%d", len(args)))
	}
	if params.Entity != "" {
		args = append(args, params.Entity)
		clauses = append(clauses, fmt.Sprintf("entity = $%d", len(args)))
	}
	if params.StatusCode != nil {
		args = append(args, *params.StatusCode)
		clauses = append(clauses, fmt.Sprintf("status_code = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
