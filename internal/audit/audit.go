// Package audit implements the request/response audit-logging pipeline.
// A capture middleware observes every completed request, builds a redacted
// structured record, and hands it to a bounded in-memory queue. A periodic
// flush scheduler drains the queue in batches and persists each entry to an
// append-only daily file and, optionally, to a record store.
package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// HiddenMarker replaces the value of any sensitive field before persistence.
const HiddenMarker = "***HIDDEN***"

// UnknownValue is the sentinel for metadata that could not be extracted.
const UnknownValue = "unknown"

// ActionKind is the coarse category derived from the request path and method.
type ActionKind string

const (
	ActionCreate      ActionKind = "create"
	ActionRead        ActionKind = "read"
	ActionUpdate      ActionKind = "update"
	ActionDelete      ActionKind = "delete"
	ActionAuth        ActionKind = "auth"
	ActionSubscribe   ActionKind = "subscribe"
	ActionUnsubscribe ActionKind = "unsubscribe"
	ActionUnknown     ActionKind = "unknown"
)

// LogEntry is one structured audit record of a single request/response cycle.
// Entries are immutable once built; they are never mutated after being queued.
type LogEntry struct {
	// ID is a fixed-length random hex identifier minted at capture time.
	// It doubles as the default correlation id.
	ID string `json:"id" bson:"_id"`

	// Timestamp is when the entry was constructed (response completion).
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	IP        string  `json:"ip" bson:"ip"`
	UserAgent string  `json:"user_agent" bson:"user_agent"`
	User      *string `json:"user" bson:"user"`

	Method   string  `json:"method" bson:"method"`
	Hostname string  `json:"hostname" bson:"hostname"`
	URL      string  `json:"url" bson:"url"`
	Route    *string `json:"route" bson:"route"`

	StatusCode int        `json:"status_code" bson:"status_code"`
	Action     ActionKind `json:"action" bson:"action"`
	Entity     string     `json:"entity" bson:"entity"`

	// ExecutionTime is the handler duration in milliseconds, nil when no
	// start time was captured.
	ExecutionTime *int64 `json:"execution_time" bson:"execution_time"`

	RequestSize  int64 `json:"request_size" bson:"request_size"`
	ResponseSize int64 `json:"response_size" bson:"response_size"`

	Details      Details `json:"details" bson:"details"`
	ResponseBody any     `json:"response_body" bson:"response_body"`

	// ResponseBodyTruncated marks that ResponseBody was cut at the capture
	// limit and holds only a prefix of what the client received.
	ResponseBodyTruncated bool `json:"response_body_truncated,omitempty" bson:"response_body_truncated,omitempty"`

	// Error is populated only when StatusCode >= 400.
	Error *ErrorInfo `json:"error" bson:"error"`

	SessionID     *string `json:"session_id" bson:"session_id"`
	CorrelationID string  `json:"correlation_id" bson:"correlation_id"`
}

// Details holds the four sanitized request sub-objects. Values are JSON-shaped
// (map[string]any, []any, scalar or nil) so the redactor can walk them with
// exhaustive type switches.
type Details struct {
	Params  any `json:"params" bson:"params"`
	Query   any `json:"query" bson:"query"`
	Headers any `json:"headers" bson:"headers"`
	Body    any `json:"body" bson:"body"`
}

// ErrorInfo describes a failed request outcome.
type ErrorInfo struct {
	Code    int    `json:"code" bson:"code"`
	Message string `json:"message" bson:"message"`
}

// RecordStore is the structured record store the pipeline persists entries to.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// Insert writes a single entry.
	Insert(ctx context.Context, entry *LogEntry) error

	// Count returns the total number of stored entries.
	Count(ctx context.Context) (int64, error)

	// DeleteBefore removes all entries with a timestamp strictly older than
	// the cutoff and returns the number deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// List returns a filtered, paginated slice of entries, newest first.
	List(ctx context.Context, params ListParams) (*ListResult, error)

	// Close releases resources held by the store.
	Close() error
}

// ListParams filters the admin log listing.
type ListParams struct {
	Action     string
	Entity     string
	StatusCode *int
	Limit      int
	Offset     int
}

// ListResult is a page of audit log entries.
type ListResult struct {
	Entries []LogEntry `json:"entries"`
	Total   int64      `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

// Config holds pipeline configuration.
type Config struct {
	// QueueCapacity is the hard limit of the ingestion queue. When full,
	// the oldest entry is evicted to admit a new one.
	QueueCapacity int

	// BatchSize is the maximum number of entries drained per flush tick.
	BatchSize int

	// FlushInterval is how often the scheduler drains the queue.
	FlushInterval time.Duration

	// LogsDir is the directory holding the daily NDJSON files.
	LogsDir string

	// RetentionDays is the age threshold used by the cleanup loop
	// (0 disables the loop; on-demand cleanup is always available).
	RetentionDays int

	// StoreEnabled toggles the record-store sink.
	StoreEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueCapacity: 1000,
		BatchSize:     50,
		FlushInterval: 5 * time.Second,
		LogsDir:       "logs",
		RetentionDays: 30,
		StoreEnabled:  false,
	}
}

// idLength is the byte length of the random entry identifier (32 hex chars).
const idLength = 16

// newID mints a fixed-length random hex identifier.
func newID() string {
	buf := make([]byte, idLength)
	// rand.Read on crypto/rand never fails on supported platforms.
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
