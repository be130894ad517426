package audit

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

// FileSink appends entries to one newline-delimited JSON file per UTC day,
// named YYYY-MM-DD.log inside the configured logs directory.
type FileSink struct {
	dir string
}

// NewFileSink creates the sink and ensures the logs directory exists.
// A directory-creation failure is logged and does not abort startup; every
// subsequent write then fails individually as a transient sink failure.
func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = DefaultConfig().LogsDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("failed to create audit logs directory",
			"dir", dir,
			"error", err,
		)
	}
	return &FileSink{dir: dir}
}

// Dir returns the logs directory path.
func (s *FileSink) Dir() string {
	return s.dir
}

// Write appends one serialized entry to the daily file for the entry's UTC
// date. Failures are logged and reported as false; nothing escapes the sink
// boundary.
func (s *FileSink) Write(entry *LogEntry) bool {
	if entry == nil {
		return false
	}

	line, err := json.Marshal(entry)
	if err != nil {
		slog.Error("failed to serialize audit entry",
			"entry_id", entry.ID,
			"error", err,
		)
		return false
	}

	path := filepath.Join(s.dir, fileNameFor(entry.Timestamp))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open audit log file",
			"file", path,
			"error", err,
		)
		return false
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		slog.Error("failed to append audit entry",
			"file", path,
			"entry_id", entry.ID,
			"error", err,
		)
		return false
	}
	return true
}

// fileNameFor computes the daily file name from an entry timestamp.
func fileNameFor(ts time.Time) string {
	return ts.UTC().Format("2006-01-02") + ".log"
}
