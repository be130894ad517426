package audit

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupInterval is how often the optional retention loop runs.
const CleanupInterval = 1 * time.Hour

// Cleanup deletes daily log files whose last-modified time is strictly older
// than now minus olderThanDays and, when the record store is enabled, deletes
// store records older than the same cutoff. Returns the number of deleted
// files; the store deletion count is logged but not summed in. Idempotent.
func (p *Pipeline) Cleanup(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	deleted := 0
	entries, err := os.ReadDir(p.file.Dir())
	if err != nil {
		return 0, err
	}

	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".log") {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(p.file.Dir(), dirEntry.Name())
		if err := os.Remove(path); err != nil {
			slog.Error("failed to delete expired audit log file",
				"file", path,
				"error", err,
			)
			continue
		}
		deleted++
	}

	if p.store != nil {
		count, err := p.store.DeleteBefore(ctx, cutoff)
		if err != nil {
			slog.Error("failed to delete expired audit records", "error", err)
		} else if count > 0 {
			slog.Info("deleted expired audit records", "count", count)
		}
	}

	if deleted > 0 {
		slog.Info("deleted expired audit log files",
			"count", deleted,
			"older_than_days", olderThanDays,
		)
	}
	return deleted, nil
}

// RunCleanupLoop applies the retention threshold immediately and then at
// CleanupInterval intervals, until the stop channel is closed. The loop is
// only started when RetentionDays > 0.
func (p *Pipeline) RunCleanupLoop(stop <-chan struct{}) {
	if p.cfg.RetentionDays <= 0 {
		return
	}

	runOnce := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := p.Cleanup(ctx, p.cfg.RetentionDays); err != nil {
			slog.Error("audit retention cleanup failed", "error", err)
		}
	}

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	runOnce()

	for {
		select {
		case <-ticker.C:
			runOnce()
		case <-stop:
			return
		}
	}
}
