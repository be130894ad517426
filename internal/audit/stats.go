package audit

import (
	"context"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/mrnjifanda/jifijs-sub000/internal/cache"
)

// QueueStats describes the ingestion queue.
type QueueStats struct {
	Size       int  `json:"size"`
	Capacity   int  `json:"capacity"`
	Processing bool `json:"processing"`
	BatchSize  int  `json:"batch_size"`
}

// FileStats describes the on-disk daily log files. Error is set instead of
// the counts when the logs directory cannot be read.
type FileStats struct {
	Count      int     `json:"count"`
	TotalBytes int64   `json:"total_bytes"`
	TotalMB    float64 `json:"total_mb"`
	Error      string  `json:"error,omitempty"`
}

// DatabaseStats describes the record store.
type DatabaseStats struct {
	Enabled bool  `json:"enabled"`
	Count   int64 `json:"count"`
}

// StatsSnapshot is the read-only pipeline snapshot exposed to operators.
type StatsSnapshot struct {
	Queue         QueueStats    `json:"queue"`
	File          FileStats     `json:"file"`
	Database      DatabaseStats `json:"database"`
	UptimeSeconds int64         `json:"uptime"`
}

// Stats assembles a snapshot of queue depth, processing state, file sink
// totals, record-store count and process uptime. It never fails: internal
// errors degrade to error-shaped sub-results.
func (p *Pipeline) Stats(ctx context.Context) StatsSnapshot {
	snapshot := StatsSnapshot{
		Queue: QueueStats{
			Size:       p.queue.Size(),
			Capacity:   p.queue.Capacity(),
			Processing: p.processing.Load(),
			BatchSize:  p.cfg.BatchSize,
		},
		File:          p.fileStats(),
		Database:      p.databaseStats(ctx),
		UptimeSeconds: int64(time.Since(p.startTime).Seconds()),
	}
	return snapshot
}

func (p *Pipeline) fileStats() FileStats {
	entries, err := os.ReadDir(p.file.Dir())
	if err != nil {
		return FileStats{Error: err.Error()}
	}

	var stats FileStats
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".log") {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			continue
		}
		stats.Count++
		stats.TotalBytes += info.Size()
	}
	stats.TotalMB = math.Round(float64(stats.TotalBytes)/(1024*1024)*100) / 100
	return stats
}

// databaseStats returns the record-store count, memoized through the count
// cache so repeated stats calls do not hammer the store.
func (p *Pipeline) databaseStats(ctx context.Context) DatabaseStats {
	if p.store == nil {
		return DatabaseStats{Enabled: false, Count: 0}
	}

	if p.counts != nil {
		if snapshot, err := p.counts.Get(ctx); err == nil && snapshot.Fresh(cache.DefaultTTL) {
			return DatabaseStats{Enabled: true, Count: snapshot.Count}
		}
	}

	count, err := p.store.Count(ctx)
	if err != nil {
		slog.Error("failed to count audit records", "error", err)
		return DatabaseStats{Enabled: true, Count: 0}
	}

	if p.counts != nil {
		snapshot := &cache.CountSnapshot{Count: count, CachedAt: time.Now()}
		if err := p.counts.Set(ctx, snapshot); err != nil {
			slog.Warn("failed to cache audit record count", "error", err)
		}
	}
	return DatabaseStats{Enabled: true, Count: count}
}
