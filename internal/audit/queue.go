package audit

import (
	"log/slog"
	"sync"
)

// Queue is the bounded ingestion queue between the capture middleware and the
// flush scheduler. It is strict FIFO with a drop-oldest overflow policy: when
// the queue is at capacity, Enqueue evicts the head to admit the new entry.
// No operation blocks.
type Queue struct {
	mu       sync.Mutex
	entries  []*LogEntry
	capacity int
}

// NewQueue creates a queue with the given hard capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultConfig().QueueCapacity
	}
	return &Queue{
		entries:  make([]*LogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue appends an entry to the tail. At capacity the oldest entry is
// evicted first; this is an expected condition under sustained load and is
// logged at warning severity.
func (q *Queue) Enqueue(entry *LogEntry) {
	if entry == nil {
		return
	}

	q.mu.Lock()
	var evicted *LogEntry
	if len(q.entries) >= q.capacity {
		evicted = q.entries[0]
		copy(q.entries, q.entries[1:])
		q.entries = q.entries[:len(q.entries)-1]
	}
	q.entries = append(q.entries, entry)
	q.mu.Unlock()

	if evicted != nil {
		droppedEntries.Inc()
		slog.Warn("audit queue full, dropping oldest entry",
			"dropped_id", evicted.ID,
			"capacity", q.capacity,
		)
	}
}

// DequeueBatch atomically removes and returns up to max entries from the
// head, in insertion order. Fewer are returned when the queue holds fewer.
func (q *Queue) DequeueBatch(max int) []*LogEntry {
	if max <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(max, len(q.entries))
	if n == 0 {
		return nil
	}

	batch := make([]*LogEntry, n)
	copy(batch, q.entries[:n])
	remaining := copy(q.entries, q.entries[n:])
	for i := remaining; i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = q.entries[:remaining]

	return batch
}

// Size returns the current number of queued entries.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Capacity returns the configured hard limit.
func (q *Queue) Capacity() int {
	return q.capacity
}
