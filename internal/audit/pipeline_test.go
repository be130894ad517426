package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockRecordStore implements RecordStore for testing.
type mockRecordStore struct {
	mu       sync.Mutex
	entries  []*LogEntry
	insertFn func(ctx context.Context, entry *LogEntry) error
	closed   bool
}

func (m *mockRecordStore) Insert(ctx context.Context, entry *LogEntry) error {
	if m.insertFn != nil {
		if err := m.insertFn(ctx, entry); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockRecordStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *mockRecordStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*LogEntry
	var deleted int64
	for _, e := range m.entries {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return deleted, nil
}

func (m *mockRecordStore) List(_ context.Context, params ListParams) (*ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &ListResult{Limit: params.Limit, Offset: params.Offset}
	for _, e := range m.entries {
		result.Entries = append(result.Entries, *e)
	}
	result.Total = int64(len(result.Entries))
	return result, nil
}

func (m *mockRecordStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockRecordStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func testConfig(dir string) Config {
	return Config{
		QueueCapacity: 100,
		BatchSize:     10,
		FlushInterval: time.Hour, // ticks never fire; tests flush explicitly
		LogsDir:       dir,
		StoreEnabled:  true,
	}
}

func TestPipelineFlushPersistsToBothSinks(t *testing.T) {
	store := &mockRecordStore{}
	p := NewPipeline(testConfig(t.TempDir()), store, nil)

	for i := 0; i < 5; i++ {
		p.Enqueue(Build(RequestMeta{
			ID:     fmt.Sprintf("entry-%d", i),
			Method: "GET",
			URL:    "/users",
		}, ResponseMeta{StatusCode: 200}))
	}

	if !p.FlushOnce() {
		t.Fatal("FlushOnce returned false with no flush in progress")
	}

	if p.QueueSize() != 0 {
		t.Errorf("queue size after flush = %d, want 0", p.QueueSize())
	}
	if store.count() != 5 {
		t.Errorf("store entries = %d, want 5", store.count())
	}
}

func TestPipelineFlushSingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once

	store := &mockRecordStore{
		insertFn: func(ctx context.Context, _ *LogEntry) error {
			once.Do(func() { close(entered) })
			<-release
			return nil
		},
	}
	p := NewPipeline(testConfig(t.TempDir()), store, nil)
	p.Enqueue(Build(RequestMeta{Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200}))

	done := make(chan bool)
	go func() { done <- p.FlushOnce() }()

	<-entered

	// The first cycle is parked inside the store write; overlapping
	// attempts must be rejected.
	if p.FlushOnce() {
		t.Error("overlapping FlushOnce should return false")
	}
	if !p.Processing() {
		t.Error("Processing should report true mid-flush")
	}

	close(release)
	if !<-done {
		t.Error("first FlushOnce should return true")
	}
	if p.Processing() {
		t.Error("Processing should report false after the flush settles")
	}
}

func TestPipelineDrain(t *testing.T) {
	store := &mockRecordStore{}
	cfg := testConfig(t.TempDir())
	cfg.BatchSize = 3
	p := NewPipeline(cfg, store, nil)

	for i := 0; i < 10; i++ {
		p.Enqueue(Build(RequestMeta{Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	if p.QueueSize() != 0 {
		t.Errorf("queue size after drain = %d, want 0", p.QueueSize())
	}
	if store.count() != 10 {
		t.Errorf("store entries = %d, want 10", store.count())
	}
}

func TestPipelineDrainDeadline(t *testing.T) {
	store := &mockRecordStore{
		insertFn: func(ctx context.Context, _ *LogEntry) error {
			time.Sleep(20 * time.Millisecond)
			return nil
		},
	}
	cfg := testConfig(t.TempDir())
	cfg.BatchSize = 1
	p := NewPipeline(cfg, store, nil)

	for i := 0; i < 20; i++ {
		p.Enqueue(Build(RequestMeta{Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := p.Drain(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain error = %v, want deadline exceeded", err)
	}
}

func TestPipelineStoreFailureKeepsFileSink(t *testing.T) {
	store := &mockRecordStore{
		insertFn: func(ctx context.Context, _ *LogEntry) error {
			return errors.New("connection refused")
		},
	}
	dir := t.TempDir()
	p := NewPipeline(testConfig(dir), store, nil)

	p.Enqueue(Build(RequestMeta{Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200}))
	p.FlushOnce()

	// The entry must survive in the file sink despite the store failure.
	stats := p.fileStats()
	if stats.Count != 1 {
		t.Errorf("daily files = %d, want 1", stats.Count)
	}
	if p.QueueSize() != 0 {
		t.Errorf("failed entries must not be requeued, queue size = %d", p.QueueSize())
	}
}

func TestPipelineAllSinksFailDropsEntry(t *testing.T) {
	store := &mockRecordStore{
		insertFn: func(ctx context.Context, _ *LogEntry) error {
			return errors.New("connection refused")
		},
	}
	cfg := testConfig(t.TempDir())
	p := NewPipeline(cfg, store, nil)
	// Break the file sink after construction.
	p.file = &FileSink{dir: "/dev/null/not-a-dir"}

	p.Enqueue(Build(RequestMeta{Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200}))
	p.FlushOnce()

	// The entry is lost outright, never retried.
	if p.QueueSize() != 0 {
		t.Errorf("queue size = %d, want 0 after losing the entry", p.QueueSize())
	}
	if store.count() != 0 {
		t.Errorf("store entries = %d, want 0", store.count())
	}
}

func TestPipelineStoreDisabled(t *testing.T) {
	store := &mockRecordStore{}
	cfg := testConfig(t.TempDir())
	cfg.StoreEnabled = false
	p := NewPipeline(cfg, store, nil)

	if p.Store() != nil {
		t.Error("store must be nil when the record-store sink is disabled")
	}

	p.Enqueue(Build(RequestMeta{Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200}))
	p.FlushOnce()

	if store.count() != 0 {
		t.Errorf("disabled store received %d entries", store.count())
	}
	if stats := p.fileStats(); stats.Count != 1 {
		t.Errorf("daily files = %d, want 1", stats.Count)
	}
}

func TestPipelineStartStop(t *testing.T) {
	store := &mockRecordStore{}
	cfg := testConfig(t.TempDir())
	cfg.FlushInterval = 10 * time.Millisecond
	p := NewPipeline(cfg, store, nil)

	p.Start()
	p.Start() // idempotent

	p.Enqueue(Build(RequestMeta{Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if p.QueueSize() != 0 {
		t.Errorf("queue not drained on stop, size = %d", p.QueueSize())
	}
	if store.count() != 1 {
		t.Errorf("store entries = %d, want 1", store.count())
	}
}

func TestPipelineConfigDefaults(t *testing.T) {
	p := NewPipeline(Config{LogsDir: t.TempDir()}, nil, nil)

	defaults := DefaultConfig()
	cfg := p.Config()
	if cfg.QueueCapacity != defaults.QueueCapacity {
		t.Errorf("QueueCapacity = %d, want %d", cfg.QueueCapacity, defaults.QueueCapacity)
	}
	if cfg.BatchSize != defaults.BatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.BatchSize, defaults.BatchSize)
	}
	if cfg.FlushInterval != defaults.FlushInterval {
		t.Errorf("FlushInterval = %s, want %s", cfg.FlushInterval, defaults.FlushInterval)
	}
}
