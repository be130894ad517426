package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrnjifanda/jifijs-sub000/internal/cache"
)

// drainPollInterval is the sleep between shutdown-drain flush cycles.
const drainPollInterval = 50 * time.Millisecond

// storeWriteTimeout bounds a single record-store insert.
const storeWriteTimeout = 10 * time.Second

// Pipeline owns the ingestion queue, the batch flush scheduler and both
// persistence sinks. It is constructed explicitly and passed by reference;
// there is exactly one per process by convention, not by global state.
//
// Liveness over durability: an entry whose sink writes all fail is dropped
// and logged, never retried or requeued.
type Pipeline struct {
	cfg    Config
	queue  *Queue
	file   *FileSink
	store  RecordStore // nil when the record-store sink is disabled
	counts cache.CountCache

	// processing is the single-flight guard: at most one flush cycle runs
	// at any time, overlapping ticks are no-ops.
	processing atomic.Bool

	startTime time.Time
	started   atomic.Bool
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewPipeline creates a pipeline from configuration. store may be nil when
// the record-store sink is disabled; it is ignored unless cfg.StoreEnabled.
// counts memoizes the store count for the stats reporter and may be nil.
func NewPipeline(cfg Config, store RecordStore, counts cache.CountCache) *Pipeline {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultConfig().QueueCapacity
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}

	if !cfg.StoreEnabled {
		store = nil
	}

	return &Pipeline{
		cfg:       cfg,
		queue:     NewQueue(cfg.QueueCapacity),
		file:      NewFileSink(cfg.LogsDir),
		store:     store,
		counts:    counts,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Store returns the record store, nil when the sink is disabled.
func (p *Pipeline) Store() RecordStore {
	return p.store
}

// Enqueue places a built entry on the ingestion queue. Never blocks; under
// overload the queue evicts its oldest entry.
func (p *Pipeline) Enqueue(entry *LogEntry) {
	if entry == nil {
		return
	}
	p.queue.Enqueue(entry)
	enqueuedEntries.Inc()
	queueDepth.Set(float64(p.queue.Size()))
}

// QueueSize returns the current ingestion queue depth.
func (p *Pipeline) QueueSize() int {
	return p.queue.Size()
}

// Start launches the background flush scheduler. Idempotent.
func (p *Pipeline) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.wg.Add(1)
	go p.run()
	slog.Info("audit pipeline started",
		"queue_capacity", p.cfg.QueueCapacity,
		"batch_size", p.cfg.BatchSize,
		"flush_interval", p.cfg.FlushInterval,
		"store_enabled", p.store != nil,
	)
}

// Stop halts future flush ticks (an in-flight batch is allowed to complete)
// and then drains the queue so a clean shutdown never discards captured
// entries. Returns the context error when the deadline expires mid-drain.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
	return p.Drain(ctx)
}

// Drain exhausts the queue by repeated flush cycles with a short sleep in
// between, until the queue is empty or the context is done.
func (p *Pipeline) Drain(ctx context.Context) error {
	for p.queue.Size() > 0 {
		p.FlushOnce()
		if p.queue.Size() == 0 {
			break
		}
		select {
		case <-ctx.Done():
			slog.Error("audit drain aborted with entries remaining",
				"remaining", p.queue.Size(),
			)
			return ctx.Err()
		case <-time.After(drainPollInterval):
		}
	}
	return nil
}

// run is the scheduler loop: one flush attempt per tick.
func (p *Pipeline) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.FlushOnce()
		case <-p.done:
			return
		}
	}
}

// FlushOnce performs a single guarded flush cycle. Returns false when another
// cycle is already in progress (the call is then a no-op).
func (p *Pipeline) FlushOnce() bool {
	if !p.processing.CompareAndSwap(false, true) {
		return false
	}
	defer p.processing.Store(false)

	p.flushBatch()
	return true
}

// flushBatch drains up to BatchSize entries and persists them. Per-entry sink
// writes are fanned out concurrently; the batch settles before returning.
func (p *Pipeline) flushBatch() {
	batch := p.queue.DequeueBatch(p.cfg.BatchSize)
	queueDepth.Set(float64(p.queue.Size()))
	if len(batch) == 0 {
		return
	}
	flushedBatches.Inc()

	var wg sync.WaitGroup
	for _, entry := range batch {
		wg.Add(1)
		go func(e *LogEntry) {
			defer wg.Done()
			p.persist(e)
		}(entry)
	}
	wg.Wait()
}

// persist attempts both sinks for one entry, concurrently and independently.
// Each failure is sink-local; an entry failing every sink is fully lost.
func (p *Pipeline) persist(entry *LogEntry) {
	var (
		fileOK  bool
		storeOK bool
		wg      sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		fileOK = p.file.Write(entry)
		if !fileOK {
			sinkFailures.WithLabelValues("file").Inc()
		}
	}()

	if p.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
			defer cancel()

			if err := p.store.Insert(ctx, entry); err != nil {
				sinkFailures.WithLabelValues("store").Inc()
				slog.Error("audit record store insert failed",
					"entry_id", entry.ID,
					"error", err,
				)
			} else {
				storeOK = true
			}
		}()
	}
	wg.Wait()

	if !fileOK && !storeOK {
		lostEntries.Inc()
		slog.Error("audit entry lost, all sinks failed", "entry_id", entry.ID)
	}
}

// Processing reports whether a flush cycle is currently in progress.
func (p *Pipeline) Processing() bool {
	return p.processing.Load()
}
