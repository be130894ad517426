package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/mrnjifanda/jifijs-sub000/config"
	"github.com/mrnjifanda/jifijs-sub000/internal/cache"
	"github.com/mrnjifanda/jifijs-sub000/internal/storage"
)

// Result holds the constructed pipeline and the resources behind it.
// The caller owns the lifecycle and must call Close during shutdown,
// after stopping the pipeline.
type Result struct {
	Pipeline *Pipeline
	Storage  storage.Storage
	Cache    cache.CountCache
}

// Close releases the storage connection and the count cache.
// Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New builds the audit pipeline from application configuration. When the
// record-store sink is disabled no database connection is opened and the
// pipeline persists to the file sink only.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	pipelineCfg := Config{
		QueueCapacity: cfg.Audit.QueueCapacity,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval,
		LogsDir:       cfg.Audit.LogsDir,
		RetentionDays: cfg.Audit.RetentionDays,
		StoreEnabled:  cfg.Audit.DBEnabled,
	}

	counts, err := newCountCache(cfg.Redis)
	if err != nil {
		return nil, err
	}

	if !cfg.Audit.DBEnabled {
		return &Result{
			Pipeline: NewPipeline(pipelineCfg, nil, counts),
			Cache:    counts,
		}, nil
	}

	store, err := storage.New(ctx, buildStorageConfig(cfg.Storage))
	if err != nil {
		counts.Close()
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	recordStore, err := newRecordStore(store, cfg.Audit.RetentionDays)
	if err != nil {
		store.Close()
		counts.Close()
		return nil, err
	}

	return &Result{
		Pipeline: NewPipeline(pipelineCfg, recordStore, counts),
		Storage:  store,
		Cache:    counts,
	}, nil
}

// newCountCache selects the Redis cache when configured, else in-memory.
func newCountCache(cfg config.RedisConfig) (cache.CountCache, error) {
	if cfg.URL == "" {
		return cache.NewLocalCache(), nil
	}
	redisCache, err := cache.NewRedisCache(cache.RedisConfig{URL: cfg.URL})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	return redisCache, nil
}

// buildStorageConfig maps the application config onto storage.Config.
func buildStorageConfig(cfg config.StorageConfig) storage.Config {
	storageCfg := storage.Config{
		Type: cfg.Type,
		MongoDB: storage.MongoDBConfig{
			URL:      cfg.MongoDBURL,
			Database: cfg.MongoDBDatabase,
		},
		SQLite: storage.SQLiteConfig{
			Path: cfg.SQLitePath,
		},
		PostgreSQL: storage.PostgreSQLConfig{
			URL:      cfg.PostgreSQLURL,
			MaxConns: cfg.PostgreSQLMaxConns,
		},
	}
	if storageCfg.Type == "" {
		storageCfg.Type = storage.TypeMongoDB
	}
	return storageCfg
}

// newRecordStore creates the RecordStore matching the storage backend.
func newRecordStore(store storage.Storage, retentionDays int) (RecordStore, error) {
	switch store.Type() {
	case storage.TypeMongoDB:
		db := store.MongoDatabase()
		mongoDB, ok := db.(*mongo.Database)
		if !ok || mongoDB == nil {
			return nil, fmt.Errorf("invalid MongoDB database type: %T", db)
		}
		return NewMongoStore(mongoDB, retentionDays)

	case storage.TypeSQLite:
		return NewSQLiteStore(store.SQLiteDB())

	case storage.TypePostgreSQL:
		pool := store.PostgreSQLPool()
		pgxPool, ok := pool.(*pgxpool.Pool)
		if !ok || pgxPool == nil {
			return nil, fmt.Errorf("invalid PostgreSQL pool type: %T", pool)
		}
		return NewPostgreSQLStore(pgxPool)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}
