package backend

import (
	"context"
	"fmt"
	"time"

	"paybot/internal/cache"
	applog "paybot/internal/log"
	"paybot/internal/sheets"
	gsheet "paybot/internal/sheets/google"
	memsheet "paybot/internal/sheets/memory"
	"paybot/internal/storage"
	"paybot/internal/store"
	"paybot/internal/store/memory"
	mongostore "paybot/internal/store/mongo"
	"paybot/internal/wizard"
	"paybot/internal/wizard/redisstore"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend opens the configured store and wraps it with the label
// cache and the concurrency bound.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.UTC
	}

	var (
		raw store.Store
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		raw, err = storage.NewSQLiteRepository(config.SQLiteDBPath, config.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MongoBackend:
		raw, err = mongostore.Connect(ctx, config.MongoURI, config.MongoDatabase, config.MongoCollection, config.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		f.logger.Info("Initialized MongoDB backend",
			"database", config.MongoDatabase,
			"collection", config.MongoCollection)
	case MemoryBackend:
		raw = memory.NewStore(config.Location)
		f.logger.Warn("Using in-memory backend, transactions are lost on restart")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	size, ttl := config.LabelCacheSize, config.LabelCacheTTL
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	labels := cache.NewLRUCache[[]string](size, ttl)
	decorated := store.NewCached(store.NewBounded(raw, config.Concurrency), labels)

	return &BackendResult{
		Store:   decorated,
		Labels:  labels,
		Cleanup: decorated.Close,
	}, nil
}

// CreateSessionStore returns the wizard session store. The cleanup closes the
// Redis client when one was opened.
func (f *DefaultFactory) CreateSessionStore(ctx context.Context, config Config) (wizard.SessionStore, CleanupFunc, error) {
	switch config.SessionBackend {
	case "", "memory":
		return wizard.NewMemoryStore(config.SessionTTL), func() error { return nil }, nil
	case "redis":
		client, err := redisstore.Dial(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		f.logger.Info("Using Redis wizard sessions", "addr", config.RedisAddr)
		return redisstore.New(client, config.SessionTTL), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session backend: %s", config.SessionBackend)
	}
}

// CreateBackup opens the Google Sheets backup and makes sure the header row
// exists. Without a spreadsheet it falls back to a CSV file that every
// appended row is written through to.
func (f *DefaultFactory) CreateBackup(ctx context.Context, config Config) (sheets.Backup, CleanupFunc, error) {
	noop := func() error { return nil }
	switch {
	case config.GoogleSpreadsheetID != "":
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		if err := client.EnsureHeader(ctx); err != nil {
			f.logger.Warn("Could not verify backup header", applog.FieldError, err)
		}
		f.logger.Info("Initialized Google Sheets backup")
		return client, noop, nil
	case config.BackupCSVPath != "":
		b, err := memsheet.NewFromCSV(config.BackupCSVPath)
		if err != nil {
			return nil, nil, err
		}
		f.logger.Info("Initialized CSV backup", "path", config.BackupCSVPath, applog.FieldCount, b.Len())
		return b, noop, nil
	default:
		f.logger.Info("No backup configured, mirroring disabled")
		return nil, noop, nil
	}
}
