package backend

import (
	"context"
	"time"

	"paybot/internal/cache"
	"paybot/internal/sheets"
	"paybot/internal/store"
	"paybot/internal/wizard"
)

// BackendType names a transaction store implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
	MemoryBackend BackendType = "memory"
)

func (t BackendType) IsValid() bool {
	switch t {
	case SQLiteBackend, MongoBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

func (t BackendType) String() string {
	return string(t)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the decorated store and the label cache it uses.
// Cleanup closes the underlying backend.
type BackendResult struct {
	Store   store.Store
	Labels  *cache.LRUCache[[]string]
	Cleanup CleanupFunc
}

// Factory builds the process collaborators from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateSessionStore(ctx context.Context, config Config) (wizard.SessionStore, CleanupFunc, error)
	// CreateBackup returns a nil backup without error when neither a
	// spreadsheet nor a CSV file is configured.
	CreateBackup(ctx context.Context, config Config) (sheets.Backup, CleanupFunc, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type     BackendType
	Location *time.Location

	// Concurrency caps in-flight store calls.
	Concurrency    int
	LabelCacheSize int
	LabelCacheTTL  time.Duration

	SQLiteDBPath string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	SessionBackend string
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	GoogleSpreadsheetID string
	BackupCSVPath       string
}
