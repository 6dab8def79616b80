// Package store defines the transaction persistence ports shared by every
// backend, plus decorators that bound concurrency and cache navigation
// labels.
package store

import (
	"context"
	"errors"
	"time"

	"paybot/internal/core"
)

// ErrNotFound is returned when a referenced transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// Appender persists newly parsed transactions.
type Appender interface {
	// Append stores tx and returns its backend id.
	Append(ctx context.Context, tx core.Transaction) (string, error)
}

// RangeQuerier aggregates a chat's transactions over a closed interval.
type RangeQuerier interface {
	QueryRange(ctx context.Context, chatID int64, start, end time.Time) (core.Totals, error)
}

// Navigator lists the distinct calendar values present for a chat. Labels
// are zero-padded and sorted ascending. date is "YYYY-MM-DD".
type Navigator interface {
	DistinctYears(ctx context.Context, chatID int64) ([]string, error)
	DistinctMonths(ctx context.Context, chatID int64, year string) ([]string, error)
	DistinctDays(ctx context.Context, chatID int64, year, month string) ([]string, error)
	DistinctHours(ctx context.Context, chatID int64, date string) ([]string, error)
	DistinctMinutes(ctx context.Context, chatID int64, date, hour string) ([]string, error)
}

// Importer bulk-loads backup rows.
type Importer interface {
	// Import inserts every transaction not already present under the key
	// (chat_id, occurred_at, amount) and reports how many were inserted.
	// Imported rows are considered mirrored.
	Import(ctx context.Context, txs []core.Transaction) (int, error)
	Count(ctx context.Context) (int, error)
}

// MirrorTracker exposes rows not yet copied to the backup sheet.
type MirrorTracker interface {
	PendingMirror(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkMirrored(ctx context.Context, id string) error
	IsMirrored(ctx context.Context, id string) (bool, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Store is the full backend surface.
type Store interface {
	Appender
	RangeQuerier
	Navigator
	Importer
	MirrorTracker
	Pinger
	Close() error
}
