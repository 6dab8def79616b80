// Package storage is the embedded SQLite transaction store. Schema changes
// are applied with golang-migrate from embedded SQL files.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"paybot/internal/core"
	"paybot/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	loc     *time.Location
}

// dsn enables WAL and a busy timeout so concurrent readers do not fail on
// a writer's lock.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath
// and applies migrations. loc is the wall-clock location used for
// navigation labels.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if loc == nil {
		loc = time.UTC
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn(dbPath)); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		loc:     loc,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) params(tx core.Transaction) InsertTransactionParams {
	return InsertTransactionParams{
		ChatID:        tx.ChatID,
		Amount:        tx.Amount.String(),
		Currency:      tx.Currency.String(),
		OccurredAt:    tx.OccurredAt.Unix(),
		OccurredLocal: tx.LocalStamp(r.loc),
		RawText:       tx.RawText,
	}
}

// Append implements store.Appender
func (r *SQLiteRepository) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	id, err := r.queries.InsertTransaction(ctx, r.params(tx))
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"chat_id", tx.ChatID,
		"amount", tx.Amount.String(),
		"currency", tx.Currency)

	return strconv.FormatInt(id, 10), nil
}

// QueryRange implements store.RangeQuerier. Amounts are summed in Go so
// the totals stay exact.
func (r *SQLiteRepository) QueryRange(ctx context.Context, chatID int64, start, end time.Time) (core.Totals, error) {
	rows, err := r.queries.ListAmountsInRange(ctx, chatID, start.Unix(), end.Unix())
	if err != nil {
		return core.Totals{}, fmt.Errorf("list amounts in range: %w", err)
	}

	totals := core.NewTotals()
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return core.Totals{}, fmt.Errorf("stored amount %q: %w", row.Amount, err)
		}
		totals.Add(core.Currency(row.Currency), amount)
	}
	return totals, nil
}

func (r *SQLiteRepository) DistinctYears(ctx context.Context, chatID int64) ([]string, error) {
	out, err := r.queries.DistinctYears(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("distinct years: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DistinctMonths(ctx context.Context, chatID int64, year string) ([]string, error) {
	out, err := r.queries.DistinctMonths(ctx, chatID, year)
	if err != nil {
		return nil, fmt.Errorf("distinct months of %s: %w", year, err)
	}
	return out, nil
}

func (r *SQLiteRepository) DistinctDays(ctx context.Context, chatID int64, year, month string) ([]string, error) {
	out, err := r.queries.DistinctDays(ctx, chatID, year+"-"+month)
	if err != nil {
		return nil, fmt.Errorf("distinct days of %s-%s: %w", year, month, err)
	}
	return out, nil
}

func (r *SQLiteRepository) DistinctHours(ctx context.Context, chatID int64, date string) ([]string, error) {
	out, err := r.queries.DistinctHours(ctx, chatID, date)
	if err != nil {
		return nil, fmt.Errorf("distinct hours of %s: %w", date, err)
	}
	return out, nil
}

func (r *SQLiteRepository) DistinctMinutes(ctx context.Context, chatID int64, date, hour string) ([]string, error) {
	out, err := r.queries.DistinctMinutes(ctx, chatID, date+" "+hour)
	if err != nil {
		return nil, fmt.Errorf("distinct minutes of %s %s: %w", date, hour, err)
	}
	return out, nil
}

// Import implements store.Importer. Each row is its own statement; a
// failure stops the import and reports what was written so far.
func (r *SQLiteRepository) Import(ctx context.Context, txs []core.Transaction) (int, error) {
	inserted := 0
	for _, tx := range txs {
		if tx.Validate() != nil {
			continue
		}
		ok, err := r.queries.ImportTransaction(ctx, r.params(tx))
		if err != nil {
			return inserted, fmt.Errorf("import transaction: %w", err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	n, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return int(n), nil
}

// PendingMirror returns rows not yet copied to the backup sheet, oldest first.
func (r *SQLiteRepository) PendingMirror(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.queries.ListPendingMirror(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending mirror: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("stored amount %q: %w", row.Amount, err)
		}
		out = append(out, core.Transaction{
			ID:         strconv.FormatInt(row.ID, 10),
			ChatID:     row.ChatID,
			Amount:     amount,
			Currency:   core.Currency(row.Currency),
			OccurredAt: time.Unix(row.OccurredAt, 0).In(r.loc),
			RawText:    row.RawText,
		})
	}
	return out, nil
}

func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	affected, err := r.queries.MarkMirrored(ctx, n)
	if err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) IsMirrored(ctx context.Context, id string) (bool, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	mirrored, err := r.queries.GetMirrored(ctx, n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get mirrored: %w", err)
	}
	return mirrored, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

var _ store.Store = (*SQLiteRepository)(nil)
