package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"paybot/internal/core"
)

// Bounded limits how many store calls run at once. Callers block until a
// slot is free or their context ends; the wrapped call itself is not retried.
type Bounded struct {
	next Store
	sem  *semaphore.Weighted
}

func NewBounded(next Store, limit int) *Bounded {
	if limit < 1 {
		limit = 1
	}
	return &Bounded{next: next, sem: semaphore.NewWeighted(int64(limit))}
}

func (b *Bounded) acquire(ctx context.Context) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("store pool: %w", err)
	}
	return nil
}

func run[T any](ctx context.Context, b *Bounded, fn func() (T, error)) (T, error) {
	if err := b.acquire(ctx); err != nil {
		var zero T
		return zero, err
	}
	defer b.sem.Release(1)
	return fn()
}

func (b *Bounded) Append(ctx context.Context, tx core.Transaction) (string, error) {
	return run(ctx, b, func() (string, error) { return b.next.Append(ctx, tx) })
}

func (b *Bounded) QueryRange(ctx context.Context, chatID int64, start, end time.Time) (core.Totals, error) {
	return run(ctx, b, func() (core.Totals, error) { return b.next.QueryRange(ctx, chatID, start, end) })
}

func (b *Bounded) DistinctYears(ctx context.Context, chatID int64) ([]string, error) {
	return run(ctx, b, func() ([]string, error) { return b.next.DistinctYears(ctx, chatID) })
}

func (b *Bounded) DistinctMonths(ctx context.Context, chatID int64, year string) ([]string, error) {
	return run(ctx, b, func() ([]string, error) { return b.next.DistinctMonths(ctx, chatID, year) })
}

func (b *Bounded) DistinctDays(ctx context.Context, chatID int64, year, month string) ([]string, error) {
	return run(ctx, b, func() ([]string, error) { return b.next.DistinctDays(ctx, chatID, year, month) })
}

func (b *Bounded) DistinctHours(ctx context.Context, chatID int64, date string) ([]string, error) {
	return run(ctx, b, func() ([]string, error) { return b.next.DistinctHours(ctx, chatID, date) })
}

func (b *Bounded) DistinctMinutes(ctx context.Context, chatID int64, date, hour string) ([]string, error) {
	return run(ctx, b, func() ([]string, error) { return b.next.DistinctMinutes(ctx, chatID, date, hour) })
}

func (b *Bounded) Import(ctx context.Context, txs []core.Transaction) (int, error) {
	return run(ctx, b, func() (int, error) { return b.next.Import(ctx, txs) })
}

func (b *Bounded) Count(ctx context.Context) (int, error) {
	return run(ctx, b, func() (int, error) { return b.next.Count(ctx) })
}

func (b *Bounded) PendingMirror(ctx context.Context, limit int) ([]core.Transaction, error) {
	return run(ctx, b, func() ([]core.Transaction, error) { return b.next.PendingMirror(ctx, limit) })
}

func (b *Bounded) MarkMirrored(ctx context.Context, id string) error {
	_, err := run(ctx, b, func() (struct{}, error) { return struct{}{}, b.next.MarkMirrored(ctx, id) })
	return err
}

func (b *Bounded) IsMirrored(ctx context.Context, id string) (bool, error) {
	return run(ctx, b, func() (bool, error) { return b.next.IsMirrored(ctx, id) })
}

func (b *Bounded) Ping(ctx context.Context) error {
	_, err := run(ctx, b, func() (struct{}, error) { return struct{}{}, b.next.Ping(ctx) })
	return err
}

func (b *Bounded) Close() error {
	return b.next.Close()
}
