package store

import (
	"context"
	"strconv"
	"strings"

	"paybot/internal/cache"
	"paybot/internal/core"
)

// Cached serves navigation labels from an LRU cache. Entries for a chat are
// dropped when that chat records a transaction; an import drops everything.
type Cached struct {
	Store
	labels *cache.LRUCache[[]string]
}

func NewCached(next Store, labels *cache.LRUCache[[]string]) *Cached {
	return &Cached{Store: next, labels: labels}
}

func chatPrefix(chatID int64) string {
	return strconv.FormatInt(chatID, 10) + "|"
}

func labelKey(chatID int64, level string, parts ...string) string {
	return chatPrefix(chatID) + level + "|" + strings.Join(parts, "|")
}

func (c *Cached) cached(key string, load func() ([]string, error)) ([]string, error) {
	if v, ok := c.labels.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	c.labels.Set(key, v)
	return v, nil
}

func (c *Cached) Append(ctx context.Context, tx core.Transaction) (string, error) {
	id, err := c.Store.Append(ctx, tx)
	if err == nil {
		c.labels.DeletePrefix(chatPrefix(tx.ChatID))
	}
	return id, err
}

func (c *Cached) Import(ctx context.Context, txs []core.Transaction) (int, error) {
	n, err := c.Store.Import(ctx, txs)
	if n > 0 {
		c.labels.Purge()
	}
	return n, err
}

func (c *Cached) DistinctYears(ctx context.Context, chatID int64) ([]string, error) {
	return c.cached(labelKey(chatID, "y"), func() ([]string, error) {
		return c.Store.DistinctYears(ctx, chatID)
	})
}

func (c *Cached) DistinctMonths(ctx context.Context, chatID int64, year string) ([]string, error) {
	return c.cached(labelKey(chatID, "m", year), func() ([]string, error) {
		return c.Store.DistinctMonths(ctx, chatID, year)
	})
}

func (c *Cached) DistinctDays(ctx context.Context, chatID int64, year, month string) ([]string, error) {
	return c.cached(labelKey(chatID, "d", year, month), func() ([]string, error) {
		return c.Store.DistinctDays(ctx, chatID, year, month)
	})
}

func (c *Cached) DistinctHours(ctx context.Context, chatID int64, date string) ([]string, error) {
	return c.cached(labelKey(chatID, "h", date), func() ([]string, error) {
		return c.Store.DistinctHours(ctx, chatID, date)
	})
}

func (c *Cached) DistinctMinutes(ctx context.Context, chatID int64, date, hour string) ([]string, error) {
	return c.cached(labelKey(chatID, "n", date, hour), func() ([]string, error) {
		return c.Store.DistinctMinutes(ctx, chatID, date, hour)
	})
}
