// Package memory is an in-process transaction store used for tests and
// local development.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"paybot/internal/core"
	"paybot/internal/store"
)

type record struct {
	tx       core.Transaction
	local    string
	mirrored bool
}

// Store keeps transactions in insertion order.
type Store struct {
	mu      sync.RWMutex
	loc     *time.Location
	records []record
	nextID  int64
}

func NewStore(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{loc: loc}
}

func (s *Store) insert(tx core.Transaction, mirrored bool) string {
	s.nextID++
	tx.ID = strconv.FormatInt(s.nextID, 10)
	s.records = append(s.records, record{tx: tx, local: tx.LocalStamp(s.loc), mirrored: mirrored})
	return tx.ID
}

func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(tx, false), nil
}

func (s *Store) QueryRange(_ context.Context, chatID int64, start, end time.Time) (core.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := core.NewTotals()
	for _, r := range s.records {
		if r.tx.ChatID != chatID {
			continue
		}
		if r.tx.OccurredAt.Before(start) || r.tx.OccurredAt.After(end) {
			continue
		}
		totals.Add(r.tx.Currency, r.tx.Amount)
	}
	return totals, nil
}

func (s *Store) stamps(chatID int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		if r.tx.ChatID == chatID {
			out = append(out, r.local)
		}
	}
	return out
}

func (s *Store) DistinctYears(_ context.Context, chatID int64) ([]string, error) {
	return store.YearLabels(s.stamps(chatID)), nil
}

func (s *Store) DistinctMonths(_ context.Context, chatID int64, year string) ([]string, error) {
	return store.MonthLabels(s.stamps(chatID), year), nil
}

func (s *Store) DistinctDays(_ context.Context, chatID int64, year, month string) ([]string, error) {
	return store.DayLabels(s.stamps(chatID), year, month), nil
}

func (s *Store) DistinctHours(_ context.Context, chatID int64, date string) ([]string, error) {
	return store.HourLabels(s.stamps(chatID), date), nil
}

func (s *Store) DistinctMinutes(_ context.Context, chatID int64, date, hour string) ([]string, error) {
	return store.MinuteLabels(s.stamps(chatID), date, hour), nil
}

func (s *Store) Import(_ context.Context, txs []core.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.records))
	for _, r := range s.records {
		seen[store.DedupKey(r.tx)] = struct{}{}
	}

	inserted := 0
	for _, tx := range txs {
		if tx.Validate() != nil {
			continue
		}
		key := store.DedupKey(tx)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		s.insert(tx, true)
		inserted++
	}
	return inserted, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Store) PendingMirror(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Transaction
	for _, r := range s.records {
		if r.mirrored {
			continue
		}
		out = append(out, r.tx)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkMirrored(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].tx.ID == id {
			s.records[i].mirrored = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) IsMirrored(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.tx.ID == id {
			return r.mirrored, nil
		}
	}
	return false, store.ErrNotFound
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
