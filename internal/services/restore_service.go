package services

import (
	"context"
	"fmt"
	"time"

	"paybot/internal/core"
	applog "paybot/internal/log"
	"paybot/internal/metrics"
	"paybot/internal/sheets"
	"paybot/internal/store"
)

// RestoreResult describes one replay of the backup sheet.
type RestoreResult struct {
	Inserted int // rows new to the store
	Skipped  int // valid rows already present
	Invalid  int // rows that did not convert to a transaction
	Status   string
}

// RestoreService replays the backup sheet into the store.
type RestoreService struct {
	reader sheets.BackupReader
	store  store.Importer
	loc    *time.Location
	logger *applog.Logger
}

func NewRestoreService(reader sheets.BackupReader, st store.Importer, loc *time.Location, logger *applog.Logger) *RestoreService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &RestoreService{
		reader: reader,
		store:  st,
		loc:    loc,
		logger: logger.WithComponent(applog.ComponentRestore),
	}
}

// Restore imports every backup row not already stored. Running it twice
// leaves the store unchanged the second time.
func (s *RestoreService) Restore(ctx context.Context) (RestoreResult, error) {
	rows, err := s.reader.ReadRows(ctx)
	if err != nil {
		return RestoreResult{Status: "backup unavailable"}, fmt.Errorf("read backup: %w", err)
	}

	var res RestoreResult
	txs := make([]core.Transaction, 0, len(rows))
	for i, r := range rows {
		tx, err := r.Transaction(s.loc)
		if err != nil {
			res.Invalid++
			s.logger.DebugContext(ctx, "Skipping invalid backup row", "row", i+1, applog.FieldError, err)
			continue
		}
		txs = append(txs, tx)
	}

	inserted, err := s.store.Import(ctx, txs)
	if err != nil {
		metrics.StoreErrors.WithLabelValues(applog.OpImport).Inc()
		return RestoreResult{Status: "import failed"}, fmt.Errorf("import backup: %w", err)
	}
	res.Inserted = inserted
	res.Skipped = len(txs) - inserted
	res.Status = fmt.Sprintf("restored %d of %d rows", inserted, len(rows))
	metrics.Restored.Add(float64(inserted))

	s.logger.InfoContext(ctx, "Backup restored",
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"invalid", res.Invalid)
	return res, nil
}

// AutoRestoreIfEmpty runs Restore only when the store holds no rows. The
// boolean reports whether a restore was attempted.
func (s *RestoreService) AutoRestoreIfEmpty(ctx context.Context) (RestoreResult, bool, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return RestoreResult{}, false, fmt.Errorf("count transactions: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Store not empty, skipping restore", applog.FieldCount, n)
		return RestoreResult{}, false, nil
	}
	res, err := s.Restore(ctx)
	return res, true, err
}
