package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"paybot/internal/amqp"
	"paybot/internal/core"
	applog "paybot/internal/log"
	"paybot/internal/metrics"
	"paybot/internal/sheets"
	"paybot/internal/store"
)

// MirrorWorker copies stored transactions to the backup sheet and flags them
// as mirrored.
type MirrorWorker struct {
	// mu serializes the check-append-mark sequence so the queue consumer
	// and the pending scan never append the same row twice.
	mu        sync.Mutex
	store     store.MirrorTracker
	sheet     sheets.BackupWriter
	loc       *time.Location
	batchSize int
	logger    *applog.Logger
}

func NewMirrorWorker(st store.MirrorTracker, sheet sheets.BackupWriter, loc *time.Location, batchSize int, logger *applog.Logger) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &MirrorWorker{
		store:     st,
		sheet:     sheet,
		loc:       loc,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// Mirror appends tx to the sheet and marks it mirrored. Rows already
// marked are skipped. A failure to mark is logged only: the row is already
// in the sheet and restore dedupes.
func (w *MirrorWorker) Mirror(ctx context.Context, tx core.Transaction) error {
	_, err := w.mirror(ctx, tx)
	return err
}

func (w *MirrorWorker) mirror(ctx context.Context, tx core.Transaction) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if tx.ID != "" {
		done, err := w.store.IsMirrored(ctx, tx.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			w.logger.WarnContext(ctx, "Skipping mirror of unknown transaction", applog.FieldTxID, tx.ID)
			return false, nil
		case err != nil:
			return false, fmt.Errorf("check mirrored: %w", err)
		case done:
			metrics.Mirrored.WithLabelValues("skipped").Inc()
			w.logger.DebugContext(ctx, "Transaction already mirrored", applog.FieldTxID, tx.ID)
			return false, nil
		}
	}

	ref, err := w.sheet.AppendRow(ctx, sheets.RowFromTransaction(tx, w.loc))
	if err != nil {
		metrics.Mirrored.WithLabelValues("error").Inc()
		return false, fmt.Errorf("append to sheet: %w", err)
	}
	metrics.Mirrored.WithLabelValues("ok").Inc()

	if err := w.store.MarkMirrored(ctx, tx.ID); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as mirrored",
			applog.FieldTxID, tx.ID, applog.FieldError, err)
	}

	w.logger.DebugContext(ctx, "Mirrored transaction",
		applog.FieldTxID, tx.ID,
		"sheet_ref", ref,
		applog.FieldChatID, tx.ChatID)
	return true, nil
}

// HandleMirrorMessage processes one queued mirror request.
func (w *MirrorWorker) HandleMirrorMessage(ctx context.Context, msg *amqp.MirrorMessage) error {
	tx, err := msg.Transaction()
	if err != nil {
		// Not retryable; the pending scan still picks the row up.
		w.logger.WarnContext(ctx, "Dropping malformed mirror message",
			"message_id", msg.MessageID, applog.FieldError, err)
		return nil
	}
	return w.Mirror(ctx, tx)
}

// ProcessPending mirrors up to one batch of unmirrored rows. It is the
// fallback for lost queue messages and the only path when no queue is
// configured.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger batch after downtime.
func (w *MirrorWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", applog.FieldCount, n)
	return nil
}

func (w *MirrorWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingMirror(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions", applog.FieldCount, len(pending))

	synced := 0
	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		appended, err := w.mirror(ctx, tx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror transaction",
				applog.FieldTxID, tx.ID, applog.FieldError, err)
			continue
		}
		if appended {
			synced++
		}
	}
	return synced, nil
}

// Run calls ProcessPending every interval until ctx is done.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Pending mirror scan failed", applog.FieldError, err)
			}
		}
	}
}
