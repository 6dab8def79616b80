package services

import (
	"context"
	"errors"
	"fmt"

	"paybot/internal/core"
	applog "paybot/internal/log"
	"paybot/internal/metrics"
	"paybot/internal/store"
)

// Publisher hands a stored transaction to the mirror queue.
type Publisher interface {
	PublishMirror(ctx context.Context, tx core.Transaction) error
}

// Mirrorer writes a stored transaction to the backup sheet directly.
type Mirrorer interface {
	Mirror(ctx context.Context, tx core.Transaction) error
}

// IngestService turns chat messages into stored transactions and forwards
// them to the backup mirror.
type IngestService struct {
	parser    *core.Parser
	store     store.Appender
	publisher Publisher
	mirror    Mirrorer
	logger    *applog.Logger
	events    *applog.StructuredLogger
}

// IngestOption configures the mirror path. With neither option set, rows stay
// pending until a worker scans for them.
type IngestOption func(*IngestService)

// WithPublisher mirrors through the queue.
func WithPublisher(p Publisher) IngestOption {
	return func(s *IngestService) { s.publisher = p }
}

// WithInlineMirror mirrors synchronously; ignored when a publisher is set.
func WithInlineMirror(m Mirrorer) IngestOption {
	return func(s *IngestService) { s.mirror = m }
}

func NewIngestService(parser *core.Parser, st store.Appender, logger *applog.Logger, opts ...IngestOption) *IngestService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentIngest)
	s := &IngestService{
		parser: parser,
		store:  st,
		logger: logger,
		events: applog.NewStructuredLogger(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest parses text and stores the transaction for chatID. It reports
// false with a nil error when text is not a payment notification. Mirror
// failures are logged and never fail ingestion.
func (s *IngestService) Ingest(ctx context.Context, chatID int64, text string) (core.Transaction, bool, error) {
	tx, err := s.parser.Parse(text)
	if errors.Is(err, core.ErrNoMatch) {
		metrics.MessagesIgnored.Inc()
		return core.Transaction{}, false, nil
	}
	if err != nil {
		return core.Transaction{}, false, err
	}
	tx.ChatID = chatID

	id, err := s.store.Append(ctx, tx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues(applog.OpAppend).Inc()
		s.events.LogError(ctx, "Failed to store transaction", err, applog.OpAppend,
			applog.NewFields().WithTransaction(chatID, tx.Amount.String(), tx.Currency.String(), tx.OccurredAt))
		return core.Transaction{}, false, fmt.Errorf("store transaction: %w", err)
	}
	tx.ID = id
	metrics.TransactionsRecorded.WithLabelValues(tx.Currency.String()).Inc()
	s.events.LogTransactionRecorded(ctx, id, chatID, tx.Amount.String(), tx.Currency.String(), tx.OccurredAt)

	s.forward(ctx, tx)
	return tx, true, nil
}

func (s *IngestService) forward(ctx context.Context, tx core.Transaction) {
	switch {
	case s.publisher != nil:
		if err := s.publisher.PublishMirror(ctx, tx); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish mirror message, left for pending scan",
				applog.FieldTxID, tx.ID, applog.FieldError, err)
		}
	case s.mirror != nil:
		if err := s.mirror.Mirror(ctx, tx); err != nil {
			s.logger.WarnContext(ctx, "Inline mirror failed, left for pending scan",
				applog.FieldTxID, tx.ID, applog.FieldError, err)
		}
	}
}
