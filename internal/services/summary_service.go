package services

import (
	"context"
	"fmt"

	"paybot/internal/core"
	applog "paybot/internal/log"
	"paybot/internal/metrics"
	"paybot/internal/period"
	"paybot/internal/store"
)

// SummaryService answers "how much was received in this period".
type SummaryService struct {
	store  store.RangeQuerier
	logger *applog.Logger
}

func NewSummaryService(st store.RangeQuerier, logger *applog.Logger) *SummaryService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SummaryService{store: st, logger: logger.WithComponent(applog.ComponentSummary)}
}

// Summarize totals chatID's transactions in iv, bounds inclusive. source
// labels the request for metrics (menu entry or command).
func (s *SummaryService) Summarize(ctx context.Context, chatID int64, iv period.Interval, source string) (core.Totals, error) {
	totals, err := s.store.QueryRange(ctx, chatID, iv.Start, iv.End)
	if err != nil {
		metrics.StoreErrors.WithLabelValues(applog.OpQuery).Inc()
		return core.Totals{}, fmt.Errorf("query range %s: %w", iv, err)
	}
	metrics.Summaries.WithLabelValues(source).Inc()
	s.logger.DebugContext(ctx, "Summary computed",
		applog.FieldChatID, chatID,
		"interval", iv.String(),
		applog.FieldCount, totals.Count)
	return totals, nil
}
