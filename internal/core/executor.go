package core

import (
	"context"
	"log/slog"
)

// Execute saves each processed entry independently, in order.
//
// A failed save is logged with its payload and counted; later rows are
// still attempted. There is no transaction and no retry, so a partially
// failed import leaves the successful entries persisted.
func (s *Session) Execute(ctx context.Context, rows []CanonicalEntry) ImportSummary {
	return executeEntries(ctx, s.store, s.logger, rows)
}

func executeEntries(ctx context.Context, store Store, logger *slog.Logger, rows []CanonicalEntry) ImportSummary {
	var summary ImportSummary

	for _, entry := range rows {
		if err := store.SaveDailyEntry(ctx, entry); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, ImportFailure{
				ProducerEmail: entry.ProducerEmail,
				EntryDate:     entry.EntryDate,
				Error:         err.Error(),
			})
			logger.Error("save entry failed",
				"producer_email", entry.ProducerEmail,
				"entry_date", entry.EntryDate,
				"outbound_dials", entry.OutboundDials,
				"talk_minutes", entry.TalkMinutes,
				"items_total", entry.ItemsTotal,
				"qhh_total", entry.QHHTotal,
				"sources", len(entry.Sources),
				"error", err,
			)
			continue
		}
		summary.Succeeded++
	}

	return summary
}
