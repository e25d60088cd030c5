package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/salesops/internal/core"
)

// SaveDailyEntry upserts e on (producer, date) and replaces its source
// breakdown rows, all in one transaction.
func (s *Store) SaveDailyEntry(ctx context.Context, e core.CanonicalEntry) error {
	date, err := toPgDate(e.EntryDate)
	if err != nil {
		return err
	}

	sourceIDs := make([]pgtype.UUID, len(e.Sources))
	for i, b := range e.Sources {
		if sourceIDs[i], err = toPgUUID(b.SourceID); err != nil {
			return fmt.Errorf("source %q: %w", b.SourceName, err)
		}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		producerID, err := s.producerID(ctx, tx, e.ProducerEmail)
		if err != nil {
			return err
		}

		var entryID pgtype.UUID
		err = tx.QueryRow(ctx, `
			INSERT INTO daily_entries
				(id, producer_id, entry_date, outbound_dials, talk_minutes, items_total, qhh_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (producer_id, entry_date) DO UPDATE SET
				outbound_dials = EXCLUDED.outbound_dials,
				talk_minutes   = EXCLUDED.talk_minutes,
				items_total    = EXCLUDED.items_total,
				qhh_total      = EXCLUDED.qhh_total,
				updated_at     = NOW()
			RETURNING id
		`, newID(), producerID, date, e.OutboundDials, e.TalkMinutes, e.ItemsTotal, e.QHHTotal).Scan(&entryID)
		if err != nil {
			return fmt.Errorf("upsert daily entry: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM entry_sources WHERE entry_id = $1`, entryID); err != nil {
			return fmt.Errorf("clear entry sources: %w", err)
		}
		if len(e.Sources) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i, b := range e.Sources {
			batch.Queue(`
				INSERT INTO entry_sources (entry_id, source_id, qhh, quotes, items)
				VALUES ($1, $2, $3, $4, $5)
			`, entryID, sourceIDs[i], b.QHH, b.Quotes, b.Items)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert entry sources: %w", err)
		}
		return nil
	})
}

// ListEntries returns entries dated within [from, to] with their source
// breakdowns, ordered by date and producer.
func (s *Store) ListEntries(ctx context.Context, from, to time.Time) ([]core.CanonicalEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, p.email, d.entry_date, d.outbound_dials, d.talk_minutes,
		       d.items_total, d.qhh_total,
		       es.source_id, src.name, es.qhh, es.quotes, es.items
		FROM daily_entries d
		JOIN producers p ON p.id = d.producer_id
		LEFT JOIN entry_sources es ON es.entry_id = d.id
		LEFT JOIN sources src ON src.id = es.source_id
		WHERE d.entry_date BETWEEN $1 AND $2
		ORDER BY d.entry_date, lower(p.email), src.sort_order, src.name
	`, dateOf(from), dateOf(to))
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var (
		out  []core.CanonicalEntry
		last pgtype.UUID
	)
	for rows.Next() {
		var (
			entryID  pgtype.UUID
			e        core.CanonicalEntry
			date     pgtype.Date
			sourceID pgtype.UUID
			name     pgtype.Text
			qhh      pgtype.Int4
			quotes   pgtype.Int4
			items    pgtype.Int4
		)
		if err := rows.Scan(&entryID, &e.ProducerEmail, &date, &e.OutboundDials, &e.TalkMinutes,
			&e.ItemsTotal, &e.QHHTotal, &sourceID, &name, &qhh, &quotes, &items); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if len(out) == 0 || entryID != last {
			e.ProducerEmail = strings.ToLower(e.ProducerEmail)
			e.EntryDate = fromPgDate(date)
			e.Sources = []core.SourceBreakdown{}
			out = append(out, e)
			last = entryID
		}
		if sourceID.Valid {
			cur := &out[len(out)-1]
			cur.Sources = append(cur.Sources, core.SourceBreakdown{
				SourceID:   fromPgUUID(sourceID),
				SourceName: name.String,
				QHH:        int(qhh.Int32),
				Quotes:     int(quotes.Int32),
				Items:      int(items.Int32),
			})
		}
	}
	return out, rows.Err()
}

// RecordImportRun stores the audit record of one import.
func (s *Store) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	id, err := toPgUUID(run.ID)
	if err != nil {
		id = newID()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO import_runs
			(id, file_name, format, row_count, processed, succeeded, failed,
			 error_count, warning_count, archive_key, ip_address, user_agent,
			 started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, id, run.FileName, string(run.Format), run.RowCount, run.Processed, run.Succeeded, run.Failed,
		run.Errors, run.Warnings, toPgText(run.ArchiveKey), toInet(run.IPAddress), toPgText(run.UserAgent),
		run.StartedAt, run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record import run: %w", err)
	}
	return nil
}
