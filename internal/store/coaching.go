package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/salesops/internal/coaching"
)

// SaveEpisode stores an episode and its focus areas in one transaction.
func (s *Store) SaveEpisode(ctx context.Context, ep coaching.Episode) error {
	id, err := toPgUUID(ep.ID)
	if err != nil {
		return fmt.Errorf("save episode: %w", err)
	}
	strengths := ep.Strengths
	if strengths == nil {
		strengths = []string{}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		producerID, err := s.producerID(ctx, tx, ep.ProducerEmail)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO coaching_episodes
				(id, producer_id, week_start, title, summary, strengths, practice_script,
				 score, metrics, raw_response, model_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, id, producerID, dateOf(ep.WeekStart), ep.Title, ep.Summary, strengths,
			toPgText(ep.PracticeScript), toPgInt4(ep.Score), metricsJSON(ep.Metrics),
			toPgText(ep.RawResponse), toPgText(ep.ModelID), ep.CreatedAt); err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}

		if len(ep.FocusAreas) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i, fa := range ep.FocusAreas {
			batch.Queue(`
				INSERT INTO coaching_focus_areas (episode_id, position, metric, observation, action)
				VALUES ($1, $2, $3, $4, $5)
			`, id, i, fa.Metric, fa.Observation, fa.Action)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert focus areas: %w", err)
		}
		return nil
	})
}

// metricsJSON passes nil for an empty snapshot so the column stays NULL.
func metricsJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// ListEpisodes returns a producer's episodes, newest first.
func (s *Store) ListEpisodes(ctx context.Context, producerEmail string, limit int) ([]coaching.Episode, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, p.email, e.week_start, e.title, e.summary, e.strengths,
		       e.practice_script, e.score, e.metrics, e.model_id, e.created_at
		FROM coaching_episodes e
		JOIN producers p ON p.id = e.producer_id
		WHERE lower(p.email) = lower($1)
		ORDER BY e.created_at DESC
		LIMIT $2
	`, strings.TrimSpace(producerEmail), limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var (
		out   []coaching.Episode
		ids   []pgtype.UUID
		index = map[pgtype.UUID]int{}
	)
	for rows.Next() {
		var (
			ep      coaching.Episode
			id      pgtype.UUID
			week    pgtype.Date
			script  pgtype.Text
			score   pgtype.Int4
			metrics []byte
			modelID pgtype.Text
		)
		if err := rows.Scan(&id, &ep.ProducerEmail, &week, &ep.Title, &ep.Summary, &ep.Strengths,
			&script, &score, &metrics, &modelID, &ep.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		ep.ID = fromPgUUID(id)
		ep.WeekStart = week.Time
		ep.PracticeScript = script.String
		ep.Score = int(score.Int32)
		ep.Metrics = metrics
		ep.ModelID = modelID.String
		ep.FocusAreas = []coaching.FocusArea{}

		index[id] = len(out)
		ids = append(ids, id)
		out = append(out, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	focus, err := s.pool.Query(ctx, `
		SELECT episode_id, metric, observation, action
		FROM coaching_focus_areas
		WHERE episode_id = ANY($1)
		ORDER BY episode_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("list focus areas: %w", err)
	}
	defer focus.Close()

	for focus.Next() {
		var (
			id pgtype.UUID
			fa coaching.FocusArea
		)
		if err := focus.Scan(&id, &fa.Metric, &fa.Observation, &fa.Action); err != nil {
			return nil, fmt.Errorf("scan focus area: %w", err)
		}
		if i, ok := index[id]; ok {
			out[i].FocusAreas = append(out[i].FocusAreas, fa)
		}
	}
	return out, focus.Err()
}

// HasTeamReport reports whether the team email for weekStart was sent.
func (s *Store) HasTeamReport(ctx context.Context, weekStart time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM team_reports WHERE week_start = $1)`,
		dateOf(weekStart),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check team report: %w", err)
	}
	return exists, nil
}

// SaveTeamReport records a sent team email. Re-sending a week replaces the
// earlier record.
func (s *Store) SaveTeamReport(ctx context.Context, r coaching.TeamReport) error {
	id, err := toPgUUID(r.ID)
	if err != nil {
		return fmt.Errorf("save team report: %w", err)
	}
	recipients := r.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO team_reports
			(id, week_start, subject, html_body, text_body, recipients, message_id, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (week_start) DO UPDATE SET
			subject    = EXCLUDED.subject,
			html_body  = EXCLUDED.html_body,
			text_body  = EXCLUDED.text_body,
			recipients = EXCLUDED.recipients,
			message_id = EXCLUDED.message_id,
			sent_at    = EXCLUDED.sent_at
	`, id, dateOf(r.WeekStart), r.Subject, r.HTMLBody, r.TextBody, recipients, toPgText(r.MessageID), r.SentAt)
	if err != nil {
		return fmt.Errorf("save team report: %w", err)
	}
	return nil
}
