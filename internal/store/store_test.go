package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/salesops/internal/coaching"
	"github.com/JonMunkholm/salesops/internal/core"
)

// testStore connects to TEST_DATABASE_URL and starts from an empty schema.
// Tests are skipped when it is unset.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.Reset(ctx))
	return s
}

func TestProducersAndSources(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p, err := s.CreateProducer(ctx, core.Producer{Email: "Pat@Example.com", DisplayName: "Pat Lee", Active: true})
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", p.Email)
	assert.NotEmpty(t, p.ID)

	dup, err := s.CreateProducer(ctx, core.Producer{Email: "PAT@example.com", DisplayName: "Someone Else"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, dup.ID, "existing producer is returned")

	producers, err := s.ListProducers(ctx)
	require.NoError(t, err)
	require.Len(t, producers, 1)
	assert.Equal(t, p, producers[0])

	_, err = s.CreateSource(ctx, core.Source{Name: "Google Ads", Active: true, SortOrder: 2})
	require.NoError(t, err)
	_, err = s.CreateSource(ctx, core.Source{Name: "Referral", Active: true, SortOrder: 1})
	require.NoError(t, err)
	_, err = s.CreateSource(ctx, core.Source{Name: "referral", Active: true, SortOrder: 3})
	require.NoError(t, err, "source names are not unique")

	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, []string{"Referral", "Google Ads", "referral"},
		[]string{sources[0].Name, sources[1].Name, sources[2].Name})

	_, err = s.CreateSource(ctx, core.Source{Name: "  "})
	assert.Error(t, err)
}

func TestSaveDailyEntry(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.CreateProducer(ctx, core.Producer{Email: "pat@example.com", DisplayName: "Pat Lee", Active: true})
	require.NoError(t, err)
	ref, err := s.CreateSource(ctx, core.Source{Name: "Referral", Active: true, SortOrder: 1})
	require.NoError(t, err)
	ads, err := s.CreateSource(ctx, core.Source{Name: "Google Ads", Active: true, SortOrder: 2})
	require.NoError(t, err)

	entry := core.CanonicalEntry{
		ProducerEmail: "PAT@example.com",
		EntryDate:     "2026-10-12",
		OutboundDials: 50,
		TalkMinutes:   90,
		ItemsTotal:    3,
		QHHTotal:      7,
		Sources: []core.SourceBreakdown{
			{SourceID: ref.ID, SourceName: ref.Name, QHH: 4, Quotes: 3, Items: 2},
			{SourceID: ads.ID, SourceName: ads.Name, QHH: 3, Quotes: 2, Items: 1},
		},
	}
	require.NoError(t, s.SaveDailyEntry(ctx, entry))

	// Saving the same producer and date replaces the entry.
	entry.OutboundDials = 60
	entry.ItemsTotal = 2
	entry.QHHTotal = 4
	entry.Sources = entry.Sources[:1]
	require.NoError(t, s.SaveDailyEntry(ctx, entry))

	got, err := s.ListEntries(ctx, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pat@example.com", got[0].ProducerEmail)
	assert.Equal(t, 60, got[0].OutboundDials)
	assert.Equal(t, []core.SourceBreakdown{entry.Sources[0]}, got[0].Sources)

	err = s.SaveDailyEntry(ctx, core.CanonicalEntry{ProducerEmail: "ghost@example.com", EntryDate: "2026-10-12"})
	assert.ErrorIs(t, err, core.ErrUnknownProducer)

	none, err := s.ListEntries(ctx, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordImportRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.RecordImportRun(ctx, core.ImportRun{
		ID:        uuid.NewString(),
		FileName:  "week.csv",
		Format:    core.FormatNative,
		RowCount:  3,
		Processed: 3,
		Succeeded: 3,
		IPAddress: "not-an-ip",
		StartedAt: time.Now(),
		Duration:  250 * time.Millisecond,
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM import_runs WHERE ip_address IS NULL`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestEpisodesAndReports(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.CreateProducer(ctx, core.Producer{Email: "pat@example.com", DisplayName: "Pat Lee", Active: true})
	require.NoError(t, err)

	week := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	ep := coaching.Episode{
		ID:            uuid.NewString(),
		ProducerEmail: "pat@example.com",
		WeekStart:     week,
		Title:         "Close the gap",
		Summary:       "Good volume.",
		Strengths:     []string{"Dials"},
		FocusAreas: []coaching.FocusArea{
			{Metric: "close_rate", Observation: "30%", Action: "Ask sooner"},
			{Observation: "Short calls"},
		},
		Score:     7,
		Metrics:   json.RawMessage(`{"close_rate": 30}`),
		ModelID:   "test-model",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.SaveEpisode(ctx, ep))

	episodes, err := s.ListEpisodes(ctx, "PAT@example.com", 10)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, ep.ID, episodes[0].ID)
	assert.Equal(t, ep.FocusAreas, episodes[0].FocusAreas)
	assert.Equal(t, week, episodes[0].WeekStart)
	assert.JSONEq(t, `{"close_rate": 30}`, string(episodes[0].Metrics))

	ep.ProducerEmail = "ghost@example.com"
	ep.ID = uuid.NewString()
	assert.ErrorIs(t, s.SaveEpisode(ctx, ep), core.ErrUnknownProducer)

	sent, err := s.HasTeamReport(ctx, week)
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, s.SaveTeamReport(ctx, coaching.TeamReport{
		ID:         uuid.NewString(),
		WeekStart:  week,
		Subject:    "Recap",
		HTMLBody:   "<p>hi</p>",
		TextBody:   "hi",
		Recipients: []string{"boss@example.com"},
		MessageID:  "msg-1",
		SentAt:     time.Now(),
	}))
	sent, err = s.HasTeamReport(ctx, week)
	require.NoError(t, err)
	assert.True(t, sent)
}
