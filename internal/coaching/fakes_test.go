package coaching

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/salesops/internal/core"
	"github.com/JonMunkholm/salesops/internal/mailer"
)

type fakeStore struct {
	mu        sync.Mutex
	producers []core.Producer
	entries   []core.CanonicalEntry
	episodes  []Episode
	reports   []TeamReport
	sentWeeks map[string]bool

	listFrom, listTo time.Time
	saveErr          error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sentWeeks: map[string]bool{}}
}

func (f *fakeStore) ListProducers(ctx context.Context) ([]core.Producer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Producer(nil), f.producers...), nil
}

func (f *fakeStore) ListEntries(ctx context.Context, from, to time.Time) ([]core.CanonicalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFrom, f.listTo = from, to
	var out []core.CanonicalEntry
	for _, e := range f.entries {
		d, ok := core.ParseEntryDate(e.EntryDate)
		if ok && !d.Before(from) && !d.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveEpisode(ctx context.Context, ep Episode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.episodes = append(f.episodes, ep)
	return nil
}

func (f *fakeStore) ListEpisodes(ctx context.Context, email string, limit int) ([]Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Episode
	for i := len(f.episodes) - 1; i >= 0 && len(out) < limit; i-- {
		if strings.EqualFold(f.episodes[i].ProducerEmail, email) {
			out = append(out, f.episodes[i])
		}
	}
	return out, nil
}

func (f *fakeStore) HasTeamReport(ctx context.Context, weekStart time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentWeeks[weekStart.Format(core.DateLayout)], nil
}

func (f *fakeStore) SaveTeamReport(ctx context.Context, r TeamReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	f.sentWeeks[r.WeekStart.Format(core.DateLayout)] = true
	return nil
}

// fakeCompleter returns canned answers and records the prompts it saw.
type fakeCompleter struct {
	answer string
	err    error

	calls   int
	systems []string
	users   []string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg-1", nil
}

func date(s string) time.Time {
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func entry(email, day string, dials, items int, sources ...core.SourceBreakdown) core.CanonicalEntry {
	e := core.CanonicalEntry{
		ProducerEmail: email,
		EntryDate:     day,
		OutboundDials: dials,
		ItemsTotal:    items,
		Sources:       sources,
	}
	for _, s := range sources {
		e.QHHTotal += s.QHH
	}
	return e
}

func src(name string, qhh, quotes, items int) core.SourceBreakdown {
	return core.SourceBreakdown{SourceID: strings.ToLower(name), SourceName: name, QHH: qhh, Quotes: quotes, Items: items}
}

// seededStore holds two active producers and one inactive producer with
// activity around the week of 2026-10-12.
func seededStore() *fakeStore {
	f := newFakeStore()
	f.producers = []core.Producer{
		{ID: "p1", Email: "pat@example.com", DisplayName: "Pat Lee", Active: true},
		{ID: "p2", Email: "sam@example.com", DisplayName: "Sam Roe", Active: true},
		{ID: "p3", Email: "old@example.com", DisplayName: "Old Timer", Active: false},
	}
	f.entries = []core.CanonicalEntry{
		entry("pat@example.com", "2026-10-02", 20, 3, src("Referral", 3, 3, 3)),
		entry("pat@example.com", "2026-10-06", 40, 2, src("Referral", 5, 4, 2)),
		entry("pat@example.com", "2026-10-12", 50, 2, src("Referral", 4, 3, 2)),
		entry("pat@example.com", "2026-10-13", 30, 1, src("Google Ads", 6, 5, 1)),
		entry("sam@example.com", "2026-10-07", 10, 0),
		entry("old@example.com", "2026-10-12", 99, 0),
		entry("ghost@example.com", "2026-10-12", 99, 0),
	}
	return f
}
