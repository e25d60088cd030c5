package coaching

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/salesops/internal/core"
)

const day = 24 * time.Hour

// Targets are the goals pacing percentages are measured against.
type Targets struct {
	MonthlyItems int     // VC items per producer per month
	DailyQHH     float64 // quoted households per logged day
}

// Totals is the activity sum over a period.
type Totals struct {
	Dials       int `json:"dials"`
	TalkMinutes int `json:"talk_minutes"`
	QHH         int `json:"qhh"`
	Quotes      int `json:"quotes"`
	Items       int `json:"items"`
	DaysLogged  int `json:"days_logged"`
}

func (t *Totals) add(e core.CanonicalEntry) {
	t.Dials += e.OutboundDials
	t.TalkMinutes += e.TalkMinutes
	t.QHH += e.QHHTotal
	t.Quotes += e.QuotesTotal()
	t.Items += e.ItemsTotal
	t.DaysLogged++
}

func (t *Totals) merge(o Totals) {
	t.Dials += o.Dials
	t.TalkMinutes += o.TalkMinutes
	t.QHH += o.QHH
	t.Quotes += o.Quotes
	t.Items += o.Items
	t.DaysLogged += o.DaysLogged
}

// Deltas are week-over-week percent changes. A nil field means the previous
// week was zero and no percentage exists.
type Deltas struct {
	Dials *float64 `json:"dials"`
	QHH   *float64 `json:"qhh"`
	Items *float64 `json:"items"`
}

// ProducerMetrics are the derived numbers for one producer and week.
type ProducerMetrics struct {
	Email string `json:"email"`
	Name  string `json:"name"`

	Week     Totals `json:"week"`
	PrevWeek Totals `json:"prev_week"`
	WoW      Deltas `json:"wow"`

	CloseRate    float64 `json:"close_rate"`
	QuotePace    float64 `json:"quote_pace"`
	QuotePacePct float64 `json:"quote_pace_pct"`

	MonthToDateItems int     `json:"mtd_items"`
	VCPacing         float64 `json:"vc_pacing"`
	VCPacingPct      float64 `json:"vc_pacing_pct"`

	TopSource string `json:"top_source,omitempty"`
}

// TeamMetrics is the weekly summary across active producers.
type TeamMetrics struct {
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
	AsOf      time.Time `json:"as_of"`

	Producers []ProducerMetrics `json:"producers"`

	Totals     Totals  `json:"totals"`
	PrevTotals Totals  `json:"prev_totals"`
	WoW        Deltas  `json:"wow"`
	CloseRate  float64 `json:"close_rate"`

	BusinessDaysElapsed int `json:"business_days_elapsed"`
	BusinessDaysInMonth int `json:"business_days_in_month"`
}

// Producer returns the metrics for email, if present.
func (m TeamMetrics) Producer(email string) (ProducerMetrics, bool) {
	for _, p := range m.Producers {
		if strings.EqualFold(p.Email, email) {
			return p, true
		}
	}
	return ProducerMetrics{}, false
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// Window returns the inclusive date range of entries Summarize needs for
// the week starting at weekStart: the previous week plus the month to date.
func Window(weekStart, now time.Time) (from, to time.Time) {
	weekStart = WeekStart(weekStart)
	asOf := asOfDate(weekStart, now)
	from = weekStart.AddDate(0, 0, -7)
	if ms := monthStart(asOf); ms.Before(from) {
		from = ms
	}
	return from, weekStart.AddDate(0, 0, 6)
}

// Summarize computes team and per-producer metrics for the week starting at
// weekStart. Inactive producers and producers with no activity in either
// week are left out. Entries for unknown producers are ignored.
func Summarize(entries []core.CanonicalEntry, producers []core.Producer, weekStart time.Time, targets Targets, now time.Time) TeamMetrics {
	weekStart = WeekStart(weekStart)
	weekEnd := weekStart.AddDate(0, 0, 7)
	prevStart := weekStart.AddDate(0, 0, -7)
	asOf := asOfDate(weekStart, now)
	mStart := monthStart(asOf)

	type acc struct {
		producer core.Producer
		week     Totals
		prev     Totals
		mtd      int
		sources  map[string]int
	}
	byEmail := make(map[string]*acc, len(producers))
	for _, p := range producers {
		if !p.Active {
			continue
		}
		byEmail[strings.ToLower(p.Email)] = &acc{producer: p, sources: map[string]int{}}
	}

	for _, e := range entries {
		a, ok := byEmail[strings.ToLower(e.ProducerEmail)]
		if !ok {
			continue
		}
		d, ok := core.ParseEntryDate(e.EntryDate)
		if !ok {
			continue
		}
		switch {
		case !d.Before(weekStart) && d.Before(weekEnd):
			a.week.add(e)
			for _, s := range e.Sources {
				a.sources[s.SourceName] += s.QHH
			}
		case !d.Before(prevStart) && d.Before(weekStart):
			a.prev.add(e)
		}
		if !d.Before(mStart) && !d.After(asOf) {
			a.mtd += e.ItemsTotal
		}
	}

	elapsed := businessDays(mStart, asOf)
	total := businessDays(mStart, mStart.AddDate(0, 1, -1))

	m := TeamMetrics{
		WeekStart:           weekStart,
		WeekEnd:             weekEnd.AddDate(0, 0, -1),
		AsOf:                asOf,
		Producers:           []ProducerMetrics{},
		BusinessDaysElapsed: elapsed,
		BusinessDaysInMonth: total,
	}

	for _, a := range byEmail {
		if a.week.DaysLogged == 0 && a.prev.DaysLogged == 0 {
			continue
		}
		pm := ProducerMetrics{
			Email:            a.producer.Email,
			Name:             a.producer.DisplayName,
			Week:             a.week,
			PrevWeek:         a.prev,
			WoW:              deltas(a.week, a.prev),
			CloseRate:        round1(ratio(a.week.Items, a.week.QHH) * 100),
			MonthToDateItems: a.mtd,
			TopSource:        topSource(a.sources),
		}
		pace := ratio(a.week.QHH, a.week.DaysLogged)
		pm.QuotePace = round1(pace)
		if targets.DailyQHH > 0 {
			pm.QuotePacePct = round1(pace / targets.DailyQHH * 100)
		}
		if elapsed > 0 {
			projected := float64(a.mtd) / float64(elapsed) * float64(total)
			pm.VCPacing = round1(projected)
			if targets.MonthlyItems > 0 {
				pm.VCPacingPct = round1(projected / float64(targets.MonthlyItems) * 100)
			}
		}

		m.Producers = append(m.Producers, pm)
		m.Totals.merge(a.week)
		m.PrevTotals.merge(a.prev)
	}

	sort.Slice(m.Producers, func(i, j int) bool {
		a, b := m.Producers[i], m.Producers[j]
		if a.Week.Items != b.Week.Items {
			return a.Week.Items > b.Week.Items
		}
		if a.Week.QHH != b.Week.QHH {
			return a.Week.QHH > b.Week.QHH
		}
		return a.Email < b.Email
	})

	m.WoW = deltas(m.Totals, m.PrevTotals)
	m.CloseRate = round1(ratio(m.Totals.Items, m.Totals.QHH) * 100)
	return m
}

// asOfDate is the last day counted toward month-to-date pacing: today, or
// the last day of the week when the week is already over.
func asOfDate(weekStart, now time.Time) time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	last := weekStart.AddDate(0, 0, 6)
	if today.Before(last) && !today.Before(weekStart) {
		return today
	}
	return last
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// businessDays counts Monday through Friday in [from, to].
func businessDays(from, to time.Time) int {
	n := 0
	for d := from; !d.After(to); d = d.Add(day) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

func deltas(cur, prev Totals) Deltas {
	return Deltas{
		Dials: pctChange(cur.Dials, prev.Dials),
		QHH:   pctChange(cur.QHH, prev.QHH),
		Items: pctChange(cur.Items, prev.Items),
	}
}

func pctChange(cur, prev int) *float64 {
	if prev == 0 {
		return nil
	}
	v := round1(float64(cur-prev) / float64(prev) * 100)
	return &v
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func topSource(qhh map[string]int) string {
	best, bestQHH := "", 0
	for name, n := range qhh {
		if n > bestQHH || (n == bestQHH && n > 0 && name < best) {
			best, bestQHH = name, n
		}
	}
	return best
}
