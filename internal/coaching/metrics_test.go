package coaching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2026-10-12", "2026-10-12"}, // Monday
		{"2026-10-14", "2026-10-12"},
		{"2026-10-18", "2026-10-12"}, // Sunday
		{"2026-10-19", "2026-10-19"},
		{"2026-11-01", "2026-10-26"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, date(tt.want), WeekStart(date(tt.in).Add(15*time.Hour)))
		})
	}
}

func TestWindow(t *testing.T) {
	now := date("2026-10-15")

	from, to := Window(date("2026-10-12"), now)
	assert.Equal(t, date("2026-10-01"), from, "month start is before the previous week")
	assert.Equal(t, date("2026-10-18"), to)

	from, _ = Window(date("2026-10-26"), date("2026-10-28"))
	assert.Equal(t, date("2026-10-01"), from)

	from, _ = Window(date("2026-11-02"), date("2026-11-03"))
	assert.Equal(t, date("2026-10-26"), from, "previous week starts before the month")
}

func TestSummarize(t *testing.T) {
	f := seededStore()
	targets := Targets{MonthlyItems: 40, DailyQHH: 5}

	m := Summarize(f.entries, f.producers, date("2026-10-14"), targets, date("2026-10-15").Add(9*time.Hour))

	assert.Equal(t, date("2026-10-12"), m.WeekStart)
	assert.Equal(t, date("2026-10-18"), m.WeekEnd)
	assert.Equal(t, date("2026-10-15"), m.AsOf)
	assert.Equal(t, 11, m.BusinessDaysElapsed)
	assert.Equal(t, 22, m.BusinessDaysInMonth)

	require.Len(t, m.Producers, 2, "inactive and unknown producers are excluded")
	assert.Equal(t, "pat@example.com", m.Producers[0].Email)
	assert.Equal(t, "sam@example.com", m.Producers[1].Email)

	pat := m.Producers[0]
	assert.Equal(t, Totals{Dials: 80, QHH: 10, Quotes: 8, Items: 3, DaysLogged: 2}, pat.Week)
	assert.Equal(t, Totals{Dials: 40, QHH: 5, Quotes: 4, Items: 2, DaysLogged: 1}, pat.PrevWeek)
	assert.Equal(t, 30.0, pat.CloseRate)
	assert.Equal(t, 5.0, pat.QuotePace)
	assert.Equal(t, 100.0, pat.QuotePacePct)
	assert.Equal(t, 8, pat.MonthToDateItems)
	assert.Equal(t, 16.0, pat.VCPacing)
	assert.Equal(t, 40.0, pat.VCPacingPct)
	assert.Equal(t, "Google Ads", pat.TopSource)
	require.NotNil(t, pat.WoW.Dials)
	assert.Equal(t, 100.0, *pat.WoW.Dials)
	assert.Equal(t, 50.0, *pat.WoW.Items)

	sam := m.Producers[1]
	assert.Zero(t, sam.Week.DaysLogged)
	assert.Equal(t, -100.0, *sam.WoW.Dials)
	assert.Nil(t, sam.WoW.QHH, "no percentage when the previous week was zero")
	assert.Nil(t, sam.WoW.Items)
	assert.Zero(t, sam.CloseRate)
	assert.Empty(t, sam.TopSource)

	assert.Equal(t, Totals{Dials: 80, QHH: 10, Quotes: 8, Items: 3, DaysLogged: 2}, m.Totals)
	assert.Equal(t, 50, m.PrevTotals.Dials)
	assert.Equal(t, 60.0, *m.WoW.Dials)
	assert.Equal(t, 30.0, m.CloseRate)

	p, ok := m.Producer("PAT@example.com")
	assert.True(t, ok)
	assert.Equal(t, "Pat Lee", p.Name)
	_, ok = m.Producer("old@example.com")
	assert.False(t, ok)
}

func TestSummarize_PastWeekUsesWeekEndForPacing(t *testing.T) {
	f := seededStore()
	m := Summarize(f.entries, f.producers, date("2026-10-12"), Targets{MonthlyItems: 40}, date("2026-11-20"))

	assert.Equal(t, date("2026-10-18"), m.AsOf)
	assert.Equal(t, 12, m.BusinessDaysElapsed)
	assert.Zero(t, m.Producers[0].QuotePacePct, "no daily target configured")
}

func TestSummarize_Empty(t *testing.T) {
	m := Summarize(nil, nil, date("2026-10-12"), Targets{}, date("2026-10-15"))
	assert.Empty(t, m.Producers)
	assert.NotNil(t, m.Producers)
	assert.Nil(t, m.WoW.Dials)
	assert.Zero(t, m.CloseRate)
}

func TestBusinessDays(t *testing.T) {
	assert.Equal(t, 5, businessDays(date("2026-10-12"), date("2026-10-18")))
	assert.Equal(t, 0, businessDays(date("2026-10-17"), date("2026-10-18")))
	assert.Equal(t, 1, businessDays(date("2026-10-12"), date("2026-10-12")))
	assert.Equal(t, 0, businessDays(date("2026-10-13"), date("2026-10-12")))
}
