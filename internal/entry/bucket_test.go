package entry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 30, 0, 0, time.UTC)
}

func TestGrouping_ByWeek(t *testing.T) {
	g := Grouping{Locale: LocalePtBR, WeekStart: time.Sunday, Location: time.UTC}

	// 2026-10-18 is a Sunday
	entries := []Entry{
		newEntry("e1", at(2026, 10, 20)),
		newEntry("e2", at(2026, 10, 18)),
		newEntry("e3", at(2026, 10, 17)),
		newEntry("e4", at(2026, 10, 11)),
	}

	buckets := g.ByWeek(entries)
	require.Len(t, buckets, 2)

	assert.Equal(t, "18 de out - 24 de out", buckets[0].Label)
	require.Len(t, buckets[0].Entries, 2)
	assert.Equal(t, "e1", buckets[0].Entries[0].ID)
	assert.Equal(t, "e2", buckets[0].Entries[1].ID)

	assert.Equal(t, "11 de out - 17 de out", buckets[1].Label)
	require.Len(t, buckets[1].Entries, 2)
	assert.NotEqual(t, buckets[0].Key, buckets[1].Key)
}

func TestGrouping_ByWeekKeys(t *testing.T) {
	tests := []struct {
		name      string
		weekStart time.Weekday
		when      time.Time
		wantKey   string
	}{
		{name: "first week of year", weekStart: time.Sunday, when: at(2026, 1, 1), wantKey: "2026-W01"},
		{name: "second week", weekStart: time.Sunday, when: at(2026, 1, 4), wantKey: "2026-W02"},
		{name: "late december rolls into next year", weekStart: time.Sunday, when: at(2025, 12, 29), wantKey: "2026-W01"},
		{name: "monday start", weekStart: time.Monday, when: at(2026, 1, 5), wantKey: "2026-W02"},
		{name: "mid year", weekStart: time.Sunday, when: at(2026, 10, 18), wantKey: "2026-W43"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Grouping{Locale: LocaleEN, WeekStart: tt.weekStart, Location: time.UTC}
			buckets := g.ByWeek([]Entry{newEntry("x", tt.when)})
			require.Len(t, buckets, 1)
			assert.Equal(t, tt.wantKey, buckets[0].Key)
		})
	}
}

func TestGrouping_ByWeekEnglishLabel(t *testing.T) {
	g := Grouping{Locale: LocaleEN, WeekStart: time.Monday, Location: time.UTC}
	buckets := g.ByWeek([]Entry{newEntry("x", at(2026, 10, 21))})
	require.Len(t, buckets, 1)
	assert.Equal(t, "Oct 19 - Oct 25", buckets[0].Label)
}

func TestGrouping_ByMonth(t *testing.T) {
	entries := []Entry{
		newEntry("e1", at(2026, 10, 2)),
		newEntry("e2", at(2026, 9, 30)),
		newEntry("e3", at(2026, 10, 1)),
	}

	pt := Grouping{Locale: LocalePtBR, Location: time.UTC}.ByMonth(entries)
	require.Len(t, pt, 2)
	assert.Equal(t, "2026-10", pt[0].Key)
	assert.Equal(t, "Outubro de 2026", pt[0].Label)
	assert.Len(t, pt[0].Entries, 2)
	assert.Equal(t, "2026-09", pt[1].Key)
	assert.Equal(t, "Setembro de 2026", pt[1].Label)

	en := Grouping{Locale: LocaleEN, Location: time.UTC}.ByMonth(entries)
	assert.Equal(t, "October 2026", en[0].Label)
}

func TestGrouping_MarchLabelKeepsAccent(t *testing.T) {
	buckets := Grouping{Locale: LocalePtBR, Location: time.UTC}.ByMonth([]Entry{newEntry("x", at(2026, 3, 10))})
	require.Len(t, buckets, 1)
	assert.Equal(t, "Março de 2026", buckets[0].Label)
}

func TestGrouping_Empty(t *testing.T) {
	assert.Empty(t, DefaultGrouping().ByWeek(nil))
	assert.Empty(t, DefaultGrouping().ByMonth(nil))
}

func TestParseGroupMode(t *testing.T) {
	mode, err := ParseGroupMode(" Week ")
	require.NoError(t, err)
	assert.Equal(t, GroupByWeek, mode)

	mode, err = ParseGroupMode("month")
	require.NoError(t, err)
	assert.Equal(t, GroupByMonth, mode)

	_, err = ParseGroupMode("year")
	assert.Error(t, err)
}
