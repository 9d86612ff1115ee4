package entry

import (
	"fmt"
	"strings"
	"time"
)

// Locale selects the language used for bucket labels
type Locale string

const (
	LocalePtBR Locale = "pt-BR"
	LocaleEN   Locale = "en"
)

// GroupMode selects week or month buckets
type GroupMode string

const (
	GroupByWeek  GroupMode = "week"
	GroupByMonth GroupMode = "month"
)

// ParseGroupMode validates a group mode string
func ParseGroupMode(s string) (GroupMode, error) {
	switch GroupMode(strings.ToLower(strings.TrimSpace(s))) {
	case GroupByWeek:
		return GroupByWeek, nil
	case GroupByMonth:
		return GroupByMonth, nil
	}
	return "", fmt.Errorf("group must be 'week' or 'month', got: %q", s)
}

// Bucket is one calendar group of entries
type Bucket struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Entries []Entry `json:"entries"`
}

// Grouping holds the calendar convention used to bucket entries
type Grouping struct {
	Locale    Locale
	WeekStart time.Weekday
	Location  *time.Location
}

// DefaultGrouping matches the diary's original convention: Portuguese labels,
// weeks starting on Sunday, local time.
func DefaultGrouping() Grouping {
	return Grouping{Locale: LocalePtBR, WeekStart: time.Sunday, Location: time.Local}
}

// Group dispatches to ByWeek or ByMonth
func (g Grouping) Group(mode GroupMode, entries []Entry) []Bucket {
	if mode == GroupByMonth {
		return g.ByMonth(entries)
	}
	return g.ByWeek(entries)
}

// ByWeek groups entries by the week containing their creation time.
// Bucket order follows first appearance and entries keep their input order.
func (g Grouping) ByWeek(entries []Entry) []Bucket {
	return g.group(entries, func(t time.Time) (string, string) {
		start := g.startOfWeek(t)
		end := start.AddDate(0, 0, 6)
		year, week := g.weekOfYear(start)
		key := fmt.Sprintf("%04d-W%02d", year, week)
		return key, g.dayMonth(start) + " - " + g.dayMonth(end)
	})
}

// ByMonth groups entries by calendar month of their creation time
func (g Grouping) ByMonth(entries []Entry) []Bucket {
	return g.group(entries, func(t time.Time) (string, string) {
		key := t.Format("2006-01")
		var label string
		if g.Locale == LocalePtBR {
			label = fmt.Sprintf("%s de %d", ptMonths[t.Month()-1], t.Year())
		} else {
			label = fmt.Sprintf("%s %d", t.Month().String(), t.Year())
		}
		return key, capitalize(label)
	})
}

func (g Grouping) group(entries []Entry, keyFn func(time.Time) (string, string)) []Bucket {
	var buckets []Bucket
	index := make(map[string]int)

	for _, e := range entries {
		key, label := keyFn(g.localTime(e.CreatedAt))
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{Key: key, Label: label})
		}
		buckets[i].Entries = append(buckets[i].Entries, e.Clone())
	}
	return buckets
}

func (g Grouping) localTime(t time.Time) time.Time {
	if g.Location != nil {
		return t.In(g.Location)
	}
	return t
}

func (g Grouping) startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	diff := (int(day.Weekday()) - int(g.WeekStart) + 7) % 7
	return day.AddDate(0, 0, -diff)
}

// weekOfYear numbers weeks so that week 1 is the one containing January 1st
func (g Grouping) weekOfYear(weekStart time.Time) (int, int) {
	year := weekStart.Year()
	if end := weekStart.AddDate(0, 0, 6); end.Year() > year {
		return end.Year(), 1
	}
	first := g.startOfWeek(time.Date(year, time.January, 1, 0, 0, 0, 0, weekStart.Location()))
	days := int(weekStart.Sub(first).Hours()/24 + 0.5)
	return year, days/7 + 1
}

func (g Grouping) dayMonth(t time.Time) string {
	if g.Locale == LocalePtBR {
		return fmt.Sprintf("%d de %s", t.Day(), ptMonthsShort[t.Month()-1])
	}
	return t.Format("Jan 2")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var ptMonths = [12]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

var ptMonthsShort = [12]string{
	"jan", "fev", "mar", "abr", "mai", "jun",
	"jul", "ago", "set", "out", "nov", "dez",
}
