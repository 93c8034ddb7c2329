package costs

import (
	"strings"
	"time"
)

// Window labels.
const (
	LabelToday     = "today"
	LabelYesterday = "yesterday"
	LabelThisWeek  = "this_week"
	LabelThisMonth = "this_month"
	LabelAllTime   = "all_time"
)

// Window is a named, calendar-anchored time range. Events with
// Start <= timestamp < End fall inside it.
type Window struct {
	Label string
	Start time.Time
	End   time.Time
}

// windowSpec pairs the phrases that select a window with its resolver.
// Evaluated top-down; first phrase match wins. New phrases are additions
// to the table, not new branches.
type windowSpec struct {
	phrases []string
	resolve func(now time.Time) Window
}

var windowTable = []windowSpec{
	{
		phrases: []string{"yesterday"},
		resolve: func(now time.Time) Window {
			start := startOfDay(now).AddDate(0, 0, -1)
			return Window{Label: LabelYesterday, Start: start, End: start.AddDate(0, 0, 1)}
		},
	},
	{
		phrases: []string{"week"},
		resolve: func(now time.Time) Window {
			return Window{Label: LabelThisWeek, Start: startOfWeek(now), End: now}
		},
	},
	{
		phrases: []string{"month"},
		resolve: func(now time.Time) Window {
			start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
			return Window{Label: LabelThisMonth, Start: start, End: now}
		},
	},
	{
		phrases: []string{"total", "all", "began"},
		resolve: allTime,
	},
	{
		phrases: []string{"today"},
		resolve: func(now time.Time) Window {
			return Window{Label: LabelToday, Start: startOfDay(now), End: now}
		},
	},
}

func allTime(now time.Time) Window {
	return Window{Label: LabelAllTime, End: now}
}

// Resolve classifies a free-text cost query into a window, anchored to the
// local calendar at now. Matching is case-insensitive substring against the
// phrase table; unmatched text falls back to all-time.
func Resolve(query string, now time.Time) Window {
	q := strings.ToLower(query)
	for _, spec := range windowTable {
		for _, phrase := range spec.phrases {
			if strings.Contains(q, phrase) {
				return spec.resolve(now)
			}
		}
	}
	return allTime(now)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns Monday 00:00 of t's week.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}
