package costs

import (
	"testing"
	"time"

	"github.com/kalambet/ytrag/internal/storage"
)

func TestResolveClassification(t *testing.T) {
	now := time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC) // a Wednesday

	tests := []struct {
		query string
		want  string
	}{
		{"How much did yesterday cost?", LabelYesterday},
		{"yesterday", LabelYesterday},
		{"This week's costs", LabelThisWeek},
		{"what did this MONTH cost", LabelThisMonth},
		{"Total cost since project began", LabelAllTime},
		{"all of it", LabelAllTime},
		{"What is today's cost?", LabelToday},
		{"no idea what I'm asking", LabelAllTime},
		{"", LabelAllTime},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := Resolve(tt.query, now)
			if got.Label != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.query, got.Label, tt.want)
			}
		})
	}
}

func TestResolveAnchors(t *testing.T) {
	now := time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC) // Wednesday

	today := Resolve("today", now)
	if !today.Start.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("today starts %v", today.Start)
	}
	if !today.End.Equal(now) {
		t.Errorf("today ends %v, want now", today.End)
	}

	yesterday := Resolve("yesterday", now)
	if !yesterday.Start.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("yesterday starts %v", yesterday.Start)
	}
	if !yesterday.End.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("yesterday ends %v", yesterday.End)
	}

	week := Resolve("week", now)
	if !week.Start.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) { // Monday
		t.Errorf("week starts %v, want Monday", week.Start)
	}

	// Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)
	weekFromSunday := Resolve("week", sunday)
	if !weekFromSunday.Start.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week from Sunday starts %v, want previous Monday", weekFromSunday.Start)
	}

	month := Resolve("month", now)
	if !month.Start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month starts %v", month.Start)
	}
}

func ledgerFixture(now time.Time) []storage.CostEvent {
	return []storage.CostEvent{
		{ID: "old", Timestamp: now.AddDate(0, 0, -10), Kind: storage.KindIndex, Tokens: 1000, CostUSD: 0.30},
		{ID: "yesterday", Timestamp: now.AddDate(0, 0, -1), Kind: storage.KindQuery, Tokens: 200, CostUSD: 0.02},
		{ID: "today", Timestamp: now.Add(-time.Hour), Kind: storage.KindQuery, Tokens: 100, CostUSD: 0.01},
	}
}

func TestSummarizeWindows(t *testing.T) {
	// Wednesday, so today and yesterday share a week and the 10-day-old
	// event does not.
	now := time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)
	events := ledgerFixture(now)

	today := SummarizeQuery(events, "today", now)
	if today.EventCount != 1 || !approx(today.TotalCostUSD, 0.01) {
		t.Errorf("today = %+v, want only the today event", today)
	}

	week := SummarizeQuery(events, "this week", now)
	if week.EventCount != 2 || !approx(week.TotalCostUSD, 0.03) {
		t.Errorf("this week = %+v, want today and yesterday", week)
	}

	all := SummarizeQuery(events, "total cost since project began", now)
	if all.EventCount != 3 || !approx(all.TotalCostUSD, 0.33) {
		t.Errorf("all time = %+v, want all three events", all)
	}
	if all.IndexCount != 1 || all.QueryCount != 2 {
		t.Errorf("kind split = %d index / %d query, want 1/2", all.IndexCount, all.QueryCount)
	}
	if !approx(all.IndexCostUSD, 0.30) || !approx(all.QueryCostUSD, 0.03) {
		t.Errorf("kind costs = %f / %f", all.IndexCostUSD, all.QueryCostUSD)
	}
	if all.TotalTokens != 1300 {
		t.Errorf("TotalTokens = %d, want 1300", all.TotalTokens)
	}
}

func TestSummarizeEmptyLedger(t *testing.T) {
	now := time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)
	for _, query := range []string{"today", "yesterday", "week", "month", "total"} {
		sum := SummarizeQuery(nil, query, now)
		if sum.EventCount != 0 || sum.TotalCostUSD != 0 || sum.TotalTokens != 0 {
			t.Errorf("empty ledger %q = %+v, want zeros", query, sum)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one two three", 4},
		{"   spaced    out   words   ", 4},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestQueryCost(t *testing.T) {
	got := QueryCost(1_000_000, 1_000_000)
	if !approx(got, 0.075+0.30) {
		t.Errorf("QueryCost(1M, 1M) = %f", got)
	}
}

func approx(got, want float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
