package costs

import (
	"fmt"
	"io"
	"time"

	"github.com/kalambet/ytrag/internal/storage"
)

// Summary aggregates the ledger entries inside one window. A window with
// no events yields the zero Summary, never an error.
type Summary struct {
	WindowLabel  string
	TotalCostUSD float64
	TotalTokens  int
	IndexCostUSD float64
	QueryCostUSD float64
	IndexCount   int
	QueryCount   int
	EventCount   int
}

// Summarize filters a ledger snapshot by the window and sums amounts and
// tokens, split by event kind. Pure function: no clock, no I/O.
func Summarize(events []storage.CostEvent, w Window) Summary {
	sum := Summary{WindowLabel: w.Label}
	for _, ev := range events {
		if ev.Timestamp.Before(w.Start) || !ev.Timestamp.Before(w.End) {
			continue
		}
		sum.EventCount++
		sum.TotalCostUSD += ev.CostUSD
		sum.TotalTokens += ev.Tokens
		switch ev.Kind {
		case storage.KindIndex:
			sum.IndexCount++
			sum.IndexCostUSD += ev.CostUSD
		case storage.KindQuery:
			sum.QueryCount++
			sum.QueryCostUSD += ev.CostUSD
		}
	}
	return sum
}

// SummarizeQuery resolves a free-text window query and summarizes the
// ledger over it.
func SummarizeQuery(events []storage.CostEvent, query string, now time.Time) Summary {
	return Summarize(events, Resolve(query, now))
}

// WriteSummary writes the full cost report: the all-time totals split by
// kind, followed by the standard calendar windows.
func WriteSummary(w io.Writer, events []storage.CostEvent, now time.Time) {
	total := Summarize(events, allTime(now))

	fmt.Fprintln(w, "============================================================")
	fmt.Fprintln(w, "COST SUMMARY")
	fmt.Fprintln(w, "============================================================")
	fmt.Fprintf(w, "Total Cost: $%.6f USD\n", total.TotalCostUSD)
	fmt.Fprintf(w, "Total Transactions: %d\n", total.EventCount)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "By Transaction Type:")
	fmt.Fprintf(w, "  Indexing:  %d events, $%.6f USD\n", total.IndexCount, total.IndexCostUSD)
	fmt.Fprintf(w, "  Query:     %d events, $%.6f USD\n", total.QueryCount, total.QueryCostUSD)
	fmt.Fprintln(w)

	for _, label := range []string{LabelToday, LabelYesterday, LabelThisWeek, LabelThisMonth} {
		sum := Summarize(events, Resolve(labelPhrase(label), now))
		fmt.Fprintf(w, "%-11s $%.6f USD\n", labelTitle(label)+":", sum.TotalCostUSD)
	}
	fmt.Fprintln(w, "============================================================")
}

// WriteWindow writes the one-window answer for a cost query.
func WriteWindow(w io.Writer, sum Summary) {
	fmt.Fprintf(w, "%s cost: $%.6f USD (%d events, %d tokens)\n",
		labelTitle(sum.WindowLabel), sum.TotalCostUSD, sum.EventCount, sum.TotalTokens)
}

func labelPhrase(label string) string {
	switch label {
	case LabelThisWeek:
		return "week"
	case LabelThisMonth:
		return "month"
	default:
		return label
	}
}

func labelTitle(label string) string {
	switch label {
	case LabelToday:
		return "Today"
	case LabelYesterday:
		return "Yesterday"
	case LabelThisWeek:
		return "This Week"
	case LabelThisMonth:
		return "This Month"
	case LabelAllTime:
		return "Total (all time)"
	default:
		return label
	}
}
