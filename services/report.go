package services

import (
	"fmt"
	"io"
	"time"
)

// SourceReport counts what one source contributed to a run.
type SourceReport struct {
	Source     string `json:"source"`
	Pages      int    `json:"pages"`
	Candidates int    `json:"candidates"`
	New        int    `json:"new"`
	Seen       int    `json:"seen"`
}

type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceReport `json:"sources"`
}

func (r Report) TotalCandidates() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Candidates
	}
	return n
}

func (r Report) TotalNew() int {
	n := 0
	for _, s := range r.Sources {
		n += s.New
	}
	return n
}

func (r Report) TotalSeen() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Seen
	}
	return n
}

func (r Report) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PrintReport writes the run summary as a box table.
func PrintReport(w io.Writer, report Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "┌──────────────────────────────────────────────────────────────┐")
	fmt.Fprintln(w, "│                      Listing Discovery Run                   │")
	fmt.Fprintln(w, "├───────────────────────────────┬──────────────────────────────┤")
	fmt.Fprintf(w, "│ %-29s │ %-28s │\n", "Run", truncateText(report.RunID, 28))
	fmt.Fprintf(w, "│ %-29s │ %-28s │\n", "Duration", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "│ %-29s │ %-28d │\n", "Listings Found", report.TotalCandidates())
	fmt.Fprintf(w, "│ %-29s │ %-28d │\n", "New Listings", report.TotalNew())
	fmt.Fprintf(w, "│ %-29s │ %-28d │\n", "Already Seen", report.TotalSeen())
	fmt.Fprintln(w, "└───────────────────────────────┴──────────────────────────────┘")

	fmt.Fprintln(w)
	fmt.Fprintln(w, "┌────────────────────────┬──────────┬──────────┬──────────┬──────────┐")
	fmt.Fprintln(w, "│ Source                 │ Pages    │ Found    │ New      │ Seen     │")
	fmt.Fprintln(w, "├────────────────────────┼──────────┼──────────┼──────────┼──────────┤")
	for _, s := range report.Sources {
		fmt.Fprintf(w, "│ %-22s │ %-8d │ %-8d │ %-8d │ %-8d │\n",
			truncateText(s.Source, 22), s.Pages, s.Candidates, s.New, s.Seen)
	}
	fmt.Fprintln(w, "└────────────────────────┴──────────┴──────────┴──────────┴──────────┘")
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
