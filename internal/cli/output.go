package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ListResult contains the rows printed by list
type ListResult struct {
	GeneratedAt time.Time              `json:"generated_at"`
	EventCount  int                    `json:"event_count"`
	Events      []event.ScheduledEvent `json:"events"`
}

// WriteSyncReport writes a sync report in the specified format
func WriteSyncReport(w io.Writer, report *pipeline.Report, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatText:
		return writeSyncText(w, report, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteEvents writes ledger rows in the specified format
func WriteEvents(w io.Writer, result *ListResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeEventsText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeSyncText(w io.Writer, report *pipeline.Report, verbose bool) error {
	fmt.Fprintf(w, "Sync %s for %s\n", report.RunID, report.Today)
	for _, c := range report.Chambers {
		if c.Error != "" {
			fmt.Fprintf(w, "  %s: FAILED after %d attempts: %s\n", c.Chamber, c.Attempts, c.Error)
			continue
		}
		fmt.Fprintf(w, "  %s: %d events, %d notices\n", c.Chamber, c.Events, c.Notices)
		if verbose {
			if c.URL != "" {
				fmt.Fprintf(w, "       URL: %s\n", c.URL)
			}
			for _, reason := range sortedKeys(c.Skipped) {
				fmt.Fprintf(w, "       Skipped %s: %d\n", reason, c.Skipped[reason])
			}
		}
	}

	s := report.Summary
	if s == nil {
		return nil
	}
	if s.Skipped {
		fmt.Fprintln(w, "No schedule updates; ledger untouched.")
		return nil
	}

	fmt.Fprintf(w, "\nLedger: %d inserted, %d revised, %d moved, %d reactivated, %d unchanged\n",
		s.Inserted, s.Revised, s.Moved, s.Reactivated, s.Duplicates)
	if s.NoticesApplied+s.NoticesUnmatched > 0 {
		fmt.Fprintf(w, "Notices: %d applied, %d unmatched\n", s.NoticesApplied, s.NoticesUnmatched)
	}
	if s.Unresolved > 0 {
		fmt.Fprintf(w, "Unresolved bills dropped: %d\n", s.Unresolved)
	}
	if verbose {
		fmt.Fprintf(w, "Observed: %d, resolved: %d, past: %d, collapsed: %d, known: %d\n",
			s.Observed, s.Resolved, s.PastDropped, s.Collapsed, s.Known)
	}
	if s.DryRun {
		fmt.Fprintln(w, "Dry run: changes rolled back.")
	}
	return nil
}

// writeEventsText outputs rows grouped by date
func writeEventsText(w io.Writer, result *ListResult, verbose bool) error {
	if result.EventCount == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}

	var groups [][]event.ScheduledEvent
	for _, e := range result.Events {
		n := len(groups)
		if n > 0 && groups[n-1][0].EventDate == e.EventDate {
			groups[n-1] = append(groups[n-1], e)
			continue
		}
		groups = append(groups, []event.ScheduledEvent{e})
	}

	for _, g := range groups {
		fmt.Fprintf(w, "\n%s (%d events):\n", g[0].EventDate, len(g))
		for _, e := range g {
			fmt.Fprintf(w, "  %s: %s%s  %s%s\n", e.Chamber, e.EventText, orderLabel(e.AgendaOrder), e.BillRef, statusLabel(e))
			if verbose {
				fmt.Fprintf(w, "       ID: %d\n", e.ID)
				if e.EventTime != "" {
					fmt.Fprintf(w, "       Time: %s\n", e.EventTime)
				}
				if place := strings.TrimSpace(strings.Join([]string{e.EventRoom, e.EventLocation}, " ")); place != "" {
					fmt.Fprintf(w, "       Where: %s\n", place)
				}
			}
		}
	}
	fmt.Fprintf(w, "\nTotal: %d events across %d days\n", result.EventCount, len(groups))
	return nil
}

func orderLabel(order int) string {
	if order <= 0 {
		return ""
	}
	return fmt.Sprintf(" #%d", order)
}

func statusLabel(e event.ScheduledEvent) string {
	var tags []string
	if e.Status != event.StatusActive {
		tags = append(tags, strings.ToUpper(string(e.Status)))
	}
	if e.Revised {
		tags = append(tags, "REVISED")
	}
	if len(tags) == 0 {
		return ""
	}
	return " [" + strings.Join(tags, ", ") + "]"
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
