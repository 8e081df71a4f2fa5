package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate    SortOrder = "date"
	SortByChamber SortOrder = "chamber"
	SortByBill    SortOrder = "bill"
)

func parseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return SortByDate, nil
	case SortByDate, SortByChamber, SortByBill:
		return o, nil
	}
	return "", fmt.Errorf("invalid sort: %s (must be 'date', 'chamber' or 'bill')", s)
}

// sortEvents sorts ledger rows based on the specified sort order
func sortEvents(events []event.ScheduledEvent, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDate:
		sort.SliceStable(events, func(i, j int) bool {
			return compareByDate(events[i], events[j])
		})
	case SortByChamber:
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].Chamber != events[j].Chamber {
				return events[i].Chamber < events[j].Chamber
			}
			// If chambers are equal, sort by date
			return compareByDate(events[i], events[j])
		})
	case SortByBill:
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].BillRef != events[j].BillRef {
				return strings.ToLower(events[i].BillRef) < strings.ToLower(events[j].BillRef)
			}
			// If bills are equal, sort by date
			return compareByDate(events[i], events[j])
		})
	}
}

// compareByDate orders by date, then by the meeting and the measure's place on its agenda.
// Unranked measures follow ranked ones.
func compareByDate(i, j event.ScheduledEvent) bool {
	if c := i.EventDate.Compare(j.EventDate); c != 0 {
		return c < 0
	}
	if i.Chamber != j.Chamber {
		return i.Chamber < j.Chamber
	}
	if i.EventText != j.EventText {
		return i.EventText < j.EventText
	}
	if (i.AgendaOrder > 0) != (j.AgendaOrder > 0) {
		return i.AgendaOrder > 0
	}
	if i.AgendaOrder != j.AgendaOrder {
		return i.AgendaOrder < j.AgendaOrder
	}
	return i.BillRef < j.BillRef
}
