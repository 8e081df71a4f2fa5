// Package reconcile merges a run's scraped events into the ledger's future
// window.
package reconcile

import (
	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/ledger"
)

// AssumeMovedOnDisappearance records the policy for a future event that is no
// longer listed: it is presumed rescheduled and marked moved, not deleted.
// The chamber sites do not distinguish a moved event from one removed in
// error, so this is an inference rather than something the source states.
const AssumeMovedOnDisappearance = true

// Collapse is a fresh row dropped in favor of another row with its identity
type Collapse struct {
	Kept    event.ScheduledEvent
	Dropped event.ScheduledEvent
}

// MergeStats counts what Merge decided
type MergeStats struct {
	Collapsed   []Collapse
	Moved       int
	Reactivated int
	Duplicates  int // fresh rows identical to a known row
	Inserted    int
	Revised     int
}

// Merge decides the new future window from the known rows and this run's
// resolved rows. It does not touch the database.
//
// Known rows are always retained. One whose identity is missing from fresh
// becomes moved unless it carries an explicit status; a moved row seen again
// becomes active. Fresh rows equal to a known row are dropped, the rest are
// upserted and revise the known row sharing their identity, if any.
func Merge(known, fresh []event.ScheduledEvent, notices []event.StatusChangeNotice) (*ledger.Plan, MergeStats) {
	var stats MergeStats

	collapsed, dropped := collapse(fresh)
	stats.Collapsed = dropped

	observed := make(map[event.Identity]bool, len(collapsed))
	for _, e := range collapsed {
		observed[e.Identity()] = true
	}

	retained := make([]event.ScheduledEvent, 0, len(known))
	knownIDs := make(map[event.Identity]bool, len(known))
	knownKeys := make(map[event.Key]bool, len(known))
	for _, k := range known {
		switch {
		case !observed[k.Identity()]:
			if AssumeMovedOnDisappearance && !k.Status.Explicit() && k.Status != event.StatusMoved {
				k.Status = event.StatusMoved
				stats.Moved++
			}
		case k.Status == event.StatusMoved:
			k.Status = event.StatusActive
			stats.Reactivated++
		}
		retained = append(retained, k)
		knownIDs[k.Identity()] = true
		knownKeys[k.Key()] = true
	}

	upserts := make([]event.ScheduledEvent, 0, len(collapsed))
	for _, e := range collapsed {
		if knownKeys[e.Key()] {
			stats.Duplicates++
			continue
		}
		if knownIDs[e.Identity()] {
			stats.Revised++
		} else {
			stats.Inserted++
		}
		upserts = append(upserts, e)
	}

	event.SortScheduled(retained)
	event.SortScheduled(upserts)
	return &ledger.Plan{Retained: retained, Upserts: upserts, Notices: notices}, stats
}

// collapse keeps one row per identity: the one with the lowest agenda order,
// ranked rows before unranked ones. Ties keep the earlier row.
//
// A measure listed twice under one heading with different agenda orders
// cannot be stored twice, since the ledger holds one row per identity. The
// other rows are returned as dropped so the caller can log each one.
func collapse(fresh []event.ScheduledEvent) ([]event.ScheduledEvent, []Collapse) {
	best := make(map[event.Identity]int, len(fresh))
	out := make([]event.ScheduledEvent, 0, len(fresh))
	var losers []event.ScheduledEvent
	for _, e := range fresh {
		id := e.Identity()
		i, seen := best[id]
		if !seen {
			best[id] = len(out)
			out = append(out, e)
			continue
		}
		if rank(e.AgendaOrder) < rank(out[i].AgendaOrder) {
			losers = append(losers, out[i])
			out[i] = e
		} else {
			losers = append(losers, e)
		}
	}

	dropped := make([]Collapse, 0, len(losers))
	for _, e := range losers {
		dropped = append(dropped, Collapse{Kept: out[best[e.Identity()]], Dropped: e})
	}
	return out, dropped
}

func rank(order int) int {
	if order <= 0 {
		return int(^uint(0) >> 1)
	}
	return order
}
