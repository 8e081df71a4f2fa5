package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
)

func scheduled(bill, date, text string, order int, status event.Status) event.ScheduledEvent {
	return event.ScheduledEvent{
		BillRef:     bill,
		Chamber:     event.Assembly,
		EventDate:   event.MustDate(date),
		EventText:   text,
		AgendaOrder: order,
		Status:      status,
	}
}

func TestMergeCollapsesToLowestOrder(t *testing.T) {
	fresh := []event.ScheduledEvent{
		scheduled("ab1", "2025-03-10", "Third Reading", 4, event.StatusActive),
		scheduled("ab1", "2025-03-10", "Third Reading", 0, event.StatusActive),
		scheduled("ab1", "2025-03-10", "Third Reading", 2, event.StatusActive),
		scheduled("ab2", "2025-03-10", "Third Reading", 1, event.StatusActive),
	}

	plan, stats := Merge(nil, fresh, nil)

	require.Len(t, plan.Upserts, 2)
	require.Len(t, stats.Collapsed, 2)
	for _, c := range stats.Collapsed {
		assert.Equal(t, 2, c.Kept.AgendaOrder)
	}
	assert.Equal(t, 0, stats.Collapsed[0].Dropped.AgendaOrder)
	assert.Equal(t, 4, stats.Collapsed[1].Dropped.AgendaOrder)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, "ab1", plan.Upserts[0].BillRef)
	assert.Equal(t, 2, plan.Upserts[0].AgendaOrder)
}

func TestMergeStatuses(t *testing.T) {
	known := []event.ScheduledEvent{
		scheduled("gone", "2025-03-11", "Health", 1, event.StatusActive),
		scheduled("canceled", "2025-03-11", "Health", 2, event.StatusCanceled),
		scheduled("postponed", "2025-03-11", "Health", 3, event.StatusPostponed),
		scheduled("back", "2025-03-11", "Health", 4, event.StatusMoved),
		scheduled("still-gone", "2025-03-11", "Health", 5, event.StatusMoved),
		scheduled("same", "2025-03-11", "Health", 6, event.StatusActive),
	}
	fresh := []event.ScheduledEvent{
		scheduled("back", "2025-03-11", "Health", 4, event.StatusActive),
		scheduled("same", "2025-03-11", "Health", 6, event.StatusActive),
	}

	plan, stats := Merge(known, fresh, nil)

	status := make(map[string]event.Status)
	for _, e := range plan.Retained {
		status[e.BillRef] = e.Status
	}
	assert.Equal(t, map[string]event.Status{
		"gone":       event.StatusMoved,
		"canceled":   event.StatusCanceled,
		"postponed":  event.StatusPostponed,
		"back":       event.StatusActive,
		"still-gone": event.StatusMoved,
		"same":       event.StatusActive,
	}, status)

	assert.Equal(t, 1, stats.Moved)
	assert.Equal(t, 1, stats.Reactivated)
	assert.Equal(t, 2, stats.Duplicates)
	assert.Empty(t, plan.Upserts)
}

func TestMergeRevisesChangedDetails(t *testing.T) {
	known := []event.ScheduledEvent{scheduled("ab1", "2025-03-11", "Health", 1, event.StatusActive)}
	changed := scheduled("ab1", "2025-03-11", "Health", 1, event.StatusActive)
	changed.EventRoom = "Room 2"

	plan, stats := Merge(known, []event.ScheduledEvent{changed}, nil)

	require.Len(t, plan.Upserts, 1)
	assert.Equal(t, "Room 2", plan.Upserts[0].EventRoom)
	assert.Equal(t, 1, stats.Revised)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 0, stats.Moved)
}

func TestMergeIsDeterministic(t *testing.T) {
	fresh := []event.ScheduledEvent{
		scheduled("b", "2025-03-12", "Health", 1, event.StatusActive),
		scheduled("a", "2025-03-12", "Health", 2, event.StatusActive),
		scheduled("c", "2025-03-11", "Budget", 1, event.StatusActive),
	}
	reversed := []event.ScheduledEvent{fresh[2], fresh[1], fresh[0]}

	p1, _ := Merge(nil, fresh, nil)
	p2, _ := Merge(nil, reversed, nil)
	assert.Equal(t, p1.Upserts, p2.Upserts)
	assert.Equal(t, "c", p1.Upserts[0].BillRef)
	assert.Equal(t, "a", p1.Upserts[1].BillRef)
}
