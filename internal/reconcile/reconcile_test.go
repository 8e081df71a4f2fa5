package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/ledger"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/resolver"
)

const session = "20252026"

type fixture struct {
	store *ledger.Store
	rec   *Reconciler
	logs  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := ledger.Open(context.Background(), ledger.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var logs bytes.Buffer
	log := logger.New(logger.LevelDebug, &logs)
	store.WithLogger(log)

	bills := resolver.NewMap(map[string]map[string]string{
		session: {"AB1": "bill-ab1", "AB2": "bill-ab2", "AB3": "bill-ab3", "SB5": "bill-sb5"},
	})
	return &fixture{store: store, rec: New(store, bills, log), logs: &logs}
}

func floor(date, text, bill string, order int) event.RawEvent {
	return event.RawEvent{
		Chamber:     event.Assembly,
		EventDate:   event.MustDate(date),
		EventText:   text,
		BillNumber:  bill,
		AgendaOrder: order,
	}
}

func hearing(date, name, bill, room string) event.RawEvent {
	return event.RawEvent{
		Chamber:       event.Senate,
		EventDate:     event.MustDate(date),
		EventText:     name,
		BillNumber:    bill,
		AgendaOrder:   1,
		EventTime:     "9 a.m.",
		EventLocation: "1021 O Street",
		EventRoom:     room,
	}
}

func notice(e event.RawEvent, kind event.Status) event.StatusChangeNotice {
	return event.StatusChangeNotice{
		Chamber:     e.Chamber,
		EventDate:   e.EventDate,
		HearingName: e.EventText,
		Time:        e.EventTime,
		Location:    e.EventLocation,
		Room:        e.EventRoom,
		Kind:        kind,
	}
}

func (f *fixture) run(t *testing.T, today string, events []event.RawEvent, notices ...event.StatusChangeNotice) *Summary {
	t.Helper()
	sum, err := f.rec.Run(context.Background(), Input{
		Today:    event.MustDate(today),
		Session:  session,
		Chambers: event.Chambers,
		Events:   event.NewSet(events...),
		Notices:  notices,
	})
	require.NoError(t, err)
	return sum
}

func (f *fixture) rows(t *testing.T) []event.ScheduledEvent {
	t.Helper()
	rows, err := f.store.Events(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	return rows
}

func byBill(rows []event.ScheduledEvent) map[string]event.ScheduledEvent {
	out := make(map[string]event.ScheduledEvent, len(rows))
	for _, r := range rows {
		out[r.BillRef] = r
	}
	return out
}

func TestIdempotence(t *testing.T) {
	f := newFixture(t)
	scrape := []event.RawEvent{
		floor("2025-03-10", "Third Reading", "AB1", 1),
		floor("2025-03-10", "Third Reading", "AB2", 2),
		hearing("2025-03-11", "Judiciary", "SB5", "Room 2100"),
	}

	first := f.run(t, "2025-03-10", scrape)
	assert.Equal(t, 3, first.Inserted)
	before := f.rows(t)

	second := f.run(t, "2025-03-10", scrape)
	after := f.rows(t)

	assert.Equal(t, before, after)
	assert.Equal(t, 3, second.Duplicates)
	assert.Zero(t, second.Inserted)
	assert.Zero(t, second.Revised)
	assert.Zero(t, second.Moved)
	for _, r := range after {
		assert.False(t, r.Revised)
		assert.Equal(t, event.StatusActive, r.Status)
	}
}

func TestNoDuplication(t *testing.T) {
	f := newFixture(t)

	// the same measure listed twice under one heading
	sum := f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-10", "Third Reading", "AB1", 3),
		floor("2025-03-10", "Third Reading", "AB1", 1),
		floor("2025-03-10", "Second Reading", "AB1", 1),
	})
	assert.Equal(t, 1, sum.Collapsed)

	f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-10", "Third Reading", "AB1", 2),
		floor("2025-03-10", "Second Reading", "AB1", 1),
	})

	rows := f.rows(t)
	require.Len(t, rows, 2)
	seen := make(map[event.Identity]bool)
	for _, r := range rows {
		assert.False(t, seen[r.Identity()], "duplicate identity %+v", r.Identity())
		seen[r.Identity()] = true
	}
}

func TestCollapsedListingIsLogged(t *testing.T) {
	f := newFixture(t)
	sum := f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-10", "Third Reading", "AB1", 1),
		floor("2025-03-10", "Third Reading", "AB1", 4),
	})
	assert.Equal(t, 1, sum.Collapsed)
	require.Len(t, f.rows(t), 1)

	var collapsed []map[string]any
	var complete map[string]any
	for _, line := range strings.Split(strings.TrimSpace(f.logs.String()), "\n") {
		var entry logger.LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		switch entry.Message {
		case "Duplicate listing collapsed":
			assert.Equal(t, "WARN", entry.Level)
			collapsed = append(collapsed, entry.Fields)
		case "Reconciliation complete":
			complete = entry.Fields
		}
	}

	require.Len(t, collapsed, 1)
	assert.Equal(t, "bill-ab1", collapsed[0]["bill_ref"])
	assert.Equal(t, "2025-03-10", collapsed[0]["event_date"])
	assert.Equal(t, "Third Reading", collapsed[0]["event_text"])
	assert.EqualValues(t, 1, collapsed[0]["kept_order"])
	assert.EqualValues(t, 4, collapsed[0]["dropped_order"])
	require.NotNil(t, complete)
	assert.EqualValues(t, 1, complete["collapsed"])
}

func TestResolverCacheStatsLogged(t *testing.T) {
	f := newFixture(t)
	bills := resolver.NewCached(resolver.NewMap(map[string]map[string]string{
		session: {"AB1": "bill-ab1"},
	}), time.Hour)
	f.rec = New(f.store, bills, logger.New(logger.LevelInfo, f.logs))

	f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-10", "Second Reading", "AB1", 1),
		floor("2025-03-10", "Third Reading", "AB 1", 1),
	})

	var fields logger.Fields
	for _, line := range strings.Split(strings.TrimSpace(f.logs.String()), "\n") {
		var entry logger.LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Message == "Resolved scraped events" {
			fields = entry.Fields
		}
	}
	require.NotNil(t, fields)
	assert.EqualValues(t, 1, fields["cache_hits"])
	assert.EqualValues(t, 1, fields["cache_misses"])
	assert.EqualValues(t, 1, fields["cache_entries"])
}

func TestDisappearanceMarksMoved(t *testing.T) {
	f := newFixture(t)
	f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-12", "Third Reading", "AB1", 1),
		floor("2025-03-12", "Third Reading", "AB2", 2),
	})

	sum := f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-12", "Third Reading", "AB1", 1),
	})
	assert.Equal(t, 1, sum.Moved)

	rows := byBill(f.rows(t))
	assert.Equal(t, event.StatusActive, rows["bill-ab1"].Status)
	assert.Equal(t, event.StatusMoved, rows["bill-ab2"].Status)

	// listed again: active once more
	sum = f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-12", "Third Reading", "AB1", 1),
		floor("2025-03-12", "Third Reading", "AB2", 2),
	})
	assert.Equal(t, 1, sum.Reactivated)
	assert.Equal(t, event.StatusActive, byBill(f.rows(t))["bill-ab2"].Status)
}

func TestExplicitNoticeWins(t *testing.T) {
	f := newFixture(t)
	e := hearing("2025-03-12", "Judiciary", "SB5", "Room 2100")
	other := hearing("2025-03-12", "Health", "AB3", "Room 1200")
	f.run(t, "2025-03-10", []event.RawEvent{e, other})

	sum := f.run(t, "2025-03-10", []event.RawEvent{other}, notice(e, event.StatusCanceled))
	assert.Equal(t, 1, sum.NoticesApplied)
	assert.Equal(t, event.StatusCanceled, byBill(f.rows(t))["bill-sb5"].Status)

	// later scrapes without the note neither move nor revive it
	f.run(t, "2025-03-10", []event.RawEvent{other})
	assert.Equal(t, event.StatusCanceled, byBill(f.rows(t))["bill-sb5"].Status)

	f.run(t, "2025-03-10", []event.RawEvent{e, other})
	assert.Equal(t, event.StatusCanceled, byBill(f.rows(t))["bill-sb5"].Status)
}

func TestUnmatchedNoticeIsNotFatal(t *testing.T) {
	f := newFixture(t)
	e := hearing("2025-03-12", "Judiciary", "SB5", "Room 2100")

	sum := f.run(t, "2025-03-10", []event.RawEvent{e}, notice(hearing("2025-03-12", "Rules", "", "Room 1"), event.StatusPostponed))
	assert.Equal(t, 1, sum.NoticesUnmatched)
	assert.Contains(t, f.logs.String(), "Notice matched no events")
}

func TestPastEventsFrozen(t *testing.T) {
	f := newFixture(t)
	f.run(t, "2025-03-10", []event.RawEvent{
		hearing("2025-03-10", "Judiciary", "SB5", "Room 2100"),
		floor("2025-03-12", "Third Reading", "AB1", 1),
	})
	past := byBill(f.rows(t))["bill-sb5"]

	// a day later: the past hearing is gone from the page, listed with a new room,
	// and named in a cancel notice; none of it may touch the row
	moved := hearing("2025-03-10", "Judiciary", "SB5", "Room 9")
	sum := f.run(t, "2025-03-11",
		[]event.RawEvent{moved, floor("2025-03-12", "Third Reading", "AB1", 1)},
		notice(hearing("2025-03-10", "Judiciary", "SB5", "Room 2100"), event.StatusCanceled))
	assert.Equal(t, 1, sum.PastDropped)
	assert.Equal(t, 1, sum.NoticesUnmatched)

	assert.Equal(t, past, byBill(f.rows(t))["bill-sb5"])

	f.run(t, "2025-03-11", []event.RawEvent{floor("2025-03-13", "Third Reading", "AB2", 1)})
	assert.Equal(t, past, byBill(f.rows(t))["bill-sb5"])
}

func TestDetailChangeRevises(t *testing.T) {
	f := newFixture(t)
	f.run(t, "2025-03-10", []event.RawEvent{hearing("2025-03-12", "Judiciary", "SB5", "Room 1")})

	sum := f.run(t, "2025-03-10", []event.RawEvent{hearing("2025-03-12", "Judiciary", "SB5", "Room 2")})
	assert.Equal(t, 1, sum.Revised)
	assert.Zero(t, sum.Moved)

	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "Room 2", rows[0].EventRoom)
	assert.True(t, rows[0].Revised)
	assert.Equal(t, event.StatusActive, rows[0].Status)
}

func TestUnresolvableBillDropped(t *testing.T) {
	f := newFixture(t)
	sum := f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-10", "Third Reading", "AB1", 1),
		floor("2025-03-10", "Third Reading", "AB999", 2),
	})

	assert.Equal(t, 1, sum.Resolved)
	assert.Equal(t, 1, sum.Unresolved)
	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "bill-ab1", rows[0].BillRef)
	assert.Contains(t, f.logs.String(), "Unresolved bill dropped")
	assert.Contains(t, f.logs.String(), "AB999")
}

func TestEndToEndFloorSession(t *testing.T) {
	f := newFixture(t)
	f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-10", "First Reading", "AB1", 1),
		floor("2025-03-10", "First Reading", "AB2", 2),
	})

	rows := f.rows(t)
	require.Len(t, rows, 2)
	for i, want := range []string{"bill-ab1", "bill-ab2"} {
		assert.Equal(t, want, rows[i].BillRef)
		assert.Equal(t, event.Assembly, rows[i].Chamber)
		assert.Equal(t, event.MustDate("2025-03-10"), rows[i].EventDate)
		assert.Equal(t, "First Reading", rows[i].EventText)
		assert.Equal(t, i+1, rows[i].AgendaOrder)
		assert.Equal(t, event.StatusActive, rows[i].Status)
		assert.False(t, rows[i].Revised)
	}
}

func TestFailedChamberKeepsItsEvents(t *testing.T) {
	f := newFixture(t)
	f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-12", "Third Reading", "AB1", 1),
		hearing("2025-03-12", "Judiciary", "SB5", "Room 2100"),
	})

	// only the Assembly page was acquired this time
	_, err := f.rec.Run(context.Background(), Input{
		Today:    event.MustDate("2025-03-10"),
		Session:  session,
		Chambers: []event.Chamber{event.Assembly},
		Events:   event.NewSet(floor("2025-03-12", "Third Reading", "AB1", 1)),
	})
	require.NoError(t, err)

	assert.Equal(t, event.StatusActive, byBill(f.rows(t))["bill-sb5"].Status)
}

func TestNothingScrapedSkips(t *testing.T) {
	f := newFixture(t)
	f.run(t, "2025-03-10", []event.RawEvent{floor("2025-03-12", "Third Reading", "AB1", 1)})

	sum := f.run(t, "2025-03-10", nil)
	assert.True(t, sum.Skipped)
	assert.Equal(t, event.StatusActive, f.rows(t)[0].Status)
}

func TestDryRunLeavesLedger(t *testing.T) {
	f := newFixture(t)
	f.run(t, "2025-03-10", []event.RawEvent{floor("2025-03-12", "Third Reading", "AB1", 1)})
	before := f.rows(t)

	sum, err := f.rec.Run(context.Background(), Input{
		Today:    event.MustDate("2025-03-10"),
		Session:  session,
		Chambers: event.Chambers,
		Events:   event.NewSet(floor("2025-03-12", "Third Reading", "AB2", 1)),
		DryRun:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Moved)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, before, f.rows(t))
}

type countingObserver struct {
	skipped map[string]int
	rows    map[string]int
}

func (o *countingObserver) Skipped(reason string, n int) { o.skipped[reason] += n }
func (o *countingObserver) Rows(action string, n int)    { o.rows[action] += n }

func TestObserverReceivesCounts(t *testing.T) {
	f := newFixture(t)
	obs := &countingObserver{skipped: map[string]int{}, rows: map[string]int{}}
	f.rec.WithObserver(obs)

	f.run(t, "2025-03-10", []event.RawEvent{
		floor("2025-03-12", "Third Reading", "AB1", 1),
		floor("2025-03-12", "Third Reading", "AB404", 2),
		floor("2025-03-01", "Third Reading", "AB2", 1),
	})
	assert.Equal(t, 1, obs.skipped[SkipUnresolved])
	assert.Equal(t, 1, obs.skipped[SkipPast])
	assert.Equal(t, 1, obs.rows["inserted"])
}
