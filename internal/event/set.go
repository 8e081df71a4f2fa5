package event

import "sort"

// Set is a collection of raw events keyed by their full attribute tuple.
// Adding the same occurrence twice keeps a single entry.
type Set struct {
	events map[Key]RawEvent
}

// NewSet creates a set holding evts
func NewSet(evts ...RawEvent) *Set {
	s := &Set{events: make(map[Key]RawEvent, len(evts))}
	for _, e := range evts {
		s.Add(e)
	}
	return s
}

// Add inserts e and reports whether it was not already present
func (s *Set) Add(e RawEvent) bool {
	if s.events == nil {
		s.events = make(map[Key]RawEvent)
	}
	k := e.Key()
	if _, exists := s.events[k]; exists {
		return false
	}
	s.events[k] = e
	return true
}

// Union adds every event of other to s
func (s *Set) Union(other *Set) {
	if other == nil {
		return
	}
	for _, e := range other.events {
		s.Add(e)
	}
}

// Len returns the number of distinct events
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.events)
}

// Sorted returns the events ordered by date, chamber, text, agenda order then bill number
func (s *Set) Sorted() []RawEvent {
	if s == nil {
		return nil
	}
	out := make([]RawEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return rawLess(out[i], out[j])
	})
	return out
}

func rawLess(a, b RawEvent) bool {
	if c := a.EventDate.Compare(b.EventDate); c != 0 {
		return c < 0
	}
	if a.Chamber != b.Chamber {
		return a.Chamber < b.Chamber
	}
	if a.EventText != b.EventText {
		return a.EventText < b.EventText
	}
	if a.AgendaOrder != b.AgendaOrder {
		return a.AgendaOrder < b.AgendaOrder
	}
	if a.BillNumber != b.BillNumber {
		return a.BillNumber < b.BillNumber
	}
	if a.EventTime != b.EventTime {
		return a.EventTime < b.EventTime
	}
	if a.EventLocation != b.EventLocation {
		return a.EventLocation < b.EventLocation
	}
	return a.EventRoom < b.EventRoom
}

// SortScheduled orders ledger rows by event date then bill, chamber, text and agenda order
func SortScheduled(events []ScheduledEvent) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if c := a.EventDate.Compare(b.EventDate); c != 0 {
			return c < 0
		}
		if a.BillRef != b.BillRef {
			return a.BillRef < b.BillRef
		}
		if a.Chamber != b.Chamber {
			return a.Chamber < b.Chamber
		}
		if a.EventText != b.EventText {
			return a.EventText < b.EventText
		}
		return a.AgendaOrder < b.AgendaOrder
	})
}
