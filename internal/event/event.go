package event

import (
	"fmt"
	"strings"
)

// Chamber identifies a legislative chamber
type Chamber string

const (
	Assembly Chamber = "Assembly"
	Senate   Chamber = "Senate"
)

// Chambers lists every supported chamber in a stable order
var Chambers = []Chamber{Assembly, Senate}

// ParseChamber accepts a chamber name in any case
func ParseChamber(s string) (Chamber, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assembly", "1":
		return Assembly, nil
	case "senate", "2":
		return Senate, nil
	}
	return "", fmt.Errorf("unknown chamber: %q", s)
}

// Status is the lifecycle state of a scheduled event
type Status string

const (
	StatusActive    Status = "active"
	StatusMoved     Status = "moved"
	StatusCanceled  Status = "canceled"
	StatusPostponed Status = "postponed"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusMoved, StatusCanceled, StatusPostponed:
		return true
	}
	return false
}

// Explicit reports whether the status can only come from a notice on the source page.
// Explicit statuses survive later scrapes that do not mention them.
func (s Status) Explicit() bool {
	return s == StatusCanceled || s == StatusPostponed
}

// Identity is the (bill, chamber, date, text) tuple that names one event occurrence
type Identity struct {
	BillRef   string
	Chamber   Chamber
	EventDate Date
	EventText string
}

// Key is the full attribute tuple of an event occurrence
type Key struct {
	Identity
	AgendaOrder   int
	EventTime     string
	EventLocation string
	EventRoom     string
}

// RawEvent is a measure event as extracted from a page, before bill resolution
type RawEvent struct {
	Chamber       Chamber `json:"chamber"`
	EventDate     Date    `json:"event_date"`
	EventText     string  `json:"event_text"`
	BillNumber    string  `json:"bill_number"`
	AgendaOrder   int     `json:"agenda_order,omitempty"` // 0 when unranked
	EventTime     string  `json:"event_time,omitempty"`
	EventLocation string  `json:"event_location,omitempty"`
	EventRoom     string  `json:"event_room,omitempty"`
}

// Key returns the full attribute tuple keyed on the scraped bill number
func (r RawEvent) Key() Key {
	return Key{
		Identity: Identity{
			BillRef:   r.BillNumber,
			Chamber:   r.Chamber,
			EventDate: r.EventDate,
			EventText: r.EventText,
		},
		AgendaOrder:   r.AgendaOrder,
		EventTime:     r.EventTime,
		EventLocation: r.EventLocation,
		EventRoom:     r.EventRoom,
	}
}

// Resolve binds the raw event to an internal bill key
func (r RawEvent) Resolve(billRef string) ScheduledEvent {
	return ScheduledEvent{
		BillRef:       billRef,
		Chamber:       r.Chamber,
		EventDate:     r.EventDate,
		EventText:     r.EventText,
		AgendaOrder:   r.AgendaOrder,
		EventTime:     r.EventTime,
		EventLocation: r.EventLocation,
		EventRoom:     r.EventRoom,
		Status:        StatusActive,
	}
}

// ScheduledEvent is one row of the event ledger
type ScheduledEvent struct {
	ID            int64   `json:"id,omitempty"`
	BillRef       string  `json:"bill_ref"`
	Chamber       Chamber `json:"chamber"`
	EventDate     Date    `json:"event_date"`
	EventText     string  `json:"event_text"`
	AgendaOrder   int     `json:"agenda_order,omitempty"`
	EventTime     string  `json:"event_time,omitempty"`
	EventLocation string  `json:"event_location,omitempty"`
	EventRoom     string  `json:"event_room,omitempty"`
	Revised       bool    `json:"revised"`
	Status        Status  `json:"event_status"`
}

// Identity returns the I1 tuple of the event
func (e ScheduledEvent) Identity() Identity {
	return Identity{
		BillRef:   e.BillRef,
		Chamber:   e.Chamber,
		EventDate: e.EventDate,
		EventText: e.EventText,
	}
}

// Key returns the full attribute tuple of the event
func (e ScheduledEvent) Key() Key {
	return Key{
		Identity:      e.Identity(),
		AgendaOrder:   e.AgendaOrder,
		EventTime:     e.EventTime,
		EventLocation: e.EventLocation,
		EventRoom:     e.EventRoom,
	}
}

// StatusChangeNotice is a hearing-level note (canceled/postponed) found on a page.
// It carries no bill, so the ledger matches it against rows by hearing attributes.
type StatusChangeNotice struct {
	Chamber     Chamber `json:"chamber"`
	EventDate   Date    `json:"event_date"`
	HearingName string  `json:"hearing_name"`
	Time        string  `json:"time"`
	Location    string  `json:"location"`
	Room        string  `json:"room"`
	Kind        Status  `json:"note_kind"`
}

