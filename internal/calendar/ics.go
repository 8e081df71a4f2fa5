// Package calendar renders ledger events as an iCalendar feed.
package calendar

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
)

// uidSpace namespaces the name-based UUIDs of hearings
var uidSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/techequitycollaborative/ca-leg-tracker"))

const defaultDuration = 2 * time.Hour

// Options controls feed generation
type Options struct {
	Name     string         // X-WR-CALNAME, omitted when empty
	Now      time.Time      // DTSTAMP
	Location *time.Location // zone of the hearing times
}

// hearing groups the ledger rows that share a meeting
type hearing struct {
	chamber  event.Chamber
	date     event.Date
	name     string
	time     string
	location string
	room     string
	status   event.Status
	revised  bool
	bills    []event.ScheduledEvent
}

func (h *hearing) uid() string {
	key := strings.Join([]string{string(h.chamber), h.date.String(), h.name, h.time, h.location, h.room}, "|")
	return uuid.NewSHA1(uidSpace, []byte(key)).String()
}

// GenerateICS renders one VEVENT per hearing. Canceled rows are left out.
// Rows of one hearing are listed in its description in agenda order.
func GenerateICS(events []event.ScheduledEvent, opts Options) string {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	var ics strings.Builder
	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//TechEquity Collaborative//legcal//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if opts.Name != "" {
		writeLine(&ics, "X-WR-CALNAME", escapeICS(opts.Name))
	}

	for _, h := range groupHearings(events) {
		writeEvent(&ics, h, opts)
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func groupHearings(events []event.ScheduledEvent) []*hearing {
	byKey := make(map[string]*hearing)
	var out []*hearing
	for _, e := range events {
		if e.Status == event.StatusCanceled {
			continue
		}
		key := strings.Join([]string{string(e.Chamber), e.EventDate.String(), e.EventText, e.EventTime, e.EventLocation, e.EventRoom}, "|")
		h, ok := byKey[key]
		if !ok {
			h = &hearing{
				chamber:  e.Chamber,
				date:     e.EventDate,
				name:     e.EventText,
				time:     e.EventTime,
				location: e.EventLocation,
				room:     e.EventRoom,
				status:   e.Status,
			}
			byKey[key] = h
			out = append(out, h)
		}
		// any active row keeps the meeting confirmed
		if e.Status == event.StatusActive {
			h.status = event.StatusActive
		}
		h.revised = h.revised || e.Revised
		h.bills = append(h.bills, e)
	}

	for _, h := range out {
		sort.SliceStable(h.bills, func(i, j int) bool {
			return rank(h.bills[i].AgendaOrder) < rank(h.bills[j].AgendaOrder)
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].date.Compare(out[j].date); c != 0 {
			return c < 0
		}
		if out[i].chamber != out[j].chamber {
			return out[i].chamber < out[j].chamber
		}
		return out[i].name < out[j].name
	})
	return out
}

func rank(order int) int {
	if order <= 0 {
		return int(^uint(0) >> 1)
	}
	return order
}

func writeEvent(ics *strings.Builder, h *hearing, opts Options) {
	ics.WriteString("BEGIN:VEVENT\r\n")
	writeLine(ics, "UID", h.uid()+"@legcal")
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICSTime(opts.Now)))

	if start, ok := startTime(h.date, h.time, opts.Location); ok {
		ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICSTime(start)))
		ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICSTime(start.Add(defaultDuration))))
	} else {
		ics.WriteString(fmt.Sprintf("DTSTART;VALUE=DATE:%s\r\n", h.date.Time().Format("20060102")))
		ics.WriteString(fmt.Sprintf("DTEND;VALUE=DATE:%s\r\n", h.date.AddDays(1).Time().Format("20060102")))
	}

	writeLine(ics, "SUMMARY", escapeICS(fmt.Sprintf("%s: %s", h.chamber, h.name)))
	writeLine(ics, "DESCRIPTION", escapeICS(description(h)))
	if loc := location(h); loc != "" {
		writeLine(ics, "LOCATION", escapeICS(loc))
	}

	switch h.status {
	case event.StatusActive:
		ics.WriteString("STATUS:CONFIRMED\r\n")
	default:
		ics.WriteString("STATUS:TENTATIVE\r\n")
	}
	if h.revised {
		ics.WriteString("SEQUENCE:1\r\n")
	} else {
		ics.WriteString("SEQUENCE:0\r\n")
	}
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

func description(h *hearing) string {
	var b strings.Builder
	if h.time != "" {
		fmt.Fprintf(&b, "Time: %s\n", h.time)
	}
	switch h.status {
	case event.StatusMoved:
		b.WriteString("No longer listed on the chamber calendar; it may have moved.\n")
	case event.StatusPostponed:
		b.WriteString("Postponed.\n")
	}
	b.WriteString("Measures:")
	for _, e := range h.bills {
		b.WriteString("\n")
		if e.AgendaOrder > 0 {
			fmt.Fprintf(&b, "%d. ", e.AgendaOrder)
		}
		b.WriteString(e.BillRef)
	}
	return b.String()
}

func location(h *hearing) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{h.room, h.location} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

var clockPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*([ap])\.?\s*m\b`)

// startTime reads a clock time such as "9 a.m." or "1:30 PM". Times such as
// "Upon adjournment" have no clock and yield false.
func startTime(d event.Date, text string, loc *time.Location) (time.Time, bool) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return time.Time{}, false
	}
	hour %= 12
	if strings.EqualFold(m[3], "p") {
		hour += 12
	}
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc), true
}

// writeLine folds content lines longer than 75 octets
func writeLine(ics *strings.Builder, name, value string) {
	line := name + ":" + value
	limit := 75
	for len(line) > limit {
		cut := limit
		for cut > 0 && !isRuneStart(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
		// continuation lines start with a space
		limit = 74
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
