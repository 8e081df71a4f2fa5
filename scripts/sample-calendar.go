// Command sample-calendar writes a small iCalendar feed of made-up hearings,
// for checking how calendar clients render the export.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/calendar"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
)

func main() {
	day := event.DateOf(time.Now()).AddDays(7)
	events := []event.ScheduledEvent{
		{BillRef: "AB 1", Chamber: event.Assembly, EventDate: day, EventText: "Third Reading", AgendaOrder: 1, Status: event.StatusActive},
		{BillRef: "AB 2", Chamber: event.Assembly, EventDate: day, EventText: "Third Reading", AgendaOrder: 2, Status: event.StatusActive},
		{
			BillRef: "SB 5", Chamber: event.Senate, EventDate: day, EventText: "Judiciary", AgendaOrder: 1,
			EventTime: "1:30 p.m.", EventLocation: "1021 O Street", EventRoom: "Room 2100",
			Status: event.StatusPostponed,
		},
	}

	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		loc = time.UTC
	}
	ics := calendar.GenerateICS(events, calendar.Options{Name: "legcal sample", Location: loc})

	// Write to file (owner read/write only)
	filename := "sample-hearings.ics"
	if err := os.WriteFile(filename, []byte(ics), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d events to %s\n", len(events), filename)
}
