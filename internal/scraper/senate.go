package scraper

import (
	_ "embed"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/fetcher"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
)

const (
	// SenateCalendarURL is the Senate calendar, queried with a date window
	SenateCalendarURL = "https://www.senate.ca.gov/calendar"
	// DefaultSenateWindowDays is how far past today the calendar is queried
	DefaultSenateWindowDays = 15
)

var senateNoFloorSession = []string{"No floor session scheduled.", "No Agendas were found."}

//go:embed senate_agendas.js
var copySenateAgendas string

// Senate extracts the Senate calendar. Agendas live in a modal, so the
// browser interaction copies each one into its floor or hearing block before
// the DOM is read.
type Senate struct {
	base   string
	window int
	log    *logger.Logger
}

// NewSenate creates a Senate extractor; an empty url uses the calendar
func NewSenate(base string, windowDays int, log *logger.Logger) *Senate {
	if base == "" {
		base = SenateCalendarURL
	}
	if windowDays <= 0 {
		windowDays = DefaultSenateWindowDays
	}
	if log == nil {
		log = logger.Default()
	}
	return &Senate{base: base, window: windowDays, log: log}
}

func (s *Senate) Chamber() event.Chamber { return event.Senate }

// URL queries floor meetings and committee hearings from today through the window
func (s *Senate) URL(today event.Date) string {
	q := url.Values{}
	q.Set("startDate", today.String())
	q.Set("endDate", today.AddDays(s.window).String())
	q.Set("floorMeetings", "1")
	q.Set("committeeHearings", "1")
	return s.base + "?" + q.Encode()
}

func (s *Senate) Interactions() []fetcher.Interaction {
	return []fetcher.Interaction{{
		Name:    "copy agendas",
		WaitFor: "div.page-events--day-wrapper",
		Script:  copySenateAgendas,
		Done:    "window.__legcalAgendasCopied === true",
		Timeout: 3 * time.Minute,
		Settle:  500 * time.Millisecond,
	}}
}

func (s *Senate) Extract(content *fetcher.Content) (*Result, error) {
	doc, err := parseDocument(content)
	if err != nil {
		return nil, err
	}
	res := newResult()

	panels := doc.Find("div.page-events--day-wrapper")
	panels.Each(func(i int, panel *goquery.Selection) {
		header := cleanText(panel.Find("h2.page-events__date").First().Text())
		date := event.ParseDate(header)
		if date.IsZero() {
			res.skip(SkipUnparseableDate)
			s.log.Warn("Calendar day skipped", logger.Fields{
				"reason": "unparseable date",
				"header": header,
			})
			return
		}
		if panel.Find("div.no-results-message").Length() > 0 {
			s.log.Info("No events scheduled", logger.Fields{"event_date": date.String()})
			return
		}

		// the floor agenda is only published for the first day
		if i == 0 {
			s.extractFloor(panel, date, res)
		}
		panel.Find("div.page-events__item--committee-hearing").Each(func(_ int, h *goquery.Selection) {
			s.extractHearing(h, date, res)
		})
	})

	if panels.Length() == 0 {
		s.log.Warn("No calendar days found", logger.Fields{"url": content.URL})
	}
	s.log.Info("Extracted Senate calendar", logger.Fields{
		"days":    panels.Length(),
		"events":  res.Events.Len(),
		"notices": len(res.Notices),
	})
	return res, nil
}

func (s *Senate) extractFloor(panel *goquery.Selection, date event.Date, res *Result) {
	floor := panel.Find("div.dailyfile-section.floor-meetings").First()
	if floor.Length() == 0 {
		return
	}
	if containsAny(floor.Text(), senateNoFloorSession...) {
		s.log.Info("No floor session agenda", logger.Fields{"event_date": date.String()})
		return
	}

	agenda := floor.Find("div.agenda-container").First()
	if agenda.Length() == 0 {
		s.log.Info("Floor session agenda not rendered", logger.Fields{"event_date": date.String()})
		return
	}

	agenda.Find("h3").Each(func(_ int, h *goquery.Selection) {
		collectMeasures(res, h.NextAllFiltered("div.agenda-item").First(), event.RawEvent{
			Chamber:   event.Senate,
			EventDate: date,
			EventText: heading(h.Text()),
		})
	})
}

func (s *Senate) extractHearing(h *goquery.Selection, date event.Date, res *Result) {
	name := heading(h.Find("div.hearing-name").First().Text())

	raw := cleanText(h.Find("div.attribute.page-events__time-location").First().Text())
	raw = trimLabel(raw, "Time:")
	eventTime, location, room, ok := splitTimeLocation(raw)
	if !ok {
		res.skip(SkipMalformedTimeLocation)
		s.log.Warn("Hearing skipped", logger.Fields{
			"hearing":       name,
			"event_date":    date.String(),
			"reason":        "malformed time-location",
			"time_location": raw,
		})
		return
	}

	note := cleanText(h.Find("div.attribute.note").First().Text())
	kind, isNotice, known := classifyNote(note)
	switch {
	case isNotice:
		res.Notices = append(res.Notices, event.StatusChangeNotice{
			Chamber:     event.Senate,
			EventDate:   date,
			HearingName: name,
			Time:        eventTime,
			Location:    location,
			Room:        room,
			Kind:        kind,
		})
	case !known:
		res.skip(SkipUnparseableNote)
		s.log.Warn("Unparseable hearing note", logger.Fields{
			"hearing":    name,
			"event_date": date.String(),
			"note":       note,
		})
	}

	collectMeasures(res, h, event.RawEvent{
		Chamber:       event.Senate,
		EventDate:     date,
		EventText:     name,
		EventTime:     eventTime,
		EventLocation: location,
		EventRoom:     room,
	})
}

// trimLabel drops a leading "Label" and the space after it
func trimLabel(s, label string) string {
	if strings.HasPrefix(s, label) {
		return cleanText(strings.TrimPrefix(s, label))
	}
	return s
}
