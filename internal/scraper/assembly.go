package scraper

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/fetcher"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
)

// AssemblyDailyFileURL is the Assembly daily file
const AssemblyDailyFileURL = "https://www.assembly.ca.gov/schedules-publications/assembly-daily-file"

const assemblyNoAgenda = "No agendas are found for this event."

// Assembly extracts the Assembly daily file. The first section is the floor
// session; every other section is a committee hearing dated by the nearest
// preceding h5 heading.
type Assembly struct {
	url string
	log *logger.Logger
}

// NewAssembly creates an Assembly extractor; an empty url uses the daily file
func NewAssembly(url string, log *logger.Logger) *Assembly {
	if url == "" {
		url = AssemblyDailyFileURL
	}
	if log == nil {
		log = logger.Default()
	}
	return &Assembly{url: url, log: log}
}

func (a *Assembly) Chamber() event.Chamber { return event.Assembly }

func (a *Assembly) URL(event.Date) string { return a.url }

// Interactions opens the floor agenda, which is not rendered until requested
func (a *Assembly) Interactions() []fetcher.Interaction {
	return []fetcher.Interaction{{
		Name:    "open floor agenda",
		WaitFor: "div.dailyfile-section-item",
		Script:  clickFirstViewAgenda,
		Timeout: 20 * time.Second,
		Settle:  time.Second,
	}}
}

func (a *Assembly) Extract(content *fetcher.Content) (*Result, error) {
	doc, err := parseDocument(content)
	if err != nil {
		return nil, err
	}
	res := newResult()

	var hearingDate event.Date
	section := 0
	doc.Find("h5, div.dailyfile-section-item").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "h5" {
			// agenda headings inside a section are not date headings
			if s.Closest("div.dailyfile-section-item").Length() > 0 {
				return
			}
			if d := event.ParseDate(s.Text()); !d.IsZero() {
				hearingDate = d
			}
			return
		}

		if section == 0 {
			a.extractFloor(s, res)
		} else {
			a.extractHearing(s, hearingDate, res)
		}
		section++
	})

	if section == 0 {
		a.log.Warn("No daily file sections found", logger.Fields{"url": content.URL})
	}
	a.log.Info("Extracted Assembly daily file", logger.Fields{
		"sections": section,
		"events":   res.Events.Len(),
	})
	return res, nil
}

func (a *Assembly) extractFloor(s *goquery.Selection, res *Result) {
	header := cleanText(s.Find("div.header").First().Text())
	date := event.ParseDate(header)
	if date.IsZero() {
		res.skip(SkipUnparseableDate)
		a.log.Warn("Floor session skipped", logger.Fields{
			"reason": "unparseable date",
			"header": header,
		})
		return
	}

	if containsAny(s.Text(), assemblyNoAgenda) {
		a.log.Info("No floor session agenda", logger.Fields{"event_date": date.String()})
		return
	}

	agenda := s.Find("div.attribute.agenda-container:not(.hide)").First()
	if agenda.Length() == 0 {
		a.log.Info("Floor session agenda not rendered", logger.Fields{"event_date": date.String()})
		return
	}

	agenda.Find("h5").Each(func(_ int, h *goquery.Selection) {
		collectMeasures(res, h.NextAllFiltered("div.agenda-item").First(), event.RawEvent{
			Chamber:   event.Assembly,
			EventDate: date,
			EventText: heading(h.Text()),
		})
	})
}

func (a *Assembly) extractHearing(s *goquery.Selection, date event.Date, res *Result) {
	name := heading(s.Find("div.header").First().Text())
	if date.IsZero() {
		res.skip(SkipUnparseableDate)
		a.log.Warn("Hearing skipped", logger.Fields{
			"hearing": name,
			"reason":  "no date heading",
		})
		return
	}

	raw := s.Find("div.body .attribute.time-location").First().Text()
	eventTime, location, room, ok := splitTimeLocation(raw)
	if !ok {
		res.skip(SkipMalformedTimeLocation)
		a.log.Warn("Hearing skipped", logger.Fields{
			"hearing":       name,
			"event_date":    date.String(),
			"reason":        "malformed time-location",
			"time_location": cleanText(raw),
		})
		return
	}

	agenda := s.Find("div.footer div.attribute.agenda-container").First()
	if agenda.Length() == 0 {
		a.log.Debug("Hearing has no agenda yet", logger.Fields{
			"hearing":    name,
			"event_date": date.String(),
		})
		return
	}

	collectMeasures(res, agenda, event.RawEvent{
		Chamber:       event.Assembly,
		EventDate:     date,
		EventText:     name,
		EventTime:     eventTime,
		EventLocation: location,
		EventRoom:     room,
	})
}
