package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/fetcher"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
)

// Skip reasons reported in Result.Skipped
const (
	SkipMalformedTimeLocation = "malformed_time_location"
	SkipUnparseableDate       = "unparseable_date"
	SkipUnparseableNote       = "unparseable_note"
	SkipEmptyMeasure          = "empty_measure"
)

// Result is what one page yielded
type Result struct {
	Events  *event.Set
	Notices []event.StatusChangeNotice
	Skipped map[string]int // reason -> count
}

func newResult() *Result {
	return &Result{Events: event.NewSet(), Skipped: make(map[string]int)}
}

func (r *Result) skip(reason string) {
	r.Skipped[reason]++
}

// Extractor turns one chamber's calendar page into events
type Extractor interface {
	Chamber() event.Chamber
	// URL is the page to acquire for a run starting on today
	URL(today event.Date) string
	// Interactions are run by browser renderers before the DOM is read
	Interactions() []fetcher.Interaction
	Extract(content *fetcher.Content) (*Result, error)
}

// Options configures the extractors built by ForChamber
type Options struct {
	AssemblyURL      string
	SenateURL        string
	SenateWindowDays int
	Logger           *logger.Logger
}

// ForChamber returns the extractor for chamber
func ForChamber(chamber event.Chamber, opts Options) (Extractor, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Fields{"chamber": string(chamber)})

	switch chamber {
	case event.Assembly:
		return NewAssembly(opts.AssemblyURL, log), nil
	case event.Senate:
		return NewSenate(opts.SenateURL, opts.SenateWindowDays, log), nil
	}
	return nil, fmt.Errorf("no extractor for chamber %q", chamber)
}

func parseDocument(content *fetcher.Content) (*goquery.Document, error) {
	if content == nil {
		return nil, fmt.Errorf("no content")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// cleanText NFC-normalizes s and collapses its whitespace
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// heading renders an agenda heading or hearing name in title case.
// A Caser holds state, so each call gets its own.
func heading(s string) string {
	return cases.Title(language.English).String(cleanText(s))
}

// splitTimeLocation splits "1:30 p.m. - 1021 O Street, Room 1100" into its parts.
// Anything that is not exactly time - location, room is rejected.
func splitTimeLocation(s string) (eventTime, location, room string, ok bool) {
	parts := strings.Split(cleanText(s), " - ")
	if len(parts) != 2 {
		return "", "", "", false
	}
	place := strings.Split(parts[1], ", ")
	if len(place) != 2 {
		return "", "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(place[0]), strings.TrimSpace(place[1]), true
}

// collectMeasures adds one event per span.measureLink in sel, ranked by position
func collectMeasures(res *Result, sel *goquery.Selection, base event.RawEvent) {
	order := 0
	sel.Find("span.measureLink").Each(func(_ int, m *goquery.Selection) {
		bill := event.NormalizeBillNumber(m.Text())
		if bill == "" {
			res.skip(SkipEmptyMeasure)
			return
		}
		order++
		e := base
		e.BillNumber = bill
		e.AgendaOrder = order
		res.Events.Add(e)
	})
}

// classifyNote maps a hearing note to a status. ok is false for notes that
// carry no status change; known is false for notes nobody could classify.
func classifyNote(note string) (kind event.Status, ok bool, known bool) {
	n := strings.ToLower(cleanText(note))
	switch {
	case n == "" || strings.Contains(n, "change"):
		return "", false, true
	case strings.Contains(n, "canceled") || strings.Contains(n, "cancelled"):
		return event.StatusCanceled, true, true
	case strings.Contains(n, "postponed"):
		return event.StatusPostponed, true, true
	}
	return "", false, false
}

// containsAny reports whether s contains any of the markers
func containsAny(s string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
