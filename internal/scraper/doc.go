// Package scraper extracts measure events and hearing notices from the
// Assembly daily file and the Senate calendar.
//
// Each chamber has an Extractor that knows the page URL, the browser
// interactions needed before agendas are present in the DOM, and how to walk
// the rendered HTML. Floor sessions yield one event per measure per agenda
// heading; committee hearings yield one event per measure on the hearing
// agenda, carrying the hearing time, location and room. Malformed blocks are
// logged and skipped so one bad hearing never costs the rest of the page.
package scraper
