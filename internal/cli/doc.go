// Package cli implements the command-line interface for legcal.
//
// The cli package provides the Cobra-based CLI: sync runs one fetch and
// reconcile cycle against the configured ledger, list prints ledger rows as
// text or JSON, and export-ics writes upcoming hearings as an iCalendar feed.
// It wires config, fetcher, scraper, resolver, reconcile and ledger together;
// the packages themselves know nothing about flags or exit codes.
package cli
