// Package event defines the records a calendar sync passes between stages.
//
// A Chamber names the Assembly or the Senate. Extractors emit a RawEvent for
// each measure listed under a floor session or committee hearing, keyed on the
// bill number as printed. Once the number is resolved the row becomes a
// ScheduledEvent, the shape stored in the ledger, carrying a Status of active,
// moved, canceled or postponed. Hearing-level notes arrive separately as a
// StatusChangeNotice.
//
// Two tuples identify a row. Identity is (bill, chamber, date, text) and names
// one occurrence; the ledger holds at most one row per Identity. Key adds the
// agenda order, time, location and room, and two rows with equal Keys are the
// same listing. Set collects raw events without duplicate Keys and returns
// them in a fixed order.
//
// Date is a civil calendar date with no time zone, parsed from the formats
// the chamber pages print and stored as YYYY-MM-DD.
package event
