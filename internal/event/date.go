package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current date in loc
func Today(loc *time.Location) Date {
	return DateOf(time.Now().In(loc))
}

// MustDate parses a YYYY-MM-DD literal and panics on failure. Intended for tests and constants.
func MustDate(s string) Date {
	d, err := parseISO(s)
	if err != nil {
		panic(err)
	}
	return d
}

func parseISO(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero date
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC of d
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns d shifted by n days
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other
func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

// Compare returns -1, 0 or 1
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateLayout)
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner. SQLite hands back either text or a time.Time
// depending on the declared column type, Postgres always a time.Time.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		parsed, err := parseISO(firstField(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into event.Date", src)
}

// firstField drops a trailing time component like "2025-03-10T00:00:00Z"
func firstField(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i > 0 {
		return s[:i]
	}
	return s
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := parseISO(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var (
	ordinalSuffix = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)
	spaces        = regexp.MustCompile(`\s+`)
)

// headingLayouts are the date formats seen in daily file and calendar headings
var headingLayouts = []string{
	"Monday, January 2, 2006",
	"Monday, Jan 2, 2006",
	"Mon, January 2, 2006",
	"Mon, Jan 2, 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"2006-01-02",
}

// ParseDate extracts a calendar date from heading text such as
// "Monday, March 10, 2025" or "03/10/2025". Text around the date is tolerated
// for the weekday forms (e.g. "Floor Session - Monday, March 10, 2025").
// Returns the zero Date if no layout matches.
func ParseDate(text string) Date {
	s := strings.TrimSpace(spaces.ReplaceAllString(text, " "))
	if s == "" {
		return Date{}
	}
	s = ordinalSuffix.ReplaceAllString(s, "$1")

	for _, layout := range headingLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t)
		}
	}

	// Heading with extra words: look for "<Month> <day>, <year>" inside it
	if m := embeddedDate.FindString(s); m != "" && m != s {
		return ParseDate(m)
	}
	return Date{}
}

var embeddedDate = regexp.MustCompile(`(?i)(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.? \d{1,2},? \d{4}|\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2}`)
