package event

import (
	"regexp"
	"strings"
)

var (
	whitespace   = regexp.MustCompile(`\s+`)
	prefixNumber = regexp.MustCompile(`^([A-Z]+)\s*(\d+)$`)
)

// NormalizeBillNumber turns a measure label such as "A.B. No. 123" into "AB123".
// Labels that are not a letter prefix followed by digits are only cleaned of
// "No.", periods and extra whitespace.
func NormalizeBillNumber(text string) string {
	s := strings.ReplaceAll(text, "No.", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ToUpper(strings.TrimSpace(whitespace.ReplaceAllString(s, " ")))

	if m := prefixNumber.FindStringSubmatch(strings.ReplaceAll(s, " ", "")); m != nil {
		return m[1] + m[2]
	}
	return s
}
