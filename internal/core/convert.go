package core

// convert.go provides the value conversions used while reconciling CSV rows.
//
// These functions handle the messy reality of operator-provided CSV data:
//   - Byte order marks and invalid UTF-8 from spreadsheet exports
//   - Stray double quotes around values
//   - Counts typed as "12 dials" or left blank
//   - US dates (MM/DD/YYYY) from the alternate export tool
//
// Numeric helpers never fail: anything that is not a leading integer is 0.
// Negative values are returned as-is so the validator can reject them.
// The validator uses parseCount to tell an out-of-range count from a
// non-numeric one.

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	leadingIntRegex  = regexp.MustCompile(`^[+-]?\d+`)
	firstDigitsRegex = regexp.MustCompile(`\d+`)
	nonAlnumRunRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

// utf8BOM is the byte order mark some spreadsheet tools prepend.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CleanValue trims whitespace and removes every double-quote character.
// Embedded delimiters inside quotes are not supported.
func CleanValue(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// ParseCount parses the leading integer of s.
// Blank, non-numeric or out-of-range input yields 0; "-3" yields -3;
// "12abc" yields 12.
func ParseCount(s string) int {
	n, _ := parseCount(s)
	return n
}

// parseCount is ParseCount that reports ok=false when the leading integer
// does not fit in an int.
func parseCount(s string) (int, bool) {
	m := countText(s)
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// countText returns the leading integer of s as text, or "0".
func countText(s string) string {
	if m := leadingIntRegex.FindString(strings.TrimSpace(s)); m != "" {
		return m
	}
	return "0"
}

// digitsText returns the first run of digits in s, or "0".
func digitsText(s string) string {
	if m := firstDigitsRegex.FindString(s); m != "" {
		return m
	}
	return "0"
}

// ExtractNumber returns the first run of digits in s, or 0 if there is none.
// Used for labeled fields such as "Outbound Dials: 42".
func ExtractNumber(s string) int {
	m := firstDigitsRegex.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// Slugify lowercases name and collapses every run of non-alphanumeric
// characters into a single underscore. Leading and trailing underscores
// are dropped.
func Slugify(name string) string {
	s := nonAlnumRunRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(s, "_")
}

// Deslugify turns a column slug back into human words: underscores become
// spaces and each word is title-cased ("google_ads" -> "Google Ads").
func Deslugify(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '_' || unicode.IsSpace(r) })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// SyntheticEmail derives a placeholder address from a display name:
// "Jane Doe" -> "jane.doe@temp.com".
func SyntheticEmail(name string) string {
	parts := strings.Fields(strings.ToLower(name))
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ".") + "@temp.com"
}

// USDateToISO rewrites M/D/YYYY to YYYY-MM-DD, zero-padding each part.
// Returns false when the value has fewer than three slash-separated parts.
func USDateToISO(s string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) < 3 {
		return "", false
	}
	month := padLeft(strings.TrimSpace(parts[0]), 2)
	day := padLeft(strings.TrimSpace(parts[1]), 2)
	year := padLeft(strings.TrimSpace(parts[2]), 4)
	return year + "-" + month + "-" + day, true
}

// ParseEntryDate parses a canonical YYYY-MM-DD date. Any calendar date is
// accepted; there is no range restriction.
func ParseEntryDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}
