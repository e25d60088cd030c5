package core

// validation.go reconciles parsed CSV rows into CanonicalEntry values.
//
// Validation happens at two levels:
//  1. Row rules: producer, entry date, non-negative counts, totals. A hard
//     error drops the row and skips its remaining checks.
//  2. Column rules: each <source>_qhh / _quotes / _items cell must be
//     non-negative. A bad cell drops only that cell's contribution.
//
// Every problem is reported; validation never stops at the first bad row so
// the operator sees the whole file in one pass.

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// sourceColumnRegex matches per-source breakdown columns.
var sourceColumnRegex = regexp.MustCompile(`^(.+)_(qhh|quotes|items)$`)

// RowError is a validation failure tied to a CSV line.
type RowError struct {
	Row     int    // 1-based CSV line number (header is row 1)
	Field   string // Column name, if the error is column-specific
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// sourceGroup accumulates the breakdown columns of one source within a row.
type sourceGroup struct {
	name   string
	qhh    int
	quotes int
	items  int
}

// Validate parses text and reconciles every row against the session's
// known producers and sources. Sources and historical producers may be
// created as a side effect.
func (s *Session) Validate(ctx context.Context, text string) ValidationResult {
	result := ValidationResult{
		Errors:        []string{},
		Warnings:      []string{},
		ProcessedRows: []CanonicalEntry{},
	}

	headers := ParseHeaders(text)
	if len(headers) == 0 {
		result.Errors = append(result.Errors, ErrEmptyFile.Error())
		return result
	}

	rows := ParseRows(text)
	if len(rows) == 0 {
		result.Errors = append(result.Errors, ErrNoDataRows.Error())
		return result
	}

	result.Format = DetectFormat(headers)
	result.RowCount = len(rows)
	order := headers

	if result.Format == FormatAlternate {
		for i, row := range rows {
			rows[i] = MapAlternateRow(row)
		}
		order = nil
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Detected alternate export format; mapped %d rows to canonical fields", len(rows)))
	}

	for i, row := range rows {
		entry, errs, warns := s.validateRow(ctx, i+2, row, order)
		for _, e := range errs {
			result.Errors = append(result.Errors, e.Error())
		}
		result.Warnings = append(result.Warnings, warns...)
		if entry != nil {
			result.ProcessedRows = append(result.ProcessedRows, *entry)
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// validateRow applies the row rules in order. It returns a nil entry when
// the row is excluded.
func (s *Session) validateRow(ctx context.Context, rowNum int, row ImportRow, order []string) (*CanonicalEntry, []RowError, []string) {
	var errs []RowError
	var warns []string
	fail := func(field, format string, args ...any) (*CanonicalEntry, []RowError, []string) {
		errs = append(errs, RowError{Row: rowNum, Field: field, Message: fmt.Sprintf(format, args...)})
		return nil, errs, warns
	}

	email := strings.ToLower(strings.TrimSpace(row[FieldProducerEmail]))
	if email == "" {
		return fail(FieldProducerEmail, "missing producer_email")
	}

	date := strings.TrimSpace(row[FieldEntryDate])
	if date == "" {
		return fail(FieldEntryDate, "missing entry_date")
	}

	displayName := row[FieldProducerName]
	_, known := s.Producer(email)
	producer, ok, err := s.ResolveProducer(ctx, email, displayName)
	if err != nil {
		return fail(FieldProducerEmail, "could not create producer %s: %v", email, err)
	}
	if !ok {
		return fail(FieldProducerEmail, "unknown producer %s", email)
	}
	if !known {
		warns = append(warns, fmt.Sprintf("Row %d: created historical producer %s (%s) as inactive",
			rowNum, producer.DisplayName, producer.Email))
	}

	if _, ok := ParseEntryDate(date); !ok {
		return fail(FieldEntryDate, "invalid entry_date %q (expected YYYY-MM-DD)", date)
	}

	counts := make(map[string]int, 3)
	for _, field := range []string{FieldOutboundDials, FieldTalkMinutes, FieldItemsTotal} {
		n, ok := parseCount(row[field])
		if !ok {
			return fail(field, "%s is out of range (%s)", field, countText(row[field]))
		}
		if n < 0 {
			return fail(field, "%s cannot be negative (%d)", field, n)
		}
		counts[field] = n
	}
	dials, talk, items := counts[FieldOutboundDials], counts[FieldTalkMinutes], counts[FieldItemsTotal]

	groups := s.groupSourceColumns(rowNum, row, order, &errs)

	entry := &CanonicalEntry{
		ProducerEmail: producer.Email,
		EntryDate:     date,
		OutboundDials: dials,
		TalkMinutes:   talk,
		ItemsTotal:    items,
	}

	byID := make(map[string]int)
	for _, g := range groups {
		canonical := s.Canonicalize(ctx, g.name)
		warns = append(warns, s.takeWarnings()...)

		src, ok := s.lookupSource(canonical)
		if !ok {
			errs = append(errs, RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("could not resolve source %q", g.name),
			})
			continue
		}

		if idx, seen := byID[src.ID]; seen {
			b := &entry.Sources[idx]
			b.QHH += g.qhh
			b.Quotes += g.quotes
			b.Items += g.items
			continue
		}
		byID[src.ID] = len(entry.Sources)
		entry.Sources = append(entry.Sources, SourceBreakdown{
			SourceID:   src.ID,
			SourceName: src.Name,
			QHH:        g.qhh,
			Quotes:     g.quotes,
			Items:      g.items,
		})
	}

	sumItems, sumQHH := 0, 0
	for _, b := range entry.Sources {
		sumItems += b.Items
		sumQHH += b.QHH
	}
	if sumItems != items {
		return fail(FieldItemsTotal, "items_total (%d) does not match sum of source items (%d)", items, sumItems)
	}
	entry.QHHTotal = sumQHH

	if entry.Sources == nil {
		entry.Sources = []SourceBreakdown{}
	}
	return entry, errs, warns
}

// groupSourceColumns collects <slug>_qhh/_quotes/_items cells into
// per-source groups keyed by the de-slugified source name. Negative and
// out-of-range cells are reported and skipped.
func (s *Session) groupSourceColumns(rowNum int, row ImportRow, order []string, errs *[]RowError) []*sourceGroup {
	var groups []*sourceGroup
	byName := make(map[string]*sourceGroup)

	for _, col := range orderedColumns(row, order) {
		m := sourceColumnRegex.FindStringSubmatch(col)
		if m == nil {
			continue
		}
		value, ok := parseCount(row[col])
		if !ok {
			*errs = append(*errs, RowError{
				Row:     rowNum,
				Field:   col,
				Message: fmt.Sprintf("%s is out of range (%s)", col, countText(row[col])),
			})
			continue
		}
		if value < 0 {
			*errs = append(*errs, RowError{
				Row:     rowNum,
				Field:   col,
				Message: fmt.Sprintf("%s cannot be negative (%d)", col, value),
			})
			continue
		}

		name := Deslugify(m[1])
		key := strings.ToLower(name)
		g, ok := byName[key]
		if !ok {
			g = &sourceGroup{name: name}
			byName[key] = g
			groups = append(groups, g)
		}
		switch m[2] {
		case SuffixQHH:
			g.qhh += value
		case SuffixQuotes:
			g.quotes += value
		case SuffixItems:
			g.items += value
		}
	}
	return groups
}

// orderedColumns returns the row's keys in header order, followed by any
// remaining keys sorted by name.
func orderedColumns(row ImportRow, order []string) []string {
	cols := make([]string, 0, len(row))
	seen := make(map[string]bool, len(row))
	for _, h := range order {
		if _, ok := row[h]; ok && !seen[h] {
			cols = append(cols, h)
			seen[h] = true
		}
	}
	var rest []string
	for k := range row {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}
