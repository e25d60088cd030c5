package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SaveEntry validates a manually entered daily record and saves it through
// the same Store entry point the importer uses. Sources are matched by ID,
// then by case-insensitive name; manual entry never creates producers or
// sources.
func (s *Service) SaveEntry(ctx context.Context, entry CanonicalEntry) (CanonicalEntry, error) {
	session, err := NewSession(ctx, s.store)
	if err != nil {
		return CanonicalEntry{}, err
	}

	normalized, err := session.normalizeEntry(entry)
	if err != nil {
		return CanonicalEntry{}, err
	}

	if err := s.store.SaveDailyEntry(ctx, normalized); err != nil {
		return CanonicalEntry{}, fmt.Errorf("save entry: %w", err)
	}
	return normalized, nil
}

// normalizeEntry applies the row rules to an already typed entry. Every
// problem is joined into one error wrapping ErrInvalidEntry.
func (s *Session) normalizeEntry(entry CanonicalEntry) (CanonicalEntry, error) {
	email := strings.ToLower(strings.TrimSpace(entry.ProducerEmail))
	if email == "" {
		return CanonicalEntry{}, fmt.Errorf("%w: missing producer_email", ErrInvalidEntry)
	}
	producer, ok := s.Producer(email)
	if !ok {
		return CanonicalEntry{}, fmt.Errorf("%w %s", ErrUnknownProducer, email)
	}

	var problems []error
	date := strings.TrimSpace(entry.EntryDate)
	if _, ok := ParseEntryDate(date); !ok {
		problems = append(problems, fmt.Errorf("invalid entry_date %q (expected YYYY-MM-DD)", date))
	}
	for _, f := range []struct {
		field string
		value int
	}{
		{FieldOutboundDials, entry.OutboundDials},
		{FieldTalkMinutes, entry.TalkMinutes},
		{FieldItemsTotal, entry.ItemsTotal},
	} {
		if f.value < 0 {
			problems = append(problems, fmt.Errorf("%s cannot be negative (%d)", f.field, f.value))
		}
	}

	out := CanonicalEntry{
		ProducerEmail: producer.Email,
		EntryDate:     date,
		OutboundDials: entry.OutboundDials,
		TalkMinutes:   entry.TalkMinutes,
		ItemsTotal:    entry.ItemsTotal,
		Sources:       []SourceBreakdown{},
	}

	byID := make(map[string]int)
	sumItems := 0
	for _, b := range entry.Sources {
		src, ok := s.sourceForBreakdown(b)
		if !ok {
			problems = append(problems, fmt.Errorf("unknown source %q", firstNonEmpty(b.SourceID, b.SourceName)))
			continue
		}
		if b.QHH < 0 || b.Quotes < 0 || b.Items < 0 {
			problems = append(problems, fmt.Errorf("source %s values cannot be negative", src.Name))
			continue
		}
		sumItems += b.Items
		out.QHHTotal += b.QHH

		if idx, seen := byID[src.ID]; seen {
			out.Sources[idx].QHH += b.QHH
			out.Sources[idx].Quotes += b.Quotes
			out.Sources[idx].Items += b.Items
			continue
		}
		byID[src.ID] = len(out.Sources)
		out.Sources = append(out.Sources, SourceBreakdown{
			SourceID:   src.ID,
			SourceName: src.Name,
			QHH:        b.QHH,
			Quotes:     b.Quotes,
			Items:      b.Items,
		})
	}

	if sumItems != entry.ItemsTotal {
		problems = append(problems, fmt.Errorf("items_total (%d) does not match sum of source items (%d)", entry.ItemsTotal, sumItems))
	}

	if len(problems) > 0 {
		return CanonicalEntry{}, fmt.Errorf("%w: %w", ErrInvalidEntry, errors.Join(problems...))
	}
	return out, nil
}

func (s *Session) sourceForBreakdown(b SourceBreakdown) (Source, bool) {
	if b.SourceID != "" {
		for _, src := range s.sources {
			if src.ID == b.SourceID {
				return src, true
			}
		}
	}
	if b.SourceName != "" {
		return s.lookupSource(b.SourceName)
	}
	return Source{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
