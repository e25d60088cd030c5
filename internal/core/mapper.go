package core

import (
	"math/big"
	"sort"
	"strings"
)

// Alternate (form-builder export) layout headers.
const (
	AltFieldName      = "Name"
	AltFieldDate      = "Today's Date"
	AltFieldDials     = "Outbound Dials"
	AltFieldTalkTime  = "Total Talk Time"
	AltFieldItemsSold = "Items Sold"
	AltQHHPrefix      = "LS - "
	AltQuotesPrefix   = "QS - "
	AltItemsPrefix    = "IS - "
)

// alternateSentinels are the headers that only the alternate export carries.
var alternateSentinels = []string{
	AltFieldName,
	AltFieldDate,
	AltFieldDials,
	AltFieldTalkTime,
}

// DetectFormat classifies a header set. A single sentinel header is enough
// to select FormatAlternate.
func DetectFormat(headers []string) Format {
	for _, h := range headers {
		h = strings.TrimSpace(h)
		for _, s := range alternateSentinels {
			if strings.EqualFold(h, s) {
				return FormatAlternate
			}
		}
	}
	return FormatNative
}

// MapAlternateRow translates one alternate-format row into the canonical
// field vocabulary. Columns it does not recognise are dropped. Headers are
// visited in sorted order; per-source headers that slugify to the same
// column (for example "IS - Google Ads" and "IS - Google-Ads") are summed.
// Counts are carried as text so the validator sees negative and
// out-of-range values.
func MapAlternateRow(row ImportRow) ImportRow {
	out := make(ImportRow)

	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := row[key]
		k := strings.TrimSpace(key)
		switch {
		case strings.EqualFold(k, AltFieldName):
			name := strings.TrimSpace(value)
			if name != "" {
				out[FieldProducerEmail] = SyntheticEmail(name)
				out[FieldProducerName] = name
			}

		case strings.EqualFold(k, AltFieldDate):
			// Malformed dates stay unmapped so validation reports a missing entry_date.
			if iso, ok := USDateToISO(value); ok {
				out[FieldEntryDate] = iso
			}

		case strings.EqualFold(k, AltFieldDials):
			out[FieldOutboundDials] = digitsText(value)

		case strings.EqualFold(k, AltFieldTalkTime):
			out[FieldTalkMinutes] = digitsText(value)

		case strings.EqualFold(k, AltFieldItemsSold):
			out[FieldItemsTotal] = countText(value)

		case hasPrefixFold(k, AltQHHPrefix):
			if slug := Slugify(k[len(AltQHHPrefix):]); slug != "" {
				mergeCount(out, slug+"_"+SuffixQHH, value)
			}

		case hasPrefixFold(k, AltQuotesPrefix):
			if slug := Slugify(k[len(AltQuotesPrefix):]); slug != "" {
				mergeCount(out, slug+"_"+SuffixQuotes, value)
			}

		case hasPrefixFold(k, AltItemsPrefix):
			if slug := Slugify(k[len(AltItemsPrefix):]); slug != "" {
				mergeCount(out, slug+"_"+SuffixItems, value)
			}
		}
	}

	if _, ok := out[FieldItemsTotal]; !ok {
		out[FieldItemsTotal] = "0"
	}
	return out
}

// mergeCount adds value to the count already stored under key. A negative
// or out-of-range operand is kept as-is so the validator still rejects it.
func mergeCount(out ImportRow, key, value string) {
	prev, ok := out[key]
	if !ok {
		out[key] = countText(value)
		return
	}

	a, aOK := parseCount(prev)
	b, bOK := parseCount(value)
	switch {
	case !aOK || a < 0:
	case !bOK || b < 0:
		out[key] = countText(value)
	default:
		sum := new(big.Int).Add(big.NewInt(int64(a)), big.NewInt(int64(b)))
		out[key] = sum.String()
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
