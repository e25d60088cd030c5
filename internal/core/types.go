package core

import (
	"context"
	"time"
)

// Canonical field names shared by the native CSV layout, the template export
// and the alternate-format mapper.
const (
	FieldProducerEmail = "producer_email"
	FieldProducerName  = "producer_name"
	FieldEntryDate     = "entry_date"
	FieldOutboundDials = "outbound_dials"
	FieldTalkMinutes   = "talk_minutes"
	FieldItemsTotal    = "items_total"
)

// Per-source column suffixes: <slug>_qhh, <slug>_quotes, <slug>_items.
const (
	SuffixQHH    = "qhh"
	SuffixQuotes = "quotes"
	SuffixItems  = "items"
)

// OtherSourceName is the fallback source for blank or uncreatable names.
const OtherSourceName = "Other"

// DateLayout is the canonical entry_date format.
const DateLayout = "2006-01-02"

// TemplateFields lists the fixed leading columns of the import template.
var TemplateFields = []string{
	FieldProducerEmail,
	FieldEntryDate,
	FieldOutboundDials,
	FieldTalkMinutes,
	FieldItemsTotal,
}

// ImportRow is one CSV data line keyed by header name.
// It never leaves the validator; rows are projected into CanonicalEntry.
type ImportRow map[string]string

// Format identifies the column layout of an uploaded CSV.
type Format string

const (
	FormatNative    Format = "native"
	FormatAlternate Format = "alternate"
)

// Producer is a team member who logs daily activity.
type Producer struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
}

// Source is a lead-origin category that quotes and sales are attributed to.
type Source struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	SortOrder int    `json:"sort_order"`
}

// SourceBreakdown is the per-source part of a daily entry.
type SourceBreakdown struct {
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	QHH        int    `json:"qhh"`
	Quotes     int    `json:"quotes"`
	Items      int    `json:"items"`
}

// CanonicalEntry is one validated daily activity record.
// ItemsTotal equals the sum of Sources[i].Items and QHHTotal the sum of
// Sources[i].QHH.
type CanonicalEntry struct {
	ProducerEmail string            `json:"producer_email"`
	EntryDate     string            `json:"entry_date"`
	OutboundDials int               `json:"outbound_dials"`
	TalkMinutes   int               `json:"talk_minutes"`
	ItemsTotal    int               `json:"items_total"`
	QHHTotal      int               `json:"qhh_total"`
	Sources       []SourceBreakdown `json:"sources"`
}

// QuotesTotal returns the sum of per-source quotes.
func (e CanonicalEntry) QuotesTotal() int {
	n := 0
	for _, s := range e.Sources {
		n += s.Quotes
	}
	return n
}

// ValidationResult is the report produced once per import attempt.
type ValidationResult struct {
	IsValid       bool             `json:"is_valid"`
	Format        Format           `json:"format,omitempty"`
	RowCount      int              `json:"row_count"`
	Errors        []string         `json:"errors"`
	Warnings      []string         `json:"warnings"`
	ProcessedRows []CanonicalEntry `json:"processed_rows"`
}

// ImportFailure describes one entry the persistence layer rejected.
type ImportFailure struct {
	ProducerEmail string `json:"producer_email"`
	EntryDate     string `json:"entry_date"`
	Error         string `json:"error"`
}

// ImportSummary is the success/failure tally of an Import Executor run.
type ImportSummary struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Failures  []ImportFailure `json:"failures,omitempty"`
}

// ImportReport is returned by Service.ImportCSV.
type ImportReport struct {
	ImportID   string            `json:"import_id"`
	FileName   string            `json:"file_name"`
	Validation *ValidationResult `json:"validation"`
	Summary    *ImportSummary    `json:"summary,omitempty"`
	ArchiveKey string            `json:"archive_key,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

// ImportRun is the audit record of one import invocation.
type ImportRun struct {
	ID         string
	FileName   string
	Format     Format
	RowCount   int
	Processed  int
	Succeeded  int
	Failed     int
	Errors     int
	Warnings   int
	ArchiveKey string
	IPAddress  string
	UserAgent  string
	StartedAt  time.Time
	Duration   time.Duration
}

// Store is the persistence collaborator consumed by the import pipeline.
type Store interface {
	ListProducers(ctx context.Context) ([]Producer, error)
	CreateProducer(ctx context.Context, p Producer) (Producer, error)
	ListSources(ctx context.Context) ([]Source, error)
	CreateSource(ctx context.Context, s Source) (Source, error)
	SaveDailyEntry(ctx context.Context, e CanonicalEntry) error
}

// RunRecorder persists import audit records. Optional.
type RunRecorder interface {
	RecordImportRun(ctx context.Context, run ImportRun) error
}

// Archiver stores the raw uploaded file. Optional.
type Archiver interface {
	Archive(ctx context.Context, importID, fileName string, data []byte) (string, error)
}
