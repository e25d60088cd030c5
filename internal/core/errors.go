package core

import "errors"

var (
	// ErrEmptyFile is the structural error for a file with no header line.
	ErrEmptyFile = errors.New("CSV file is empty")

	// ErrNoDataRows is the structural error for a header with no data lines.
	ErrNoDataRows = errors.New("CSV file has no data rows")

	// ErrValidationFailed is returned by ImportCSV when the file did not
	// reconcile; nothing is saved.
	ErrValidationFailed = errors.New("import validation failed")

	// ErrNotCSV is returned when an upload is not a CSV file.
	ErrNotCSV = errors.New("not a csv file")

	// ErrUnknownProducer is returned by SaveEntry for an email with no producer.
	ErrUnknownProducer = errors.New("unknown producer")

	// ErrInvalidEntry wraps field-level problems in a manually entered record.
	ErrInvalidEntry = errors.New("invalid entry")
)
