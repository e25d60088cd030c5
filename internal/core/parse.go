package core

import "strings"

// ParseRows turns raw CSV text into header-keyed rows.
//
// The first non-empty line is the header. Every later line that is not blank
// after trimming becomes one ImportRow, including comma-only padding lines,
// which the validator then reports; missing trailing columns map to "". Values are trimmed and
// have double quotes removed. Splitting is on bare commas, so quoted values
// that contain commas are not supported.
func ParseRows(text string) []ImportRow {
	data := stripBOM(sanitizeUTF8([]byte(text)))
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	var headers []string
	var rows []ImportRow
	for _, line := range lines {
		if strings.TrimSpace(strings.TrimRight(line, "\r")) == "" {
			continue
		}
		line = strings.TrimRight(line, "\r")
		cells := strings.Split(line, ",")

		if headers == nil {
			headers = make([]string, len(cells))
			for i, c := range cells {
				headers[i] = CleanValue(c)
			}
			continue
		}

		row := make(ImportRow, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				row[h] = CleanValue(cells[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseHeaders returns the cleaned header line of text, or nil if the text
// has no non-empty line.
func ParseHeaders(text string) []string {
	data := stripBOM(sanitizeUTF8([]byte(text)))
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, ",")
		headers := make([]string, len(cells))
		for i, c := range cells {
			headers[i] = CleanValue(c)
		}
		return headers
	}
	return nil
}
