package core

import (
	"context"
	"fmt"
	"strings"
)

// TemplateHeaders returns the import template columns: the fixed canonical
// fields followed by <slug>_qhh, <slug>_quotes and <slug>_items for every
// source, active or not, in the order given.
func TemplateHeaders(sources []Source) []string {
	headers := make([]string, 0, len(TemplateFields)+3*len(sources))
	headers = append(headers, TemplateFields...)

	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		slug := Slugify(src.Name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		headers = append(headers,
			slug+"_"+SuffixQHH,
			slug+"_"+SuffixQuotes,
			slug+"_"+SuffixItems,
		)
	}
	return headers
}

// TemplateCSV renders the header-only import template for the current
// source list.
func (s *Service) TemplateCSV(ctx context.Context) ([]byte, error) {
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return []byte(strings.Join(TemplateHeaders(sources), ",") + "\n"), nil
}
