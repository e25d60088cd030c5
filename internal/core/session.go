package core

// session.go holds the mutable state of a single import invocation.
//
// A Session owns the known-producers map and the known-sources list. Both are
// loaded once from the Store when the session starts and are appended to as
// the pipeline creates records, so later rows in the same file see earlier
// creations. Nothing is shared between sessions: two operators importing at
// the same time can each create the same new Source.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/salesops/internal/logging"
)

// Session is one import run. It is not safe for concurrent use.
type Session struct {
	store Store

	producers map[string]Producer // keyed by lowercase email
	sources   []Source
	byName    map[string]int // lowercase name -> index into sources

	warnings []string
	logger   *slog.Logger
}

// NewSession loads known producers and sources from store.
func NewSession(ctx context.Context, store Store) (*Session, error) {
	producers, err := store.ListProducers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list producers: %w", err)
	}
	sources, err := store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	s := &Session{
		store:     store,
		producers: make(map[string]Producer, len(producers)),
		sources:   make([]Source, 0, len(sources)),
		byName:    make(map[string]int, len(sources)),
		logger:    logging.FromContext(ctx),
	}
	for _, p := range producers {
		s.producers[strings.ToLower(p.Email)] = p
	}
	for _, src := range sources {
		s.addSource(src)
	}
	return s, nil
}

// Sources returns the known sources in load/creation order.
func (s *Session) Sources() []Source {
	out := make([]Source, len(s.sources))
	copy(out, s.sources)
	return out
}

// Producer looks up a known producer by email, case-insensitively.
func (s *Session) Producer(email string) (Producer, bool) {
	p, ok := s.producers[strings.ToLower(strings.TrimSpace(email))]
	return p, ok
}

// Canonicalize resolves a free-text source name to the canonical name of a
// known Source, creating one when no case-insensitive match exists.
//
// Blank names become "Other" without any side effect. When creation fails
// the name falls back to "Other" and a warning is recorded.
func (s *Session) Canonicalize(ctx context.Context, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return OtherSourceName
	}
	if src, ok := s.lookupSource(name); ok {
		return src.Name
	}

	created, err := s.store.CreateSource(ctx, Source{
		Name:      name,
		Active:    true,
		SortOrder: s.nextSortOrder(),
	})
	if err != nil {
		s.logger.Warn("source creation failed, using fallback",
			"source", name,
			"fallback", OtherSourceName,
			"error", err,
		)
		s.warn(fmt.Sprintf("Could not create source %q; using %q", name, OtherSourceName))
		return OtherSourceName
	}

	s.addSource(created)
	s.logger.Info("source created", "source", created.Name, "sort_order", created.SortOrder)
	return created.Name
}

// ResolveProducer finds the producer for email. When it is unknown and a
// display name is supplied, an inactive historical producer is created.
// The returned bool is false when the row's producer cannot be resolved.
func (s *Session) ResolveProducer(ctx context.Context, email, displayName string) (Producer, bool, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if p, ok := s.producers[key]; ok {
		return p, true, nil
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return Producer{}, false, nil
	}

	created, err := s.store.CreateProducer(ctx, Producer{
		Email:       key,
		DisplayName: displayName,
		Active:      false,
	})
	if err != nil {
		return Producer{}, false, fmt.Errorf("create producer %s: %w", key, err)
	}

	s.producers[key] = created
	s.logger.Warn("historical producer created", "email", key, "name", displayName)
	return created, true, nil
}

// lookupSource finds a known source by case-insensitive name.
func (s *Session) lookupSource(name string) (Source, bool) {
	i, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Source{}, false
	}
	return s.sources[i], true
}

func (s *Session) addSource(src Source) {
	key := strings.ToLower(strings.TrimSpace(src.Name))
	if _, exists := s.byName[key]; exists {
		// Duplicate names from earlier races: first one wins.
		s.sources = append(s.sources, src)
		return
	}
	s.byName[key] = len(s.sources)
	s.sources = append(s.sources, src)
}

// nextSortOrder places a new source after every known source.
func (s *Session) nextSortOrder() int {
	max := 0
	for _, src := range s.sources {
		if src.SortOrder > max {
			max = src.SortOrder
		}
	}
	return max + 1
}

func (s *Session) warn(msg string) {
	s.warnings = append(s.warnings, msg)
}

// takeWarnings returns and clears the accumulated warnings.
func (s *Session) takeWarnings() []string {
	w := s.warnings
	s.warnings = nil
	return w
}
