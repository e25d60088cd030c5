package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// memStore is an in-memory Store shared by the core tests.
type memStore struct {
	mu        sync.Mutex
	producers []Producer
	sources   []Source
	saved     []CanonicalEntry
	runs      []ImportRun
	nextID    int

	createdSources   []string
	createdProducers []string

	failCreateSource map[string]bool // lowercase names
	failSave         map[string]bool // lowercase emails
	listErr          error
}

func newMemStore() *memStore {
	return &memStore{
		failCreateSource: map[string]bool{},
		failSave:         map[string]bool{},
	}
}

func (m *memStore) withProducer(email, name string) *memStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.producers = append(m.producers, Producer{
		ID:          fmt.Sprintf("p%d", m.nextID),
		Email:       email,
		DisplayName: name,
		Active:      true,
	})
	return m
}

func (m *memStore) withSource(name string, order int) *memStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.sources = append(m.sources, Source{
		ID:        fmt.Sprintf("s%d", m.nextID),
		Name:      name,
		Active:    true,
		SortOrder: order,
	})
	return m
}

func (m *memStore) ListProducers(ctx context.Context) ([]Producer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]Producer(nil), m.producers...), nil
}

func (m *memStore) CreateProducer(ctx context.Context, p Producer) (Producer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = fmt.Sprintf("p%d", m.nextID)
	m.producers = append(m.producers, p)
	m.createdProducers = append(m.createdProducers, p.Email)
	return p, nil
}

func (m *memStore) ListSources(ctx context.Context) ([]Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]Source(nil), m.sources...), nil
}

func (m *memStore) CreateSource(ctx context.Context, s Source) (Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateSource[strings.ToLower(s.Name)] {
		return Source{}, errors.New("insert source: permission denied")
	}
	m.nextID++
	s.ID = fmt.Sprintf("s%d", m.nextID)
	m.sources = append(m.sources, s)
	m.createdSources = append(m.createdSources, s.Name)
	return s, nil
}

func (m *memStore) SaveDailyEntry(ctx context.Context, e CanonicalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave[strings.ToLower(e.ProducerEmail)] {
		return errors.New("upsert daily entry: connection reset by peer")
	}
	m.saved = append(m.saved, e)
	return nil
}

func (m *memStore) RecordImportRun(ctx context.Context, run ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

type memArchiver struct {
	keys []string
	err  error
}

func (a *memArchiver) Archive(ctx context.Context, importID, fileName string, data []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := "imports/" + importID + "-" + fileName
	a.keys = append(a.keys, key)
	return key, nil
}
