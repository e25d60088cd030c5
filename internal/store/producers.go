package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/salesops/internal/core"
)

// ListProducers returns every producer, active or not, ordered by name.
func (s *Store) ListProducers(ctx context.Context) ([]core.Producer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, display_name, active
		FROM producers
		ORDER BY display_name, email
	`)
	if err != nil {
		return nil, fmt.Errorf("list producers: %w", err)
	}
	defer rows.Close()

	var out []core.Producer
	for rows.Next() {
		p, err := scanProducer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateProducer inserts p with a new id. The email is stored lowercase.
// When the email already exists the existing row is returned.
func (s *Store) CreateProducer(ctx context.Context, p core.Producer) (core.Producer, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	id := newID()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO producers (id, email, display_name, active)
		VALUES ($1, $2, $3, $4)
	`, id, email, strings.TrimSpace(p.DisplayName), p.Active)
	if isUniqueViolation(err) {
		return s.producerByEmail(ctx, s.pool, email)
	}
	if err != nil {
		return core.Producer{}, fmt.Errorf("create producer %s: %w", email, err)
	}

	p.ID = fromPgUUID(id)
	p.Email = email
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	return p, nil
}

func (s *Store) producerByEmail(ctx context.Context, q querier, email string) (core.Producer, error) {
	row := q.QueryRow(ctx, `
		SELECT id, email, display_name, active
		FROM producers
		WHERE lower(email) = lower($1)
	`, strings.TrimSpace(email))
	p, err := scanProducer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Producer{}, fmt.Errorf("%w %s", core.ErrUnknownProducer, email)
	}
	return p, err
}

// producerID resolves an email to its producer id.
func (s *Store) producerID(ctx context.Context, q querier, email string) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := q.QueryRow(ctx, `SELECT id FROM producers WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return id, fmt.Errorf("%w %s", core.ErrUnknownProducer, email)
	}
	if err != nil {
		return id, fmt.Errorf("find producer %s: %w", email, err)
	}
	return id, nil
}

func scanProducer(row pgx.Row) (core.Producer, error) {
	var (
		p  core.Producer
		id pgtype.UUID
	)
	if err := row.Scan(&id, &p.Email, &p.DisplayName, &p.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan producer: %w", err)
	}
	p.ID = fromPgUUID(id)
	return p, nil
}

// ListSources returns every source ordered by sort_order, then name.
func (s *Store) ListSources(ctx context.Context) ([]core.Source, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, active, sort_order
		FROM sources
		ORDER BY sort_order, name, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []core.Source
	for rows.Next() {
		var (
			src core.Source
			id  pgtype.UUID
		)
		if err := rows.Scan(&id, &src.Name, &src.Active, &src.SortOrder); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.ID = fromPgUUID(id)
		out = append(out, src)
	}
	return out, rows.Err()
}

// CreateSource inserts src with a new id. Names are not deduplicated.
func (s *Store) CreateSource(ctx context.Context, src core.Source) (core.Source, error) {
	src.Name = strings.TrimSpace(src.Name)
	if src.Name == "" {
		return core.Source{}, errors.New("create source: name is required")
	}
	id := newID()
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO sources (id, name, active, sort_order)
		VALUES ($1, $2, $3, $4)
	`, id, src.Name, src.Active, src.SortOrder); err != nil {
		return core.Source{}, fmt.Errorf("create source %q: %w", src.Name, err)
	}
	src.ID = fromPgUUID(id)
	return src, nil
}
