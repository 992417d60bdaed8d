package overture

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mapierhub/poisync/internal/pipeline"
	"github.com/mapierhub/poisync/internal/places"
)

// Querier runs a statement that returns rows. adapter.Adapter implements it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)
}

// Source streams places matching a Query.
type Source struct {
	db     Querier
	query  Query
	logger *slog.Logger
}

// NewSource creates a Source. If logger is nil, a discard logger is used.
func NewSource(db Querier, q Query, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{db: db, query: q, logger: logger}
}

// Query returns the query the source reads.
func (s *Source) Query() Query {
	return s.query
}

// Count returns the number of matching places, ignoring any limit.
func (s *Source) Count(ctx context.Context) (int64, error) {
	stmt, args := s.query.CountSQL()
	s.logger.Debug("counting places", slog.String("path", s.query.Path()))

	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count places: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error reading count: %w", err)
	}
	return n, nil
}

// Open starts the extraction query and returns a cursor over its rows.
func (s *Source) Open(ctx context.Context) (pipeline.Cursor, error) {
	stmt, args := s.query.SelectSQL()
	s.logger.Debug("opening places cursor", slog.String("path", s.query.Path()), slog.Int64("limit", s.query.Limit))

	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	return &Cursor{rows: rows, cols: cols}, nil
}

// Cursor is a forward-only page reader over an open result set.
type Cursor struct {
	rows *sql.Rows
	cols []string
	done bool
}

// Next returns up to n rows. An empty page means the result set is exhausted.
func (c *Cursor) Next(ctx context.Context, n int) ([]places.SourceRecord, error) {
	if c.done || n <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page := make([]places.SourceRecord, 0, n)
	for len(page) < n {
		if !c.rows.Next() {
			c.done = true
			if err := c.rows.Err(); err != nil {
				return nil, fmt.Errorf("error reading places: %w", err)
			}
			break
		}

		values := make([]any, len(c.cols))
		ptrs := make([]any, len(c.cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := c.rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}

		rec := make(places.SourceRecord, len(c.cols))
		for i, col := range c.cols {
			rec[col] = values[i]
		}
		page = append(page, rec)
	}
	return page, nil
}

// Close releases the result set.
func (c *Cursor) Close() error {
	return c.rows.Close()
}

var _ pipeline.Source = (*Source)(nil)
