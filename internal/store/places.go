// Package store implements the places table operations on PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mapierhub/poisync/internal/places"
)

// MaxBindParams is the most parameters PostgreSQL accepts in one statement.
const MaxBindParams = 65535

// MaxBatchSize returns the most records one upsert statement can bind.
func MaxBatchSize() int {
	return MaxBindParams / len(places.Columns)
}

// DBTX is the subset of *sql.DB the places store needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PlacesStore reads and writes the places table.
type PlacesStore struct {
	db    DBTX
	table string
}

// NewPlacesStore returns a store over table, which may be schema-qualified.
// An empty table name means places.Table.
func NewPlacesStore(db DBTX, table string) *PlacesStore {
	if table == "" {
		table = places.Table
	}
	return &PlacesStore{db: db, table: table}
}

// Upsert writes recs in one statement keyed on id. Either every record is
// written or none is.
func (s *PlacesStore) Upsert(ctx context.Context, recs []places.WriteRecord) error {
	if len(recs) == 0 {
		return nil
	}
	query := buildUpsertSQL(s.table, len(recs))
	args := make([]any, 0, len(recs)*len(places.Columns))
	for _, r := range recs {
		args = append(args, r.Args()...)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert %d places: %w", len(recs), err)
	}
	return nil
}

// Count returns the number of rows in the table.
func (s *PlacesStore) Count(ctx context.Context) (int64, error) {
	var n int64
	//nolint:gosec // table name is quoted by pgIdent
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+pgIdent(s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count places: %w", err)
	}
	return n, nil
}

// FetchIDs returns up to limit ids of surviving rows in no particular order.
func (s *PlacesStore) FetchIDs(ctx context.Context, limit int) ([]string, error) {
	//nolint:gosec // table name is quoted by pgIdent
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM "+pgIdent(s.table)+" LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch place ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan place id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating place ids: %w", err)
	}
	return ids, nil
}

// DeleteIDs deletes exactly the rows with the given ids.
func (s *PlacesStore) DeleteIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, buildDeleteSQL(s.table, len(ids)), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %d places: %w", len(ids), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return n, nil
}

// buildUpsertSQL renders a multi-row INSERT ... ON CONFLICT (id) DO UPDATE
// for n records.
func buildUpsertSQL(table string, n int) string {
	cols := places.Columns
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgIdent(c)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(") VALUES ")

	p := 1
	for r := 0; r < n; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			p++
		}
		b.WriteByte(')')
	}

	b.WriteString(" ON CONFLICT (")
	b.WriteString(quoted[0])
	b.WriteString(") DO UPDATE SET ")
	b.WriteString(updateColumns(quoted[1:]))
	return b.String()
}

func updateColumns(cols []string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = EXCLUDED." + c
	}
	return strings.Join(sets, ", ")
}

func buildDeleteSQL(table string, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return "DELETE FROM " + pgIdent(table) + " WHERE id IN (" + strings.Join(ph, ", ") + ")"
}

// GeometryBackfillSQL returns the statement that derives the PostGIS point
// of imported rows from their lon/lat columns.
func GeometryBackfillSQL(table string) string {
	if table == "" {
		table = places.Table
	}
	return "UPDATE " + pgIdent(table) +
		" SET geom = ST_SetSRID(ST_MakePoint(lon, lat), 4326)" +
		" WHERE geom IS NULL AND lon IS NOT NULL AND lat IS NOT NULL;"
}

// pgIdent quotes a possibly schema-qualified identifier.
func pgIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
