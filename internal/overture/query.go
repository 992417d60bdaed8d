// Package overture reads the Overture Maps places theme from its public
// parquet release through DuckDB.
package overture

import (
	"fmt"
	"strings"
)

const (
	// DefaultRelease is the Overture release imported when none is configured.
	DefaultRelease = "2025-11-19.0"
	// DefaultPathTemplate locates the places theme of a release; %s is the release.
	DefaultPathTemplate = "s3://overturemaps-us-west-2/release/%s/theme=places/*/*"
	// DefaultCountry keeps places whose first address is in this country.
	DefaultCountry = "US"
)

// BBox bounds place coordinates, inclusive on every edge.
type BBox struct {
	MinLon float64 `koanf:"min_lon"`
	MaxLon float64 `koanf:"max_lon"`
	MinLat float64 `koanf:"min_lat"`
	MaxLat float64 `koanf:"max_lat"`
}

// USBBox covers the continental United States, Alaska and Hawaii.
var USBBox = BBox{MinLon: -180, MaxLon: -65, MinLat: 18, MaxLat: 72}

// Query describes which places to read.
type Query struct {
	Release      string
	PathTemplate string
	Country      string
	BBox         BBox
	// Category filters on the primary category when set.
	Category string
	// Region filters on the first address region (a US state code) when set.
	Region string
	// Limit caps the rows selected; zero means no cap.
	Limit int64
}

// DefaultQuery returns the US import query for the default release.
func DefaultQuery() Query {
	return Query{
		Release:      DefaultRelease,
		PathTemplate: DefaultPathTemplate,
		Country:      DefaultCountry,
		BBox:         USBBox,
	}
}

// Path returns the parquet glob for the query's release.
func (q Query) Path() string {
	tmpl := q.PathTemplate
	if tmpl == "" {
		tmpl = DefaultPathTemplate
	}
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, q.Release)
}

func (q Query) from() string {
	return "read_parquet(" + quoteLiteral(q.Path()) + ")"
}

// where renders the filter clause. Filter values are bound, never inlined.
func (q Query) where() (string, []any) {
	clauses := []string{
		"addresses[1].country = ?",
		"ST_X(geometry) BETWEEN ? AND ?",
		"ST_Y(geometry) BETWEEN ? AND ?",
	}
	args := []any{q.Country, q.BBox.MinLon, q.BBox.MaxLon, q.BBox.MinLat, q.BBox.MaxLat}

	if q.Category != "" {
		clauses = append(clauses, "categories.primary = ?")
		args = append(args, q.Category)
	}
	if q.Region != "" {
		clauses = append(clauses, "addresses[1].region = ?")
		args = append(args, q.Region)
	}
	return strings.Join(clauses, "\n  AND "), args
}

// CountSQL returns the row count statement. The limit is not applied.
func (q Query) CountSQL() (string, []any) {
	where, args := q.where()
	return "SELECT COUNT(*)\nFROM " + q.from() + "\nWHERE " + where, args
}

const selectList = `SELECT
  id,
  names.primary AS name,
  confidence,
  categories.primary AS primary_category,
  categories.alternate AS alternate_categories,
  brand.names.primary AS brand,
  operating_status,
  websites,
  socials,
  phones,
  emails,
  addresses[1].freeform AS street,
  addresses[1].locality AS city,
  addresses[1].region AS state,
  addresses[1].postcode AS postcode,
  addresses[1].country AS country,
  ST_X(geometry) AS lon,
  ST_Y(geometry) AS lat,
  to_json(struct_pack(
    sources := sources,
    bbox := bbox,
    version := version,
    basic_category := basic_category
  )) AS raw`

// SelectSQL returns the extraction statement.
func (q Query) SelectSQL() (string, []any) {
	where, args := q.where()
	stmt := selectList + "\nFROM " + q.from() + "\nWHERE " + where
	if q.Limit > 0 {
		stmt += fmt.Sprintf("\nLIMIT %d", q.Limit)
	}
	return stmt, args
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
