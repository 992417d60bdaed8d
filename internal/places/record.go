// Package places defines the place records moved by poisync and the pure
// transformation from raw source rows into store-ready write records.
package places

import (
	"encoding/json"
	"time"
)

// Table is the name of the target table in the store.
const Table = "places"

// SourceRecord is one row produced by the source query, keyed by column name.
type SourceRecord map[string]any

// Strings is an optional text array. A zero Strings is the explicit
// "no value" marker and is never written as an empty array. A nil element
// is a NULL inside a present array and keeps its position.
type Strings struct {
	Values []*string
	Valid  bool
}

// StringsOf returns a valid Strings holding a copy of values, or the
// no-value marker when values is empty.
func StringsOf(values ...string) Strings {
	if len(values) == 0 {
		return Strings{}
	}
	out := make([]*string, len(values))
	for i := range values {
		out[i] = &values[i]
	}
	return Strings{Values: out, Valid: true}
}

// Arg returns the value bound for the column: nil for the no-value marker,
// otherwise a text[] whose nil elements bind as NULL.
func (s Strings) Arg() any {
	if !s.Valid {
		return nil
	}
	return s.Values
}

// WriteRecord is the store-shaped form of a place.
type WriteRecord struct {
	ID                  string
	Name                *string
	Confidence          *float64
	PrimaryCategory     *string
	AlternateCategories Strings
	Brand               *string
	OperatingStatus     *string
	Websites            Strings
	Socials             Strings
	Phones              Strings
	Emails              Strings
	Street              *string
	City                *string
	State               *string
	Postcode            *string
	Country             *string
	Lon                 *float64
	Lat                 *float64
	Raw                 json.RawMessage

	SourceVersion   string
	SourceUpdatedAt time.Time
	LocalUpdatedAt  time.Time
}

// Columns lists the store columns in the order Args binds them. The first
// column is the conflict key.
var Columns = []string{
	"id",
	"name",
	"confidence",
	"primary_category",
	"alternate_categories",
	"brand",
	"operating_status",
	"websites",
	"socials",
	"phones",
	"emails",
	"street",
	"city",
	"state",
	"postcode",
	"country",
	"lon",
	"lat",
	"raw",
	"overture_version",
	"overture_updated_at",
	"updated_at",
}

// Args returns the record's values in Columns order.
func (r WriteRecord) Args() []any {
	var raw any
	if len(r.Raw) > 0 {
		raw = string(r.Raw)
	}
	return []any{
		r.ID,
		r.Name,
		r.Confidence,
		r.PrimaryCategory,
		r.AlternateCategories.Arg(),
		r.Brand,
		r.OperatingStatus,
		r.Websites.Arg(),
		r.Socials.Arg(),
		r.Phones.Arg(),
		r.Emails.Arg(),
		r.Street,
		r.City,
		r.State,
		r.Postcode,
		r.Country,
		r.Lon,
		r.Lat,
		raw,
		r.SourceVersion,
		r.SourceUpdatedAt,
		r.LocalUpdatedAt,
	}
}
