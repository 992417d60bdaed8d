package places

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Transformer turns SourceRecords into WriteRecords. It holds no state
// besides the release tag and the clock, so one value serves a whole run.
type Transformer struct {
	// Version is stamped into every record as its source release.
	Version string
	// Now supplies the transform timestamp. Defaults to time.Now in UTC.
	Now func() time.Time
}

// NewTransformer returns a Transformer for the given source release.
func NewTransformer(version string) *Transformer {
	return &Transformer{Version: version}
}

func (t *Transformer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now().UTC()
}

// Transform maps one source row to a WriteRecord. Only a missing or
// malformed id is an error; every other field degrades to no value.
func (t *Transformer) Transform(row SourceRecord) (WriteRecord, error) {
	id, ok := row["id"].(string)
	if !ok {
		if _, present := row["id"]; present && row["id"] != nil {
			return WriteRecord{}, &TransformError{Field: "id", Reason: fmt.Sprintf("has unexpected type %T", row["id"])}
		}
		return WriteRecord{}, &TransformError{Field: "id", Reason: "is missing"}
	}
	if id == "" {
		return WriteRecord{}, &TransformError{Field: "id", Reason: "is empty"}
	}

	stamp := t.now()

	return WriteRecord{
		ID:                  id,
		Name:                stringField(row, "name"),
		Confidence:          floatField(row, "confidence"),
		PrimaryCategory:     stringField(row, "primary_category"),
		AlternateCategories: arrayField(row, "alternate_categories"),
		Brand:               stringField(row, "brand"),
		OperatingStatus:     stringField(row, "operating_status"),
		Websites:            arrayField(row, "websites"),
		Socials:             arrayField(row, "socials"),
		Phones:              arrayField(row, "phones"),
		Emails:              arrayField(row, "emails"),
		Street:              stringField(row, "street"),
		City:                stringField(row, "city"),
		State:               stringField(row, "state"),
		Postcode:            stringField(row, "postcode"),
		Country:             stringField(row, "country"),
		Lon:                 floatField(row, "lon"),
		Lat:                 floatField(row, "lat"),
		Raw:                 NormalizeRaw(row["raw"]),
		SourceVersion:       t.Version,
		SourceUpdatedAt:     stamp,
		LocalUpdatedAt:      stamp,
	}, nil
}

func stringField(row SourceRecord, key string) *string {
	switch v := row[key].(type) {
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	default:
		return nil
	}
}

type float64er interface {
	Float64() float64
}

func floatField(row SourceRecord, key string) *float64 {
	var f float64
	switch v := row[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float64er:
		f = v.Float64()
	default:
		return nil
	}
	return &f
}

// arrayField collapses absent, nil, empty and non-sequence values to the
// no-value marker. Any non-empty sequence is copied in order, nil elements
// included.
func arrayField(row SourceRecord, key string) Strings {
	switch v := row[key].(type) {
	case []string:
		return StringsOf(v...)
	case []any:
		if len(v) == 0 {
			return Strings{}
		}
		out := make([]*string, len(v))
		for i, el := range v {
			var s string
			switch x := el.(type) {
			case nil:
				continue
			case string:
				s = x
			case []byte:
				s = string(x)
			default:
				s = fmt.Sprint(x)
			}
			out[i] = &s
		}
		return Strings{Values: out, Valid: true}
	default:
		return Strings{}
	}
}

// NormalizeRaw converts the nested provenance value into JSON that holds
// only primitives. Text input must already be JSON; anything unparseable
// yields nil.
func NormalizeRaw(v any) json.RawMessage {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return rawText([]byte(x))
	case []byte:
		return rawText(x)
	case json.RawMessage:
		return rawText(x)
	}
	b, err := json.Marshal(sanitize(v))
	if err != nil {
		return nil
	}
	return b
}

func rawText(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

// sanitize rebuilds v from JSON primitives, coercing everything else to
// its string form.
func sanitize(v any) any {
	switch x := v.(type) {
	case nil, bool, string, json.Number:
		return x
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x
	case float32:
		return sanitizeFloat(float64(x))
	case float64:
		return sanitizeFloat(x)
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = sanitize(el)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = sanitize(el)
		}
		return out
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			out[fmt.Sprint(k.Interface())] = sanitize(rv.MapIndex(k).Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = sanitize(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return sanitize(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func sanitizeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}
