package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	// DateLayout is how DATE values render outside typed sinks.
	DateLayout = "2006-01-02"
	// TimestampLayout is how TIMESTAMP values and ordering tokens render
	// outside typed sinks.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Object is the structured value generated for JSON_OBJECT fields.
type Object map[string]string

// Field is one generated column value.
type Field struct {
	Name  string
	Value any
}

// Record is one synthesized row. Field order matches the schema it was
// generated from.
type Record []Field

// Columns returns the field names in order.
func (r Record) Columns() []string {
	cols := make([]string, len(r))
	for i, f := range r {
		cols[i] = f.Name
	}
	return cols
}

// Values returns the raw field values in order.
func (r Record) Values() []any {
	vals := make([]any, len(r))
	for i, f := range r {
		vals[i] = f.Value
	}
	return vals
}

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Map returns the record as an unordered map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, f := range r {
		m[f.Name] = f.Value
	}
	return m
}

// MarshalJSON encodes the record as a JSON object whose keys follow field
// order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding field %s: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String renders a field value for sinks that only carry text. Objects are
// JSON encoded, times use TimestampLayout.
func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', 2, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(TimestampLayout)
	case Object:
		b, err := json.Marshal(val)
		if err != nil {
			return "{}"
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
