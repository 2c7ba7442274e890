// Package record holds the data model shared by the generator, the producers
// and the sinks: the declared Schema and the synthesized Record.
package record

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType is the semantic type tag a schema field declares.
type FieldType string

const (
	TypeString     FieldType = "STRING"
	TypeInteger    FieldType = "INTEGER"
	TypeFloat      FieldType = "FLOAT"
	TypeBoolean    FieldType = "BOOLEAN"
	TypeDate       FieldType = "DATE"
	TypeTimestamp  FieldType = "TIMESTAMP"
	TypeJSONObject FieldType = "JSON_OBJECT"
)

// Canonical maps a declared tag, including the SQL spellings accepted by
// older configs, to one of the supported tags. ok is false for tags nothing
// can be generated for.
func (t FieldType) Canonical() (FieldType, bool) {
	tag := strings.ToUpper(strings.TrimSpace(string(t)))
	switch {
	case tag == string(TypeString),
		strings.HasPrefix(tag, "VARCHAR"),
		strings.HasPrefix(tag, "TEXT"),
		strings.HasPrefix(tag, "CHAR"):
		return TypeString, true
	case tag == string(TypeInteger), tag == "INT":
		return TypeInteger, true
	case tag == string(TypeFloat), tag == "DOUBLE", tag == "REAL":
		return TypeFloat, true
	case tag == string(TypeBoolean), tag == "BOOL":
		return TypeBoolean, true
	case tag == string(TypeDate):
		return TypeDate, true
	case tag == string(TypeTimestamp):
		return TypeTimestamp, true
	case tag == string(TypeJSONObject), tag == "JSON", tag == "JSONB":
		return TypeJSONObject, true
	default:
		return t, false
	}
}

// Column is one declared schema field.
type Column struct {
	Name string
	Type FieldType
}

// Schema is the ordered list of fields every record must carry. It is built
// once and shared read-only by all producers.
type Schema struct {
	columns []Column
}

// NewSchema builds a Schema from columns in declaration order. Duplicate
// names are rejected.
func NewSchema(columns ...Column) (*Schema, error) {
	seen := make(map[string]struct{}, len(columns))
	cols := make([]Column, 0, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("schema field with empty name")
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("schema field %q declared twice", c.Name)
		}
		seen[c.Name] = struct{}{}
		cols = append(cols, c)
	}
	return &Schema{columns: cols}, nil
}

// MustSchema is NewSchema for literals known to be valid.
func MustSchema(columns ...Column) *Schema {
	s, err := NewSchema(columns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Columns returns a copy of the declared fields.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

func (s *Schema) Len() int {
	return len(s.columns)
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether name is a declared field.
func (s *Schema) Has(name string) bool {
	for _, c := range s.columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// UnmarshalYAML decodes a YAML mapping of field name to type tag while
// keeping the order the fields were written in.
func (s *Schema) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schema must be a mapping of field name to type", value.Line)
	}
	cols := make([]Column, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: type of field %q must be a scalar", val.Line, key.Value)
		}
		cols = append(cols, Column{Name: key.Value, Type: FieldType(val.Value)})
	}
	parsed, err := NewSchema(cols...)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// MarshalYAML writes the schema back as an ordered mapping.
func (s Schema) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range s.columns {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: c.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(c.Type)},
		)
	}
	return node, nil
}
