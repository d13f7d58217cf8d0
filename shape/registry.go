package shape

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vitalvas/routedoc/openapi"
)

// ErrSchemaNameConflict is returned when a component name is already taken
// by a structurally different schema.
var ErrSchemaNameConflict = errors.New("schema name conflict")

// Registry indexes the component schemas of a document by name and by
// structural key.
type Registry struct {
	schemas map[string]*openapi.Schema
	byKey   map[string]string
	added   map[string]*openapi.Schema
}

// NewRegistry indexes existing component schemas. The map is not modified.
func NewRegistry(existing map[string]*openapi.Schema) *Registry {
	r := &Registry{
		schemas: make(map[string]*openapi.Schema, len(existing)),
		byKey:   make(map[string]string, len(existing)),
		added:   make(map[string]*openapi.Schema),
	}

	names := make([]string, 0, len(existing))
	for name := range existing {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r.schemas[name] = existing[name]
		key := Key(existing[name])
		if _, ok := r.byKey[key]; !ok {
			r.byKey[key] = name
		}
	}
	return r
}

// Register stores schema under name and returns the name to reference. A
// structurally identical schema already registered under any name is
// reused instead.
func (r *Registry) Register(name string, schema *openapi.Schema) (string, error) {
	key := Key(schema)
	if existing, ok := r.byKey[key]; ok {
		return existing, nil
	}

	if current, ok := r.schemas[name]; ok {
		return "", fmt.Errorf("%w: %q is already defined as %s", ErrSchemaNameConflict, name, describe(current))
	}

	r.schemas[name] = schema
	r.byKey[key] = name
	r.added[name] = schema
	return name, nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*openapi.Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Added returns the schemas registered since the registry was created.
func (r *Registry) Added() map[string]*openapi.Schema {
	out := make(map[string]*openapi.Schema, len(r.added))
	for name, s := range r.added {
		out[name] = s
	}
	return out
}

func describe(s *openapi.Schema) string {
	if s.Ref != "" {
		return "a reference to " + s.Ref
	}
	if len(s.Properties) > 0 {
		return fmt.Sprintf("an object with properties %s", strings.Join(s.Properties.Names(), ", "))
	}
	if t := s.Type.First(); t != "" {
		return "a " + t
	}
	return "an untyped schema"
}

// Key returns the canonical structural key of a schema: its type, format,
// ordered properties, required set, items, additional properties, $ref and
// composition. Descriptions, titles and examples do not contribute, so two
// shapes that differ only in documentation share a key.
func Key(s *openapi.Schema) string {
	var b strings.Builder
	writeKey(&b, s)
	return b.String()
}

func writeKey(b *strings.Builder, s *openapi.Schema) {
	if s == nil {
		b.WriteString("_")
		return
	}
	b.WriteByte('{')

	if s.Ref != "" {
		b.WriteString("ref=" + s.Ref + ";")
	}
	if types := s.Type.Values(); len(types) > 0 {
		b.WriteString("type=" + strings.Join(types, "|") + ";")
	}
	if s.Format != "" {
		b.WriteString("format=" + s.Format + ";")
	}
	if len(s.Enum) > 0 {
		b.WriteString(fmt.Sprintf("enum=%v;", s.Enum))
	}

	if len(s.Properties) > 0 {
		b.WriteString("props=")
		for _, prop := range s.Properties {
			b.WriteString(prop.Name + ":")
			writeKey(b, prop.Schema)
			b.WriteByte(',')
		}
		b.WriteByte(';')
	}
	if len(s.Required) > 0 {
		required := append([]string(nil), s.Required...)
		sort.Strings(required)
		b.WriteString("required=" + strings.Join(required, ",") + ";")
	}
	if s.Items != nil {
		b.WriteString("items=")
		writeKey(b, s.Items)
		b.WriteByte(';')
	}
	if s.AdditionalProperties != nil {
		b.WriteString("values=")
		writeKey(b, s.AdditionalProperties)
		b.WriteByte(';')
	}
	for _, group := range []struct {
		name    string
		schemas []*openapi.Schema
	}{{"allOf", s.AllOf}, {"oneOf", s.OneOf}, {"anyOf", s.AnyOf}} {
		if len(group.schemas) == 0 {
			continue
		}
		b.WriteString(group.name + "=")
		for _, sub := range group.schemas {
			writeKey(b, sub)
		}
		b.WriteByte(';')
	}

	b.WriteByte('}')
}
