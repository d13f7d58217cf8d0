package openapi

import (
	"reflect"
	"strings"
)

// SchemaGenerator converts the Go types the tool itself defines, such as
// the error body of the seeded response templates, to JSON Schema objects.
// Named struct types are collected into a component schemas map for $ref
// reuse. Only scalars, string-keyed maps and structs are supported.
//
// See: https://spec.openapis.org/oas/v3.1.0#schema-object
// See: https://spec.openapis.org/oas/v3.1.0#components-object (schemas)
type SchemaGenerator struct {
	schemas map[string]*Schema
	visited map[reflect.Type]bool
}

// NewSchemaGenerator creates a new schema generator.
func NewSchemaGenerator() *SchemaGenerator {
	return &SchemaGenerator{
		schemas: make(map[string]*Schema),
		visited: make(map[reflect.Type]bool),
	}
}

// Schemas returns the collected component schemas.
func (g *SchemaGenerator) Schemas() map[string]*Schema {
	return g.schemas
}

// Generate produces a JSON Schema for the given Go value. Named struct
// types are stored in the generator's component schemas and referenced
// via $ref.
//
// See: https://json-schema.org/draft/2020-12/json-schema-core#section-8.2.3 ($ref)
func (g *SchemaGenerator) Generate(v any) *Schema {
	if v == nil {
		return nil
	}
	return g.generateType(reflect.TypeOf(v))
}

func (g *SchemaGenerator) generateType(t reflect.Type) *Schema {
	if t.Kind() == reflect.Struct && t.Name() != "" {
		name := t.Name()
		if !g.visited[t] {
			g.visited[t] = true
			g.schemas[name] = g.generateStructSchema(t)
		}
		return &Schema{Ref: SchemaRef(name)}
	}

	switch t.Kind() {
	case reflect.Bool:
		return &Schema{Type: TypeString("boolean")}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: TypeString("integer")}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: TypeString("number")}
	case reflect.String:
		return &Schema{Type: TypeString("string")}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil
		}
		return &Schema{Type: TypeString("object"), AdditionalProperties: g.generateType(t.Elem())}
	}

	return nil
}

// generateStructSchema builds an object schema from exported struct fields,
// keeping declaration order. Fields of unsupported kinds are skipped.
//
// See: https://json-schema.org/draft/2020-12/json-schema-validation#section-6.5.3 (required)
func (g *SchemaGenerator) generateStructSchema(t reflect.Type) *Schema {
	schema := &Schema{Type: TypeString("object")}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, omitempty := parseJSONTag(field.Tag.Get("json"))
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}

		fieldSchema := g.generateType(field.Type)
		if fieldSchema == nil {
			continue
		}
		applyOpenAPITag(fieldSchema, field.Tag.Get("openapi"))

		schema.Properties = append(schema.Properties, Property{Name: name, Schema: fieldSchema})
		if !omitempty {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

func parseJSONTag(tag string) (string, bool) {
	if tag == "" {
		return "", false
	}
	name, rest, _ := strings.Cut(tag, ",")
	return name, strings.Contains(rest, "omitempty") || strings.Contains(rest, "omitzero")
}

// applyOpenAPITag parses the `openapi` struct tag ("description=...,
// example=...") and applies it to the schema. Examples stay strings.
func applyOpenAPITag(schema *Schema, tag string) {
	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(part, "=")

		switch strings.TrimSpace(key) {
		case "description":
			schema.Description = strings.TrimSpace(value)
		case "example":
			schema.Example = strings.TrimSpace(value)
		}
	}
}

// SchemaRef returns the $ref URI of a component schema.
func SchemaRef(name string) string {
	return "#/components/schemas/" + name
}

// ResponseRef returns the $ref URI of a component response.
func ResponseRef(name string) string {
	return "#/components/responses/" + name
}
