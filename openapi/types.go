package openapi

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Version is the OpenAPI version written into newly created documents.
const Version = "3.1.0"

// Document represents the root of an OpenAPI v3.1.0 document.
//
// See: https://spec.openapis.org/oas/v3.1.0#openapi-object
type Document struct {
	OpenAPI      string                `yaml:"openapi"`
	Info         Info                  `yaml:"info"`
	Servers      []Server              `yaml:"servers,omitempty"`
	Security     []SecurityRequirement `yaml:"security,omitempty"`
	Tags         []Tag                 `yaml:"tags,omitempty"`
	Paths        Paths                 `yaml:"paths"`
	Components   *Components           `yaml:"components,omitempty"`
	ExternalDocs *ExternalDocs         `yaml:"externalDocs,omitempty"`
}

// Info provides metadata about the API.
//
// See: https://spec.openapis.org/oas/v3.1.0#info-object
type Info struct {
	Title          string   `yaml:"title"`
	Summary        string   `yaml:"summary,omitempty"`
	Description    string   `yaml:"description,omitempty"`
	TermsOfService string   `yaml:"termsOfService,omitempty"`
	Contact        *Contact `yaml:"contact,omitempty"`
	License        *License `yaml:"license,omitempty"`
	Version        string   `yaml:"version"`
}

// Contact represents contact information for the API.
//
// See: https://spec.openapis.org/oas/v3.1.0#contact-object
type Contact struct {
	Name  string `yaml:"name,omitempty"`
	URL   string `yaml:"url,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// License represents license information for the API.
//
// See: https://spec.openapis.org/oas/v3.1.0#license-object
type License struct {
	Name       string `yaml:"name"`
	Identifier string `yaml:"identifier,omitempty"`
	URL        string `yaml:"url,omitempty"`
}

// Server represents a server.
//
// See: https://spec.openapis.org/oas/v3.1.0#server-object
type Server struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description,omitempty"`
}

// Paths maps an OpenAPI path template to its PathItem. It marshals with
// keys in ascending lexical order.
//
// See: https://spec.openapis.org/oas/v3.1.0#paths-object
type Paths map[string]*PathItem

// Keys returns the path templates in ascending lexical order.
func (p Paths) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalYAML encodes the paths as a mapping sorted by path template.
// An empty Paths encodes as "{}".
func (p Paths) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if len(p) == 0 {
		node.Style = yaml.FlowStyle
		return node, nil
	}
	for _, key := range p.Keys() {
		var value yaml.Node
		if err := value.Encode(p[key]); err != nil {
			return nil, fmt.Errorf("encode path %q: %w", key, err)
		}
		node.Content = append(node.Content, StringNode(key), &value)
	}
	return node, nil
}

// PathItem describes the operations available on a single path. Operation
// fields are declared in canonical verb order so that encoding keeps it.
//
// See: https://spec.openapis.org/oas/v3.1.0#path-item-object
type PathItem struct {
	Ref         string       `yaml:"$ref,omitempty"`
	Summary     string       `yaml:"summary,omitempty"`
	Description string       `yaml:"description,omitempty"`
	Get         *Operation   `yaml:"get,omitempty"`
	Put         *Operation   `yaml:"put,omitempty"`
	Post        *Operation   `yaml:"post,omitempty"`
	Delete      *Operation   `yaml:"delete,omitempty"`
	Options     *Operation   `yaml:"options,omitempty"`
	Head        *Operation   `yaml:"head,omitempty"`
	Patch       *Operation   `yaml:"patch,omitempty"`
	Trace       *Operation   `yaml:"trace,omitempty"`
	Servers     []Server     `yaml:"servers,omitempty"`
	Parameters  []*Parameter `yaml:"parameters,omitempty"`
}

// Operation describes a single API operation on a path. Field order is the
// order in which synthesized operations are written.
//
// See: https://spec.openapis.org/oas/v3.1.0#operation-object
type Operation struct {
	Tags         []string              `yaml:"tags,omitempty"`
	Summary      string                `yaml:"summary,omitempty"`
	Description  string                `yaml:"description,omitempty"`
	OperationID  string                `yaml:"operationId,omitempty"`
	Parameters   []*Parameter          `yaml:"parameters,omitempty"`
	RequestBody  *RequestBody          `yaml:"requestBody,omitempty"`
	Responses    Responses             `yaml:"responses,omitempty"`
	Deprecated   bool                  `yaml:"deprecated,omitempty"`
	Security     []SecurityRequirement `yaml:"security,omitempty"`
	ExternalDocs *ExternalDocs         `yaml:"externalDocs,omitempty"`
}

// Parameter describes a single operation parameter. Parameters with the
// same name and location must be unique within an operation.
//
// See: https://spec.openapis.org/oas/v3.1.0#parameter-object
type Parameter struct {
	Ref         string  `yaml:"$ref,omitempty"`
	Name        string  `yaml:"name,omitempty"`
	In          string  `yaml:"in,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Required    bool    `yaml:"required,omitempty"`
	Deprecated  bool    `yaml:"deprecated,omitempty"`
	Schema      *Schema `yaml:"schema,omitempty"`
	Example     any     `yaml:"example,omitempty"`
}

// RequestBody describes a single request body.
//
// See: https://spec.openapis.org/oas/v3.1.0#request-body-object
type RequestBody struct {
	Ref         string                `yaml:"$ref,omitempty"`
	Description string                `yaml:"description,omitempty"`
	Required    bool                  `yaml:"required,omitempty"`
	Content     map[string]*MediaType `yaml:"content,omitempty"`
}

// Responses maps a status code (or "default") to a Response. It marshals
// in status order: ascending numeric codes, then "default".
//
// See: https://spec.openapis.org/oas/v3.1.0#responses-object
type Responses map[string]*Response

// MarshalYAML encodes the responses in status order.
func (r Responses) MarshalYAML() (any, error) {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	SortStatusCodes(keys)

	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range keys {
		var value yaml.Node
		if err := value.Encode(r[key]); err != nil {
			return nil, fmt.Errorf("encode response %q: %w", key, err)
		}
		node.Content = append(node.Content, StatusNode(key), &value)
	}
	return node, nil
}

// Response describes a single response from an API operation. Either Ref
// is set, or Description is (it is REQUIRED for non-reference responses).
//
// See: https://spec.openapis.org/oas/v3.1.0#response-object
// See: https://spec.openapis.org/oas/v3.1.0#reference-object
type Response struct {
	Ref         string                `yaml:"$ref,omitempty"`
	Description string                `yaml:"description,omitempty"`
	Content     map[string]*MediaType `yaml:"content,omitempty"`
}

// MediaType describes a media type with a schema.
//
// See: https://spec.openapis.org/oas/v3.1.0#media-type-object
type MediaType struct {
	Schema  *Schema `yaml:"schema,omitempty"`
	Example any     `yaml:"example,omitempty"`
}

// SchemaType represents a JSON Schema type that can be a single string
// or an array of strings (per JSON Schema Draft 2020-12, section 6.1.1).
//
// See: https://json-schema.org/draft/2020-12/json-schema-validation#section-6.1.1
type SchemaType struct {
	value []string
}

// TypeString creates a SchemaType with a single type.
func TypeString(t string) SchemaType {
	return SchemaType{value: []string{t}}
}

// TypeArray creates a SchemaType with multiple types (e.g., ["string", "null"]).
func TypeArray(types ...string) SchemaType {
	return SchemaType{value: types}
}

// Values returns the underlying type values.
func (st SchemaType) Values() []string {
	return st.value
}

// First returns the first type value, or "" when unset.
func (st SchemaType) First() string {
	if len(st.value) == 0 {
		return ""
	}
	return st.value[0]
}

// IsZero implements the yaml.v3 IsZeroer interface so that
// omitempty on YAML struct tags correctly omits an unset type field.
func (st SchemaType) IsZero() bool {
	return len(st.value) == 0
}

// MarshalYAML encodes the schema type as a YAML scalar (single type)
// or YAML sequence (multiple types).
func (st SchemaType) MarshalYAML() (any, error) {
	switch len(st.value) {
	case 0:
		return nil, nil
	case 1:
		return st.value[0], nil
	default:
		return st.value, nil
	}
}

// UnmarshalYAML decodes the schema type from either a YAML scalar or sequence.
func (st *SchemaType) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		st.value = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var arr []string
		if err := node.Decode(&arr); err != nil {
			return err
		}
		st.value = arr
		return nil
	default:
		return fmt.Errorf("unsupported YAML node kind %d for SchemaType", node.Kind)
	}
}

// Schema represents the subset of JSON Schema Draft 2020-12 used by
// synthesized operations and shared component schemas.
//
// See: https://spec.openapis.org/oas/v3.1.0#schema-object
type Schema struct {
	Ref         string     `yaml:"$ref,omitempty"`
	Type        SchemaType `yaml:"type,omitempty"`
	Format      string     `yaml:"format,omitempty"`
	Title       string     `yaml:"title,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Default     any        `yaml:"default,omitempty"`
	Example     any        `yaml:"example,omitempty"`
	Deprecated  bool       `yaml:"deprecated,omitempty"`
	ReadOnly    bool       `yaml:"readOnly,omitempty"`
	WriteOnly   bool       `yaml:"writeOnly,omitempty"`

	Minimum   *float64 `yaml:"minimum,omitempty"`
	Maximum   *float64 `yaml:"maximum,omitempty"`
	MinLength *int     `yaml:"minLength,omitempty"`
	MaxLength *int     `yaml:"maxLength,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty"`
	Enum      []any    `yaml:"enum,omitempty"`

	Items                *Schema    `yaml:"items,omitempty"`
	Properties           Properties `yaml:"properties,omitempty"`
	AdditionalProperties *Schema    `yaml:"additionalProperties,omitempty"`
	Required             []string   `yaml:"required,omitempty"`

	AllOf []*Schema `yaml:"allOf,omitempty"`
	OneOf []*Schema `yaml:"oneOf,omitempty"`
	AnyOf []*Schema `yaml:"anyOf,omitempty"`
}

// Property is a single named entry of an object schema.
type Property struct {
	Name   string
	Schema *Schema
}

// Properties is an ordered list of object schema properties. Unlike a Go
// map it keeps the order in which properties were declared, both when
// decoding an existing document and when encoding a synthesized one.
//
// See: https://json-schema.org/draft/2020-12/json-schema-core#section-10.3.2.1
type Properties []Property

// Get returns the schema of the named property, or nil.
func (p Properties) Get(name string) *Schema {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Schema
		}
	}
	return nil
}

// Names returns the property names in declaration order.
func (p Properties) Names() []string {
	names := make([]string, len(p))
	for i, prop := range p {
		names[i] = prop.Name
	}
	return names
}

// MarshalYAML encodes the properties as a mapping in declaration order.
func (p Properties) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, prop := range p {
		var value yaml.Node
		if err := value.Encode(prop.Schema); err != nil {
			return nil, fmt.Errorf("encode property %q: %w", prop.Name, err)
		}
		node.Content = append(node.Content, StringNode(prop.Name), &value)
	}
	return node, nil
}

// UnmarshalYAML decodes a mapping into properties, preserving key order.
func (p *Properties) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("properties must be a mapping, got node kind %d", node.Kind)
	}
	out := make(Properties, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		schema := &Schema{}
		if err := node.Content[i+1].Decode(schema); err != nil {
			return fmt.Errorf("property %q: %w", node.Content[i].Value, err)
		}
		out = append(out, Property{Name: node.Content[i].Value, Schema: schema})
	}
	*p = out
	return nil
}

// Components holds reusable OpenAPI objects.
//
// See: https://spec.openapis.org/oas/v3.1.0#components-object
type Components struct {
	Schemas         map[string]*Schema         `yaml:"schemas,omitempty"`
	Responses       map[string]*Response       `yaml:"responses,omitempty"`
	Parameters      map[string]*Parameter      `yaml:"parameters,omitempty"`
	RequestBodies   map[string]*RequestBody    `yaml:"requestBodies,omitempty"`
	SecuritySchemes map[string]*SecurityScheme `yaml:"securitySchemes,omitempty"`
}

// Tag adds metadata to a single tag used by Operation Objects.
//
// See: https://spec.openapis.org/oas/v3.1.0#tag-object
type Tag struct {
	Name         string        `yaml:"name"`
	Description  string        `yaml:"description,omitempty"`
	ExternalDocs *ExternalDocs `yaml:"externalDocs,omitempty"`
}

// SecurityRequirement lists required security schemes for an operation.
// Each key maps to a list of scope names; schemes without scopes (such as
// an API key carried in a cookie) map to an empty list.
//
// See: https://spec.openapis.org/oas/v3.1.0#security-requirement-object
type SecurityRequirement map[string][]string

// ExternalDocs allows referencing external documentation.
//
// See: https://spec.openapis.org/oas/v3.1.0#external-documentation-object
type ExternalDocs struct {
	Description string `yaml:"description,omitempty"`
	URL         string `yaml:"url"`
}

// SecurityScheme defines a security scheme used by API operations.
//
// See: https://spec.openapis.org/oas/v3.1.0#security-scheme-object
type SecurityScheme struct {
	Type         string `yaml:"type"`
	Description  string `yaml:"description,omitempty"`
	Name         string `yaml:"name,omitempty"`
	In           string `yaml:"in,omitempty"`
	Scheme       string `yaml:"scheme,omitempty"`
	BearerFormat string `yaml:"bearerFormat,omitempty"`
}

// StringNode returns a plain string scalar node.
func StringNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// StatusNode returns a double-quoted string scalar for a status code key,
// so that "200" stays a string rather than becoming a YAML integer.
func StatusNode(code string) *yaml.Node {
	node := StringNode(code)
	node.Style = yaml.DoubleQuotedStyle
	return node
}
