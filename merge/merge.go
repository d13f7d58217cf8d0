// Package merge inserts a synthesized operation into an OpenAPI YAML
// document without disturbing unrelated content.
//
// Merges work on the yaml.v3 node tree, so key order, comments and
// anything the typed model does not know about survive untouched. Existing
// content is never removed or rewritten: a merge only adds paths,
// operations, operation fields, parameters, responses, tags, request
// properties and component schemas that are missing.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vitalvas/routedoc/openapi"
)

// State says what a merge found at the operation address.
type State int

const (
	// Absent: there was no document; it was created from the skeleton.
	Absent State = iota
	// PathMissing: the path was added.
	PathMissing
	// VerbMissing: the operation was added under an existing path.
	VerbMissing
	// VerbPresent: missing fields were filled into an existing operation.
	VerbPresent
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case PathMissing:
		return "path missing"
	case VerbMissing:
		return "verb missing"
	case VerbPresent:
		return "verb present"
	default:
		return "unknown"
	}
}

// rootOrder is the field order of the OpenAPI Object.
var rootOrder = []string{"openapi", "info", "jsonSchemaDialect", "servers", "security", "tags", "paths", "webhooks", "components", "externalDocs"}

// operationOrder is the field order of a synthesized operation.
var operationOrder = []string{"tags", "summary", "description", "operationId", "parameters", "requestBody", "responses", "deprecated", "security", "externalDocs"}

// componentsOrder is the field order of the Components Object.
var componentsOrder = []string{"schemas", "responses", "parameters", "examples", "requestBodies", "headers", "securitySchemes", "links", "callbacks", "pathItems"}

// Change is one operation to merge.
type Change struct {
	Path      string
	Verb      string
	Tag       string
	Operation *openapi.Operation
	// Schemas are component schemas the operation references that are new
	// to the document.
	Schemas map[string]*openapi.Schema
}

// Result reports what a merge did.
type Result struct {
	State   State
	Changed bool
}

// Merger merges changes into documents.
type Merger struct {
	// Skeleton builds documents that do not exist yet.
	Skeleton openapi.Skeleton
}

// Templates returns the shared response templates a change merged into doc
// can reference: the document's own, or those the skeleton seeds when the
// document is absent.
func (m *Merger) Templates(doc *Document) map[string]bool {
	if doc.Exists() {
		return doc.ResponseTemplates()
	}
	out := make(map[string]bool, len(m.Skeleton.Templates))
	for _, tpl := range m.Skeleton.Templates {
		out[tpl.Name] = true
	}
	return out
}

// Merge applies c to doc in memory.
func (m *Merger) Merge(doc *Document, c Change) (Result, error) {
	if !doc.Exists() {
		return m.create(doc, c)
	}

	st := &mergeState{}
	top := doc.top()

	paths := valueOf(top, "paths")
	if paths == nil {
		paths = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		insertAt(top, orderedPosition(keysOf(top), "paths", rootOrder), openapi.StringNode("paths"), paths)
		st.changed = true
	}

	opNode, err := encode(c.Operation)
	if err != nil {
		return Result{}, fmt.Errorf("encode operation: %w", err)
	}

	verb := strings.ToLower(c.Verb)
	item := valueOf(paths, c.Path)

	var state State
	switch {
	case item == nil:
		state = PathMissing
		itemNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		itemNode.Content = []*yaml.Node{openapi.StringNode(verb), opNode}
		insertAt(paths, openapi.LexicalPosition(keysOf(paths), c.Path), openapi.StringNode(c.Path), itemNode)
		st.changed = true

	case item.Kind != yaml.MappingNode:
		return Result{}, corrupt("path %s is not a mapping", c.Path)

	case valueOf(item, verb) == nil:
		state = VerbMissing
		insertAt(item, openapi.VerbPosition(keysOf(item), verb), openapi.StringNode(verb), opNode)
		st.changed = true

	default:
		state = VerbPresent
		existing := valueOf(item, verb)
		if existing.Kind != yaml.MappingNode {
			return Result{}, corrupt("operation %s %s is not a mapping", c.Verb, c.Path)
		}
		st.fillOperation(existing, opNode)
	}

	if err := st.ensureTag(top, c.Tag); err != nil {
		return Result{}, err
	}
	if err := st.addSchemas(top, c.Schemas); err != nil {
		return Result{}, err
	}

	return Result{State: state, Changed: st.changed}, nil
}

func (m *Merger) create(doc *Document, c Change) (Result, error) {
	spec := m.Skeleton.Build(c.Tag)
	spec.AddOperation(c.Path, c.Verb, c.Operation)
	if len(c.Schemas) > 0 {
		if spec.Components.Schemas == nil {
			spec.Components.Schemas = make(map[string]*openapi.Schema, len(c.Schemas))
		}
		for name, s := range c.Schemas {
			spec.Components.Schemas[name] = s
		}
	}

	content, err := encode(spec)
	if err != nil {
		return Result{}, fmt.Errorf("encode skeleton: %w", err)
	}

	doc.root = &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{content}}
	doc.typed = spec
	return Result{State: Absent, Changed: true}, nil
}

type mergeState struct {
	changed bool
}

// fillOperation adds what is missing from dst compared to src.
func (st *mergeState) fillOperation(dst, src *yaml.Node) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, value := src.Content[i].Value, src.Content[i+1]

		current := valueOf(dst, key)
		if current == nil {
			insertAt(dst, orderedPosition(keysOf(dst), key, operationOrder), openapi.StringNode(key), value)
			st.changed = true
			continue
		}

		switch key {
		case "tags":
			st.fillTags(current, value)
		case "parameters":
			st.fillParameters(current, value)
		case "responses":
			st.fillResponses(current, value)
		case "requestBody":
			st.fillRequestBody(current, value)
		}
	}
}

func (st *mergeState) fillTags(dst, src *yaml.Node) {
	if dst.Kind != yaml.SequenceNode {
		return
	}
	have := make(map[string]bool)
	for _, n := range dst.Content {
		have[n.Value] = true
	}
	for _, n := range src.Content {
		if !have[n.Value] {
			dst.Content = append(dst.Content, n)
			have[n.Value] = true
			st.changed = true
		}
	}
}

// fillParameters appends parameters whose name and location are not yet
// declared. Referenced parameters are left alone.
func (st *mergeState) fillParameters(dst, src *yaml.Node) {
	if dst.Kind != yaml.SequenceNode {
		return
	}
	paramKey := func(n *yaml.Node) string {
		name, in := valueOf(n, "name"), valueOf(n, "in")
		if name == nil || in == nil {
			return ""
		}
		return in.Value + "\x00" + name.Value
	}

	have := make(map[string]bool)
	for _, n := range dst.Content {
		if k := paramKey(n); k != "" {
			have[k] = true
		}
	}
	for _, n := range src.Content {
		k := paramKey(n)
		if k == "" || have[k] {
			continue
		}
		dst.Content = append(dst.Content, n)
		dst.Style &^= yaml.FlowStyle
		have[k] = true
		st.changed = true
	}
}

// fillResponses adds missing status codes at their ascending position.
func (st *mergeState) fillResponses(dst, src *yaml.Node) {
	if dst.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(src.Content); i += 2 {
		code := src.Content[i].Value
		if valueOf(dst, code) != nil {
			continue
		}
		insertAt(dst, openapi.StatusPosition(keysOf(dst), code), src.Content[i], src.Content[i+1])
		st.changed = true
	}
}

// fillRequestBody adds properties missing from an inline JSON object
// request schema.
func (st *mergeState) fillRequestBody(dst, src *yaml.Node) {
	dstSchema := jsonSchema(dst)
	srcSchema := jsonSchema(src)
	if dstSchema == nil || srcSchema == nil || valueOf(dstSchema, "$ref") != nil {
		return
	}

	dstProps := valueOf(dstSchema, "properties")
	srcProps := valueOf(srcSchema, "properties")
	if dstProps == nil || srcProps == nil || dstProps.Kind != yaml.MappingNode {
		return
	}

	added := make(map[string]bool)
	for i := 0; i+1 < len(srcProps.Content); i += 2 {
		name := srcProps.Content[i].Value
		if valueOf(dstProps, name) != nil {
			continue
		}
		dstProps.Content = append(dstProps.Content, srcProps.Content[i], srcProps.Content[i+1])
		added[name] = true
		st.changed = true
	}

	st.fillRequired(dstSchema, valueOf(srcSchema, "required"), added)
}

// fillRequired marks the newly added properties that src requires as
// required in schema. Existing entries are kept.
func (st *mergeState) fillRequired(schema, src *yaml.Node, added map[string]bool) {
	if src == nil || src.Kind != yaml.SequenceNode || len(added) == 0 {
		return
	}

	dst := valueOf(schema, "required")
	if dst != nil && dst.Kind != yaml.SequenceNode {
		return
	}

	have := make(map[string]bool)
	if dst != nil {
		for _, n := range dst.Content {
			have[n.Value] = true
		}
	}

	for _, n := range src.Content {
		if !added[n.Value] || have[n.Value] {
			continue
		}
		if dst == nil {
			dst = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			insertAt(schema, indexAfter(schema, "properties"), openapi.StringNode("required"), dst)
		}
		dst.Content = append(dst.Content, openapi.StringNode(n.Value))
		dst.Style &^= yaml.FlowStyle
		have[n.Value] = true
		st.changed = true
	}
}

// indexAfter returns the pair position following key in mapping m, or the
// end of m when key is absent.
func indexAfter(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i/2 + 1
		}
	}
	return len(m.Content) / 2
}

func jsonSchema(body *yaml.Node) *yaml.Node {
	media := valueOf(valueOf(body, "content"), "application/json")
	return valueOf(media, "schema")
}

// ensureTag adds tag to the document tag list when missing: appended while
// the list has at most one entry, otherwise at its lexical position.
func (st *mergeState) ensureTag(top *yaml.Node, tag string) error {
	if tag == "" {
		return nil
	}

	entry, err := encode(openapi.Tag{Name: tag})
	if err != nil {
		return fmt.Errorf("encode tag: %w", err)
	}

	tags := valueOf(top, "tags")
	if tags == nil {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{entry}}
		insertAt(top, orderedPosition(keysOf(top), "tags", rootOrder), openapi.StringNode("tags"), seq)
		st.changed = true
		return nil
	}
	if tags.Kind != yaml.SequenceNode {
		return corrupt("tags is not a sequence")
	}

	names := make([]string, len(tags.Content))
	for i, n := range tags.Content {
		if name := valueOf(n, "name"); name != nil {
			names[i] = name.Value
		}
	}

	pos, missing := openapi.TagPosition(names, tag)
	if !missing {
		return nil
	}

	content := make([]*yaml.Node, 0, len(tags.Content)+1)
	content = append(content, tags.Content[:pos]...)
	content = append(content, entry)
	content = append(content, tags.Content[pos:]...)
	tags.Content = content
	tags.Style &^= yaml.FlowStyle
	st.changed = true
	return nil
}

// addSchemas inserts new component schemas at their lexical position.
// Names already present are left untouched.
func (st *mergeState) addSchemas(top *yaml.Node, schemas map[string]*openapi.Schema) error {
	if len(schemas) == 0 {
		return nil
	}

	components := valueOf(top, "components")
	if components == nil {
		components = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		insertAt(top, orderedPosition(keysOf(top), "components", rootOrder), openapi.StringNode("components"), components)
		st.changed = true
	}
	if components.Kind != yaml.MappingNode {
		return corrupt("components is not a mapping")
	}

	registry := valueOf(components, "schemas")
	if registry == nil {
		registry = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		insertAt(components, orderedPosition(keysOf(components), "schemas", componentsOrder), openapi.StringNode("schemas"), registry)
		st.changed = true
	}
	if registry.Kind != yaml.MappingNode {
		return corrupt("components.schemas is not a mapping")
	}

	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if valueOf(registry, name) != nil {
			continue
		}
		node, err := encode(schemas[name])
		if err != nil {
			return fmt.Errorf("encode schema %s: %w", name, err)
		}
		insertAt(registry, openapi.LexicalPosition(keysOf(registry), name), openapi.StringNode(name), node)
		st.changed = true
	}
	return nil
}
