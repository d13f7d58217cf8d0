package merge

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vitalvas/routedoc/openapi"
)

// ErrDocumentCorrupt is returned for an existing document that cannot be
// merged into safely.
var ErrDocumentCorrupt = errors.New("document corrupt")

// Document is a loaded OpenAPI document: the YAML node tree that merges
// mutate, plus a typed snapshot of the content as loaded.
type Document struct {
	root  *yaml.Node // DocumentNode; nil when absent
	typed *openapi.Document
}

// Load parses document bytes. Empty or whitespace-only input is an absent
// document. Anything that is not a YAML mapping with a 3.x openapi version
// and a paths mapping is ErrDocumentCorrupt.
func Load(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Document{}, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, corrupt("invalid YAML: %v", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return nil, corrupt("root is not a mapping")
	}
	top := root.Content[0]

	version := valueOf(top, "openapi")
	if version == nil {
		return nil, corrupt("missing openapi version")
	}
	if version.Kind != yaml.ScalarNode || !strings.HasPrefix(version.Value, "3.") {
		return nil, corrupt("unsupported openapi version %q", version.Value)
	}

	if paths := valueOf(top, "paths"); paths != nil && paths.Kind != yaml.MappingNode {
		return nil, corrupt("paths is not a mapping")
	}

	typed := &openapi.Document{}
	if err := top.Decode(typed); err != nil {
		return nil, corrupt("%v", err)
	}

	return &Document{root: &root, typed: typed}, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDocumentCorrupt, fmt.Sprintf(format, args...))
}

// Exists reports whether the document was present when loaded or has
// since been created.
func (d *Document) Exists() bool {
	return d.root != nil
}

// Spec returns the typed snapshot of the document as loaded, or nil for
// an absent document.
func (d *Document) Spec() *openapi.Document {
	return d.typed
}

// ResponseTemplates returns the names declared under components.responses.
func (d *Document) ResponseTemplates() map[string]bool {
	out := make(map[string]bool)
	if d.typed == nil || d.typed.Components == nil {
		return out
	}
	for name := range d.typed.Components.Responses {
		out[name] = true
	}
	return out
}

// Schemas returns the component schemas of the document.
func (d *Document) Schemas() map[string]*openapi.Schema {
	if d.typed == nil || d.typed.Components == nil {
		return nil
	}
	return d.typed.Components.Schemas
}

// Bytes serializes the document with two-space indentation.
func (d *Document) Bytes() ([]byte, error) {
	if d.root == nil {
		return nil, errors.New("document is absent")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) top() *yaml.Node {
	return d.root.Content[0]
}

// keysOf returns the keys of a mapping node in order.
func keysOf(m *yaml.Node) []string {
	keys := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	return keys
}

// valueOf returns the value of key in mapping m, or nil.
func valueOf(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// insertAt inserts key/value as the pos-th entry of mapping m.
func insertAt(m *yaml.Node, pos int, key, value *yaml.Node) {
	idx := pos * 2
	content := make([]*yaml.Node, 0, len(m.Content)+2)
	content = append(content, m.Content[:idx]...)
	content = append(content, key, value)
	content = append(content, m.Content[idx:]...)
	m.Content = content
	// A flow-style "{}" placeholder becomes a block mapping once it has
	// entries.
	m.Style &^= yaml.FlowStyle
}

// orderedPosition returns where key goes among keys so that keys named in
// order keep that relative order: immediately before the first existing key
// that comes after it in order, else right after the last one that comes
// before it, else at the end. Keys not named in order are skipped over, so
// an extension key stays attached to the key preceding it.
func orderedPosition(keys []string, key string, order []string) int {
	rank := make(map[string]int, len(order))
	for i, k := range order {
		rank[k] = i
	}
	want, ok := rank[key]
	if !ok {
		return len(keys)
	}

	lastBefore := -1
	for i, k := range keys {
		r, ok := rank[k]
		if !ok {
			continue
		}
		if r > want {
			return i
		}
		lastBefore = i
	}
	if lastBefore >= 0 {
		return lastBefore + 1
	}
	return len(keys)
}

// encode converts a typed value to its YAML node.
func encode(v any) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return &n, nil
}
