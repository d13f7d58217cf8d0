// Package shape plans how payload and response shapes are described: inline
// in the operation, or promoted to a named component schema that
// structurally identical shapes share.
//
// A shape is promoted when its flattened leaf count exceeds
// Thresholds.MaxInlineLeaves, or when any object nested inside it has at
// least Thresholds.MaxNestedFields fields.
package shape

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vitalvas/routedoc/openapi"
	"github.com/vitalvas/routedoc/source"
)

// Thresholds bound inline shapes.
type Thresholds struct {
	MaxInlineLeaves int `yaml:"maxInlineLeaves" validate:"min=1"`
	MaxNestedFields int `yaml:"maxNestedFields" validate:"min=1"`
}

// DefaultThresholds returns 12 leaves (about 25 YAML lines at two lines per
// leaf) and 8 nested fields.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxInlineLeaves: 12, MaxNestedFields: 8}
}

// Planner converts shapes to schemas, registering promoted ones.
type Planner struct {
	Registry   *Registry
	Thresholds Thresholds
}

// NewPlanner creates a planner over registry.
func NewPlanner(registry *Registry, thresholds Thresholds) *Planner {
	return &Planner{Registry: registry, Thresholds: thresholds}
}

// Plan returns the schema describing shape. Promoted objects are
// registered under their declared type name, or name when they have none,
// and returned as a $ref.
func (p *Planner) Plan(shape *source.Shape, name string) (*openapi.Schema, error) {
	if shape == nil {
		return nil, nil
	}

	switch shape.Kind {
	case source.KindArray:
		items, err := p.Plan(shape.Items, name)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = &openapi.Schema{}
		}
		return &openapi.Schema{Type: openapi.TypeString("array"), Items: items}, nil

	case source.KindObject:
		return p.object(shape, name)

	case source.KindUnknown:
		return &openapi.Schema{}, nil
	}

	return &openapi.Schema{Type: openapi.TypeString(shape.Kind.String()), Format: shape.Format}, nil
}

func (p *Planner) object(shape *source.Shape, name string) (*openapi.Schema, error) {
	if shape.Values != nil {
		values, err := p.Plan(shape.Values, name)
		if err != nil {
			return nil, err
		}
		return &openapi.Schema{Type: openapi.TypeString("object"), AdditionalProperties: values}, nil
	}

	if shape.TypeName != "" {
		name = shape.TypeName
	}

	schema := &openapi.Schema{Type: openapi.TypeString("object")}
	for _, f := range Order(shape.Fields) {
		child, err := p.Plan(f.Shape, name+openapi.PascalCase(f.Name))
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", f.Name, err)
		}
		if child == nil {
			child = &openapi.Schema{}
		}
		schema.Properties = append(schema.Properties, openapi.Property{Name: f.Name, Schema: child})
		if f.Required {
			schema.Required = append(schema.Required, f.Name)
		}
	}

	if !p.promote(shape) {
		return schema, nil
	}

	registered, err := p.Registry.Register(name, schema)
	if err != nil {
		return nil, err
	}
	return &openapi.Schema{Ref: openapi.SchemaRef(registered)}, nil
}

func (p *Planner) promote(shape *source.Shape) bool {
	return Leaves(shape) > p.Thresholds.MaxInlineLeaves ||
		MaxNestedFields(shape) >= p.Thresholds.MaxNestedFields
}

// Leaves counts the scalar leaves of a shape after flattening nested
// objects, arrays and maps. An empty object counts as one leaf.
func Leaves(shape *source.Shape) int {
	if shape == nil {
		return 0
	}
	switch shape.Kind {
	case source.KindArray:
		return max(Leaves(shape.Items), 1)
	case source.KindObject:
		if shape.Values != nil {
			return max(Leaves(shape.Values), 1)
		}
		n := 0
		for _, f := range shape.Fields {
			n += Leaves(f.Shape)
		}
		return max(n, 1)
	}
	return 1
}

// MaxNestedFields returns the largest field count of any object nested in
// shape below the top level.
func MaxNestedFields(shape *source.Shape) int {
	return maxNested(shape, 0)
}

func maxNested(shape *source.Shape, depth int) int {
	if shape == nil {
		return 0
	}
	best := 0
	switch shape.Kind {
	case source.KindArray:
		// Array items sit at the depth of the array itself.
		return maxNested(shape.Items, depth)
	case source.KindObject:
		if shape.Values != nil {
			return maxNested(shape.Values, depth+1)
		}
		if depth > 0 {
			best = len(shape.Fields)
		}
		for _, f := range shape.Fields {
			best = max(best, maxNested(f.Shape, depth+1))
		}
	}
	return best
}

// Rank is the ordering class of a property.
type Rank int

const (
	RankIdentifier Rank = iota
	RankDescriptive
	RankNested
	RankMetadata
)

// metadataNames are property names ranked with timestamps.
var metadataNames = map[string]bool{
	"metadata":  true,
	"meta":      true,
	"createdby": true,
	"updatedby": true,
	"deletedby": true,
	"version":   true,
	"revision":  true,
	"etag":      true,
}

// RankOf classifies a property: identifiers first, then descriptive
// attributes, nested structures, and metadata or timestamps last.
func RankOf(f source.Field) Rank {
	lower := strings.ToLower(f.Name)
	switch {
	case openapi.IsIdentifierName(f.Name):
		return RankIdentifier
	case metadataNames[lower],
		strings.HasSuffix(f.Name, "At"), strings.HasSuffix(lower, "_at"),
		f.Shape != nil && (f.Shape.Format == "date-time" || f.Shape.Format == "date"):
		return RankMetadata
	case f.Shape != nil && (f.Shape.Kind == source.KindObject || f.Shape.Kind == source.KindArray):
		return RankNested
	}
	return RankDescriptive
}

// Order returns fields sorted by rank, keeping source order within a rank.
func Order(fields []source.Field) []source.Field {
	out := append([]source.Field(nil), fields...)
	sort.SliceStable(out, func(i, j int) bool {
		return RankOf(out[i]) < RankOf(out[j])
	})
	return out
}
