package shape

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/routedoc/openapi"
	"github.com/vitalvas/routedoc/source"
)

func field(name string, kind source.ShapeKind) source.Field {
	return source.Field{Name: name, Shape: source.Scalar(kind)}
}

func object(fields ...source.Field) *source.Shape {
	return &source.Shape{Kind: source.KindObject, Fields: fields}
}

func wideObject(n int) *source.Shape {
	fields := make([]source.Field, n)
	for i := range fields {
		fields[i] = field(fmt.Sprintf("field%d", i), source.KindString)
	}
	return object(fields...)
}

func TestKey(t *testing.T) {
	base := &openapi.Schema{
		Type: openapi.TypeString("object"),
		Properties: openapi.Properties{
			{Name: "id", Schema: &openapi.Schema{Type: openapi.TypeString("integer")}},
			{Name: "name", Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
		},
		Required: []string{"name", "id"},
	}

	t.Run("documentation does not contribute", func(t *testing.T) {
		documented := &openapi.Schema{
			Type:        openapi.TypeString("object"),
			Description: "An association.",
			Title:       "Association",
			Properties: openapi.Properties{
				{Name: "id", Schema: &openapi.Schema{Type: openapi.TypeString("integer"), Example: 7}},
				{Name: "name", Schema: &openapi.Schema{Type: openapi.TypeString("string"), Description: "Display name."}},
			},
			Required: []string{"id", "name"},
		}
		assert.Equal(t, Key(base), Key(documented))
	})

	t.Run("structure contributes", func(t *testing.T) {
		tests := []struct {
			name   string
			schema *openapi.Schema
		}{
			{"property type", &openapi.Schema{Type: openapi.TypeString("object"), Properties: openapi.Properties{
				{Name: "id", Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
				{Name: "name", Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
			}, Required: []string{"id", "name"}}},
			{"property order", &openapi.Schema{Type: openapi.TypeString("object"), Properties: openapi.Properties{
				{Name: "name", Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
				{Name: "id", Schema: &openapi.Schema{Type: openapi.TypeString("integer")}},
			}, Required: []string{"id", "name"}}},
			{"required set", &openapi.Schema{Type: openapi.TypeString("object"), Properties: base.Properties, Required: []string{"id"}}},
			{"format", &openapi.Schema{Type: openapi.TypeString("object"), Format: "x", Properties: base.Properties, Required: base.Required}},
			{"array", &openapi.Schema{Type: openapi.TypeString("array"), Items: base}},
			{"reference", &openapi.Schema{Ref: openapi.SchemaRef("Association")}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.NotEqual(t, Key(base), Key(tt.schema))
			})
		}
	})

	t.Run("nil schema", func(t *testing.T) {
		assert.Equal(t, "_", Key(nil))
	})
}

func TestRegistry(t *testing.T) {
	member := &openapi.Schema{
		Type:       openapi.TypeString("object"),
		Properties: openapi.Properties{{Name: "id", Schema: &openapi.Schema{Type: openapi.TypeString("integer")}}},
	}
	address := &openapi.Schema{
		Type:       openapi.TypeString("object"),
		Properties: openapi.Properties{{Name: "street", Schema: &openapi.Schema{Type: openapi.TypeString("string")}}},
	}

	t.Run("reuses identical structure under any name", func(t *testing.T) {
		r := NewRegistry(map[string]*openapi.Schema{"Member": member})

		name, err := r.Register("Customer", &openapi.Schema{
			Type:        openapi.TypeString("object"),
			Description: "A customer.",
			Properties:  openapi.Properties{{Name: "id", Schema: &openapi.Schema{Type: openapi.TypeString("integer")}}},
		})
		require.NoError(t, err)
		assert.Equal(t, "Member", name)
		assert.Empty(t, r.Added())
	})

	t.Run("registers new names", func(t *testing.T) {
		r := NewRegistry(nil)

		name, err := r.Register("Address", address)
		require.NoError(t, err)
		assert.Equal(t, "Address", name)

		again, err := r.Register("Address", address)
		require.NoError(t, err)
		assert.Equal(t, "Address", again)

		got, ok := r.Lookup("Address")
		require.True(t, ok)
		assert.Same(t, address, got)
		assert.Equal(t, map[string]*openapi.Schema{"Address": address}, r.Added())
	})

	t.Run("name conflict", func(t *testing.T) {
		r := NewRegistry(map[string]*openapi.Schema{"Member": member})

		_, err := r.Register("Member", address)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchemaNameConflict)
		assert.Contains(t, err.Error(), "an object with properties id")
	})

	t.Run("existing map is not modified", func(t *testing.T) {
		existing := map[string]*openapi.Schema{"Member": member}
		r := NewRegistry(existing)
		_, err := r.Register("Address", address)
		require.NoError(t, err)
		assert.Len(t, existing, 1)
	})

	t.Run("first existing name wins for duplicates", func(t *testing.T) {
		r := NewRegistry(map[string]*openapi.Schema{"Member": member, "Customer": member})
		name, err := r.Register("Person", member)
		require.NoError(t, err)
		assert.Equal(t, "Customer", name)
	})
}

func TestPlan(t *testing.T) {
	t.Run("scalars", func(t *testing.T) {
		p := NewPlanner(NewRegistry(nil), DefaultThresholds())

		s, err := p.Plan(&source.Shape{Kind: source.KindString, Format: "date-time"}, "X")
		require.NoError(t, err)
		assert.Equal(t, "string", s.Type.First())
		assert.Equal(t, "date-time", s.Format)

		s, err = p.Plan(&source.Shape{}, "X")
		require.NoError(t, err)
		assert.True(t, s.Type.IsZero())

		s, err = p.Plan(nil, "X")
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("small object stays inline in rank order", func(t *testing.T) {
		p := NewPlanner(NewRegistry(nil), DefaultThresholds())

		shape := object(
			source.Field{Name: "createdAt", Shape: &source.Shape{Kind: source.KindString, Format: "date-time"}},
			source.Field{Name: "tags", Shape: &source.Shape{Kind: source.KindArray, Items: source.Scalar(source.KindString)}},
			source.Field{Name: "name", Shape: source.Scalar(source.KindString), Required: true},
			source.Field{Name: "ownerId", Shape: source.Scalar(source.KindInteger), Required: true},
			source.Field{Name: "id", Shape: source.Scalar(source.KindInteger)},
		)

		s, err := p.Plan(shape, "Association")
		require.NoError(t, err)
		assert.Empty(t, s.Ref)
		assert.Equal(t, "object", s.Type.First())
		assert.Equal(t, []string{"ownerId", "id", "name", "tags", "createdAt"}, s.Properties.Names())
		assert.Equal(t, []string{"ownerId", "name"}, s.Required)
		assert.Equal(t, "string", s.Properties.Get("tags").Items.Type.First())
		assert.Empty(t, p.Registry.Added())
	})

	t.Run("many leaves are promoted", func(t *testing.T) {
		p := NewPlanner(NewRegistry(nil), DefaultThresholds())

		s, err := p.Plan(wideObject(13), "CreateAssociationRequest")
		require.NoError(t, err)
		assert.Equal(t, "#/components/schemas/CreateAssociationRequest", s.Ref)

		added := p.Registry.Added()
		require.Contains(t, added, "CreateAssociationRequest")
		assert.Len(t, added["CreateAssociationRequest"].Properties, 13)
	})

	t.Run("twelve leaves stay inline", func(t *testing.T) {
		p := NewPlanner(NewRegistry(nil), DefaultThresholds())
		s, err := p.Plan(wideObject(12), "Association")
		require.NoError(t, err)
		assert.Empty(t, s.Ref)
	})

	t.Run("wide nested object promotes the parent", func(t *testing.T) {
		p := NewPlanner(NewRegistry(nil), Thresholds{MaxInlineLeaves: 100, MaxNestedFields: 8})

		nested := wideObject(8)
		nested.TypeName = "Address"
		s, err := p.Plan(object(field("id", source.KindInteger), source.Field{Name: "address", Shape: nested}), "Customer")
		require.NoError(t, err)
		assert.Equal(t, "#/components/schemas/Customer", s.Ref)

		added := p.Registry.Added()
		assert.Len(t, added, 1)
		assert.Len(t, added["Customer"].Properties.Get("address").Properties, 8)
	})

	t.Run("declared type name wins", func(t *testing.T) {
		p := NewPlanner(NewRegistry(nil), Thresholds{MaxInlineLeaves: 1, MaxNestedFields: 8})

		shape := object(field("id", source.KindInteger), field("name", source.KindString))
		shape.TypeName = "Member"

		s, err := p.Plan(&source.Shape{Kind: source.KindArray, Items: shape}, "Association")
		require.NoError(t, err)
		assert.Equal(t, "array", s.Type.First())
		assert.Equal(t, "#/components/schemas/Member", s.Items.Ref)
	})

	t.Run("identical shapes share a component", func(t *testing.T) {
		existing := &openapi.Schema{
			Type: openapi.TypeString("object"),
			Properties: openapi.Properties{
				{Name: "id", Schema: &openapi.Schema{Type: openapi.TypeString("integer")}},
				{Name: "name", Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
			},
		}
		p := NewPlanner(NewRegistry(map[string]*openapi.Schema{"Member": existing}), Thresholds{MaxInlineLeaves: 1, MaxNestedFields: 8})

		s, err := p.Plan(object(field("name", source.KindString), field("id", source.KindInteger)), "Customer")
		require.NoError(t, err)
		assert.Equal(t, "#/components/schemas/Member", s.Ref)
		assert.Empty(t, p.Registry.Added())
	})

	t.Run("name conflict", func(t *testing.T) {
		existing := &openapi.Schema{Type: openapi.TypeString("string")}
		p := NewPlanner(NewRegistry(map[string]*openapi.Schema{"Customer": existing}), Thresholds{MaxInlineLeaves: 1, MaxNestedFields: 8})

		_, err := p.Plan(object(field("id", source.KindInteger), field("name", source.KindString)), "Customer")
		assert.ErrorIs(t, err, ErrSchemaNameConflict)
	})

	t.Run("maps", func(t *testing.T) {
		p := NewPlanner(NewRegistry(nil), DefaultThresholds())
		s, err := p.Plan(&source.Shape{Kind: source.KindObject, Values: source.Scalar(source.KindInteger)}, "Counts")
		require.NoError(t, err)
		assert.Equal(t, "object", s.Type.First())
		require.NotNil(t, s.AdditionalProperties)
		assert.Equal(t, "integer", s.AdditionalProperties.Type.First())
	})
}

func TestLeaves(t *testing.T) {
	tests := []struct {
		name     string
		shape    *source.Shape
		expected int
	}{
		{"nil", nil, 0},
		{"scalar", source.Scalar(source.KindString), 1},
		{"empty object", object(), 1},
		{"flat object", object(field("a", source.KindString), field("b", source.KindString)), 2},
		{"nested object", object(field("a", source.KindString), source.Field{Name: "b", Shape: object(field("c", source.KindString), field("d", source.KindString))}), 3},
		{"array of objects", &source.Shape{Kind: source.KindArray, Items: object(field("a", source.KindString), field("b", source.KindString))}, 2},
		{"untyped array", &source.Shape{Kind: source.KindArray}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Leaves(tt.shape))
		})
	}
}

func TestMaxNestedFields(t *testing.T) {
	assert.Equal(t, 0, MaxNestedFields(wideObject(20)), "top level does not count")
	assert.Equal(t, 3, MaxNestedFields(object(source.Field{Name: "child", Shape: wideObject(3)})))
	assert.Equal(t, 0, MaxNestedFields(&source.Shape{Kind: source.KindArray, Items: wideObject(5)}), "array items sit at the array's depth")
	assert.Equal(t, 4, MaxNestedFields(object(source.Field{Name: "list", Shape: &source.Shape{Kind: source.KindArray, Items: wideObject(4)}})))
}

func TestRankOf(t *testing.T) {
	tests := []struct {
		field    source.Field
		expected Rank
	}{
		{field("id", source.KindInteger), RankIdentifier},
		{field("ownerId", source.KindInteger), RankIdentifier},
		{field("owner_id", source.KindInteger), RankIdentifier},
		{field("name", source.KindString), RankDescriptive},
		{field("identity", source.KindString), RankDescriptive},
		{source.Field{Name: "tags", Shape: &source.Shape{Kind: source.KindArray}}, RankNested},
		{source.Field{Name: "owner", Shape: object()}, RankNested},
		{field("createdAt", source.KindString), RankMetadata},
		{field("deleted_at", source.KindString), RankMetadata},
		{source.Field{Name: "birthday", Shape: &source.Shape{Kind: source.KindString, Format: "date"}}, RankMetadata},
		{source.Field{Name: "metadata", Shape: object()}, RankMetadata},
		{field("version", source.KindInteger), RankMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.field.Name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RankOf(tt.field))
		})
	}
}
