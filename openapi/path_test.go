package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		path     string
		vars     []PathVar
		hasError bool
	}{
		{"static", "/associations", "/associations", nil, false},
		{"express token", "/:associationId", "/{associationId}", []PathVar{{Name: "associationId"}}, false},
		{"express tokens", "/:associationId/members/:customerId", "/{associationId}/members/{customerId}",
			[]PathVar{{Name: "associationId"}, {Name: "customerId"}}, false},
		{"optional token", "/:id?", "/{id}", []PathVar{{Name: "id"}}, false},
		{"digit constraint", `/:id(\\d+)`, "/{id}", []PathVar{{Name: "id", Macro: "int"}}, false},
		{"other constraint", "/:slug([a-z-]+)", "/{slug}", []PathVar{{Name: "slug"}}, false},
		{"mux variable", "/{id}", "/{id}", []PathVar{{Name: "id"}}, false},
		{"mux macro", "/{id:uuid}/tags/{tag:slug}", "/{id}/tags/{tag}",
			[]PathVar{{Name: "id", Macro: "uuid"}, {Name: "tag", Macro: "slug"}}, false},
		{"nested braces", "/{code:[a-z]{3}}", "/{code}", []PathVar{{Name: "code", Macro: "[a-z]{3}"}}, false},
		{"remainder wildcard", "/files/{path...}", "/files/{path}", []PathVar{{Name: "path"}}, false},
		{"end anchor", "/items/{$}", "/items/", nil, false},
		{"colon inside segment", "/time/12:30", "/time/12:30", nil, false},
		{"unbalanced brace", "/{id", "", nil, true},
		{"empty variable", "/{}", "", nil, true},
		{"unnamed wildcard", "/{...}", "", nil, true},
		{"empty token", "/:/x", "", nil, true},
		{"unbalanced parenthesis", "/:id(\\d+", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, vars, err := ParsePath(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.vars, vars)
		})
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		scope    string
		route    string
		expected string
	}{
		{"associations", "/", "/associations"},
		{"associations", "", "/associations"},
		{"associations", "/{id}", "/associations/{id}"},
		{"/api/associations/", "/{id}/", "/api/associations/{id}"},
		{"", "/health", "/health"},
		{"", "/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.scope+" "+tt.route, func(t *testing.T) {
			assert.Equal(t, tt.expected, JoinPath(tt.scope, tt.route))
		})
	}
}

func TestPathParameter(t *testing.T) {
	tests := []struct {
		v      PathVar
		typ    string
		format string
	}{
		{PathVar{Name: "associationId"}, "integer", ""},
		{PathVar{Name: "id"}, "integer", ""},
		{PathVar{Name: "user_id"}, "integer", ""},
		{PathVar{Name: "slug"}, "string", ""},
		{PathVar{Name: "id", Macro: "uuid"}, "string", "uuid"},
		{PathVar{Name: "day", Macro: "date"}, "string", "date"},
		{PathVar{Name: "ratio", Macro: "float"}, "number", ""},
		{PathVar{Name: "code", Macro: "[a-z]+"}, "string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.v.Name+":"+tt.v.Macro, func(t *testing.T) {
			p := PathParameter(tt.v)
			assert.Equal(t, tt.v.Name, p.Name)
			assert.Equal(t, "path", p.In)
			assert.True(t, p.Required)
			assert.Equal(t, tt.typ, p.Schema.Type.First())
			assert.Equal(t, tt.format, p.Schema.Format)
		})
	}
}

func TestIsIdentifierName(t *testing.T) {
	for _, name := range []string{"id", "ID", "associationId", "customerID", "owner_id"} {
		assert.True(t, IsIdentifierName(name), name)
	}
	for _, name := range []string{"identity", "idea", "name", "paid"} {
		assert.False(t, IsIdentifierName(name), name)
	}
}
