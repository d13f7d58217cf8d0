package merge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/routedoc/openapi"
)

const associationsDoc = `# Maintained by hand and by routedoc.
openapi: 3.1.0
info:
  title: Example API
  version: 1.0.0
tags:
  - name: Associations
  - name: Health
paths:
  /associations:
    get:
      tags:
        - Associations
      summary: List associations
      responses:
        "200":
          description: Successful response.
        "404":
          $ref: '#/components/responses/NotFound'
  # health is served by the gateway
  /health:
    get:
      tags:
        - Health
      summary: Health check
      x-internal: true
      responses:
        "200":
          description: OK
components:
  responses:
    BadRequest:
      description: Bad request.
    NotFound:
      description: Not found.
`

func testSkeleton() openapi.Skeleton {
	return openapi.Skeleton{
		Info:       openapi.Info{Title: "Example API", Version: "1.0.0"},
		Server:     openapi.Server{URL: "/api"},
		SchemeName: "cookieAuth",
		CookieName: "session",
		Templates: []openapi.ResponseTemplate{
			{Name: "BadRequest", Description: "Required input is missing or malformed."},
			{Name: "NotFound", Description: "The requested record does not exist."},
		},
	}
}

func listChange() Change {
	return Change{
		Path: "/associations",
		Verb: "GET",
		Tag:  "Associations",
		Operation: &openapi.Operation{
			Tags:        []string{"Associations"},
			Summary:     "Get associations",
			Description: "Returns the list of associations.",
			Responses: openapi.Responses{
				"200": {Description: "Successful response."},
			},
			Security: []openapi.SecurityRequirement{{"cookieAuth": []string{}}},
		},
	}
}

func memberChange() Change {
	return Change{
		Path: "/associations/{associationId}/members/{memberId}",
		Verb: "DELETE",
		Tag:  "Associations",
		Operation: &openapi.Operation{
			Tags:    []string{"Associations"},
			Summary: "Remove association member",
			Parameters: []*openapi.Parameter{
				{Name: "associationId", In: "path", Required: true, Schema: &openapi.Schema{Type: openapi.TypeString("integer")}},
				{Name: "memberId", In: "path", Required: true, Schema: &openapi.Schema{Type: openapi.TypeString("integer")}},
			},
			Responses: openapi.Responses{
				"204": {Description: "The request succeeded with no content."},
				"404": {Ref: openapi.ResponseRef("NotFound")},
			},
		},
	}
}

func load(t *testing.T, data string) *Document {
	t.Helper()
	doc, err := Load([]byte(data))
	require.NoError(t, err)
	return doc
}

func reload(t *testing.T, doc *Document) *Document {
	t.Helper()
	data, err := doc.Bytes()
	require.NoError(t, err)
	return load(t, string(data))
}

func TestLoad(t *testing.T) {
	t.Run("empty input is absent", func(t *testing.T) {
		for _, input := range []string{"", "  \n\t\n"} {
			doc, err := Load([]byte(input))
			require.NoError(t, err)
			assert.False(t, doc.Exists())
			assert.Nil(t, doc.Spec())
			assert.Empty(t, doc.ResponseTemplates())
			assert.Nil(t, doc.Schemas())

			_, err = doc.Bytes()
			assert.Error(t, err)
		}
	})

	t.Run("existing document", func(t *testing.T) {
		doc := load(t, associationsDoc)
		assert.True(t, doc.Exists())
		assert.Equal(t, []string{"/associations", "/health"}, doc.Spec().Paths.Keys())
		assert.Equal(t, map[string]bool{"BadRequest": true, "NotFound": true}, doc.ResponseTemplates())
	})

	t.Run("corrupt documents", func(t *testing.T) {
		tests := []struct {
			name  string
			input string
		}{
			{"invalid yaml", "openapi: [3.1.0\n"},
			{"sequence root", "- a\n- b\n"},
			{"scalar root", "hello\n"},
			{"missing version", "info:\n  title: x\n  version: v1\npaths: {}\n"},
			{"swagger version", "openapi: \"2.0\"\npaths: {}\n"},
			{"non scalar version", "openapi:\n  - 3.1.0\npaths: {}\n"},
			{"paths is a sequence", "openapi: 3.1.0\npaths:\n  - /a\n"},
			{"info is a scalar", "openapi: 3.1.0\ninfo: nope\npaths: {}\n"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Load([]byte(tt.input))
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrDocumentCorrupt)
			})
		}
	})
}

func TestMergeAbsent(t *testing.T) {
	m := &Merger{Skeleton: testSkeleton()}
	doc := load(t, "")

	assert.Equal(t, map[string]bool{"BadRequest": true, "NotFound": true}, m.Templates(doc))

	res, err := m.Merge(doc, listChange())
	require.NoError(t, err)
	assert.Equal(t, Absent, res.State)
	assert.True(t, res.Changed)
	assert.True(t, doc.Exists())

	out := reload(t, doc)
	spec := out.Spec()
	assert.Equal(t, openapi.Version, spec.OpenAPI)
	assert.Equal(t, "Example API", spec.Info.Title)
	require.Len(t, spec.Servers, 1)
	assert.Equal(t, "/api", spec.Servers[0].URL)
	assert.Equal(t, []openapi.SecurityRequirement{{"cookieAuth": []string{}}}, spec.Security)
	assert.Equal(t, []string{"Associations"}, spec.TagNames())

	require.Contains(t, spec.Paths, "/associations")
	get := spec.Paths["/associations"].Get
	require.NotNil(t, get)
	assert.Equal(t, "Get associations", get.Summary)
	assert.Equal(t, []string{"Associations"}, get.Tags)

	require.NotNil(t, spec.Components)
	assert.Equal(t, "apiKey", spec.Components.SecuritySchemes["cookieAuth"].Type)
	assert.Equal(t, "cookie", spec.Components.SecuritySchemes["cookieAuth"].In)
	assert.Equal(t, "session", spec.Components.SecuritySchemes["cookieAuth"].Name)
	assert.Contains(t, spec.Components.Responses, "BadRequest")
	assert.Contains(t, spec.Components.Responses, "NotFound")
	assert.Contains(t, spec.Components.Schemas, "ErrorBody")

	assert.Equal(t,
		[]string{"openapi", "info", "servers", "security", "tags", "paths", "components"},
		keysOf(out.top()))
}

func TestMergeIdempotent(t *testing.T) {
	m := &Merger{Skeleton: testSkeleton()}

	t.Run("created document", func(t *testing.T) {
		doc := load(t, "")
		_, err := m.Merge(doc, listChange())
		require.NoError(t, err)
		first, err := doc.Bytes()
		require.NoError(t, err)

		again := load(t, string(first))
		res, err := m.Merge(again, listChange())
		require.NoError(t, err)
		assert.Equal(t, VerbPresent, res.State)
		assert.False(t, res.Changed)

		second, err := again.Bytes()
		require.NoError(t, err)
		assert.Equal(t, string(first), string(second))
	})

	t.Run("existing document", func(t *testing.T) {
		doc := load(t, associationsDoc)
		_, err := m.Merge(doc, memberChange())
		require.NoError(t, err)
		first, err := doc.Bytes()
		require.NoError(t, err)

		again := load(t, string(first))
		res, err := m.Merge(again, memberChange())
		require.NoError(t, err)
		assert.False(t, res.Changed)

		second, err := again.Bytes()
		require.NoError(t, err)
		assert.Equal(t, string(first), string(second))
	})
}

func TestMergeVerbMissing(t *testing.T) {
	m := &Merger{Skeleton: testSkeleton()}
	doc := load(t, associationsDoc)

	change := Change{
		Path: "/associations",
		Verb: "POST",
		Tag:  "Associations",
		Operation: &openapi.Operation{
			Tags:    []string{"Associations"},
			Summary: "Create association",
			Responses: openapi.Responses{
				"201": {Description: "The record was created."},
				"400": {Ref: openapi.ResponseRef("BadRequest")},
			},
		},
	}

	res, err := m.Merge(doc, change)
	require.NoError(t, err)
	assert.Equal(t, VerbMissing, res.State)
	assert.True(t, res.Changed)

	item := valueOf(valueOf(doc.top(), "paths"), "/associations")
	assert.Equal(t, []string{"get", "post"}, keysOf(item))

	out := reload(t, doc)
	get := out.Spec().Paths["/associations"].Get
	require.NotNil(t, get)
	assert.Equal(t, "List associations", get.Summary, "existing operation is untouched")
	assert.Equal(t, []string{"200", "404"}, keysOf(valueOf(valueOf(valueOf(valueOf(out.top(), "paths"), "/associations"), "get"), "responses")))

	post := out.Spec().Paths["/associations"].Post
	require.NotNil(t, post)
	assert.Equal(t, "#/components/responses/BadRequest", post.Responses["400"].Ref)

	data, err := doc.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Maintained by hand and by routedoc.")
	assert.Contains(t, string(data), "# health is served by the gateway")
	assert.Contains(t, string(data), "x-internal: true")
}

func TestMergePathMissing(t *testing.T) {
	m := &Merger{Skeleton: testSkeleton()}
	doc := load(t, associationsDoc)

	res, err := m.Merge(doc, memberChange())
	require.NoError(t, err)
	assert.Equal(t, PathMissing, res.State)
	assert.True(t, res.Changed)

	paths := valueOf(doc.top(), "paths")
	assert.Equal(t,
		[]string{"/associations", "/associations/{associationId}/members/{memberId}", "/health"},
		keysOf(paths))

	out := reload(t, doc)
	del := out.Spec().Paths["/associations/{associationId}/members/{memberId}"].Delete
	require.NotNil(t, del)
	require.Len(t, del.Parameters, 2)
	for _, p := range del.Parameters {
		assert.Equal(t, "path", p.In)
		assert.True(t, p.Required)
		assert.Equal(t, "integer", p.Schema.Type.First())
	}
	assert.Equal(t,
		[]string{"204", "404"},
		keysOf(valueOf(valueOf(valueOf(valueOf(out.top(), "paths"), "/associations/{associationId}/members/{memberId}"), "delete"), "responses")))
}

func TestMergeVerbPresent(t *testing.T) {
	m := &Merger{Skeleton: testSkeleton()}

	t.Run("fills missing fields without overwriting", func(t *testing.T) {
		doc := load(t, associationsDoc)

		change := listChange()
		change.Operation.Parameters = []*openapi.Parameter{
			{Name: "page", In: "query", Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
		}
		change.Operation.Responses["400"] = &openapi.Response{Ref: openapi.ResponseRef("BadRequest")}

		res, err := m.Merge(doc, change)
		require.NoError(t, err)
		assert.Equal(t, VerbPresent, res.State)
		assert.True(t, res.Changed)

		get := valueOf(valueOf(valueOf(doc.top(), "paths"), "/associations"), "get")
		assert.Equal(t,
			[]string{"tags", "summary", "description", "parameters", "responses", "security"},
			keysOf(get))
		assert.Equal(t, "List associations", valueOf(get, "summary").Value)
		assert.Equal(t, []string{"200", "400", "404"}, keysOf(valueOf(get, "responses")))
	})

	t.Run("parameters are not duplicated", func(t *testing.T) {
		doc := load(t, associationsDoc)
		change := memberChange()
		_, err := m.Merge(doc, change)
		require.NoError(t, err)

		extra := memberChange()
		extra.Operation.Parameters = append(extra.Operation.Parameters,
			&openapi.Parameter{Name: "force", In: "query", Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
			&openapi.Parameter{Name: "memberId", In: "query", Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
		)
		res, err := m.Merge(doc, extra)
		require.NoError(t, err)
		assert.True(t, res.Changed)

		out := reload(t, doc)
		del := out.Spec().Paths["/associations/{associationId}/members/{memberId}"].Delete
		var names []string
		for _, p := range del.Parameters {
			names = append(names, p.In+":"+p.Name)
		}
		assert.Equal(t, []string{"path:associationId", "path:memberId", "query:force", "query:memberId"}, names)
	})

	t.Run("adds missing request properties", func(t *testing.T) {
		doc := load(t, `openapi: 3.1.0
info:
  title: Example API
  version: 1.0.0
paths:
  /associations:
    post:
      tags: [Associations]
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              properties:
                name:
                  type: string
                  description: Display name.
      responses:
        "201":
          description: Created.
`)
		change := Change{
			Path: "/associations",
			Verb: "POST",
			Tag:  "Associations",
			Operation: &openapi.Operation{
				Tags: []string{"Associations"},
				RequestBody: &openapi.RequestBody{
					Required: true,
					Content: map[string]*openapi.MediaType{
						"application/json": {Schema: &openapi.Schema{
							Type: openapi.TypeString("object"),
							Properties: openapi.Properties{
								{Name: "name", Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
								{Name: "isPublic", Schema: &openapi.Schema{Type: openapi.TypeString("boolean")}},
							},
						}},
					},
				},
				Responses: openapi.Responses{"201": {Description: "The record was created."}},
			},
		}

		_, err := m.Merge(doc, change)
		require.NoError(t, err)

		out := reload(t, doc)
		schema := out.Spec().Paths["/associations"].Post.RequestBody.Content["application/json"].Schema
		assert.Equal(t, []string{"name", "isPublic"}, schema.Properties.Names())
		assert.Equal(t, "Display name.", schema.Properties.Get("name").Description)
		assert.Equal(t, "Created.", out.Spec().Paths["/associations"].Post.Responses["201"].Description)
	})

	t.Run("marks added properties required", func(t *testing.T) {
		const existing = `openapi: 3.1.0
info:
  title: Example API
  version: 1.0.0
paths:
  /associations:
    post:
      tags: [Associations]
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                name:
                  type: string
%s      responses:
        "201":
          description: Created.
`
		change := Change{
			Path: "/associations",
			Verb: "POST",
			Tag:  "Associations",
			Operation: &openapi.Operation{
				Tags: []string{"Associations"},
				RequestBody: &openapi.RequestBody{
					Content: map[string]*openapi.MediaType{
						"application/json": {Schema: &openapi.Schema{
							Type: openapi.TypeString("object"),
							Properties: openapi.Properties{
								{Name: "name", Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
								{Name: "ownerId", Schema: &openapi.Schema{Type: openapi.TypeString("integer")}},
								{Name: "isPublic", Schema: &openapi.Schema{Type: openapi.TypeString("boolean")}},
							},
							Required: []string{"name", "ownerId"},
						}},
					},
				},
				Responses: openapi.Responses{"201": {Description: "The record was created."}},
			},
		}

		tests := []struct {
			name     string
			required string
			expected []string
		}{
			{"appends to the existing list", "              required:\n                - name\n", []string{"name", "ownerId"}},
			{"keeps entries the source no longer requires", "              required: [legacy]\n", []string{"legacy", "ownerId"}},
			{"creates the list", "", []string{"ownerId"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				doc := load(t, fmt.Sprintf(existing, tt.required))
				res, err := m.Merge(doc, change)
				require.NoError(t, err)
				assert.True(t, res.Changed)

				out := reload(t, doc)
				schema := out.Spec().Paths["/associations"].Post.RequestBody.Content["application/json"].Schema
				assert.Equal(t, []string{"name", "ownerId", "isPublic"}, schema.Properties.Names())
				assert.Equal(t, tt.expected, schema.Required)

				res, err = m.Merge(out, change)
				require.NoError(t, err)
				assert.False(t, res.Changed)
			})
		}
	})

	t.Run("operation that is not a mapping", func(t *testing.T) {
		doc := load(t, "openapi: 3.1.0\npaths:\n  /associations:\n    get: ~\n")
		_, err := m.Merge(doc, listChange())
		assert.ErrorIs(t, err, ErrDocumentCorrupt)
	})
}

func TestMergeTags(t *testing.T) {
	m := &Merger{Skeleton: testSkeleton()}

	tests := []struct {
		name     string
		tags     string
		add      string
		expected []string
	}{
		{"no tag list", "", "Associations", []string{"Associations"}},
		{"present", "tags:\n  - name: Associations\n", "Associations", []string{"Associations"}},
		{"single tag appends", "tags:\n  - name: Zeta\n", "Alpha", []string{"Zeta", "Alpha"}},
		{"sorted insert", "tags:\n  - name: Associations\n  - name: Members\n", "Billing", []string{"Associations", "Billing", "Members"}},
		{"sorted insert at end", "tags:\n  - name: Associations\n  - name: Billing\n", "Members", []string{"Associations", "Billing", "Members"}},
		{"empty flow list", "tags: []\n", "Associations", []string{"Associations"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := load(t, "openapi: 3.1.0\ninfo:\n  title: x\n  version: v1\n"+tt.tags+"paths: {}\n")
			change := listChange()
			change.Tag = tt.add

			_, err := m.Merge(doc, change)
			require.NoError(t, err)

			out := reload(t, doc)
			assert.Equal(t, tt.expected, out.Spec().TagNames())
			assert.Equal(t, []string{"openapi", "info", "tags", "paths"}, keysOf(out.top()))
		})
	}

	t.Run("tags that are not a sequence", func(t *testing.T) {
		_, err := Load([]byte("openapi: 3.1.0\ntags:\n  name: x\npaths: {}\n"))
		assert.ErrorIs(t, err, ErrDocumentCorrupt)
	})
}

func TestMergeSchemas(t *testing.T) {
	m := &Merger{Skeleton: testSkeleton()}

	member := &openapi.Schema{
		Type: openapi.TypeString("object"),
		Properties: openapi.Properties{
			{Name: "id", Schema: &openapi.Schema{Type: openapi.TypeString("integer")}},
		},
	}

	t.Run("creates schemas before responses", func(t *testing.T) {
		doc := load(t, associationsDoc)
		change := memberChange()
		change.Schemas = map[string]*openapi.Schema{"Member": member, "Association": member}

		_, err := m.Merge(doc, change)
		require.NoError(t, err)

		components := valueOf(doc.top(), "components")
		assert.Equal(t, []string{"schemas", "responses"}, keysOf(components))
		assert.Equal(t, []string{"Association", "Member"}, keysOf(valueOf(components, "schemas")))
	})

	t.Run("existing names are untouched", func(t *testing.T) {
		doc := load(t, `openapi: 3.1.0
paths: {}
components:
  schemas:
    Address:
      type: object
    Zone:
      type: string
`)
		change := listChange()
		change.Schemas = map[string]*openapi.Schema{"Member": member, "Zone": member}

		_, err := m.Merge(doc, change)
		require.NoError(t, err)

		out := reload(t, doc)
		assert.Equal(t, []string{"Address", "Member", "Zone"}, keysOf(valueOf(valueOf(out.top(), "components"), "schemas")))
		assert.Equal(t, "string", out.Schemas()["Zone"].Type.First())
		assert.Equal(t, []string{"openapi", "tags", "paths", "components"}, keysOf(out.top()))
	})

	t.Run("components that are not a mapping", func(t *testing.T) {
		_, err := Load([]byte("openapi: 3.1.0\npaths: {}\ncomponents: []\n"))
		assert.ErrorIs(t, err, ErrDocumentCorrupt)
	})
}

func TestMergeEmptyPaths(t *testing.T) {
	m := &Merger{Skeleton: testSkeleton()}

	t.Run("flow placeholder becomes block", func(t *testing.T) {
		doc := load(t, "openapi: 3.1.0\ninfo:\n  title: x\n  version: v1\npaths: {}\n")
		_, err := m.Merge(doc, listChange())
		require.NoError(t, err)

		data, err := doc.Bytes()
		require.NoError(t, err)
		assert.NotContains(t, string(data), "{}")
		assert.Contains(t, string(data), "paths:\n  /associations:\n    get:\n")
	})

	t.Run("missing paths key", func(t *testing.T) {
		doc := load(t, "openapi: 3.1.0\ninfo:\n  title: x\n  version: v1\ncomponents:\n  responses:\n    NotFound:\n      description: Not found.\n")
		res, err := m.Merge(doc, listChange())
		require.NoError(t, err)
		assert.Equal(t, PathMissing, res.State)
		assert.Equal(t, []string{"openapi", "info", "tags", "paths", "components"}, keysOf(doc.top()))
	})
}

func TestOrderedPosition(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		key      string
		expected int
	}{
		{"empty", nil, "paths", 0},
		{"after predecessor", []string{"openapi", "info"}, "paths", 2},
		{"before successor", []string{"openapi", "components"}, "paths", 1},
		{"skips unknown keys", []string{"openapi", "x-logo", "components"}, "tags", 2},
		{"unknown keys after predecessor", []string{"openapi", "info", "x-logo"}, "paths", 2},
		{"between known keys", []string{"openapi", "x-logo", "info", "x-extra", "components"}, "paths", 4},
		{"unknown key goes last", []string{"openapi", "info"}, "x-extra", 2},
		{"only successors", []string{"components"}, "openapi", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, orderedPosition(tt.keys, tt.key, rootOrder))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "path missing", PathMissing.String())
	assert.Equal(t, "verb missing", VerbMissing.String())
	assert.Equal(t, "verb present", VerbPresent.String())
	assert.Equal(t, "unknown", State(42).String())
}
