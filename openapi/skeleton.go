package openapi

// ResponseTemplate describes a shared response registered under
// components.responses.
type ResponseTemplate struct {
	Name        string
	Description string
}

// ErrorBody is the payload described by seeded response templates.
type ErrorBody struct {
	Code    string            `json:"code" openapi:"description=Machine readable error code,example=not_found"`
	Message string            `json:"message" openapi:"description=Human readable error message"`
	Details map[string]string `json:"details,omitempty" openapi:"description=Per-field error details"`
}

// Skeleton holds the fixed parts of a newly created document.
type Skeleton struct {
	Info   Info
	Server Server

	// SchemeName is the name of the cookie security scheme, e.g. "cookieAuth".
	SchemeName string
	// CookieName is the cookie carrying the credential, e.g. "session".
	CookieName string

	// Templates, when non-empty, are seeded into components.responses, each
	// returning an ErrorBody.
	Templates []ResponseTemplate
}

// Build returns a new document: info, one server, a root security
// requirement on the cookie scheme, a single tag, empty paths, and the
// scheme declaration. The info and server values are copied.
//
// See: https://spec.openapis.org/oas/v3.1.0#openapi-object
func (s Skeleton) Build(tag string) *Document {
	info := s.Info
	if s.Info.Contact != nil {
		contact := *s.Info.Contact
		info.Contact = &contact
	}

	doc := &Document{
		OpenAPI:  Version,
		Info:     info,
		Servers:  []Server{s.Server},
		Security: []SecurityRequirement{{s.SchemeName: []string{}}},
		Paths:    Paths{},
		Components: &Components{
			SecuritySchemes: map[string]*SecurityScheme{
				s.SchemeName: {
					Type: "apiKey",
					In:   "cookie",
					Name: s.CookieName,
				},
			},
		},
	}
	if tag != "" {
		doc.Tags = []Tag{{Name: tag}}
	}

	if len(s.Templates) > 0 {
		gen := NewSchemaGenerator()
		ref := gen.Generate(ErrorBody{})
		doc.Components.Schemas = gen.Schemas()
		doc.Components.Responses = make(map[string]*Response, len(s.Templates))
		for _, tpl := range s.Templates {
			doc.Components.Responses[tpl.Name] = &Response{
				Description: tpl.Description,
				Content: map[string]*MediaType{
					"application/json": {Schema: &Schema{Ref: ref.Ref}},
				},
			}
		}
	}

	return doc
}

// AddOperation stores op under path and method, creating the PathItem
// when needed.
func (d *Document) AddOperation(path, method string, op *Operation) {
	if d.Paths == nil {
		d.Paths = Paths{}
	}
	item, ok := d.Paths[path]
	if !ok {
		item = &PathItem{}
		d.Paths[path] = item
	}
	assignOperation(item, method, op)
}

// TagNames returns the names of the document-level tags in order.
func (d *Document) TagNames() []string {
	names := make([]string, len(d.Tags))
	for i, tag := range d.Tags {
		names[i] = tag.Name
	}
	return names
}
