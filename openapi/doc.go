// Package openapi holds the OpenAPI v3.1.0 object model used to read,
// validate and write API description documents.
//
// The model is YAML-first: every object carries yaml struct tags, and the
// containers whose order matters in a hand-maintained document keep it.
// Schema properties are an ordered list (Properties), Paths encode in
// ascending lexical order, and Responses encode in status order with the
// success codes first.
//
// See: https://spec.openapis.org/oas/v3.1.0
// See: https://json-schema.org/draft/2020-12/json-schema-core
//
// # Route Templates
//
// ParsePath converts route templates as written in handler source into
// OpenAPI path templates. Both Express-style and mux-style variables are
// recognised:
//
//	path, vars, _ := openapi.ParsePath("/:associationId/members/{customerId:int}")
//	// path == "/{associationId}/members/{customerId}"
//
// JoinPath mounts the result under a scope prefix, and PathParameter turns
// each variable into a required path Parameter. Identifier-like names
// ("associationId", "user_id") become integers; mux macros such as "uuid"
// or "date" pick the type and format.
//
// # Skeleton
//
// A Skeleton describes the fixed content of a newly created document: info,
// one server, a root security requirement on an API-key scheme carried in
// a cookie, the owning tag, empty paths, and the scheme declaration.
//
//	doc := openapi.Skeleton{
//	    Info:       openapi.Info{Title: "Example API", Version: "1.0.0"},
//	    Server:     openapi.Server{URL: "/api"},
//	    SchemeName: "cookieAuth",
//	    CookieName: "session",
//	}.Build("Associations")
//
// # Ordering
//
// The ordering helpers (VerbPosition, StatusPosition, LexicalPosition,
// TagPosition) compute where a new key goes in an existing mapping or list
// without moving anything already there.
package openapi
