// Package source defines the language-neutral model of handler source
// files: handler-bearing classes with their scope declaration, route
// registrations and handler methods, plus what each handler body
// observably does (payload reads, query reads, outcome signals and the
// response it writes).
//
// Language frontends register themselves by file extension in
// DefaultRegistry from their init functions; import them for side
// effects:
//
//	import (
//	    _ "github.com/vitalvas/routedoc/source/golang"
//	    _ "github.com/vitalvas/routedoc/source/typescript"
//	)
//
// A Scanner expands doublestar glob patterns under a repository root and
// parses every matching file.
package source
