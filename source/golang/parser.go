// Package golang extracts handler types, route registrations and handler
// body observations from Go source files.
//
// A handler type declares its scope by calling a base initializer (by
// default NewBase or newBase) with a string literal, either in a
// constructor returning the type or in one of its methods:
//
//	func NewAssociationsHandler(s Store) *AssociationsHandler {
//	    return &AssociationsHandler{Base: handler.NewBase("associations"), store: s}
//	}
//
// Registrations are recognised in the shapes used by kasper/gorilla mux,
// chi, and Go 1.22 net/http patterns:
//
//	r.HandleFunc("/{associationId}", h.getAssociation).Methods(http.MethodGet)
//	r.Post("/", h.createAssociation)
//	mux.HandleFunc("DELETE /{associationId}", h.deleteAssociation)
package golang

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"net/http"
	"strconv"
	"strings"

	"github.com/vitalvas/routedoc/source"
	"golang.org/x/tools/go/ast/inspector"
)

func init() {
	source.DefaultRegistry.Register("go", []string{".go"}, func(baseInitializers []string) source.Parser {
		return NewParser(baseInitializers)
	})
}

// DefaultBaseInitializers are used when no initializer names are configured.
var DefaultBaseInitializers = []string{"NewBase", "newBase"}

// chiVerbs maps chi-style router method names to HTTP methods.
var chiVerbs = map[string]string{
	"Get":     http.MethodGet,
	"Post":    http.MethodPost,
	"Put":     http.MethodPut,
	"Patch":   http.MethodPatch,
	"Delete":  http.MethodDelete,
	"Head":    http.MethodHead,
	"Options": http.MethodOptions,
	"Trace":   http.MethodTrace,
}

// Parser parses Go handler source.
type Parser struct {
	baseInits map[string]bool
}

// NewParser creates a Go parser recognising the given base initializer
// names, or DefaultBaseInitializers when none are given.
func NewParser(baseInitializers []string) *Parser {
	if len(baseInitializers) == 0 {
		baseInitializers = DefaultBaseInitializers
	}
	p := &Parser{baseInits: make(map[string]bool, len(baseInitializers))}
	for _, name := range baseInitializers {
		p.baseInits[name] = true
	}
	return p
}

// Parse implements source.Parser.
func (p *Parser) Parse(_ context.Context, path string, content []byte) (*source.File, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}

	fp := &fileParser{
		fset:      fset,
		baseInits: p.baseInits,
		types:     make(map[string]ast.Expr),
		classes:   make(map[string]*source.Class),
	}

	insp := inspector.New([]*ast.File{file})

	insp.Preorder([]ast.Node{(*ast.TypeSpec)(nil)}, func(n ast.Node) {
		spec := n.(*ast.TypeSpec)
		fp.types[spec.Name.Name] = spec.Type
		fp.order = append(fp.order, spec.Name.Name)
	})

	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fp.funcDecl(n.(*ast.FuncDecl))
	})

	out := &source.File{Path: path, Language: "go"}
	for _, name := range fp.order {
		if class, ok := fp.classes[name]; ok {
			out.Classes = append(out.Classes, class)
		}
	}
	return out, nil
}

type fileParser struct {
	fset      *token.FileSet
	baseInits map[string]bool
	types     map[string]ast.Expr // declared type name -> type expression
	order     []string            // declared type names in source order
	classes   map[string]*source.Class
}

func (fp *fileParser) pos(p token.Pos) source.Position {
	return source.PositionOf(fp.fset.Position(p))
}

func (fp *fileParser) class(name string) *source.Class {
	class, ok := fp.classes[name]
	if !ok {
		class = &source.Class{Name: name, Methods: make(map[string]*source.Method)}
		if spec, ok := fp.types[name]; ok {
			class.Pos = fp.pos(spec.Pos())
		}
		fp.classes[name] = class
	}
	return class
}

// funcDecl attributes a function to a handler type: methods by receiver,
// constructors by a result of the type or a pointer to it.
func (fp *fileParser) funcDecl(fd *ast.FuncDecl) {
	if fd.Body == nil {
		return
	}

	var owner string
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		owner = typeName(fd.Recv.List[0].Type)
	} else if fd.Type.Results != nil {
		for _, res := range fd.Type.Results.List {
			name := typeName(res.Type)
			if _, ok := fp.types[name]; ok {
				owner = name
				break
			}
		}
	}
	if owner == "" {
		return
	}

	fp.scanScopeAndRoutes(fp.class(owner), fd.Body)

	if fd.Recv != nil {
		class := fp.class(owner)
		class.Methods[fd.Name.Name] = &source.Method{
			Name: fd.Name.Name,
			Doc:  strings.TrimSpace(fd.Doc.Text()),
			Pos:  fp.pos(fd.Pos()),
			Body: fp.observe(fd),
		}
	}
}

// typeName returns the base type name of a receiver or result type
// expression: T, *T, T[P] and *T[P] all yield "T".
func typeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return typeName(t.X)
	case *ast.IndexExpr:
		return typeName(t.X)
	case *ast.IndexListExpr:
		return typeName(t.X)
	}
	return ""
}

// calleeName returns the called function or method name.
func calleeName(call *ast.CallExpr) string {
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		return fn.Name
	case *ast.SelectorExpr:
		return fn.Sel.Name
	}
	return ""
}

func stringLit(expr ast.Expr) (string, bool) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return s, true
}

func (fp *fileParser) scanScopeAndRoutes(class *source.Class, body *ast.BlockStmt) {
	consumed := make(map[*ast.CallExpr]bool)

	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || consumed[call] {
			return true
		}

		name := calleeName(call)

		if fp.baseInits[name] && len(call.Args) > 0 && class.Scope == "" {
			if scope, ok := stringLit(call.Args[0]); ok {
				class.Scope = scope
				class.ScopePos = fp.pos(call.Pos())
			}
			return true
		}

		switch {
		case name == "Methods":
			// r.HandleFunc(path, h).Methods(verbs...)
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			inner, ok := sel.X.(*ast.CallExpr)
			if !ok || !isHandleCall(inner) {
				return true
			}
			consumed[inner] = true
			path, ok := stringLit(inner.Args[0])
			if !ok {
				return true
			}
			handler := handlerRef(inner.Args[len(inner.Args)-1])
			if handler == "" {
				return true
			}
			for _, arg := range call.Args {
				if verb := methodArg(arg); verb != "" {
					class.Registrations = append(class.Registrations, source.Registration{
						Verb:    verb,
						Path:    path,
						Handler: handler,
						Pos:     fp.pos(inner.Pos()),
					})
				}
			}

		case isHandleCall(call):
			// mux.HandleFunc("GET /path", h) (Go 1.22 patterns)
			pattern, ok := stringLit(call.Args[0])
			if !ok {
				return true
			}
			verb, path, found := strings.Cut(pattern, " ")
			if !found || !isHTTPMethod(verb) {
				return true
			}
			if handler := handlerRef(call.Args[len(call.Args)-1]); handler != "" {
				class.Registrations = append(class.Registrations, source.Registration{
					Verb:    verb,
					Path:    strings.TrimSpace(path),
					Handler: handler,
					Pos:     fp.pos(call.Pos()),
				})
			}

		case chiVerbs[name] != "" && len(call.Args) >= 2:
			// r.Get(path, h)
			path, ok := stringLit(call.Args[0])
			if !ok || !strings.HasPrefix(path, "/") {
				return true
			}
			if handler := handlerRef(call.Args[len(call.Args)-1]); handler != "" {
				class.Registrations = append(class.Registrations, source.Registration{
					Verb:    chiVerbs[name],
					Path:    path,
					Handler: handler,
					Pos:     fp.pos(call.Pos()),
				})
			}

		case (name == "Method" || name == "MethodFunc") && len(call.Args) >= 3:
			// chi: r.Method(http.MethodGet, path, h)
			verb := methodArg(call.Args[0])
			path, ok := stringLit(call.Args[1])
			if verb == "" || !ok {
				return true
			}
			if handler := handlerRef(call.Args[len(call.Args)-1]); handler != "" {
				class.Registrations = append(class.Registrations, source.Registration{
					Verb:    verb,
					Path:    path,
					Handler: handler,
					Pos:     fp.pos(call.Pos()),
				})
			}
		}

		return true
	})
}

func isHandleCall(call *ast.CallExpr) bool {
	name := calleeName(call)
	return (name == "HandleFunc" || name == "Handle") && len(call.Args) >= 2
}

func isHTTPMethod(s string) bool {
	switch s {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// methodArg reads an HTTP method from a string literal or an
// http.MethodXxx constant.
func methodArg(expr ast.Expr) string {
	if s, ok := stringLit(expr); ok {
		s = strings.ToUpper(s)
		if isHTTPMethod(s) {
			return s
		}
		return ""
	}
	if sel, ok := expr.(*ast.SelectorExpr); ok && strings.HasPrefix(sel.Sel.Name, "Method") {
		verb := strings.ToUpper(strings.TrimPrefix(sel.Sel.Name, "Method"))
		if isHTTPMethod(verb) {
			return verb
		}
	}
	return ""
}

// handlerRef returns the handler name referenced by a registration
// argument, looking through single-level wrappers such as
// http.HandlerFunc(h.get) or middleware(h.get).
func handlerRef(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.SelectorExpr:
		return e.Sel.Name
	case *ast.Ident:
		return e.Name
	case *ast.CallExpr:
		if len(e.Args) > 0 {
			return handlerRef(e.Args[len(e.Args)-1])
		}
	case *ast.ParenExpr:
		return handlerRef(e.X)
	}
	return ""
}
