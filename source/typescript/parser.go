// Package typescript extracts controller classes, route registrations and
// handler body observations from TypeScript and JavaScript sources using
// tree-sitter.
//
// A controller declares its scope by passing a string literal to super()
// (or to a configured base initializer) in its constructor and registers
// its handlers on a router:
//
//	export class AssociationsController extends BaseController {
//	  constructor() {
//	    super("associations");
//	    this.router.get("/:associationId", this.getAssociation);
//	  }
//	}
package typescript

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/vitalvas/routedoc/source"
)

func init() {
	source.DefaultRegistry.Register("typescript",
		[]string{".ts", ".tsx", ".mts", ".cts"},
		func(baseInitializers []string) source.Parser {
			return NewParser(baseInitializers)
		})
	source.DefaultRegistry.Register("javascript",
		[]string{".js", ".jsx", ".mjs", ".cjs"},
		func(baseInitializers []string) source.Parser {
			return NewParser(baseInitializers)
		})
}

// routerVerbs are the Express router methods that register a route.
var routerVerbs = map[string]string{
	"get":     "GET",
	"post":    "POST",
	"put":     "PUT",
	"patch":   "PATCH",
	"delete":  "DELETE",
	"head":    "HEAD",
	"options": "OPTIONS",
}

// Parser parses TypeScript and JavaScript controller source.
type Parser struct {
	baseInits map[string]bool
}

// NewParser creates a parser. super() always declares a scope; the given
// base initializer names are recognised in addition.
func NewParser(baseInitializers []string) *Parser {
	p := &Parser{baseInits: map[string]bool{"super": true}}
	for _, name := range baseInitializers {
		p.baseInits[name] = true
	}
	return p
}

// Parse implements source.Parser.
func (p *Parser) Parse(ctx context.Context, path string, content []byte) (*source.File, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(language(path))

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	lang := "typescript"
	if isJavaScript(path) {
		lang = "javascript"
	}

	fp := &fileParser{parser: p, path: path, src: content}
	out := &source.File{Path: path, Language: lang}

	cursor := sitter.NewTreeCursor(tree.RootNode())
	defer cursor.Close()
	fp.walk(cursor, out)

	return out, nil
}

func isJavaScript(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return true
	}
	return false
}

func language(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return tsx.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

type fileParser struct {
	parser *Parser
	path   string
	src    []byte
}

func (fp *fileParser) text(n *sitter.Node) string {
	return n.Content(fp.src)
}

func (fp *fileParser) pos(n *sitter.Node) source.Position {
	return source.Position{File: fp.path, Line: int(n.StartPoint().Row) + 1}
}

func (fp *fileParser) walk(cursor *sitter.TreeCursor, out *source.File) {
	node := cursor.CurrentNode()
	switch node.Type() {
	case "class_declaration", "abstract_class_declaration", "class":
		if class := fp.class(node); class != nil {
			out.Classes = append(out.Classes, class)
		}
		return
	}

	if cursor.GoToFirstChild() {
		for {
			fp.walk(cursor, out)
			if !cursor.GoToNextSibling() {
				break
			}
		}
		cursor.GoToParent()
	}
}

func (fp *fileParser) class(node *sitter.Node) *source.Class {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return nil
	}

	class := &source.Class{
		Name:    fp.text(nameNode),
		Methods: make(map[string]*source.Method),
		Pos:     fp.pos(node),
	}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)

		var name, params, fnBody *sitter.Node
		switch member.Type() {
		case "method_definition":
			name = member.ChildByFieldName("name")
			params = member.ChildByFieldName("parameters")
			fnBody = member.ChildByFieldName("body")
		case "public_field_definition", "field_definition":
			name = member.ChildByFieldName("name")
			if name == nil {
				name = member.ChildByFieldName("property")
			}
			value := member.ChildByFieldName("value")
			if value == nil || (value.Type() != "arrow_function" && value.Type() != "function_expression" && value.Type() != "function") {
				continue
			}
			params = value.ChildByFieldName("parameters")
			if params == nil {
				params = value.ChildByFieldName("parameter")
			}
			fnBody = value.ChildByFieldName("body")
		default:
			continue
		}
		if name == nil || fnBody == nil {
			continue
		}

		fp.scanScopeAndRoutes(class, fnBody)

		methodName := fp.text(name)
		if methodName == "constructor" {
			continue
		}
		class.Methods[methodName] = &source.Method{
			Name: methodName,
			Doc:  fp.docComment(member),
			Pos:  fp.pos(member),
			Body: fp.observe(params, fnBody),
		}
	}

	return class
}

// docComment returns the comment block directly preceding a class member,
// with comment markers and JSDoc tag lines removed.
func (fp *fileParser) docComment(member *sitter.Node) string {
	var blocks []string
	for prev := member.PrevSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevSibling() {
		blocks = append([]string{fp.text(prev)}, blocks...)
		if strings.HasPrefix(fp.text(prev), "/*") {
			break
		}
	}

	var lines []string
	for _, block := range blocks {
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			line = strings.TrimPrefix(line, "/**")
			line = strings.TrimPrefix(line, "/*")
			line = strings.TrimSuffix(line, "*/")
			line = strings.TrimPrefix(line, "//")
			line = strings.TrimPrefix(line, "*")
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "@") {
				continue
			}
			lines = append(lines, line)
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// scanScopeAndRoutes records the scope declaration and router
// registrations found in a member body.
func (fp *fileParser) scanScopeAndRoutes(class *source.Class, body *sitter.Node) {
	fp.each(body, func(n *sitter.Node) {
		if n.Type() != "call_expression" {
			return
		}
		fn := n.ChildByFieldName("function")
		args := n.ChildByFieldName("arguments")
		if fn == nil || args == nil {
			return
		}

		callee := fp.calleeName(fn)
		if fp.parser.baseInits[callee] && class.Scope == "" && args.NamedChildCount() > 0 {
			if scope, ok := fp.stringValue(args.NamedChild(0)); ok {
				class.Scope = scope
				class.ScopePos = fp.pos(n)
			}
			return
		}

		verb, ok := routerVerbs[callee]
		if !ok || fn.Type() != "member_expression" || args.NamedChildCount() < 1 {
			return
		}

		var path string
		handlerArg := args.NamedChild(int(args.NamedChildCount()) - 1)
		if route := fp.routeCall(fn.ChildByFieldName("object")); route != "" {
			// router.route("/:id").get(this.getOne)
			path = route
		} else {
			if args.NamedChildCount() < 2 {
				return
			}
			path, ok = fp.stringValue(args.NamedChild(0))
			if !ok || !strings.HasPrefix(path, "/") {
				return
			}
		}

		if handler := fp.handlerRef(handlerArg); handler != "" {
			class.Registrations = append(class.Registrations, source.Registration{
				Verb:    verb,
				Path:    path,
				Handler: handler,
				Pos:     fp.pos(n),
			})
		}
	})
}

// routeCall returns the path of a router.route("/path") call, looking
// through chained verb calls such as route("/x").get(a).post(b).
func (fp *fileParser) routeCall(n *sitter.Node) string {
	for n != nil && n.Type() == "call_expression" {
		fn := n.ChildByFieldName("function")
		args := n.ChildByFieldName("arguments")
		if fn == nil || fn.Type() != "member_expression" {
			return ""
		}
		if fp.calleeName(fn) == "route" && args != nil && args.NamedChildCount() > 0 {
			path, _ := fp.stringValue(args.NamedChild(0))
			return path
		}
		n = fn.ChildByFieldName("object")
	}
	return ""
}

// handlerRef returns the handler method referenced by a registration
// argument: this.get, this.get.bind(this), (req, res) => this.get(req, res),
// wrapped(this.get) or this.wrap(this.get).
func (fp *fileParser) handlerRef(n *sitter.Node) string {
	switch n.Type() {
	case "member_expression":
		object := n.ChildByFieldName("object")
		if object != nil && object.Type() == "this" {
			return fp.text(n.ChildByFieldName("property"))
		}
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Type() == "member_expression" && fp.calleeName(fn) == "bind" {
			return fp.handlerRef(fn.ChildByFieldName("object"))
		}
		// this.wrap(this.get) names get; a this-method called with no
		// handler argument, this.handler(), names itself.
		if args := n.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
			if ref := fp.handlerRef(args.NamedChild(int(args.NamedChildCount()) - 1)); ref != "" {
				return ref
			}
		}
		if fn != nil && fn.Type() == "member_expression" {
			return fp.handlerRef(fn)
		}
	case "arrow_function":
		if body := n.ChildByFieldName("body"); body != nil {
			var ref string
			fp.each(body, func(c *sitter.Node) {
				if ref == "" && c.Type() == "call_expression" {
					if fn := c.ChildByFieldName("function"); fn != nil && fn.Type() == "member_expression" {
						ref = fp.handlerRef(fn)
					}
				}
			})
			return ref
		}
	case "parenthesized_expression":
		if n.NamedChildCount() > 0 {
			return fp.handlerRef(n.NamedChild(0))
		}
	}
	return ""
}

// calleeName returns the identifier or property name of a called function.
func (fp *fileParser) calleeName(fn *sitter.Node) string {
	switch fn.Type() {
	case "identifier", "super":
		return fp.text(fn)
	case "member_expression":
		if prop := fn.ChildByFieldName("property"); prop != nil {
			return fp.text(prop)
		}
	}
	return ""
}

// stringValue returns the value of a string literal or a template string
// without substitutions.
func (fp *fileParser) stringValue(n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "string":
		raw := fp.text(n)
		if len(raw) < 2 {
			return "", false
		}
		return raw[1 : len(raw)-1], true
	case "template_string":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if n.NamedChild(i).Type() == "template_substitution" {
				return "", false
			}
		}
		raw := fp.text(n)
		return strings.Trim(raw, "`"), true
	}
	return "", false
}

// each calls fn for n and every descendant, in source order.
func (fp *fileParser) each(n *sitter.Node, fn func(*sitter.Node)) {
	cursor := sitter.NewTreeCursor(n)
	defer cursor.Close()

	var visit func()
	visit = func() {
		fn(cursor.CurrentNode())
		if cursor.GoToFirstChild() {
			for {
				visit()
				if !cursor.GoToNextSibling() {
					break
				}
			}
			cursor.GoToParent()
		}
	}
	visit()
}
