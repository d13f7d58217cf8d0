package golang

import (
	"go/ast"
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"github.com/vitalvas/routedoc/source"
)

// decodeCalls read the request payload into their pointer argument.
var decodeCalls = map[string]bool{
	"Decode":         true, // json.NewDecoder(r.Body).Decode(&req)
	"BindJSON":       true, // mux.BindJSON(r, &req)
	"Bind":           true,
	"ShouldBindJSON": true,
}

// writeCalls write their last argument as the response payload.
var writeCalls = map[string]bool{
	"Encode":       true, // json.NewEncoder(w).Encode(v)
	"ResponseJSON": true, // mux.ResponseJSON(w, code, v)
	"JSON":         true, // render.JSON(w, r, v)
}

// statusArg gives the argument index holding a status code for calls that
// take one.
var statusArg = map[string]int{
	"WriteHeader":  0,
	"Error":        2, // http.Error(w, msg, code)
	"ResponseJSON": 1,
	"ResponseXML":  1,
	"Status":       1, // render.Status(r, code)
}

// bodyObserver collects observations from one handler body.
type bodyObserver struct {
	fp        *fileParser
	vars      map[string]ast.Expr // local variable -> declared type expression
	queryVars map[string]bool     // locals holding r.URL.Query()
	obs       source.Observations
	seenQuery map[string]bool
}

func (fp *fileParser) observe(fd *ast.FuncDecl) source.Observations {
	o := &bodyObserver{
		fp:        fp,
		vars:      make(map[string]ast.Expr),
		queryVars: make(map[string]bool),
		seenQuery: make(map[string]bool),
	}

	ast.Inspect(fd.Body, o.declare)
	ast.Inspect(fd.Body, o.visit)

	return o.obs
}

// declare records the static type of locals declared with var, a
// composite literal, new or make.
func (o *bodyObserver) declare(n ast.Node) bool {
	switch s := n.(type) {
	case *ast.ValueSpec:
		for i, name := range s.Names {
			switch {
			case s.Type != nil:
				o.vars[name.Name] = s.Type
			case i < len(s.Values):
				if t := literalType(s.Values[i]); t != nil {
					o.vars[name.Name] = t
				}
			}
		}
	case *ast.AssignStmt:
		if s.Tok != token.DEFINE || len(s.Lhs) != len(s.Rhs) {
			return true
		}
		for i, lhs := range s.Lhs {
			ident, ok := lhs.(*ast.Ident)
			if !ok {
				continue
			}
			if t := literalType(s.Rhs[i]); t != nil {
				o.vars[ident.Name] = t
			}
			if isQueryCall(s.Rhs[i]) {
				o.queryVars[ident.Name] = true
			}
		}
	}
	return true
}

// literalType returns the type of T{}, &T{}, new(T) and make(T, ...).
func literalType(expr ast.Expr) ast.Expr {
	switch e := expr.(type) {
	case *ast.CompositeLit:
		return e.Type
	case *ast.UnaryExpr:
		if e.Op == token.AND {
			return literalType(e.X)
		}
	case *ast.CallExpr:
		if ident, ok := e.Fun.(*ast.Ident); ok && (ident.Name == "new" || ident.Name == "make") && len(e.Args) > 0 {
			return e.Args[0]
		}
	}
	return nil
}

// isQueryCall reports whether expr is X.URL.Query() or X.Query().
func isQueryCall(expr ast.Expr) bool {
	call, ok := expr.(*ast.CallExpr)
	return ok && calleeName(call) == "Query" && len(call.Args) == 0
}

func (o *bodyObserver) visit(n ast.Node) bool {
	switch e := n.(type) {
	case *ast.CallExpr:
		o.call(e)
	case *ast.SelectorExpr:
		if pkg, ok := e.X.(*ast.Ident); ok && pkg.Name == "http" && strings.HasPrefix(e.Sel.Name, "Status") && e.Sel.Name != "StatusText" {
			o.obs.Signals = append(o.obs.Signals, source.Signal{
				Kind: source.SignalStatusName,
				Name: e.Sel.Name,
				Pos:  o.fp.pos(e.Pos()),
			})
		}
	}
	return true
}

func (o *bodyObserver) call(call *ast.CallExpr) {
	name := calleeName(call)

	if idx, ok := statusArg[name]; ok && idx < len(call.Args) {
		if lit, ok := call.Args[idx].(*ast.BasicLit); ok && lit.Kind == token.INT {
			if code, err := strconv.Atoi(lit.Value); err == nil {
				o.obs.Signals = append(o.obs.Signals, source.Signal{
					Kind: source.SignalStatus,
					Code: code,
					Pos:  o.fp.pos(lit.Pos()),
				})
			}
		}
	}

	switch {
	case name == "Is" && len(call.Args) == 2:
		// errors.Is(err, ErrNotFound)
		if sentinel := sentinelName(call.Args[1]); sentinel != "" {
			o.obs.Signals = append(o.obs.Signals, source.Signal{
				Kind: source.SignalSentinel,
				Name: sentinel,
				Pos:  o.fp.pos(call.Args[1].Pos()),
			})
		}

	case decodeCalls[name] && len(o.obs.PayloadFields) == 0:
		for _, arg := range call.Args {
			target, ok := arg.(*ast.UnaryExpr)
			if !ok || target.Op != token.AND {
				continue
			}
			if ident, ok := target.X.(*ast.Ident); ok {
				o.payload(ident)
				return
			}
		}

	case writeCalls[name] && len(call.Args) > 0 && o.obs.Response == nil:
		o.obs.Response = o.valueShape(call.Args[len(call.Args)-1])

	case name == "Get" && len(call.Args) == 1:
		key, ok := stringLit(call.Args[0])
		if !ok {
			return
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return
		}
		ident, isIdent := sel.X.(*ast.Ident)
		if isQueryCall(sel.X) || (isIdent && o.queryVars[ident.Name]) {
			o.query(key)
		}
	}
}

func (o *bodyObserver) query(key string) {
	if !o.seenQuery[key] {
		o.seenQuery[key] = true
		o.obs.QueryParams = append(o.obs.QueryParams, key)
	}
}

func sentinelName(expr ast.Expr) string {
	var name string
	switch e := expr.(type) {
	case *ast.Ident:
		name = e.Name
	case *ast.SelectorExpr:
		name = e.Sel.Name
	}
	if strings.HasPrefix(name, "Err") || strings.HasPrefix(name, "err") {
		return name
	}
	return ""
}

// payload records the fields of the variable decoded from the request.
func (o *bodyObserver) payload(ident *ast.Ident) {
	pos := o.fp.pos(ident.Pos())

	typ, ok := o.vars[ident.Name]
	if !ok {
		o.obs.PayloadFields = []source.Field{{Name: ident.Name, Shape: source.Scalar(source.KindUnknown), Pos: pos}}
		return
	}

	shape := o.fp.typeShape(typ, make(map[string]bool))
	if shape.Kind != source.KindObject {
		o.obs.PayloadFields = []source.Field{{Name: ident.Name, Shape: shape, Pos: pos}}
		return
	}
	o.obs.PayloadFields = shape.Fields
}

// valueShape describes a value written as the response payload.
func (o *bodyObserver) valueShape(expr ast.Expr) *source.Shape {
	switch e := expr.(type) {
	case *ast.Ident:
		if typ, ok := o.vars[e.Name]; ok {
			return o.fp.typeShape(typ, make(map[string]bool))
		}
	case *ast.UnaryExpr:
		if e.Op == token.AND {
			return o.valueShape(e.X)
		}
	case *ast.CompositeLit:
		if m, ok := e.Type.(*ast.MapType); ok && isStringIdent(m.Key) {
			return o.mapLiteralShape(e)
		}
		if e.Type != nil {
			return o.fp.typeShape(e.Type, make(map[string]bool))
		}
	}
	return nil
}

// mapLiteralShape describes map[string]any{"key": value, ...}.
func (o *bodyObserver) mapLiteralShape(lit *ast.CompositeLit) *source.Shape {
	shape := &source.Shape{Kind: source.KindObject}
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		key, ok := stringLit(kv.Key)
		if !ok {
			continue
		}
		value := o.valueShape(kv.Value)
		if value == nil {
			value = basicLitShape(kv.Value)
		}
		shape.Fields = append(shape.Fields, source.Field{Name: key, Shape: value, Pos: o.fp.pos(kv.Pos())})
	}
	return shape
}

func basicLitShape(expr ast.Expr) *source.Shape {
	switch e := expr.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.INT:
			return source.Scalar(source.KindInteger)
		case token.FLOAT:
			return source.Scalar(source.KindNumber)
		case token.STRING, token.CHAR:
			return source.Scalar(source.KindString)
		}
	case *ast.Ident:
		if e.Name == "true" || e.Name == "false" {
			return source.Scalar(source.KindBoolean)
		}
	}
	return source.Scalar(source.KindUnknown)
}

func isStringIdent(expr ast.Expr) bool {
	ident, ok := expr.(*ast.Ident)
	return ok && ident.Name == "string"
}

// typeShape describes a Go type expression. Named types declared in the
// file are expanded; seen guards against recursive types.
func (fp *fileParser) typeShape(expr ast.Expr, seen map[string]bool) *source.Shape {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return fp.typeShape(t.X, seen)
	case *ast.ParenExpr:
		return fp.typeShape(t.X, seen)
	case *ast.ArrayType:
		if ident, ok := t.Elt.(*ast.Ident); ok && ident.Name == "byte" {
			return &source.Shape{Kind: source.KindString, Format: "byte"}
		}
		return &source.Shape{Kind: source.KindArray, Items: fp.typeShape(t.Elt, seen)}
	case *ast.MapType:
		return &source.Shape{Kind: source.KindObject, Values: fp.typeShape(t.Value, seen)}
	case *ast.StructType:
		return fp.structShape("", t, seen)
	case *ast.SelectorExpr:
		return qualifiedShape(t)
	case *ast.Ident:
		if shape := builtinShape(t.Name); shape != nil {
			return shape
		}
		decl, ok := fp.types[t.Name]
		if !ok || seen[t.Name] {
			return source.Scalar(source.KindUnknown)
		}
		seen[t.Name] = true
		defer delete(seen, t.Name)
		if st, ok := decl.(*ast.StructType); ok {
			return fp.structShape(t.Name, st, seen)
		}
		shape := fp.typeShape(decl, seen)
		return shape
	}
	return source.Scalar(source.KindUnknown)
}

func builtinShape(name string) *source.Shape {
	switch name {
	case "bool":
		return source.Scalar(source.KindBoolean)
	case "string":
		return source.Scalar(source.KindString)
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "byte", "rune":
		return source.Scalar(source.KindInteger)
	case "float32", "float64":
		return source.Scalar(source.KindNumber)
	}
	return nil
}

// qualifiedShape knows the handful of imported types that commonly appear
// in payloads.
func qualifiedShape(sel *ast.SelectorExpr) *source.Shape {
	pkg, _ := sel.X.(*ast.Ident)
	if pkg == nil {
		return source.Scalar(source.KindUnknown)
	}
	switch pkg.Name + "." + sel.Sel.Name {
	case "time.Time":
		return &source.Shape{Kind: source.KindString, Format: "date-time"}
	case "time.Duration":
		return source.Scalar(source.KindInteger)
	case "uuid.UUID":
		return &source.Shape{Kind: source.KindString, Format: "uuid"}
	case "json.Number":
		return source.Scalar(source.KindNumber)
	}
	return source.Scalar(source.KindUnknown)
}

func (fp *fileParser) structShape(name string, st *ast.StructType, seen map[string]bool) *source.Shape {
	shape := &source.Shape{Kind: source.KindObject, TypeName: name}
	if st.Fields == nil {
		return shape
	}

	for _, field := range st.Fields.List {
		var tag reflect.StructTag
		if field.Tag != nil {
			if raw, err := strconv.Unquote(field.Tag.Value); err == nil {
				tag = reflect.StructTag(raw)
			}
		}

		jsonName, _, _ := strings.Cut(tag.Get("json"), ",")
		if jsonName == "-" {
			continue
		}
		required := hasValidateRule(tag.Get("validate"), "required")

		if len(field.Names) == 0 {
			// Embedded: inline the fields of a known struct.
			embedded := fp.typeShape(field.Type, seen)
			if jsonName == "" && embedded.Kind == source.KindObject && embedded.Values == nil {
				shape.Fields = append(shape.Fields, embedded.Fields...)
				continue
			}
			if jsonName == "" {
				jsonName = typeName(field.Type)
			}
			shape.Fields = append(shape.Fields, source.Field{Name: jsonName, Shape: embedded, Required: required, Pos: fp.pos(field.Pos())})
			continue
		}

		for _, ident := range field.Names {
			if !ident.IsExported() {
				continue
			}
			fieldName := jsonName
			if fieldName == "" {
				fieldName = ident.Name
			}
			shape.Fields = append(shape.Fields, source.Field{
				Name:     fieldName,
				Shape:    fp.typeShape(field.Type, seen),
				Required: required,
				Pos:      fp.pos(ident.Pos()),
			})
		}
	}

	return shape
}

// hasValidateRule reports whether a go-playground/validator tag contains rule.
func hasValidateRule(tag, rule string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == rule {
			return true
		}
	}
	return false
}
