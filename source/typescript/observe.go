package typescript

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/vitalvas/routedoc/source"
)

// typeofKinds maps the right-hand side of a typeof comparison.
var typeofKinds = map[string]source.ShapeKind{
	"string":  source.KindString,
	"number":  source.KindNumber,
	"boolean": source.KindBoolean,
	"object":  source.KindObject,
}

// checkKinds maps validation helpers (isBoolean(x), validator.isInt(x),
// Number.isInteger(x), Array.isArray(x)) to the kind they establish.
var checkKinds = map[string]*source.Shape{
	"isBoolean":     {Kind: source.KindBoolean},
	"isString":      {Kind: source.KindString},
	"isNumber":      {Kind: source.KindNumber},
	"isNumeric":     {Kind: source.KindNumber},
	"isFloat":       {Kind: source.KindNumber},
	"isFinite":      {Kind: source.KindNumber},
	"isInt":         {Kind: source.KindInteger},
	"isInteger":     {Kind: source.KindInteger},
	"isSafeInteger": {Kind: source.KindInteger},
	"isArray":       {Kind: source.KindArray},
	"isObject":      {Kind: source.KindObject},
	"isPlainObject": {Kind: source.KindObject},
	"isEmail":       {Kind: source.KindString, Format: "email"},
	"isUUID":        {Kind: source.KindString, Format: "uuid"},
	"isURL":         {Kind: source.KindString, Format: "uri"},
	"isDate":        {Kind: source.KindString, Format: "date-time"},
	"isISO8601":     {Kind: source.KindString, Format: "date-time"},
}

// conversionKinds maps conversion calls applied to a payload value.
var conversionKinds = map[string]source.ShapeKind{
	"Number":     source.KindNumber,
	"parseFloat": source.KindNumber,
	"parseInt":   source.KindInteger,
	"String":     source.KindString,
	"Boolean":    source.KindBoolean,
}

// stringMethods imply a string value when called on a payload value.
var stringMethods = map[string]bool{
	"trim":        true,
	"toLowerCase": true,
	"toUpperCase": true,
	"startsWith":  true,
	"endsWith":    true,
	"padStart":    true,
}

// statusObjects hold named status constants (StatusCodes.NOT_FOUND).
var statusObjects = map[string]bool{
	"StatusCodes": true,
	"HttpStatus":  true,
	"HTTPStatus":  true,
	"httpStatus":  true,
}

type bodyObserver struct {
	fp      *fileParser
	req     string
	res     string
	aliases map[string]string // local name -> payload field
	fields  map[string]*source.Field
	order   []string
	queries map[string]bool
	obs     source.Observations
}

// observe collects payload reads, query reads, outcome signals and the
// response shape of a handler body.
func (fp *fileParser) observe(params, body *sitter.Node) source.Observations {
	o := &bodyObserver{
		fp:      fp,
		req:     "req",
		res:     "res",
		aliases: make(map[string]string),
		fields:  make(map[string]*source.Field),
		queries: make(map[string]bool),
	}

	if names := fp.paramNames(params); len(names) > 0 {
		o.req = names[0]
		if len(names) > 1 {
			o.res = names[1]
		}
	}

	fp.each(body, o.destructure)
	fp.each(body, o.visit)

	for _, name := range o.order {
		o.obs.PayloadFields = append(o.obs.PayloadFields, *o.fields[name])
	}
	return o.obs
}

func (fp *fileParser) paramNames(params *sitter.Node) []string {
	if params == nil {
		return nil
	}
	if params.Type() == "identifier" {
		return []string{fp.text(params)}
	}

	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		switch param.Type() {
		case "identifier":
			names = append(names, fp.text(param))
		case "required_parameter", "optional_parameter":
			if pattern := param.ChildByFieldName("pattern"); pattern != nil && pattern.Type() == "identifier" {
				names = append(names, fp.text(pattern))
			}
		case "assignment_pattern":
			if left := param.ChildByFieldName("left"); left != nil {
				names = append(names, fp.text(left))
			}
		}
	}
	return names
}

// destructure handles const { a, b: alias } = req.body and
// const { page } = req.query.
func (o *bodyObserver) destructure(n *sitter.Node) {
	if n.Type() != "variable_declarator" {
		return
	}
	name := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	if name == nil || value == nil || name.Type() != "object_pattern" {
		return
	}

	var onField func(field, local string, pos *sitter.Node)
	switch {
	case o.isReqMember(value, "body"):
		onField = func(field, local string, pos *sitter.Node) {
			o.aliases[local] = field
			o.field(field, pos)
		}
	case o.isReqMember(value, "query"):
		onField = func(field, _ string, _ *sitter.Node) {
			o.query(field)
		}
	default:
		return
	}

	for i := 0; i < int(name.NamedChildCount()); i++ {
		prop := name.NamedChild(i)
		switch prop.Type() {
		case "shorthand_property_identifier_pattern":
			onField(o.fp.text(prop), o.fp.text(prop), prop)
		case "pair_pattern":
			key := prop.ChildByFieldName("key")
			local := prop.ChildByFieldName("value")
			if key == nil || local == nil {
				continue
			}
			if local.Type() == "assignment_pattern" {
				local = local.ChildByFieldName("left")
			}
			onField(o.propertyKey(key), o.fp.text(local), prop)
		case "object_assignment_pattern":
			left := prop.ChildByFieldName("left")
			if left != nil {
				onField(o.fp.text(left), o.fp.text(left), prop)
			}
		}
	}
}

func (o *bodyObserver) propertyKey(key *sitter.Node) string {
	if s, ok := o.fp.stringValue(key); ok {
		return s
	}
	return o.fp.text(key)
}

// isReqMember reports whether n is req.<prop>.
func (o *bodyObserver) isReqMember(n *sitter.Node, prop string) bool {
	if n == nil || n.Type() != "member_expression" {
		return false
	}
	object := n.ChildByFieldName("object")
	property := n.ChildByFieldName("property")
	return object != nil && property != nil &&
		object.Type() == "identifier" && o.fp.text(object) == o.req &&
		o.fp.text(property) == prop
}

// fieldRef returns the payload field n refers to: req.body.x,
// req.body["x"], or a local destructured from req.body.
func (o *bodyObserver) fieldRef(n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "identifier":
		field, ok := o.aliases[o.fp.text(n)]
		return field, ok
	case "member_expression":
		if o.isReqMember(n.ChildByFieldName("object"), "body") {
			return o.fp.text(n.ChildByFieldName("property")), true
		}
	case "subscript_expression":
		if o.isReqMember(n.ChildByFieldName("object"), "body") {
			return o.fp.stringValue(n.ChildByFieldName("index"))
		}
	case "parenthesized_expression", "non_null_expression":
		if n.NamedChildCount() > 0 {
			return o.fieldRef(n.NamedChild(0))
		}
	}
	return "", false
}

func (o *bodyObserver) field(name string, at *sitter.Node) *source.Field {
	f, ok := o.fields[name]
	if !ok {
		f = &source.Field{Name: name, Shape: source.Scalar(source.KindUnknown), Pos: o.fp.pos(at)}
		o.fields[name] = f
		o.order = append(o.order, name)
	}
	return f
}

// typed records kind evidence for a field. The first evidence wins, except
// that an integer check refines a number.
func (o *bodyObserver) typed(name string, at *sitter.Node, shape source.Shape) {
	f := o.field(name, at)
	switch {
	case f.Shape.Kind == source.KindUnknown:
		s := shape
		f.Shape = &s
	case f.Shape.Kind == source.KindNumber && shape.Kind == source.KindInteger:
		f.Shape.Kind = source.KindInteger
	case f.Shape.Kind == shape.Kind && f.Shape.Format == "":
		f.Shape.Format = shape.Format
	}
}

func (o *bodyObserver) query(key string) {
	if !o.queries[key] {
		o.queries[key] = true
		o.obs.QueryParams = append(o.obs.QueryParams, key)
	}
}

func (o *bodyObserver) visit(n *sitter.Node) {
	switch n.Type() {
	case "member_expression":
		if field, ok := o.fieldRef(n); ok {
			o.field(field, n)
		}
		if o.isReqMember(n.ChildByFieldName("object"), "query") {
			o.query(o.fp.text(n.ChildByFieldName("property")))
		}
		if object := n.ChildByFieldName("object"); object != nil && statusObjects[o.fp.text(object)] {
			o.obs.Signals = append(o.obs.Signals, source.Signal{
				Kind: source.SignalStatusName,
				Name: o.fp.text(n.ChildByFieldName("property")),
				Pos:  o.fp.pos(n),
			})
		}

	case "binary_expression":
		o.comparison(n)

	case "unary_expression":
		// !x marks a field as required.
		if op := n.ChildByFieldName("operator"); op != nil && op.Type() == "!" {
			if field, ok := o.fieldRef(n.ChildByFieldName("argument")); ok {
				o.field(field, n).Required = true
			}
		}

	case "call_expression":
		o.call(n)

	case "new_expression":
		if !o.signalsError(n) {
			return
		}
		if ctor := n.ChildByFieldName("constructor"); ctor != nil {
			o.obs.Signals = append(o.obs.Signals, source.Signal{
				Kind: source.SignalError,
				Name: o.fp.text(ctor),
				Pos:  o.fp.pos(n),
			})
		}
	}
}

// signalsError reports whether a new expression is thrown, passed to
// next() or returned.
func (o *bodyObserver) signalsError(n *sitter.Node) bool {
	parent := n.Parent()
	for parent != nil && (parent.Type() == "parenthesized_expression" || parent.Type() == "await_expression") {
		parent = parent.Parent()
	}
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "throw_statement", "return_statement":
		return true
	case "arguments":
		call := parent.Parent()
		if call == nil || call.Type() != "call_expression" {
			return false
		}
		return o.fp.calleeName(call.ChildByFieldName("function")) == "next"
	}
	return false
}

func (o *bodyObserver) comparison(n *sitter.Node) {
	op := n.ChildByFieldName("operator")
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if op == nil || left == nil || right == nil {
		return
	}
	switch op.Type() {
	case "===", "==", "!==", "!=":
	default:
		return
	}

	for _, pair := range [][2]*sitter.Node{{left, right}, {right, left}} {
		subject, other := pair[0], pair[1]

		// typeof x === "boolean"
		if subject.Type() == "unary_expression" {
			if uop := subject.ChildByFieldName("operator"); uop != nil && uop.Type() == "typeof" {
				if field, ok := o.fieldRef(subject.ChildByFieldName("argument")); ok {
					if lit, ok := o.fp.stringValue(other); ok {
						if kind, known := typeofKinds[lit]; known {
							o.typed(field, n, source.Shape{Kind: kind})
						}
					}
				}
			}
			continue
		}

		// x === undefined, x == null
		if field, ok := o.fieldRef(subject); ok {
			switch other.Type() {
			case "undefined", "null":
				o.field(field, n).Required = true
			case "identifier":
				if o.fp.text(other) == "undefined" {
					o.field(field, n).Required = true
				}
			}
		}
	}
}

func (o *bodyObserver) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return
	}
	name := o.fp.calleeName(fn)

	if args.NamedChildCount() > 0 {
		arg := args.NamedChild(0)
		if field, ok := o.fieldRef(arg); ok {
			if shape, known := checkKinds[name]; known {
				o.typed(field, n, *shape)
			} else if kind, known := conversionKinds[name]; known && fn.Type() == "identifier" {
				o.typed(field, n, source.Shape{Kind: kind})
			}
		}
	}

	if fn.Type() == "member_expression" && stringMethods[name] {
		if field, ok := o.fieldRef(fn.ChildByFieldName("object")); ok {
			o.typed(field, n, source.Shape{Kind: source.KindString})
		}
	}

	if !o.onResponse(fn) {
		return
	}

	switch name {
	case "status", "sendStatus":
		if args.NamedChildCount() > 0 && args.NamedChild(0).Type() == "number" {
			if code, err := strconv.Atoi(o.fp.text(args.NamedChild(0))); err == nil {
				o.obs.Signals = append(o.obs.Signals, source.Signal{
					Kind: source.SignalStatus,
					Code: code,
					Pos:  o.fp.pos(n),
				})
			}
		}
	case "json", "send":
		if o.obs.Response == nil && args.NamedChildCount() > 0 {
			o.obs.Response = o.valueShape(args.NamedChild(0))
		}
	}
}

// onResponse reports whether fn is a method called on the response object,
// directly or through a chain such as res.status(201).json(...).
func (o *bodyObserver) onResponse(fn *sitter.Node) bool {
	if fn.Type() != "member_expression" {
		return false
	}
	object := fn.ChildByFieldName("object")
	for object != nil && object.Type() == "call_expression" {
		inner := object.ChildByFieldName("function")
		if inner == nil || inner.Type() != "member_expression" {
			return false
		}
		object = inner.ChildByFieldName("object")
	}
	return object != nil && object.Type() == "identifier" && o.fp.text(object) == o.res
}

// valueShape describes a value passed to res.json. Values whose type is
// not visible in the literal are unknown.
func (o *bodyObserver) valueShape(n *sitter.Node) *source.Shape {
	switch n.Type() {
	case "object":
		shape := &source.Shape{Kind: source.KindObject}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			prop := n.NamedChild(i)
			switch prop.Type() {
			case "pair":
				key := prop.ChildByFieldName("key")
				value := prop.ChildByFieldName("value")
				if key == nil || value == nil {
					continue
				}
				shape.Fields = append(shape.Fields, source.Field{
					Name:  o.propertyKey(key),
					Shape: o.valueShape(value),
					Pos:   o.fp.pos(prop),
				})
			case "shorthand_property_identifier":
				shape.Fields = append(shape.Fields, source.Field{
					Name:  o.fp.text(prop),
					Shape: source.Scalar(source.KindUnknown),
					Pos:   o.fp.pos(prop),
				})
			}
		}
		return shape
	case "array":
		shape := &source.Shape{Kind: source.KindArray, Items: source.Scalar(source.KindUnknown)}
		if n.NamedChildCount() > 0 {
			shape.Items = o.valueShape(n.NamedChild(0))
		}
		return shape
	case "string", "template_string":
		return source.Scalar(source.KindString)
	case "number":
		if strings.ContainsAny(o.fp.text(n), ".eE") {
			return source.Scalar(source.KindNumber)
		}
		return source.Scalar(source.KindInteger)
	case "true", "false":
		return source.Scalar(source.KindBoolean)
	case "parenthesized_expression":
		if n.NamedChildCount() > 0 {
			return o.valueShape(n.NamedChild(0))
		}
	}
	return source.Scalar(source.KindUnknown)
}
