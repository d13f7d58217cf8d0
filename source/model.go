package source

import (
	"fmt"
	"go/token"
)

// Position is a location in a handler source file.
type Position struct {
	File string
	Line int
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("line %d", p.Line)
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// PositionOf converts a go/token position.
func PositionOf(pos token.Position) Position {
	return Position{File: pos.Filename, Line: pos.Line}
}

// File is the language-neutral result of parsing one handler source file.
type File struct {
	Path     string
	Language string
	Classes  []*Class
}

// Class is a handler-bearing type: a TypeScript class or a Go receiver type.
type Class struct {
	Name string
	// Scope is the string passed to the base initializer; empty when the
	// class has no scope declaration.
	Scope         string
	ScopePos      Position
	Registrations []Registration
	Methods       map[string]*Method
	Pos           Position
}

// Method returns the named handler method, or nil.
func (c *Class) Method(name string) *Method {
	if c.Methods == nil {
		return nil
	}
	return c.Methods[name]
}

// Registration is one route registration statement binding a handler.
type Registration struct {
	// Verb is the upper-case HTTP method.
	Verb string
	// Path is the literal route path argument as written in source.
	Path    string
	Handler string
	Pos     Position
}

// Method is a handler declaration: its attached documentation and what its
// body observably does.
type Method struct {
	Name string
	// Doc is the attached documentation comment with comment markers
	// stripped; empty when there is none.
	Doc  string
	Pos  Position
	Body Observations
}

// Observations are the facts a frontend extracted from a handler body.
type Observations struct {
	// PayloadFields are fields read from the incoming request payload, in
	// first-read order.
	PayloadFields []Field
	// QueryParams are query string keys read by the handler.
	QueryParams []string
	// Signals are outcome signals (thrown errors, explicit statuses).
	Signals []Signal
	// Response is the shape of the success payload written by the handler,
	// or nil when the handler writes none that could be seen.
	Response *Shape
}

// Field is a named member of a payload or a shape.
type Field struct {
	Name     string
	Shape    *Shape
	Required bool
	Pos      Position
}

// SignalKind says how an outcome signal was expressed.
type SignalKind int

const (
	// SignalStatus is an explicit numeric status (res.status(404), 404).
	SignalStatus SignalKind = iota
	// SignalStatusName is a named status constant (http.StatusNotFound,
	// StatusCodes.NOT_FOUND).
	SignalStatusName
	// SignalError is a thrown or returned error class (new NotFoundError()).
	SignalError
	// SignalSentinel is a sentinel error comparison (errors.Is(err, ErrNotFound)).
	SignalSentinel
)

func (k SignalKind) String() string {
	switch k {
	case SignalStatus:
		return "status"
	case SignalStatusName:
		return "status constant"
	case SignalError:
		return "error"
	case SignalSentinel:
		return "sentinel error"
	default:
		return "unknown"
	}
}

// Signal is one internal outcome signal seen in a handler body.
type Signal struct {
	Kind SignalKind
	// Code is set for SignalStatus.
	Code int
	// Name is set for the named kinds: the constant, class or sentinel name.
	Name string
	Pos  Position
}

func (s Signal) String() string {
	if s.Kind == SignalStatus {
		return fmt.Sprintf("status %d at %s", s.Code, s.Pos)
	}
	return fmt.Sprintf("%s %s at %s", s.Kind, s.Name, s.Pos)
}

// ShapeKind is the structural kind of a value.
type ShapeKind int

const (
	KindUnknown ShapeKind = iota
	KindString
	KindInteger
	KindNumber
	KindBoolean
	KindArray
	KindObject
)

func (k ShapeKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Shape is a language-neutral structural description of a value.
type Shape struct {
	Kind   ShapeKind
	Format string
	// TypeName is the declared type name when the frontend knows one.
	TypeName string
	Fields   []Field
	Items    *Shape
	// Values is an open map's element shape (map[string]T).
	Values *Shape
}

// Scalar returns a shape of the given scalar kind.
func Scalar(kind ShapeKind) *Shape {
	return &Shape{Kind: kind}
}
