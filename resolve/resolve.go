// Package resolve finds the route registration that binds a handler and
// computes the operation address it is served at.
package resolve

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/vitalvas/routedoc/openapi"
	"github.com/vitalvas/routedoc/source"
)

var (
	// ErrNotFound is returned when no registration binds the handler.
	ErrNotFound = errors.New("handler not found")
	// ErrAmbiguous is returned when more than one registration binds the
	// handler.
	ErrAmbiguous = errors.New("handler is ambiguous")
)

// Binding is a resolved handler: its owning class and scope, and the
// address of the operation it serves.
type Binding struct {
	HandlerName string
	ClassName   string
	Scope       string
	// Tag is the PascalCase tag of the scope.
	Tag string
	// Verb is the upper-case HTTP method.
	Verb string
	// RouteTemplate is the route path exactly as registered.
	RouteTemplate string
	// Path is the full OpenAPI path: scope prefix plus route, with every
	// variable in {name} form.
	Path           string
	PathParameters []openapi.PathVar
	Pos            source.Position
	// Handler is the handler method declaration.
	Handler *source.Method
}

// Candidate is one registration matching a handler.
type Candidate struct {
	ClassName string
	Verb      string
	Path      string
	Pos       source.Position
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s %s (%s) at %s", c.Verb, c.Path, c.ClassName, c.Pos)
}

// AmbiguousError lists the registrations that bind the same handler.
type AmbiguousError struct {
	Handler    string
	Candidates []Candidate
}

func (e *AmbiguousError) Error() string {
	parts := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s: %s is registered %d times: %s",
		ErrAmbiguous.Error(), e.Handler, len(e.Candidates), strings.Join(parts, "; "))
}

func (e *AmbiguousError) Unwrap() error {
	return ErrAmbiguous
}

// Outcome is the variant of a Result.
type Outcome int

const (
	NotFound Outcome = iota
	Found
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not found"
	}
}

// Result is the outcome of a resolution. Exactly one of the variants is
// populated: Found carries the binding, Ambiguous the candidates, NotFound
// a reason.
type Result struct {
	Outcome    Outcome
	Handler    string
	Reason     string
	Candidates []Candidate
	binding    *Binding
}

// Binding returns the resolved binding, or ErrNotFound / *AmbiguousError.
func (r Result) Binding() (*Binding, error) {
	switch r.Outcome {
	case Found:
		return r.binding, nil
	case Ambiguous:
		return nil, &AmbiguousError{Handler: r.Handler, Candidates: r.Candidates}
	default:
		return nil, fmt.Errorf("%w: %s: %s", ErrNotFound, r.Handler, r.Reason)
	}
}

// Resolve finds the single registration binding handler across the parsed
// files. handler is a method name, optionally qualified by its class
// ("AssociationsController.getAssociation"). The error is reserved for
// malformed route templates.
func Resolve(files []*source.File, handler string) (Result, error) {
	className, method := splitHandler(handler)
	res := Result{Handler: handler}

	var (
		defining []*source.Class
		matches  []match
	)
	for _, class := range mergeClasses(files) {
		if className != "" && class.Name != className {
			continue
		}
		if class.Method(method) == nil {
			continue
		}
		defining = append(defining, class)

		if class.Scope == "" {
			continue
		}
		for _, reg := range class.Registrations {
			if reg.Handler == method {
				matches = append(matches, match{class: class, reg: reg})
			}
		}
	}

	switch {
	case len(defining) == 0:
		res.Reason = "no class defines it"
		return res, nil
	case len(matches) == 0:
		res.Reason = notFoundReason(defining, method)
		return res, nil
	case len(matches) > 1:
		res.Outcome = Ambiguous
		for _, m := range matches {
			res.Candidates = append(res.Candidates, Candidate{
				ClassName: m.class.Name,
				Verb:      m.reg.Verb,
				Path:      m.reg.Path,
				Pos:       m.reg.Pos,
			})
		}
		return res, nil
	}

	binding, err := bind(matches[0], method)
	if err != nil {
		return res, err
	}
	res.Outcome = Found
	res.binding = binding
	return res, nil
}

type match struct {
	class *source.Class
	reg   source.Registration
}

func splitHandler(handler string) (string, string) {
	if i := strings.LastIndexByte(handler, '.'); i >= 0 {
		return handler[:i], handler[i+1:]
	}
	return "", handler
}

func notFoundReason(defining []*source.Class, method string) string {
	var noScope []string
	for _, class := range defining {
		if class.Scope == "" {
			noScope = append(noScope, class.Name)
		}
	}
	if len(noScope) == len(defining) {
		return fmt.Sprintf("class %s has no scope declaration", strings.Join(noScope, ", "))
	}
	return fmt.Sprintf("no route registration references %s", method)
}

func bind(m match, method string) (*Binding, error) {
	route, vars, err := openapi.ParsePath(m.reg.Path)
	if err != nil {
		return nil, fmt.Errorf("route %s %q at %s: %w", m.reg.Verb, m.reg.Path, m.reg.Pos, err)
	}

	seen := make(map[string]bool, len(vars))
	params := make([]openapi.PathVar, 0, len(vars))
	for _, v := range vars {
		if seen[v.Name] {
			continue
		}
		seen[v.Name] = true
		params = append(params, v)
	}

	return &Binding{
		HandlerName:    method,
		ClassName:      m.class.Name,
		Scope:          m.class.Scope,
		Tag:            openapi.TagName(m.class.Scope),
		Verb:           strings.ToUpper(m.reg.Verb),
		RouteTemplate:  m.reg.Path,
		Path:           openapi.JoinPath(m.class.Scope, route),
		PathParameters: params,
		Pos:            m.reg.Pos,
		Handler:        m.class.Method(method),
	}, nil
}

// mergeClasses returns the classes of all files. Go methods may be spread
// over several files of one package, so Go classes of the same name in the
// same directory are merged into one.
func mergeClasses(files []*source.File) []*source.Class {
	var (
		out    []*source.Class
		merged = make(map[string]*source.Class)
	)

	for _, file := range files {
		for _, class := range file.Classes {
			if file.Language != "go" {
				out = append(out, class)
				continue
			}

			key := path.Dir(file.Path) + "\x00" + class.Name
			target, ok := merged[key]
			if !ok {
				target = &source.Class{
					Name:    class.Name,
					Methods: make(map[string]*source.Method),
					Pos:     class.Pos,
				}
				merged[key] = target
				out = append(out, target)
			}
			if target.Scope == "" && class.Scope != "" {
				target.Scope = class.Scope
				target.ScopePos = class.ScopePos
			}
			target.Registrations = append(target.Registrations, class.Registrations...)
			for name, m := range class.Methods {
				target.Methods[name] = m
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
