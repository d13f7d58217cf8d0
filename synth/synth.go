// Package synth derives an OpenAPI operation from a resolved handler: its
// summary and narrative, parameters, request payload and the responses it
// can produce.
package synth

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/vitalvas/routedoc/openapi"
	"github.com/vitalvas/routedoc/resolve"
	"github.com/vitalvas/routedoc/source"
)

var (
	// ErrUnclassifiedOutcome is returned for a signal with no entry in the
	// outcome table: an unknown error class or status.
	ErrUnclassifiedOutcome = errors.New("cannot classify response outcome")
	// ErrUntypedField is returned for a payload field whose type cannot be
	// inferred.
	ErrUntypedField = errors.New("cannot infer payload field type")
)

// Error is a synthesis failure naming the offending construct.
type Error struct {
	Err       error
	Construct string
	Pos       source.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s at %s", e.Err, e.Construct, e.Pos)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// maxSummaryWords bounds the length of a summary.
const maxSummaryWords = 6

// payloadVerbs carry a request body.
var payloadVerbs = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// Outcome is one response of an operation.
type Outcome struct {
	Status string
	Kind   OutcomeKind
	// Template is the shared response referenced instead of an inline
	// description; empty for inline outcomes.
	Template    string
	Description string
	// Shape is the payload of the primary success response, if any.
	Shape *source.Shape
}

// Operation is a synthesized operation description.
type Operation struct {
	Verb      string
	Path      string
	Tag       string
	Summary   string
	Narrative string
	// Resource is the singular PascalCase name of the addressed resource,
	// used to name a promoted response schema.
	Resource string
	// PayloadName names a promoted request schema.
	PayloadName string

	Parameters []*openapi.Parameter
	Payload    *source.Shape
	// Responses are ordered with the primary success first, then by
	// ascending status.
	Responses []Outcome
	Security  []openapi.SecurityRequirement
}

// Synthesizer builds operations.
type Synthesizer struct {
	// SchemeName is the security scheme every operation requires.
	SchemeName string
	// Templates are the shared response templates available in the target
	// document.
	Templates map[string]bool
}

// Synthesize derives the operation served by a binding.
func (s *Synthesizer) Synthesize(b *resolve.Binding) (*Operation, error) {
	method := b.Handler
	if method == nil {
		method = &source.Method{Name: b.HandlerName}
	}

	op := &Operation{
		Verb:        b.Verb,
		Path:        b.Path,
		Tag:         b.Tag,
		Summary:     Summary(b.HandlerName),
		Narrative:   method.Doc,
		Resource:    openapi.SingularPascal(resourceSegment(b.Path, b.Scope)),
		PayloadName: openapi.PascalCase(b.HandlerName) + "Request",
		Parameters:  parameters(b, method.Body.QueryParams),
	}
	if op.Narrative == "" {
		op.Narrative = Narrative(b.Verb, b.Path, b.Scope)
	}
	if s.SchemeName != "" {
		op.Security = []openapi.SecurityRequirement{{s.SchemeName: []string{}}}
	}

	if payloadVerbs[b.Verb] && len(method.Body.PayloadFields) > 0 {
		for _, f := range method.Body.PayloadFields {
			if f.Shape == nil || f.Shape.Kind == source.KindUnknown {
				return nil, &Error{Err: ErrUntypedField, Construct: fmt.Sprintf("payload field %q", f.Name), Pos: f.Pos}
			}
		}
		op.Payload = &source.Shape{Kind: source.KindObject, Fields: method.Body.PayloadFields}
	}

	responses, err := s.responses(method.Body)
	if err != nil {
		return nil, err
	}
	op.Responses = responses

	return op, nil
}

func parameters(b *resolve.Binding, queries []string) []*openapi.Parameter {
	seen := make(map[string]bool)
	var params []*openapi.Parameter

	for _, v := range b.PathParameters {
		if seen[v.Name] {
			continue
		}
		seen[v.Name] = true
		params = append(params, openapi.PathParameter(v))
	}

	for _, q := range queries {
		if seen[q] {
			continue
		}
		seen[q] = true
		params = append(params, &openapi.Parameter{
			Name:   q,
			In:     "query",
			Schema: &openapi.Schema{Type: openapi.TypeString("string")},
		})
	}

	return params
}

// classify maps the body's signals to outcome kinds. Unknown sentinel
// errors are ignored: they are as often internal plumbing as outcomes.
func classify(body source.Observations) (map[OutcomeKind]bool, error) {
	kinds := make(map[OutcomeKind]bool)

	for _, sig := range body.Signals {
		switch sig.Kind {
		case source.SignalStatus:
			kind, ok := KindForStatus(sig.Code)
			if !ok {
				return nil, &Error{Err: ErrUnclassifiedOutcome, Construct: "status " + strconv.Itoa(sig.Code), Pos: sig.Pos}
			}
			kinds[kind] = true

		case source.SignalStatusName:
			code, ok := StatusForName(sig.Name)
			if !ok {
				return nil, &Error{Err: ErrUnclassifiedOutcome, Construct: "status constant " + sig.Name, Pos: sig.Pos}
			}
			kind, ok := KindForStatus(code)
			if !ok {
				return nil, &Error{Err: ErrUnclassifiedOutcome, Construct: fmt.Sprintf("status constant %s (%d)", sig.Name, code), Pos: sig.Pos}
			}
			kinds[kind] = true

		case source.SignalError:
			kind, ok := KindForError(sig.Name)
			if !ok {
				return nil, &Error{Err: ErrUnclassifiedOutcome, Construct: "error class " + sig.Name, Pos: sig.Pos}
			}
			kinds[kind] = true

		case source.SignalSentinel:
			if kind, ok := KindForError(sig.Name); ok {
				kinds[kind] = true
			}
		}
	}

	return kinds, nil
}

func (s *Synthesizer) responses(body source.Observations) ([]Outcome, error) {
	kinds, err := classify(body)
	if err != nil {
		return nil, err
	}

	primary := Accepted
	switch {
	case kinds[NoContent]:
		primary = NoContent
	case kinds[Created]:
		primary = Created
	}

	out := []Outcome{{
		Status:      strconv.Itoa(primary.Status()),
		Kind:        primary,
		Description: primary.Description(),
	}}
	if primary != NoContent {
		out[0].Shape = body.Response
	}

	var rest []OutcomeKind
	for kind := range kinds {
		if kind != primary {
			rest = append(rest, kind)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Status() < rest[j].Status() })

	for _, kind := range rest {
		outcome := Outcome{Status: strconv.Itoa(kind.Status()), Kind: kind}
		if tpl := kind.Template(); tpl != "" && s.Templates[tpl] {
			outcome.Template = tpl
		} else {
			outcome.Description = kind.Description()
		}
		out = append(out, outcome)
	}

	return out, nil
}

// Summary builds an imperative phrase of at most six words from a handler
// name: "getAssociationMembers" becomes "Get association members".
func Summary(handler string) string {
	words := openapi.Words(handler)
	if len(words) == 0 {
		return ""
	}
	if len(words) > maxSummaryWords {
		words = words[:maxSummaryWords]
	}
	words[0] = openapi.PascalCase(words[0])
	return strings.Join(words, " ")
}

// resourceSegment returns the last literal segment of an OpenAPI path, or
// the scope when there is none.
func resourceSegment(path, scope string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := segments[i]; seg != "" && !strings.HasPrefix(seg, "{") {
			return seg
		}
	}
	return scope
}

// Narrative synthesizes a one-sentence description of an operation from
// its verb and the resource it addresses.
func Narrative(verb, path, scope string) string {
	resource := strings.Join(openapi.Words(resourceSegment(path, scope)), " ")
	if resource == "" {
		resource = "resource"
	}
	plural := resource
	words := strings.Fields(resource)
	words[len(words)-1] = openapi.Singular(words[len(words)-1])
	singular := strings.Join(words, " ")

	var target string
	if segments := strings.Split(strings.Trim(path, "/"), "/"); len(segments) > 0 {
		if last := segments[len(segments)-1]; strings.HasPrefix(last, "{") && strings.HasSuffix(last, "}") {
			target = strings.Trim(last, "{}")
		}
	}

	switch verb {
	case http.MethodGet:
		if target != "" {
			return fmt.Sprintf("Returns the %s identified by %s.", singular, target)
		}
		return fmt.Sprintf("Returns the list of %s.", plural)
	case http.MethodPost:
		return fmt.Sprintf("Creates a new %s.", singular)
	case http.MethodPut:
		if target != "" {
			return fmt.Sprintf("Replaces the %s identified by %s.", singular, target)
		}
		return fmt.Sprintf("Replaces the %s.", plural)
	case http.MethodPatch:
		if target != "" {
			return fmt.Sprintf("Updates the %s identified by %s.", singular, target)
		}
		return fmt.Sprintf("Updates the %s.", plural)
	case http.MethodDelete:
		if target != "" {
			return fmt.Sprintf("Deletes the %s identified by %s.", singular, target)
		}
		return fmt.Sprintf("Deletes the %s.", plural)
	case http.MethodHead:
		if target != "" {
			return fmt.Sprintf("Checks whether the %s identified by %s exists.", singular, target)
		}
		return fmt.Sprintf("Checks the list of %s.", plural)
	default:
		return fmt.Sprintf("Describes the operations available on %s.", plural)
	}
}
