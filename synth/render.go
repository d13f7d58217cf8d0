package synth

import (
	"fmt"

	"github.com/vitalvas/routedoc/openapi"
	"github.com/vitalvas/routedoc/source"
)

const jsonMediaType = "application/json"

// SchemaPlanner turns a shape into a schema, either inline or as a
// reference to a shared component named after name.
type SchemaPlanner interface {
	Plan(shape *source.Shape, name string) (*openapi.Schema, error)
}

// Render converts the operation to its OpenAPI form, planning payload and
// response schemas through planner.
func (op *Operation) Render(planner SchemaPlanner) (*openapi.Operation, error) {
	out := &openapi.Operation{
		Tags:        []string{op.Tag},
		Summary:     op.Summary,
		Description: op.Narrative,
		Parameters:  op.Parameters,
		Responses:   make(openapi.Responses, len(op.Responses)),
		Security:    op.Security,
	}

	if op.Payload != nil {
		schema, err := planner.Plan(op.Payload, op.PayloadName)
		if err != nil {
			return nil, fmt.Errorf("request payload: %w", err)
		}
		out.RequestBody = &openapi.RequestBody{
			Required: true,
			Content:  map[string]*openapi.MediaType{jsonMediaType: {Schema: schema}},
		}
	}

	for _, outcome := range op.Responses {
		if outcome.Template != "" {
			out.Responses[outcome.Status] = &openapi.Response{Ref: openapi.ResponseRef(outcome.Template)}
			continue
		}

		resp := &openapi.Response{Description: outcome.Description}
		if outcome.Shape != nil {
			schema, err := planner.Plan(outcome.Shape, op.Resource)
			if err != nil {
				return nil, fmt.Errorf("response %s: %w", outcome.Status, err)
			}
			resp.Content = map[string]*openapi.MediaType{jsonMediaType: {Schema: schema}}
		}
		out.Responses[outcome.Status] = resp
	}

	return out, nil
}
