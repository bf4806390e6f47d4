package surface

import (
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/aupadhyay/thoughts/internal/action"
)

const (
	openAPIVersion = "3.0.3"
	errorSchemaRef = "#/components/schemas/Error"
)

func newDocument(info Info) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: openAPIVersion,
		Info: &openapi3.Info{
			Title:       info.Title,
			Version:     info.Version,
			Description: info.Description,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				"Error": openapi3.NewSchemaRef("", errorSchema()),
			},
		},
	}
	for _, url := range info.Servers {
		doc.Servers = append(doc.Servers, &openapi3.Server{URL: url})
	}
	return doc
}

func errorSchema() *openapi3.Schema {
	violation := openapi3.NewObjectSchema().
		WithProperty("path", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema())
	violation.Required = []string{"path", "message"}

	s := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("kind", openapi3.NewStringSchema().WithEnum(
			string(action.InvalidInput),
			string(action.OperationFailed),
			string(action.OutputContractViolation),
			string(action.UnknownOperation),
		)).
		WithProperty("violations", openapi3.NewArraySchema().WithItems(violation))
	s.Required = []string{"error"}
	return s
}

func describeOperation(op action.Operation) *openapi3.Operation {
	o := &openapi3.Operation{
		OperationID: op.Name(),
		Summary:     op.Description(),
	}

	if op.Input().HasFields() {
		o.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchema(toOpenAPI(op.Input())),
		}
	}

	ok := openapi3.NewResponse().
		WithDescription("Successful response").
		WithJSONSchema(toOpenAPI(op.Output()))
	failed := openapi3.NewResponse().
		WithDescription("Error response").
		WithJSONSchemaRef(&openapi3.SchemaRef{Ref: errorSchemaRef, Value: errorSchema()})

	o.Responses = openapi3.NewResponses(
		openapi3.WithStatus(200, &openapi3.ResponseRef{Value: ok}),
		openapi3.WithStatus(500, &openapi3.ResponseRef{Value: failed}),
	)
	return o
}

// toOpenAPI renders a schema descriptor as an OpenAPI 3.0 schema.
func toOpenAPI(s *action.Schema) *openapi3.Schema {
	var out *openapi3.Schema
	switch s.Kind {
	case action.KindString:
		out = openapi3.NewStringSchema()
	case action.KindNumber:
		out = openapi3.NewFloat64Schema()
	case action.KindInteger:
		out = openapi3.NewIntegerSchema()
	case action.KindBoolean:
		out = openapi3.NewBoolSchema()
	case action.KindArray:
		out = openapi3.NewArraySchema().WithItems(toOpenAPI(s.Items))
	case action.KindObject:
		out = openapi3.NewObjectSchema()
		var required []string
		for _, f := range s.Fields {
			out.WithProperty(f.Name, toOpenAPI(f.Schema))
			if !f.Optional {
				required = append(required, f.Name)
			}
		}
		out.Required = required
		out.WithoutAdditionalProperties()
	default:
		out = &openapi3.Schema{}
	}

	out.Nullable = s.Nullable
	out.Description = s.Description
	if s.Format != "" {
		out.Format = s.Format
	}
	applyRules(out, s)
	return out
}

// applyRules copies min and max validator tags into the schema. Other tags are
// enforced at runtime only.
func applyRules(out *openapi3.Schema, s *action.Schema) {
	if s.Rules == "" {
		return
	}
	for _, rule := range strings.Split(s.Rules, ",") {
		name, param, _ := strings.Cut(rule, "=")
		switch s.Kind {
		case action.KindString:
			n, err := strconv.ParseUint(param, 10, 64)
			if err != nil {
				continue
			}
			switch name {
			case "min":
				out.MinLength = n
			case "max":
				out.MaxLength = &n
			}
		case action.KindNumber, action.KindInteger:
			f, err := strconv.ParseFloat(param, 64)
			if err != nil {
				continue
			}
			switch name {
			case "min":
				out.Min = &f
			case "max":
				out.Max = &f
			}
		}
	}
}
