package analysis

import (
	"reflect"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// resultSchema is the output schema of one task, in the form sent to the
// model and in the form used to validate its answer.
type resultSchema struct {
	genai    *genai.Schema
	resolved *jsonschema.Resolved
}

func newResultSchema[R any]() (*resultSchema, error) {
	statuses := make([]any, len(model.CropStatuses))
	for i, s := range model.CropStatuses {
		statuses[i] = string(s)
	}

	schema, err := jsonschema.For[R](&jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[model.CropStatus](): {Type: "string", Enum: statuses},
		},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to infer result schema")
	}

	// Extra keys in the answer are ignored when decoding.
	schema.AdditionalProperties = nil

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve result schema")
	}

	converted, err := convertJSONSchemaToGenai(schema)
	if err != nil {
		return nil, err
	}

	return &resultSchema{genai: converted, resolved: resolved}, nil
}

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	genaiSchema := &genai.Schema{}

	typeName := schema.Type
	if typeName == "" {
		// Pointer fields infer as ["null", T].
		for _, t := range schema.Types {
			if t == "null" {
				genaiSchema.Nullable = genai.Ptr(true)
				continue
			}
			typeName = t
		}
	}

	switch typeName {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	case "":
	default:
		return nil, goerr.New("unsupported schema type", goerr.V("type", typeName))
	}

	genaiSchema.Description = schema.Description

	if len(schema.Enum) > 0 {
		genaiSchema.Enum = make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			if s, ok := v.(string); ok {
				genaiSchema.Enum = append(genaiSchema.Enum, s)
			}
		}
	}

	if len(schema.Properties) > 0 {
		genaiSchema.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			genaiSchema.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		genaiSchema.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		genaiSchema.Items = converted
	}

	return genaiSchema, nil
}
