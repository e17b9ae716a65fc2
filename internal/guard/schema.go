package guard

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// NewSchemaCheck compiles per-tool JSON Schemas into a CustomCheck that
// validates keyword arguments before a call is forwarded. Schemas are keyed
// by base tool name; prefixed calls are matched after prefix stripping.
// Tools without a schema pass through.
func NewSchemaCheck(schemas map[string]map[string]any) (CustomCheck, error) {
	compiled := make(map[string]*jsonschema.Schema, len(schemas))
	for tool, schema := range schemas {
		sch, err := compileSchema(tool, schema)
		if err != nil {
			return nil, fmt.Errorf("schema for tool %q: %w", tool, err)
		}
		compiled[strings.ToLower(tool)] = sch
	}

	return func(toolName string, _ []any, kwargs map[string]any, p *Policy) error {
		nameLower := strings.ToLower(toolName)
		sch, ok := compiled[nameLower]
		if !ok {
			sch, ok = compiled[BaseToolName(nameLower, p.prefixMaxLen())]
		}
		if !ok {
			return nil
		}

		instance, err := toJSONValue(kwargs)
		if err != nil {
			return &Violation{
				ToolName: toolName,
				Type:     ViolationInvalidArguments,
				Message:  fmt.Sprintf("arguments for %q are not valid JSON: %v", toolName, err),
			}
		}
		if err := sch.Validate(instance); err != nil {
			return &Violation{
				ToolName: toolName,
				Type:     ViolationInvalidArguments,
				Message:  fmt.Sprintf("arguments for %q failed schema validation: %v", toolName, err),
			}
		}
		return nil
	}, nil
}

func compileSchema(tool string, schema map[string]any) (*jsonschema.Schema, error) {
	doc, err := toJSONValue(schema)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	url := tool + ".schema.json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// toJSONValue round-trips a value through encoding/json so the validator
// sees canonical JSON types (e.g. numbers as float64).
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
