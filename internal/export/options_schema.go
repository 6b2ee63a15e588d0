package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// optionsSchema is the contract for the free-form options map accepted at
// job creation. The orchestrator does not interpret these keys; renderers
// do. Unknown keys are rejected so typos fail at creation, not mid-render.
const optionsSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "table":             {"type": "string", "minLength": 1},
    "limit_rows":        {"type": "integer", "minimum": 1},
    "include_summaries": {"type": "boolean"},
    "chart_kind":        {"type": "string", "enum": ["bar", "line"]},
    "precision":         {"type": "integer", "minimum": 0, "maximum": 10}
  }
}`

var (
	optionsSchemaOnce     sync.Once
	optionsSchemaCompiled *jsonschema.Schema
	optionsSchemaErr      error
)

func compiledOptionsSchema() (*jsonschema.Schema, error) {
	optionsSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("options.json", strings.NewReader(optionsSchema)); err != nil {
			optionsSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		optionsSchemaCompiled, optionsSchemaErr = compiler.Compile("options.json")
	})
	return optionsSchemaCompiled, optionsSchemaErr
}

// ValidateOptions checks an options map against the schema. The map is
// round-tripped through JSON so native Go ints validate like decoded JSON
// numbers.
func ValidateOptions(options map[string]any) error {
	if len(options) == 0 {
		return nil
	}

	schema, err := compiledOptionsSchema()
	if err != nil {
		return fmt.Errorf("compile options schema: %w", err)
	}

	b, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal options: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("options do not match schema: %w", err)
	}
	return nil
}
