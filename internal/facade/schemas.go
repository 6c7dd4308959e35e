package facade

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaBaseURL = "https://michatta.local/schemas/"

// paramSchemas holds the params schema of each method that takes params.
var paramSchemas = map[string]string{
	MethodGetViewedItemsBatch: `{
		"type": "object",
		"required": ["ids"],
		"properties": {
			"ids": {"type": "array", "items": {"type": "string"}}
		}
	}`,
	MethodSaveViewedItem: `{
		"type": "object",
		"required": ["itemId"],
		"properties": {
			"itemId": {"type": "string", "minLength": 1}
		}
	}`,
	MethodSaveViewedItemsBulk: `{
		"type": "object",
		"required": ["items"],
		"properties": {
			"items": {
				"type": "object",
				"propertyNames": {"minLength": 1},
				"additionalProperties": {"type": "integer", "minimum": 0}
			}
		}
	}`,
	MethodSaveAlertSettings: `{
		"type": "object",
		"required": ["settings"],
		"properties": {
			"settings": {
				"type": "object",
				"properties": {
					"ratings": {"type": "integer"},
					"badRate": {"type": "number"},
					"listedDays": {"type": "integer"},
					"updatedDays": {"type": "integer"},
					"shipping47": {"type": "boolean"},
					"shipping8": {"type": "boolean"}
				}
			}
		}
	}`,
}

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	for method, text := range paramSchemas {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
		if err != nil {
			return nil, fmt.Errorf("parse %s schema: %w", method, err)
		}
		if err := compiler.AddResource(schemaBaseURL+method+".json", doc); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", method, err)
		}
	}
	compiled := make(map[string]*jsonschema.Schema, len(paramSchemas))
	for method := range paramSchemas {
		sch, err := compiler.Compile(schemaBaseURL + method + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", method, err)
		}
		compiled[method] = sch
	}
	return compiled, nil
}

// validateParams checks params against the method schema. Methods without a
// schema accept anything, including no params.
func (f *Facade) validateParams(method string, params json.RawMessage) error {
	sch, ok := f.schemas[method]
	if !ok {
		return nil
	}
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage("{}")
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(params))
	if err != nil {
		return fmt.Errorf("%w: params are not valid JSON", ErrInvalidParams)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParams, firstLine(err.Error()))
	}
	return nil
}

func firstLine(s string) string {
	if before, _, ok := strings.Cut(s, "\n"); ok {
		return before
	}
	return s
}
