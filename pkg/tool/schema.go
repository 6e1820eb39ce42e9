package tool

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects a parameter struct into a JSON-Schema subset
// suitable for tool declarations. A nil args value yields an empty object
// schema for zero-parameter tools.
//
// A parameter is required when it declares no default: neither a
// `jsonschema:"default=..."` tag nor an `omitempty` json tag. Pointer fields
// without a default stay required even though their type is optional.
func GenerateSchema(args any) (map[string]any, error) {
	if args == nil {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}, nil
	}

	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}

	schema := reflector.Reflect(args)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameter schema: %w", err)
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to decode parameter schema: %w", err)
	}

	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")
	recomputeRequired(schemaMap)

	return schemaMap, nil
}

// recomputeRequired drops defaulted parameters from the required list. The
// reflector already excludes omitempty fields; properties carrying an
// explicit default are excluded here as well.
func recomputeRequired(schemaMap map[string]any) {
	properties, ok := schemaMap["properties"].(map[string]any)
	if !ok {
		return
	}

	existing, _ := schemaMap["required"].([]any)
	required := make([]string, 0, len(existing))
	for _, v := range existing {
		name, ok := v.(string)
		if !ok {
			continue
		}
		prop, ok := properties[name].(map[string]any)
		if ok {
			if _, hasDefault := prop["default"]; hasDefault {
				continue
			}
		}
		required = append(required, name)
	}
	sort.Strings(required)

	if len(required) == 0 {
		delete(schemaMap, "required")
		return
	}
	schemaMap["required"] = required
}
