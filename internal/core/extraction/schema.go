package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// receiptSchema describes the model answer after sanitizing, when every value is a string.
var receiptSchema = map[string]any{
	"type":     "object",
	"required": []string{"items"},
	"properties": map[string]any{
		"shop":  map[string]any{"type": "string"},
		"date":  map[string]any{"type": "string"},
		"total": map[string]any{"type": "string"},
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name", "total_price"},
				"properties": map[string]any{
					"name":        map[string]any{"type": "string", "minLength": 1},
					"quantity":    map[string]any{"type": "string"},
					"unit_price":  map[string]any{"type": "string"},
					"total_price": map[string]any{"type": "string"},
					"discount":    map[string]any{"type": "string"},
				},
			},
		},
	},
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("receipt_extraction.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("receipt_extraction.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// sanitize coerces the loosely typed model answer into the shape the schema expects:
// numbers become their literal text, nulls and booleans are dropped, and items that
// are not objects are skipped.
func sanitize(doc map[string]any) map[string]any {
	out := sanitizeObject(doc)

	rawItems, ok := doc["items"].([]any)
	if !ok {
		if _, present := doc["items"]; !present || doc["items"] == nil {
			out["items"] = []any{}
		}
		return out
	}

	items := make([]any, 0, len(rawItems))
	for _, raw := range rawItems {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, sanitizeObject(obj))
	}
	out["items"] = items
	return out
}

func sanitizeObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil, bool:
			continue
		case json.Number:
			out[k] = val.String()
		case string:
			out[k] = val
		default:
			out[k] = val
		}
	}
	return out
}
