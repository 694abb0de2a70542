package llm

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// ListSchema describes a JSON object with exactly one required array of
// strings.
type ListSchema struct {
	Name            string
	Field           string
	Description     string
	ItemDescription string
	MinItems        int
	MaxItems        int
}

func (l ListSchema) Schema() *Schema {
	return &Schema{
		Name:   l.Name,
		Strict: true,
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				l.Field: map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":        "string",
						"description": l.ItemDescription,
					},
					"minItems":    l.MinItems,
					"maxItems":    l.MaxItems,
					"description": l.Description,
				},
			},
			"required":             []string{l.Field},
			"additionalProperties": false,
		},
	}
}

// Parse validates raw against the schema before reading any field. An empty
// array is valid and yields an empty slice.
func (l ListSchema) Parse(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("parse %s: invalid JSON", l.Name)
	}

	root := gjson.Parse(raw)
	if !root.IsObject() {
		return nil, fmt.Errorf("parse %s: not an object", l.Name)
	}

	fields := root.Map()

	var unexpected []string
	for key := range fields {
		if key != l.Field {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		slices.Sort(unexpected)
		return nil, fmt.Errorf("parse %s: unexpected properties %v", l.Name, unexpected)
	}

	field, ok := fields[l.Field]
	if !ok {
		return nil, fmt.Errorf("parse %s: missing %q", l.Name, l.Field)
	}
	if !field.IsArray() {
		return nil, fmt.Errorf("parse %s: %q is not an array", l.Name, l.Field)
	}

	values := field.Array()
	if l.MaxItems > 0 && len(values) > l.MaxItems {
		return nil, fmt.Errorf("parse %s: %d items exceed maximum %d", l.Name, len(values), l.MaxItems)
	}

	items := make([]string, 0, len(values))
	for i, v := range values {
		if v.Type != gjson.String {
			return nil, fmt.Errorf("parse %s: item %d is not a string", l.Name, i)
		}

		if item := strings.TrimSpace(v.String()); item != "" {
			items = append(items, item)
		}
	}

	return items, nil
}

// ExtractList sends a structured request and returns the validated items.
func ExtractList(
	ctx context.Context,
	ex Extractor,
	system string,
	user string,
	schema ListSchema,
) ([]string, error) {
	raw, err := ex.Extract(ctx, Contract{
		System: system,
		User:   user,
		Schema: schema.Schema(),
	})
	if err != nil {
		return nil, err
	}

	items, err := schema.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	return items, nil
}
