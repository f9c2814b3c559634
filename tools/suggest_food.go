package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// SuggestFood is the one pure tool in the catalog: it validates and echoes a
// food suggestion for the client to optionally log. Nothing is persisted.
type SuggestFood struct{}

func NewSuggestFood() *SuggestFood { return &SuggestFood{} }

func (t *SuggestFood) Name() string  { return "suggest_food" }
func (t *SuggestFood) Title() string { return "Suggest Food" }
func (t *SuggestFood) Description() string {
	return "Suggest a food item that the user can log to their diary."
}

func (t *SuggestFood) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":     {Type: "string", Description: "The name of the food or meal"},
			"calories": {Type: "integer", Minimum: schemaPtr(0), Maximum: schemaPtr(50000), Description: "Estimated calories"},
			"protein":  {Type: "integer", Minimum: schemaPtr(0), Maximum: schemaPtr(5000), Description: "Protein in grams"},
			"carbs":    {Type: "integer", Minimum: schemaPtr(0), Maximum: schemaPtr(5000), Description: "Carbohydrates in grams"},
			"fat":      {Type: "integer", Minimum: schemaPtr(0), Maximum: schemaPtr(5000), Description: "Fat in grams"},
		},
		Required: []string{"name", "calories", "protein", "carbs", "fat"},
	}
}

func (t *SuggestFood) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	name, ok := strArg(input, "name")
	if !ok || len(name) > 200 {
		return failure("name is required and must be at most 200 characters"), nil
	}
	calories, ok := intArg(input, "calories")
	if !ok || calories < 0 || calories > 50000 {
		return failure("calories must be an integer between 0 and 50000"), nil
	}

	macros := map[string]int{}
	for _, key := range []string{"protein", "carbs", "fat"} {
		v, ok := intArg(input, key)
		if !ok || v < 0 || v > 5000 {
			return failure("%s must be an integer between 0 and 5000", key), nil
		}
		macros[key] = v
	}

	return success(map[string]any{
		"suggestion": map[string]any{
			"name":     name,
			"calories": calories,
			"protein":  macros["protein"],
			"carbs":    macros["carbs"],
			"fat":      macros["fat"],
		},
	}), nil
}
