package tools

import (
	"context"
	"fmt"
	"log/slog"

	"nutriagent/images"
	"nutriagent/store"
)

// Registry maps tool names to implementations. The catalog is fixed; every
// tool is constructed here so a catalog entry without a handler cannot exist.
type Registry map[string]Tool

// NewRegistry wires the full tool catalog over the given store and image
// storage.
func NewRegistry(st *store.Store, img images.Store) (*Registry, error) {
	catalog := []Tool{
		NewSuggestFood(),
		NewManagePreference(st.Preferences),
		NewQueryMealHistory(st.Meals),
		NewQueryWeightHistory(st.Weights, st.Profiles),
		NewUpdateGoals(st.Profiles),
		NewLogWeight(st.Weights, st.Profiles),
		NewLogWater(st.Water, st.Profiles),
		NewDeleteMeal(st.Meals, img),
		NewEditMeal(st.Meals),
		NewQueryPantry(st.Pantry),
		NewManagePantryItem(st.Pantry),
		NewQueryShoppingLists(st.Shopping),
		NewManageShoppingList(st.Shopping),
		NewAddToShoppingList(st.Shopping),
		NewRemoveFromShoppingList(st.Shopping),
		NewMarkShoppingItemsBought(st.Shopping, st.Pantry),
	}

	tools := make(map[string]Tool, len(catalog))
	for _, tool := range catalog {
		if _, exists := tools[tool.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool name %q in catalog", tool.Name())
		}
		tools[tool.Name()] = tool
	}

	registry := Registry(tools)
	return &registry, nil
}

// GetTools returns all tools in the registry as a slice
func (r *Registry) GetTools() []Tool {
	tools := make([]Tool, 0, len(*r))
	for _, tool := range *r {
		tools = append(tools, tool)
	}
	return tools
}

// GetTool retrieves a tool by name from the registry
func (r Registry) GetTool(name string) (Tool, error) {
	tool, exists := r[name]
	if !exists {
		return nil, fmt.Errorf("tool %q not found in registry", name)
	}
	return tool, nil
}

// Execute runs one tool call and always returns a result payload. Failures
// of every kind, including an invalid execution context and unexpected store
// errors, come back as {"success": false} payloads the model can read;
// nothing is thrown past this boundary. Store error detail is logged here
// and redacted from the payload.
func (r Registry) Execute(ctx context.Context, ec ExecContext, call Call) map[string]any {
	if err := ec.Validate(); err != nil {
		slog.Error("TOOLS: refusing call with invalid execution context", "tool", call.Name, "error", err)
		return failure("invalid tool execution context")
	}

	tool, err := r.GetTool(call.Name)
	if err != nil {
		return failure("unknown tool %q", call.Name)
	}

	out, err := tool.Run(ctx, ec, call.Input)
	if err != nil {
		slog.Error("TOOLS: execution failed", "tool", call.Name, "error", err)
		return failure("%s failed, try again", call.Name)
	}
	return out
}
