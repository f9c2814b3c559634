package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"nutriagent/store"
)

// QueryPantry lists the user's pantry, optionally filtered by category or a
// name search, grouped by category for the model.
type QueryPantry struct {
	pantry *store.PantryLedger
}

func NewQueryPantry(pantry *store.PantryLedger) *QueryPantry {
	return &QueryPantry{pantry: pantry}
}

func (t *QueryPantry) Name() string  { return "query_pantry" }
func (t *QueryPantry) Title() string { return "Query Pantry" }
func (t *QueryPantry) Description() string {
	return "Query the user's pantry/refrigerator to see what ingredients they have " +
		"available, filtered by category or searched by name. Useful for suggesting " +
		"meals based on what they have."
}

func (t *QueryPantry) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"category": {Type: "string", Enum: enumOf(store.PantryCategories), Description: "Filter by category (protein, vegetable, fruit, dairy, grain, pantry, beverage, other)"},
			"search":   {Type: "string", Description: "Search for a specific item by name"},
		},
	}
}

func (t *QueryPantry) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	category, _ := strArg(input, "category")
	search, _ := strArg(input, "search")

	items, err := t.pantry.ListByUser(ctx, ec.UserID)
	if err != nil {
		return nil, err
	}

	byCategory := map[string]any{}
	total := 0
	for _, item := range items {
		cat := "other"
		if item.Category != nil && *item.Category != "" {
			cat = *item.Category
		}
		if category != "" && cat != category {
			continue
		}
		if search != "" && !containsFold(item.Name, search) {
			continue
		}
		total++
		group, _ := byCategory[cat].([]map[string]any)
		byCategory[cat] = append(group, pantryItemPayload(&item))
	}

	return success(map[string]any{
		"total_items": total,
		"by_category": byCategory,
	}), nil
}

// ManagePantryItem adds, updates, or removes pantry items. Duplicate names
// are allowed, so delete without an id falls back to a substring name match
// and removes the first hit (best effort; query_pantry resolves exact ids).
type ManagePantryItem struct {
	pantry *store.PantryLedger
}

func NewManagePantryItem(pantry *store.PantryLedger) *ManagePantryItem {
	return &ManagePantryItem{pantry: pantry}
}

func (t *ManagePantryItem) Name() string  { return "manage_pantry_item" }
func (t *ManagePantryItem) Title() string { return "Manage Pantry Item" }
func (t *ManagePantryItem) Description() string {
	return "Add, update, or remove items from the user's pantry, e.g. \"I just bought " +
		"chicken\" or \"I'm out of eggs\"."
}

func (t *ManagePantryItem) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"operation": {Type: "string", Enum: []any{"add", "update", "delete"}, Description: "Operation to perform"},
			"name":      {Type: "string", Description: "Name of the item"},
			"category":  {Type: "string", Enum: enumOf(store.PantryCategories), Description: "Category: protein, vegetable, fruit, dairy, grain, pantry, beverage, other"},
			"quantity":  {Type: "number", Minimum: schemaPtr(0), Maximum: schemaPtr(10000), Description: "Quantity of the item"},
			"unit":      {Type: "string", Description: "Unit (lbs, oz, count, etc.)"},
			"item_id":   {Type: "string", Description: "Item ID (required for update, optional for delete)"},
		},
		Required: []string{"operation", "name"},
	}
}

func (t *ManagePantryItem) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	operation, ok := strArg(input, "operation")
	if !ok {
		return failure("operation is required"), nil
	}
	name, ok := strArg(input, "name")
	if !ok || len(name) > 200 {
		return failure("name is required and must be at most 200 characters"), nil
	}

	category, hasCategory := strArg(input, "category")
	if hasCategory && !store.ValidPantryCategory(category) {
		return failure("category must be one of: protein, vegetable, fruit, dairy, grain, pantry, beverage, other"), nil
	}
	quantity, hasQuantity := numArg(input, "quantity")
	if hasQuantity && (quantity < 0 || quantity > 10000) {
		return failure("quantity must be between 0 and 10000"), nil
	}
	unit, hasUnit := strArg(input, "unit")
	if hasUnit && len(unit) > 50 {
		return failure("unit must be at most 50 characters"), nil
	}

	switch operation {
	case "delete":
		if itemID, ok := uuidArg(input, "item_id"); ok {
			item, err := t.pantry.GetByID(ctx, ec.UserID, itemID)
			if errors.Is(err, store.ErrNotFound) {
				return failure("Item not found"), nil
			}
			if err != nil {
				return nil, err
			}
			if err := t.pantry.Delete(ctx, ec.UserID, itemID); err != nil {
				return nil, err
			}
			return success(map[string]any{
				"deleted": map[string]any{"id": item.ID.String(), "name": item.Name},
			}), nil
		}

		item, err := t.pantry.FindByName(ctx, ec.UserID, name)
		if errors.Is(err, store.ErrNotFound) {
			return failure("Item %q not found in pantry", name), nil
		}
		if err != nil {
			return nil, err
		}
		if err := t.pantry.Delete(ctx, ec.UserID, item.ID); err != nil {
			return nil, err
		}
		return success(map[string]any{
			"deleted": map[string]any{"id": item.ID.String(), "name": item.Name},
		}), nil

	case "update":
		itemID, ok := uuidArg(input, "item_id")
		if !ok {
			return failure("Item ID required for update"), nil
		}

		updates := map[string]any{"name": name}
		if hasCategory {
			updates["category"] = category
		}
		if hasQuantity {
			updates["quantity"] = quantity
		}
		if hasUnit {
			updates["unit"] = unit
		}

		updated, err := t.pantry.Update(ctx, ec.UserID, itemID, updates)
		if errors.Is(err, store.ErrNotFound) {
			return failure("Item not found"), nil
		}
		if err != nil {
			return nil, err
		}
		return success(map[string]any{"updated": pantryItemFull(updated)}), nil

	case "add":
		item := &store.PantryItem{UserID: ec.UserID, Name: name}
		if hasCategory {
			item.Category = &category
		}
		if hasQuantity {
			item.Quantity = &quantity
		}
		if hasUnit {
			item.Unit = &unit
		}
		added, err := t.pantry.Add(ctx, item)
		if err != nil {
			return nil, err
		}
		return success(map[string]any{"added": pantryItemFull(added)}), nil

	default:
		return failure("operation must be add, update, or delete"), nil
	}
}

func pantryItemPayload(item *store.PantryItem) map[string]any {
	return map[string]any{
		"id":       item.ID.String(),
		"name":     item.Name,
		"quantity": floatOrNil(item.Quantity),
		"unit":     strOrNil(item.Unit),
	}
}

func pantryItemFull(item *store.PantryItem) map[string]any {
	payload := pantryItemPayload(item)
	payload["category"] = strOrNil(item.Category)
	return payload
}

func strOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
