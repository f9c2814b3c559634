package tools

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"nutriagent/store"
)

// DefaultShoppingListName is the list add_to_shopping_list creates on demand
// when the model does not name one.
const DefaultShoppingListName = "Shopping List"

// QueryShoppingLists returns the user's lists with their items, unchecked
// items first, plus per-list counts.
type QueryShoppingLists struct {
	shopping *store.ShoppingLedger
}

func NewQueryShoppingLists(shopping *store.ShoppingLedger) *QueryShoppingLists {
	return &QueryShoppingLists{shopping: shopping}
}

func (t *QueryShoppingLists) Name() string  { return "query_shopping_lists" }
func (t *QueryShoppingLists) Title() string { return "Query Shopping Lists" }
func (t *QueryShoppingLists) Description() string {
	return "Query the user's shopping lists to see what they need to buy, what is " +
		"checked off, and plan grocery trips."
}

func (t *QueryShoppingLists) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"list_name": {Type: "string", Description: "Filter to a specific list by name"},
		},
	}
}

func (t *QueryShoppingLists) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	listName, _ := strArg(input, "list_name")

	lists, err := t.shopping.ListsByUser(ctx, ec.UserID)
	if err != nil {
		return nil, err
	}

	payload := make([]map[string]any, 0, len(lists))
	for _, list := range lists {
		if listName != "" && !containsFold(list.Name, listName) {
			continue
		}
		items, err := t.shopping.ItemsByList(ctx, list.ID)
		if err != nil {
			return nil, err
		}
		itemPayloads := make([]map[string]any, 0, len(items))
		checked := 0
		for _, item := range items {
			if item.Checked {
				checked++
			}
			itemPayloads = append(itemPayloads, shoppingItemPayload(&item))
		}
		payload = append(payload, map[string]any{
			"id":            list.ID.String(),
			"name":          list.Name,
			"item_count":    len(items),
			"checked_count": checked,
			"items":         itemPayloads,
		})
	}

	return success(map[string]any{
		"total_lists": len(payload),
		"lists":       payload,
	}), nil
}

// ManageShoppingList creates, renames, and deletes lists.
type ManageShoppingList struct {
	shopping *store.ShoppingLedger
}

func NewManageShoppingList(shopping *store.ShoppingLedger) *ManageShoppingList {
	return &ManageShoppingList{shopping: shopping}
}

func (t *ManageShoppingList) Name() string  { return "manage_shopping_list" }
func (t *ManageShoppingList) Title() string { return "Manage Shopping List" }
func (t *ManageShoppingList) Description() string {
	return "Create, rename, or delete shopping lists, e.g. \"create a Costco list\"."
}

func (t *ManageShoppingList) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"operation": {Type: "string", Enum: []any{"create", "rename", "delete"}, Description: "Operation to perform"},
			"name":      {Type: "string", Description: "Name of the list (for create/rename)"},
			"list_id":   {Type: "string", Description: "List ID (required for rename/delete)"},
		},
		Required: []string{"operation", "name"},
	}
}

func (t *ManageShoppingList) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	operation, ok := strArg(input, "operation")
	if !ok {
		return failure("operation is required"), nil
	}
	name, hasName := strArg(input, "name")
	if hasName && len(name) > 100 {
		return failure("name must be at most 100 characters"), nil
	}

	switch operation {
	case "delete":
		listID, ok := uuidArg(input, "list_id")
		if !ok {
			return failure("List ID required for delete"), nil
		}
		deleted, err := t.shopping.DeleteList(ctx, ec.UserID, listID)
		if errors.Is(err, store.ErrNotFound) {
			return failure("List not found"), nil
		}
		if err != nil {
			return nil, err
		}
		return success(map[string]any{
			"deleted": map[string]any{"id": deleted.ID.String(), "name": deleted.Name},
		}), nil

	case "rename":
		listID, ok := uuidArg(input, "list_id")
		if !ok {
			return failure("List ID required for rename"), nil
		}
		if !hasName {
			return failure("name is required for rename"), nil
		}
		updated, err := t.shopping.RenameList(ctx, ec.UserID, listID, name)
		if errors.Is(err, store.ErrNotFound) {
			return failure("List not found"), nil
		}
		if err != nil {
			return nil, err
		}
		return success(map[string]any{
			"updated": map[string]any{"id": updated.ID.String(), "name": updated.Name},
		}), nil

	case "create":
		if !hasName {
			return failure("name is required for create"), nil
		}
		created, err := t.shopping.CreateList(ctx, ec.UserID, name)
		if err != nil {
			return nil, err
		}
		return success(map[string]any{
			"created": map[string]any{"id": created.ID.String(), "name": created.Name},
		}), nil

	default:
		return failure("operation must be create, rename, or delete"), nil
	}
}

// AddToShoppingList bulk-adds items, creating the default list on demand when
// no list name is given.
type AddToShoppingList struct {
	shopping *store.ShoppingLedger
}

func NewAddToShoppingList(shopping *store.ShoppingLedger) *AddToShoppingList {
	return &AddToShoppingList{shopping: shopping}
}

func (t *AddToShoppingList) Name() string  { return "add_to_shopping_list" }
func (t *AddToShoppingList) Title() string { return "Add To Shopping List" }
func (t *AddToShoppingList) Description() string {
	return "Add items to a shopping list. If no list is specified, items go to the " +
		"default \"Shopping List\" (created if it doesn't exist)."
}

func (t *AddToShoppingList) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"items": {
				Type:        "array",
				Description: "Items to add to the shopping list",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"name":     {Type: "string", Description: "Name of the item"},
						"category": {Type: "string", Enum: enumOf(store.PantryCategories), Description: "Category: protein, vegetable, fruit, dairy, grain, pantry, beverage, other"},
						"quantity": {Type: "number", Minimum: schemaPtr(0), Description: "Quantity"},
						"unit":     {Type: "string", Description: "Unit (lbs, oz, count, etc.)"},
					},
					Required: []string{"name"},
				},
			},
			"list_name": {Type: "string", Description: "Name of the list to add to (defaults to \"Shopping List\")"},
		},
		Required: []string{"items"},
	}
}

func (t *AddToShoppingList) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	items, errMsg := parseItemInputs(input)
	if errMsg != "" {
		return failure("%s", errMsg), nil
	}
	if len(items) == 0 {
		return failure("No items provided"), nil
	}

	listName, ok := strArg(input, "list_name")
	if !ok {
		listName = DefaultShoppingListName
	}

	list, err := t.shopping.FindListByName(ctx, ec.UserID, listName)
	if errors.Is(err, store.ErrNotFound) {
		list, err = t.shopping.CreateList(ctx, ec.UserID, listName)
	}
	if err != nil {
		return nil, err
	}

	added, err := t.shopping.AddItems(ctx, ec.UserID, list.ID, items)
	if err != nil {
		return nil, err
	}

	payload := make([]map[string]any, 0, len(added))
	for _, item := range added {
		payload = append(payload, shoppingItemFull(&item))
	}

	return success(map[string]any{
		"list_name":   list.Name,
		"added_count": len(added),
		"items":       payload,
	}), nil
}

// RemoveFromShoppingList removes items by exact id or by name substring,
// optionally scoped to one list.
type RemoveFromShoppingList struct {
	shopping *store.ShoppingLedger
}

func NewRemoveFromShoppingList(shopping *store.ShoppingLedger) *RemoveFromShoppingList {
	return &RemoveFromShoppingList{shopping: shopping}
}

func (t *RemoveFromShoppingList) Name() string  { return "remove_from_shopping_list" }
func (t *RemoveFromShoppingList) Title() string { return "Remove From Shopping List" }
func (t *RemoveFromShoppingList) Description() string {
	return "Remove items from a shopping list when the user doesn't need them anymore " +
		"or already has them."
}

func (t *RemoveFromShoppingList) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"item_ids":   {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Specific item IDs to remove"},
			"item_names": {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Item names to search for and remove"},
			"list_name":  {Type: "string", Description: "List to remove from (searches all lists if not specified)"},
		},
	}
}

func (t *RemoveFromShoppingList) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	itemIDs := strSliceArg(input, "item_ids")
	itemNames := strSliceArg(input, "item_names")
	listName, _ := strArg(input, "list_name")

	if len(itemIDs) == 0 && len(itemNames) == 0 {
		return failure("Must provide item_ids or item_names"), nil
	}

	removed := make([]map[string]any, 0)

	for _, raw := range itemIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		item, err := t.shopping.GetItem(ctx, ec.UserID, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := t.shopping.DeleteItem(ctx, ec.UserID, item.ID); err != nil {
			return nil, err
		}
		removed = append(removed, map[string]any{"id": item.ID.String(), "name": item.Name})
	}

	for _, name := range itemNames {
		items, err := t.shopping.FindItemsByName(ctx, ec.UserID, name, listName)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if err := t.shopping.DeleteItem(ctx, ec.UserID, item.ID); err != nil {
				return nil, err
			}
			removed = append(removed, map[string]any{"id": item.ID.String(), "name": item.Name})
		}
	}

	return success(map[string]any{
		"removed_count": len(removed),
		"removed":       removed,
	}), nil
}

// MarkShoppingItemsBought checks off items and, by default, promotes them
// into the pantry ledger in one logical step.
type MarkShoppingItemsBought struct {
	shopping *store.ShoppingLedger
	pantry   *store.PantryLedger
}

func NewMarkShoppingItemsBought(shopping *store.ShoppingLedger, pantry *store.PantryLedger) *MarkShoppingItemsBought {
	return &MarkShoppingItemsBought{shopping: shopping, pantry: pantry}
}

func (t *MarkShoppingItemsBought) Name() string  { return "mark_shopping_items_bought" }
func (t *MarkShoppingItemsBought) Title() string { return "Mark Shopping Items Bought" }
func (t *MarkShoppingItemsBought) Description() string {
	return "Mark shopping list items as bought and optionally add them to the pantry, " +
		"e.g. after the user completes a shopping trip."
}

func (t *MarkShoppingItemsBought) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"item_ids":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "IDs of items to mark as bought"},
			"add_to_pantry": {Type: "boolean", Description: "Whether to add bought items to the pantry (default true)"},
		},
		Required: []string{"item_ids"},
	}
}

func (t *MarkShoppingItemsBought) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	rawIDs := strSliceArg(input, "item_ids")
	if len(rawIDs) == 0 {
		return failure("No items provided"), nil
	}
	addToPantry := boolArg(input, "add_to_pantry", true)

	wanted := make(map[uuid.UUID]bool, len(rawIDs))
	for _, raw := range rawIDs {
		if id, err := uuid.Parse(raw); err == nil {
			wanted[id] = true
		}
	}

	owned, err := t.shopping.ItemsOwnedBy(ctx, ec.UserID)
	if err != nil {
		return nil, err
	}

	var valid []store.ShoppingListItem
	for _, item := range owned {
		if wanted[item.ID] {
			valid = append(valid, item)
		}
	}
	if len(valid) == 0 {
		return failure("No valid items found"), nil
	}

	ids := make([]uuid.UUID, len(valid))
	for i, item := range valid {
		ids[i] = item.ID
	}
	if err := t.shopping.CheckItems(ctx, ids); err != nil {
		return nil, err
	}

	addedToPantry := 0
	if addToPantry {
		pantryItems := make([]store.PantryItem, len(valid))
		for i, item := range valid {
			pantryItems[i] = store.PantryItem{
				UserID:   ec.UserID,
				Name:     item.Name,
				Category: item.Category,
				Quantity: item.Quantity,
				Unit:     item.Unit,
			}
		}
		if _, err := t.pantry.AddBatch(ctx, pantryItems); err != nil {
			return nil, err
		}
		addedToPantry = len(valid)
	}

	summary := make([]map[string]any, len(valid))
	for i, item := range valid {
		summary[i] = map[string]any{"id": item.ID.String(), "name": item.Name}
	}

	return success(map[string]any{
		"marked_bought":   len(valid),
		"added_to_pantry": addedToPantry,
		"items":           summary,
	}), nil
}

// parseItemInputs decodes the items array shared by the shopping add tools.
// Returns a non-empty message on validation failure.
func parseItemInputs(input map[string]any) ([]store.ShoppingListItem, string) {
	raw, ok := input["items"].([]any)
	if !ok {
		return nil, "items must be an array"
	}

	items := make([]store.ShoppingListItem, 0, len(raw))
	for _, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, "each item must be an object"
		}
		name, ok := strArg(m, "name")
		if !ok || len(name) > 200 {
			return nil, "each item needs a name of at most 200 characters"
		}
		item := store.ShoppingListItem{Name: name}
		if category, ok := strArg(m, "category"); ok {
			if !store.ValidPantryCategory(category) {
				return nil, "invalid item category " + category
			}
			item.Category = &category
		}
		if quantity, ok := numArg(m, "quantity"); ok {
			if quantity <= 0 {
				return nil, "item quantity must be positive"
			}
			item.Quantity = &quantity
		}
		if unit, ok := strArg(m, "unit"); ok {
			if len(unit) > 50 {
				return nil, "item unit must be at most 50 characters"
			}
			item.Unit = &unit
		}
		items = append(items, item)
	}
	return items, ""
}

func shoppingItemPayload(item *store.ShoppingListItem) map[string]any {
	return map[string]any{
		"id":       item.ID.String(),
		"name":     item.Name,
		"category": strOrNil(item.Category),
		"quantity": floatOrNil(item.Quantity),
		"unit":     strOrNil(item.Unit),
		"checked":  item.Checked,
	}
}

func shoppingItemFull(item *store.ShoppingListItem) map[string]any {
	payload := shoppingItemPayload(item)
	delete(payload, "checked")
	return payload
}
