package tools

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutriagent/store"
)

func addItems(t *testing.T, st *store.Store, ec ExecContext, listName string, names ...string) map[string]any {
	t.Helper()
	items := make([]any, len(names))
	for i, name := range names {
		items[i] = map[string]any{"name": name}
	}
	input := map[string]any{"items": items}
	if listName != "" {
		input["list_name"] = listName
	}
	result, err := NewAddToShoppingList(st.Shopping).Run(context.Background(), ec, input)
	require.NoError(t, err)
	require.Equal(t, true, result["success"])
	return result
}

func TestAddToShoppingList_DefaultListCreatedOnDemand(t *testing.T) {
	_, st := newTestRegistry(t)
	ctx := context.Background()
	ec := testContext()

	result := addItems(t, st, ec, "", "eggs", "spinach")
	assert.Equal(t, DefaultShoppingListName, result["list_name"])
	assert.Equal(t, 2, result["added_count"])

	// A second add reuses the same default list.
	addItems(t, st, ec, "", "milk")
	lists, err := st.Shopping.ListsByUser(ctx, ec.UserID)
	require.NoError(t, err)
	require.Len(t, lists, 1)

	items, err := st.Shopping.ItemsByList(ctx, lists[0].ID)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestAddToShoppingList_Validation(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewAddToShoppingList(st.Shopping)
	ctx := context.Background()
	ec := testContext()

	result, err := tool.Run(ctx, ec, map[string]any{"items": []any{}})
	require.NoError(t, err)
	assert.Equal(t, false, result["success"])

	result, err = tool.Run(ctx, ec, map[string]any{
		"items": []any{map[string]any{"quantity": 2.0}},
	})
	require.NoError(t, err)
	assert.Equal(t, false, result["success"], "items need names")
}

func TestManageShoppingList_Lifecycle(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewManageShoppingList(st.Shopping)
	ctx := context.Background()
	ec := testContext()

	result, err := tool.Run(ctx, ec, map[string]any{"operation": "create", "name": "Costco"})
	require.NoError(t, err)
	created := result["created"].(map[string]any)

	result, err = tool.Run(ctx, ec, map[string]any{
		"operation": "rename", "name": "Costco Run", "list_id": created["id"],
	})
	require.NoError(t, err)
	assert.Equal(t, "Costco Run", result["updated"].(map[string]any)["name"])

	// Foreign rename and delete read as "not found".
	stranger := testContext()
	for _, op := range []string{"rename", "delete"} {
		result, err = tool.Run(ctx, stranger, map[string]any{
			"operation": op, "name": "Hijacked", "list_id": created["id"],
		})
		require.NoError(t, err)
		assert.Equal(t, false, result["success"], op)
		assert.Equal(t, "List not found", result["error"], op)
	}

	result, err = tool.Run(ctx, ec, map[string]any{
		"operation": "delete", "name": "Costco Run", "list_id": created["id"],
	})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
}

func TestQueryShoppingLists_CountsAndFilter(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewQueryShoppingLists(st.Shopping)
	ctx := context.Background()
	ec := testContext()

	addItems(t, st, ec, "Groceries", "eggs", "bread", "butter")
	addItems(t, st, ec, "Hardware", "nails")

	lists, err := st.Shopping.ListsByUser(ctx, ec.UserID)
	require.NoError(t, err)
	var groceries store.ShoppingList
	for _, l := range lists {
		if l.Name == "Groceries" {
			groceries = l
		}
	}
	items, err := st.Shopping.ItemsByList(ctx, groceries.ID)
	require.NoError(t, err)
	require.NoError(t, st.Shopping.CheckItems(ctx, []uuid.UUID{items[0].ID}))

	result, err := tool.Run(ctx, ec, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 2, result["total_lists"])

	result, err = tool.Run(ctx, ec, map[string]any{"list_name": "groc"})
	require.NoError(t, err)
	require.Equal(t, 1, result["total_lists"])
	list := result["lists"].([]map[string]any)[0]
	assert.Equal(t, "Groceries", list["name"])
	assert.Equal(t, 3, list["item_count"])
	assert.Equal(t, 1, list["checked_count"])
}

func TestRemoveFromShoppingList(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewRemoveFromShoppingList(st.Shopping)
	ctx := context.Background()
	ec := testContext()

	added := addItems(t, st, ec, "Groceries", "whole milk", "oat milk", "bread")
	items := added["items"].([]map[string]any)

	result, err := tool.Run(ctx, ec, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, false, result["success"], "needs ids or names")

	// Remove one by exact id.
	result, err = tool.Run(ctx, ec, map[string]any{
		"item_ids": []any{items[2]["id"]},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result["removed_count"])

	// Remove the rest by name substring.
	result, err = tool.Run(ctx, ec, map[string]any{
		"item_names": []any{"milk"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result["removed_count"])

	remaining, err := st.Shopping.ItemsOwnedBy(ctx, ec.UserID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRemoveFromShoppingList_ForeignItemsIgnored(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewRemoveFromShoppingList(st.Shopping)
	ctx := context.Background()
	owner := testContext()

	added := addItems(t, st, owner, "Groceries", "eggs")
	items := added["items"].([]map[string]any)

	stranger := testContext()
	result, err := tool.Run(ctx, stranger, map[string]any{
		"item_ids": []any{items[0]["id"]},
	})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, 0, result["removed_count"], "foreign items silently skip")

	remaining, err := st.Shopping.ItemsOwnedBy(ctx, owner.UserID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestMarkShoppingItemsBought_Promotion(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewMarkShoppingItemsBought(st.Shopping, st.Pantry)
	ctx := context.Background()
	ec := testContext()

	added := addItems(t, st, ec, "Groceries", "chicken", "spinach", "rice")
	items := added["items"].([]map[string]any)

	result, err := tool.Run(ctx, ec, map[string]any{
		"item_ids": []any{items[0]["id"], items[1]["id"]},
	})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, 2, result["marked_bought"])
	assert.Equal(t, 2, result["added_to_pantry"])

	owned, err := st.Shopping.ItemsOwnedBy(ctx, ec.UserID)
	require.NoError(t, err)
	checkedByName := map[string]bool{}
	for _, item := range owned {
		checkedByName[item.Name] = item.Checked
	}
	assert.True(t, checkedByName["chicken"])
	assert.True(t, checkedByName["spinach"])
	assert.False(t, checkedByName["rice"], "unselected item stays unchecked")

	pantry, err := st.Pantry.ListByUser(ctx, ec.UserID)
	require.NoError(t, err)
	assert.Len(t, pantry, 2)
}

func TestMarkShoppingItemsBought_SkipPantry(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewMarkShoppingItemsBought(st.Shopping, st.Pantry)
	ctx := context.Background()
	ec := testContext()

	added := addItems(t, st, ec, "Groceries", "soap")
	items := added["items"].([]map[string]any)

	result, err := tool.Run(ctx, ec, map[string]any{
		"item_ids": []any{items[0]["id"]}, "add_to_pantry": false,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result["marked_bought"])
	assert.Equal(t, 0, result["added_to_pantry"])

	pantry, err := st.Pantry.ListByUser(ctx, ec.UserID)
	require.NoError(t, err)
	assert.Empty(t, pantry)
}

func TestMarkShoppingItemsBought_ForeignItemsInvalid(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewMarkShoppingItemsBought(st.Shopping, st.Pantry)
	ctx := context.Background()
	owner := testContext()

	added := addItems(t, st, owner, "Groceries", "eggs")
	items := added["items"].([]map[string]any)

	result, err := tool.Run(ctx, testContext(), map[string]any{
		"item_ids": []any{items[0]["id"]},
	})
	require.NoError(t, err)
	assert.Equal(t, false, result["success"])
	assert.Equal(t, "No valid items found", result["error"])
}
