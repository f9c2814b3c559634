package tools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"nutriagent/images"
	"nutriagent/store"
)

// QueryMealHistory is the read side of the meal log: recent entries, a single
// date, name search, or a date range, always with aggregated totals so the
// model does not have to do arithmetic.
type QueryMealHistory struct {
	meals *store.MealLedger
}

func NewQueryMealHistory(meals *store.MealLedger) *QueryMealHistory {
	return &QueryMealHistory{meals: meals}
}

func (t *QueryMealHistory) Name() string  { return "query_meal_history" }
func (t *QueryMealHistory) Title() string { return "Query Meal History" }
func (t *QueryMealHistory) Description() string {
	return "Query the user's meal history: recent entries, meals on a specific date, " +
		"search for foods they've logged, or a date range. Answers questions like " +
		"\"What did I have for lunch yesterday?\" or \"When did I last eat pizza?\"."
}

func (t *QueryMealHistory) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query":       {Type: "string", Enum: []any{"recent", "by_date", "search", "date_range"}, Description: "Type of query to perform"},
			"date":        {Type: "string", Description: "Date in YYYY-MM-DD format (for by_date query)"},
			"start_date":  {Type: "string", Description: "Start date in YYYY-MM-DD format (for date_range query)"},
			"end_date":    {Type: "string", Description: "End date in YYYY-MM-DD format (for date_range query)"},
			"search_term": {Type: "string", Description: "Food name to search for (for search query)"},
			"limit":       {Type: "integer", Minimum: schemaPtr(1), Maximum: schemaPtr(100), Description: "Maximum number of results to return"},
		},
		Required: []string{"query"},
	}
}

func (t *QueryMealHistory) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	query, ok := strArg(input, "query")
	if !ok {
		return failure("query is required"), nil
	}

	var (
		meals []store.MealLog
		err   error
	)

	switch query {
	case "recent":
		meals, err = t.meals.Recent(ctx, ec.UserID, limitArg(input, 10))

	case "by_date":
		date, ok := strArg(input, "date")
		if !ok {
			return failure("Date is required for by_date query"), nil
		}
		meals, err = t.meals.ByDate(ctx, ec.UserID, date)

	case "search":
		term, ok := strArg(input, "search_term")
		if !ok || len(term) > 200 {
			return failure("Search term is required for search query"), nil
		}
		meals, err = t.meals.Search(ctx, ec.UserID, term, limitArg(input, 10))

	case "date_range":
		start, okStart := strArg(input, "start_date")
		end, okEnd := strArg(input, "end_date")
		if !okStart || !okEnd {
			return failure("Start and end dates are required for date_range query"), nil
		}
		meals, err = t.meals.ByDateRange(ctx, ec.UserID, start, end, limitArg(input, 50))

	default:
		return failure("Invalid query type"), nil
	}
	if err != nil {
		return nil, err
	}

	entries := make([]map[string]any, 0, len(meals))
	for _, m := range meals {
		entries = append(entries, mealPayload(&m))
	}
	totals := store.SumTotals(meals)

	return success(map[string]any{
		"count": len(meals),
		"meals": entries,
		"totals": map[string]any{
			"calories": totals.Calories,
			"protein":  totals.Protein,
			"carbs":    totals.Carbs,
			"fat":      totals.Fat,
		},
	}), nil
}

// DeleteMeal removes one meal the caller owns and cleans up its stored image.
type DeleteMeal struct {
	meals  *store.MealLedger
	images images.Store
}

func NewDeleteMeal(meals *store.MealLedger, img images.Store) *DeleteMeal {
	return &DeleteMeal{meals: meals, images: img}
}

func (t *DeleteMeal) Name() string  { return "delete_meal" }
func (t *DeleteMeal) Title() string { return "Delete Meal" }
func (t *DeleteMeal) Description() string {
	return "Delete a meal from the user's log, e.g. \"delete that pizza\" or correcting " +
		"a mistaken entry. Use query_meal_history first to find the meal ID if needed."
}

func (t *DeleteMeal) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"meal_id": {Type: "string", Description: "The ID of the meal to delete"},
		},
		Required: []string{"meal_id"},
	}
}

func (t *DeleteMeal) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	mealID, ok := uuidArg(input, "meal_id")
	if !ok {
		return failure("Meal not found"), nil
	}

	meal, err := t.meals.Delete(ctx, ec.UserID, mealID)
	if errors.Is(err, store.ErrNotFound) {
		return failure("Meal not found"), nil
	}
	if err != nil {
		return nil, err
	}

	if meal.Image != nil && t.images != nil {
		// The meal row is already gone; image cleanup problems are logged,
		// not surfaced, so the user-visible outcome stays consistent. An
		// object already missing from storage is not an error.
		exists, err := t.images.Exists(ctx, *meal.Image)
		switch {
		case err != nil:
			slog.Warn("TOOLS: failed to check meal image", "meal_id", meal.ID, "key", *meal.Image, "error", err)
		case !exists:
			slog.Warn("TOOLS: meal image already gone from storage", "meal_id", meal.ID, "key", *meal.Image)
		default:
			if err := t.images.Delete(ctx, *meal.Image); err != nil {
				slog.Warn("TOOLS: failed to delete meal image", "meal_id", meal.ID, "key", *meal.Image, "error", err)
			}
		}
	}

	return success(map[string]any{
		"deleted": map[string]any{
			"id":       meal.ID.String(),
			"name":     meal.Name,
			"calories": meal.Calories,
			"date":     meal.MealDate,
		},
	}), nil
}

// EditMeal patches fields on an existing meal and echoes both the previous
// and updated values so the model can confirm the correction.
type EditMeal struct {
	meals *store.MealLedger
}

func NewEditMeal(meals *store.MealLedger) *EditMeal { return &EditMeal{meals: meals} }

func (t *EditMeal) Name() string  { return "edit_meal" }
func (t *EditMeal) Title() string { return "Edit Meal" }
func (t *EditMeal) Description() string {
	return "Edit an existing meal entry: change servings, correct calories or macros, or " +
		"rename the meal. Use query_meal_history first to find the meal ID if needed."
}

func (t *EditMeal) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"meal_id":  {Type: "string", Description: "The ID of the meal to edit"},
			"name":     {Type: "string", Description: "New name for the meal"},
			"calories": {Type: "integer", Minimum: schemaPtr(1), Maximum: schemaPtr(50000), Description: "Updated calories"},
			"protein":  {Type: "integer", Minimum: schemaPtr(0), Maximum: schemaPtr(5000), Description: "Updated protein in grams"},
			"carbs":    {Type: "integer", Minimum: schemaPtr(0), Maximum: schemaPtr(5000), Description: "Updated carbs in grams"},
			"fat":      {Type: "integer", Minimum: schemaPtr(0), Maximum: schemaPtr(5000), Description: "Updated fat in grams"},
			"servings": {Type: "number", Minimum: schemaPtr(0), Maximum: schemaPtr(100), Description: "Updated number of servings"},
		},
		Required: []string{"meal_id"},
	}
}

func (t *EditMeal) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	mealID, ok := uuidArg(input, "meal_id")
	if !ok {
		return failure("Meal not found"), nil
	}

	meal, err := t.meals.GetByID(ctx, ec.UserID, mealID)
	if errors.Is(err, store.ErrNotFound) {
		return failure("Meal not found"), nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name, ok := strArg(input, "name"); ok {
		if len(name) > 200 {
			return failure("name must be at most 200 characters"), nil
		}
		updates["name"] = name
	}
	if calories, ok := intArg(input, "calories"); ok {
		if calories <= 0 || calories > 50000 {
			return failure("calories must be an integer between 1 and 50000"), nil
		}
		updates["calories"] = calories
	}
	for _, key := range []string{"protein", "carbs", "fat"} {
		if v, ok := intArg(input, key); ok {
			if v < 0 || v > 5000 {
				return failure("%s must be an integer between 0 and 5000", key), nil
			}
			updates[key] = v
		}
	}
	if servings, ok := numArg(input, "servings"); ok {
		if servings <= 0 || servings > 100 {
			return failure("servings must be a positive number up to 100"), nil
		}
		updates["servings"] = servings
	}
	if len(updates) == 0 {
		return failure("No fields to update"), nil
	}

	updated, err := t.meals.Update(ctx, ec.UserID, mealID, updates)
	if errors.Is(err, store.ErrNotFound) {
		return failure("Meal not found"), nil
	}
	if err != nil {
		return nil, err
	}

	return success(map[string]any{
		"previous": map[string]any{
			"name":     meal.Name,
			"calories": meal.Calories,
			"protein":  intOrNil(meal.Protein),
			"carbs":    intOrNil(meal.Carbs),
			"fat":      intOrNil(meal.Fat),
			"servings": meal.Servings,
		},
		"updated": mealPayload(updated),
	}), nil
}

func mealPayload(m *store.MealLog) map[string]any {
	return map[string]any{
		"id":        m.ID.String(),
		"name":      m.Name,
		"calories":  m.Calories,
		"protein":   intOrNil(m.Protein),
		"carbs":     intOrNil(m.Carbs),
		"fat":       intOrNil(m.Fat),
		"servings":  m.Servings,
		"date":      m.MealDate,
		"logged_at": m.MealTime.Format(time.RFC3339),
	}
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
