package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"nutriagent/store"
)

// ManagePreference records, annotates, and retracts food preferences. The
// (user, category, lowercased value) triple identifies an entry; create on an
// existing entry attaches notes instead of inserting a second row.
type ManagePreference struct {
	prefs *store.PreferenceLedger
}

func NewManagePreference(prefs *store.PreferenceLedger) *ManagePreference {
	return &ManagePreference{prefs: prefs}
}

func (t *ManagePreference) Name() string  { return "manage_preference" }
func (t *ManagePreference) Title() string { return "Manage Food Preference" }
func (t *ManagePreference) Description() string {
	return "Manage user food preferences. Create to remember something new about the user, " +
		"update to change notes on an existing preference, delete when it no longer applies " +
		"(e.g. \"I actually like mushrooms now\")."
}

func (t *ManagePreference) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"operation": {Type: "string", Enum: []any{"create", "update", "delete"}, Description: "Operation to perform"},
			"category": {
				Type:        "string",
				Enum:        enumOf(store.PreferenceCategories),
				Description: "Type of preference: like, dislike, allergy, dietary, cuisine, timing, portion, other",
			},
			"value": {Type: "string", Description: "The preference value, e.g. \"mushrooms\", \"vegetarian\", \"italian\""},
			"notes": {Type: "string", Description: "Optional context, e.g. \"texture issue\", \"religious reasons\""},
		},
		Required: []string{"operation", "category", "value"},
	}
}

func (t *ManagePreference) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	operation, ok := strArg(input, "operation")
	if !ok {
		return failure("operation is required"), nil
	}
	category, ok := strArg(input, "category")
	if !ok || !store.ValidPreferenceCategory(category) {
		return failure("category must be one of: like, dislike, allergy, dietary, cuisine, timing, portion, other"), nil
	}
	value, ok := strArg(input, "value")
	if !ok || len(value) > 200 {
		return failure("value is required and must be at most 200 characters"), nil
	}
	var notes *string
	if n, ok := strArg(input, "notes"); ok {
		notes = &n
	}

	existing, err := t.prefs.Find(ctx, ec.UserID, category, value)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	switch operation {
	case "delete":
		if existing == nil {
			return failure("Preference not found"), nil
		}
		if err := t.prefs.Delete(ctx, ec.UserID, existing.ID); err != nil {
			return nil, err
		}
		return success(map[string]any{"deleted": true}), nil

	case "update":
		if existing == nil {
			return failure("Preference not found"), nil
		}
		if err := t.prefs.AttachNotes(ctx, ec.UserID, existing.ID, notes); err != nil {
			return nil, err
		}
		return success(map[string]any{"updated": true}), nil

	case "create":
		if existing != nil {
			if notes != nil {
				if err := t.prefs.AttachNotes(ctx, ec.UserID, existing.ID, notes); err != nil {
					return nil, err
				}
			}
			return success(map[string]any{"already_existed": true}), nil
		}
		if _, err := t.prefs.Create(ctx, ec.UserID, category, value, notes); err != nil {
			return nil, err
		}
		return success(map[string]any{"created": true}), nil

	default:
		return failure("operation must be create, update, or delete"), nil
	}
}

func enumOf(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
