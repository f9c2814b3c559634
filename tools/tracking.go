package tools

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"nutriagent/store"
)

// LogWeight records a weigh-in. Weight is idempotent per calendar day: a
// re-log on the same date updates the existing entry in place.
type LogWeight struct {
	weights  *store.WeightLedger
	profiles *store.ProfileLedger
}

func NewLogWeight(weights *store.WeightLedger, profiles *store.ProfileLedger) *LogWeight {
	return &LogWeight{weights: weights, profiles: profiles}
}

func (t *LogWeight) Name() string  { return "log_weight" }
func (t *LogWeight) Title() string { return "Log Weight" }
func (t *LogWeight) Description() string {
	return "Log a weight entry for the user, e.g. \"I weigh 175 lbs today\". " +
		"Always confirm the weight was logged successfully."
}

func (t *LogWeight) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"weight": {Type: "number", Minimum: schemaPtr(0), Maximum: schemaPtr(1500), Description: "The weight value to log (max 1500 lbs or ~680 kg)"},
			"date":   {Type: "string", Description: "Date for the entry in YYYY-MM-DD format (defaults to today)"},
		},
		Required: []string{"weight"},
	}
}

func (t *LogWeight) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	weight, ok := numArg(input, "weight")
	if !ok || weight <= 0 || weight > 1500 {
		return failure("weight must be a positive number up to 1500"), nil
	}
	date, ok := strArg(input, "date")
	if !ok {
		date = ec.Today()
	}

	profile := t.profileOrDefault(ctx, ec)

	existing, err := t.weights.FindByDate(ctx, ec.UserID, date)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if _, err := t.weights.UpdateWeight(ctx, existing.ID, weight); err != nil {
			return nil, err
		}
		return success(map[string]any{
			"updated":     true,
			"weight":      weight,
			"weight_unit": profile.WeightUnit(),
			"date":        date,
		}), nil
	}

	if _, err := t.weights.Create(ctx, &store.WeightLog{
		UserID:   ec.UserID,
		Weight:   weight,
		Date:     date,
		LoggedAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"created":     true,
		"weight":      weight,
		"weight_unit": profile.WeightUnit(),
		"date":        date,
		"weight_goal": floatOrNil(profile.WeightGoal),
	}

	// Delta against the newest entry dated before this one, so a backdated
	// log never compares against itself or a later entry.
	prev, err := t.weights.LatestBefore(ctx, ec.UserID, date)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if prev != nil {
		payload["previous_weight"] = prev.Weight
		payload["change"] = round1(weight - prev.Weight)
	}

	return success(payload), nil
}

func (t *LogWeight) profileOrDefault(ctx context.Context, ec ExecContext) *store.Profile {
	profile, err := t.profiles.Get(ctx, ec.UserID)
	if err != nil {
		return &store.Profile{Units: "imperial", CalorieGoal: 2200}
	}
	return profile
}

// QueryWeightHistory reads weigh-in history. The progress mode scans the full
// history backward to compute total, weekly, and monthly change against the
// oldest, ~7-day-prior, and ~30-day-prior entries.
type QueryWeightHistory struct {
	weights  *store.WeightLedger
	profiles *store.ProfileLedger
}

func NewQueryWeightHistory(weights *store.WeightLedger, profiles *store.ProfileLedger) *QueryWeightHistory {
	return &QueryWeightHistory{weights: weights, profiles: profiles}
}

func (t *QueryWeightHistory) Name() string  { return "query_weight_history" }
func (t *QueryWeightHistory) Title() string { return "Query Weight History" }
func (t *QueryWeightHistory) Description() string {
	return "Query the user's weight history and progress toward their goal. Answers " +
		"questions like \"How much have I lost?\" or \"What was my weight last week?\"."
}

func (t *QueryWeightHistory) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query":      {Type: "string", Enum: []any{"recent", "progress", "date_range"}, Description: "Type of query: recent entries, progress summary, or date range"},
			"limit":      {Type: "integer", Minimum: schemaPtr(1), Maximum: schemaPtr(100), Description: "Number of entries to return (for recent query)"},
			"start_date": {Type: "string", Description: "Start date in YYYY-MM-DD format (for date_range query)"},
			"end_date":   {Type: "string", Description: "End date in YYYY-MM-DD format (for date_range query)"},
		},
		Required: []string{"query"},
	}
}

func (t *QueryWeightHistory) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	query, ok := strArg(input, "query")
	if !ok {
		return failure("query is required"), nil
	}

	var profile *store.Profile
	profile, err := t.profiles.Get(ctx, ec.UserID)
	if errors.Is(err, store.ErrNotFound) {
		profile = &store.Profile{Units: "imperial"}
	} else if err != nil {
		return nil, err
	}

	switch query {
	case "recent":
		weights, err := t.weights.Recent(ctx, ec.UserID, limitArg(input, 10))
		if err != nil {
			return nil, err
		}
		return success(map[string]any{
			"count":       len(weights),
			"entries":     weightEntries(weights),
			"weight_unit": profile.WeightUnit(),
			"weight_goal": floatOrNil(profile.WeightGoal),
		}), nil

	case "progress":
		weights, err := t.weights.AllDesc(ctx, ec.UserID)
		if err != nil {
			return nil, err
		}
		if len(weights) == 0 {
			return success(map[string]any{
				"message":     "No weight entries recorded yet",
				"weight_unit": profile.WeightUnit(),
				"weight_goal": floatOrNil(profile.WeightGoal),
			}), nil
		}
		return success(t.progress(weights, profile)), nil

	case "date_range":
		start, okStart := strArg(input, "start_date")
		end, okEnd := strArg(input, "end_date")
		if !okStart || !okEnd {
			return failure("Start and end dates required for date_range query"), nil
		}
		weights, err := t.weights.ByDateRange(ctx, ec.UserID, start, end)
		if err != nil {
			return nil, err
		}
		return success(map[string]any{
			"count":       len(weights),
			"entries":     weightEntries(weights),
			"weight_unit": profile.WeightUnit(),
			"weight_goal": floatOrNil(profile.WeightGoal),
		}), nil

	default:
		return failure("Invalid query type"), nil
	}
}

func (t *QueryWeightHistory) progress(weights []store.WeightLog, profile *store.Profile) map[string]any {
	current := weights[0].Weight
	starting := weights[len(weights)-1].Weight

	now := time.Now()
	weekAgo := now.AddDate(0, 0, -7).Format("2006-01-02")
	monthAgo := now.AddDate(0, 0, -30).Format("2006-01-02")

	var weeklyChange, monthlyChange any
	for _, w := range weights {
		if w.Date <= weekAgo {
			weeklyChange = round1(current - w.Weight)
			break
		}
	}
	for _, w := range weights {
		if w.Date <= monthAgo {
			monthlyChange = round1(current - w.Weight)
			break
		}
	}

	var remainingToGoal any
	if profile.WeightGoal != nil {
		remainingToGoal = round1(current - *profile.WeightGoal)
	}

	return map[string]any{
		"current_weight":    current,
		"starting_weight":   starting,
		"total_change":      round1(current - starting),
		"weight_goal":       floatOrNil(profile.WeightGoal),
		"remaining_to_goal": remainingToGoal,
		"weekly_change":     weeklyChange,
		"monthly_change":    monthlyChange,
		"total_entries":     len(weights),
		"first_entry":       weights[len(weights)-1].Date,
		"last_entry":        weights[0].Date,
		"weight_unit":       profile.WeightUnit(),
	}
}

// LogWater accumulates water intake onto the day's running total.
type LogWater struct {
	water    *store.WaterLedger
	profiles *store.ProfileLedger
}

func NewLogWater(water *store.WaterLedger, profiles *store.ProfileLedger) *LogWater {
	return &LogWater{water: water, profiles: profiles}
}

func (t *LogWater) Name() string  { return "log_water" }
func (t *LogWater) Title() string { return "Log Water" }
func (t *LogWater) Description() string {
	return "Log water intake for the user, e.g. \"drank 16oz of water\". Common amounts: " +
		"glass ~8 oz / 240 ml, bottle ~16-20 oz / 500 ml, large bottle ~32 oz / 1000 ml."
}

func (t *LogWater) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"amount": {Type: "integer", Minimum: schemaPtr(1), Maximum: schemaPtr(5000), Description: "Amount of water in the user's preferred unit (oz for imperial, ml for metric)"},
			"date":   {Type: "string", Description: "Date for the entry in YYYY-MM-DD format (defaults to today)"},
		},
		Required: []string{"amount"},
	}
}

func (t *LogWater) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	amount, ok := intArg(input, "amount")
	if !ok || amount <= 0 || amount > 5000 {
		return failure("amount must be a positive integer up to 5000"), nil
	}
	date, ok := strArg(input, "date")
	if !ok {
		date = ec.Today()
	}

	var profile *store.Profile
	profile, err := t.profiles.Get(ctx, ec.UserID)
	if errors.Is(err, store.ErrNotFound) {
		profile = &store.Profile{Units: "imperial"}
	} else if err != nil {
		return nil, err
	}
	goal := profile.EffectiveWaterGoal()

	entry, err := t.water.Add(ctx, ec.UserID, date, amount)
	if err != nil {
		return nil, err
	}

	remaining := goal - entry.Amount
	if remaining < 0 {
		remaining = 0
	}

	return success(map[string]any{
		"logged":           amount,
		"total":            entry.Amount,
		"water_unit":       profile.WaterUnit(),
		"water_goal":       goal,
		"remaining":        remaining,
		"percent_complete": int(math.Round(float64(entry.Amount) / float64(goal) * 100)),
		"goal_reached":     entry.Amount >= goal,
		"date":             date,
	}), nil
}

// UpdateGoals upserts the user's calorie and/or weight goals.
type UpdateGoals struct {
	profiles *store.ProfileLedger
}

func NewUpdateGoals(profiles *store.ProfileLedger) *UpdateGoals {
	return &UpdateGoals{profiles: profiles}
}

func (t *UpdateGoals) Name() string  { return "update_goals" }
func (t *UpdateGoals) Title() string { return "Update Goals" }
func (t *UpdateGoals) Description() string {
	return "Update the user's daily calorie goal or target weight, e.g. \"Set my calorie " +
		"goal to 1800\" or \"I want to reach 150 lbs\"."
}

func (t *UpdateGoals) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"calorie_goal": {Type: "integer", Minimum: schemaPtr(1000), Maximum: schemaPtr(5000), Description: "New daily calorie goal (1000-5000)"},
			"weight_goal":  {Type: "number", Minimum: schemaPtr(0), Maximum: schemaPtr(1500), Description: "New target weight (in the user's preferred unit, max 1500)"},
		},
	}
}

func (t *UpdateGoals) Run(ctx context.Context, ec ExecContext, input map[string]any) (map[string]any, error) {
	var patch store.GoalPatch

	if v, ok := intArg(input, "calorie_goal"); ok {
		if v < 1000 || v > 5000 {
			return failure("calorie_goal must be between 1000 and 5000"), nil
		}
		patch.CalorieGoal = &v
	}
	if v, ok := numArg(input, "weight_goal"); ok {
		if v <= 0 || v > 1500 {
			return failure("weight_goal must be a positive number up to 1500"), nil
		}
		patch.WeightGoal = &v
	}
	if patch.CalorieGoal == nil && patch.WeightGoal == nil {
		return failure("At least one goal (calorie_goal or weight_goal) must be provided"), nil
	}

	profile, err := t.profiles.UpsertGoals(ctx, ec.UserID, patch)
	if err != nil {
		return nil, err
	}

	return success(map[string]any{
		"updated": map[string]any{
			"calorie_goal": profile.CalorieGoal,
			"weight_goal":  floatOrNil(profile.WeightGoal),
		},
	}), nil
}

func weightEntries(weights []store.WeightLog) []map[string]any {
	entries := make([]map[string]any, 0, len(weights))
	for _, w := range weights {
		entries = append(entries, map[string]any{
			"id":     w.ID.String(),
			"weight": w.Weight,
			"date":   w.Date,
		})
	}
	return entries
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
