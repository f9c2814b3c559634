package coordinator

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"nutriagent"
	"nutriagent/store"
)

// Fixed rendering order and labels per category. Unknown categories fall
// back to their raw key and render after the known ones.
var (
	preferenceCategoryOrder = []string{"like", "dislike", "allergy", "dietary", "cuisine", "timing", "portion", "other"}
	preferenceCategoryLabel = map[string]string{
		"like":    "Likes",
		"dislike": "Dislikes",
		"allergy": "Allergies",
		"dietary": "Dietary restrictions",
		"cuisine": "Cuisine preferences",
		"timing":  "Meal timing",
		"portion": "Portion preferences",
		"other":   "Other preferences",
	}

	pantryCategoryOrder = []string{"protein", "vegetable", "fruit", "dairy", "grain", "pantry", "beverage", "other"}
	pantryCategoryLabel = map[string]string{
		"protein":   "Proteins",
		"vegetable": "Vegetables",
		"fruit":     "Fruits",
		"dairy":     "Dairy",
		"grain":     "Grains",
		"pantry":    "Pantry staples",
		"beverage":  "Beverages",
		"other":     "Other",
	}
)

// NewPrompt builds the initial prompt for a turn: rendered system briefing,
// the caller's conversation so far, and the full tool catalog.
func NewPrompt(system string, history []Message, tp nutriagent.ToolProvider) Prompt {
	catalog := tp.GetTools()

	specs := make([]ToolSpec, 0, len(catalog))
	for _, tool := range catalog {
		specs = append(specs, ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, Message{
		Role:    "system",
		Content: MessageParts{{Type: "text", Text: system}},
	})
	messages = append(messages, history...)

	return Prompt{Messages: messages, Tools: specs}
}

// SystemPrompt renders the assistant briefing from the per-turn context.
// Rendering is deterministic: same context and instant, same string.
func SystemPrompt(ac *AssistantContext, now time.Time) string {
	loc := time.UTC
	if ac.Timezone != "" {
		if l, err := time.LoadLocation(ac.Timezone); err == nil {
			loc = l
		}
	}
	local := now.In(loc)

	remaining := ac.CalorieGoal - ac.CaloriesConsumed
	remainingDisplay := max(0, remaining)
	budget := budgetStatus(remaining)

	proteinPercent := 0
	if ac.CaloriesConsumed > 0 {
		proteinPercent = int(float64(ac.ProteinConsumed*4)/float64(ac.CaloriesConsumed)*100 + 0.5)
	}

	waterRemaining := max(0, ac.WaterGoal-ac.WaterConsumed)
	waterPercent := 0
	if ac.WaterGoal > 0 {
		waterPercent = int(float64(ac.WaterConsumed)/float64(ac.WaterGoal)*100 + 0.5)
	}
	waterTail := " - goal reached!"
	if waterRemaining > 0 {
		waterTail = fmt.Sprintf(" - %d to go", waterRemaining)
	}

	allergies := preferenceValues(ac.Preferences, "allergy")
	dietary := preferenceValues(ac.Preferences, "dietary")
	dislikes := preferenceValues(ac.Preferences, "dislike")
	likes := preferenceValues(ac.Preferences, "like")

	allergyLine := "No known allergies, but always ask about new ingredients."
	if len(allergies) > 0 {
		allergyLine = fmt.Sprintf("User is allergic to: %s. ALWAYS check recommendations against these and flag any potential exposure.", strings.Join(allergies, ", "))
	}

	var b strings.Builder

	b.WriteString("You are a personal nutrition assistant with expert knowledge of food science, calorie estimation, and dietary planning. You know this user's preferences, goals, and kitchen contents; use them to give personalized, actionable guidance.\n\n")

	b.WriteString("CRITICAL RULES:\n")
	b.WriteString("1. ALLERGIES ARE SAFETY-CRITICAL: " + allergyLine + "\n")
	b.WriteString("2. STAY ON TOPIC: only food, nutrition, meals, hydration, weight tracking, and dietary health.\n")
	b.WriteString("3. NEVER JUDGE: no guilt about food choices. If the user is over budget, acknowledge it kindly and help them plan.\n")
	b.WriteString("4. PRIVACY: never announce saving preferences. Just do it silently with the preference tool.\n\n")

	b.WriteString("CURRENT STATE:\n")
	fmt.Fprintf(&b, "Date: %s\n", local.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "Time of day: %s\n", timeOfDay(local.Hour()))
	units := ac.Units
	if units == "" {
		units = "imperial"
	}
	fmt.Fprintf(&b, "Units: %s (%s, %s)\n", units, ac.WeightUnit(), ac.WaterUnit())
	if ac.Sex != nil {
		fmt.Fprintf(&b, "Sex: %s\n", *ac.Sex)
	}
	if ac.ActivityLevel != "" {
		fmt.Fprintf(&b, "Activity: %s\n", ac.ActivityLevel)
	}
	b.WriteString("\nTODAY'S NUTRITION:\n")
	fmt.Fprintf(&b, "Calories: %d / %d kcal (%d remaining) [%s]\n", ac.CaloriesConsumed, ac.CalorieGoal, remainingDisplay, budget)
	fmt.Fprintf(&b, "Protein: %dg (~%d%% of intake)\n", ac.ProteinConsumed, proteinPercent)
	fmt.Fprintf(&b, "Carbs: %dg\n", ac.CarbsConsumed)
	fmt.Fprintf(&b, "Fat: %dg\n", ac.FatConsumed)
	fmt.Fprintf(&b, "Water: %d / %d %s (%d%%)%s\n", ac.WaterConsumed, ac.WaterGoal, ac.WaterUnit(), waterPercent, waterTail)

	b.WriteString("\nWEIGHT TRACKING:\n")
	if ac.CurrentWeight != nil {
		fmt.Fprintf(&b, "Current: %g %s\n", *ac.CurrentWeight, ac.WeightUnit())
	} else {
		b.WriteString("Current: Not logged recently\n")
	}
	if ac.WeightGoal != nil {
		fmt.Fprintf(&b, "Goal: %g %s\n", *ac.WeightGoal, ac.WeightUnit())
	} else {
		b.WriteString("Goal: Not set\n")
	}
	b.WriteString(weightProgressLine(ac.CurrentWeight, ac.WeightGoal, ac.WeightUnit()) + "\n")

	b.WriteString("\nUSER PROFILE:\n")
	fmt.Fprintf(&b, "DIETARY RESTRICTIONS: %s\n", joinOr(dietary, "None specified"))
	fmt.Fprintf(&b, "ALLERGIES: %s\n", joinOr(allergies, "None known"))
	fmt.Fprintf(&b, "DISLIKES: %s\n", joinOr(dislikes, "None recorded"))
	fmt.Fprintf(&b, "FAVORITES: %s\n", joinOr(likes, "Still learning their preferences"))

	b.WriteString("\nALL PREFERENCES:\n")
	b.WriteString(formatPreferences(ac.Preferences) + "\n")

	b.WriteString("\nPANTRY/FRIDGE:\n")
	b.WriteString(formatPantry(ac.Pantry) + "\n")

	b.WriteString("\nTOOL USE:\n")
	b.WriteString("Use suggest_food any time you recommend a specific meal, snack, or food item, with accurate calorie and macro estimates.\n")
	b.WriteString("Save preference signals silently with manage_preference; when a preference flips, delete the old entry first, then create the new one.\n")
	b.WriteString("Query before you mutate: use the query tools to find exact meal, pantry, and shopping item ids before editing or deleting.\n")
	b.WriteString("Log weight and water with the tracking tools as soon as the user reports them.\n")

	b.WriteString("\nRESPONSE STYLE:\n")
	b.WriteString("Concise and mobile-first. Reference their preferences. End with something they can do.\n")
	switch budget {
	case "comfortable":
		b.WriteString("The user has room in their budget: suggest satisfying meals freely.\n")
	case "tight":
		b.WriteString("The budget is tight: lead with lighter options and offer modifications.\n")
	default:
		b.WriteString("The user is over budget: be supportive, suggest light options or focus on planning tomorrow.\n")
	}

	return b.String()
}

func timeOfDay(hour int) string {
	switch {
	case hour < 11:
		return "morning"
	case hour < 14:
		return "midday"
	case hour < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

func budgetStatus(remaining int) string {
	switch {
	case remaining > 300:
		return "comfortable"
	case remaining > 0:
		return "tight"
	default:
		return "over"
	}
}

func weightProgressLine(current, goal *float64, unit string) string {
	if current == nil || goal == nil {
		return "Progress: Set a weight goal to track progress"
	}
	delta := *current - *goal
	switch {
	case delta > 0:
		return fmt.Sprintf("Progress: %.1f %s to lose", delta, unit)
	case delta < 0:
		return fmt.Sprintf("Progress: %.1f %s below goal!", -delta, unit)
	default:
		return "Progress: At goal!"
	}
}

func preferenceValues(prefs []store.Preference, category string) []string {
	var values []string
	for _, p := range prefs {
		if p.Category == category {
			values = append(values, p.Value)
		}
	}
	return values
}

func joinOr(values []string, empty string) string {
	if len(values) == 0 {
		return empty
	}
	return strings.Join(values, ", ")
}

func formatPreferences(prefs []store.Preference) string {
	if len(prefs) == 0 {
		return "No preferences recorded yet."
	}

	grouped := make(map[string][]string)
	for _, p := range prefs {
		entry := p.Value
		if p.Notes != nil && *p.Notes != "" {
			entry = fmt.Sprintf("%s (%s)", p.Value, *p.Notes)
		}
		grouped[p.Category] = append(grouped[p.Category], entry)
	}

	return renderGrouped(grouped, preferenceCategoryOrder, preferenceCategoryLabel)
}

func formatPantry(items []store.PantryItem) string {
	if len(items) == 0 {
		return "Pantry is empty."
	}

	grouped := make(map[string][]string)
	for _, item := range items {
		category := "other"
		if item.Category != nil && *item.Category != "" {
			category = *item.Category
		}
		entry := item.Name
		if item.Quantity != nil && item.Unit != nil {
			entry = fmt.Sprintf("%s (%g %s)", item.Name, *item.Quantity, *item.Unit)
		}
		grouped[category] = append(grouped[category], entry)
	}

	return renderGrouped(grouped, pantryCategoryOrder, pantryCategoryLabel)
}

// renderGrouped emits one line per non-empty category, known categories
// first in fixed order, then any unknown keys sorted for determinism.
func renderGrouped(grouped map[string][]string, order []string, labels map[string]string) string {
	var lines []string
	seen := make(map[string]bool, len(order))
	for _, category := range order {
		seen[category] = true
		if entries, ok := grouped[category]; ok {
			lines = append(lines, fmt.Sprintf("- %s: %s", labels[category], strings.Join(entries, ", ")))
		}
	}

	var unknown []string
	for category := range grouped {
		if !seen[category] {
			unknown = append(unknown, category)
		}
	}
	slices.Sort(unknown)
	for _, category := range unknown {
		lines = append(lines, fmt.Sprintf("- %s: %s", category, strings.Join(grouped[category], ", ")))
	}

	return strings.Join(lines, "\n")
}
