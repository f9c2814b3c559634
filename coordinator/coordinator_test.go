package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"nutriagent"
	"nutriagent/images"
	"nutriagent/store"
	"nutriagent/tools"
)

// fakeLLM plays back scripted responses and records every prompt it saw.
// The last response repeats once the script runs out.
type fakeLLM struct {
	mu        sync.Mutex
	responses []Response
	err       error
	onInvoke  func(call int)
	prompts   []Prompt
}

func (f *fakeLLM) Invoke(_ context.Context, prompt Prompt, onText TextFunc) (Response, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	call := len(f.prompts)
	f.mu.Unlock()

	if f.onInvoke != nil {
		f.onInvoke(call)
	}
	if f.err != nil {
		return Response{}, f.err
	}

	idx := call - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	res := f.responses[idx]
	if res.Content != "" && len(res.ToolCalls) == 0 && onText != nil {
		onText(res.Content)
	}
	return res, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeLLM) prompt(n int) Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[n]
}

func newTestCoordinator(t *testing.T, llm llmClient, maxSteps int) (*Coordinator, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	registry, err := tools.NewRegistry(st, images.NewMemoryStore())
	require.NoError(t, err)

	cfg := nutriagent.AgentConfig{MaxSteps: maxSteps, StepTimeout: 5 * time.Second}
	c := NewCoordinator(llm, registry, NewContextBuilder(st), cfg, nutriagent.NewNoOpTurnLogger())
	return c, st
}

func testTurn() Turn {
	return Turn{
		ExecContext: tools.ExecContext{UserID: uuid.New(), Timezone: "UTC"},
		Snapshot:    validSnapshot(),
		Messages: []Message{
			{Role: "user", Content: MessageParts{{Type: "text", Text: "hi"}}},
		},
	}
}

func TestRunReturnsTextOnlyResponse(t *testing.T) {
	llm := &fakeLLM{responses: []Response{{Content: "Hello! What did you eat today?"}}}
	c, _ := newTestCoordinator(t, llm, 10)

	var streamed strings.Builder
	turn := testTurn()
	turn.OnText = func(delta string) { streamed.WriteString(delta) }

	out, err := c.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, "Hello! What did you eat today?", out)
	assert.Equal(t, "Hello! What did you eat today?", streamed.String())
	assert.Equal(t, 1, llm.calls())

	// The first prompt carries the rendered system briefing and the catalog.
	prompt := llm.prompt(0)
	assert.Equal(t, "system", prompt.Messages[0].Role)
	assert.Contains(t, prompt.Messages[0].Content.Join(), "nutrition assistant")
	assert.Len(t, prompt.Tools, 16)
}

func TestRunFeedsToolResultsBackToModel(t *testing.T) {
	llm := &fakeLLM{responses: []Response{
		{ToolCalls: []tools.Call{{
			Name:      "log_water",
			Input:     map[string]any{"amount": 16},
			ToolUseID: "tu-1",
		}}},
		{Content: "Logged 16 oz of water."},
	}}
	c, st := newTestCoordinator(t, llm, 10)

	turn := testTurn()
	out, err := c.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, "Logged 16 oz of water.", out)
	require.Equal(t, 2, llm.calls())

	// Second prompt ends with assistant tool_use then user tool_result.
	prompt := llm.prompt(1)
	n := len(prompt.Messages)
	assistantMsg := prompt.Messages[n-2]
	resultMsg := prompt.Messages[n-1]

	require.Equal(t, "assistant", assistantMsg.Role)
	require.Len(t, assistantMsg.Content, 1)
	assert.Equal(t, "tool_use", assistantMsg.Content[0].Type)
	assert.Equal(t, "log_water", assistantMsg.Content[0].ToolName)

	require.Equal(t, "user", resultMsg.Role)
	require.Len(t, resultMsg.Content, 1)
	assert.Equal(t, "tool_result", resultMsg.Content[0].Type)
	assert.Equal(t, "tu-1", resultMsg.Content[0].ToolUseID)
	assert.Equal(t, true, resultMsg.Content[0].Data["success"])

	// The side effect is real.
	entry, err := st.Water.FindByDate(context.Background(), turn.ExecContext.UserID, turn.ExecContext.Today())
	require.NoError(t, err)
	assert.Equal(t, 16, entry.Amount)
}

func TestRunToolFailureBecomesConversationContent(t *testing.T) {
	llm := &fakeLLM{responses: []Response{
		{ToolCalls: []tools.Call{{
			Name:      "delete_meal",
			Input:     map[string]any{"meal_id": uuid.New().String()},
			ToolUseID: "tu-1",
		}}},
		{Content: "I couldn't find that meal."},
	}}
	c, _ := newTestCoordinator(t, llm, 10)

	out, err := c.Run(context.Background(), testTurn())
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find that meal.", out)

	resultMsg := llm.prompt(1).Messages[len(llm.prompt(1).Messages)-1]
	require.Len(t, resultMsg.Content, 1)
	assert.Equal(t, false, resultMsg.Content[0].Data["success"])
	assert.Contains(t, resultMsg.Content[0].Data["error"], "not found")
}

func TestRunTerminatesAtStepCeiling(t *testing.T) {
	// A model that always wants another tool call must still terminate.
	llm := &fakeLLM{responses: []Response{
		{ToolCalls: []tools.Call{{
			Name:      "query_pantry",
			Input:     map[string]any{},
			ToolUseID: "tu-loop",
		}}},
	}}
	c, _ := newTestCoordinator(t, llm, 3)

	var streamed strings.Builder
	turn := testTurn()
	turn.OnText = func(delta string) { streamed.WriteString(delta) }

	out, err := c.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, ceilingFallbackText, out)
	assert.Equal(t, ceilingFallbackText, streamed.String())
	assert.Equal(t, 3, llm.calls())
}

func TestRunRejectsBadSnapshotBeforeModel(t *testing.T) {
	llm := &fakeLLM{responses: []Response{{Content: "never reached"}}}
	c, _ := newTestCoordinator(t, llm, 10)

	turn := testTurn()
	turn.Snapshot.CalorieGoal = -5

	_, err := c.Run(context.Background(), turn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calorie_goal")
	assert.Equal(t, 0, llm.calls())
}

func TestRunRejectsMissingExecContext(t *testing.T) {
	llm := &fakeLLM{responses: []Response{{Content: "never reached"}}}
	c, _ := newTestCoordinator(t, llm, 10)

	turn := testTurn()
	turn.ExecContext = tools.ExecContext{}

	_, err := c.Run(context.Background(), turn)
	require.Error(t, err)
	assert.Equal(t, 0, llm.calls())
}

func TestRunModelErrorReturnsRedactedFallback(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("upstream exploded: secret detail")}
	c, _ := newTestCoordinator(t, llm, 10)

	var streamed strings.Builder
	turn := testTurn()
	turn.OnText = func(delta string) { streamed.WriteString(delta) }

	out, err := c.Run(context.Background(), turn)
	require.Error(t, err)
	assert.Equal(t, errorFallbackText, out)
	assert.Equal(t, errorFallbackText, streamed.String())
	assert.NotContains(t, streamed.String(), "secret detail")
}

// orderedDispatcher delays the first call it sees so completion order is the
// reverse of issue order, and counts executions.
type orderedDispatcher struct {
	registry *tools.Registry
	mu       sync.Mutex
	executed []string
}

func (d *orderedDispatcher) GetTools() []tools.Tool { return d.registry.GetTools() }

func (d *orderedDispatcher) GetTool(name string) (tools.Tool, error) { return d.registry.GetTool(name) }

func (d *orderedDispatcher) Execute(ctx context.Context, ec tools.ExecContext, call tools.Call) map[string]any {
	if call.ToolUseID == "tu-slow" {
		time.Sleep(50 * time.Millisecond)
	}
	out := d.registry.Execute(ctx, ec, call)
	d.mu.Lock()
	d.executed = append(d.executed, call.ToolUseID)
	d.mu.Unlock()
	return out
}

func TestRunSiblingResultsKeepIssueOrder(t *testing.T) {
	llm := &fakeLLM{responses: []Response{
		{ToolCalls: []tools.Call{
			{Name: "query_pantry", Input: map[string]any{}, ToolUseID: "tu-slow"},
			{Name: "query_shopping_lists", Input: map[string]any{}, ToolUseID: "tu-fast"},
		}},
		{Content: "done"},
	}}

	st := newTestStore(t)
	registry, err := tools.NewRegistry(st, images.NewMemoryStore())
	require.NoError(t, err)
	dispatcher := &orderedDispatcher{registry: registry}

	cfg := nutriagent.AgentConfig{MaxSteps: 10, StepTimeout: 5 * time.Second}
	c := NewCoordinator(llm, dispatcher, NewContextBuilder(st), cfg, nutriagent.NewNoOpTurnLogger())

	out, err := c.Run(context.Background(), testTurn())
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	// The fast call finished first.
	require.Len(t, dispatcher.executed, 2)
	assert.Equal(t, "tu-fast", dispatcher.executed[0])

	// Results are still appended in the order the calls were issued.
	resultMsg := llm.prompt(1).Messages[len(llm.prompt(1).Messages)-1]
	require.Len(t, resultMsg.Content, 2)
	assert.Equal(t, "tu-slow", resultMsg.Content[0].ToolUseID)
	assert.Equal(t, "tu-fast", resultMsg.Content[1].ToolUseID)
}

func TestRunStopsInvokingAfterDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	llm := &fakeLLM{
		responses: []Response{
			{ToolCalls: []tools.Call{{
				Name:      "log_water",
				Input:     map[string]any{"amount": 8},
				ToolUseID: "tu-1",
			}}},
		},
		// The caller disconnects while the first model invocation is in flight.
		onInvoke: func(call int) {
			if call == 1 {
				cancel()
			}
		},
	}
	c, st := newTestCoordinator(t, llm, 10)

	turn := testTurn()
	_, err := c.Run(ctx, turn)
	require.ErrorIs(t, err, context.Canceled)

	// Exactly one model invocation, and the in-flight tool batch still
	// completed its write.
	assert.Equal(t, 1, llm.calls())
	entry, err := st.Water.FindByDate(context.Background(), turn.ExecContext.UserID, turn.ExecContext.Today())
	require.NoError(t, err)
	assert.Equal(t, 8, entry.Amount)
}

func TestRunRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	// One step with a successful and a failing tool call, then a final text
	// step.
	llm := &fakeLLM{responses: []Response{
		{ToolCalls: []tools.Call{
			{ToolUseID: "tu-1", Name: "log_water", Input: map[string]any{"amount": 16}},
			{ToolUseID: "tu-2", Name: "delete_meal", Input: map[string]any{"meal_id": uuid.NewString()}},
		}},
		{Content: "Logged 16 oz of water."},
	}}
	c, _ := newTestCoordinator(t, llm, 10)

	_, err := c.Run(context.Background(), testTurn())
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				sums[m.Name] = total
			}
		}
	}

	assert.Equal(t, int64(1), sums["coordinator_runs_total"])
	assert.Equal(t, int64(1), sums["coordinator_runs_completed_total"])
	assert.Zero(t, sums["coordinator_runs_failed_total"])
	assert.Equal(t, int64(2), sums["coordinator_steps_total"])
	assert.Equal(t, int64(2), sums["tool_calls_total"])
	assert.Equal(t, int64(1), sums["tool_calls_failed_total"])

	for _, hist := range []string{
		"coordination_duration_seconds",
		"step_duration_seconds",
		"llm_response_time_seconds",
		"tool_execution_time_seconds",
	} {
		assert.True(t, names[hist], "missing histogram %s", hist)
	}
}

func TestRunCountsFailedRuns(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	llm := &fakeLLM{err: fmt.Errorf("throttled")}
	c, _ := newTestCoordinator(t, llm, 10)

	_, err := c.Run(context.Background(), testTurn())
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				sums[m.Name] = total
			}
		}
	}

	assert.Equal(t, int64(1), sums["coordinator_runs_total"])
	assert.Equal(t, int64(1), sums["coordinator_runs_failed_total"])
	assert.Zero(t, sums["coordinator_runs_completed_total"])
}
