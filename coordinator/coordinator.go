package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"nutriagent"
	"nutriagent/tools"
)

const (
	defaultMaxSteps    = 10
	defaultStepTimeout = 30 * time.Second

	// User-visible fallbacks. Upstream error detail is logged, never shown.
	errorFallbackText   = "Something went wrong on my end. Please try again."
	ceilingFallbackText = "I wasn't able to finish that in one go. Could you rephrase or break the request into smaller steps?"
)

type llmClient interface {
	Invoke(ctx context.Context, prompt Prompt, onText TextFunc) (Response, error)
}

// Turn is one user message plus everything needed to run it: the
// authenticated execution context, the client snapshot, the conversation so
// far, and an optional streaming sink for text deltas.
type Turn struct {
	ExecContext tools.ExecContext
	Snapshot    Snapshot
	Messages    []Message
	OnText      TextFunc
}

// Coordinator drives the bounded model/tool loop for agent turns.
type Coordinator struct {
	llm            llmClient
	dispatcher     nutriagent.ToolDispatcher
	contextBuilder *ContextBuilder
	maxSteps       int
	stepTimeout    time.Duration
	logger         nutriagent.TurnLogger
	metrics        coordinatorMetrics
}

// coordinatorMetrics holds the loop's instruments, created once per
// coordinator against the global meter provider.
type coordinatorMetrics struct {
	runs          metric.Int64Counter
	runsCompleted metric.Int64Counter
	runsFailed    metric.Int64Counter
	steps         metric.Int64Counter
	toolCalls     metric.Int64Counter
	toolFailures  metric.Int64Counter
	runDuration   metric.Float64Histogram
	stepDuration  metric.Float64Histogram
	llmDuration   metric.Float64Histogram
	toolDuration  metric.Float64Histogram
}

func newCoordinatorMetrics(meter metric.Meter) coordinatorMetrics {
	m := coordinatorMetrics{}
	m.runs, _ = meter.Int64Counter("coordinator_runs_total",
		metric.WithDescription("Total number of coordination runs started"))
	m.runsCompleted, _ = meter.Int64Counter("coordinator_runs_completed_total",
		metric.WithDescription("Total number of coordination runs completed successfully"))
	m.runsFailed, _ = meter.Int64Counter("coordinator_runs_failed_total",
		metric.WithDescription("Total number of coordination runs that failed"))
	m.steps, _ = meter.Int64Counter("coordinator_steps_total",
		metric.WithDescription("Total number of coordination steps"))
	m.toolCalls, _ = meter.Int64Counter("tool_calls_total",
		metric.WithDescription("Total number of tool calls executed"))
	m.toolFailures, _ = meter.Int64Counter("tool_calls_failed_total",
		metric.WithDescription("Total number of tool calls that failed"))
	m.runDuration, _ = meter.Float64Histogram("coordination_duration_seconds",
		metric.WithDescription("Total duration of coordination process in seconds"))
	m.stepDuration, _ = meter.Float64Histogram("step_duration_seconds",
		metric.WithDescription("Duration of individual coordination steps in seconds"))
	m.llmDuration, _ = meter.Float64Histogram("llm_response_time_seconds",
		metric.WithDescription("Time taken to receive response from LLM in seconds"))
	m.toolDuration, _ = meter.Float64Histogram("tool_execution_time_seconds",
		metric.WithDescription("Time taken to execute individual tools in seconds"))
	return m
}

func NewCoordinator(llm llmClient, dispatcher nutriagent.ToolDispatcher, cb *ContextBuilder, cfg nutriagent.AgentConfig, logger nutriagent.TurnLogger) *Coordinator {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	stepTimeout := cfg.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	return &Coordinator{
		llm:            llm,
		dispatcher:     dispatcher,
		contextBuilder: cb,
		maxSteps:       maxSteps,
		stepTimeout:    stepTimeout,
		logger:         logger,
		metrics:        newCoordinatorMetrics(otel.Meter(nutriagent.TracerNameAssistant)),
	}
}

// Run executes one agent turn and returns the model's final text. Tool
// failures never abort the loop; they go back to the model as result
// payloads. Only a bad execution context or a bad snapshot aborts before
// the first model invocation.
func (c *Coordinator) Run(ctx context.Context, turn Turn) (string, error) {
	ctx, span := otel.Tracer(nutriagent.TracerNameAssistant).Start(ctx, "Coordinator.Run")
	defer span.End()

	c.metrics.runs.Add(ctx, 1)
	runStart := time.Now()
	defer func() {
		c.metrics.runDuration.Record(ctx, time.Since(runStart).Seconds())
	}()

	if err := turn.ExecContext.Validate(); err != nil {
		c.metrics.runsFailed.Add(ctx, 1)
		return "", err
	}

	assistantCtx, err := c.contextBuilder.Build(ctx, turn.ExecContext.UserID, turn.Snapshot)
	if err != nil {
		c.metrics.runsFailed.Add(ctx, 1)
		return "", fmt.Errorf("failed to build assistant context: %w", err)
	}

	prompt := NewPrompt(SystemPrompt(assistantCtx, time.Now()), turn.Messages, c.dispatcher)

	slog.Info("COORDINATOR: Starting turn",
		"user_id", turn.ExecContext.UserID,
		"messages", len(turn.Messages),
		"tools", len(prompt.Tools),
	)

	for step := 0; step < c.maxSteps; step++ {
		// A disconnected caller means no further model invocations. Any
		// tool batch from the previous step has already completed.
		if err := ctx.Err(); err != nil {
			slog.Warn("COORDINATOR: Caller gone, stopping turn", "step", step+1, "error", err)
			c.metrics.runsFailed.Add(ctx, 1)
			return "", err
		}

		c.metrics.steps.Add(ctx, 1)
		stepStart := time.Now()
		stepLog := nutriagent.StepLog{Step: step + 1, Timestamp: time.Now()}
		if b, merr := json.Marshal(prompt); merr == nil {
			stepLog.LLMInput = string(b)
		}

		stepCtx, cancel := context.WithTimeout(ctx, c.stepTimeout)
		llmStart := time.Now()
		res, err := c.llm.Invoke(stepCtx, prompt, turn.OnText)
		cancel()
		c.metrics.llmDuration.Record(ctx, time.Since(llmStart).Seconds())
		if err != nil {
			stepLog.Error = err.Error()
			c.logStep(stepLog)
			c.metrics.runsFailed.Add(ctx, 1)
			c.metrics.stepDuration.Record(ctx, time.Since(stepStart).Seconds())
			span.SetAttributes(attribute.Int("coordinator.steps", step+1))
			span.RecordError(err)
			slog.Error("COORDINATOR: Model invocation failed", "step", step+1, "error", err)
			c.emit(turn.OnText, errorFallbackText)
			return errorFallbackText, fmt.Errorf("model invocation failed: %w", err)
		}
		stepLog.LLMOutput = res

		slog.Info("COORDINATOR: Model response received",
			"step", step+1,
			"content_length", len(res.Content),
			"tool_calls", len(res.ToolCalls),
		)

		if len(res.ToolCalls) == 0 {
			c.logStep(stepLog)
			c.metrics.runsCompleted.Add(ctx, 1)
			c.metrics.stepDuration.Record(ctx, time.Since(stepStart).Seconds())
			span.SetAttributes(
				attribute.Int("coordinator.steps", step+1),
				attribute.Bool("coordinator.step_ceiling_hit", false),
			)
			return res.Content, nil
		}

		assistantMsg := Message{Role: "assistant"}
		if res.Content != "" {
			assistantMsg.Content = append(assistantMsg.Content, MessagePart{Type: "text", Text: res.Content})
		}
		for _, call := range res.ToolCalls {
			assistantMsg.Content = append(assistantMsg.Content, MessagePart{
				Type:      "tool_use",
				ToolUseID: call.ToolUseID,
				ToolName:  call.Name,
				Data:      call.Input,
			})
		}
		prompt.Messages = append(prompt.Messages, assistantMsg)

		results := c.executeBatch(ctx, turn.ExecContext, res.ToolCalls)
		prompt.Messages = append(prompt.Messages, NewToolResultMessage(results))

		for i, call := range res.ToolCalls {
			stepLog.ToolCalls = append(stepLog.ToolCalls, nutriagent.ToolCallLog{
				Name:   call.Name,
				Input:  call.Input,
				Output: results[i].Data,
			})
		}
		c.logStep(stepLog)
		c.metrics.stepDuration.Record(ctx, time.Since(stepStart).Seconds())
	}

	c.metrics.runsFailed.Add(ctx, 1)
	span.SetAttributes(
		attribute.Int("coordinator.steps", c.maxSteps),
		attribute.Bool("coordinator.step_ceiling_hit", true),
	)
	slog.Warn("COORDINATOR: Step ceiling reached, ending turn", "max_steps", c.maxSteps)
	c.emit(turn.OnText, ceilingFallbackText)
	return ceilingFallbackText, nil
}

// executeBatch runs the step's tool calls concurrently and returns results
// indexed by issue order, so the conversation stays aligned call-by-call no
// matter which call finishes first. The batch runs on a context detached
// from the caller: writes that have started must complete even if the
// caller disconnects mid-step.
func (c *Coordinator) executeBatch(ctx context.Context, ec tools.ExecContext, calls []tools.Call) []ToolResult {
	batchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.stepTimeout)
	defer cancel()

	results := make([]ToolResult, len(calls))
	g, gctx := errgroup.WithContext(batchCtx)
	for i, call := range calls {
		g.Go(func() error {
			slog.Info("COORDINATOR: Executing tool call", "name", call.Name, "tool_use_id", call.ToolUseID)
			c.metrics.toolCalls.Add(gctx, 1, metric.WithAttributes(attribute.String("tool_name", call.Name)))
			start := time.Now()
			data := c.dispatcher.Execute(gctx, ec, call)
			c.metrics.toolDuration.Record(gctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String("tool_name", call.Name)))
			if ok, found := data["success"].(bool); found && !ok {
				c.metrics.toolFailures.Add(gctx, 1, metric.WithAttributes(attribute.String("tool_name", call.Name)))
			}
			results[i] = ToolResult{
				ToolUseID: call.ToolUseID,
				ToolName:  call.Name,
				Data:      data,
			}
			return nil
		})
	}
	// Execute never returns an error; failures are result payloads.
	_ = g.Wait()
	return results
}

func (c *Coordinator) emit(onText TextFunc, text string) {
	if onText != nil {
		onText(text)
	}
}

func (c *Coordinator) logStep(step nutriagent.StepLog) {
	if c.logger == nil {
		return
	}
	if err := c.logger.LogStep(step); err != nil {
		slog.Error("Failed to log coordinator step", "error", err, "step", step.Step)
	}
}
