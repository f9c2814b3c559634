package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"nutriagent/tools"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// Controls the maximum number of tokens the model can generate in one response.
	defaultMaxTokens = 1024

	// Low temperature keeps outputs more deterministic, which is better for tool use.
	defaultTemperature = 0.2

	// Low top_p keeps outputs more focused, which is better for tool use.
	defaultTopP = 0.9
)

type bedrockRuntimeClient interface {
	ConverseStream(context.Context, *bedrockruntime.ConverseStreamInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

type LLMOptions struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// LLMClient invokes a model through the Bedrock ConverseStream API, feeding
// text deltas to the caller as they arrive.
type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{
		brc:  brc,
		opts: opts,
	}
}

func (c *LLMClient) Invoke(ctx context.Context, prompt Prompt, onText TextFunc) (Response, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages))

	// Build system block
	var sys []types.SystemContentBlock
	for _, m := range prompt.Messages {
		if m.Role == "system" {
			sys = append(sys, &types.SystemContentBlockMemberText{Value: m.Content.Join()})
			slog.Info("LLM_CLIENT: Added system content", "text", len(m.Content.Join()))
		}
	}

	// Build messages
	var msgs []types.Message
	for _, m := range prompt.Messages {
		if m.Role == "system" {
			continue // already handled above
		}
		msg := types.Message{Role: types.ConversationRole(m.Role)}

		for _, part := range m.Content {
			switch part.Type {
			case "text":
				msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: part.Text})

			case "tool_use":
				input := freshMap(part.Data)
				tub := types.ToolUseBlock{
					ToolUseId: aws.String(part.ToolUseID),
					Name:      aws.String(part.ToolName),
					Input:     document.NewLazyDocument(input),
				}
				msg.Content = append(msg.Content, &types.ContentBlockMemberToolUse{Value: tub})

			case "tool_result":
				if part.Data == nil {
					return Response{}, fmt.Errorf("tool result for %s has no data", part.ToolUseID)
				}
				tr := types.ToolResultBlock{
					ToolUseId: aws.String(part.ToolUseID),
					Status:    types.ToolResultStatusSuccess,
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberJson{
							Value: document.NewLazyDocument(freshMap(part.Data)),
						},
					},
				}
				msg.Content = append(msg.Content, &types.ContentBlockMemberToolResult{Value: tr})
			}
		}

		msgs = append(msgs, msg)
	}

	// Build tool config
	var toolConfig []types.Tool
	for _, t := range prompt.Tools {
		spec, err := buildToolSpec(t)
		if err != nil {
			slog.Error("LLM_CLIENT: Failed to build tool spec", "error", err)
			continue
		}
		toolConfig = append(toolConfig, &types.ToolMemberToolSpec{Value: spec})
	}

	in := &bedrockruntime.ConverseStreamInput{
		ModelId:  &c.opts.ModelID,
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
		ToolConfig: &types.ToolConfiguration{Tools: toolConfig, ToolChoice: &types.ToolChoiceMemberAuto{}},
	}

	out, err := c.brc.ConverseStream(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock ConverseStream invoke failed", "error", err)
		return Response{}, err
	}

	res, err := c.consumeStream(out, onText)
	if err != nil {
		return Response{}, err
	}

	switch res.StopReason {
	case "max_tokens":
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit; consider increasing MaxTokens")
		return Response{}, fmt.Errorf("model hit MaxTokens limit; consider increasing MaxTokens")

	case "safety", "content_filtered", "guardrail_intervened":
		slog.Warn("LLM_CLIENT: Model response blocked by Bedrock safety filters")
		return Response{}, fmt.Errorf("model response blocked by Bedrock safety filters")
	}

	slog.Info("LLM_CLIENT: Response assembled",
		"stop_reason", res.StopReason,
		"content_len", len(res.Content),
		"tool_calls", len(res.ToolCalls),
	)
	return res, nil
}

// consumeStream drains the event stream, forwarding text deltas and
// assembling tool calls from their start/delta/stop block sequences. Blocks
// arrive in order, so a single in-progress tool-use accumulator suffices.
func (c *LLMClient) consumeStream(out *bedrockruntime.ConverseStreamOutput, onText TextFunc) (Response, error) {
	stream := out.GetStream()
	defer stream.Close()

	var (
		res     Response
		content strings.Builder

		toolUseID string
		toolName  string
		toolJSON  strings.Builder
		inToolUse bool
	)

	for event := range stream.Events() {
		switch e := event.(type) {
		case *types.ConverseStreamOutputMemberContentBlockStart:
			if start, ok := e.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
				inToolUse = true
				toolUseID = aws.ToString(start.Value.ToolUseId)
				toolName = aws.ToString(start.Value.Name)
				toolJSON.Reset()
			}

		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch delta := e.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				content.WriteString(delta.Value)
				if onText != nil {
					onText(delta.Value)
				}
			case *types.ContentBlockDeltaMemberToolUse:
				toolJSON.WriteString(aws.ToString(delta.Value.Input))
			}

		case *types.ConverseStreamOutputMemberContentBlockStop:
			if !inToolUse {
				continue
			}
			inToolUse = false

			input := map[string]any{}
			if raw := toolJSON.String(); raw != "" {
				if err := json.Unmarshal([]byte(raw), &input); err != nil {
					slog.Error("LLM_CLIENT: Failed to decode tool input", "tool", toolName, "error", err)
					input = map[string]any{}
				}
			}
			res.ToolCalls = append(res.ToolCalls, tools.Call{
				Name:      toolName,
				Input:     normalizeInput(input).(map[string]any),
				ToolUseID: toolUseID,
			})

		case *types.ConverseStreamOutputMemberMessageStop:
			res.StopReason = string(e.Value.StopReason)

		case *types.ConverseStreamOutputMemberMetadata:
			if e.Value.Usage != nil {
				slog.Info("LLM_CLIENT: Stream usage",
					"input_tokens", aws.ToInt32(e.Value.Usage.InputTokens),
					"output_tokens", aws.ToInt32(e.Value.Usage.OutputTokens),
				)
			}
		}
	}

	if err := stream.Err(); err != nil {
		slog.Error("LLM_CLIENT: Stream failed", "error", err)
		return Response{}, err
	}

	res.Content = strings.TrimSpace(content.String())
	return res, nil
}

// buildToolSpec constructs a ToolSpecification for a tool. The schema is
// marshalled to JSON and back so its custom MarshalJSON output is what the
// document system sees.
func buildToolSpec(t ToolSpec) (types.ToolSpecification, error) {
	schemaJSON, err := json.Marshal(t.InputSchema)
	if err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to marshal tool schema for %s: %w", t.Name, err)
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to unmarshal tool schema for %s: %w", t.Name, err)
	}

	return types.ToolSpecification{
		Name:        aws.String(t.Name),
		Description: aws.String(t.Description),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schemaMap),
		},
	}, nil
}

// freshMap deep-copies a payload through JSON so the document system never
// sees types it cannot serialize.
func freshMap(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	b, _ := json.Marshal(data)
	if err := json.Unmarshal(b, &out); err != nil {
		for k, v := range data {
			out[k] = v
		}
	}
	return out
}

// normalizeInput recursively coerces model-supplied values for safe
// downstream use: whole floats become ints, stringified JSON is decoded.
func normalizeInput(val any) any {
	switch v := val.(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
		return v

	case string:
		var decoded any
		if json.Unmarshal([]byte(v), &decoded) == nil {
			switch decoded.(type) {
			case map[string]any, []any:
				return normalizeInput(decoded)
			}
		}
		return v

	case []any:
		for i := range v {
			v[i] = normalizeInput(v[i])
		}
		return v

	case map[string]any:
		for key, val := range v {
			v[key] = normalizeInput(val)
		}
		return v

	default:
		return v
	}
}
