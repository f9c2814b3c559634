package coordinator

import (
	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"nutriagent/tools"
)

// MessagePart is one content block within a conversation message. Text parts
// carry assistant or user prose; tool_use parts carry calls the model issued;
// tool_result parts carry the payloads fed back for those calls.
type MessagePart struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

type MessageParts []MessagePart

// Join concatenates the text parts, skipping tool blocks.
func (mp MessageParts) Join() string {
	var result string
	for _, part := range mp {
		if part.Type == "text" {
			result += part.Text
		}
	}
	return result
}

type Message struct {
	Role    string       `json:"role"`
	Content MessageParts `json:"content"`
}

// ToolResult pairs a tool call's id with the payload its execution produced.
// The payload is always the dispatcher's {"success": ...} envelope, for
// failures as much as successes.
type ToolResult struct {
	ToolUseID string
	ToolName  string
	Data      map[string]any
}

// NewToolResultMessage packs tool results into the user-role message the
// Converse API expects them in. Order of results is preserved.
func NewToolResultMessage(results []ToolResult) Message {
	var parts MessageParts
	for _, result := range results {
		parts = append(parts, MessagePart{
			Type:      "tool_result",
			ToolUseID: result.ToolUseID,
			ToolName:  result.ToolName,
			Data:      result.Data,
		})
	}
	return Message{
		Role:    "user",
		Content: parts,
	}
}

// ToolSpec is the model-facing description of one catalog tool.
type ToolSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

type Prompt struct {
	Messages []Message  `json:"messages"`
	Tools    []ToolSpec `json:"tools,omitempty"`
}

// Response represents one model invocation's output.
type Response struct {
	Content    string       `json:"content,omitempty"`
	ToolCalls  []tools.Call `json:"tool_calls,omitempty"`
	StopReason string       `json:"stop_reason,omitempty"`
}

// TextFunc receives streamed text deltas as the model produces them.
type TextFunc func(delta string)
