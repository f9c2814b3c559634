package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// ExecContext carries the authenticated identity a tool call executes under.
// It is passed by value into every Run; tools never read identity from
// ambient state. Model-supplied input must never carry or imply identity.
type ExecContext struct {
	UserID   uuid.UUID
	Timezone string
}

// Validate reports whether the context is usable. Tools fail closed on an
// invalid context before touching the store.
func (ec ExecContext) Validate() error {
	if ec.UserID == uuid.Nil {
		return errors.New("invalid tool execution context: missing user id")
	}
	return nil
}

// Today formats the current instant as a YYYY-MM-DD calendar date in the
// user's IANA timezone, falling back to UTC. Read and write paths must
// bucket days the same way.
func (ec ExecContext) Today() string {
	loc := time.UTC
	if ec.Timezone != "" {
		if l, err := time.LoadLocation(ec.Timezone); err == nil {
			loc = l
		}
	}
	return time.Now().In(loc).Format("2006-01-02")
}

type Tool interface {
	Name() string
	Title() string
	Description() string
	InputSchema() *jsonschema.Schema
	Run(ctx context.Context, ec ExecContext, input map[string]any) (output map[string]any, err error)
}

type Call struct {
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
}

// success and failure build the uniform result envelope every tool returns.
// Failures are payloads the model can read and recover from, never errors
// thrown past the dispatcher.

func success(payload map[string]any) map[string]any {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["success"] = true
	return payload
}

func failure(format string, args ...any) map[string]any {
	return map[string]any{
		"success": false,
		"error":   fmt.Sprintf(format, args...),
	}
}

// Input coercion helpers. Tool inputs arrive as JSON-decoded maps, so
// numbers are float64 regardless of the schema's declared type.

func strArg(input map[string]any, key string) (string, bool) {
	v, ok := input[key].(string)
	return v, ok && v != ""
}

func numArg(input map[string]any, key string) (float64, bool) {
	switch v := input[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intArg(input map[string]any, key string) (int, bool) {
	v, ok := numArg(input, key)
	if !ok || v != float64(int(v)) {
		return 0, false
	}
	return int(v), true
}

func boolArg(input map[string]any, key string, fallback bool) bool {
	if v, ok := input[key].(bool); ok {
		return v
	}
	return fallback
}

func strSliceArg(input map[string]any, key string) []string {
	raw, ok := input[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// limitArg clamps the model-supplied limit into [1, 100], defaulting when
// absent or invalid.
func limitArg(input map[string]any, fallback int) int {
	v, ok := intArg(input, "limit")
	if !ok || v < 1 {
		return fallback
	}
	if v > 100 {
		return 100
	}
	return v
}

func uuidArg(input map[string]any, key string) (uuid.UUID, bool) {
	s, ok := strArg(input, key)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func schemaPtr(v float64) *float64 { return &v }

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
