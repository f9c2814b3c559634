package nutriagent

import (
	"context"

	"nutriagent/tools"
)

// ToolProvider exposes the fixed tool catalog to the coordinator.
type ToolProvider interface {
	GetTools() []tools.Tool
	GetTool(name string) (tools.Tool, error)
}

// ToolDispatcher executes a single tool call on behalf of the coordinator.
// Implementations must fail closed on a missing or invalid execution context
// and must return failures as structured payloads rather than errors, so the
// model can see and recover from them.
type ToolDispatcher interface {
	ToolProvider
	Execute(ctx context.Context, ec tools.ExecContext, call tools.Call) map[string]any
}
