package mcpservice

import (
	"context"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

// ServerCapabilities is the surface the engine consults when acting as an MCP
// server. Each getter reports (value, ok, error); ok == false means the
// capability is absent and requests for it are answered with "method not found".
type ServerCapabilities interface {
	GetServerInfo(ctx context.Context, session sessions.Session) (mcp.ImplementationInfo, error)

	// GetPreferredProtocolVersion is consulted during initialize, before the
	// session has negotiated anything. ok == false lets the engine apply its
	// default negotiation.
	GetPreferredProtocolVersion(ctx context.Context, clientVersion string) (string, bool, error)

	GetInstructions(ctx context.Context, session sessions.Session) (string, bool, error)

	GetToolsCapability(ctx context.Context, session sessions.Session) (ToolsCapability, bool, error)

	GetPromptsCapability(ctx context.Context, session sessions.Session) (PromptsCapability, bool, error)

	GetLoggingCapability(ctx context.Context, session sessions.Session) (LoggingCapability, bool, error)

	GetCompletionsCapability(ctx context.Context, session sessions.Session) (CompletionsCapability, bool, error)
}

// Page is one slice of a paginated listing. NextCursor is empty on the last page.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// NewPage builds a page from items and an optional next cursor.
func NewPage[T any](items []T, nextCursor ...string) Page[T] {
	p := Page[T]{Items: items}
	if len(nextCursor) > 0 {
		p.NextCursor = nextCursor[0]
	}
	return p
}

// ToolsCapability lists and invokes tools.
type ToolsCapability interface {
	ListTools(ctx context.Context, session sessions.Session, cursor string) (Page[mcp.Tool], error)

	// CallTool invokes a tool. Failures that are part of the tool's normal
	// operation belong in the result with IsError set; returned errors become
	// JSON-RPC errors.
	CallTool(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)

	GetListChangedCapability(ctx context.Context, session sessions.Session) (ListChangedCapability, bool, error)
}

// PromptsCapability lists and renders prompts.
type PromptsCapability interface {
	ListPrompts(ctx context.Context, session sessions.Session, cursor string) (Page[mcp.Prompt], error)

	GetPrompt(ctx context.Context, session sessions.Session, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error)

	GetListChangedCapability(ctx context.Context, session sessions.Session) (ListChangedCapability, bool, error)
}

// ListChangedFunc is invoked whenever the underlying list changes.
type ListChangedFunc func(ctx context.Context, session sessions.Session) error

// ListChangedCapability lets the engine subscribe a session to list changes.
// Subscriptions end when ctx is done.
type ListChangedCapability interface {
	Register(ctx context.Context, session sessions.Session, fn ListChangedFunc) (bool, error)
}

// LoggingCapability handles logging/setLevel.
type LoggingCapability interface {
	SetLevel(ctx context.Context, session sessions.Session, level mcp.LoggingLevel) error
}

// CompletionsCapability handles completion/complete.
type CompletionsCapability interface {
	Complete(ctx context.Context, session sessions.Session, req *mcp.CompleteRequest) (*mcp.CompleteResult, error)
}
