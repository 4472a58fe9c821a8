package sessions

import (
	"context"

	"github.com/ggoodman/mcp-peer-go/mcp"
)

// Session represents the negotiated MCP session on one connection and exposes
// the optional capabilities of the remote peer. Implementations MUST be safe
// for concurrent use.
type Session interface {
	SessionID() string
	UserID() string
	// ProtocolVersion is the negotiated MCP protocol version; empty until
	// initialize completes.
	ProtocolVersion() string
	// ClientInfo identifies the remote client as reported in initialize.
	ClientInfo() ClientInfo

	GetSamplingCapability() (cap SamplingCapability, ok bool)
	GetRootsCapability() (cap RootsCapability, ok bool)

	// Log sends a notifications/message to the client when level is at or
	// above the threshold the client selected with logging/setLevel.
	Log(ctx context.Context, level mcp.LoggingLevel, logger string, data any) error
}

// ClientInfo identifies the client connecting to the server.
type ClientInfo struct {
	Name    string
	Version string
}

// SamplingCapability when present on a session, enables the sampling surface area.
type SamplingCapability interface {
	CreateMessage(ctx context.Context, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error)
}

// RootsListChangedListener is invoked when the set of workspace roots changes.
type RootsListChangedListener func(ctx context.Context) error

// RootsCapability when present, exposes workspace roots and change notifications.
type RootsCapability interface {
	ListRoots(ctx context.Context) (*mcp.ListRootsResult, error)

	RegisterRootsListChangedListener(ctx context.Context, listener RootsListChangedListener) (supported bool, err error)
}
