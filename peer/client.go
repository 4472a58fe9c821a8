package peer

import (
	"context"
	"fmt"

	"github.com/ggoodman/mcp-peer-go/mcp"
)

// DefaultClientInfo is sent in initialize when no client info was configured.
var DefaultClientInfo = mcp.ImplementationInfo{Name: "mcp-peer-go", Version: "dev"}

// Initialize performs the initialize handshake as a client and then sends
// notifications/initialized. Capabilities are derived from the configured
// ClientCapabilities.
func (p *Peer) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	req := &mcp.InitializeRequest{
		ProtocolVersion: mcp.LatestProtocolVersion,
		ClientInfo:      DefaultClientInfo,
	}
	if p.cli != nil {
		if info := p.cli.GetClientInfo(); info.Name != "" {
			req.ClientInfo = info
		}
		if _, ok := p.cli.GetRootsProvider(); ok {
			req.Capabilities.Roots = &struct {
				ListChanged bool `json:"listChanged"`
			}{ListChanged: true}
		}
		if _, ok := p.cli.GetSamplingHandler(); ok {
			req.Capabilities.Sampling = &struct{}{}
		}
	}

	var res mcp.InitializeResult
	if err := p.Call(ctx, string(mcp.InitializeMethod), req, &res); err != nil {
		return nil, err
	}
	if !mcp.IsSupportedProtocolVersion(res.ProtocolVersion) {
		return nil, fmt.Errorf("server negotiated unsupported protocol version %q", res.ProtocolVersion)
	}
	if err := p.Notify(ctx, string(mcp.InitializedNotificationMethod), nil); err != nil {
		return nil, fmt.Errorf("send initialized: %w", err)
	}
	return &res, nil
}

// Ping checks that the remote peer is responsive.
func (p *Peer) Ping(ctx context.Context) error {
	return p.Call(ctx, string(mcp.PingMethod), nil, nil)
}

// ListTools fetches one page of tools. Pass the previous NextCursor to
// continue; an empty cursor starts from the beginning.
func (p *Peer) ListTools(ctx context.Context, cursor string) (*mcp.ListToolsResult, error) {
	var res mcp.ListToolsResult
	if err := p.Call(ctx, string(mcp.ToolsListMethod), &mcp.ListToolsRequest{PaginatedRequest: mcp.PaginatedRequest{Cursor: cursor}}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AllTools follows cursors until every tool has been listed.
func (p *Peer) AllTools(ctx context.Context) ([]mcp.Tool, error) {
	var (
		all    []mcp.Tool
		cursor string
	)
	for {
		page, err := p.ListTools(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Tools...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// CallTool invokes a tool. args is marshalled as the arguments object.
func (p *Peer) CallTool(ctx context.Context, name string, args any) (*mcp.CallToolResult, error) {
	var res mcp.CallToolResult
	if err := p.Call(ctx, string(mcp.ToolsCallMethod), &mcp.CallToolRequestSent{Name: name, Arguments: args}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListPrompts fetches one page of prompts.
func (p *Peer) ListPrompts(ctx context.Context, cursor string) (*mcp.ListPromptsResult, error) {
	var res mcp.ListPromptsResult
	if err := p.Call(ctx, string(mcp.PromptsListMethod), &mcp.ListPromptsRequest{PaginatedRequest: mcp.PaginatedRequest{Cursor: cursor}}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetPrompt renders a prompt with the given arguments.
func (p *Peer) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	var res mcp.GetPromptResult
	if err := p.Call(ctx, string(mcp.PromptsGetMethod), &mcp.GetPromptRequestReceived{Name: name, Arguments: args}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Complete asks for argument completions.
func (p *Peer) Complete(ctx context.Context, req *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	var res mcp.CompleteResult
	if err := p.Call(ctx, string(mcp.CompletionCompleteMethod), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SetLogLevel selects the minimum level of notifications/message the server
// sends.
func (p *Peer) SetLogLevel(ctx context.Context, level mcp.LoggingLevel) error {
	return p.Call(ctx, string(mcp.LoggingSetLevelMethod), &mcp.SetLevelRequest{Level: level}, nil)
}

// ListRoots asks the remote client for its roots.
func (p *Peer) ListRoots(ctx context.Context) (*mcp.ListRootsResult, error) {
	var res mcp.ListRootsResult
	if err := p.Call(ctx, string(mcp.RootsListMethod), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateMessage asks the remote client to sample its model.
func (p *Peer) CreateMessage(ctx context.Context, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error) {
	var res mcp.CreateMessageResult
	if err := p.Call(ctx, string(mcp.SamplingCreateMessageMethod), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// NotifyRootsListChanged tells the server that this client's roots changed.
func (p *Peer) NotifyRootsListChanged(ctx context.Context) error {
	return p.Notify(ctx, string(mcp.RootsListChangedNotificationMethod), nil)
}
