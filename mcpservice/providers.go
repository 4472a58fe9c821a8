package mcpservice

import (
	"context"
	"fmt"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

// Providers return (value, ok, error) where ok distinguishes absence (false)
// from presence (true) even if the value itself is empty.

// ServerInfoProvider yields implementation metadata.
type ServerInfoProvider interface {
	ProvideServerInfo(ctx context.Context, session sessions.Session) (mcp.ImplementationInfo, bool, error)
}
type ServerInfoProviderFunc func(ctx context.Context, session sessions.Session) (mcp.ImplementationInfo, bool, error)

func (f ServerInfoProviderFunc) ProvideServerInfo(ctx context.Context, s sessions.Session) (mcp.ImplementationInfo, bool, error) {
	return f(ctx, s)
}

// ProtocolVersionProvider yields a preferred protocol version given the
// version the client asked for. It runs before a session exists.
type ProtocolVersionProvider interface {
	ProvideProtocolVersion(ctx context.Context, clientProtocolVersion string) (string, bool, error)
}
type ProtocolVersionProviderFunc func(ctx context.Context, clientProtocolVersion string) (string, bool, error)

func (f ProtocolVersionProviderFunc) ProvideProtocolVersion(ctx context.Context, v string) (string, bool, error) {
	return f(ctx, v)
}

// InstructionsProvider supplies optional human-readable instructions returned
// in initialize.
type InstructionsProvider interface {
	ProvideInstructions(ctx context.Context, session sessions.Session) (string, bool, error)
}
type InstructionsProviderFunc func(ctx context.Context, session sessions.Session) (string, bool, error)

func (f InstructionsProviderFunc) ProvideInstructions(ctx context.Context, s sessions.Session) (string, bool, error) {
	return f(ctx, s)
}

// ToolsCapabilityProvider yields a ToolsCapability. ok=false suppresses the
// entire capability.
type ToolsCapabilityProvider interface {
	ProvideTools(ctx context.Context, session sessions.Session) (ToolsCapability, bool, error)
}
type ToolsCapabilityProviderFunc func(ctx context.Context, session sessions.Session) (ToolsCapability, bool, error)

func (f ToolsCapabilityProviderFunc) ProvideTools(ctx context.Context, s sessions.Session) (ToolsCapability, bool, error) {
	return f(ctx, s)
}

// PromptsCapabilityProvider yields a PromptsCapability.
type PromptsCapabilityProvider interface {
	ProvidePrompts(ctx context.Context, session sessions.Session) (PromptsCapability, bool, error)
}
type PromptsCapabilityProviderFunc func(ctx context.Context, session sessions.Session) (PromptsCapability, bool, error)

func (f PromptsCapabilityProviderFunc) ProvidePrompts(ctx context.Context, s sessions.Session) (PromptsCapability, bool, error) {
	return f(ctx, s)
}

// LoggingCapabilityProvider yields logging/setLevel support.
type LoggingCapabilityProvider interface {
	ProvideLogging(ctx context.Context, session sessions.Session) (LoggingCapability, bool, error)
}
type LoggingCapabilityProviderFunc func(ctx context.Context, session sessions.Session) (LoggingCapability, bool, error)

func (f LoggingCapabilityProviderFunc) ProvideLogging(ctx context.Context, s sessions.Session) (LoggingCapability, bool, error) {
	return f(ctx, s)
}

// CompletionsCapabilityProvider yields the completions capability.
type CompletionsCapabilityProvider interface {
	ProvideCompletions(ctx context.Context, session sessions.Session) (CompletionsCapability, bool, error)
}
type CompletionsCapabilityProviderFunc func(ctx context.Context, session sessions.Session) (CompletionsCapability, bool, error)

func (f CompletionsCapabilityProviderFunc) ProvideCompletions(ctx context.Context, s sessions.Session) (CompletionsCapability, bool, error) {
	return f(ctx, s)
}

// ServerInfoOption configures optional fields on the server's implementation info.
type ServerInfoOption func(*mcp.ImplementationInfo)

// WithServerInfoTitle sets the optional human friendly title.
func WithServerInfoTitle(title string) ServerInfoOption {
	return func(info *mcp.ImplementationInfo) { info.Title = title }
}

// StaticServerInfo returns a provider that always supplies the same implementation info.
func StaticServerInfo(name, version string, opts ...ServerInfoOption) ServerInfoProvider {
	info := mcp.ImplementationInfo{Name: name, Version: version}
	for _, opt := range opts {
		if opt != nil {
			opt(&info)
		}
	}
	return ServerInfoProviderFunc(func(context.Context, sessions.Session) (mcp.ImplementationInfo, bool, error) { return info, true, nil })
}

func StaticProtocolVersion(v string) ProtocolVersionProvider {
	if v == "" {
		return ProtocolVersionProviderFunc(func(context.Context, string) (string, bool, error) { return "", false, nil })
	}
	if !mcp.IsSupportedProtocolVersion(v) {
		return ProtocolVersionProviderFunc(func(context.Context, string) (string, bool, error) {
			return "", false, fmt.Errorf("unsupported protocol version %q", v)
		})
	}
	return ProtocolVersionProviderFunc(func(context.Context, string) (string, bool, error) { return v, true, nil })
}

func StaticInstructions(s string) InstructionsProvider {
	return InstructionsProviderFunc(func(context.Context, sessions.Session) (string, bool, error) { return s, s != "", nil })
}

func StaticTools(cap ToolsCapability) ToolsCapabilityProvider {
	if cap == nil {
		return ToolsCapabilityProviderFunc(func(context.Context, sessions.Session) (ToolsCapability, bool, error) { return nil, false, nil })
	}
	return ToolsCapabilityProviderFunc(func(context.Context, sessions.Session) (ToolsCapability, bool, error) { return cap, true, nil })
}

func StaticPrompts(cap PromptsCapability) PromptsCapabilityProvider {
	if cap == nil {
		return PromptsCapabilityProviderFunc(func(context.Context, sessions.Session) (PromptsCapability, bool, error) { return nil, false, nil })
	}
	return PromptsCapabilityProviderFunc(func(context.Context, sessions.Session) (PromptsCapability, bool, error) { return cap, true, nil })
}

func StaticLogging(cap LoggingCapability) LoggingCapabilityProvider {
	if cap == nil {
		return LoggingCapabilityProviderFunc(func(context.Context, sessions.Session) (LoggingCapability, bool, error) { return nil, false, nil })
	}
	return LoggingCapabilityProviderFunc(func(context.Context, sessions.Session) (LoggingCapability, bool, error) { return cap, true, nil })
}

func StaticCompletionsProvider(cap CompletionsCapability) CompletionsCapabilityProvider {
	if cap == nil {
		return CompletionsCapabilityProviderFunc(func(context.Context, sessions.Session) (CompletionsCapability, bool, error) { return nil, false, nil })
	}
	return CompletionsCapabilityProviderFunc(func(context.Context, sessions.Session) (CompletionsCapability, bool, error) { return cap, true, nil })
}
