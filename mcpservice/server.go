package mcpservice

import (
	"context"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

// ServerOption configures a concrete ServerCapabilities implementation.
type ServerOption func(*server)

type server struct {
	info         ServerInfoProvider
	protocol     ProtocolVersionProvider
	instructions InstructionsProvider
	tools        ToolsCapabilityProvider
	prompts      PromptsCapabilityProvider
	logging      LoggingCapabilityProvider
	completions  CompletionsCapabilityProvider
}

// NewServer builds a ServerCapabilities from providers. Every capability is
// absent unless an option supplies it.
func NewServer(opts ...ServerOption) ServerCapabilities {
	s := &server{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithServerInfo sets the provider for server info. Use StaticServerInfo for a
// fixed value.
func WithServerInfo(p ServerInfoProvider) ServerOption {
	return func(s *server) { s.info = p }
}

// WithProtocolVersion sets the provider for the preferred protocol version.
func WithProtocolVersion(p ProtocolVersionProvider) ServerOption {
	return func(s *server) { s.protocol = p }
}

// WithInstructions sets the provider for initialize instructions.
func WithInstructions(p InstructionsProvider) ServerOption {
	return func(s *server) { s.instructions = p }
}

// WithToolsCapability wires tools. *RegistryTools satisfies the provider
// interface directly; use StaticTools for any other ToolsCapability.
func WithToolsCapability(p ToolsCapabilityProvider) ServerOption {
	return func(s *server) { s.tools = p }
}

// WithPromptsCapability wires prompts.
func WithPromptsCapability(p PromptsCapabilityProvider) ServerOption {
	return func(s *server) { s.prompts = p }
}

// WithLoggingCapability wires logging/setLevel.
func WithLoggingCapability(p LoggingCapabilityProvider) ServerOption {
	return func(s *server) { s.logging = p }
}

// WithCompletionsCapability wires completion/complete.
func WithCompletionsCapability(p CompletionsCapabilityProvider) ServerOption {
	return func(s *server) { s.completions = p }
}

// GetServerInfo implements ServerCapabilities.
func (s *server) GetServerInfo(ctx context.Context, session sessions.Session) (mcp.ImplementationInfo, error) {
	if s.info == nil {
		return mcp.ImplementationInfo{}, nil
	}
	info, _, err := s.info.ProvideServerInfo(ctx, session)
	return info, err
}

// GetPreferredProtocolVersion implements ServerCapabilities.
func (s *server) GetPreferredProtocolVersion(ctx context.Context, clientVersion string) (string, bool, error) {
	if s.protocol == nil {
		return "", false, nil
	}
	return s.protocol.ProvideProtocolVersion(ctx, clientVersion)
}

// GetInstructions implements ServerCapabilities.
func (s *server) GetInstructions(ctx context.Context, session sessions.Session) (string, bool, error) {
	if s.instructions == nil {
		return "", false, nil
	}
	return s.instructions.ProvideInstructions(ctx, session)
}

// GetToolsCapability implements ServerCapabilities.
func (s *server) GetToolsCapability(ctx context.Context, session sessions.Session) (ToolsCapability, bool, error) {
	if s.tools == nil {
		return nil, false, nil
	}
	return s.tools.ProvideTools(ctx, session)
}

// GetPromptsCapability implements ServerCapabilities.
func (s *server) GetPromptsCapability(ctx context.Context, session sessions.Session) (PromptsCapability, bool, error) {
	if s.prompts == nil {
		return nil, false, nil
	}
	return s.prompts.ProvidePrompts(ctx, session)
}

// GetLoggingCapability implements ServerCapabilities.
func (s *server) GetLoggingCapability(ctx context.Context, session sessions.Session) (LoggingCapability, bool, error) {
	if s.logging == nil {
		return nil, false, nil
	}
	return s.logging.ProvideLogging(ctx, session)
}

// GetCompletionsCapability implements ServerCapabilities.
func (s *server) GetCompletionsCapability(ctx context.Context, session sessions.Session) (CompletionsCapability, bool, error) {
	if s.completions == nil {
		return nil, false, nil
	}
	return s.completions.ProvideCompletions(ctx, session)
}
