package mcpservice

import (
	"context"
	"slices"

	"github.com/ggoodman/mcp-peer-go/mcp"
)

// ClientCapabilities is the surface the engine consults when the remote peer
// is a server and calls back into this process (roots/list,
// sampling/createMessage). Absent capabilities are answered with "method not
// found".
type ClientCapabilities interface {
	GetClientInfo() mcp.ImplementationInfo
	GetRootsProvider() (RootsProvider, bool)
	GetSamplingHandler() (SamplingHandler, bool)
}

// RootsProvider answers roots/list.
type RootsProvider interface {
	ListRoots(ctx context.Context) ([]mcp.Root, error)
}

// RootsProviderFunc adapts a function to a RootsProvider.
type RootsProviderFunc func(ctx context.Context) ([]mcp.Root, error)

func (f RootsProviderFunc) ListRoots(ctx context.Context) ([]mcp.Root, error) { return f(ctx) }

// StaticRoots returns a provider that always lists the same roots.
func StaticRoots(roots ...mcp.Root) RootsProvider {
	return RootsProviderFunc(func(context.Context) ([]mcp.Root, error) {
		return slices.Clone(roots), nil
	})
}

// SamplingHandler answers sampling/createMessage.
type SamplingHandler interface {
	CreateMessage(ctx context.Context, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error)
}

// SamplingHandlerFunc adapts a function to a SamplingHandler.
type SamplingHandlerFunc func(ctx context.Context, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error)

func (f SamplingHandlerFunc) CreateMessage(ctx context.Context, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error) {
	return f(ctx, req)
}

// ClientOption configures NewClient.
type ClientOption func(*client)

type client struct {
	info     mcp.ImplementationInfo
	roots    RootsProvider
	sampling SamplingHandler
}

// NewClient builds a ClientCapabilities from options.
func NewClient(opts ...ClientOption) ClientCapabilities {
	c := &client{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithClientInfo sets the implementation info sent in initialize.
func WithClientInfo(name, version string) ClientOption {
	return func(c *client) { c.info = mcp.ImplementationInfo{Name: name, Version: version} }
}

// WithRoots advertises the roots capability (with listChanged) and answers
// roots/list from p.
func WithRoots(p RootsProvider) ClientOption {
	return func(c *client) { c.roots = p }
}

// WithSampling advertises the sampling capability and answers
// sampling/createMessage with h.
func WithSampling(h SamplingHandler) ClientOption {
	return func(c *client) { c.sampling = h }
}

func (c *client) GetClientInfo() mcp.ImplementationInfo { return c.info }

func (c *client) GetRootsProvider() (RootsProvider, bool) { return c.roots, c.roots != nil }

func (c *client) GetSamplingHandler() (SamplingHandler, bool) {
	return c.sampling, c.sampling != nil
}
