// Package peer is the public entry point for running an MCP connection.
//
// A Peer wraps one transport. Configure it with WithServer to answer MCP
// server requests, with WithClient to answer the callbacks a server makes
// into its client, or with both. The same Peer can always issue requests of
// its own:
//
//	reg := mcpservice.NewRegistry()
//	_ = reg.RegisterTools(myTool)
//	srv := mcpservice.NewServer(
//		mcpservice.WithServerInfo(mcpservice.StaticServerInfo("demo", "1.0.0")),
//		mcpservice.WithToolsCapability(reg.Tools()),
//	)
//	p := peer.New(transport.NewStdio(), peer.WithServer(srv))
//	err := p.Serve(ctx)
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-peer-go/internal/engine"
	"github.com/ggoodman/mcp-peer-go/mcpservice"
	"github.com/ggoodman/mcp-peer-go/sessions"
	"github.com/ggoodman/mcp-peer-go/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrAlreadyServing is returned when Serve is called twice.
var ErrAlreadyServing = engine.ErrAlreadyServing

// RequestHandler serves a custom request method.
type RequestHandler func(ctx context.Context, session sessions.Session, params json.RawMessage) (any, error)

// NotificationHandler observes an inbound notification.
type NotificationHandler func(ctx context.Context, session sessions.Session, params json.RawMessage) error

// Peer is one end of an MCP connection.
type Peer struct {
	eng  *engine.Engine
	cli  mcpservice.ClientCapabilities
	opts []engine.Option
}

// Option configures a Peer.
type Option func(*Peer)

// WithServer answers initialize, tools, prompts, completions and logging
// requests from srv.
func WithServer(srv mcpservice.ServerCapabilities) Option {
	return func(p *Peer) { p.opts = append(p.opts, engine.WithServer(srv)) }
}

// WithClient answers roots/list and sampling/createMessage from cli and uses
// its info and capabilities in Initialize.
func WithClient(cli mcpservice.ClientCapabilities) Option {
	return func(p *Peer) {
		p.cli = cli
		p.opts = append(p.opts, engine.WithClient(cli))
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Peer) { p.opts = append(p.opts, engine.WithLogger(l)) }
}

// WithUserID sets the principal reported by Session().UserID().
func WithUserID(id string) Option {
	return func(p *Peer) { p.opts = append(p.opts, engine.WithUserID(id)) }
}

// WithRequestTimeout bounds every request this peer sends. Zero means no
// bound beyond the caller's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Peer) { p.opts = append(p.opts, engine.WithRequestTimeout(d)) }
}

// WithMaxConcurrentRequests caps concurrently running inbound handlers.
func WithMaxConcurrentRequests(n int64) Option {
	return func(p *Peer) { p.opts = append(p.opts, engine.WithMaxConcurrentRequests(n)) }
}

// WithMetricsRegisterer publishes Prometheus metrics to reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(p *Peer) { p.opts = append(p.opts, engine.WithMetricsRegisterer(reg)) }
}

// WithOnClose registers fn to run after the connection has shut down.
func WithOnClose(fn func(err error)) Option {
	return func(p *Peer) { p.opts = append(p.opts, engine.WithOnClose(fn)) }
}

// WithRequestHandler serves a custom request method.
func WithRequestHandler(method string, fn RequestHandler) Option {
	return func(p *Peer) {
		if fn != nil {
			p.opts = append(p.opts, engine.WithRequestHandler(method, engine.RequestHandler(fn)))
		}
	}
}

// WithNotificationHandler observes a notification method, for example
// notifications/tools/list_changed sent by a server.
func WithNotificationHandler(method string, fn NotificationHandler) Option {
	return func(p *Peer) {
		if fn != nil {
			p.opts = append(p.opts, engine.WithNotificationHandler(method, engine.NotificationHandler(fn)))
		}
	}
}

// New creates a peer over t. Nothing happens until Serve is called.
func New(t transport.Transport, opts ...Option) *Peer {
	p := &Peer{}
	for _, opt := range opts {
		opt(p)
	}
	p.eng = engine.New(t, p.opts...)
	p.opts = nil
	return p
}

// Serve reads and dispatches messages until the transport ends, ctx is done
// or Close is called. It returns nil on a clean end of stream.
func (p *Peer) Serve(ctx context.Context) error { return p.eng.Serve(ctx) }

// Close closes the transport, ending Serve.
func (p *Peer) Close() error { return p.eng.Close() }

// Done is closed once Serve has returned.
func (p *Peer) Done() <-chan struct{} { return p.eng.Done() }

// Session returns the session view of this connection.
func (p *Peer) Session() sessions.Session { return p.eng.Session() }

// Initialized reports whether the remote client sent notifications/initialized.
func (p *Peer) Initialized() bool { return p.eng.Initialized() }

// Call sends method with params and decodes the result into result, which
// may be nil to discard it. Errors the peer returns are *mcperr.RemoteError.
// Calls made before Serve has connected the transport wait for it.
func (p *Peer) Call(ctx context.Context, method string, params, result any) error {
	raw, err := p.eng.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Notify sends a notification.
func (p *Peer) Notify(ctx context.Context, method string, params any) error {
	return p.eng.Notify(ctx, method, params)
}
