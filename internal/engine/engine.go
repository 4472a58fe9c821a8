// Package engine drives one MCP connection: it owns the read loop, routes
// inbound requests and notifications, and correlates the requests this
// process sends with the responses the peer returns.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/mcp-peer-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-peer-go/internal/logctx"
	"github.com/ggoodman/mcp-peer-go/internal/outbound"
	"github.com/ggoodman/mcp-peer-go/internal/rpcerr"
	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcpservice"
	"github.com/ggoodman/mcp-peer-go/sessions"
	"github.com/ggoodman/mcp-peer-go/transport"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"
)

// ErrAlreadyServing is returned when Serve is called twice.
var ErrAlreadyServing = errors.New("engine already serving")

// RequestHandler serves a custom request method. The returned value is
// marshalled as the result.
type RequestHandler func(ctx context.Context, session sessions.Session, params json.RawMessage) (any, error)

// NotificationHandler observes an inbound notification. Errors are logged.
type NotificationHandler func(ctx context.Context, session sessions.Session, params json.RawMessage) error

// Engine is the dispatcher for a single transport. The same engine can serve
// server capabilities, client capabilities or both.
type Engine struct {
	t   transport.Transport
	srv mcpservice.ServerCapabilities
	cli mcpservice.ClientCapabilities
	log *slog.Logger

	params   *jsonrpc.ParamsTable
	requests map[string]RequestHandler
	notifies map[string]NotificationHandler

	out     *outbound.Dispatcher
	outOpts []outbound.Option

	sess    *session
	sem     *semaphore.Weighted
	metrics *metrics
	onClose func(error)

	// inflight maps an inbound request id key to the cancel func of its handler.
	inflightMu sync.Mutex
	inflight   map[string]context.CancelCauseFunc
	wg         sync.WaitGroup

	serving   atomic.Bool
	serveCtx  context.Context
	listeners atomic.Bool
	ready     chan struct{} // closed once the transport is connected
	done      chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithServer makes the engine answer server-side methods (initialize, tools,
// prompts, completions, logging) from srv.
func WithServer(srv mcpservice.ServerCapabilities) Option {
	return func(e *Engine) { e.srv = srv }
}

// WithClient makes the engine answer client-side methods (roots/list,
// sampling/createMessage) from cli.
func WithClient(cli mcpservice.ClientCapabilities) Option {
	return func(e *Engine) { e.cli = cli }
}

// WithLogger sets the base logger. rpc, sess and tool attribute groups are
// added from context automatically.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithUserID sets the principal reported by Session.UserID.
func WithUserID(id string) Option {
	return func(e *Engine) { e.sess.userID = id }
}

// WithRequestTimeout bounds every outbound call.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) { e.outOpts = append(e.outOpts, outbound.WithTimeout(d)) }
}

// WithOutboundIDGenerator overrides the generator for outbound request ids.
func WithOutboundIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.outOpts = append(e.outOpts, outbound.WithIDGenerator(fn)) }
}

// WithMaxConcurrentRequests caps how many inbound request handlers run at
// once. Excess requests wait for a slot; reading continues meanwhile so that
// cancellations and responses are never blocked.
func WithMaxConcurrentRequests(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithMetricsRegisterer enables Prometheus metrics.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.metrics = newMetrics(reg) }
}

// WithOnClose registers a callback invoked once the read loop has ended and
// the transport is closed. err is nil on a clean end of stream.
func WithOnClose(fn func(err error)) Option {
	return func(e *Engine) { e.onClose = fn }
}

// WithRequestHandler serves a custom method. Built-in methods cannot be
// overridden.
func WithRequestHandler(method string, fn RequestHandler) Option {
	return func(e *Engine) {
		if fn != nil {
			e.requests[method] = fn
		}
	}
}

// WithNotificationHandler observes a notification method. It runs after any
// built-in handling, on its own goroutine.
func WithNotificationHandler(method string, fn NotificationHandler) Option {
	return func(e *Engine) {
		if fn != nil {
			e.notifies[method] = fn
		}
	}
}

// New builds an engine around t. Nothing is read until Serve is called.
func New(t transport.Transport, opts ...Option) *Engine {
	e := &Engine{
		t:        t,
		log:      slog.Default(),
		params:   jsonrpc.NewParamsTable(),
		requests: make(map[string]RequestHandler),
		notifies: make(map[string]NotificationHandler),
		inflight: make(map[string]context.CancelCauseFunc),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	e.sess = newSession(e, uuid.NewString())
	for _, opt := range opts {
		opt(e)
	}
	e.log = slog.New(logctx.New(e.log.Handler()))
	e.registerParams()

	outOpts := append([]outbound.Option{
		outbound.WithLogger(e.log),
		outbound.WithPendingObserver(e.metrics.pending),
	}, e.outOpts...)
	e.out = outbound.New(outbound.TransportFunc(e.writeMessage), outOpts...)
	return e
}

func (e *Engine) registerParams() {
	jsonrpc.RegisterParams[mcp.InitializeRequest](e.params, string(mcp.InitializeMethod))
	jsonrpc.RegisterParams[mcp.PingRequest](e.params, string(mcp.PingMethod))
	jsonrpc.RegisterParams[mcp.ListToolsRequest](e.params, string(mcp.ToolsListMethod))
	jsonrpc.RegisterParams[mcp.CallToolRequestReceived](e.params, string(mcp.ToolsCallMethod))
	jsonrpc.RegisterParams[mcp.ListPromptsRequest](e.params, string(mcp.PromptsListMethod))
	jsonrpc.RegisterParams[mcp.GetPromptRequestReceived](e.params, string(mcp.PromptsGetMethod))
	jsonrpc.RegisterParams[mcp.CompleteRequest](e.params, string(mcp.CompletionCompleteMethod))
	jsonrpc.RegisterParams[mcp.SetLevelRequest](e.params, string(mcp.LoggingSetLevelMethod))
	jsonrpc.RegisterParams[mcp.ListRootsRequest](e.params, string(mcp.RootsListMethod))
	jsonrpc.RegisterParams[mcp.CreateMessageRequest](e.params, string(mcp.SamplingCreateMessageMethod))

	jsonrpc.RegisterParams[mcp.InitializedNotification](e.params, string(mcp.InitializedNotificationMethod))
	jsonrpc.RegisterParams[mcp.CancelledNotification](e.params, string(mcp.CancelledNotificationMethod))
	jsonrpc.RegisterParams[mcp.ProgressNotificationParams](e.params, string(mcp.ProgressNotificationMethod))
	jsonrpc.RegisterParams[mcp.LoggingMessageNotification](e.params, string(mcp.LoggingMessageNotificationMethod))
	jsonrpc.RegisterParams[mcp.ToolListChangedNotification](e.params, string(mcp.ToolsListChangedNotificationMethod))
	jsonrpc.RegisterParams[mcp.PromptListChangedNotification](e.params, string(mcp.PromptsListChangedNotificationMethod))
	jsonrpc.RegisterParams[mcp.RootsListChangedNotification](e.params, string(mcp.RootsListChangedNotificationMethod))

	for method := range e.requests {
		if !e.params.Has(method) {
			jsonrpc.RegisterParams[json.RawMessage](e.params, method)
		}
	}
	for method := range e.notifies {
		if !e.params.Has(method) {
			jsonrpc.RegisterParams[json.RawMessage](e.params, method)
		}
	}
}

// Session returns the session view handed to capability code.
func (e *Engine) Session() sessions.Session { return e.sess }

// Initialized reports whether the peer has sent notifications/initialized.
func (e *Engine) Initialized() bool { return e.sess.isInitialized() }

// Done is closed when Serve has returned and cleanup has finished.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Serve runs the read loop until the transport reports end of stream, a read
// fails or ctx is done. On the way out the transport is closed, pending
// outbound calls fail with mcperr.ErrConnectionClosed and in-flight handlers
// are cancelled and awaited.
func (e *Engine) Serve(ctx context.Context) (err error) {
	if !e.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}

	ctx, cancel := context.WithCancelCause(ctx)
	e.serveCtx = ctx
	defer func() {
		cancel(context.Canceled)
		// Closing first releases handlers blocked writing to a stalled peer.
		if cerr := e.t.Close(); cerr != nil {
			e.log.Debug("engine.transport.close.err", slog.String("err", cerr.Error()))
		}
		e.out.Close(nil)
		e.wg.Wait()
		e.log.Info("engine.serve.done", slog.Any("err", err))
		if e.onClose != nil {
			e.onClose(err)
		}
		close(e.done)
	}()

	if err := e.t.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}
	close(e.ready)

	for {
		line, err := e.t.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		e.handleLine(ctx, line)
	}
}

// Close closes the transport, which ends a running Serve loop.
func (e *Engine) Close() error {
	return e.t.Close()
}

// Call sends a request to the peer and waits for its response. Calls made
// before Serve has connected the transport wait for it.
func (e *Engine) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := e.waitReady(ctx); err != nil {
		return nil, err
	}
	return e.out.Call(ctx, method, params)
}

func (e *Engine) handleLine(ctx context.Context, line string) {
	msg, err := jsonrpc.Parse([]byte(line))
	if err != nil {
		var mal *jsonrpc.MalformedMessageError
		if errors.As(err, &mal) && !mal.ID.IsNil() {
			e.log.InfoContext(ctx, "engine.parse.invalid", slog.String("id", mal.ID.String()), slog.String("err", err.Error()))
			code, text := rpcerr.Classify("", err)
			if werr := e.writeMessage(ctx, jsonrpc.NewErrorResponse(mal.ID, code, text, nil)); werr != nil {
				e.log.ErrorContext(ctx, "engine.write.fail", slog.String("err", werr.Error()))
			}
			return
		}
		e.log.DebugContext(ctx, "engine.parse.drop", slog.String("err", err.Error()))
		return
	}

	switch msg.Kind {
	case jsonrpc.KindResponse:
		e.out.OnResponse(msg)
	case jsonrpc.KindNotification:
		e.handleNotification(ctx, msg)
	case jsonrpc.KindRequest:
		e.startRequest(ctx, msg)
	}
}

// startRequest registers the request as in flight before its goroutine
// starts so that a cancellation on the very next line finds it.
func (e *Engine) startRequest(ctx context.Context, msg jsonrpc.Message) {
	key := msg.ID.Key()
	reqCtx, cancel := context.WithCancelCause(ctx)

	e.inflightMu.Lock()
	if _, dup := e.inflight[key]; dup {
		e.inflightMu.Unlock()
		cancel(nil)
		e.log.WarnContext(ctx, "engine.handle_request.duplicate", slog.String("method", msg.Method), slog.String("id", msg.ID.String()))
		resp := jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidRequest,
			fmt.Sprintf("duplicate request id %s in %s request", msg.ID, msg.Method), nil)
		if err := e.writeMessage(ctx, resp); err != nil {
			e.log.ErrorContext(ctx, "engine.write.fail", slog.String("err", err.Error()))
		}
		return
	}
	e.inflight[key] = cancel
	e.inflightMu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.inflightMu.Lock()
			delete(e.inflight, key)
			e.inflightMu.Unlock()
			cancel(context.Canceled)
		}()

		if e.sem != nil {
			if err := e.sem.Acquire(reqCtx, 1); err != nil {
				return
			}
			defer e.sem.Release(1)
		}
		e.serveRequest(reqCtx, msg)
	}()
}

// cancelInflight cancels the handler serving id. It reports whether one was
// running.
func (e *Engine) cancelInflight(id *jsonrpc.RequestID, reason string) bool {
	e.inflightMu.Lock()
	cancel, ok := e.inflight[id.Key()]
	e.inflightMu.Unlock()
	if !ok {
		return false
	}
	if reason == "" {
		reason = "cancelled by peer"
	}
	cancel(errors.New(reason))
	return true
}

func (e *Engine) serveRequest(ctx context.Context, msg jsonrpc.Message) {
	start := time.Now()
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String(), Type: msg.Kind.String()})
	ctx = e.sess.withLogData(ctx)
	metricMethod := e.metricMethod(msg.Method)
	e.metrics.requestStarted()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		result, err = e.dispatch(ctx, msg)
	}()

	if ctx.Err() != nil {
		// The call was abandoned, not failed: no response.
		e.log.InfoContext(ctx, "engine.handle_request.cancelled", slog.String("cause", context.Cause(ctx).Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		e.metrics.requestDone(metricMethod, "cancelled", time.Since(start))
		return
	}

	var resp jsonrpc.Message
	if err == nil {
		resp, err = jsonrpc.NewResultResponse(msg.ID, result)
	}
	if err != nil {
		code, text := rpcerr.Classify(msg.Method, err)
		switch code {
		case jsonrpc.ErrorCodeInternalError:
			e.log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		case jsonrpc.ErrorCodeMethodNotFound:
			e.log.InfoContext(ctx, "engine.handle_request.unsupported", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		default:
			e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		}
		resp = jsonrpc.NewErrorResponse(msg.ID, code, text, rpcerr.Detail(err))
		e.metrics.requestDone(metricMethod, code.String(), time.Since(start))
	} else {
		e.log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		e.metrics.requestDone(metricMethod, "ok", time.Since(start))
	}

	if err := e.writeMessage(ctx, resp); err != nil {
		e.log.ErrorContext(ctx, "engine.write.fail", slog.String("err", err.Error()))
	}
}

// metricMethod bounds label cardinality to methods the engine knows about.
func (e *Engine) metricMethod(method string) string {
	if e.params.Has(method) {
		return method
	}
	return "unknown"
}

// decode resolves params for msg through the params table and asserts the
// registered type.
func decode[T any](e *Engine, msg jsonrpc.Message) (*T, error) {
	v, err := e.params.Decode(msg.Method, msg.Params)
	if err != nil {
		return nil, err
	}
	p, ok := v.(*T)
	if !ok {
		return nil, fmt.Errorf("params for %s decoded as %T", msg.Method, v)
	}
	return p, nil
}
