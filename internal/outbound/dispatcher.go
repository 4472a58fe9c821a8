// Package outbound correlates JSON-RPC requests this process sends with the
// responses its peer eventually returns.
package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ggoodman/mcp-peer-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcperr"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Transport abstracts how requests and notifications reach the peer.
type Transport interface {
	Send(ctx context.Context, msg jsonrpc.Message) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, msg jsonrpc.Message) error

func (f TransportFunc) Send(ctx context.Context, msg jsonrpc.Message) error { return f(ctx, msg) }

// ErrRemoteCancelled indicates the peer cancelled the request.
var ErrRemoteCancelled = errors.New("remote cancelled")

// DefaultAbandonedCacheSize bounds how many abandoned ids are remembered for
// classifying late responses.
const DefaultAbandonedCacheSize = 1024

type pendingCall struct {
	method string
	respCh chan jsonrpc.Message
	errCh  chan error
}

// Dispatcher coordinates outgoing JSON-RPC requests with correlation,
// cancellation and response routing. Correlation is solely by id.
type Dispatcher struct {
	t   Transport
	log *slog.Logger

	newID     func() string
	timeout   time.Duration
	onPending func(n int)

	mu       sync.Mutex
	pending  map[string]*pendingCall // id.Key() -> call
	closed   bool
	closeErr error

	// abandoned remembers ids whose callers gave up so that a response that
	// arrives afterwards is logged as late rather than spurious.
	abandoned *lru.Cache[string, struct{}]
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithTimeout bounds every call. Zero disables the bound; callers can still
// apply their own context deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithIDGenerator replaces the uuid-based id source.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// WithPendingObserver registers fn to be called with the number of in-flight
// calls every time it changes.
func WithPendingObserver(fn func(n int)) Option {
	return func(d *Dispatcher) { d.onPending = fn }
}

// WithAbandonedCacheSize overrides DefaultAbandonedCacheSize.
func WithAbandonedCacheSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.abandoned, _ = lru.New[string, struct{}](n)
		}
	}
}

// New constructs a Dispatcher using the provided transport.
func New(t Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		t:       t,
		log:     slog.Default(),
		newID:   uuid.NewString,
		pending: make(map[string]*pendingCall),
	}
	d.abandoned, _ = lru.New[string, struct{}](DefaultAbandonedCacheSize)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call sends a request and waits for the matching response. It returns the
// raw result on success, *mcperr.RemoteError when the peer answered with an
// error, mcperr.ErrConnectionClosed (or the error passed to Close) when the
// dispatcher closes first, and the context's error on cancellation or
// timeout. Abandoned calls are announced to the peer with
// notifications/cancelled.
func (d *Dispatcher) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	id := jsonrpc.NewRequestID(d.newID())
	key := id.Key()

	msg, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	pc := &pendingCall{method: method, respCh: make(chan jsonrpc.Message, 1), errCh: make(chan error, 1)}
	d.mu.Lock()
	if d.closed {
		err := d.closeErr
		d.mu.Unlock()
		return nil, err
	}
	d.pending[key] = pc
	n := len(d.pending)
	d.mu.Unlock()
	d.observe(n)

	if err := d.t.Send(ctx, msg); err != nil {
		d.remove(key)
		return nil, fmt.Errorf("send %s request: %w", method, err)
	}

	select {
	case resp := <-pc.respCh:
		if resp.Error != nil {
			return nil, &mcperr.RemoteError{
				Code:    int(resp.Error.Code),
				Message: resp.Error.Message,
				Data:    resp.Error.Data,
			}
		}
		return resp.Result, nil
	case err := <-pc.errCh:
		return nil, err
	case <-ctx.Done():
		if d.remove(key) {
			d.abandoned.Add(key, struct{}{})
			cancelled, err := jsonrpc.NewNotification(string(mcp.CancelledNotificationMethod), mcp.NewCancelledNotification(id.String(), context.Cause(ctx).Error()))
			if err == nil {
				if err := d.t.Send(context.WithoutCancel(ctx), cancelled); err != nil {
					d.log.DebugContext(ctx, "outbound.cancel.send.err", slog.String("method", method), slog.String("err", err.Error()))
				}
			}
		}
		return nil, ctx.Err()
	}
}

// OnResponse delivers an incoming response to a waiting call and reports
// whether one was waiting. Unmatched responses are dropped.
func (d *Dispatcher) OnResponse(resp jsonrpc.Message) bool {
	if resp.Kind != jsonrpc.KindResponse || resp.ID.IsNil() {
		d.log.Debug("outbound.response.unmatched", slog.String("reason", "no id"))
		return false
	}
	key := resp.ID.Key()

	d.mu.Lock()
	pc, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	n := len(d.pending)
	d.mu.Unlock()

	if !ok {
		if d.abandoned.Contains(key) {
			d.log.Debug("outbound.response.late", slog.String("id", resp.ID.String()))
		} else {
			d.log.Debug("outbound.response.unmatched", slog.String("id", resp.ID.String()))
		}
		return false
	}
	d.observe(n)
	pc.respCh <- resp
	return true
}

// OnCancelled fails the call with the given id with ErrRemoteCancelled. Peers
// use notifications/cancelled for this when they refuse to finish a request
// we sent them.
func (d *Dispatcher) OnCancelled(id *jsonrpc.RequestID) bool {
	if id.IsNil() {
		return false
	}
	key := id.Key()
	d.mu.Lock()
	pc, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	n := len(d.pending)
	d.mu.Unlock()
	if !ok {
		return false
	}
	d.observe(n)
	pc.errCh <- ErrRemoteCancelled
	return true
}

// Pending returns the number of in-flight calls.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close fails all pending calls with err (mcperr.ErrConnectionClosed when nil)
// and makes every later Call fail the same way. Close is idempotent.
func (d *Dispatcher) Close(err error) {
	if err == nil {
		err = mcperr.ErrConnectionClosed
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.closeErr = err
	calls := d.pending
	d.pending = make(map[string]*pendingCall)
	d.mu.Unlock()

	for _, pc := range calls {
		pc.errCh <- err
	}
	d.observe(0)
}

func (d *Dispatcher) remove(key string) bool {
	d.mu.Lock()
	_, ok := d.pending[key]
	delete(d.pending, key)
	n := len(d.pending)
	d.mu.Unlock()
	if ok {
		d.observe(n)
	}
	return ok
}

func (d *Dispatcher) observe(n int) {
	if d.onPending != nil {
		d.onPending(n)
	}
}
