package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ggoodman/mcp-peer-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-peer-go/mcperr"
)

// chanTransport records every message sent through it.
type chanTransport struct {
	sent chan jsonrpc.Message
	err  error
}

func newChanTransport() *chanTransport {
	return &chanTransport{sent: make(chan jsonrpc.Message, 16)}
}

func (c *chanTransport) Send(ctx context.Context, msg jsonrpc.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent <- msg
	return nil
}

func (c *chanTransport) next(t *testing.T) jsonrpc.Message {
	t.Helper()
	select {
	case m := <-c.sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return jsonrpc.Message{}
	}
}

type callResult struct {
	raw json.RawMessage
	err error
}

func TestDispatcher_RequestResponse_OutOfOrder(t *testing.T) {
	t.Parallel()

	tr := newChanTransport()
	d := New(tr)
	ctx := context.Background()

	res1 := make(chan callResult, 1)
	res2 := make(chan callResult, 1)
	go func() {
		raw, err := d.Call(ctx, "test/m1", map[string]any{"a": 1})
		res1 <- callResult{raw, err}
	}()
	req1 := tr.next(t)
	go func() {
		raw, err := d.Call(ctx, "test/m2", map[string]any{"b": 2})
		res2 <- callResult{raw, err}
	}()
	req2 := tr.next(t)

	if req1.ID.Equal(req2.ID) {
		t.Fatalf("expected distinct ids, both were %s", req1.ID)
	}
	if got := d.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}

	resp2, _ := jsonrpc.NewResultResponse(req2.ID, map[string]int{"ok": 2})
	if !d.OnResponse(resp2) {
		t.Fatal("response 2 was not matched")
	}
	resp1, _ := jsonrpc.NewResultResponse(req1.ID, map[string]int{"ok": 1})
	if !d.OnResponse(resp1) {
		t.Fatal("response 1 was not matched")
	}

	if got := <-res2; got.err != nil || string(got.raw) != `{"ok":2}` {
		t.Fatalf("call 2 = %s, %v", got.raw, got.err)
	}
	if got := <-res1; got.err != nil || string(got.raw) != `{"ok":1}` {
		t.Fatalf("call 1 = %s, %v", got.raw, got.err)
	}
	if got := d.Pending(); got != 0 {
		t.Fatalf("Pending() = %d, want 0", got)
	}
}

func TestDispatcher_RemoteErrorIsTyped(t *testing.T) {
	t.Parallel()

	tr := newChanTransport()
	d := New(tr)

	done := make(chan error, 1)
	go func() {
		_, err := d.Call(context.Background(), "sampling/createMessage", nil)
		done <- err
	}()
	req := tr.next(t)
	d.OnResponse(jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "nope", nil))

	var remote *mcperr.RemoteError
	if err := <-done; !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Code != -32601 || remote.Message != "nope" {
		t.Fatalf("remote error = %+v", remote)
	}
}

func TestDispatcher_CancelContext_SendsCancelled(t *testing.T) {
	t.Parallel()

	tr := newChanTransport()
	d := New(tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := d.Call(ctx, "test/m", nil)
		done <- err
	}()
	req := tr.next(t)

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	notif := tr.next(t)
	if notif.Kind != jsonrpc.KindNotification || notif.Method != "notifications/cancelled" {
		t.Fatalf("expected cancelled notification, got %+v", notif)
	}
	var p struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(notif.Params, &p); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if p.RequestID != req.ID.String() {
		t.Fatalf("cancelled requestId mismatch: got %s want %s", p.RequestID, req.ID.String())
	}

	late, _ := jsonrpc.NewResultResponse(req.ID, struct{}{})
	if d.OnResponse(late) {
		t.Fatal("late response must not be matched")
	}
}

func TestDispatcher_Timeout(t *testing.T) {
	t.Parallel()

	tr := newChanTransport()
	d := New(tr, WithTimeout(20*time.Millisecond))

	_, err := d.Call(context.Background(), "test/slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if got := d.Pending(); got != 0 {
		t.Fatalf("Pending() = %d after timeout", got)
	}
}

func TestDispatcher_CloseFailsPendingCalls(t *testing.T) {
	t.Parallel()

	tr := newChanTransport()
	var observed []int
	d := New(tr, WithPendingObserver(func(n int) { observed = append(observed, n) }))

	done := make(chan error, 1)
	go func() {
		_, err := d.Call(context.Background(), "roots/list", nil)
		done <- err
	}()
	tr.next(t)

	d.Close(nil)
	if err := <-done; !errors.Is(err, mcperr.ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
	if _, err := d.Call(context.Background(), "ping", nil); !errors.Is(err, mcperr.ErrConnectionClosed) {
		t.Fatalf("Call after Close = %v", err)
	}
	d.Close(errors.New("ignored"))

	if len(observed) < 2 || observed[0] != 1 || observed[len(observed)-1] != 0 {
		t.Fatalf("pending observations = %v", observed)
	}
}

func TestDispatcher_RemoteCancelled(t *testing.T) {
	t.Parallel()

	tr := newChanTransport()
	d := New(tr)

	done := make(chan error, 1)
	go func() {
		_, err := d.Call(context.Background(), "test/m", nil)
		done <- err
	}()
	req := tr.next(t)

	if !d.OnCancelled(req.ID) {
		t.Fatal("OnCancelled did not find the call")
	}
	if err := <-done; !errors.Is(err, ErrRemoteCancelled) {
		t.Fatalf("expected ErrRemoteCancelled, got %v", err)
	}
}

func TestDispatcher_SendFailure(t *testing.T) {
	t.Parallel()

	tr := newChanTransport()
	tr.err = errors.New("pipe broke")
	d := New(tr)

	if _, err := d.Call(context.Background(), "ping", nil); err == nil {
		t.Fatal("expected send failure")
	}
	if got := d.Pending(); got != 0 {
		t.Fatalf("Pending() = %d after failed send", got)
	}
}

func TestDispatcher_UnmatchedResponseIgnored(t *testing.T) {
	t.Parallel()

	d := New(newChanTransport())
	resp, _ := jsonrpc.NewResultResponse(jsonrpc.NewRequestID("nobody"), struct{}{})
	if d.OnResponse(resp) {
		t.Fatal("unmatched response reported as matched")
	}
}
