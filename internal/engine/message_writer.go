package engine

import (
	"context"
	"fmt"

	"github.com/ggoodman/mcp-peer-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-peer-go/mcperr"
)

// Notify sends a notification to the peer.
func (e *Engine) Notify(ctx context.Context, method string, params any) error {
	if err := e.waitReady(ctx); err != nil {
		return err
	}
	msg, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}
	return e.writeMessage(ctx, msg)
}

// writeMessage encodes msg as one line. Transports serialize concurrent
// writers, so responses from parallel handlers never interleave.
func (e *Engine) writeMessage(ctx context.Context, msg jsonrpc.Message) error {
	b, err := jsonrpc.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind, err)
	}
	return e.t.WriteLine(ctx, string(b))
}

func (e *Engine) waitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-e.done:
		return mcperr.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
