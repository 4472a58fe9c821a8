package mcpservice

import (
	"context"
	"encoding/base64"
	"errors"
	"maps"
	"sync"

	"github.com/ggoodman/mcp-peer-go/mcp"
)

// ToolResponseWriter lets a tool handler compose a CallToolResult
// incrementally while optionally emitting progress notifications.
//
// It is safe for concurrent use within a single request. Writes after Result
// return ErrFinalized, and mutating methods return ctx.Err() once the request
// has been cancelled so long-running handlers can use them as checkpoints.
type ToolResponseWriter interface {
	AppendText(text string) error
	AppendImage(data []byte, mimeType string) error
	AppendBlocks(blocks ...mcp.ContentBlock) error
	SetError(isError bool)
	SetStructured(v map[string]any)
	SetMeta(key string, v any)
	// SendProgress delegates to the ProgressReporter in the request context
	// and is a no-op when the caller did not ask for progress.
	SendProgress(progress, total float64, message string) error
	// Result finalizes and returns the accumulated result. It is idempotent.
	Result() *mcp.CallToolResult
}

// ErrFinalized is returned when attempting to write after Result() was called.
var ErrFinalized = errors.New("result already finalized")

type toolResponseWriter struct {
	ctx       context.Context
	mu        sync.Mutex
	finalized bool

	blocks     []mcp.ContentBlock
	isError    bool
	structured map[string]any
	meta       map[string]any
}

var _ ToolResponseWriter = (*toolResponseWriter)(nil)

func newToolResponseWriter(ctx context.Context) *toolResponseWriter {
	return &toolResponseWriter{ctx: ctx}
}

func (w *toolResponseWriter) AppendText(text string) error {
	if text == "" {
		return w.ctx.Err()
	}
	return w.AppendBlocks(mcp.ContentBlock{Type: mcp.ContentTypeText, Text: text})
}

func (w *toolResponseWriter) AppendImage(data []byte, mimeType string) error {
	return w.AppendBlocks(mcp.ContentBlock{
		Type:     mcp.ContentTypeImage,
		Data:     base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
	})
}

func (w *toolResponseWriter) AppendBlocks(blocks ...mcp.ContentBlock) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return ErrFinalized
	}
	w.blocks = append(w.blocks, blocks...)
	return nil
}

func (w *toolResponseWriter) SetError(isError bool) {
	w.mu.Lock()
	w.isError = isError
	w.mu.Unlock()
}

func (w *toolResponseWriter) SetStructured(v map[string]any) {
	w.mu.Lock()
	w.structured = v
	w.mu.Unlock()
}

func (w *toolResponseWriter) SetMeta(key string, v any) {
	if key == "" {
		return
	}
	w.mu.Lock()
	if w.meta == nil {
		w.meta = make(map[string]any)
	}
	w.meta[key] = v
	w.mu.Unlock()
}

func (w *toolResponseWriter) SendProgress(progress, total float64, message string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if pr, ok := ProgressFrom(w.ctx); ok {
		return pr.Report(w.ctx, progress, total, message)
	}
	return nil
}

func (w *toolResponseWriter) Result() *mcp.CallToolResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finalized = true

	// content is always present on the wire, even when empty.
	content := make([]mcp.ContentBlock, len(w.blocks))
	copy(content, w.blocks)
	res := &mcp.CallToolResult{
		Content:           content,
		IsError:           w.isError,
		StructuredContent: w.structured,
	}
	if len(w.meta) > 0 {
		res.Meta = maps.Clone(w.meta)
	}
	return res
}
