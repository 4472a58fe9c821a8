package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-peer-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-peer-go/internal/logctx"
	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcperr"
	"github.com/ggoodman/mcp-peer-go/mcpservice"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

func unsupported(name string) error {
	return &mcperr.NotFoundError{Type: "capability", Name: name}
}

// dispatch routes a request to its built-in or custom handler.
func (e *Engine) dispatch(ctx context.Context, msg jsonrpc.Message) (any, error) {
	switch mcp.Method(msg.Method) {
	case mcp.InitializeMethod:
		return e.handleInitialize(ctx, msg)
	case mcp.PingMethod:
		return &mcp.EmptyResult{}, nil
	case mcp.ToolsListMethod:
		return e.handleToolsList(ctx, msg)
	case mcp.ToolsCallMethod:
		return e.handleToolsCall(ctx, msg)
	case mcp.PromptsListMethod:
		return e.handlePromptsList(ctx, msg)
	case mcp.PromptsGetMethod:
		return e.handlePromptsGet(ctx, msg)
	case mcp.CompletionCompleteMethod:
		return e.handleCompletionComplete(ctx, msg)
	case mcp.LoggingSetLevelMethod:
		return e.handleSetLoggingLevel(ctx, msg)
	case mcp.RootsListMethod:
		return e.handleRootsList(ctx, msg)
	case mcp.SamplingCreateMessageMethod:
		return e.handleSamplingCreateMessage(ctx, msg)
	}

	h, ok := e.requests[msg.Method]
	if !ok {
		return nil, &mcperr.NotFoundError{Type: "method", Name: msg.Method}
	}
	params, err := decode[json.RawMessage](e, msg)
	if err != nil {
		return nil, err
	}
	return h(ctx, e.sess, *params)
}

func (e *Engine) handleInitialize(ctx context.Context, msg jsonrpc.Message) (any, error) {
	if e.srv == nil {
		return nil, unsupported("server")
	}
	req, err := decode[mcp.InitializeRequest](e, msg)
	if err != nil {
		return nil, err
	}

	version := mcp.LatestProtocolVersion
	if mcp.IsSupportedProtocolVersion(req.ProtocolVersion) {
		version = req.ProtocolVersion
	}
	if v, ok, err := e.srv.GetPreferredProtocolVersion(ctx, req.ProtocolVersion); err != nil {
		return nil, fmt.Errorf("get preferred protocol version: %w", err)
	} else if ok && v != "" {
		version = v
	}
	e.sess.negotiate(version, req)

	serverInfo, err := e.srv.GetServerInfo(ctx, e.sess)
	if err != nil {
		return nil, fmt.Errorf("get server info: %w", err)
	}
	res := &mcp.InitializeResult{
		ProtocolVersion: version,
		ServerInfo:      serverInfo,
	}

	if instr, ok, err := e.srv.GetInstructions(ctx, e.sess); err != nil {
		return nil, fmt.Errorf("get instructions: %w", err)
	} else if ok {
		res.Instructions = instr
	}

	if toolsCap, ok, err := e.srv.GetToolsCapability(ctx, e.sess); err != nil {
		return nil, fmt.Errorf("get tools capability: %w", err)
	} else if ok && toolsCap != nil {
		entry := &struct {
			ListChanged bool `json:"listChanged"`
		}{}
		if lc, hasLC, err := toolsCap.GetListChangedCapability(ctx, e.sess); err != nil {
			return nil, fmt.Errorf("get tools listChanged capability: %w", err)
		} else if hasLC && lc != nil {
			entry.ListChanged = true
		}
		res.Capabilities.Tools = entry
	}

	if promptsCap, ok, err := e.srv.GetPromptsCapability(ctx, e.sess); err != nil {
		return nil, fmt.Errorf("get prompts capability: %w", err)
	} else if ok && promptsCap != nil {
		entry := &struct {
			ListChanged bool `json:"listChanged"`
		}{}
		if lc, hasLC, err := promptsCap.GetListChangedCapability(ctx, e.sess); err != nil {
			return nil, fmt.Errorf("get prompts listChanged capability: %w", err)
		} else if hasLC && lc != nil {
			entry.ListChanged = true
		}
		res.Capabilities.Prompts = entry
	}

	if _, ok, err := e.srv.GetLoggingCapability(ctx, e.sess); err != nil {
		return nil, fmt.Errorf("get logging capability: %w", err)
	} else if ok {
		res.Capabilities.Logging = &struct{}{}
	}

	if _, ok, err := e.srv.GetCompletionsCapability(ctx, e.sess); err != nil {
		return nil, fmt.Errorf("get completions capability: %w", err)
	} else if ok {
		res.Capabilities.Completions = &struct{}{}
	}

	e.registerListChangedEmitters()
	return res, nil
}

// registerListChangedEmitters subscribes the session to tools and prompts
// list changes for the lifetime of Serve. It runs at most once.
func (e *Engine) registerListChangedEmitters() {
	if !e.listeners.CompareAndSwap(false, true) {
		return
	}
	ctx := e.serveCtx

	emit := func(method mcp.Method) mcpservice.ListChangedFunc {
		return func(ctx context.Context, _ sessions.Session) error {
			return e.Notify(ctx, string(method), nil)
		}
	}

	if toolsCap, ok, err := e.srv.GetToolsCapability(ctx, e.sess); err == nil && ok && toolsCap != nil {
		if lc, hasLC, err := toolsCap.GetListChangedCapability(ctx, e.sess); err == nil && hasLC && lc != nil {
			if _, err := lc.Register(ctx, e.sess, emit(mcp.ToolsListChangedNotificationMethod)); err != nil {
				e.log.WarnContext(ctx, "engine.emitter.register.err", slog.String("capability", "tools"), slog.String("err", err.Error()))
			}
		}
	}

	if promptsCap, ok, err := e.srv.GetPromptsCapability(ctx, e.sess); err == nil && ok && promptsCap != nil {
		if lc, hasLC, err := promptsCap.GetListChangedCapability(ctx, e.sess); err == nil && hasLC && lc != nil {
			if _, err := lc.Register(ctx, e.sess, emit(mcp.PromptsListChangedNotificationMethod)); err != nil {
				e.log.WarnContext(ctx, "engine.emitter.register.err", slog.String("capability", "prompts"), slog.String("err", err.Error()))
			}
		}
	}
}

func (e *Engine) toolsCapability(ctx context.Context) (mcpservice.ToolsCapability, error) {
	if e.srv == nil {
		return nil, unsupported("tools")
	}
	cap, ok, err := e.srv.GetToolsCapability(ctx, e.sess)
	if err != nil {
		return nil, fmt.Errorf("get tools capability: %w", err)
	}
	if !ok || cap == nil {
		return nil, unsupported("tools")
	}
	return cap, nil
}

func (e *Engine) promptsCapability(ctx context.Context) (mcpservice.PromptsCapability, error) {
	if e.srv == nil {
		return nil, unsupported("prompts")
	}
	cap, ok, err := e.srv.GetPromptsCapability(ctx, e.sess)
	if err != nil {
		return nil, fmt.Errorf("get prompts capability: %w", err)
	}
	if !ok || cap == nil {
		return nil, unsupported("prompts")
	}
	return cap, nil
}

func (e *Engine) handleToolsList(ctx context.Context, msg jsonrpc.Message) (any, error) {
	params, err := decode[mcp.ListToolsRequest](e, msg)
	if err != nil {
		return nil, err
	}
	cap, err := e.toolsCapability(ctx)
	if err != nil {
		return nil, err
	}
	page, err := cap.ListTools(ctx, e.sess, params.Cursor)
	if err != nil {
		return nil, err
	}
	res := &mcp.ListToolsResult{Tools: page.Items}
	if res.Tools == nil {
		res.Tools = []mcp.Tool{}
	}
	res.NextCursor = page.NextCursor
	return res, nil
}

func (e *Engine) handleToolsCall(ctx context.Context, msg jsonrpc.Message) (any, error) {
	params, err := decode[mcp.CallToolRequestReceived](e, msg)
	if err != nil {
		return nil, err
	}
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})

	cap, err := e.toolsCapability(ctx)
	if err != nil {
		return nil, err
	}

	if params.Meta != nil && params.Meta.ProgressToken != nil {
		token := params.Meta.ProgressToken
		ctx = mcpservice.WithProgressReporter(ctx, mcpservice.ProgressReporterFunc(func(ctx context.Context, progress, total float64, message string) error {
			return e.Notify(ctx, string(mcp.ProgressNotificationMethod), &mcp.ProgressNotificationParams{
				ProgressToken: token,
				Progress:      progress,
				Total:         total,
				Message:       message,
			})
		}))
	}

	res, err := cap.CallTool(ctx, e.sess, params)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &mcp.CallToolResult{}
	}
	if res.Content == nil {
		res.Content = []mcp.ContentBlock{}
	}
	return res, nil
}

func (e *Engine) handlePromptsList(ctx context.Context, msg jsonrpc.Message) (any, error) {
	params, err := decode[mcp.ListPromptsRequest](e, msg)
	if err != nil {
		return nil, err
	}
	cap, err := e.promptsCapability(ctx)
	if err != nil {
		return nil, err
	}
	page, err := cap.ListPrompts(ctx, e.sess, params.Cursor)
	if err != nil {
		return nil, err
	}
	res := &mcp.ListPromptsResult{Prompts: page.Items}
	if res.Prompts == nil {
		res.Prompts = []mcp.Prompt{}
	}
	res.NextCursor = page.NextCursor
	return res, nil
}

func (e *Engine) handlePromptsGet(ctx context.Context, msg jsonrpc.Message) (any, error) {
	params, err := decode[mcp.GetPromptRequestReceived](e, msg)
	if err != nil {
		return nil, err
	}
	cap, err := e.promptsCapability(ctx)
	if err != nil {
		return nil, err
	}
	res, err := cap.GetPrompt(ctx, e.sess, params)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &mcp.GetPromptResult{}
	}
	if res.Messages == nil {
		res.Messages = []mcp.PromptMessage{}
	}
	return res, nil
}

func (e *Engine) handleCompletionComplete(ctx context.Context, msg jsonrpc.Message) (any, error) {
	params, err := decode[mcp.CompleteRequest](e, msg)
	if err != nil {
		return nil, err
	}
	if e.srv == nil {
		return nil, unsupported("completions")
	}
	cap, ok, err := e.srv.GetCompletionsCapability(ctx, e.sess)
	if err != nil {
		return nil, fmt.Errorf("get completions capability: %w", err)
	}
	if !ok || cap == nil {
		return nil, unsupported("completions")
	}
	res, err := cap.Complete(ctx, e.sess, params)
	if err != nil {
		return nil, err
	}
	if res.Completion.Values == nil {
		res.Completion.Values = []string{}
	}
	return res, nil
}

func (e *Engine) handleSetLoggingLevel(ctx context.Context, msg jsonrpc.Message) (any, error) {
	params, err := decode[mcp.SetLevelRequest](e, msg)
	if err != nil {
		return nil, err
	}
	if e.srv == nil {
		return nil, unsupported("logging")
	}
	cap, ok, err := e.srv.GetLoggingCapability(ctx, e.sess)
	if err != nil {
		return nil, fmt.Errorf("get logging capability: %w", err)
	}
	if !ok || cap == nil {
		return nil, unsupported("logging")
	}
	if err := cap.SetLevel(ctx, e.sess, params.Level); err != nil {
		return nil, err
	}
	e.sess.setLogLevel(params.Level)
	return &mcp.EmptyResult{}, nil
}

func (e *Engine) handleRootsList(ctx context.Context, msg jsonrpc.Message) (any, error) {
	if _, err := decode[mcp.ListRootsRequest](e, msg); err != nil {
		return nil, err
	}
	if e.cli == nil {
		return nil, unsupported("roots")
	}
	p, ok := e.cli.GetRootsProvider()
	if !ok || p == nil {
		return nil, unsupported("roots")
	}
	roots, err := p.ListRoots(ctx)
	if err != nil {
		return nil, err
	}
	if roots == nil {
		roots = []mcp.Root{}
	}
	return &mcp.ListRootsResult{Roots: roots}, nil
}

func (e *Engine) handleSamplingCreateMessage(ctx context.Context, msg jsonrpc.Message) (any, error) {
	params, err := decode[mcp.CreateMessageRequest](e, msg)
	if err != nil {
		return nil, err
	}
	if e.cli == nil {
		return nil, unsupported("sampling")
	}
	h, ok := e.cli.GetSamplingHandler()
	if !ok || h == nil {
		return nil, unsupported("sampling")
	}
	return h.CreateMessage(ctx, params)
}

// handleNotification applies built-in semantics, then hands the notification
// to any custom handler on its own goroutine.
func (e *Engine) handleNotification(ctx context.Context, msg jsonrpc.Message) {
	e.metrics.notification(e.metricMethod(msg.Method))
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, Type: msg.Kind.String()})
	ctx = e.sess.withLogData(ctx)

	switch mcp.Method(msg.Method) {
	case mcp.CancelledNotificationMethod:
		e.handleCancelled(ctx, msg)
	case mcp.InitializedNotificationMethod:
		e.sess.markInitialized()
	case mcp.RootsListChangedNotificationMethod:
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.sess.fireRootsChanged(ctx)
		}()
	}

	h, ok := e.notifies[msg.Method]
	if !ok {
		e.log.DebugContext(ctx, "engine.notification.unhandled")
		return
	}
	// Built-in methods decode into their own type; the handler still gets the
	// raw params once they are known to be well formed.
	if _, err := e.params.Decode(msg.Method, msg.Params); err != nil {
		e.log.InfoContext(ctx, "engine.notification.invalid", slog.String("err", err.Error()))
		return
	}
	params := msg.Params

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				e.log.ErrorContext(ctx, "engine.notification.err", slog.String("err", fmt.Sprintf("panic: %v", r)))
			}
		}()
		if err := h(ctx, e.sess, params); err != nil {
			e.log.ErrorContext(ctx, "engine.notification.err", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		}
	}()
}

func (e *Engine) handleCancelled(ctx context.Context, msg jsonrpc.Message) {
	params, err := decode[mcp.CancelledNotification](e, msg)
	if err != nil {
		e.log.InfoContext(ctx, "engine.notification.invalid", slog.String("err", err.Error()))
		return
	}
	var id jsonrpc.RequestID
	if err := json.Unmarshal(params.RequestID, &id); err != nil || id.IsNil() {
		e.log.InfoContext(ctx, "engine.notification.invalid", slog.String("err", "unusable requestId"))
		return
	}

	switch {
	case e.cancelInflight(&id, params.Reason):
		e.log.DebugContext(ctx, "engine.cancel.inbound", slog.String("id", id.String()))
	case e.out.OnCancelled(&id):
		e.log.DebugContext(ctx, "engine.cancel.outbound", slog.String("id", id.String()))
	default:
		e.log.DebugContext(ctx, "engine.cancel.unmatched", slog.String("id", id.String()))
	}
}
