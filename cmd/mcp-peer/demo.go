package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-peer-go/internal/config"
	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcpservice"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

type reverseArgs struct {
	S string `json:"s" jsonschema:"description=The string to reverse"`
}

type echoArgs struct {
	Text string `json:"text"`
}

type countdownArgs struct {
	From    int `json:"from" jsonschema:"minimum=1,maximum=100"`
	DelayMs int `json:"delayMs,omitempty"`
}

type greetingArgs struct {
	Name string `json:"name"`
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func demoTools() []mcpservice.StaticTool {
	return []mcpservice.StaticTool{
		mcpservice.NewTool[reverseArgs]("reverseString", func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[reverseArgs]) error {
			return w.AppendText(reverse(r.Args().S))
		}, mcpservice.WithToolDescription("Reverse a string")),

		mcpservice.NewTool[echoArgs]("echo", func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[echoArgs]) error {
			return w.AppendText(r.Args().Text)
		}, mcpservice.WithToolDescription("Echo the input text")),

		mcpservice.NewTool[countdownArgs]("countdown", func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[countdownArgs]) error {
			args := r.Args()
			if args.From < 1 {
				w.SetError(true)
				return w.AppendText("from must be at least 1")
			}
			delay := time.Duration(args.DelayMs) * time.Millisecond
			for i := args.From; i > 0; i-- {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
				done := args.From - i + 1
				if err := w.SendProgress(float64(done), float64(args.From), fmt.Sprintf("%d", i)); err != nil {
					return err
				}
			}
			_ = s.Log(ctx, mcp.LoggingLevelInfo, "countdown", map[string]any{"from": args.From})
			return w.AppendText("liftoff")
		}, mcpservice.WithToolDescription("Count down, reporting progress on each step")),
	}
}

func greetingPrompt() mcpservice.StaticPrompt {
	return mcpservice.NewPrompt[greetingArgs]("greeting", func(ctx context.Context, s sessions.Session, r *mcpservice.PromptRequest[greetingArgs]) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: "A friendly greeting",
			Messages:    []mcp.PromptMessage{mcpservice.UserText("Please greet " + r.Args().Name + " warmly.")},
		}, nil
	}, mcpservice.WithPromptDescription("Greet someone by name"))
}

// newDemoServer builds the server behind the serve command.
func newDemoServer(cfg config.Config, lv *slog.LevelVar, log *slog.Logger) (*mcpservice.Registry, mcpservice.ServerCapabilities, error) {
	reg := mcpservice.NewRegistry(
		mcpservice.WithPageSize(cfg.Limits.PageSize),
		mcpservice.WithRegistryLogger(log),
	)
	if err := reg.RegisterTools(demoTools()...); err != nil {
		return nil, nil, err
	}
	if err := reg.RegisterPrompts(greetingPrompt()); err != nil {
		return nil, nil, err
	}

	completions := mcpservice.NewStaticCompletions()
	completions.Add("greeting", "name", "Ada", "Alan", "Grace", "Linus")

	opts := []mcpservice.ServerOption{
		mcpservice.WithServerInfo(mcpservice.StaticServerInfo(cfg.Server.Name, cfg.Server.Version)),
		mcpservice.WithToolsCapability(reg.Tools()),
		mcpservice.WithPromptsCapability(reg.Prompts()),
		mcpservice.WithCompletionsCapability(completions),
		mcpservice.WithLoggingCapability(mcpservice.NewSlogLevelVarLogging(lv)),
	}
	if cfg.Server.Instructions != "" {
		opts = append(opts, mcpservice.WithInstructions(mcpservice.StaticInstructions(cfg.Server.Instructions)))
	}
	return reg, mcpservice.NewServer(opts...), nil
}
