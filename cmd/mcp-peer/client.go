package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ggoodman/mcp-peer-go/internal/config"
	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcpservice"
	"github.com/ggoodman/mcp-peer-go/peer"
	"github.com/ggoodman/mcp-peer-go/transport"
)

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools -- SERVER [ARGS...]",
		Short: "List the tools of an MCP server started as a subprocess",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, args, func(ctx context.Context, p *peer.Peer) error {
				tools, err := p.AllTools(ctx)
				if err != nil {
					return err
				}
				return printTools(cmd.OutOrStdout(), tools)
			})
		},
	}
}

func callCmd() *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "call TOOL [--args JSON] -- SERVER [ARGS...]",
		Short: "Call one tool on an MCP server started as a subprocess",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, server, err := splitCallArgs(args, cmd.ArgsLenAtDash())
			if err != nil {
				return err
			}
			var toolArgs any
			if rawArgs != "" {
				var obj map[string]any
				if err := json.Unmarshal([]byte(rawArgs), &obj); err != nil {
					return fmt.Errorf("--args must be a JSON object: %w", err)
				}
				toolArgs = obj
			}
			return runClient(cmd, server, func(ctx context.Context, p *peer.Peer) error {
				res, err := p.CallTool(ctx, tool, toolArgs)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
				if res.IsError {
					return fmt.Errorf("tool %s reported an error", tool)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "tool arguments as a JSON object")
	return cmd
}

// splitCallArgs separates the tool name from the server command line. dash
// is cobra's ArgsLenAtDash, -1 when no "--" was given.
func splitCallArgs(args []string, dash int) (string, []string, error) {
	switch {
	case dash == 0:
		return "", nil, errors.New("the tool name must come before --")
	case dash > 1:
		return "", nil, fmt.Errorf("expected exactly one tool name before --, got %d", dash)
	}
	if len(args) < 2 {
		return "", nil, errors.New("missing server command")
	}
	return args[0], args[1:], nil
}

// runClient starts server as a subprocess, initializes it and runs fn.
func runClient(cmd *cobra.Command, server []string, fn func(ctx context.Context, p *peer.Peer) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var lv slog.LevelVar
	log := newLogger(cfg, cmd.ErrOrStderr(), &lv)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	t, err := transport.NewCommand(
		exec.CommandContext(ctx, server[0], server[1:]...),
		transport.WithCommandStreamOptions(transport.WithStreamLogger(log)),
	)
	if err != nil {
		return err
	}
	p := peer.New(t,
		peer.WithLogger(log),
		peer.WithRequestTimeout(cfg.RequestTimeout()),
		peer.WithClient(newCLIClient(cfg)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Serve(gctx) })
	g.Go(func() error {
		defer func() { _ = p.Close() }()
		init, err := p.Initialize(gctx)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		log.DebugContext(gctx, "client.initialized",
			slog.String("server", init.ServerInfo.Name),
			slog.String("protocol_version", init.ProtocolVersion),
		)
		return fn(gctx, p)
	})
	return g.Wait()
}

// newCLIClient advertises the working directory as the only root.
func newCLIClient(cfg config.Config) mcpservice.ClientCapabilities {
	opts := []mcpservice.ClientOption{mcpservice.WithClientInfo(cfg.Server.Name, version)}
	if wd, err := os.Getwd(); err == nil {
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(wd)}
		opts = append(opts, mcpservice.WithRoots(mcpservice.StaticRoots(mcp.Root{URI: u.String(), Name: filepath.Base(wd)})))
	}
	return mcpservice.NewClient(opts...)
}

func printTools(w io.Writer, tools []mcp.Tool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, tool := range tools {
		desc := strings.ReplaceAll(tool.Description, "\n", " ")
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", tool.Name, desc); err != nil {
			return err
		}
	}
	return tw.Flush()
}
