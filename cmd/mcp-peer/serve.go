package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ggoodman/mcp-peer-go/mcpservice"
	"github.com/ggoodman/mcp-peer-go/peer"
	"github.com/ggoodman/mcp-peer-go/stdio"
)

func serveCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo MCP server over stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			var lv slog.LevelVar
			log := newLogger(cfg, cmd.ErrOrStderr(), &lv)

			reg, srv, err := newDemoServer(cfg, &lv, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			metrics := prometheus.NewRegistry()
			metrics.MustRegister(collectors.NewGoCollector())

			h := stdio.NewHandler(srv,
				stdio.WithReader(cmd.InOrStdin()),
				stdio.WithWriter(cmd.OutOrStdout()),
				stdio.WithLogger(log),
				stdio.WithPeerOptions(
					peer.WithRequestTimeout(cfg.RequestTimeout()),
					peer.WithMaxConcurrentRequests(int64(cfg.Limits.MaxConcurrentRequests)),
					peer.WithMetricsRegisterer(metrics),
				),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// The connection ending stops everything else.
				defer cancel()
				return h.Serve(gctx)
			})
			if cfg.Prompts.Dir != "" {
				prompts := mcpservice.NewFSPrompts(reg, cfg.Prompts.Dir, mcpservice.WithFSPromptsLogger(log))
				g.Go(func() error { return prompts.Watch(gctx) })
			}
			if metricsAddr != "" {
				g.Go(func() error { return serveMetrics(gctx, metricsAddr, metrics, log) })
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to expose Prometheus metrics on, e.g. 127.0.0.1:9090")
	return cmd
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	log.InfoContext(ctx, "metrics.listen", slog.String("addr", addr))
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
