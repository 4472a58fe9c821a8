package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ggoodman/mcp-peer-go/internal/config"
)

// version is overridden at link time.
var version = "dev"

const configFlag = "config"

// rootCmd is the root Cobra command that gets called from main.
func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mcp-peer",
		Short:         "mcp-peer speaks the Model Context Protocol over stdio.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().String(configFlag, "", "path to a TOML config file")

	cmd.AddCommand(
		serveCmd(),
		toolsCmd(),
		callCmd(),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), version+"\n")
			return err
		},
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString(configFlag)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

// newLogger writes to w, which is never stdout: stdout carries protocol
// traffic.
func newLogger(cfg config.Config, w io.Writer, lv *slog.LevelVar) *slog.Logger {
	level, _ := cfg.SlogLevel()
	lv.Set(level)
	opts := &slog.HandlerOptions{Level: lv}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
