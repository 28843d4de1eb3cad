package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/agent-router/internal/coordinator/config"
)

// rootOptions are the flags shared by every command
type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "agent-router",
		Short: "Route messages to specialised agents",
		Long: `agent-router classifies each incoming message, selects a primary agent and
supporting agents, dispatches them concurrently and records the outcome in the
conversation session.

Configuration is read from --config, or agent-router.yaml in the working
directory or ~/.config/agent-router. AGENT_ROUTER_* environment variables
override file values (e.g. AGENT_ROUTER_SERVER_TRANSPORT=http).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRouteCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// load reads the configuration and builds the process logger. Logs go to w,
// never stdout, which the stdio transport owns.
func (o *rootOptions) load(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}
	if o.debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
