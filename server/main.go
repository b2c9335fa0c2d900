// server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/you/agentdesk/internal/config"
)

var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	var cfg config.Config

	root := &cobra.Command{
		Use:           "agentdesk",
		Short:         "Read-only invoice and performance tools for real estate agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = loaded
			setLogLevel(cfg.LogLevel)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "optional YAML config file; environment variables override it")

	root.AddCommand(
		newHTTPCmd(&cfg),
		newMCPCmd(&cfg),
		newMigrateCmd(&cfg),
		newVersionCmd(),
	)
	return root
}

func newHTTPCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "http",
		Short: "Serve the JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := newServer(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			return srv.serveHTTP(cmd.Context())
		},
	}
}

func newMCPCmd(cfg *config.Config) *cobra.Command {
	var transport string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio or HTTP SSE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if transport != "" {
				cfg.MCP.Transport = transport
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			srv, err := newServer(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			return srv.serveMCP(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "stdio or sse (default from MCP_TRANSPORT)")
	return cmd
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the tables and views the tools read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateDatabases(cmd.Context(), *cfg)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func setLogLevel(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
