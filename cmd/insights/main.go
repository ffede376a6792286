// ABOUTME: Main entry point for the local-dev-insights MCP server
// ABOUTME: Loads configuration, opens the memo store, and serves JSON-RPC over stdio

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kyhei/local-dev-insights/internal/config"
	"github.com/kyhei/local-dev-insights/internal/db"
	"github.com/kyhei/local-dev-insights/internal/fsindex"
	"github.com/kyhei/local-dev-insights/internal/logger"
	"github.com/kyhei/local-dev-insights/internal/prompts"
	"github.com/kyhei/local-dev-insights/internal/resources"
	"github.com/kyhei/local-dev-insights/internal/server"
	"github.com/kyhei/local-dev-insights/internal/session"
	"github.com/kyhei/local-dev-insights/internal/sysstats"
	"github.com/kyhei/local-dev-insights/internal/tools"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("%v", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "local-dev-insights",
		Short:         "MCP server exposing development memos, system stats, and project files over stdio",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logger.SetVerbose(verbose)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, verbose)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $XDG_CONFIG_HOME/local-dev-insights/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging on stderr")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "local-dev-insights %s\n", version)
		},
	})
	cmd.AddCommand(newHealthCmd(&configPath), newConfigCmd(&configPath), newAuditCmd(&configPath))

	return cmd
}

func run(ctx context.Context, configPath string, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetVerbose(verbose || cfg.Log.Verbose)

	store, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close database: %v", err)
		}
	}()

	var auditor server.Auditor
	if cfg.Audit.Enabled {
		sess, err := session.New(store, cfg.ProjectRoot())
		if err != nil {
			return fmt.Errorf("failed to start audit session: %w", err)
		}
		defer func() {
			if err := sess.Close(); err != nil {
				logger.Warn("Failed to close audit session: %v", err)
			}
		}()
		auditor = sess
	}

	files, err := fsindex.New(cfg.ProjectRoot())
	if err != nil {
		return err
	}
	stats := sysstats.NewHost(cfg.Stats.SampleInterval)

	dispatcher := server.NewDispatcher(
		server.Info{
			Name:            cfg.Server.Name,
			Version:         cfg.Server.Version,
			ProtocolVersion: cfg.Server.ProtocolVersion,
		},
		tools.NewRegistry(store, stats, files),
		resources.NewRegistry(store, afero.NewOsFs(), cfg.EnvFilePath(), cfg),
		prompts.NewRegistry(stats),
	)

	logger.Info("%s %s serving on stdio (database: %s, project root: %s)",
		cfg.Server.Name, cfg.Server.Version, cfg.DatabasePath(), cfg.ProjectRoot())

	// Serve blocks on stdin; a signal returns without waiting for it.
	done := make(chan error, 1)
	go func() {
		done <- server.NewServer(dispatcher, auditor).Serve(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
		return nil
	}
}
