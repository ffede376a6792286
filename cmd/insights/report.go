// ABOUTME: Operator subcommands for inspecting health, configuration, and the audit log
// ABOUTME: Each opens the configured store and prints its report to stdout

package main

import (
	"fmt"

	"github.com/kyhei/local-dev-insights/internal/config"
	"github.com/kyhei/local-dev-insights/internal/db"
	"github.com/kyhei/local-dev-insights/internal/management"
	"github.com/kyhei/local-dev-insights/internal/sysstats"
	"github.com/spf13/cobra"
)

// withReporter loads config, opens the store, and hands a reporter to fn.
func withReporter(configPath string, fn func(*management.Reporter) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() { _ = store.Close() }()

	return fn(management.NewReporter(store, sysstats.NewHost(cfg.Stats.SampleInterval), cfg))
}

func newHealthCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report store and host health as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withReporter(*configPath, func(r *management.Reporter) error {
				return r.Health(cmd.Context(), cmd.OutOrStdout())
			})
		},
	}
}

func newConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withReporter(*configPath, func(r *management.Reporter) error {
				return r.Config(cmd.OutOrStdout())
			})
		},
	}
}

func newAuditCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the protocol audit log",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "sessions",
			Short: "List recorded server sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withReporter(*configPath, func(r *management.Reporter) error {
					return r.Sessions(cmd.OutOrStdout())
				})
			},
		},
		&cobra.Command{
			Use:   "messages <session-id>",
			Short: "Show the protocol lines recorded for a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withReporter(*configPath, func(r *management.Reporter) error {
					return r.Messages(cmd.OutOrStdout(), args[0])
				})
			},
		},
	)

	return cmd
}
