package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-hr-approvals/internal/client"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != "postgres" {
				return fmt.Errorf("migrate requires database.driver=postgres, got %q", cfg.Database.Driver)
			}

			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			log.Info().Str("database", cfg.Database.Database).Msg("Schema migrated")
			return nil
		},
	}
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one escalation pass against the Postgres store and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			// A fresh memory store has no requests to sweep.
			if cfg.Database.Driver != "postgres" {
				return fmt.Errorf("sweep requires database.driver=postgres, got %q", cfg.Database.Driver)
			}

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.scheduler.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func newSummarizeCommand() *cobra.Command {
	var (
		addr       string
		categoryID string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Print the dashboard rollup from a running server over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client.NewApprovalsGRPCClient(addr)
			if err != nil {
				return fmt.Errorf("failed to create approvals gRPC client: %w", err)
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out, err := c.SummarizeJSON(ctx, categoryID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "grpc-addr", "localhost:9086", "Approvals gRPC address")
	cmd.Flags().StringVar(&categoryID, "category", "", "Category ID (all categories when empty)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Call timeout")
	return cmd
}
