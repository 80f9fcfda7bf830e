package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dinetab/api/internal/config"
	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/notify"
	"github.com/dinetab/api/internal/router"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "tabctl",
		Short:         "Maintenance commands for the DineTab API database",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(syncInvoicesCmd())
	rootCmd.AddCommand(recountPopularityCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := database.Migrate(cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func syncInvoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-invoices",
		Short: "Issue invoices for paid order groups that have none",
		Long: `Issue invoices for paid order groups that have none.

A payment is never rolled back when invoicing fails, so a crash or database
error between the two leaves a paid tab without an invoice. This command
finds those tabs and issues their invoices. It is safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(svc *router.Services) error {
				n, err := svc.Invoices.SyncInvoices(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Issued %d invoices\n", n)
				return err
			})
		},
	}
}

func recountPopularityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recount-popularity",
		Short: "Rebuild menu item order counts from all paid order groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(svc *router.Services) error {
				n, err := svc.Settlement.RecountPopularity(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Recounted %d menu items\n", n)
				return err
			})
		},
	}
}

func withServices(ctx context.Context, fn func(*router.Services) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	return fn(router.NewServices(cfg, database.New(pool), pool, notify.Discard))
}
