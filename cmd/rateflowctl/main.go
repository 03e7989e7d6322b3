// Package main is the operator CLI: migrations, plan reports, quota
// inspection and one-off maintenance runs.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/DukeRupert/rateflow/internal"
	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/DukeRupert/rateflow/internal/scheduler"
	"github.com/DukeRupert/rateflow/internal/service"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every database command needs.
type env struct {
	cfg    *internal.Config
	db     *sql.DB
	logger *slog.Logger
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := internal.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &env{cfg: cfg, db: db, logger: logger}, nil
}

// withEnv opens the environment for the duration of fn.
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.db.Close()
	return fn(ctx, e)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "rateflowctl",
		Short:        "Operate a rateflow deployment",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newPlansCmd(),
		newQuotaCmd(),
		newMaintenanceCmd(),
	)
	return rootCmd
}

// =============================================================================
// migrate
// =============================================================================

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEnv(cmd, func(_ context.Context, e *env) error {
					if err := internal.RunMigrations(e.db); err != nil {
						return fmt.Errorf("migrate: %w", err)
					}
					version, err := internal.MigrationVersion(e.db)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEnv(cmd, func(_ context.Context, e *env) error {
					version, err := internal.MigrationVersion(e.db)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", version)
					return nil
				})
			},
		},
	)
	return cmd
}

// =============================================================================
// plans
// =============================================================================

func newPlansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect subscription plans",
	}

	var asJSON bool
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Count active and expired plans per tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				report, err := scheduler.BuildReport(ctx, repository.New(e.db), clock.Real{}.Now())
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				return writeReport(cmd.OutOrStdout(), report)
			})
		},
	}
	reportCmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	cmd.AddCommand(reportCmd)
	return cmd
}

// writeReport prints one row per tier, always listing every tier.
func writeReport(w io.Writer, report *scheduler.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "TIER\tACTIVE\tEXPIRED\tTOTAL\n")
	for _, tier := range []domain.PlanTier{domain.PlanTierFree, domain.PlanTierProTrial, domain.PlanTierPro} {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", tier, report.Active(tier), report.Expired(tier), report.Count(tier))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Generated %s\n", report.GeneratedAt.Format(time.RFC3339))
	return err
}

// =============================================================================
// quota
// =============================================================================

func newQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect usage counters",
	}

	var businessID string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show every usage counter of a business",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(businessID)
			if err != nil {
				return fmt.Errorf("invalid --business: %w", err)
			}
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				quota := service.NewQuotaService(repository.NewStore(e.db), clock.Real{}, e.logger)
				snaps, err := quota.ListUsage(ctx, id)
				if err != nil {
					return err
				}
				return writeUsage(cmd.OutOrStdout(), snaps)
			})
		},
	}
	showCmd.Flags().StringVar(&businessID, "business", "", "Business ID (required)")
	_ = showCmd.MarkFlagRequired("business")

	cmd.AddCommand(showCmd)
	return cmd
}

func writeUsage(w io.Writer, snaps []domain.UsageSnapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "USAGE\tUSED\tLIMIT\tWINDOW START\tRESETS IN\n")
	for _, s := range snaps {
		resets := "-"
		if s.TimeLeftHours != nil {
			resets = fmt.Sprintf("%dh", *s.TimeLeftHours)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", s.UsageType, s.DailyCount, s.DailyLimit, s.LastReset.Format(time.RFC3339), resets)
	}
	return tw.Flush()
}

// =============================================================================
// maintenance
// =============================================================================

func newMaintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Run scheduled maintenance tasks once",
	}

	var age time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Queue cleanup of unreferenced invoice PDFs and logos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				s := scheduler.New(repository.New(e.db), clock.Real{}, age, e.logger)
				if err := s.EnqueuePrune(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Prune jobs queued")
				return nil
			})
		},
	}
	pruneCmd.Flags().DurationVar(&age, "age", scheduler.DefaultPruneAge, "Only delete objects older than this")

	purgeCmd := &cobra.Command{
		Use:   "purge-codes",
		Short: "Delete expired email verification codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				s := scheduler.New(repository.New(e.db), clock.Real{}, 0, e.logger)
				return s.PurgeExpiredCodes(ctx)
			})
		},
	}

	cmd.AddCommand(pruneCmd, purgeCmd)
	return cmd
}
