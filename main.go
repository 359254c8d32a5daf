package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"taskquest/config"
	"taskquest/storage"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "taskquest",
		Short:        "Gamified task tracker backend",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), syncCmd(), recalcCmd())
	return root
}

// withApp loads the configuration, opens the stores and closes them once
// run returns.
func withApp(ctx context.Context, run func(*app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, newLogger(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer a.Close()
	return run(a)
}

func serveCmd() *cobra.Command {
	var corsOrigins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				return a.serve(cmd.Context(), corsOrigins)
			})
		},
	}
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "allowed CORS origin, repeatable (default any)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the local database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)
			store, err := storage.Open(cfg.SQLitePath, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			logger.Info("schema up to date", "path", cfg.SQLitePath)
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push a user's records and pending uploads to the remote store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				res := a.repos.Sync.SyncUser(cmd.Context(), userID)
				report, ok := res.Value()
				if !ok {
					return res.Err()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tasks=%d achievements=%d ranks=%d\n",
					report.Tasks, report.Achievements, report.Ranks)
				if report.Uploads != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "uploads=%d failed=%d\n",
						report.Uploads.Uploaded, report.Uploads.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to sync")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func recalcCmd() *cobra.Command {
	var (
		userID string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recompute stats from the points ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (userID == "") == !all {
				return errors.New("pass exactly one of --user or --all")
			}
			return withApp(cmd.Context(), func(a *app) error {
				if all {
					res := a.repos.Stats.ResetPeriods(cmd.Context())
					n, ok := res.Value()
					if !ok {
						return res.Err()
					}
					fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d users\n", n)
					return nil
				}
				res := a.repos.Stats.RecalculateStats(cmd.Context(), userID)
				s, ok := res.Value()
				if !ok {
					return res.Err()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "total=%d weekly=%d monthly=%d completed=%d\n",
					s.TotalPoints, s.WeeklyPoints, s.MonthlyPoints, s.CompletedTasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to recompute")
	cmd.Flags().BoolVar(&all, "all", false, "recompute every user and roll the periods over")
	return cmd
}
