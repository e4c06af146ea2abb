package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menlo-oaks/crimefeed/internal/dedup"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Run and inspect the proximity alert pipeline",
}

var alertsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch all sources and run one alert pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("alerts"); err != nil {
			return err
		}

		env, err := initAlerting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap := buildFetcher(cfg).FetchAll(ctx)
		result, err := env.pipeline.Run(ctx, snap.Records(), env.area, env.store)
		if err != nil {
			return eris.Wrap(err, "alerts: run")
		}

		fmt.Printf("Alerts: %d new, %d suppressed, %d failed, %d total tracked\n",
			len(result.Notified), result.Suppressed, result.Failed, env.store.Len())
		for _, id := range result.Notified {
			fmt.Printf("  notified %s\n", id)
		}
		return nil
	},
}

var alertsStatusLimit int

var alertsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dedup store statistics and recent alert history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("alerts"); err != nil {
			return err
		}

		env, err := initAlerting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		fmt.Printf("Dedup driver:    %s\n", cfg.Dedup.Driver)
		fmt.Printf("Tracked records: %d\n", env.store.Len())

		hist, ok := env.store.(dedup.History)
		if !ok {
			fmt.Println("History:         not available with the file driver")
			return nil
		}

		entries, err := hist.ListHistory(ctx, alertsStatusLimit)
		if err != nil {
			return eris.Wrap(err, "alerts: list history")
		}
		fmt.Printf("Recent alerts:   %d\n", len(entries))
		for _, e := range entries {
			fmt.Printf("  %s  %-20s %-24s %s\n",
				e.NotifiedAt.UTC().Format("2006-01-02 15:04"), e.Category, e.RecordID, e.Headline)
		}
		return nil
	},
}

var alertsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the alerted-record set",
	Long:  "Clears the set of already-alerted record IDs so the next pass treats everything as new. Alert history, where the backend keeps one, is preserved.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("alerts"); err != nil {
			return err
		}

		env, err := initAlerting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r, ok := env.store.(dedup.Resetter)
		if !ok {
			return eris.Errorf("dedup driver %q does not support reset", cfg.Dedup.Driver)
		}
		if err := r.Reset(ctx); err != nil {
			return eris.Wrap(err, "alerts: reset")
		}

		zap.L().Info("alerts: store reset", zap.String("driver", cfg.Dedup.Driver))
		fmt.Println("Alerted-record set cleared.")
		return nil
	},
}

func init() {
	alertsStatusCmd.Flags().IntVar(&alertsStatusLimit, "limit", 20, "max history entries to show")
	alertsCmd.AddCommand(alertsRunCmd, alertsStatusCmd, alertsResetCmd)
	rootCmd.AddCommand(alertsCmd)
}
