package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menlo-oaks/crimefeed/internal/feed"
)

var (
	generateOutDir   string
	generateNoAlerts bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch all sources, write static feed files and raise alerts",
	Long:  "One-shot run for cron or CI: fetches every configured source, writes feed.json, incidents.json and cases.json, then runs the alert pass against the dedup store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("generate"); err != nil {
			return err
		}

		snap := buildFetcher(cfg).FetchAll(ctx)

		outDir := generateOutDir
		if outDir == "" {
			outDir = cfg.Feed.OutputDir
		}
		if err := feed.WriteFiles(outDir, snap); err != nil {
			return err
		}

		if generateNoAlerts {
			return nil
		}

		env, err := initAlerting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.pipeline.Run(ctx, snap.Records(), env.area, env.store)
		if err != nil {
			return eris.Wrap(err, "generate: alert pass")
		}

		zap.L().Info("generate: done",
			zap.Int("notified", len(result.Notified)),
			zap.Int("suppressed", result.Suppressed),
			zap.Int("failed", result.Failed),
			zap.Int("tracked", env.store.Len()))
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateOutDir, "out", "", "output directory (default from config)")
	generateCmd.Flags().BoolVar(&generateNoAlerts, "no-alerts", false, "write feed files only, skip the alert pass")
	rootCmd.AddCommand(generateCmd)
}
