package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menlo-oaks/crimefeed/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crimefeed",
	Short: "Multi-agency crime feed aggregator and alerting pipeline",
	Long:  "Fetches incidents and cases from CitizenRIMS agencies and the Palo Alto open-data portal, classifies them, and raises deduplicated proximity alerts around a reference area.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
