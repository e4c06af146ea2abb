package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/menlo-oaks/crimefeed/internal/dedup"
	"github.com/menlo-oaks/crimefeed/internal/export"
)

var (
	exportOut   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export alert history to a spreadsheet",
	Long:  "Writes the alert history, newest first, to an .xlsx file. Requires the sqlite or postgres dedup driver; the flat-file driver keeps no history.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		env, err := initAlerting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		hist, ok := env.store.(dedup.History)
		if !ok {
			return eris.Errorf("dedup driver %q keeps no alert history", cfg.Dedup.Driver)
		}

		n, err := export.WriteXLSX(ctx, hist, exportOut, exportLimit)
		if err != nil {
			return err
		}

		fmt.Printf("Exported %d alerts to %s\n", n, exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "alerts.xlsx", "output file path")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "max history entries to export")
	rootCmd.AddCommand(exportCmd)
}
