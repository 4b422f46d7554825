package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"kpiconsole/internal/app/server"
)

var (
	reportDepartment string
	reportOut        string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a department unit report to disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportDepartment == "" {
			return errors.New("--department is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := reportOut
		if out == "" {
			out = cfg.ReportDir
		}
		app, err := server.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		path, err := app.Reports.WriteUnitReport(cmd.Context(), "System", reportDepartment, out)
		if err != nil {
			return err
		}
		slog.Info("unit report written", "path", path)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDepartment, "department", "", "Department to report on")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Output directory (defaults to REPORT_DIR)")
}
