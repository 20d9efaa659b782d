package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete news, alerts and scan runs past the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cleanupDays > 0 {
			cfg.Scan.RetentionDays = cleanupDays
		}
		if err := cfg.Validate("cleanup"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		removed, err := st.CleanOldData(ctx, cfg.Scan.RetentionDays)
		if err != nil {
			return err
		}

		zap.L().Info("cleanup complete",
			zap.Int("retention_days", cfg.Scan.RetentionDays),
			zap.Int("rows_removed", removed),
		)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "retention window in days (default from config)")
	rootCmd.AddCommand(cleanupCmd)
}
