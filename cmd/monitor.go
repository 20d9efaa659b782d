package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/monitoring"
)

var monitorSend bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Report scan health and raise alerts on failure trends",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("monitor"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st).Collect(ctx, cfg.Monitoring.LookbackHours)
		if err != nil {
			return err
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)
		for _, a := range alerts {
			zap.L().Warn("monitor: alert",
				zap.String("type", string(a.Type)),
				zap.String("severity", a.Severity),
				zap.String("message", a.Message),
			)
		}

		if monitorSend && len(alerts) > 0 {
			sent := alerter.SendAlerts(ctx, alerts)
			zap.L().Info("monitor: alerts sent", zap.Int("sent", sent), zap.Int("total", len(alerts)))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Metrics *monitoring.MetricsSnapshot `json:"metrics"`
			Alerts  []monitoring.Alert          `json:"alerts"`
		}{snap, nonNil(alerts)})
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorSend, "send", false, "deliver alerts to monitoring.webhook_url")
	rootCmd.AddCommand(monitorCmd)
}
