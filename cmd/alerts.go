package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/newswatch/internal/model"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List issued alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ticker, _ := cmd.Flags().GetString("ticker")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := model.AlertFilter{Ticker: normalizeTicker(ticker), Limit: limit}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		alerts, err := st.ListAlerts(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "alerts list")
		}

		if len(alerts) == 0 {
			fmt.Fprintln(os.Stderr, "No alerts found.")
			return nil
		}

		formatAlertsList(os.Stdout, alerts)
		return nil
	},
}

func init() {
	alertsCmd.Flags().String("ticker", "", "filter by ticker")
	alertsCmd.Flags().Duration("since", 0, "only alerts created within this window (e.g. 24h)")
	alertsCmd.Flags().Int("limit", 50, "max number of alerts to display")
	rootCmd.AddCommand(alertsCmd)
}

// formatAlertsList writes a tabular list of alerts to w.
func formatAlertsList(out io.Writer, alerts []model.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTICKER\tSENTIMENT\tCREATED\tTITLE\tISSUE")
	_, _ = fmt.Fprintln(w, "--\t------\t---------\t-------\t-----\t-----")

	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.Ticker,
			a.Sentiment,
			a.CreatedAt.Format("2006-01-02 15:04"),
			clip(a.Title, 60),
			a.IssueReference,
		)
	}
	_ = w.Flush()
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
