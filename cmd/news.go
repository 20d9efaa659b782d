package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/newswatch/internal/model"
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "List stored news and its sentiment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ticker, _ := cmd.Flags().GetString("ticker")
		negative, _ := cmd.Flags().GetBool("negative")
		positive, _ := cmd.Flags().GetBool("positive")
		unprocessed, _ := cmd.Flags().GetBool("unprocessed")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		news, err := st.ListNews(ctx, model.NewsFilter{
			Ticker:       normalizeTicker(ticker),
			NegativeOnly: negative,
			PositiveOnly: positive,
			Unprocessed:  unprocessed,
			Limit:        limit,
		})
		if err != nil {
			return eris.Wrap(err, "news list")
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(nonNil(news))
		}

		if len(news) == 0 {
			fmt.Fprintln(os.Stderr, "No news found.")
			return nil
		}

		formatNewsList(os.Stdout, news)
		return nil
	},
}

func init() {
	newsCmd.Flags().String("ticker", "", "filter by ticker")
	newsCmd.Flags().Bool("negative", false, "only decisively negative items")
	newsCmd.Flags().Bool("positive", false, "only decisively positive items")
	newsCmd.Flags().Bool("unprocessed", false, "only items not yet classified")
	newsCmd.Flags().Int("limit", 50, "max number of items to display")
	newsCmd.Flags().Bool("json", false, "print records as JSON")
	rootCmd.AddCommand(newsCmd)
}

// formatNewsList writes a tabular list of news records to w.
func formatNewsList(out io.Writer, news []model.NewsRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTICKER\tSOURCE\tPUBLISHED\tSENTIMENT\tSCORE\tTITLE")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t---------\t---------\t-----\t-----")

	for _, n := range news {
		sentiment := string(n.Sentiment)
		if sentiment == "" {
			sentiment = "-"
		}
		flag := ""
		if n.Significant() {
			flag = "*"
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s%s\t%+.2f\t%s\n",
			n.StoreID,
			n.Ticker,
			n.Source,
			n.Published.Format("2006-01-02 15:04"),
			sentiment,
			flag,
			n.SentimentScore,
			clip(n.Title, 70),
		)
	}
	_ = w.Flush()
}
