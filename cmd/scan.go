package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/config"
	"github.com/sells-group/newswatch/internal/fetcher"
	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/monitoring"
	"github.com/sells-group/newswatch/internal/notify"
	"github.com/sells-group/newswatch/internal/pipeline"
	"github.com/sells-group/newswatch/internal/resilience"
	"github.com/sells-group/newswatch/internal/sentiment"
	"github.com/sells-group/newswatch/internal/source"
	"github.com/sells-group/newswatch/internal/store"
)

var (
	scanLoop      bool
	scanInterval  time.Duration
	scanFixture   string
	scanTickers   []string
	scanWatchlist string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the news pipeline for every ticker on the watchlist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("scan"); err != nil {
			return err
		}

		items, err := loadItems(cfg, scanWatchlist, scanTickers)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		scanner, err := buildScanner(ctx, cfg, st, scanFixture)
		if err != nil {
			return err
		}

		if !scanLoop {
			_, err := scanner.ScanAll(ctx, items)
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		}

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}
		runLoop(ctx, scanner, items, scanInterval)
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanLoop, "loop", false, "keep scanning until interrupted")
	scanCmd.Flags().DurationVar(&scanInterval, "interval", 15*time.Minute, "pause between passes in --loop mode")
	scanCmd.Flags().StringVar(&scanFixture, "fixture", "", "read news from a JSON file of records instead of live sources")
	scanCmd.Flags().StringSliceVar(&scanTickers, "ticker", nil, "scan only these tickers (default threshold)")
	scanCmd.Flags().StringVar(&scanWatchlist, "watchlist", "", "watchlist path (default from config)")
	rootCmd.AddCommand(scanCmd)
}

// loadItems resolves the tickers to scan: explicit --ticker values win over
// the watchlist file.
func loadItems(c *config.Config, path string, tickers []string) ([]model.WatchItem, error) {
	if len(tickers) > 0 {
		seen := make(map[string]bool, len(tickers))
		items := make([]model.WatchItem, 0, len(tickers))
		for _, t := range tickers {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			items = append(items, model.WatchItem{Ticker: t, Threshold: c.Scan.DefaultThreshold})
		}
		if len(items) == 0 {
			return nil, eris.New("scan: --ticker given but no tickers parsed")
		}
		return items, nil
	}

	if path == "" {
		path = c.Scan.WatchlistPath
	}
	return config.LoadWatchlist(path, c.Scan.DefaultThreshold)
}

// buildScanner wires collector, classifier, sink and store into a Scanner.
func buildScanner(ctx context.Context, c *config.Config, st store.Store, fixture string) (*pipeline.Scanner, error) {
	collector, err := buildCollector(c, fixture)
	if err != nil {
		return nil, err
	}

	classifier, err := sentiment.New(c)
	if err != nil {
		return nil, err
	}

	sink, err := notify.New(ctx, c)
	if err != nil {
		return nil, err
	}
	if _, disabled := sink.(notify.Disabled); disabled {
		zap.L().Warn("no alert sink configured, significant news will stay pending")
	}

	ctrl := pipeline.NewController([]pipeline.Stage{
		pipeline.NewCollectStage(collector),
		pipeline.NewPersistStage(st),
		pipeline.NewClassifyStage(classifier, c.Classifier.Timeout()),
		pipeline.NewAlertStage(st, sink),
		pipeline.NewAnnotateStage(st),
	}, pipeline.WithStageTimeout(c.Scan.StageTimeout()))

	return pipeline.NewScanner(st, ctrl, pipeline.ScannerOptions{
		Pipeline:    c.Scan.Pipeline,
		TickerDelay: c.Scan.TickerDelay(),
		Concurrency: c.Scan.Concurrency,
	}), nil
}

func buildCollector(c *config.Config, fixture string) (*source.Aggregator, error) {
	opts := source.Options{
		Timeout:  c.Sources.Timeout(),
		Breakers: resilience.NewServiceBreakers(resilience.FromCircuitConfig(c.Circuit)),
	}

	if fixture != "" {
		recs, err := loadFixture(fixture)
		if err != nil {
			return nil, err
		}
		zap.L().Info("scanning from fixture", zap.String("path", fixture), zap.Int("records", len(recs)))
		return source.NewAggregator(opts, &source.Static{SourceName: "fixture", Records: recs}), nil
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: c.Sources.UserAgent,
		Timeout:   c.Sources.Timeout(),
		Retry:     resilience.FromRetryConfig(c.Retry),
	})
	sources := source.FromConfig(c.Sources, f)
	if len(sources) == 0 {
		return nil, eris.New("scan: no news sources enabled")
	}
	agg := source.NewAggregator(opts, sources...)
	zap.L().Info("news sources configured", zap.Strings("sources", agg.Sources()))
	return agg, nil
}

// loadFixture reads a JSON array of news records.
func loadFixture(path string) ([]model.NewsRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read fixture %s", path)
	}
	var recs []model.NewsRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, eris.Wrapf(err, "parse fixture %s", path)
	}
	for i := range recs {
		recs[i].Ticker = strings.ToUpper(strings.TrimSpace(recs[i].Ticker))
	}
	return recs, nil
}

// runLoop scans until ctx is cancelled, pausing interval between passes.
func runLoop(ctx context.Context, scanner *pipeline.Scanner, items []model.WatchItem, interval time.Duration) {
	log := zap.L().With(zap.Duration("interval", interval), zap.Int("tickers", len(items)))
	log.Info("starting scan loop")

	for pass := 1; ; pass++ {
		if _, err := scanner.ScanAll(ctx, items); err != nil && ctx.Err() == nil {
			log.Error("scan pass failed", zap.Int("pass", pass), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			log.Info("scan loop stopped", zap.Int("passes", pass))
			return
		case <-time.After(interval):
		}
	}
}
