package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/store"
)

// ScannerOptions configures a Scanner.
type ScannerOptions struct {
	Pipeline    []string
	TickerDelay time.Duration
	Concurrency int
}

// Scanner runs one pipeline per watchlist entry and books each execution as
// a scan run.
type Scanner struct {
	store      store.Store
	controller *Controller
	opts       ScannerOptions
}

// NewScanner creates a Scanner.
func NewScanner(st store.Store, ctrl *Controller, opts ScannerOptions) *Scanner {
	if len(opts.Pipeline) == 0 {
		opts.Pipeline = []string{StageCollect, StagePersist, StageClassify, StageAlert, StageAnnotate}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Scanner{store: st, controller: ctrl, opts: opts}
}

// ScanTicker runs the pipeline for a single watchlist entry. Bookkeeping
// failures are logged and never stop the pipeline.
func (s *Scanner) ScanTicker(ctx context.Context, item model.WatchItem) model.ScanRun {
	sc := NewScanContext(item.Ticker, item.Threshold)
	log := zap.L().With(zap.String("ticker", sc.Ticker))

	result := model.ScanRun{Ticker: sc.Ticker, Status: model.ScanStatusRunning, StartedAt: time.Now().UTC()}
	run, err := s.store.CreateScanRun(ctx, sc.Ticker)
	if err != nil {
		log.Warn("pipeline: failed to create scan run", zap.Error(err))
	} else {
		result.ID = run.ID
		result.StartedAt = run.StartedAt
	}

	log.Info("pipeline: scanning ticker", zap.Float64("threshold", sc.Threshold))
	sc, stages := s.controller.Run(ctx, sc, s.opts.Pipeline)

	summary := sc.Summary()
	result.Summary = &summary
	result.Stages = stages
	result.Status = model.ScanStatusComplete
	if result.FailedStages() > 0 {
		result.Status = model.ScanStatusDegraded
	}
	finished := time.Now().UTC()
	result.FinishedAt = &finished

	if result.ID != "" {
		// The run is booked even when ctx was cancelled mid-scan.
		if err := s.store.CompleteScanRun(context.WithoutCancel(ctx), result.ID, result.Status, summary, stages); err != nil {
			log.Warn("pipeline: failed to complete scan run", zap.String("run_id", result.ID), zap.Error(err))
		}
	}

	log.Info("pipeline: ticker complete",
		zap.String("status", string(result.Status)),
		zap.Any("summary", summary),
	)
	return result
}

// ScanAll scans every entry. With concurrency 1 tickers run in order with
// the configured delay between them; otherwise ticker starts are paced by
// the delay and at most Concurrency pipelines run at once. Results are in
// watchlist order.
func (s *Scanner) ScanAll(ctx context.Context, items []model.WatchItem) ([]model.ScanRun, error) {
	results := make([]model.ScanRun, len(items))
	if len(items) == 0 {
		return results, nil
	}

	if s.opts.Concurrency == 1 {
		for i, item := range items {
			if i > 0 && s.opts.TickerDelay > 0 {
				select {
				case <-ctx.Done():
					return results[:i], eris.Wrap(ctx.Err(), "pipeline: scan interrupted")
				case <-time.After(s.opts.TickerDelay):
				}
			}
			results[i] = s.ScanTicker(ctx, item)
		}
		s.logPass(results)
		return results, nil
	}

	limit := rate.Inf
	if s.opts.TickerDelay > 0 {
		limit = rate.Every(s.opts.TickerDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	var (
		started int
		waitErr error
	)
	for i, item := range items {
		if waitErr = limiter.Wait(gctx); waitErr != nil {
			break
		}
		started++
		g.Go(func() error {
			results[i] = s.ScanTicker(gctx, item)
			return nil
		})
	}
	_ = g.Wait()

	if started < len(items) {
		return results[:started], eris.Wrap(waitErr, "pipeline: scan interrupted")
	}
	s.logPass(results)
	return results, nil
}

func (s *Scanner) logPass(results []model.ScanRun) {
	var alerts, degraded int
	for _, r := range results {
		if r.Summary != nil {
			alerts += r.Summary.Alerts
		}
		if r.Status == model.ScanStatusDegraded {
			degraded++
		}
	}
	zap.L().Info("pipeline: scan pass complete",
		zap.Int("tickers", len(results)),
		zap.Int("degraded", degraded),
		zap.Int("alerts", alerts),
	)
}
