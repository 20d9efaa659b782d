// Package source gathers news about a ticker from several providers and
// merges the results into one deduplicated, newest-first list.
package source

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/resilience"
)

// Source fetches recent news about one ticker.
type Source interface {
	Name() string
	Fetch(ctx context.Context, ticker string) ([]model.NewsRecord, error)
}

// Options tunes how an Aggregator calls its sources.
type Options struct {
	// Timeout bounds each source fetch. Zero means no per-source timeout.
	Timeout time.Duration

	// Breakers, when set, guards each source with its own circuit breaker.
	Breakers *resilience.ServiceBreakers
}

// Aggregator fans out to every configured source and merges the results.
type Aggregator struct {
	sources []Source
	opts    Options
}

// NewAggregator creates an Aggregator. Merge precedence follows the order of
// sources: a later source wins when two report the same source_id.
func NewAggregator(opts Options, sources ...Source) *Aggregator {
	return &Aggregator{sources: sources, opts: opts}
}

// Sources returns the configured source names in merge order.
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return names
}

// Collect fetches from all sources concurrently and returns the merged
// records sorted by published time, newest first. A failing source
// contributes nothing.
func (a *Aggregator) Collect(ctx context.Context, ticker string) []model.NewsRecord {
	log := zap.L().With(zap.String("ticker", ticker))

	results := make([][]model.NewsRecord, len(a.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range a.sources {
		g.Go(func() error {
			recs, err := a.fetch(gctx, s, ticker)
			if err != nil {
				log.Warn("source: fetch failed",
					zap.String("source", s.Name()),
					zap.Error(err),
				)
				return nil
			}
			log.Debug("source: fetched",
				zap.String("source", s.Name()),
				zap.Int("count", len(recs)),
			)
			results[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	merged := Merge(ticker, a.sources, results)
	log.Info("source: collected news", zap.Int("count", len(merged)))
	return merged
}

// fetch runs one source with timeout, breaker and panic isolation.
func (a *Aggregator) fetch(ctx context.Context, s Source, ticker string) (recs []model.NewsRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			recs = nil
			err = eris.Errorf("source: %s panicked: %v", s.Name(), r)
		}
	}()

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	call := func(ctx context.Context) ([]model.NewsRecord, error) {
		return s.Fetch(ctx, ticker)
	}
	if a.opts.Breakers != nil {
		return resilience.ExecuteVal(ctx, a.opts.Breakers.Get("source:"+s.Name()), call)
	}
	return call(ctx)
}

// Merge combines per-source results (indexed like sources) keyed by
// source_id with last-writer-wins, then sorts newest first with source_id as
// the tiebreak. Records without a source_id are dropped.
func Merge(ticker string, sources []Source, results [][]model.NewsRecord) []model.NewsRecord {
	byID := make(map[string]model.NewsRecord)
	for i, recs := range results {
		name := ""
		if i < len(sources) {
			name = sources[i].Name()
		}
		for _, rec := range recs {
			if rec.SourceID == "" {
				zap.L().Warn("source: dropping record without source_id",
					zap.String("ticker", ticker),
					zap.String("source", name),
					zap.String("title", rec.Title),
				)
				continue
			}
			if rec.Ticker == "" {
				rec.Ticker = ticker
			}
			if rec.Source == "" {
				rec.Source = name
			}
			byID[rec.SourceID] = rec
		}
	}

	merged := make([]model.NewsRecord, 0, len(byID))
	for _, rec := range byID {
		merged = append(merged, rec)
	}
	slices.SortStableFunc(merged, func(a, b model.NewsRecord) int {
		if c := b.Published.Compare(a.Published); c != 0 {
			return c
		}
		return cmp.Compare(a.SourceID, b.SourceID)
	})
	return merged
}

// Static is a Source that returns a fixed set of records. It backs tests and
// the --fixture mode of the scan command.
type Static struct {
	SourceName string
	Records    []model.NewsRecord
	Err        error
}

func (s *Static) Name() string { return s.SourceName }

// Fetch returns the records whose ticker matches.
func (s *Static) Fetch(_ context.Context, ticker string) ([]model.NewsRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []model.NewsRecord
	for _, rec := range s.Records {
		if rec.Ticker == "" || rec.Ticker == ticker {
			out = append(out, rec)
		}
	}
	return out, nil
}
