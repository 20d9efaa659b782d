package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/model"
)

// Collector gathers the merged news for a ticker. *source.Aggregator
// satisfies it.
type Collector interface {
	Collect(ctx context.Context, ticker string) []model.NewsRecord
}

// CollectStage appends freshly aggregated news to the context.
type CollectStage struct {
	collector Collector
	now       func() time.Time
}

// NewCollectStage creates the collect stage.
func NewCollectStage(c Collector) *CollectStage {
	return &CollectStage{collector: c, now: time.Now}
}

func (s *CollectStage) Name() string { return StageCollect }

func (s *CollectStage) Execute(ctx context.Context, sc *ScanContext) (*ScanContext, error) {
	sc.SetAudit(AuditCurrentOperation, "collecting_news")
	sc.SetAudit(AuditLastRequestTime, s.now().UTC().Format(time.RFC3339))

	recs := s.collector.Collect(ctx, sc.Ticker)
	added := sc.AddNewsItems(recs...)

	zap.L().Info("pipeline: collected news",
		zap.String("ticker", sc.Ticker),
		zap.Int("fetched", len(recs)),
		zap.Int("added", added),
	)
	return sc, nil
}
