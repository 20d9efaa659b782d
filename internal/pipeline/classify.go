package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/sentiment"
)

// ClassifyStage scores each unprocessed record and moves it into the
// processed set.
type ClassifyStage struct {
	classifier sentiment.Classifier
	timeout    time.Duration
}

// NewClassifyStage creates the classify stage. timeout bounds each
// classifier call; zero means no bound.
func NewClassifyStage(c sentiment.Classifier, timeout time.Duration) *ClassifyStage {
	return &ClassifyStage{classifier: c, timeout: timeout}
}

func (s *ClassifyStage) Name() string { return StageClassify }

func (s *ClassifyStage) Execute(ctx context.Context, sc *ScanContext) (*ScanContext, error) {
	sc.SetAudit(AuditCurrentOperation, "analyzing_sentiment")
	log := zap.L().With(zap.String("ticker", sc.Ticker), zap.String("stage", StageClassify))

	for _, rec := range sc.UnprocessedItems() {
		if err := ctx.Err(); err != nil {
			return sc, err
		}

		score, err := s.score(ctx, rec)
		if err != nil {
			log.Warn("pipeline: classification failed", zap.String("source_id", rec.SourceID), zap.Error(err))
			continue
		}

		verdict := sentiment.Derive(score, sc.Threshold)
		if _, err := sc.MarkProcessed(rec.SourceID, verdict); err != nil {
			log.Warn("pipeline: dropping classification", zap.String("source_id", rec.SourceID), zap.Error(err))
		}
	}
	return sc, nil
}

func (s *ClassifyStage) score(ctx context.Context, rec model.NewsRecord) (sentiment.Score, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.classifier.Score(ctx, rec)
}
