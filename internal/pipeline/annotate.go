package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/store"
)

// AnnotateStage writes each processed record's verdict back to the store.
type AnnotateStage struct {
	store store.Store
}

// NewAnnotateStage creates the annotate stage.
func NewAnnotateStage(st store.Store) *AnnotateStage {
	return &AnnotateStage{store: st}
}

func (s *AnnotateStage) Name() string { return StageAnnotate }

func (s *AnnotateStage) Execute(ctx context.Context, sc *ScanContext) (*ScanContext, error) {
	log := zap.L().With(zap.String("ticker", sc.Ticker), zap.String("stage", StageAnnotate))

	for _, rec := range sc.ProcessedItems() {
		if !rec.Stored() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sc, err
		}
		if err := s.store.MarkProcessed(ctx, rec.StoreID, rec.Verdict()); err != nil {
			log.Warn("pipeline: verdict write-back failed", zap.String("source_id", rec.SourceID), zap.Error(err))
		}
	}
	return sc, nil
}
