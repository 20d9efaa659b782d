package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/store"
)

// PersistStage upserts every not-yet-stored record and writes the store
// identity back onto the context.
type PersistStage struct {
	store store.Store
}

// NewPersistStage creates the persist stage.
func NewPersistStage(st store.Store) *PersistStage {
	return &PersistStage{store: st}
}

func (s *PersistStage) Name() string { return StagePersist }

func (s *PersistStage) Execute(ctx context.Context, sc *ScanContext) (*ScanContext, error) {
	log := zap.L().With(zap.String("ticker", sc.Ticker), zap.String("stage", StagePersist))

	stored := 0
	for _, rec := range sc.NewsItems() {
		if rec.Stored() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sc, err
		}
		id, err := s.store.UpsertNews(ctx, rec)
		if err != nil {
			log.Warn("pipeline: persist failed", zap.String("source_id", rec.SourceID), zap.Error(err))
			continue
		}
		sc.SetStoreID(rec.SourceID, id)
		stored++
	}

	log.Debug("pipeline: persisted news", zap.Int("stored", stored))
	return sc, nil
}
