package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/notify"
	"github.com/sells-group/newswatch/internal/store"
)

// AlertStage issues one tracker issue per significant stored record that
// has no alert yet, and records the alert.
type AlertStage struct {
	store store.Store
	sink  notify.IssueSink
	now   func() time.Time
}

// NewAlertStage creates the alert stage.
func NewAlertStage(st store.Store, sink notify.IssueSink) *AlertStage {
	return &AlertStage{store: st, sink: sink, now: time.Now}
}

func (s *AlertStage) Name() string { return StageAlert }

// Execute walks negatives first, then positives, each in processing order.
// The alert is stored only after the sink accepted it.
func (s *AlertStage) Execute(ctx context.Context, sc *ScanContext) (*ScanContext, error) {
	sc.SetAudit(AuditCurrentOperation, "generating_alerts")
	log := zap.L().With(zap.String("ticker", sc.Ticker), zap.String("stage", StageAlert))

	candidates := append(sc.NegativeItems(), sc.PositiveItems()...)
	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return sc, err
		}
		recLog := log.With(zap.String("source_id", rec.SourceID))

		if !rec.Stored() {
			recLog.Warn("pipeline: significant item was never stored, skipping alert")
			continue
		}

		exists, err := s.store.AlertExistsFor(ctx, rec.StoreID)
		if err != nil {
			recLog.Warn("pipeline: alert lookup failed", zap.Error(err))
			continue
		}
		if exists {
			continue
		}

		ref, err := s.sink.Create(ctx, rec)
		if err != nil {
			if eris.Is(err, notify.ErrSinkDisabled) {
				recLog.Debug("pipeline: alert sink disabled, alert left pending")
			} else {
				recLog.Warn("pipeline: alert delivery failed", zap.Error(err))
			}
			continue
		}

		alert := model.Alert{
			Ticker:         rec.Ticker,
			Title:          model.AlertTitle(rec),
			Sentiment:      rec.Sentiment,
			NewsStoreID:    rec.StoreID,
			IssueReference: ref,
			CreatedAt:      s.now().UTC(),
		}
		id, err := s.store.StoreAlert(ctx, alert)
		if err != nil {
			recLog.Error("pipeline: alert delivered but not recorded",
				zap.String("issue_reference", ref),
				zap.Error(err),
			)
			continue
		}
		alert.ID = id
		sc.AddAlert(alert)
		recLog.Info("pipeline: alert issued", zap.String("issue_reference", ref))
	}
	return sc, nil
}
