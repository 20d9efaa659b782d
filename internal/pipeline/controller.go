// Package pipeline runs the per-ticker stages that collect, persist,
// classify and alert on news.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/model"
)

// Stage names understood by the default controller.
const (
	StageCollect  = "collect"
	StagePersist  = "persist"
	StageClassify = "classify"
	StageAlert    = "alert"
	StageAnnotate = "annotate"
)

// Stage is one named step of a pipeline. It may mutate sc and returns the
// context to hand to the next stage.
type Stage interface {
	Name() string
	Execute(ctx context.Context, sc *ScanContext) (*ScanContext, error)
}

// Controller runs named pipelines over a fixed set of stages.
type Controller struct {
	stages  map[string]Stage
	order   []string
	timeout time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithStageTimeout bounds each stage execution. Zero means no bound.
func WithStageTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// NewController registers stages by name. A later stage with the same name
// replaces an earlier one.
func NewController(stages []Stage, opts ...Option) *Controller {
	c := &Controller{stages: make(map[string]Stage, len(stages))}
	for _, s := range stages {
		if s == nil {
			continue
		}
		if _, ok := c.stages[s.Name()]; !ok {
			c.order = append(c.order, s.Name())
		}
		c.stages[s.Name()] = s
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Names returns the registered stage names in registration order.
func (c *Controller) Names() []string {
	return append([]string(nil), c.order...)
}

// Process runs the pipeline over sc and returns the final context.
func (c *Controller) Process(ctx context.Context, sc *ScanContext, pipeline []string) *ScanContext {
	out, _ := c.Run(ctx, sc, pipeline)
	return out
}

// Run executes the named stages in order. A stage that fails or panics is
// recorded on the context and the next stage runs with the context as it
// stood. Unknown names are skipped.
func (c *Controller) Run(ctx context.Context, sc *ScanContext, pipeline []string) (*ScanContext, []model.StageResult) {
	log := zap.L().With(zap.String("ticker", sc.Ticker))
	results := make([]model.StageResult, 0, len(pipeline))

	for _, name := range pipeline {
		stage, ok := c.stages[name]
		if !ok {
			log.Warn("pipeline: unknown stage, skipping", zap.String("stage", name))
			results = append(results, model.StageResult{Name: name, Skipped: true})
			continue
		}

		start := time.Now()
		next, err := c.execute(ctx, stage, sc)
		duration := time.Since(start).Milliseconds()
		result := model.StageResult{Name: name, Duration: duration}

		if err != nil {
			result.Error = err.Error()
			sc.SetAudit(AuditCurrentOperation, AuditErrorKey(name))
			sc.SetAudit(AuditErrorKey(name), err.Error())
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
		} else {
			if next != nil {
				sc = next
			}
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Any("summary", sc.Summary()),
			)
		}
		results = append(results, result)
	}

	return sc, results
}

func (c *Controller) execute(ctx context.Context, stage Stage, sc *ScanContext) (out *ScanContext, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = eris.Errorf("pipeline: stage %s panicked: %v", stage.Name(), r)
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return stage.Execute(ctx, sc)
}
