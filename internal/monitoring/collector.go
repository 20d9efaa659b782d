package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newswatch/internal/model"
)

// MetricsSnapshot holds a point-in-time view of scan health.
type MetricsSnapshot struct {
	// Scan runs (within lookback window).
	ScanTotal    int `json:"scan_total"`
	ScanComplete int `json:"scan_complete"`
	ScanDegraded int `json:"scan_degraded"`
	ScanRunning  int `json:"scan_running"`

	// Stage executions across those runs.
	StagesRun     int            `json:"stages_run"`
	StagesFailed  int            `json:"stages_failed"`
	StageFailRate float64        `json:"stage_fail_rate"`
	StageFailures map[string]int `json:"stage_failures,omitempty"`

	// Content totals.
	ItemsCollected int `json:"items_collected"`
	ItemsPositive  int `json:"items_positive"`
	ItemsNegative  int `json:"items_negative"`
	AlertsIssued   int `json:"alerts_issued"`

	// Tickers whose every finished run in the window was degraded.
	DegradedTickers []string `json:"degraded_tickers,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// ScanRunLister is the slice of the store the collector reads.
type ScanRunLister interface {
	ListScanRuns(ctx context.Context, filter model.ScanRunFilter) ([]model.ScanRun, error)
}

// Collector gathers metrics from recorded scan runs.
type Collector struct {
	store ScanRunLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st ScanRunLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot of scan metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
		StageFailures: make(map[string]int),
	}

	runs, err := c.store.ListScanRuns(ctx, model.ScanRunFilter{
		StartedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list scan runs")
	}

	type tickerHealth struct{ finished, degraded int }
	health := make(map[string]*tickerHealth)

	snap.ScanTotal = len(runs)
	for _, r := range runs {
		h := health[r.Ticker]
		if h == nil {
			h = &tickerHealth{}
			health[r.Ticker] = h
		}
		switch r.Status {
		case model.ScanStatusComplete:
			snap.ScanComplete++
			h.finished++
		case model.ScanStatusDegraded:
			snap.ScanDegraded++
			h.finished++
			h.degraded++
		case model.ScanStatusRunning:
			snap.ScanRunning++
		}

		for _, s := range r.Stages {
			if s.Skipped {
				continue
			}
			snap.StagesRun++
			if s.Failed() {
				snap.StagesFailed++
				snap.StageFailures[s.Name]++
			}
		}

		if r.Summary != nil {
			snap.ItemsCollected += r.Summary.TotalItems
			snap.ItemsPositive += r.Summary.PositiveItems
			snap.ItemsNegative += r.Summary.NegativeItems
			snap.AlertsIssued += r.Summary.Alerts
		}
	}

	if snap.StagesRun > 0 {
		snap.StageFailRate = float64(snap.StagesFailed) / float64(snap.StagesRun)
	}
	for ticker, h := range health {
		if h.finished >= 2 && h.degraded == h.finished {
			snap.DegradedTickers = append(snap.DegradedTickers, ticker)
		}
	}
	sort.Strings(snap.DegradedTickers)

	return snap, nil
}
