package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newswatch/internal/model"
)

// ErrAlertExists is returned by StoreAlert when the news item already has an alert.
var ErrAlertExists = eris.New("store: alert already exists for news item")

// Store defines the persistence interface for the news pipeline.
type Store interface {
	// News
	UpsertNews(ctx context.Context, rec model.NewsRecord) (int64, error)
	MarkProcessed(ctx context.Context, newsID int64, v model.Verdict) error
	ListNews(ctx context.Context, filter model.NewsFilter) ([]model.NewsRecord, error)

	// Alerts
	AlertExistsFor(ctx context.Context, newsID int64) (bool, error)
	StoreAlert(ctx context.Context, alert model.Alert) (int64, error)
	ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error)

	// Scan runs
	CreateScanRun(ctx context.Context, ticker string) (*model.ScanRun, error)
	CompleteScanRun(ctx context.Context, runID string, status model.ScanStatus, summary model.ScanSummary, stages []model.StageResult) error
	ListScanRuns(ctx context.Context, filter model.ScanRunFilter) ([]model.ScanRun, error)

	// Retention
	CleanOldData(ctx context.Context, days int) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// newsColumns are the columns written by UpsertNews, in bind order.
var newsColumns = []string{"source_id", "ticker", "source", "title", "summary", "url", "published", "created_at"}

func newsArgs(rec model.NewsRecord, now time.Time) []any {
	return []any{rec.SourceID, rec.Ticker, rec.Source, rec.Title, rec.Summary, rec.URL, rec.Published.UTC(), now}
}

func retentionCutoff(days int) (time.Time, error) {
	if days < 1 {
		return time.Time{}, eris.Errorf("store: retention must be at least 1 day, got %d", days)
	}
	return time.Now().UTC().AddDate(0, 0, -days), nil
}

func validateNews(rec model.NewsRecord) error {
	if rec.SourceID == "" {
		return eris.New("store: news record has no source_id")
	}
	if rec.Ticker == "" {
		return eris.Errorf("store: news record %s has no ticker", rec.SourceID)
	}
	return nil
}
