package model

import "time"

// ScanStatus represents the outcome of one ticker's pipeline execution.
type ScanStatus string

const (
	ScanStatusRunning  ScanStatus = "running"
	ScanStatusComplete ScanStatus = "complete"
	// ScanStatusDegraded means the pipeline finished but at least one stage failed.
	ScanStatusDegraded ScanStatus = "degraded"
)

// ScanSummary is the end-of-run snapshot of a ticker's context.
type ScanSummary struct {
	Ticker           string `json:"ticker"`
	TotalItems       int    `json:"total_items"`
	ProcessedItems   int    `json:"processed_items"`
	PositiveItems    int    `json:"positive_items"`
	NegativeItems    int    `json:"negative_items"`
	Alerts           int    `json:"alerts"`
	CurrentOperation string `json:"current_operation"`
}

// StageResult records one stage execution inside a scan.
type StageResult struct {
	Name     string `json:"name"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
}

// Failed reports whether the stage ended in error.
func (s StageResult) Failed() bool {
	return s.Error != ""
}

// ScanRun is the persisted record of one ticker's pipeline execution.
type ScanRun struct {
	ID         string        `json:"id"`
	Ticker     string        `json:"ticker"`
	Status     ScanStatus    `json:"status"`
	Summary    *ScanSummary  `json:"summary,omitempty"`
	Stages     []StageResult `json:"stages,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// FailedStages counts stages that ended in error.
func (r ScanRun) FailedStages() int {
	n := 0
	for _, s := range r.Stages {
		if s.Failed() {
			n++
		}
	}
	return n
}

// ScanRunFilter specifies criteria for listing scan runs.
type ScanRunFilter struct {
	Ticker       string     `json:"ticker,omitempty"`
	Status       ScanStatus `json:"status,omitempty"`
	StartedAfter time.Time  `json:"started_after,omitempty"`
	Limit        int        `json:"limit,omitempty"`
}

// WatchItem is one watchlist entry.
type WatchItem struct {
	Ticker    string  `json:"ticker" yaml:"ticker"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}
