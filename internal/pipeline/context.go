package pipeline

import (
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newswatch/internal/model"
)

// Audit keys written to a ScanContext. Stage logic never reads them.
const (
	AuditCurrentOperation = "current_operation"
	AuditLastProcessedID  = "last_processed_id"
	AuditLastRequestTime  = "last_request_time"
)

// AuditErrorKey is the audit key recording why stage failed.
func AuditErrorKey(stage string) string {
	return "error_in_" + stage
}

var (
	// ErrAlreadyProcessed is returned by MarkProcessed for a record that
	// already went through classification in this context.
	ErrAlreadyProcessed = eris.New("pipeline: item already processed")

	// ErrUnknownItem is returned by MarkProcessed when no collected record
	// has the given source_id.
	ErrUnknownItem = eris.New("pipeline: no news item with that source_id")
)

// ScanContext is the per-ticker state threaded through the stages of one
// pipeline run. It is owned by a single run; the mutex keeps the
// processed-once check race-free should a stage fan out.
type ScanContext struct {
	Ticker    string
	Threshold float64

	mu           sync.RWMutex
	newsItems    []model.NewsRecord
	index        map[string]int // source_id -> position in newsItems
	processed    []model.NewsRecord
	processedIdx map[string]int // source_id -> position in processed
	alerts       []model.Alert
	audit        map[string]string
}

// NewScanContext creates an empty context. A threshold outside [0,1] falls
// back to model.DefaultThreshold.
func NewScanContext(ticker string, threshold float64) *ScanContext {
	if threshold < 0 || threshold > 1 {
		threshold = model.DefaultThreshold
	}
	return &ScanContext{
		Ticker:       strings.ToUpper(strings.TrimSpace(ticker)),
		Threshold:    threshold,
		index:        make(map[string]int),
		processedIdx: make(map[string]int),
		audit:        make(map[string]string),
	}
}

// AddNewsItems appends records whose source_id is not yet in the context and
// returns how many were added. Records without a source_id are ignored.
func (sc *ScanContext) AddNewsItems(recs ...model.NewsRecord) int {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	added := 0
	for _, rec := range recs {
		if rec.SourceID == "" {
			continue
		}
		if _, ok := sc.index[rec.SourceID]; ok {
			continue
		}
		sc.index[rec.SourceID] = len(sc.newsItems)
		sc.newsItems = append(sc.newsItems, copyRecord(rec))
		added++
	}
	return added
}

// NewsItems returns a copy of the collected records in collection order.
func (sc *ScanContext) NewsItems() []model.NewsRecord {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return copyRecords(sc.newsItems)
}

// SetStoreID records the store identity of the record with sourceID, in both
// the collected and (if present) processed sequences.
func (sc *ScanContext) SetStoreID(sourceID string, id int64) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	i, ok := sc.index[sourceID]
	if !ok {
		return false
	}
	sc.newsItems[i].StoreID = id
	if j, ok := sc.processedIdx[sourceID]; ok {
		sc.processed[j].StoreID = id
	}
	return true
}

// UnprocessedItems returns the collected records not yet classified, in
// collection order.
func (sc *ScanContext) UnprocessedItems() []model.NewsRecord {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	var out []model.NewsRecord
	for _, rec := range sc.newsItems {
		if _, done := sc.processedIdx[rec.SourceID]; !done {
			out = append(out, copyRecord(rec))
		}
	}
	return out
}

// MarkProcessed applies v to the record with sourceID and moves it into the
// processed sequence. It is the only way in, and each source_id gets in at
// most once.
func (sc *ScanContext) MarkProcessed(sourceID string, v model.Verdict) (model.NewsRecord, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if _, done := sc.processedIdx[sourceID]; done {
		return model.NewsRecord{}, eris.Wrapf(ErrAlreadyProcessed, "source_id %s", sourceID)
	}
	i, ok := sc.index[sourceID]
	if !ok {
		return model.NewsRecord{}, eris.Wrapf(ErrUnknownItem, "source_id %s", sourceID)
	}

	rec := sc.newsItems[i].WithVerdict(v)
	sc.newsItems[i] = rec
	sc.processedIdx[sourceID] = len(sc.processed)
	sc.processed = append(sc.processed, rec)
	sc.audit[AuditLastProcessedID] = sourceID
	return copyRecord(rec), nil
}

// IsProcessed reports whether sourceID has been classified in this context.
func (sc *ScanContext) IsProcessed(sourceID string) bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	_, ok := sc.processedIdx[sourceID]
	return ok
}

// ProcessedItems returns a copy of the classified records in processing order.
func (sc *ScanContext) ProcessedItems() []model.NewsRecord {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return copyRecords(sc.processed)
}

// PositiveItems returns processed records flagged positive, in processing order.
func (sc *ScanContext) PositiveItems() []model.NewsRecord {
	return sc.filterProcessed(func(r model.NewsRecord) bool { return r.IsPositive })
}

// NegativeItems returns processed records flagged negative, in processing order.
func (sc *ScanContext) NegativeItems() []model.NewsRecord {
	return sc.filterProcessed(func(r model.NewsRecord) bool { return r.IsNegative })
}

func (sc *ScanContext) filterProcessed(keep func(model.NewsRecord) bool) []model.NewsRecord {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	var out []model.NewsRecord
	for _, rec := range sc.processed {
		if keep(rec) {
			out = append(out, copyRecord(rec))
		}
	}
	return out
}

// AddAlert records an alert issued during this run.
func (sc *ScanContext) AddAlert(a model.Alert) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.alerts = append(sc.alerts, a)
}

// Alerts returns a copy of the alerts issued during this run.
func (sc *ScanContext) Alerts() []model.Alert {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	out := make([]model.Alert, len(sc.alerts))
	copy(out, sc.alerts)
	return out
}

// SetAudit writes an audit entry.
func (sc *ScanContext) SetAudit(key, value string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.audit[key] = value
}

// Audit reads an audit entry.
func (sc *ScanContext) Audit(key string) (string, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	v, ok := sc.audit[key]
	return v, ok
}

// AuditState returns a copy of all audit entries.
func (sc *ScanContext) AuditState() map[string]string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	out := make(map[string]string, len(sc.audit))
	for k, v := range sc.audit {
		out[k] = v
	}
	return out
}

// Summary snapshots the context counters.
func (sc *ScanContext) Summary() model.ScanSummary {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	s := model.ScanSummary{
		Ticker:           sc.Ticker,
		TotalItems:       len(sc.newsItems),
		ProcessedItems:   len(sc.processed),
		Alerts:           len(sc.alerts),
		CurrentOperation: sc.audit[AuditCurrentOperation],
	}
	for _, rec := range sc.processed {
		if rec.IsPositive {
			s.PositiveItems++
		}
		if rec.IsNegative {
			s.NegativeItems++
		}
	}
	return s
}

func copyRecord(r model.NewsRecord) model.NewsRecord {
	if r.KeyFactors != nil {
		r.KeyFactors = append([]string(nil), r.KeyFactors...)
	}
	return r
}

func copyRecords(in []model.NewsRecord) []model.NewsRecord {
	out := make([]model.NewsRecord, len(in))
	for i, r := range in {
		out[i] = copyRecord(r)
	}
	return out
}
