package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newswatch/internal/model"
)

func rec(id string) model.NewsRecord {
	return model.NewsRecord{
		SourceID:  id,
		Ticker:    "ACME",
		Source:    "Finviz",
		Title:     "headline " + id,
		Published: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

func negative(conf float64) model.Verdict {
	return model.Verdict{Sentiment: model.SentimentNegative, Confidence: conf, SentimentScore: -conf, IsNegative: true}
}

func positive(conf float64) model.Verdict {
	return model.Verdict{Sentiment: model.SentimentPositive, Confidence: conf, SentimentScore: conf, IsPositive: true}
}

func TestNewScanContext(t *testing.T) {
	sc := NewScanContext(" acme ", 0.7)
	assert.Equal(t, "ACME", sc.Ticker)

	assert.Equal(t, 0.0, NewScanContext("X", 0).Threshold)
	assert.Equal(t, 0.8, NewScanContext("X", 0.8).Threshold)
	assert.Equal(t, 1.0, NewScanContext("X", 1).Threshold)
	assert.Equal(t, model.DefaultThreshold, NewScanContext("X", 1.5).Threshold)
	assert.Equal(t, model.DefaultThreshold, NewScanContext("X", -0.1).Threshold)
}

func TestAddNewsItems_DedupsBySourceID(t *testing.T) {
	sc := NewScanContext("ACME", 0.7)

	assert.Equal(t, 2, sc.AddNewsItems(rec("a"), rec("b")))
	assert.Equal(t, 1, sc.AddNewsItems(rec("b"), rec("c"), model.NewsRecord{Title: "no id"}))

	items := sc.NewsItems()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{items[0].SourceID, items[1].SourceID, items[2].SourceID})
}

func TestNewsItems_ReturnsCopies(t *testing.T) {
	sc := NewScanContext("ACME", 0.7)
	r := rec("a")
	r.KeyFactors = []string{"x"}
	sc.AddNewsItems(r)

	items := sc.NewsItems()
	items[0].Title = "mutated"
	items[0].KeyFactors[0] = "mutated"

	again := sc.NewsItems()
	assert.Equal(t, "headline a", again[0].Title)
	assert.Equal(t, "x", again[0].KeyFactors[0])
}

func TestMarkProcessed_OnceOnly(t *testing.T) {
	sc := NewScanContext("ACME", 0.7)
	sc.AddNewsItems(rec("a"), rec("b"))

	got, err := sc.MarkProcessed("a", negative(0.85))
	require.NoError(t, err)
	assert.True(t, got.IsNegative)
	assert.Equal(t, -0.85, got.SentimentScore)

	_, err = sc.MarkProcessed("a", positive(0.9))
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	_, err = sc.MarkProcessed("zzz", positive(0.9))
	assert.ErrorIs(t, err, ErrUnknownItem)

	processed := sc.ProcessedItems()
	require.Len(t, processed, 1)
	assert.Equal(t, model.SentimentNegative, processed[0].Sentiment)

	unprocessed := sc.UnprocessedItems()
	require.Len(t, unprocessed, 1)
	assert.Equal(t, "b", unprocessed[0].SourceID)

	v, ok := sc.Audit(AuditLastProcessedID)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.True(t, sc.IsProcessed("a"))
	assert.False(t, sc.IsProcessed("b"))
}

func TestMarkProcessed_Concurrent(t *testing.T) {
	sc := NewScanContext("ACME", 0.7)
	sc.AddNewsItems(rec("a"))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sc.MarkProcessed("a", negative(0.9)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Len(t, sc.ProcessedItems(), 1)
}

func TestSetStoreID_UpdatesProcessedCopy(t *testing.T) {
	sc := NewScanContext("ACME", 0.7)
	sc.AddNewsItems(rec("a"))
	_, err := sc.MarkProcessed("a", negative(0.9))
	require.NoError(t, err)

	assert.True(t, sc.SetStoreID("a", 42))
	assert.False(t, sc.SetStoreID("missing", 1))

	assert.Equal(t, int64(42), sc.NewsItems()[0].StoreID)
	assert.Equal(t, int64(42), sc.NegativeItems()[0].StoreID)
}

func TestPositiveNegativeItems_ProcessingOrder(t *testing.T) {
	sc := NewScanContext("ACME", 0.7)
	sc.AddNewsItems(rec("a"), rec("b"), rec("c"), rec("d"))

	for _, step := range []struct {
		id string
		v  model.Verdict
	}{
		{"c", negative(0.9)},
		{"a", positive(0.8)},
		{"d", model.Verdict{Sentiment: model.SentimentNegative, Confidence: 0.65}},
		{"b", negative(0.75)},
	} {
		_, err := sc.MarkProcessed(step.id, step.v)
		require.NoError(t, err)
	}

	neg := sc.NegativeItems()
	require.Len(t, neg, 2)
	assert.Equal(t, "c", neg[0].SourceID)
	assert.Equal(t, "b", neg[1].SourceID)

	pos := sc.PositiveItems()
	require.Len(t, pos, 1)
	assert.Equal(t, "a", pos[0].SourceID)

	sc.AddAlert(model.Alert{Ticker: "ACME", Title: "Negative Alert: headline c"})
	sc.SetAudit(AuditCurrentOperation, "generating_alerts")

	assert.Equal(t, model.ScanSummary{
		Ticker:           "ACME",
		TotalItems:       4,
		ProcessedItems:   4,
		PositiveItems:    1,
		NegativeItems:    2,
		Alerts:           1,
		CurrentOperation: "generating_alerts",
	}, sc.Summary())
}

func TestAuditState_IsACopy(t *testing.T) {
	sc := NewScanContext("ACME", 0.7)
	sc.SetAudit("k", "v")

	state := sc.AuditState()
	state["k"] = "changed"

	v, _ := sc.Audit("k")
	assert.Equal(t, "v", v)
	assert.Equal(t, "error_in_collect", AuditErrorKey("collect"))
}
