package source

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/resilience"
)

var t0 = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

func rec(id string, published time.Time) model.NewsRecord {
	return model.NewsRecord{SourceID: id, Ticker: "ACME", Title: "title " + id, Published: published}
}

type panicSource struct{}

func (panicSource) Name() string { return "panicky" }
func (panicSource) Fetch(context.Context, string) ([]model.NewsRecord, error) {
	panic("boom")
}

type slowSource struct{}

func (slowSource) Name() string { return "slow" }
func (slowSource) Fetch(ctx context.Context, _ string) ([]model.NewsRecord, error) {
	<-ctx.Done()
	return []model.NewsRecord{rec("late", t0)}, ctx.Err()
}

type countingSource struct {
	calls atomic.Int32
}

func (c *countingSource) Name() string { return "counting" }
func (c *countingSource) Fetch(context.Context, string) ([]model.NewsRecord, error) {
	c.calls.Add(1)
	return nil, errors.New("unavailable")
}

// stubFetcher serves a fixed body for every URL.
type stubFetcher struct {
	body string
	err  error
	urls []string
}

func (f *stubFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestCollect_DedupesAcrossSources(t *testing.T) {
	a := &Static{SourceName: "a", Records: []model.NewsRecord{rec("h1", t0), rec("h2", t0.Add(-time.Hour))}}
	b := &Static{SourceName: "b", Records: []model.NewsRecord{rec("h1", t0)}}

	got := NewAggregator(Options{}, a, b).Collect(context.Background(), "ACME")

	require.Len(t, got, 2)
	assert.Equal(t, "h1", got[0].SourceID)
	assert.Equal(t, "h2", got[1].SourceID)
}

func TestCollect_LastWriterWinsBySourceOrder(t *testing.T) {
	first := rec("h1", t0)
	first.Title = "from a"
	second := rec("h1", t0)
	second.Title = "from b"

	a := &Static{SourceName: "a", Records: []model.NewsRecord{first}}
	b := &Static{SourceName: "b", Records: []model.NewsRecord{second}}

	got := NewAggregator(Options{}, a, b).Collect(context.Background(), "ACME")
	require.Len(t, got, 1)
	assert.Equal(t, "from b", got[0].Title)

	got = NewAggregator(Options{}, b, a).Collect(context.Background(), "ACME")
	require.Len(t, got, 1)
	assert.Equal(t, "from a", got[0].Title)
}

func TestCollect_SortsNewestFirstWithIDTiebreak(t *testing.T) {
	s := &Static{SourceName: "a", Records: []model.NewsRecord{
		rec("c", t0.Add(-2*time.Hour)),
		rec("b", t0),
		rec("a", t0),
		rec("d", t0.Add(time.Hour)),
	}}

	got := NewAggregator(Options{}, s).Collect(context.Background(), "ACME")

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.SourceID
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids)
}

func TestCollect_PartialSourceFailure(t *testing.T) {
	bad := &Static{SourceName: "bad", Err: errors.New("connection refused")}
	good := &Static{SourceName: "good", Records: []model.NewsRecord{rec("h1", t0), rec("h2", t0)}}

	got := NewAggregator(Options{}, bad, good).Collect(context.Background(), "ACME")
	assert.Len(t, got, 2)
}

func TestCollect_PanicAndTimeoutContributeNothing(t *testing.T) {
	good := &Static{SourceName: "good", Records: []model.NewsRecord{rec("h1", t0)}}
	agg := NewAggregator(Options{Timeout: 20 * time.Millisecond}, panicSource{}, slowSource{}, good)

	got := agg.Collect(context.Background(), "ACME")
	require.Len(t, got, 1)
	assert.Equal(t, "h1", got[0].SourceID)
}

func TestCollect_DropsRecordsWithoutID(t *testing.T) {
	s := &Static{SourceName: "a", Records: []model.NewsRecord{rec("", t0), rec("h1", t0)}}

	got := NewAggregator(Options{}, s).Collect(context.Background(), "ACME")
	require.Len(t, got, 1)
	assert.Equal(t, "h1", got[0].SourceID)
}

func TestCollect_FillsTickerAndSource(t *testing.T) {
	s := &Static{SourceName: "wire", Records: []model.NewsRecord{{SourceID: "h1", Published: t0}}}

	got := NewAggregator(Options{}, s).Collect(context.Background(), "ACME")
	require.Len(t, got, 1)
	assert.Equal(t, "ACME", got[0].Ticker)
	assert.Equal(t, "wire", got[0].Source)
}

func TestCollect_BreakerStopsCallingFailingSource(t *testing.T) {
	src := &countingSource{}
	breakers := resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	agg := NewAggregator(Options{Breakers: breakers}, src)

	for i := 0; i < 5; i++ {
		assert.Empty(t, agg.Collect(context.Background(), "ACME"))
	}
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, resilience.CircuitOpen, breakers.States()["source:counting"])
}

func TestCollect_NoSources(t *testing.T) {
	assert.Empty(t, NewAggregator(Options{}).Collect(context.Background(), "ACME"))
}

func TestAggregator_Sources(t *testing.T) {
	agg := NewAggregator(Options{}, &Static{SourceName: "a"}, &Static{SourceName: "b"})
	assert.Equal(t, []string{"a", "b"}, agg.Sources())
}

func TestStatic_FiltersByTicker(t *testing.T) {
	s := &Static{SourceName: "a", Records: []model.NewsRecord{
		{SourceID: "1", Ticker: "ACME"},
		{SourceID: "2", Ticker: "INIT"},
		{SourceID: "3"},
	}}
	got, err := s.Fetch(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNewID(t *testing.T) {
	id := NewID("finviz", "ACME beats estimates", "https://example.com/a")
	assert.True(t, strings.HasPrefix(id, "finviz-"))
	assert.Len(t, id, len("finviz-")+32)

	assert.Equal(t, id, NewID("finviz", "ACME beats estimates", "https://example.com/a"))
	assert.Equal(t, id, NewID("finviz", "  ACME beats estimates ", "https://example.com/a"))
	assert.NotEqual(t, id, NewID("finviz", "ACME misses estimates", "https://example.com/a"))

	// Full-width characters normalize to their ASCII forms.
	assert.Equal(t, NewID("rss", "ACME"), NewID("rss", "ＡＣＭＥ"))

	// Part boundaries are part of the identity.
	assert.NotEqual(t, NewID("yahoo", "ab", "c"), NewID("yahoo", "a", "bc"))
	assert.NotEqual(t, NewID("yahoo", "abc"), NewID("yahoo", "ab", "c"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "seeking-alpha", slug("Seeking Alpha"))
	assert.Equal(t, "cnbc", slug("CNBC"))
	assert.Equal(t, "a-b", slug("  A & B!! "))
}
