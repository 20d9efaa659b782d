package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSentiment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Sentiment
	}{
		{"positive", SentimentPositive},
		{" Bullish ", SentimentPositive},
		{"NEG", SentimentNegative},
		{"bearish", SentimentNegative},
		{"neutral", SentimentNeutral},
		{"mixed", SentimentNeutral},
		{"", SentimentNeutral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSentiment(tt.in), tt.in)
	}
}

func TestNewsRecord_WithVerdict(t *testing.T) {
	t.Parallel()

	rec := NewsRecord{SourceID: "s1", Ticker: "ACME", Title: "ACME recalls flagship product", StoreID: 4}
	v := Verdict{
		Sentiment:      SentimentNegative,
		Confidence:     0.85,
		SentimentScore: -0.85,
		IsNegative:     true,
		KeyFactors:     []string{"recall"},
		TimeHorizon:    "short-term",
	}

	got := rec.WithVerdict(v)
	assert.Equal(t, "s1", got.SourceID)
	assert.Equal(t, int64(4), got.StoreID)
	assert.True(t, got.Significant())
	assert.Equal(t, v, got.Verdict())

	v.KeyFactors[0] = "changed"
	assert.Equal(t, []string{"recall"}, got.KeyFactors)

	cleared := got.WithVerdict(Verdict{Sentiment: SentimentNeutral, Confidence: 0.6})
	assert.Nil(t, cleared.KeyFactors)
	assert.False(t, cleared.Significant())
}

func TestNewsRecord_Stored(t *testing.T) {
	t.Parallel()

	assert.False(t, NewsRecord{}.Stored())
	assert.True(t, NewsRecord{StoreID: 1}.Stored())
}

func TestAlertTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Negative Alert: ACME misses", AlertTitle(NewsRecord{Title: "ACME misses", IsNegative: true}))
	assert.Equal(t, "Positive Alert: ACME beats", AlertTitle(NewsRecord{Title: "ACME beats", IsPositive: true}))
}

func TestScanRun_FailedStages(t *testing.T) {
	t.Parallel()

	run := ScanRun{Stages: []StageResult{
		{Name: "collect"},
		{Name: "classify", Error: "timeout"},
		{Name: "nope", Skipped: true},
		{Name: "alert", Error: "boom"},
	}}
	assert.Equal(t, 2, run.FailedStages())
	assert.False(t, run.Stages[2].Failed())
}
