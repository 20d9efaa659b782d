package sentiment

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newswatch/internal/config"
	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Complete(ctx context.Context, req anthropic.CompletionRequest) (*anthropic.Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.Completion), args.Error(1)
}

func textResponse(text string) *anthropic.Completion {
	return &anthropic.Completion{
		Text:  text,
		Usage: anthropic.Usage{InputTokens: 100, OutputTokens: 20},
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Score
		want Score
	}{
		{"clamps high", Score{Sentiment: "positive", Confidence: 1.7}, Score{Sentiment: model.SentimentPositive, Confidence: 1}},
		{"clamps negative", Score{Sentiment: "negative", Confidence: -0.2}, Score{Sentiment: model.SentimentNegative, Confidence: 0}},
		{"nan", Score{Sentiment: "neutral", Confidence: math.NaN()}, Score{Sentiment: model.SentimentNeutral, Confidence: 0}},
		{"unknown label", Score{Sentiment: "ecstatic", Confidence: 0.8}, Score{Sentiment: model.SentimentNeutral, Confidence: 0.8}},
		{"synonym", Score{Sentiment: "Bearish", Confidence: 0.8}, Score{Sentiment: model.SentimentNegative, Confidence: 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestDerive_ThresholdGating(t *testing.T) {
	below := Derive(Score{Sentiment: model.SentimentNegative, Confidence: 0.65}, 0.7)
	assert.False(t, below.IsNegative)
	assert.False(t, below.IsPositive)
	assert.Equal(t, model.SentimentNegative, below.Sentiment)
	assert.InDelta(t, 0.65, below.Confidence, 1e-9)
	assert.InDelta(t, -0.65, below.SentimentScore, 1e-9)

	at := Derive(Score{Sentiment: model.SentimentNegative, Confidence: 0.7}, 0.7)
	assert.True(t, at.IsNegative)

	pos := Derive(Score{Sentiment: model.SentimentPositive, Confidence: 0.9, KeyFactors: []string{"beat"}}, 0.7)
	assert.True(t, pos.IsPositive)
	assert.False(t, pos.IsNegative)
	assert.InDelta(t, 0.9, pos.SentimentScore, 1e-9)
	assert.Equal(t, []string{"beat"}, pos.KeyFactors)

	neutral := Derive(Score{Sentiment: model.SentimentNeutral, Confidence: 0.95}, 0.7)
	assert.False(t, neutral.IsPositive || neutral.IsNegative)
	assert.Zero(t, neutral.SentimentScore)
}

func TestNew(t *testing.T) {
	cfg := &config.Config{}
	cfg.Classifier.Provider = "lexicon"
	c, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &LexiconClassifier{}, c)

	cfg.Classifier.Provider = "anthropic"
	_, err = New(cfg)
	require.Error(t, err)

	cfg.Anthropic.Key = "sk-test"
	cfg.Anthropic.Model = "claude-haiku-4-5-20251001"
	c, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClassifier{}, c)

	cfg.Classifier.Provider = "magic"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestClaudeClassifier_Score(t *testing.T) {
	client := &mockClient{}
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req anthropic.CompletionRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.CacheSystem && req.System != "" &&
			strings.Contains(req.Prompt, "Ticker: ACME") &&
			req.Temperature != nil && *req.Temperature == 0
	})).Return(textResponse("Here you go:\n```json\n"+`{
		"sentiment": "negative",
		"confidence": 0.82,
		"reasoning": "Product recall hurts revenue",
		"key_factors": ["recall", " guidance cut ", ""],
		"market_impact": "Likely decline",
		"action_recommendation": "Monitor closely",
		"time_horizon": "short-term"
	}`+"\n```"), nil)

	c := NewClaudeClassifier(client, ClaudeOptions{Model: "claude-haiku-4-5-20251001"})
	s, err := c.Score(context.Background(), model.NewsRecord{
		SourceID: "finviz-1", Ticker: "ACME", Source: "Finviz",
		Title: "ACME recalls product line", Summary: "ACME recalls product line",
	})
	require.NoError(t, err)

	assert.Equal(t, model.SentimentNegative, s.Sentiment)
	assert.InDelta(t, 0.82, s.Confidence, 1e-9)
	assert.Equal(t, "Product recall hurts revenue", s.Reasoning)
	assert.Equal(t, []string{"recall", "guidance cut"}, s.KeyFactors)
	assert.Equal(t, "Likely decline", s.MarketImpact)
	assert.Equal(t, "Monitor closely", s.ActionRecommendation)
	assert.Equal(t, "short-term", s.TimeHorizon)
	client.AssertExpectations(t)
}

func TestClaudeClassifier_APIError(t *testing.T) {
	client := &mockClient{}
	client.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	c := NewClaudeClassifier(client, ClaudeOptions{Model: "m"})
	_, err := c.Score(context.Background(), model.NewsRecord{SourceID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentiment: classify x")
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Score
		wantErr bool
	}{
		{"plain", `{"sentiment":"positive","confidence":0.75}`, Score{Sentiment: model.SentimentPositive, Confidence: 0.75}, false},
		{"clamped", `{"sentiment":"positive","confidence":3}`, Score{Sentiment: model.SentimentPositive, Confidence: 1}, false},
		{"unknown label", `{"sentiment":"mixed","confidence":0.5}`, Score{Sentiment: model.SentimentNeutral, Confidence: 0.5}, false},
		{"no json", "I cannot help with that", Score{}, true},
		{"broken json", `{"sentiment": "positive", }`, Score{}, true},
		{"missing sentiment", `{"confidence":0.9}`, Score{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerdict(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClaudePrompt(t *testing.T) {
	p := claudePrompt(model.NewsRecord{Ticker: "ACME", Source: "CNBC", Title: "t", Summary: "s"})
	assert.Contains(t, p, "Ticker: ACME")
	assert.Contains(t, p, "Headline: t")
	assert.Contains(t, p, "Summary: s")

	p = claudePrompt(model.NewsRecord{Ticker: "ACME", Title: "same", Summary: "same"})
	assert.NotContains(t, p, "Summary:")
}
