package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/pkg/anthropic"
)

const claudeSystemPrompt = `You are a financial news analyst. For each headline you receive, judge how it is likely to affect the named company's stock price.

Respond with a single JSON object and nothing else:
{
  "sentiment": "positive" | "negative" | "neutral",
  "confidence": number between 0 and 1,
  "reasoning": short explanation,
  "key_factors": [short strings],
  "market_impact": short phrase,
  "action_recommendation": short phrase,
  "time_horizon": "short-term" | "medium-term" | "long-term"
}`

// ClaudeOptions configures a ClaudeClassifier.
type ClaudeOptions struct {
	Model     string
	MaxTokens int64
}

// ClaudeClassifier asks an Anthropic model for a structured sentiment
// verdict on each record.
type ClaudeClassifier struct {
	client anthropic.Client
	opts   ClaudeOptions
}

// NewClaudeClassifier creates a ClaudeClassifier.
func NewClaudeClassifier(client anthropic.Client, opts ClaudeOptions) *ClaudeClassifier {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &ClaudeClassifier{client: client, opts: opts}
}

// Score sends the record to the model and parses its JSON verdict.
func (c *ClaudeClassifier) Score(ctx context.Context, rec model.NewsRecord) (Score, error) {
	temp := 0.0
	resp, err := c.client.Complete(ctx, anthropic.CompletionRequest{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		System:      claudeSystemPrompt,
		CacheSystem: true,
		Prompt:      claudePrompt(rec),
		Temperature: &temp,
	})
	if err != nil {
		return Score{}, eris.Wrapf(err, "sentiment: classify %s", rec.SourceID)
	}

	s, err := parseVerdict(resp.Text)
	if err != nil {
		return Score{}, eris.Wrapf(err, "sentiment: classify %s", rec.SourceID)
	}
	return s, nil
}

func claudePrompt(rec model.NewsRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", rec.Ticker)
	fmt.Fprintf(&b, "Source: %s\n", rec.Source)
	fmt.Fprintf(&b, "Headline: %s\n", rec.Title)
	if rec.Summary != "" && rec.Summary != rec.Title {
		fmt.Fprintf(&b, "Summary: %s\n", rec.Summary)
	}
	return b.String()
}

// parseVerdict extracts the first JSON object from text.
func parseVerdict(text string) (Score, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return Score{}, eris.New("sentiment: no JSON object in model response")
	}
	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return Score{}, eris.New("sentiment: invalid JSON in model response")
	}

	res := gjson.Parse(raw)
	label := res.Get("sentiment")
	if !label.Exists() {
		return Score{}, eris.New("sentiment: model response has no sentiment")
	}

	s := Score{
		Sentiment:            model.ParseSentiment(label.String()),
		Confidence:           res.Get("confidence").Float(),
		Reasoning:            res.Get("reasoning").String(),
		MarketImpact:         res.Get("market_impact").String(),
		ActionRecommendation: res.Get("action_recommendation").String(),
		TimeHorizon:          res.Get("time_horizon").String(),
	}
	for _, f := range res.Get("key_factors").Array() {
		if v := strings.TrimSpace(f.String()); v != "" {
			s.KeyFactors = append(s.KeyFactors, v)
		}
	}
	return Normalize(s), nil
}
