// Package sentiment classifies news records as positive, negative or neutral.
package sentiment

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newswatch/internal/config"
	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/pkg/anthropic"
)

// Score is a classifier's raw opinion of one record.
type Score struct {
	Sentiment  model.Sentiment
	Confidence float64

	// Explanatory fields, carried through uninterpreted.
	Reasoning            string
	KeyFactors           []string
	MarketImpact         string
	ActionRecommendation string
	TimeHorizon          string
}

// Classifier scores a single news record.
type Classifier interface {
	Score(ctx context.Context, rec model.NewsRecord) (Score, error)
}

// Normalize clamps confidence to [0,1] and maps unknown labels to neutral.
func Normalize(s Score) Score {
	s.Sentiment = model.ParseSentiment(string(s.Sentiment))
	switch {
	case math.IsNaN(s.Confidence), s.Confidence < 0:
		s.Confidence = 0
	case s.Confidence > 1:
		s.Confidence = 1
	}
	return s
}

// Derive turns a score into the verdict stored on a record. An item is
// decisively positive or negative only when its confidence reaches threshold;
// the raw label and confidence are recorded either way.
func Derive(s Score, threshold float64) model.Verdict {
	s = Normalize(s)
	v := model.Verdict{
		Sentiment:            s.Sentiment,
		Confidence:           s.Confidence,
		Reasoning:            s.Reasoning,
		MarketImpact:         s.MarketImpact,
		ActionRecommendation: s.ActionRecommendation,
		TimeHorizon:          s.TimeHorizon,
	}
	if len(s.KeyFactors) > 0 {
		v.KeyFactors = append([]string(nil), s.KeyFactors...)
	}

	switch s.Sentiment {
	case model.SentimentPositive:
		v.SentimentScore = s.Confidence
		v.IsPositive = s.Confidence >= threshold
	case model.SentimentNegative:
		v.SentimentScore = -s.Confidence
		v.IsNegative = s.Confidence >= threshold
	}
	return v
}

// New builds the classifier selected by cfg.Classifier.Provider.
func New(cfg *config.Config) (Classifier, error) {
	switch cfg.Classifier.Provider {
	case "", "lexicon":
		return NewLexiconClassifier(), nil
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("sentiment: anthropic.key is required for the anthropic classifier")
		}
		return NewClaudeClassifier(anthropic.NewClient(cfg.Anthropic.Key), ClaudeOptions{
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
		}), nil
	default:
		return nil, eris.Errorf("sentiment: unknown classifier provider %q", cfg.Classifier.Provider)
	}
}
