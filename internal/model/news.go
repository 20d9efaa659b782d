package model

import (
	"strings"
	"time"
)

// Sentiment is the normalized polarity assigned by a classifier.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment maps a free-form label onto a Sentiment. Anything it does not
// recognize is neutral.
func ParseSentiment(s string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "bullish", "pos":
		return SentimentPositive
	case "negative", "bearish", "neg":
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// DefaultThreshold is the minimum confidence for an item to count as
// decisively positive or negative when a watchlist entry sets none.
const DefaultThreshold = 0.7

// NewsRecord is one piece of news about one ticker.
type NewsRecord struct {
	SourceID  string    `json:"source_id"`
	Ticker    string    `json:"ticker"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	URL       string    `json:"url"`
	Published time.Time `json:"published"`

	// Populated by the classify stage only.
	Sentiment            Sentiment `json:"sentiment,omitempty"`
	Confidence           float64   `json:"confidence"`
	SentimentScore       float64   `json:"sentiment_score"`
	IsPositive           bool      `json:"is_positive"`
	IsNegative           bool      `json:"is_negative"`
	Reasoning            string    `json:"reasoning,omitempty"`
	KeyFactors           []string  `json:"key_factors,omitempty"`
	MarketImpact         string    `json:"market_impact,omitempty"`
	ActionRecommendation string    `json:"action_recommendation,omitempty"`
	TimeHorizon          string    `json:"time_horizon,omitempty"`

	// StoreID is the store identity once persisted; zero means not yet stored.
	StoreID int64 `json:"store_id,omitempty"`
}

// Stored reports whether the record has been durably persisted.
func (r NewsRecord) Stored() bool {
	return r.StoreID != 0
}

// Significant reports whether the record passed the threshold in either direction.
func (r NewsRecord) Significant() bool {
	return r.IsPositive || r.IsNegative
}

// Verdict is the classification result applied to a NewsRecord.
type Verdict struct {
	Sentiment            Sentiment `json:"sentiment"`
	Confidence           float64   `json:"confidence"`
	SentimentScore       float64   `json:"sentiment_score"`
	IsPositive           bool      `json:"is_positive"`
	IsNegative           bool      `json:"is_negative"`
	Reasoning            string    `json:"reasoning,omitempty"`
	KeyFactors           []string  `json:"key_factors,omitempty"`
	MarketImpact         string    `json:"market_impact,omitempty"`
	ActionRecommendation string    `json:"action_recommendation,omitempty"`
	TimeHorizon          string    `json:"time_horizon,omitempty"`
}

// WithVerdict returns a copy of r carrying the verdict fields.
func (r NewsRecord) WithVerdict(v Verdict) NewsRecord {
	r.Sentiment = v.Sentiment
	r.Confidence = v.Confidence
	r.SentimentScore = v.SentimentScore
	r.IsPositive = v.IsPositive
	r.IsNegative = v.IsNegative
	r.Reasoning = v.Reasoning
	if len(v.KeyFactors) > 0 {
		r.KeyFactors = append([]string(nil), v.KeyFactors...)
	} else {
		r.KeyFactors = nil
	}
	r.MarketImpact = v.MarketImpact
	r.ActionRecommendation = v.ActionRecommendation
	r.TimeHorizon = v.TimeHorizon
	return r
}

// Verdict extracts the verdict fields of r.
func (r NewsRecord) Verdict() Verdict {
	return Verdict{
		Sentiment:            r.Sentiment,
		Confidence:           r.Confidence,
		SentimentScore:       r.SentimentScore,
		IsPositive:           r.IsPositive,
		IsNegative:           r.IsNegative,
		Reasoning:            r.Reasoning,
		KeyFactors:           r.KeyFactors,
		MarketImpact:         r.MarketImpact,
		ActionRecommendation: r.ActionRecommendation,
		TimeHorizon:          r.TimeHorizon,
	}
}

// NewsFilter specifies criteria for listing stored news.
type NewsFilter struct {
	Ticker        string    `json:"ticker,omitempty"`
	NegativeOnly  bool      `json:"negative_only,omitempty"`
	PositiveOnly  bool      `json:"positive_only,omitempty"`
	Unprocessed   bool      `json:"unprocessed,omitempty"`
	PublishedFrom time.Time `json:"published_from,omitempty"`
	Limit         int       `json:"limit,omitempty"`
}
