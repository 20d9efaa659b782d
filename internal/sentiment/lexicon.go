package sentiment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/sells-group/newswatch/internal/model"
)

// Compound score cut-offs for the lexicon classifier.
const (
	positiveCutoff    = 0.3
	negativeCutoff    = -0.2
	neutralConfidence = 0.6
	maxConfidence     = 0.9
)

const (
	boosterIncr    = 0.293
	negationScalar = -0.74
	exclaimBoost   = 0.292
	normAlpha      = 15.0
)

// financeLexicon holds valences on a -4..4 scale for headline vocabulary.
var financeLexicon = map[string]float64{
	// positive
	"beat": 1.8, "beats": 1.8, "surge": 2.2, "surges": 2.2, "surged": 2.2,
	"soar": 2.4, "soars": 2.4, "soared": 2.4, "jump": 1.6, "jumps": 1.6,
	"jumped": 1.6, "rally": 1.9, "rallies": 1.9, "rallied": 1.9, "gain": 1.5,
	"gains": 1.5, "record": 1.2, "growth": 1.6, "grow": 1.3, "grows": 1.3,
	"profit": 1.7, "profits": 1.7, "profitable": 1.9, "upgrade": 1.9,
	"upgraded": 1.9, "upgrades": 1.9, "outperform": 1.8, "outperforms": 1.8,
	"bullish": 2.1, "strong": 1.7, "stronger": 1.7, "strength": 1.6,
	"boost": 1.6, "boosts": 1.6, "raise": 1.2, "raises": 1.2, "raised": 1.2,
	"exceed": 1.5, "exceeds": 1.5, "exceeded": 1.5, "win": 2.0, "wins": 2.0,
	"won": 2.0, "approval": 1.8, "approved": 1.8, "approves": 1.8,
	"breakthrough": 2.3, "expand": 1.2, "expands": 1.2, "expansion": 1.3,
	"dividend": 0.9, "buyback": 1.1, "rebound": 1.5, "rebounds": 1.5,
	"recover": 1.3, "recovers": 1.3, "recovery": 1.4, "optimistic": 2.0,
	"optimism": 2.0, "positive": 2.3, "good": 1.9, "great": 3.1,
	"excellent": 2.7, "success": 2.7, "successful": 2.8, "innovative": 1.8,
	"partnership": 1.1, "upbeat": 1.9, "tops": 1.3, "top": 0.8, "best": 3.2,
	"higher": 0.9, "climbs": 1.4, "climb": 1.4, "accelerates": 1.3,

	// negative
	"miss": -1.6, "misses": -1.6, "missed": -1.6, "plunge": -2.6,
	"plunges": -2.6, "plunged": -2.6, "plummet": -2.8, "plummets": -2.8,
	"fall": -1.4, "falls": -1.4, "fell": -1.4, "drop": -1.4, "drops": -1.4,
	"dropped": -1.4, "slump": -2.1, "slumps": -2.1, "tumble": -2.0,
	"tumbles": -2.0, "decline": -1.5, "declines": -1.5, "declined": -1.5,
	"loss": -2.0, "losses": -2.0, "downgrade": -2.0, "downgraded": -2.0,
	"downgrades": -2.0, "underperform": -1.8, "bearish": -2.1, "weak": -1.9,
	"weaker": -1.9, "weakness": -1.8, "cut": -1.1, "cuts": -1.1,
	"lawsuit": -2.2, "sued": -2.2, "sues": -1.8, "fraud": -3.0,
	"investigation": -1.2, "probe": -1.3, "recall": -1.8, "recalls": -1.8,
	"bankruptcy": -3.1, "bankrupt": -3.1, "default": -2.2, "layoffs": -2.2,
	"layoff": -2.2, "warning": -1.6, "warns": -1.6, "crash": -3.0,
	"crashes": -3.0, "crisis": -3.1, "fined": -2.0, "penalty": -1.9,
	"delay": -1.2, "delayed": -1.2, "delays": -1.2, "halt": -1.5,
	"halted": -1.5, "halts": -1.5, "scandal": -2.9, "risk": -1.1,
	"concern": -1.4, "concerns": -1.4, "fears": -1.9, "fear": -1.9,
	"sell-off": -2.0, "selloff": -2.0, "volatile": -1.0, "lower": -0.8,
	"negative": -2.7, "bad": -2.5, "poor": -2.1, "fail": -2.5, "fails": -2.5,
	"failed": -2.3, "failure": -2.5, "disappointing": -2.2,
	"disappoints": -2.0, "worst": -3.1, "slashes": -1.8, "slash": -1.8,
	"sinks": -1.9, "sink": -1.9, "resigns": -1.2, "breach": -2.0,
}

var boosters = map[string]float64{
	"very": boosterIncr, "highly": boosterIncr, "sharply": boosterIncr,
	"significantly": boosterIncr, "substantially": boosterIncr,
	"extremely": boosterIncr, "massive": boosterIncr, "huge": boosterIncr,
	"major": boosterIncr, "record-breaking": boosterIncr,
	"slightly": -boosterIncr, "marginally": -boosterIncr,
	"somewhat": -boosterIncr, "modest": -boosterIncr, "modestly": -boosterIncr,
	"barely": -boosterIncr,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "without": true, "nor": true,
	"neither": true, "isn't": true, "wasn't": true, "aren't": true,
	"didn't": true, "doesn't": true, "don't": true, "won't": true,
	"can't": true, "cannot": true, "hasn't": true, "haven't": true,
}

// LexiconClassifier is an offline, rule-based classifier that scores
// headlines against a finance lexicon with negation and intensifier
// handling.
type LexiconClassifier struct{}

// NewLexiconClassifier creates a LexiconClassifier.
func NewLexiconClassifier() *LexiconClassifier { return &LexiconClassifier{} }

// Score classifies rec using its title (weighted twice) and summary.
func (c *LexiconClassifier) Score(_ context.Context, rec model.NewsRecord) (Score, error) {
	text := rec.Title + ". " + rec.Title + ". " + rec.Summary
	compound, hits := Compound(text)

	var s Score
	switch {
	case compound >= positiveCutoff:
		s.Sentiment = model.SentimentPositive
		s.Confidence = math.Min(maxConfidence, 0.5+math.Abs(compound)/2)
	case compound <= negativeCutoff:
		s.Sentiment = model.SentimentNegative
		s.Confidence = math.Min(maxConfidence, 0.5+math.Abs(compound)/2)
	default:
		s.Sentiment = model.SentimentNeutral
		s.Confidence = neutralConfidence
	}

	s.Reasoning = fmt.Sprintf("lexicon compound score: %.2f", compound)
	s.KeyFactors = hits
	switch s.Sentiment {
	case model.SentimentPositive:
		s.MarketImpact = "Potential market impact"
		s.ActionRecommendation = "Review for opportunity"
	case model.SentimentNegative:
		s.MarketImpact = "Potential market impact"
		s.ActionRecommendation = "Monitor closely"
	default:
		s.MarketImpact = "Minimal market impact"
		s.ActionRecommendation = "No action needed"
	}
	if math.Abs(compound) > 0.5 {
		s.TimeHorizon = "short-term"
	} else {
		s.TimeHorizon = "medium-term"
	}
	return s, nil
}

// Compound returns the normalized compound valence of text in [-1,1] and the
// distinct lexicon words that contributed to it.
func Compound(text string) (float64, []string) {
	tokens := tokenize(text)

	valences := make([]float64, len(tokens))
	var hits []string
	seen := make(map[string]bool)
	for i, tok := range tokens {
		v, ok := financeLexicon[tok]
		if !ok {
			continue
		}
		if !seen[tok] {
			seen[tok] = true
			hits = append(hits, tok)
		}

		for j := 1; j <= 3 && i-j >= 0; j++ {
			prev := tokens[i-j]
			if b, ok := boosters[prev]; ok {
				scalar := b * (1 - 0.05*float64(j-1))
				if v < 0 {
					scalar = -scalar
				}
				v += scalar
			}
		}
		for j := 1; j <= 3 && i-j >= 0; j++ {
			if negations[tokens[i-j]] || strings.HasSuffix(tokens[i-j], "n't") {
				v *= negationScalar
				break
			}
		}
		valences[i] = v
	}

	// Clauses after "but" dominate the ones before it.
	for i, tok := range tokens {
		if tok != "but" {
			continue
		}
		for j := range valences {
			switch {
			case j < i:
				valences[j] *= 0.5
			case j > i:
				valences[j] *= 1.5
			}
		}
		break
	}

	var sum float64
	for _, v := range valences {
		sum += v
	}

	if sum != 0 {
		bangs := min(strings.Count(text, "!"), 4)
		emphasis := float64(bangs) * exclaimBoost
		if sum > 0 {
			sum += emphasis
		} else {
			sum -= emphasis
		}
	}

	compound := sum / math.Sqrt(sum*sum+normAlpha)
	return math.Max(-1, math.Min(1, compound)), hits
}

// tokenize lowercases text and splits it into words, trimming surrounding
// punctuation but keeping inner hyphens and apostrophes.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		f = strings.ReplaceAll(f, "’", "'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
