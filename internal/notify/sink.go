// Package notify delivers alerts for significant news to an external issue
// tracker.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newswatch/internal/config"
	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/resilience"
)

// ErrSinkDisabled is returned by the sink used when no provider is configured.
// Alerts stay pending and are retried by a later run once a sink is set up.
var ErrSinkDisabled = eris.New("notify: alert sink disabled")

// IssueSink creates one tracker issue per significant record and returns a
// reference to it (usually a URL).
type IssueSink interface {
	Create(ctx context.Context, rec model.NewsRecord) (string, error)
}

// Disabled is an IssueSink that always fails with ErrSinkDisabled.
type Disabled struct{}

func (Disabled) Create(context.Context, model.NewsRecord) (string, error) {
	return "", ErrSinkDisabled
}

// New builds the sink selected by cfg.Sink.Provider, wrapped with retry and
// a circuit breaker. GitHub issue creation has no idempotency key, so it gets
// a single attempt; a failed alert stays pending for the next scan.
func New(ctx context.Context, cfg *config.Config) (IssueSink, error) {
	var sink IssueSink
	retry := resilience.FromRetryConfig(cfg.Retry)
	switch cfg.Sink.Provider {
	case "", "none":
		return Disabled{}, nil
	case "github":
		gh, err := NewGitHubSink(ctx, GitHubOptions{
			Token:      cfg.GitHub.Token,
			Repository: cfg.GitHub.Repository,
			Labels:     cfg.GitHub.Labels,
			BaseURL:    cfg.GitHub.BaseURL,
			Timeout:    cfg.Sink.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		sink = gh
		retry.MaxAttempts = 1
	case "webhook":
		wh, err := NewWebhookSink(cfg.Webhook.URL, cfg.Sink.Timeout())
		if err != nil {
			return nil, err
		}
		sink = wh
	default:
		return nil, eris.Errorf("notify: unknown sink provider %q", cfg.Sink.Provider)
	}

	return NewGuarded(sink, GuardOptions{
		Name:    cfg.Sink.Provider,
		Timeout: cfg.Sink.Timeout(),
		Retry:   retry,
		Breaker: resilience.FromCircuitConfig(cfg.Circuit),
	}), nil
}

// IssueTitle is the tracker title for rec, matching the stored alert title.
func IssueTitle(rec model.NewsRecord) string {
	return model.AlertTitle(rec)
}

// IssueBody renders the markdown body of an alert issue.
func IssueBody(rec model.NewsRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s news for %s\n\n", titleCase(string(rec.Sentiment)), rec.Ticker)
	fmt.Fprintf(&b, "**Headline:** %s\n\n", rec.Title)
	if rec.Summary != "" && rec.Summary != rec.Title {
		fmt.Fprintf(&b, "**Summary:** %s\n\n", rec.Summary)
	}
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Source | %s |\n", rec.Source)
	if !rec.Published.IsZero() {
		fmt.Fprintf(&b, "| Published | %s |\n", rec.Published.UTC().Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "| Sentiment | %s |\n", rec.Sentiment)
	fmt.Fprintf(&b, "| Confidence | %.2f |\n", rec.Confidence)
	if rec.TimeHorizon != "" {
		fmt.Fprintf(&b, "| Time horizon | %s |\n", rec.TimeHorizon)
	}
	if rec.MarketImpact != "" {
		fmt.Fprintf(&b, "| Market impact | %s |\n", rec.MarketImpact)
	}
	if rec.ActionRecommendation != "" {
		fmt.Fprintf(&b, "| Recommendation | %s |\n", rec.ActionRecommendation)
	}
	if rec.Reasoning != "" {
		fmt.Fprintf(&b, "\n**Reasoning:** %s\n", rec.Reasoning)
	}
	if len(rec.KeyFactors) > 0 {
		b.WriteString("\n**Key factors:**\n")
		for _, f := range rec.KeyFactors {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if rec.URL != "" {
		fmt.Fprintf(&b, "\n[Read the article](%s)\n", rec.URL)
	}
	fmt.Fprintf(&b, "\n<sub>source_id: %s</sub>\n", rec.SourceID)
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
