package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/resilience"
)

// webhookPayload is the JSON body posted for each alert.
type webhookPayload struct {
	ID         string          `json:"id"`
	Ticker     string          `json:"ticker"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Sentiment  model.Sentiment `json:"sentiment"`
	Confidence float64         `json:"confidence"`
	SourceID   string          `json:"source_id"`
	Source     string          `json:"source"`
	URL        string          `json:"url"`
	Published  time.Time       `json:"published"`
	SentAt     time.Time       `json:"sent_at"`
}

// WebhookSink posts alerts as JSON to a generic HTTP endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
	newID  func() string
}

// NewWebhookSink creates a WebhookSink for the given endpoint.
func NewWebhookSink(endpoint string, timeout time.Duration) (*WebhookSink, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, eris.Errorf("notify: invalid webhook url %q", endpoint)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    endpoint,
		client: &http.Client{Timeout: timeout},
		newID:  func() string { return uuid.NewString() },
	}, nil
}

// Create posts the alert. The returned reference is the receiver's "url" or
// "id" field when it sends one back, else "webhook:<request id>".
func (s *WebhookSink) Create(ctx context.Context, rec model.NewsRecord) (string, error) {
	id := s.newID()
	payload, err := json.Marshal(webhookPayload{
		ID:         id,
		Ticker:     rec.Ticker,
		Title:      IssueTitle(rec),
		Body:       IssueBody(rec),
		Sentiment:  rec.Sentiment,
		Confidence: rec.Confidence,
		SourceID:   rec.SourceID,
		Source:     rec.Source,
		URL:        rec.URL,
		Published:  rec.Published,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		return "", eris.Wrap(err, "notify: marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", rec.SourceID)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= 300 {
		return "", resilience.StatusError("notify: webhook", resp.StatusCode, string(body))
	}

	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		for _, key := range []string{"html_url", "url", "id"} {
			if v := res.Get(key).String(); v != "" {
				return v, nil
			}
		}
	}
	return "webhook:" + id, nil
}
