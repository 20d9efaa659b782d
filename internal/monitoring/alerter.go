package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/config"
	"github.com/sells-group/newswatch/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStageFailureRate AlertType = "stage_failure_rate"
	AlertDegradedTickers  AlertType = "degraded_tickers"
	AlertNoScans          AlertType = "no_scans"
)

// minStagesForRate is the number of stage executions needed before the
// failure rate is judged.
const minStagesForRate = 5

// Alert represents a single health alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  resilience.DefaultRetryConfig(),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.StagesRun >= minStagesForRate && snap.StageFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertStageFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Stage failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d run in last %dh)",
				snap.StageFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.StagesFailed, snap.StagesRun, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.StageFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"by_stage":     snap.StageFailures,
			},
			Timestamp: now,
		})
	}

	if len(snap.DegradedTickers) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertDegradedTickers,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Every scan in last %dh was degraded for: %s",
				snap.LookbackHours, strings.Join(snap.DegradedTickers, ", "),
			),
			Details: map[string]any{
				"tickers": snap.DegradedTickers,
			},
			Timestamp: now,
		})
	}

	if snap.ScanTotal == 0 {
		alerts = append(alerts, Alert{
			Type:      AlertNoScans,
			Severity:  "medium",
			Message:   fmt.Sprintf("No scans recorded in last %dh", snap.LookbackHours),
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL, retrying
// transient failures. Returns the number of alerts delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		retry := a.retry
		retry.OnRetry = resilience.RetryLogger("monitoring", string(alert.Type))
		err := resilience.Do(ctx, retry, func(ctx context.Context) error {
			return a.post(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

type webhookEnvelope struct {
	Service string `json:"service"`
	Alert
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(webhookEnvelope{Service: "newswatch", Alert: alert})
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "monitoring: webhook request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resilience.StatusError("monitoring: webhook", resp.StatusCode, string(body))
	}
	return nil
}
