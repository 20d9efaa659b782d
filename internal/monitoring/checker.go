package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/newswatch/internal/config"
)

// Checker runs periodic health checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	mu       sync.Mutex
	lastSent map[AlertType]time.Time
	now      func() time.Time
}

// resendAfter is how long an alert type stays quiet after delivery while the
// condition persists.
const resendAfter = time.Hour

// NewChecker creates a background health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		lastSent:  make(map[AlertType]time.Time),
		now:       time.Now,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects and evaluates once, returning the alerts raised. Alerts of
// a type delivered within the last hour are not sent again.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(snap)
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(alerts) == 0 {
		clear(c.lastSent)
		log.Debug("monitoring: no alerts triggered")
		return nil
	}

	now := c.now()
	raised := make(map[AlertType]bool, len(alerts))
	var due []Alert
	for _, a := range alerts {
		raised[a.Type] = true
		if last, ok := c.lastSent[a.Type]; ok && now.Sub(last) < resendAfter {
			continue
		}
		due = append(due, a)
	}
	for t := range c.lastSent {
		if !raised[t] {
			delete(c.lastSent, t)
		}
	}

	sent := 0
	if len(due) > 0 {
		sent = c.alerter.SendAlerts(ctx, due)
		if sent == len(due) {
			for _, a := range due {
				c.lastSent[a.Type] = now
			}
		}
	}

	log.Info("monitoring: health check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_due", len(due)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
