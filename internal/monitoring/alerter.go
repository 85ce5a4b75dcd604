package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/scanlock/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertUndecidedRate AlertType = "undecided_rate"
	AlertEmergencyRate AlertType = "emergency_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// minSessionsForAlert avoids rate alerts firing off a handful of sessions.
const minSessionsForAlert = 5

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.SessionsTotal >= minSessionsForAlert && snap.UndecidedRate > a.cfg.UndecidedRateAlert {
		alerts = append(alerts, Alert{
			Type:     AlertUndecidedRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Undecided session rate %.1f%% exceeds threshold %.1f%% (%d of %d sessions in last %dh)",
				snap.UndecidedRate*100, a.cfg.UndecidedRateAlert*100,
				snap.SessionsTotal-snap.SessionsDecided, snap.SessionsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"undecided_rate": snap.UndecidedRate,
				"threshold":      a.cfg.UndecidedRateAlert,
				"sessions":       snap.SessionsTotal,
			},
			Timestamp: now,
		})
	}

	if snap.DecisionsTotal >= minSessionsForAlert && snap.EmergencyRate > a.cfg.EmergencyRateAlert {
		alerts = append(alerts, Alert{
			Type:     AlertEmergencyRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Emergency decision rate %.1f%% exceeds threshold %.1f%% (%d of %d decisions in last %dh)",
				snap.EmergencyRate*100, a.cfg.EmergencyRateAlert*100,
				snap.ByEmergency, snap.DecisionsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"emergency_rate": snap.EmergencyRate,
				"threshold":      a.cfg.EmergencyRateAlert,
				"decisions":      snap.DecisionsTotal,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
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

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
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
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
