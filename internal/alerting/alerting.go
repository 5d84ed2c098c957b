// Package alerting posts data-quality alerts to a Slack, Discord or generic
// webhook.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/config"
)

// Alerter sends alerts to the configured webhook.
type Alerter struct {
	cfg    config.AlertConfig
	client *http.Client
	log    *zap.Logger
}

// New creates an alerter. When cfg.WebhookType is empty it is guessed from
// the URL.
func New(cfg config.AlertConfig, log *zap.Logger) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.WebhookType == "" {
		switch {
		case strings.Contains(cfg.WebhookURL, "slack.com"):
			cfg.WebhookType = "slack"
		case strings.Contains(cfg.WebhookURL, "discord.com"):
			cfg.WebhookType = "discord"
		default:
			cfg.WebhookType = "generic"
		}
	}
	if cfg.MinFailures < 1 {
		cfg.MinFailures = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Alerter{cfg: cfg, client: &http.Client{Timeout: timeout}, log: log.Named("alerting")}
}

// Enabled reports whether a webhook is configured.
func (a *Alerter) Enabled() bool { return a.cfg.WebhookURL != "" }

// BuildAlert reports rows a job had to drop.
type BuildAlert struct {
	Job        string
	Candidates int
	Dropped    int
	Duration   time.Duration
	Failures   []Failure
	Timestamp  time.Time
}

// Failure names one dropped item and why.
type Failure struct {
	Subject string `json:"subject"`
	Error   string `json:"error"`
}

// maxListed caps the failures spelled out in chat messages.
const maxListed = 10

// SendBuildAlert posts alert unless alerting is disabled or fewer than
// MinFailures rows were dropped.
func (a *Alerter) SendBuildAlert(ctx context.Context, alert BuildAlert) error {
	if !a.Enabled() {
		a.log.Debug("alerts disabled, skipping")
		return nil
	}
	if alert.Dropped < a.cfg.MinFailures {
		a.log.Debug("failures below threshold, skipping",
			zap.Int("dropped", alert.Dropped), zap.Int("min_failures", a.cfg.MinFailures))
		return nil
	}

	var payload []byte
	var err error
	switch a.cfg.WebhookType {
	case "slack":
		payload, err = slackPayload(alert)
	case "discord":
		payload, err = discordPayload(alert)
	default:
		payload, err = genericPayload(alert)
	}
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	a.log.Info("alert sent", zap.String("job", alert.Job), zap.Int("dropped", alert.Dropped))
	return nil
}

func failureList(alert BuildAlert, bullet string) string {
	var b strings.Builder
	for i, f := range alert.Failures {
		if i == maxListed {
			fmt.Fprintf(&b, "… and %d more\n", len(alert.Failures)-maxListed)
			break
		}
		fmt.Fprintf(&b, "• %s%s%s: %s\n", bullet, f.Subject, bullet, f.Error)
	}
	return b.String()
}

func slackPayload(alert BuildAlert) ([]byte, error) {
	emoji := ":warning:"
	if alert.Dropped == alert.Candidates {
		emoji = ":x:"
	}
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Data alert: %s", emoji, alert.Job),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Dropped:*\n%d/%d rows", alert.Dropped, alert.Candidates)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": "*Dropped rows:*\n" + failureList(alert, "*"),
				},
			},
		},
	}
	return json.Marshal(payload)
}

func discordPayload(alert BuildAlert) ([]byte, error) {
	color := 16776960 // yellow
	if alert.Dropped == alert.Candidates {
		color = 16711680 // red
	}
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Data alert: %s", alert.Job),
				"description": fmt.Sprintf("%d/%d rows dropped", alert.Dropped, alert.Candidates),
				"color":       color,
				"fields": []map[string]interface{}{
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Dropped rows", "value": failureList(alert, "**"), "inline": false},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}
	return json.Marshal(payload)
}

func genericPayload(alert BuildAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"alert_type":  "rows_dropped",
		"job_name":    alert.Job,
		"candidates":  alert.Candidates,
		"dropped":     alert.Dropped,
		"duration_ms": alert.Duration.Milliseconds(),
		"timestamp":   alert.Timestamp.Format(time.RFC3339),
		"failures":    alert.Failures,
	}
	return json.Marshal(payload)
}
