package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookConfig contains configuration for a webhook notifier.
type WebhookConfig struct {
	// WebhookURL is the incoming-webhook URL (includes its auth token).
	WebhookURL string

	// Timeout is the HTTP request timeout for webhook calls.
	Timeout time.Duration
}

// webhookSender posts JSON payloads to a webhook endpoint with a token
// bucket in front. Slack and Discord notifiers share it and differ only in
// payload shape.
type webhookSender struct {
	config      WebhookConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	logger      *slog.Logger
	service     string
}

func newWebhookSender(service string, config WebhookConfig, logger *slog.Logger) *webhookSender {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &webhookSender{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(0.2, 3), // one alert per 5s, burst of 3
		logger:      logger,
		service:     service,
	}
}

// post sends one payload, dropping it silently when the token bucket is
// exhausted.
func (s *webhookSender) post(ctx context.Context, payload any) error {
	if !s.rateLimiter.Allow() {
		s.logger.Debug("lockout alert suppressed by rate limiter",
			slog.String("service", s.service))
		return nil
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s webhook returned %d: %s", s.service, resp.StatusCode, string(body))
}

// SlackNotifier sends lockout alerts to Slack via Incoming Webhook.
type SlackNotifier struct {
	sender *webhookSender
}

// NewSlackNotifier creates a new SlackNotifier with the specified configuration.
func NewSlackNotifier(config WebhookConfig, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{sender: newWebhookSender("slack", config, logger)}
}

// NotifyLockout posts a lockout alert message.
func (s *SlackNotifier) NotifyLockout(ctx context.Context, tier string, failedCount int, lockedUntil time.Time) error {
	text := fmt.Sprintf(":lock: sync admin lockout: identity tier `%s` locked after %d failed attempts, until %s",
		tier, failedCount, lockedUntil.UTC().Format(time.RFC3339))
	return s.sender.post(ctx, map[string]string{"text": text})
}

// DiscordNotifier sends lockout alerts to Discord via webhook.
type DiscordNotifier struct {
	sender *webhookSender
}

// NewDiscordNotifier creates a new DiscordNotifier with the specified configuration.
func NewDiscordNotifier(config WebhookConfig, logger *slog.Logger) *DiscordNotifier {
	return &DiscordNotifier{sender: newWebhookSender("discord", config, logger)}
}

// NotifyLockout posts a lockout alert message.
func (d *DiscordNotifier) NotifyLockout(ctx context.Context, tier string, failedCount int, lockedUntil time.Time) error {
	content := fmt.Sprintf("🔒 sync admin lockout: identity tier `%s` locked after %d failed attempts, until %s",
		tier, failedCount, lockedUntil.UTC().Format(time.RFC3339))
	return d.sender.post(ctx, map[string]string{"content": content})
}

// FromEnv builds the configured notifier chain: Slack and/or Discord when
// their webhook URLs are set, otherwise a noop.
func FromEnv(slackURL, discordURL string, logger *slog.Logger) Notifier {
	var notifiers []Notifier
	if slackURL != "" {
		notifiers = append(notifiers, NewSlackNotifier(WebhookConfig{WebhookURL: slackURL}, logger))
	}
	if discordURL != "" {
		notifiers = append(notifiers, NewDiscordNotifier(WebhookConfig{WebhookURL: discordURL}, logger))
	}
	switch len(notifiers) {
	case 0:
		return NewNoopNotifier()
	case 1:
		return notifiers[0]
	default:
		return multiNotifier(notifiers)
	}
}

// multiNotifier fans an alert out to several sinks, returning the first error.
type multiNotifier []Notifier

// NotifyLockout sends the alert to every configured sink.
func (m multiNotifier) NotifyLockout(ctx context.Context, tier string, failedCount int, lockedUntil time.Time) error {
	var firstErr error
	for _, n := range m {
		if err := n.NotifyLockout(ctx, tier, failedCount, lockedUntil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
