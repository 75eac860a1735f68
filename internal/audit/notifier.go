package audit

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Notifier posts a one-line summary of selected audit events to a Slack
// incoming webhook. It is a narrow, optional integration — grounded on the
// teacher's pkg/slack.Notifier provider pattern, but webhook-based rather
// than bot-token-based since there is no interactive Slack app here, just a
// demo-mode notification sink.
type Notifier struct {
	webhookURL string
	logger     *slog.Logger
}

// NewNotifier creates a Notifier. If webhookURL is empty, Notify is a noop.
func NewNotifier(webhookURL string, logger *slog.Logger) *Notifier {
	return &Notifier{webhookURL: webhookURL, logger: logger}
}

// IsEnabled reports whether a webhook URL is configured.
func (n *Notifier) IsEnabled() bool {
	return n.webhookURL != ""
}

// Notify posts a summary line for entry to the configured webhook. Errors
// are logged only; Writer.Log runs it on its own goroutine.
func (n *Notifier) Notify(ctx context.Context, entry Entry) {
	if !n.IsEnabled() {
		return
	}

	text := fmt.Sprintf(":lock: *%s* on %s/%s (tenant `%s`, actor `%s`)",
		entry.EventType, entry.ResourceType, entry.ResourceID, entry.TenantID, entry.Actor)

	msg := &goslack.WebhookMessage{Text: text}
	if err := goslack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		n.logger.Warn("posting slack audit notification", "error", err, "event_type", entry.EventType)
	}
}
