// Package notify provides a notification dispatcher that routes events to configured adapters.
package notify

import (
	"fmt"

	"go.uber.org/zap"
)

// Event names.
const (
	EventEncoded       = "transform.encoded"
	EventDecoded       = "transform.decoded"
	EventScheduleFired = "schedule.fired"
	EventHistoryPruned = "history.pruned"
)

// Sender can send a plain text message.
type Sender interface {
	Send(msg string) error
}

// WebhookFirer can fire a webhook event.
type WebhookFirer interface {
	Fire(event string, payload interface{})
}

// Dispatcher routes notification events to Telegram and webhooks.
type Dispatcher struct {
	log      *zap.Logger
	telegram Sender
	webhook  WebhookFirer
}

// New creates a Dispatcher. Both telegram and webhook may be nil (disabled).
func New(log *zap.Logger, telegram Sender, webhook WebhookFirer) *Dispatcher {
	return &Dispatcher{log: log.Named("notify"), telegram: telegram, webhook: webhook}
}

// Send dispatches an event to webhooks only. Transform traffic is too
// chatty for the admin chat.
func (d *Dispatcher) Send(event string, payload interface{}) {
	if d == nil || d.webhook == nil {
		return
	}
	d.webhook.Fire(event, payload)
}

// Announce dispatches an event to webhooks and a summary to Telegram.
func (d *Dispatcher) Announce(event string, payload interface{}) {
	if d == nil {
		return
	}
	d.SendTelegram(formatEvent(event, payload))
	d.Send(event, payload)
}

// SendTelegram sends a message only via Telegram.
func (d *Dispatcher) SendTelegram(msg string) {
	if d == nil || d.telegram == nil {
		return
	}
	if err := d.telegram.Send(msg); err != nil {
		d.log.Warn("telegram send", zap.Error(err))
	}
}

func formatEvent(event string, payload interface{}) string {
	if s, ok := payload.(fmt.Stringer); ok {
		return fmt.Sprintf("[%s] %s", event, s.String())
	}
	return fmt.Sprintf("[%s] %v", event, payload)
}
