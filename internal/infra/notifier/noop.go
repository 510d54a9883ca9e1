package notifier

import (
	"context"
	"time"
)

// NoopNotifier discards all alerts. Used when no webhook is configured.
type NoopNotifier struct{}

// NewNoopNotifier creates a notifier that does nothing.
func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

// NotifyLockout discards the alert.
func (n *NoopNotifier) NotifyLockout(context.Context, string, int, time.Time) error {
	return nil
}
