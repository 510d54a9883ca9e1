// Package notifier provides abstraction for sending security alerts.
// It defines the Notifier interface which allows different alerting
// mechanisms (Slack, Discord webhooks) to be used interchangeably through
// dependency injection, plus a no-op implementation for when alerting is
// disabled.
package notifier

import (
	"context"
	"time"
)

// Notifier is an interface for sending lockout alerts.
// Implementations should handle rate limiting and error logging internally
// and must never block the request path beyond their configured timeout.
type Notifier interface {
	// NotifyLockout reports that a derived client identity crossed its
	// failure threshold and was locked out.
	NotifyLockout(ctx context.Context, tier string, failedCount int, lockedUntil time.Time) error
}
