// Package notify defines the local alerting collaborator. Calls are
// fire-and-forget; nothing in the core relies on a return value from the
// presentation layer.
package notify

import (
	"context"
	"time"

	"github.com/mkraev/venuetrace/internal/logging"
)

// Notifier is the surface the core raises user-facing alerts through.
type Notifier interface {
	// ShowExposureAlert tells the user about count newly detected exposures.
	ShowExposureAlert(ctx context.Context, count int)

	// ScheduleCheckoutReminder arms a reminder to fire at the given time.
	ScheduleCheckoutReminder(ctx context.Context, at time.Time)

	// CancelCheckoutReminder disarms any pending reminder.
	CancelCheckoutReminder(ctx context.Context)
}

// LogNotifier writes alerts to the structured log. It stands in for the
// platform notification surface in the agent and in tests.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) ShowExposureAlert(ctx context.Context, count int) {
	n.log.Warn(ctx, "exposure alert", "new_exposures", count)
}

func (n *LogNotifier) ScheduleCheckoutReminder(ctx context.Context, at time.Time) {
	n.log.Info(ctx, "checkout reminder scheduled", "at", at)
}

func (n *LogNotifier) CancelCheckoutReminder(ctx context.Context) {
	n.log.Info(ctx, "checkout reminder cancelled")
}
