// Package notify provides the default operator-notification sink. Real
// delivery (chat alerts) is an external collaborator; hosts plug their own
// workflow.Notifier when they have one.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes fatal alerts to the structured log, where the
// operator-facing alerting pipeline picks them up.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyFatal(_ context.Context, orderID string, err error) {
	n.logger.Error("operator_alert",
		zap.String("order_id", orderID),
		zap.Error(err),
	)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) NotifyFatal(context.Context, string, error) {}
