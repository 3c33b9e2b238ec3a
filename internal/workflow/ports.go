package workflow

import (
	"context"
	"time"
)

// Notifier delivers operator-facing alerts for fatal failures. Delivery is
// an external collaborator; internal/notify provides a log-backed default.
type Notifier interface {
	NotifyFatal(ctx context.Context, orderID string, err error)
}

// Clock returns the current time; injected so expiration and paid
// timestamps are testable.
type Clock func() time.Time
