package orderpay

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/zakuro-ec/orderpay/internal/domain/payment"
	"github.com/zakuro-ec/orderpay/internal/metrics"
	"github.com/zakuro-ec/orderpay/internal/notify"
	"github.com/zakuro-ec/orderpay/internal/store"
	"github.com/zakuro-ec/orderpay/internal/workflow"
)

// Config carries every dependency of the workflow. Store and Gateway are
// required; the rest falls back to sane defaults.
type Config struct {
	// Store is the document-store client (store/mongo in production,
	// store/memory in tests).
	Store store.Store

	// Gateway is the payment provider (gateway/stripe in production).
	Gateway payment.Gateway

	// Notifier receives operator-facing alerts on fatal failures.
	// Defaults to a log-backed notifier.
	Notifier workflow.Notifier

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Registerer enables Prometheus instruments when set.
	Registerer prometheus.Registerer

	// RetryThreshold is the number of consecutive transient failures
	// tolerated before an order fails permanently. Defaults to
	// workflow.DefaultRetryThreshold.
	RetryThreshold int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New validates the configuration and builds the workflow runner.
func New(cfg Config) (*workflow.Runner, error) {
	if cfg.Store == nil {
		return nil, errors.New("orderpay: Config.Store is required")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("orderpay: Config.Gateway is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	var m *metrics.Metrics
	if cfg.Registerer != nil {
		m = metrics.New(cfg.Registerer)
	}

	return workflow.NewRunner(
		cfg.Store,
		cfg.Gateway,
		notifier,
		m,
		logger,
		cfg.Now,
		cfg.RetryThreshold,
	), nil
}
