// Package orderpay processes an e-commerce order's payment when its status
// transitions to payment-requested: it validates the order, reserves
// inventory atomically, charges the payment provider exactly once and
// durably records the outcome on the order document.
//
// The package is a library. A thin document-change trigger owns the
// invocation wiring and calls Runner.Process with the previous and current
// order snapshots; orderpay.New builds the Runner from an injected document
// store and payment gateway:
//
//	runner, err := orderpay.New(orderpay.Config{
//		Store:   mongoStore,
//		Gateway: stripeGateway,
//		Logger:  logger,
//	})
//	...
//	err = runner.Process(ctx, prevOrder, currOrder)
//
// Duplicate invocations, partial failures and infrastructure retries are
// tolerated without double-charging or double-decrementing stock: stock
// adjustments run in one serializable store transaction, a per-order
// completion marker rejects concurrent duplicate runs, and the gateway call
// is keyed by an idempotency token derived from the order identity.
package orderpay
