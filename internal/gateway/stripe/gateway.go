// Package stripe implements the payment gateway port on the Stripe API.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"github.com/zakuro-ec/orderpay/internal/apperr"
	"github.com/zakuro-ec/orderpay/internal/domain/payment"
	"github.com/zakuro-ec/orderpay/internal/pkg/logging"
)

const stepName = "createStripeCharge"

// Gateway charges stored payment methods through PaymentIntents. Every
// request carries the caller's idempotency key, so Stripe deduplicates
// retried network calls on its side.
type Gateway struct {
	api *client.API
}

// New builds a Gateway with its own API client; the secret key is the only
// credential.
func New(secretKey string) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{api: api}
}

// NewWithClient injects a preconfigured API client (tests, custom backends).
func NewWithClient(api *client.API) *Gateway {
	return &Gateway{api: api}
}

var _ payment.Gateway = (*Gateway)(nil)

func (g *Gateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "stripe_gateway"))

	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.CustomerRef),
		PaymentMethod: stripe.String(req.PaymentMethodRef),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.AddMetadata("orderID", req.OrderID)
	params.SetIdempotencyKey(req.IdempotencyKey)

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		logger.Warn("stripe_charge_failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, translate(err)
	}

	chargeID := intent.ID
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		chargeID = intent.LatestCharge.ID
	}
	logger.Info("stripe_charge_created",
		zap.String("order_id", req.OrderID),
		zap.String("charge_id", chargeID),
	)
	return &payment.Charge{ID: chargeID}, nil
}

// translate maps Stripe's error categories onto the workflow taxonomy:
// user-fixable card and request problems are BadRequest, transient
// connection problems are Retry, and everything operator-shaped (rate
// limit, auth, unknown) is Fatal.
func translate(err error) error {
	var sErr *stripe.Error
	if !errors.As(err, &sErr) {
		// No structured Stripe error: the request may never have reached
		// the API, which is the one safely retryable shape.
		return apperr.Retry(stepName, err)
	}

	switch {
	case sErr.Code == stripe.ErrorCodeExpiredCard:
		return apperr.BadRequest(stepName, apperr.ReasonStripeCardExpired, sErr.Msg)
	case sErr.Type == stripe.ErrorTypeCard:
		return apperr.BadRequest(stepName, apperr.ReasonStripeCardDeclined, sErr.Msg)
	case sErr.Type == stripe.ErrorTypeInvalidRequest:
		return apperr.BadRequest(stepName, apperr.ReasonStripeCardDeclined,
			fmt.Sprintf("invalid charge request: %s", sErr.Msg))
	case sErr.HTTPStatusCode == http.StatusTooManyRequests:
		return apperr.Fatal(stepName, fmt.Errorf("stripe rate limited: %w", sErr))
	case sErr.HTTPStatusCode == http.StatusUnauthorized:
		return apperr.Fatal(stepName, fmt.Errorf("stripe authentication failed: %w", sErr))
	case sErr.Type == stripe.ErrorTypeAPI && sErr.HTTPStatusCode >= http.StatusInternalServerError:
		return apperr.Retry(stepName, fmt.Errorf("stripe api error: %w", sErr))
	default:
		return apperr.Fatal(stepName, fmt.Errorf("unclassified stripe error: %w", sErr))
	}
}
