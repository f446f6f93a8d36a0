package stripe

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/gebv/checkout/provider"
)

const maxBodyBytes = int64(65536)

// WebhookHandler stores payment intent statuses pushed by Stripe,
// a running payment request picks them up on its next poll.
func (p *Provider) WebhookHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		if p == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Stripe terminal is not configured.")
		}
		c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBodyBytes)
		payload, err := io.ReadAll(c.Request().Body)
		if err != nil {
			p.l.Warn("Error reading request body", zap.Error(err))
			return c.NoContent(http.StatusServiceUnavailable)
		}

		event, err := webhook.ConstructEventWithOptions(payload, c.Request().Header.Get("Stripe-Signature"),
			p.cfg.WebhookSecret, webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			p.l.Warn("Error verifying webhook signature", zap.Error(err))
			return c.NoContent(http.StatusBadRequest)
		}

		switch event.Type {
		case "payment_intent.succeeded", "payment_intent.canceled", "payment_intent.payment_failed":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				p.l.Warn("Error parsing webhook JSON", zap.String("event_id", event.ID), zap.Error(err))
				return c.NoContent(http.StatusBadRequest)
			}
			ctx := c.Request().Context()
			if _, err := p.ops.SetStatus(ctx, provider.STRIPE, pi.ID, string(pi.Status)); err != nil {
				if err == provider.ErrOperationNotFound {
					// intents created outside the checkout
					return c.NoContent(http.StatusOK)
				}
				p.l.Warn(
					"Failed save payment intent status.",
					zap.String("payment_intent_id", pi.ID),
					zap.Error(err),
				)
				return err
			}
			p.l.Debug("StripeWebhook",
				zap.String("event_type", string(event.Type)),
				zap.String("payment_intent_id", pi.ID),
				zap.String("status", string(pi.Status)),
			)
		default:
			p.l.Debug("Unexpected event type", zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID))
		}
		return c.NoContent(http.StatusOK)
	}
}
