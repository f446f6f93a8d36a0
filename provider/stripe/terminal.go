package stripe

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/provider"
)

// SendPaymentRequest creates a payment intent, hands it to the reader and
// waits until the card is charged or the payment fails.
func (p *Provider) SendPaymentRequest(ctx context.Context, req checkout.TerminalRequest) error {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(toMinor(req.Amount, req.Currency)),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: []*string{stripe.String("card_present")},
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
	}
	params.Context = ctx
	params.AddMetadata("order_uid", req.OrderUID)
	params.AddMetadata("line_id", req.LineID)
	pi, err := p.sc.PaymentIntents.New(params)
	if err != nil {
		p.l.Warn(
			"Failed payment intent in stripe.",
			zap.String("line_id", req.LineID),
			zap.Error(err),
		)
		return errors.Wrap(err, "Failed payment intent")
	}
	err = p.ops.Start(ctx, &provider.TerminalOperation{
		LineID:    req.LineID,
		OrderUID:  req.OrderUID,
		Provider:  provider.STRIPE,
		ExtID:     pi.ID,
		RawStatus: string(pi.Status),
	})
	if err != nil {
		return errors.Wrap(err, "Failed insert stripe payment intent")
	}

	processParams := &stripe.TerminalReaderProcessPaymentIntentParams{
		PaymentIntent: stripe.String(pi.ID),
	}
	processParams.Context = ctx
	if _, err := p.sc.TerminalReaders.ProcessPaymentIntent(p.cfg.ReaderID, processParams); err != nil {
		p.l.Warn(
			"Failed process payment intent on reader.",
			zap.String("reader_id", p.cfg.ReaderID),
			zap.String("payment_intent_id", pi.ID),
			zap.Error(err),
		)
		return errors.Wrap(err, "Failed process payment intent")
	}
	p.report(ctx, req, checkout.WAITING_CARD_PS)
	return p.waitResult(ctx, req, pi.ID)
}

func (p *Provider) waitResult(ctx context.Context, req checkout.TerminalRequest, piID string) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	var cardTimeout <-chan time.Time
	if p.cfg.CardTimeout > 0 {
		timer := time.NewTimer(p.cfg.CardTimeout)
		defer timer.Stop()
		cardTimeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cardTimeout:
			cardTimeout = nil
			p.report(ctx, req, checkout.TIMEOUT_PS)
			continue
		case <-ticker.C:
		}

		status, declined, err := p.currentStatus(ctx, piID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.l.Warn("Failed poll payment intent.",
				zap.String("payment_intent_id", piID),
				zap.Error(err),
			)
			continue
		}
		switch {
		case status == string(stripe.PaymentIntentStatusSucceeded):
			return nil
		case status == string(stripe.PaymentIntentStatusCanceled), status == REFUNDED:
			return errors.Errorf("payment intent %s", status)
		case declined != "":
			return errors.Errorf("card declined: %s", declined)
		}
	}
}

// currentStatus prefers a final status delivered by the webhook and asks Stripe otherwise.
// declined is the decline message of the last payment attempt.
func (p *Provider) currentStatus(ctx context.Context, piID string) (status, declined string, err error) {
	op, err := p.ops.GetByExtID(ctx, provider.STRIPE, piID)
	if err != nil {
		return "", "", err
	}
	if final(op.RawStatus) {
		return op.RawStatus, "", nil
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.sc.PaymentIntents.Get(piID, params)
	if err != nil {
		return "", "", errors.Wrap(err, "Failed get payment intent")
	}
	if _, err := p.ops.SetStatus(ctx, provider.STRIPE, piID, string(pi.Status)); err != nil {
		return "", "", err
	}
	if pi.Status == stripe.PaymentIntentStatusRequiresPaymentMethod && pi.LastPaymentError != nil {
		declined = pi.LastPaymentError.Msg
		if declined == "" {
			declined = string(pi.LastPaymentError.Code)
		}
	}
	return string(pi.Status), declined, nil
}

func (p *Provider) report(ctx context.Context, req checkout.TerminalRequest, status checkout.PaymentStatus) {
	if p.hook == nil {
		return
	}
	p.hook(ctx, req.OrderUID, req.LineID, status)
}

// SendPaymentCancel clears the reader and cancels the payment intent.
func (p *Provider) SendPaymentCancel(ctx context.Context, orderUID, lineID string) error {
	op, err := p.ops.GetByLineID(ctx, provider.STRIPE, lineID)
	if err != nil {
		return errors.Wrapf(err, "line %s", lineID)
	}
	actionParams := &stripe.TerminalReaderCancelActionParams{}
	actionParams.Context = ctx
	if _, err := p.sc.TerminalReaders.CancelAction(p.cfg.ReaderID, actionParams); err != nil {
		// the reader may have no action anymore, the intent cancel decides
		p.l.Warn(
			"Failed cancel reader action.",
			zap.String("reader_id", p.cfg.ReaderID),
			zap.Error(err),
		)
	}
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	pi, err := p.sc.PaymentIntents.Cancel(op.ExtID, params)
	if err != nil {
		return errors.Wrap(err, "Failed cancel payment intent")
	}
	if _, err := p.ops.SetStatus(ctx, provider.STRIPE, op.ExtID, string(pi.Status)); err != nil {
		return err
	}
	return nil
}

// SendPaymentReversal refunds a succeeded payment intent.
func (p *Provider) SendPaymentReversal(ctx context.Context, req checkout.TerminalRequest) error {
	op, err := p.ops.GetByLineID(ctx, provider.STRIPE, req.LineID)
	if err != nil {
		return errors.Wrapf(err, "line %s", req.LineID)
	}
	if op.RawStatus != string(stripe.PaymentIntentStatusSucceeded) {
		return errors.Errorf("payment intent %s is %s, not succeeded", op.ExtID, op.RawStatus)
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(op.ExtID),
		Amount:        stripe.Int64(toMinor(req.Amount, req.Currency)),
	}
	params.Context = ctx
	if _, err := p.sc.Refunds.New(params); err != nil {
		p.l.Warn(
			"Failed refund payment intent in stripe.",
			zap.String("payment_intent_id", op.ExtID),
			zap.Error(err),
		)
		return errors.Wrap(err, "Failed refund")
	}
	if _, err := p.ops.SetStatus(ctx, provider.STRIPE, op.ExtID, REFUNDED); err != nil {
		return err
	}
	return nil
}

func (p *Provider) SupportsReversals() bool {
	return true
}

var _ checkout.PaymentTerminal = (*Provider)(nil)
