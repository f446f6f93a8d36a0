package gateway

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/provider"
)

// SendPaymentRequest registers the payment and polls the gateway until the
// card is approved or the payment fails.
func (p *Provider) SendPaymentRequest(ctx context.Context, req checkout.TerminalRequest) error {
	orderID, err := p.register(ctx, req)
	if err != nil {
		return err
	}
	err = p.ops.Start(ctx, &provider.TerminalOperation{
		LineID:    req.LineID,
		OrderUID:  req.OrderUID,
		Provider:  provider.GATEWAY,
		ExtID:     orderID,
		RawStatus: CREATED,
	})
	if err != nil {
		return errors.Wrap(err, "Failed insert gateway operation")
	}
	p.l.Debug("Payment registered.",
		zap.String("line_id", req.LineID),
		zap.String("ext_order_id", orderID),
	)
	return p.waitResult(ctx, req, orderID)
}

func (p *Provider) waitResult(ctx context.Context, req checkout.TerminalRequest, orderID string) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	var deadline <-chan time.Time
	if p.cfg.Timeout > 0 {
		timer := time.NewTimer(p.cfg.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	last := CREATED
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return errors.Errorf("payment %s is not completed in %s", orderID, p.cfg.Timeout)
		case <-ticker.C:
		}

		status, err := p.currentStatus(ctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.l.Warn("Failed poll payment status.",
				zap.String("ext_order_id", orderID),
				zap.Error(err),
			)
			continue
		}
		if status == last {
			continue
		}
		last = status

		switch status {
		case APPROVED:
			return nil
		case DECLINED, CANCELLED, REVERSED:
			return errors.Errorf("payment %s", strings.ToLower(status))
		case WAITING_CARD:
			p.report(ctx, req, checkout.WAITING_CARD_PS)
		case TIMEOUT:
			p.report(ctx, req, checkout.TIMEOUT_PS)
		}
	}
}

func (p *Provider) report(ctx context.Context, req checkout.TerminalRequest, status checkout.PaymentStatus) {
	if p.hook == nil {
		return
	}
	p.hook(ctx, req.OrderUID, req.LineID, status)
}

// SendPaymentCancel aborts the payment pending on the terminal.
func (p *Provider) SendPaymentCancel(ctx context.Context, orderUID, lineID string) error {
	op, err := p.operation(ctx, lineID)
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Add("orderId", op.ExtID)
	if _, err := p.call(ctx, "cancel.do", q); err != nil {
		return errors.Wrap(err, "Failed cancel payment")
	}
	if _, err := p.ops.SetStatus(ctx, provider.GATEWAY, op.ExtID, CANCELLED); err != nil {
		return err
	}
	return nil
}

// SendPaymentReversal returns an approved payment to the card.
func (p *Provider) SendPaymentReversal(ctx context.Context, req checkout.TerminalRequest) error {
	op, err := p.operation(ctx, req.LineID)
	if err != nil {
		return err
	}
	if op.RawStatus != APPROVED {
		return errors.Errorf("payment %s is %s, not approved", op.ExtID, op.RawStatus)
	}
	q := url.Values{}
	q.Add("orderId", op.ExtID)
	q.Add("amount", strconv.FormatInt(toMinor(req.Amount), 10))
	if _, err := p.call(ctx, "reverse.do", q); err != nil {
		return errors.Wrap(err, "Failed reverse payment")
	}
	if _, err := p.ops.SetStatus(ctx, provider.GATEWAY, op.ExtID, REVERSED); err != nil {
		return err
	}
	return nil
}

func (p *Provider) SupportsReversals() bool {
	return p.cfg.Reversals
}

var _ checkout.PaymentTerminal = (*Provider)(nil)
