package engine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
)

// Notifier is told about every status change of a payment line.
// It is called with the order locked.
type Notifier interface {
	PaymentLineUpdated(ctx context.Context, o *checkout.Order, line *checkout.PaymentLine)
}

// PaymentLines drives payment lines through their terminals.
//
// Every method locks the order while mutating it and releases the lock for
// the duration of the terminal call.
type PaymentLines struct {
	n Notifier
	l *zap.Logger
}

func NewPaymentLines(n Notifier) *PaymentLines {
	return &PaymentLines{
		n: n,
		l: zap.L().Named("payment_lines"),
	}
}

func (m *PaymentLines) transition(ctx context.Context, o *checkout.Order, line *checkout.PaymentLine, ev PaymentEvent) error {
	from := line.Status
	if err := Transition(line, ev); err != nil {
		return err
	}
	m.l.Debug("Payment line status changed.",
		zap.String("order_uid", o.UID),
		zap.String("line_id", line.ID),
		zap.Stringer("from", from),
		zap.Stringer("to", line.Status),
	)
	if m.n != nil {
		m.n.PaymentLineUpdated(ctx, o, line)
	}
	return nil
}

func (m *PaymentLines) find(o *checkout.Order, lineID string) (*checkout.PaymentLine, error) {
	if o.Finalized {
		return nil, checkout.ErrOrderFinalized
	}
	return o.FindPaymentLine(lineID)
}

func (m *PaymentLines) findWithTerminal(o *checkout.Order, lineID string) (*checkout.PaymentLine, checkout.PaymentTerminal, error) {
	line, err := m.find(o, lineID)
	if err != nil {
		return nil, nil, err
	}
	term, ok := line.Method.Terminal()
	if !ok {
		return nil, nil, checkout.ErrNoTerminal
	}
	return line, term, nil
}

func terminalRequest(o *checkout.Order, line *checkout.PaymentLine) checkout.TerminalRequest {
	return checkout.TerminalRequest{
		OrderUID: o.UID,
		LineID:   line.ID,
		Amount:   line.Amount,
		Currency: o.Currency.Name,
	}
}

// SendPaymentRequest sends the line amount to its terminal.
// Returns true when the order is paid with zero due afterwards and may be
// validated automatically. A declined payment is not an error: the line
// goes to retry.
func (m *PaymentLines) SendPaymentRequest(ctx context.Context, o *checkout.Order, lineID string) (bool, error) {
	o.Lock()
	line, term, err := m.findWithTerminal(o, lineID)
	if err != nil {
		o.Unlock()
		return false, err
	}
	if !paymentStatusTransitionChart.Allowed(line.Status, REQUEST_EV) {
		o.Unlock()
		return false, errors.Wrapf(checkout.ErrNotAllowedTransition, "request from %s", line.Status)
	}
	// earlier payments can not be reversed anymore
	for _, l := range o.PaymentLines {
		l.CanBeReversed = false
	}
	if err := m.transition(ctx, o, line, REQUEST_EV); err != nil {
		o.Unlock()
		return false, err
	}
	req := terminalRequest(o, line)
	o.Unlock()

	termErr := term.SendPaymentRequest(ctx, req)
	observeTerminalOperation("request", termErr)

	o.Lock()
	defer o.Unlock()
	if termErr != nil {
		m.l.Warn("Failed payment request.",
			zap.String("order_uid", req.OrderUID),
			zap.String("line_id", req.LineID),
			zap.Error(termErr),
		)
		// cancelled or forced done meanwhile, the line is settled
		if line.Status.Match(checkout.RETRY_PS) || line.Status.Match(checkout.DONE_PS) {
			return false, nil
		}
		return false, m.transition(ctx, o, line, REQUEST_FAILED_EV)
	}
	// the terminal may have reported the result already
	if !line.Status.Match(checkout.DONE_PS) {
		if err := m.transition(ctx, o, line, REQUEST_SUCCEEDED_EV); err != nil {
			return false, err
		}
	}
	line.CanBeReversed = term.SupportsReversals()
	return o.IsPaid() && o.Currency.IsZero(o.Due()), nil
}

// SendPaymentCancel asks the terminal to abort a pending payment.
// Cancelling a line already waiting for a cancel is a no-op.
func (m *PaymentLines) SendPaymentCancel(ctx context.Context, o *checkout.Order, lineID string) (bool, error) {
	o.Lock()
	line, term, err := m.findWithTerminal(o, lineID)
	if err != nil {
		o.Unlock()
		return false, err
	}
	if line.Status.Match(checkout.WAITING_CANCEL_PS) {
		o.Unlock()
		return false, nil
	}
	if err := m.transition(ctx, o, line, CANCEL_EV); err != nil {
		o.Unlock()
		return false, err
	}
	orderUID := o.UID
	o.Unlock()

	termErr := term.SendPaymentCancel(ctx, orderUID, lineID)
	observeTerminalOperation("cancel", termErr)

	o.Lock()
	defer o.Unlock()
	if !line.Status.Match(checkout.WAITING_CANCEL_PS) {
		m.l.Warn("Payment line resolved while cancelling.",
			zap.String("order_uid", orderUID),
			zap.String("line_id", lineID),
			zap.Stringer("status", line.Status),
			zap.NamedError("cancel_error", termErr),
		)
		return false, nil
	}
	if termErr != nil {
		m.l.Warn("Failed payment cancel.",
			zap.String("order_uid", orderUID),
			zap.String("line_id", lineID),
			zap.Error(termErr),
		)
		return false, m.transition(ctx, o, line, CANCEL_FAILED_EV)
	}
	return true, m.transition(ctx, o, line, CANCEL_SUCCEEDED_EV)
}

// DeletePaymentLine removes the line from the order. A line pending on its
// terminal is cancelled first and removed only when the cancel succeeded.
func (m *PaymentLines) DeletePaymentLine(ctx context.Context, o *checkout.Order, lineID string) (bool, error) {
	o.Lock()
	line, err := m.find(o, lineID)
	if err != nil {
		o.Unlock()
		return false, err
	}
	switch line.Status {
	case checkout.WAITING_CANCEL_PS:
		o.Unlock()
		return false, nil
	case checkout.WAITING_PS, checkout.WAITING_CARD_PS, checkout.TIMEOUT_PS:
		o.Unlock()
		cancelled, err := m.SendPaymentCancel(ctx, o, lineID)
		if err != nil || !cancelled {
			return false, err
		}
		o.Lock()
	}
	defer o.Unlock()
	return o.RemovePaymentLine(line), nil
}

// SendPaymentReversal refunds a done payment. On success the line amount is zero.
func (m *PaymentLines) SendPaymentReversal(ctx context.Context, o *checkout.Order, lineID string) (bool, error) {
	o.Lock()
	line, term, err := m.findWithTerminal(o, lineID)
	if err != nil {
		o.Unlock()
		return false, err
	}
	if !line.CanBeReversed {
		o.Unlock()
		return false, errors.Wrap(checkout.ErrNotAllowedTransition, "payment can not be reversed")
	}
	if err := m.transition(ctx, o, line, REVERSE_EV); err != nil {
		o.Unlock()
		return false, err
	}
	req := terminalRequest(o, line)
	o.Unlock()

	termErr := term.SendPaymentReversal(ctx, req)
	observeTerminalOperation("reversal", termErr)

	o.Lock()
	defer o.Unlock()
	if termErr != nil {
		m.l.Warn("Failed payment reversal.",
			zap.String("order_uid", req.OrderUID),
			zap.String("line_id", req.LineID),
			zap.Error(termErr),
		)
		if err := m.transition(ctx, o, line, REVERSE_FAILED_EV); err != nil {
			return false, err
		}
		line.CanBeReversed = false
		return false, nil
	}
	if !paymentStatusTransitionChart.Allowed(line.Status, REVERSE_SUCCEEDED_EV) {
		return false, errors.Wrapf(checkout.ErrNotAllowedTransition, "reversal from %s", line.Status)
	}
	line.Amount = decimal.Zero
	return true, m.transition(ctx, o, line, REVERSE_SUCCEEDED_EV)
}

// SendForceDone marks the line as paid whatever the terminal says.
func (m *PaymentLines) SendForceDone(ctx context.Context, o *checkout.Order, lineID string) error {
	o.Lock()
	defer o.Unlock()
	line, err := m.find(o, lineID)
	if err != nil {
		return err
	}
	return m.transition(ctx, o, line, FORCE_DONE_EV)
}

var terminalStatusEvents = map[checkout.PaymentStatus]PaymentEvent{
	checkout.WAITING_CARD_PS: CARD_WAITING_EV,
	checkout.TIMEOUT_PS:      TIMED_OUT_EV,
	checkout.DONE_PS:         REQUEST_SUCCEEDED_EV,
	checkout.RETRY_PS:        REQUEST_FAILED_EV,
}

// ApplyTerminalStatus applies an intermediate status reported by the terminal
// while a request is in flight.
func (m *PaymentLines) ApplyTerminalStatus(ctx context.Context, o *checkout.Order, lineID string, status checkout.PaymentStatus) error {
	ev, ok := terminalStatusEvents[status]
	if !ok {
		return errors.Wrapf(checkout.ErrNotAllowedTransition, "terminal reported %s", status)
	}
	o.Lock()
	defer o.Unlock()
	line, err := m.find(o, lineID)
	if err != nil {
		return err
	}
	if line.Status.Match(status) {
		return nil
	}
	return m.transition(ctx, o, line, ev)
}
