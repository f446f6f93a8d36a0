// Package screen coordinates the payment screen of one order.
package screen

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/engine"
	"github.com/gebv/checkout/engine/finalize"
	"github.com/gebv/checkout/engine/validation"
)

type Deps struct {
	UI         checkout.UI
	Lines      *engine.PaymentLines
	Validator  *validation.Engine
	Pipeline   *finalize.Pipeline
	CashDrawer checkout.CashDrawer
}

// Controller turns the cashier actions into payment line and order changes.
type Controller struct {
	order   *checkout.Order
	methods []*checkout.PaymentMethod
	d       Deps
	sem     *semaphore.Weighted
	l       *zap.Logger
}

// New starts a payment screen session for the order.
// The invoicing error flag of the pipeline is cleared.
func New(order *checkout.Order, methods []*checkout.PaymentMethod, d Deps) *Controller {
	if d.Lines == nil {
		d.Lines = engine.NewPaymentLines(nil)
	}
	if d.Validator == nil {
		d.Validator = validation.Default()
	}
	if d.Pipeline != nil {
		d.Pipeline.ResetPersistentError()
	}
	return &Controller{
		order:   order,
		methods: methods,
		d:       d,
		sem:     semaphore.NewWeighted(1),
		l:       zap.L().Named("payment_screen").With(zap.String("order_uid", order.UID)),
	}
}

func (c *Controller) Order() *checkout.Order {
	return c.order
}

// NumberBuffer limits the input of the numeric pad.
type NumberBuffer struct {
	MaxValue *decimal.Decimal
}

// NumberBufferConfig caps the input to the due amount when there is no cash
// method to give change.
func (c *Controller) NumberBufferConfig() NumberBuffer {
	for _, m := range c.methods {
		if m.IsCashCount {
			return NumberBuffer{}
		}
	}
	c.order.Lock()
	due := c.order.Due()
	c.order.Unlock()
	return NumberBuffer{MaxValue: &due}
}

func (c *Controller) ShowMaxValueError() {
	c.d.UI.ShowError("Maximum value reached",
		"The amount cannot be higher than the due amount if you don't have a cash payment method configured.")
}

// blocked is an error to show once the order is unlocked.
type blocked struct {
	title string
	body  string
}

func (c *Controller) roundingError() *blocked {
	_, v := c.order.CheckPaymentLinesRounding()
	if v == nil {
		return nil
	}
	return &blocked{title: "Rounding error in payment lines", body: v.Message(c.order.Currency.DecimalPlaces)}
}

// AddNewPaymentLine adds a line for the method unless the rounding of the
// existing lines is wrong or an electronic payment is in progress.
func (c *Controller) AddNewPaymentLine(ctx context.Context, m *checkout.PaymentMethod) (*checkout.PaymentLine, error) {
	c.order.Lock()
	line, b, err := c.addPaymentLine(m)
	c.order.Unlock()
	return c.afterAdd(line, b, err)
}

// addPaymentLine is called with the order locked.
func (c *Controller) addPaymentLine(m *checkout.PaymentMethod) (*checkout.PaymentLine, *blocked, error) {
	if b := c.roundingError(); b != nil {
		return nil, b, nil
	}
	line, err := c.order.AddPaymentLine(m)
	if errors.Cause(err) == checkout.ErrElectronicPaymentInProgress {
		return nil, &blocked{title: "Error", body: "There is already an electronic payment in progress."}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return line, nil, nil
}

// afterAdd talks to the UI about the added line, the order must be unlocked.
func (c *Controller) afterAdd(line *checkout.PaymentLine, b *blocked, err error) (*checkout.PaymentLine, error) {
	if err != nil {
		return nil, err
	}
	if b != nil {
		c.d.UI.ShowError(b.title, b.body)
		return nil, nil
	}
	c.d.UI.ResetNumberBuffer()
	return line, nil
}

// UpdateSelectedPaymentLine applies the numeric buffer to the selected line.
// A nil value deletes the line.
func (c *Controller) UpdateSelectedPaymentLine(ctx context.Context, value *decimal.Decimal) error {
	c.order.Lock()
	if len(c.order.PaymentLines) == 0 && len(c.methods) > 0 {
		added, b, err := c.addPaymentLine(c.methods[0])
		if err != nil || b != nil {
			c.order.Unlock()
			_, err = c.afterAdd(added, b, err)
			return err
		}
		c.order.Unlock()
		c.d.UI.ResetNumberBuffer()
		c.order.Lock()
	}
	line := c.order.SelectedPaymentLine()
	if line == nil || !line.AmountEditable() {
		c.order.Unlock()
		return nil
	}
	if value != nil {
		line.EditAmount(*value)
		c.order.Unlock()
		return nil
	}
	c.order.Unlock()
	return c.DeletePaymentLine(ctx, line.ID)
}

func (c *Controller) SelectPaymentLine(lineID string) error {
	c.order.Lock()
	line, err := c.order.FindPaymentLine(lineID)
	if err == nil {
		c.order.SelectPaymentLine(line)
	}
	c.order.Unlock()
	if err != nil {
		return err
	}
	c.d.UI.ResetNumberBuffer()
	return nil
}

func (c *Controller) DeletePaymentLine(ctx context.Context, lineID string) error {
	removed, err := c.d.Lines.DeletePaymentLine(ctx, c.order, lineID)
	if err != nil {
		return err
	}
	if removed {
		c.d.UI.ResetNumberBuffer()
	}
	return nil
}

// SendPaymentRequest pays the line on its terminal and validates the order
// when nothing is left to pay.
func (c *Controller) SendPaymentRequest(ctx context.Context, lineID string) error {
	auto, err := c.d.Lines.SendPaymentRequest(ctx, c.order, lineID)
	if err != nil {
		return err
	}
	if !auto {
		return nil
	}
	c.l.Debug("Order paid by terminal, validate.")
	_, err = c.ValidateOrder(ctx, false)
	return err
}

func (c *Controller) SendPaymentCancel(ctx context.Context, lineID string) error {
	_, err := c.d.Lines.SendPaymentCancel(ctx, c.order, lineID)
	return err
}

func (c *Controller) SendPaymentReverse(ctx context.Context, lineID string) error {
	_, err := c.d.Lines.SendPaymentReversal(ctx, c.order, lineID)
	return err
}

func (c *Controller) SendForceDone(ctx context.Context, lineID string) error {
	return c.d.Lines.SendForceDone(ctx, c.order, lineID)
}

// ApplyTerminalStatus is the status hook of the terminals.
func (c *Controller) ApplyTerminalStatus(ctx context.Context, lineID string, status checkout.PaymentStatus) error {
	return c.d.Lines.ApplyTerminalStatus(ctx, c.order, lineID, status)
}

func (c *Controller) ToggleIsToInvoice() {
	c.order.Lock()
	defer c.order.Unlock()
	c.order.ToInvoice = !c.order.ToInvoice
}

func (c *Controller) ToggleIsToShip() {
	c.order.Lock()
	defer c.order.Unlock()
	c.order.ToShip = !c.order.ToShip
}

func (c *Controller) OpenCashbox(ctx context.Context) error {
	if c.d.CashDrawer == nil {
		return nil
	}
	return errors.Wrap(c.d.CashDrawer.Open(ctx), "Failed open cash drawer")
}

// AddTip asks for the tip, starting from the change when there is no tip yet.
func (c *Controller) AddTip(ctx context.Context) error {
	c.order.Lock()
	tip, change := c.order.Tip, c.order.Change()
	c.order.Unlock()

	start, title := tip, "Change Tip"
	if tip.IsZero() {
		title = "Add Tip"
		if change.IsPositive() {
			start = change
		}
	}
	value, ok, err := c.d.UI.AskNumber(ctx, title, start)
	if err != nil || !ok {
		return err
	}

	c.order.Lock()
	defer c.order.Unlock()
	c.order.Tip = value
	return nil
}

func (c *Controller) SelectPartner(ctx context.Context) error {
	c.order.Lock()
	current := c.order.Partner
	c.order.Unlock()

	partner, ok, err := c.d.UI.SelectPartner(ctx, current)
	if err != nil || !ok {
		return err
	}

	c.order.Lock()
	defer c.order.Unlock()
	c.order.Partner = partner
	return nil
}

// Validation is the result of ValidateOrder. Finalized is nil when the order
// was not eligible.
type Validation struct {
	Outcome   validation.Outcome
	Finalized *finalize.Result
}

// ValidateOrder checks the order and finalizes it when eligible.
// A call while another validation is running returns ErrValidationInProgress.
func (c *Controller) ValidateOrder(ctx context.Context, force bool) (*Validation, error) {
	if !c.sem.TryAcquire(1) {
		return nil, checkout.ErrValidationInProgress
	}
	res, retry, err := c.validateOrder(ctx, force)
	c.sem.Release(1)
	if retry {
		return c.ValidateOrder(ctx, true)
	}
	return res, err
}

func (c *Controller) validateOrder(ctx context.Context, force bool) (*Validation, bool, error) {
	c.order.Lock()
	if c.order.Finalized {
		c.order.Unlock()
		return nil, false, checkout.ErrOrderFinalized
	}
	out := c.d.Validator.Validate(&validation.Request{
		Order:          c.order,
		PaymentMethods: c.methods,
		Force:          force,
	})
	c.order.Unlock()

	if !out.Eligible {
		retry, err := c.handleOutcome(ctx, out)
		return &Validation{Outcome: out}, retry, err
	}

	res, err := c.d.Pipeline.Finalize(ctx, c.order)
	return &Validation{Outcome: out, Finalized: res}, false, err
}

// handleOutcome shows the outcome. Returns true when the validation must be
// run again with force.
func (c *Controller) handleOutcome(ctx context.Context, out validation.Outcome) (bool, error) {
	switch {
	case out.Prompt != nil:
		ok, err := c.d.UI.Confirm(ctx, *out.Prompt)
		if err != nil || !ok {
			return false, err
		}
		switch out.Prompt.Kind {
		case checkout.SELECT_PARTNER_PROMPT:
			return false, c.SelectPartner(ctx)
		case checkout.FORCE_VALIDATE_PROMPT:
			return true, nil
		}
	case out.Notice:
		c.d.UI.ShowNotification(out.Body)
	case out.Title != "" || out.Body != "":
		c.d.UI.ShowError(out.Title, out.Body)
	}
	return false, nil
}
