// Package validation decides whether an order may be committed.
package validation

import (
	"go.uber.org/zap"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/rounding"
)

type Reason string

const (
	ROUNDING_VIOLATION_R    Reason = "rounding_violation"
	EMPTY_ORDER_R           Reason = "empty_order"
	PENDING_ELECTRONIC_R    Reason = "pending_electronic_payment"
	SPLIT_WITHOUT_PARTNER_R Reason = "split_transaction_without_partner"
	PARTNER_REQUIRED_R      Reason = "partner_required"
	INCOMPLETE_ADDRESS_R    Reason = "incomplete_address"
	NO_PAYMENT_LINES_R      Reason = "no_payment_lines"
	NOT_PAID_R              Reason = "not_paid"
	INCORRECT_ROUNDING_R    Reason = "incorrect_rounding"
	NO_CASH_FOR_CHANGE_R    Reason = "no_cash_for_change"
	LARGE_AMOUNT_R          Reason = "large_amount"
	INVALID_ORDER_R         Reason = "invalid_order"
)

// Outcome of the validation. A failed outcome without message nor prompt
// blocks silently.
type Outcome struct {
	Eligible bool
	Reason   Reason

	Title string
	Body  string
	// Notice is a non-modal message.
	Notice bool
	// Prompt asks the cashier to confirm a follow-up action.
	Prompt *checkout.Prompt

	Line      *checkout.PaymentLine
	Violation *rounding.Violation
}

func Pass() Outcome {
	return Outcome{Eligible: true}
}

func (o Outcome) Silent() bool {
	return !o.Eligible && o.Title == "" && o.Body == "" && o.Prompt == nil
}

// Request is the input of the rules. The order is read only.
type Request struct {
	Order *checkout.Order
	// PaymentMethods configured on the point of sale.
	PaymentMethods []*checkout.PaymentMethod
	Force          bool
}

type Rule interface {
	Name() string
	Check(req *Request) Outcome
}

type rule struct {
	name  string
	check func(req *Request) Outcome
}

func (r rule) Name() string               { return r.name }
func (r rule) Check(req *Request) Outcome { return r.check(req) }

// NewRule returns a rule from a function.
func NewRule(name string, check func(req *Request) Outcome) Rule {
	return rule{name: name, check: check}
}

// Engine folds the ordered rules, the first failure wins.
type Engine struct {
	rules []Rule
	l     *zap.Logger
}

func New(rules ...Rule) *Engine {
	return &Engine{
		rules: rules,
		l:     zap.L().Named("validation"),
	}
}

// Default returns the engine with the rules of the payment screen.
func Default() *Engine {
	return New(DefaultRules()...)
}

func (e *Engine) Validate(req *Request) Outcome {
	for _, r := range e.rules {
		out := r.Check(req)
		if out.Eligible {
			continue
		}
		e.l.Debug("Order not eligible.",
			zap.String("order_uid", req.Order.UID),
			zap.String("rule", r.Name()),
			zap.String("reason", string(out.Reason)),
		)
		return out
	}
	return Pass()
}
