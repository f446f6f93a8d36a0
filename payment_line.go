package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the state of a payment line against its terminal.
type PaymentStatus string

func (s PaymentStatus) Match(in PaymentStatus) bool {
	return s == in
}

func (s PaymentStatus) String() string {
	return string(s)
}

const (
	OPEN_PS           PaymentStatus = "open"
	WAITING_PS        PaymentStatus = "waiting"
	WAITING_CARD_PS   PaymentStatus = "waitingCard"
	TIMEOUT_PS        PaymentStatus = "timeout"
	WAITING_CANCEL_PS PaymentStatus = "waitingCancel"
	RETRY_PS          PaymentStatus = "retry"
	DONE_PS           PaymentStatus = "done"
	REVERSING_PS      PaymentStatus = "reversing"
	REVERSED_PS       PaymentStatus = "reversed"
)

// PaymentStatuses is the closed set of payment statuses.
var PaymentStatuses = []PaymentStatus{
	OPEN_PS,
	WAITING_PS,
	WAITING_CARD_PS,
	TIMEOUT_PS,
	WAITING_CANCEL_PS,
	RETRY_PS,
	DONE_PS,
	REVERSING_PS,
	REVERSED_PS,
}

func (s PaymentStatus) Valid() bool {
	for _, st := range PaymentStatuses {
		if st.Match(s) {
			return true
		}
	}
	return false
}

// PaymentLine is one payment attempt of an order.
// Status is changed only through the transition chart of the engine.
type PaymentLine struct {
	ID            string
	OrderUID      string
	Method        *PaymentMethod
	Amount        decimal.Decimal
	Status        PaymentStatus
	CanBeReversed bool
}

func newPaymentLine(orderUID string, m *PaymentMethod) *PaymentLine {
	return &PaymentLine{
		ID:       uuid.NewString(),
		OrderUID: orderUID,
		Method:   m,
		Amount:   decimal.Zero,
		Status:   OPEN_PS,
	}
}

func (l *PaymentLine) HasTerminal() bool {
	return l.Method.HasTerminal()
}

// IsDone reports whether the line counts as paid.
// Manual lines are always done.
func (l *PaymentLine) IsDone() bool {
	if !l.HasTerminal() {
		return true
	}
	return l.Status.Match(DONE_PS) || l.Status.Match(REVERSED_PS)
}

// InProgress reports whether the terminal still owns the line.
func (l *PaymentLine) InProgress() bool {
	return l.HasTerminal() && !l.IsDone()
}

// AmountEditable reports whether the cashier may change the amount.
func (l *PaymentLine) AmountEditable() bool {
	return !l.HasTerminal() || l.Status.Match(OPEN_PS) || l.Status.Match(RETRY_PS)
}

// EditAmount sets the amount when the line allows it.
func (l *PaymentLine) EditAmount(amount decimal.Decimal) bool {
	if !l.AmountEditable() {
		return false
	}
	l.Amount = amount
	return true
}

func (l *PaymentLine) PaymentAmount() decimal.Decimal {
	return l.Amount
}

func (l *PaymentLine) CashCounted() bool {
	return l.Method != nil && l.Method.IsCashCount
}
