package checkout

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gebv/checkout/rounding"
)

type Currency struct {
	Name          string          `json:"name" yaml:"name"`
	Rounding      decimal.Decimal `json:"rounding" yaml:"rounding"`
	DecimalPlaces int32           `json:"decimal_places" yaml:"decimal_places"`
}

// IsZero reports whether amount is zero within the currency precision.
func (c Currency) IsZero(amount decimal.Decimal) bool {
	return rounding.Round(amount, c.Rounding).IsZero()
}

func (c Currency) Format(amount decimal.Decimal) string {
	if c.Name == "" {
		return amount.StringFixed(c.DecimalPlaces)
	}
	return amount.StringFixed(c.DecimalPlaces) + " " + c.Name
}

type Partner struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Street    string `json:"street"`
	City      string `json:"city"`
	CountryID int64  `json:"country_id"`
}

// HasShippingAddress reports whether the partner can receive a shipment.
func (p *Partner) HasShippingAddress() bool {
	return p != nil && p.Name != "" && p.Street != "" && p.City != "" && p.CountryID != 0
}

type OrderLine struct {
	ProductID    int64
	Name         string
	Quantity     decimal.Decimal
	PriceWithTax decimal.Decimal
}

func (l *OrderLine) SubtotalWithTax() decimal.Decimal {
	return l.PriceWithTax.Mul(l.Quantity)
}

// Order is a sale being paid.
//
// The order is not safe for concurrent use: callers hold Lock while mutating
// it and release it across terminal and backend calls.
type Order struct {
	mu sync.Mutex

	UID              string
	Name             string
	CreatedAt        time.Time
	Lines            []*OrderLine
	PaymentLines     []*PaymentLine
	Partner          *Partner
	ToInvoice        bool
	ToShip           bool
	WaitForPushOrder bool
	Finalized        bool
	ValidationDate   time.Time
	Tip              decimal.Decimal
	Currency         Currency
	CashRounding     rounding.Config

	selected *PaymentLine
}

func NewOrder(name string, cur Currency, cashRounding rounding.Config) *Order {
	return &Order{
		UID:          uuid.NewString(),
		Name:         name,
		CreatedAt:    time.Now(),
		Tip:          decimal.Zero,
		Currency:     cur,
		CashRounding: cashRounding,
	}
}

func (o *Order) Lock()   { o.mu.Lock() }
func (o *Order) Unlock() { o.mu.Unlock() }

func (o *Order) AddOrderLine(productID int64, name string, qty, priceWithTax decimal.Decimal) *OrderLine {
	l := &OrderLine{ProductID: productID, Name: name, Quantity: qty, PriceWithTax: priceWithTax}
	o.Lines = append(o.Lines, l)
	return l
}

// AddPaymentLine appends a line for the method with the current due as amount
// and selects it.
func (o *Order) AddPaymentLine(m *PaymentMethod) (*PaymentLine, error) {
	if o.Finalized {
		return nil, ErrOrderFinalized
	}
	if o.ElectronicPaymentInProgress() {
		return nil, ErrElectronicPaymentInProgress
	}
	l := newPaymentLine(o.UID, m)
	o.PaymentLines = append(o.PaymentLines, l)
	o.selected = l
	l.Amount = o.Due()
	return l, nil
}

// RemovePaymentLine removes the line from the order. Returns false when the
// line does not belong to the order.
func (o *Order) RemovePaymentLine(line *PaymentLine) bool {
	for i, l := range o.PaymentLines {
		if l != line {
			continue
		}
		o.PaymentLines = append(o.PaymentLines[:i:i], o.PaymentLines[i+1:]...)
		if o.selected == line {
			o.selected = nil
		}
		return true
	}
	return false
}

func (o *Order) FindPaymentLine(id string) (*PaymentLine, error) {
	for _, l := range o.PaymentLines {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, ErrPaymentLineNotFound
}

func (o *Order) SelectPaymentLine(line *PaymentLine) {
	o.selected = line
}

func (o *Order) SelectedPaymentLine() *PaymentLine {
	return o.selected
}

// TotalWithTax is the sum of the order lines plus the tip.
func (o *Order) TotalWithTax() decimal.Decimal {
	total := o.Tip
	for _, l := range o.Lines {
		total = total.Add(l.SubtotalWithTax())
	}
	return rounding.Round(total, o.Currency.Rounding)
}

// TotalPaid is the sum of the done payment lines.
func (o *Order) TotalPaid() decimal.Decimal {
	paid := decimal.Zero
	for _, l := range o.PaymentLines {
		if l.IsDone() {
			paid = paid.Add(l.Amount)
		}
	}
	return rounding.Round(paid, o.Currency.Rounding)
}

func (o *Order) RoundingApplied() decimal.Decimal {
	lastCash := false
	if n := len(o.PaymentLines); n > 0 {
		lastCash = o.PaymentLines[n-1].CashCounted()
	}
	return rounding.Applied(o.TotalWithTax(), o.TotalPaid(), lastCash, o.CashRounding)
}

func (o *Order) Due() decimal.Decimal {
	return rounding.Round(o.TotalWithTax().Sub(o.TotalPaid()).Add(o.RoundingApplied()), o.Currency.Rounding)
}

func (o *Order) Change() decimal.Decimal {
	change := o.Due().Neg()
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}

func (o *Order) IsPaid() bool {
	due := o.Due()
	return !due.IsPositive() || o.Currency.IsZero(due)
}

func (o *Order) IsPaidWithCash() bool {
	for _, l := range o.PaymentLines {
		if l.CashCounted() && !l.Amount.IsZero() {
			return true
		}
	}
	return false
}

func (o *Order) ElectronicPaymentInProgress() bool {
	for _, l := range o.PaymentLines {
		if l.InProgress() {
			return true
		}
	}
	return false
}

func (o *Order) roundingLines() []rounding.Line {
	lines := make([]rounding.Line, len(o.PaymentLines))
	for i, l := range o.PaymentLines {
		lines[i] = l
	}
	return lines
}

// CheckPaymentLinesRounding returns the first payment line violating the cash
// rounding with its violation, or nil. It does not depend on the order total.
func (o *Order) CheckPaymentLinesRounding() (*PaymentLine, *rounding.Violation) {
	if !o.CashRounding.Enabled {
		return nil, nil
	}
	v := rounding.DetectViolation(o.roundingLines(), o.CashRounding)
	if v == nil {
		return nil, nil
	}
	return o.PaymentLines[v.Index], v
}

// HasNotValidRounding returns the first applicable line not rounded to the
// cash increment, or nil. Orders with a total below the increment are not checked.
func (o *Order) HasNotValidRounding() *PaymentLine {
	cr := o.CashRounding
	if !cr.Enabled || o.TotalWithTax().Abs().LessThan(cr.Increment) {
		return nil
	}
	if i := rounding.FirstNotRounded(o.roundingLines(), o.CashRounding); i >= 0 {
		return o.PaymentLines[i]
	}
	return nil
}

// IsValidEmptyOrder rejects orders without order lines and without payments.
func (o *Order) IsValidEmptyOrder() bool {
	if len(o.Lines) == 0 {
		return len(o.PaymentLines) != 0
	}
	return true
}

// OwnsPaymentLines reports whether every payment line belongs to the order.
func (o *Order) OwnsPaymentLines() bool {
	for _, l := range o.PaymentLines {
		if l.OrderUID != o.UID {
			return false
		}
	}
	return true
}
