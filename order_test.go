package checkout

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebv/checkout/rounding"
)

type nopTerminal struct{}

func (nopTerminal) SendPaymentRequest(context.Context, TerminalRequest) error  { return nil }
func (nopTerminal) SendPaymentCancel(context.Context, string, string) error    { return nil }
func (nopTerminal) SendPaymentReversal(context.Context, TerminalRequest) error { return nil }
func (nopTerminal) SupportsReversals() bool                                    { return true }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var usd = Currency{Name: "USD", Rounding: dec("0.01"), DecimalPlaces: 2}

func cashRounding(only bool) rounding.Config {
	return rounding.Config{
		Enabled:             true,
		Increment:           dec("0.05"),
		DefaultPrecision:    dec("0.01"),
		OnlyRoundCashMethod: only,
		Method:              rounding.HALF_UP,
	}
}

func newOrder(total string, cr rounding.Config) *Order {
	o := NewOrder("Order 00001-001-0001", usd, cr)
	o.AddOrderLine(1, "Desk", decimal.NewFromInt(1), dec(total))
	return o
}

func TestOrder_AddPaymentLine(t *testing.T) {
	cash := NewManualMethod(1, "Cash", CASH_METHOD)
	bank := NewManualMethod(2, "Bank", OTHER_METHOD)

	t.Run("cash line takes the rounded due", func(t *testing.T) {
		o := newOrder("10.02", cashRounding(false))
		l, err := o.AddPaymentLine(cash)
		require.NoError(t, err)
		assert.True(t, dec("10.00").Equal(l.Amount), "amount %s", l.Amount)
		assert.Equal(t, l, o.SelectedPaymentLine())
		assert.Equal(t, OPEN_PS, l.Status)
		assert.True(t, o.IsPaid())
		assert.True(t, o.Due().IsZero())
		assert.True(t, o.Change().IsZero())
		assert.True(t, o.IsPaidWithCash())
	})

	t.Run("only cash rounding leaves bank lines exact", func(t *testing.T) {
		o := newOrder("10.02", cashRounding(true))
		l, err := o.AddPaymentLine(bank)
		require.NoError(t, err)
		assert.True(t, dec("10.02").Equal(l.Amount), "amount %s", l.Amount)
		assert.False(t, o.IsPaidWithCash())
	})

	t.Run("blocked while electronic payment in progress", func(t *testing.T) {
		o := newOrder("10.00", rounding.Config{})
		card := NewElectronicMethod(3, "Card", nopTerminal{})
		l, err := o.AddPaymentLine(card)
		require.NoError(t, err)
		assert.False(t, l.IsDone())
		assert.True(t, o.ElectronicPaymentInProgress())
		assert.False(t, o.IsPaid())

		_, err = o.AddPaymentLine(cash)
		assert.Equal(t, ErrElectronicPaymentInProgress, err)

		l.Status = DONE_PS
		assert.True(t, o.IsPaid())
		_, err = o.AddPaymentLine(cash)
		assert.NoError(t, err)
	})

	t.Run("finalized", func(t *testing.T) {
		o := newOrder("10.00", rounding.Config{})
		o.Finalized = true
		_, err := o.AddPaymentLine(cash)
		assert.Equal(t, ErrOrderFinalized, err)
	})
}

func TestOrder_Change(t *testing.T) {
	o := newOrder("7.50", rounding.Config{})
	l, err := o.AddPaymentLine(NewManualMethod(1, "Cash", CASH_METHOD))
	require.NoError(t, err)
	l.Amount = dec("10")
	assert.True(t, dec("2.50").Equal(o.Change()), "change %s", o.Change())
	assert.True(t, dec("-2.50").Equal(o.Due()))
	assert.True(t, o.IsPaid())
}

func TestOrder_RemovePaymentLine(t *testing.T) {
	o := newOrder("10.00", rounding.Config{})
	a, _ := o.AddPaymentLine(NewManualMethod(1, "Cash", CASH_METHOD))
	a.Amount = dec("4")
	b, _ := o.AddPaymentLine(NewManualMethod(2, "Bank", OTHER_METHOD))

	assert.True(t, o.RemovePaymentLine(a))
	assert.False(t, o.RemovePaymentLine(a))
	require.Len(t, o.PaymentLines, 1)
	assert.Equal(t, b, o.PaymentLines[0])
	assert.Equal(t, b, o.SelectedPaymentLine())

	found, err := o.FindPaymentLine(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, found)
	_, err = o.FindPaymentLine(a.ID)
	assert.Equal(t, ErrPaymentLineNotFound, err)

	assert.True(t, o.RemovePaymentLine(b))
	assert.Nil(t, o.SelectedPaymentLine())
}

func TestOrder_Rounding(t *testing.T) {
	cash := NewManualMethod(1, "Cash", CASH_METHOD)

	o := newOrder("10.02", cashRounding(false))
	l, _ := o.AddPaymentLine(cash)
	l.Amount = dec("10.02")

	line, v := o.CheckPaymentLinesRounding()
	require.NotNil(t, v)
	assert.Equal(t, l, line)
	assert.True(t, dec("10.00").Equal(v.Lower))
	assert.True(t, dec("10.05").Equal(v.Upper))
	assert.Equal(t, l, o.HasNotValidRounding())

	l.Amount = dec("10.00")
	line, v = o.CheckPaymentLinesRounding()
	assert.Nil(t, line)
	assert.Nil(t, v)
	assert.Nil(t, o.HasNotValidRounding())

	t.Run("total below increment", func(t *testing.T) {
		o := newOrder("0.03", cashRounding(false))
		l, _ := o.AddPaymentLine(cash)
		l.Amount = dec("0.03")
		line, v := o.CheckPaymentLinesRounding()
		require.NotNil(t, v)
		assert.Equal(t, l, line)
		assert.True(t, dec("0.00").Equal(v.Lower))
		assert.True(t, dec("0.05").Equal(v.Upper))
		assert.Nil(t, o.HasNotValidRounding())
	})
}

func TestPaymentLine_AmountEditable(t *testing.T) {
	card := NewElectronicMethod(3, "Card", nopTerminal{})
	for _, st := range PaymentStatuses {
		l := &PaymentLine{Method: card, Status: st}
		want := st.Match(OPEN_PS) || st.Match(RETRY_PS)
		assert.Equal(t, want, l.AmountEditable(), st.String())
		assert.Equal(t, want, l.EditAmount(dec("1")), st.String())
	}

	manual := &PaymentLine{Method: NewManualMethod(1, "Cash", CASH_METHOD), Status: DONE_PS}
	assert.True(t, manual.EditAmount(dec("3")))
	assert.True(t, dec("3").Equal(manual.Amount))
}

func TestOrder_IsValidEmptyOrder(t *testing.T) {
	o := NewOrder("empty", usd, rounding.Config{})
	assert.False(t, o.IsValidEmptyOrder())
	_, err := o.AddPaymentLine(NewManualMethod(1, "Cash", CASH_METHOD))
	require.NoError(t, err)
	assert.True(t, o.IsValidEmptyOrder())
	assert.True(t, o.OwnsPaymentLines())

	o.PaymentLines[0].OrderUID = "other"
	assert.False(t, o.OwnsPaymentLines())
}

func TestOrder_Export(t *testing.T) {
	o := newOrder("10.00", rounding.Config{})
	o.Partner = &Partner{ID: 7, Name: "Azure Interior"}
	l, _ := o.AddPaymentLine(NewManualMethod(1, "Cash", CASH_METHOD))
	l.Amount = dec("20")

	b, err := json.Marshal(o.Export())
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, o.UID, got["uid"])
	assert.Equal(t, "10", got["amount_total"])
	assert.Equal(t, "20", got["amount_paid"])
	assert.Equal(t, "10", got["amount_return"])
	assert.EqualValues(t, 7, got["partner_id"])
	assert.Len(t, got["payment_lines"], 1)
	assert.NotContains(t, got, "validation_date")
}
