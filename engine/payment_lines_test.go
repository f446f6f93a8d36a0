package engine

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/for_testing"
	"github.com/gebv/checkout/rounding"
)

var errDeclined = errors.New("declined")

type recorder struct {
	statuses []checkout.PaymentStatus
}

func (r *recorder) PaymentLineUpdated(ctx context.Context, o *checkout.Order, line *checkout.PaymentLine) {
	r.statuses = append(r.statuses, line.Status)
}

func setup(t *testing.T, total string) (*checkout.Order, *checkout.PaymentLine, *for_testing.Terminal) {
	t.Helper()
	o := checkout.NewOrder("Order 1", checkout.Currency{Name: "USD", Rounding: decimal.New(1, -2), DecimalPlaces: 2}, rounding.Config{})
	o.AddOrderLine(1, "Chair", decimal.NewFromInt(1), decimal.RequireFromString(total))
	term := for_testing.NewTerminal()
	line, err := o.AddPaymentLine(checkout.NewElectronicMethod(2, "Card", term))
	require.NoError(t, err)
	return o, line, term
}

func TestPaymentStatusTransitionChart(t *testing.T) {
	events := []PaymentEvent{
		REQUEST_EV, REQUEST_SUCCEEDED_EV, REQUEST_FAILED_EV, CARD_WAITING_EV, TIMED_OUT_EV,
		CANCEL_EV, CANCEL_SUCCEEDED_EV, CANCEL_FAILED_EV,
		REVERSE_EV, REVERSE_SUCCEEDED_EV, REVERSE_FAILED_EV,
	}
	allowed := map[checkout.PaymentStatus]map[PaymentEvent]checkout.PaymentStatus{
		checkout.OPEN_PS:  {REQUEST_EV: checkout.WAITING_PS},
		checkout.RETRY_PS: {REQUEST_EV: checkout.WAITING_PS},
		checkout.WAITING_PS: {
			REQUEST_SUCCEEDED_EV: checkout.DONE_PS,
			REQUEST_FAILED_EV:    checkout.RETRY_PS,
			CARD_WAITING_EV:      checkout.WAITING_CARD_PS,
			TIMED_OUT_EV:         checkout.TIMEOUT_PS,
			CANCEL_EV:            checkout.WAITING_CANCEL_PS,
		},
		checkout.WAITING_CARD_PS: {
			REQUEST_SUCCEEDED_EV: checkout.DONE_PS,
			REQUEST_FAILED_EV:    checkout.RETRY_PS,
			TIMED_OUT_EV:         checkout.TIMEOUT_PS,
			CANCEL_EV:            checkout.WAITING_CANCEL_PS,
		},
		checkout.TIMEOUT_PS: {
			REQUEST_SUCCEEDED_EV: checkout.DONE_PS,
			REQUEST_FAILED_EV:    checkout.RETRY_PS,
			CANCEL_EV:            checkout.WAITING_CANCEL_PS,
		},
		checkout.WAITING_CANCEL_PS: {
			CANCEL_SUCCEEDED_EV:  checkout.RETRY_PS,
			CANCEL_FAILED_EV:     checkout.WAITING_CARD_PS,
			REQUEST_SUCCEEDED_EV: checkout.DONE_PS,
			REQUEST_FAILED_EV:    checkout.WAITING_CANCEL_PS,
		},
		checkout.DONE_PS:      {REVERSE_EV: checkout.REVERSING_PS},
		checkout.REVERSING_PS: {REVERSE_SUCCEEDED_EV: checkout.REVERSED_PS, REVERSE_FAILED_EV: checkout.DONE_PS},
	}

	for _, from := range checkout.PaymentStatuses {
		for _, ev := range events {
			t.Run(string(from)+"_"+string(ev), func(t *testing.T) {
				to, err := paymentStatusTransitionChart.Next(from, ev)
				want, ok := allowed[from][ev]
				if !ok {
					assert.Equal(t, checkout.ErrNotAllowedTransition, errors.Cause(err))
					assert.Equal(t, from, to)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, want, to)
			})
		}
		to, err := paymentStatusTransitionChart.Next(from, FORCE_DONE_EV)
		require.NoError(t, err)
		assert.Equal(t, checkout.DONE_PS, to)
	}

	_, err := paymentStatusTransitionChart.Next(checkout.PaymentStatus("pending"), FORCE_DONE_EV)
	assert.Equal(t, checkout.ErrNotAllowedTransition, errors.Cause(err))
}

func TestPaymentLines_SendPaymentRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("approved", func(t *testing.T) {
		o, line, _ := setup(t, "25.00")
		rec := &recorder{}
		m := NewPaymentLines(rec)

		auto, err := m.SendPaymentRequest(ctx, o, line.ID)
		require.NoError(t, err)
		assert.True(t, auto)
		assert.Equal(t, checkout.DONE_PS, line.Status)
		assert.True(t, line.CanBeReversed)
		assert.Equal(t, []checkout.PaymentStatus{checkout.WAITING_PS, checkout.DONE_PS}, rec.statuses)
	})

	t.Run("declined", func(t *testing.T) {
		o, line, term := setup(t, "25.00")
		term.RequestErr = errDeclined
		m := NewPaymentLines(nil)

		auto, err := m.SendPaymentRequest(ctx, o, line.ID)
		require.NoError(t, err)
		assert.False(t, auto)
		assert.Equal(t, checkout.RETRY_PS, line.Status)

		term.RequestErr = nil
		auto, err = m.SendPaymentRequest(ctx, o, line.ID)
		require.NoError(t, err)
		assert.True(t, auto)
		assert.Len(t, term.Requests, 2)
	})

	t.Run("partial payment is not auto validated", func(t *testing.T) {
		o, line, _ := setup(t, "25.00")
		line.Amount = decimal.NewFromInt(10)
		auto, err := NewPaymentLines(nil).SendPaymentRequest(ctx, o, line.ID)
		require.NoError(t, err)
		assert.False(t, auto)
	})

	t.Run("earlier payments become non reversible", func(t *testing.T) {
		o, line, term := setup(t, "25.00")
		line.Amount = decimal.NewFromInt(10)
		m := NewPaymentLines(nil)
		_, err := m.SendPaymentRequest(ctx, o, line.ID)
		require.NoError(t, err)
		require.True(t, line.CanBeReversed)

		second, err := o.AddPaymentLine(checkout.NewElectronicMethod(3, "Card 2", term))
		require.NoError(t, err)
		_, err = m.SendPaymentRequest(ctx, o, second.ID)
		require.NoError(t, err)
		assert.False(t, line.CanBeReversed)
		assert.True(t, second.CanBeReversed)
	})

	t.Run("manual line", func(t *testing.T) {
		o, _, _ := setup(t, "25.00")
		o.PaymentLines = nil
		cash, err := o.AddPaymentLine(checkout.NewManualMethod(1, "Cash", checkout.CASH_METHOD))
		require.NoError(t, err)
		_, err = NewPaymentLines(nil).SendPaymentRequest(ctx, o, cash.ID)
		assert.Equal(t, checkout.ErrNoTerminal, err)
	})

	t.Run("already waiting", func(t *testing.T) {
		o, line, term := setup(t, "25.00")
		line.Status = checkout.WAITING_PS
		_, err := NewPaymentLines(nil).SendPaymentRequest(ctx, o, line.ID)
		assert.Equal(t, checkout.ErrNotAllowedTransition, errors.Cause(err))
		assert.Empty(t, term.Requests)
	})

	t.Run("unknown line", func(t *testing.T) {
		o, _, _ := setup(t, "25.00")
		_, err := NewPaymentLines(nil).SendPaymentRequest(ctx, o, "nope")
		assert.Equal(t, checkout.ErrPaymentLineNotFound, err)
	})
}

func TestPaymentLines_SendPaymentCancel(t *testing.T) {
	ctx := context.Background()

	for _, from := range []checkout.PaymentStatus{checkout.WAITING_PS, checkout.WAITING_CARD_PS, checkout.TIMEOUT_PS} {
		t.Run(string(from), func(t *testing.T) {
			o, line, term := setup(t, "25.00")
			line.Status = from
			ok, err := NewPaymentLines(nil).SendPaymentCancel(ctx, o, line.ID)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, checkout.RETRY_PS, line.Status)
			assert.Equal(t, []string{line.ID}, term.Cancels)
		})
	}

	t.Run("terminal refuses", func(t *testing.T) {
		o, line, term := setup(t, "25.00")
		line.Status = checkout.WAITING_PS
		term.CancelErr = errDeclined
		ok, err := NewPaymentLines(nil).SendPaymentCancel(ctx, o, line.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, checkout.WAITING_CARD_PS, line.Status)
	})

	t.Run("already cancelling", func(t *testing.T) {
		o, line, term := setup(t, "25.00")
		line.Status = checkout.WAITING_CANCEL_PS
		ok, err := NewPaymentLines(nil).SendPaymentCancel(ctx, o, line.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, checkout.WAITING_CANCEL_PS, line.Status)
		assert.Empty(t, term.Cancels)
	})

	t.Run("not pending", func(t *testing.T) {
		o, line, _ := setup(t, "25.00")
		_, err := NewPaymentLines(nil).SendPaymentCancel(ctx, o, line.ID)
		assert.Equal(t, checkout.ErrNotAllowedTransition, errors.Cause(err))
		assert.Equal(t, checkout.OPEN_PS, line.Status)
	})

	t.Run("while the request is in flight", func(t *testing.T) {
		o, line, term := setup(t, "25.00")
		term.Gate = make(chan error)
		m := NewPaymentLines(nil)

		done := make(chan error)
		go func() {
			_, err := m.SendPaymentRequest(ctx, o, line.ID)
			done <- err
		}()
		<-term.Requested

		ok, err := m.SendPaymentCancel(ctx, o, line.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		term.Gate <- errDeclined
		require.NoError(t, <-done)

		o.Lock()
		defer o.Unlock()
		assert.Equal(t, checkout.RETRY_PS, line.Status)
	})
}

func TestPaymentLines_DeletePaymentLine(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		status      checkout.PaymentStatus
		cancelErr   error
		wantRemoved bool
		wantStatus  checkout.PaymentStatus
		wantCancels int
	}{
		{"open", checkout.OPEN_PS, nil, true, checkout.OPEN_PS, 0},
		{"retry", checkout.RETRY_PS, nil, true, checkout.RETRY_PS, 0},
		{"waiting cancelled", checkout.WAITING_PS, nil, true, checkout.RETRY_PS, 1},
		{"waiting card cancel refused", checkout.WAITING_CARD_PS, errDeclined, false, checkout.WAITING_CARD_PS, 1},
		{"timeout cancelled", checkout.TIMEOUT_PS, nil, true, checkout.RETRY_PS, 1},
		{"waiting cancel", checkout.WAITING_CANCEL_PS, nil, false, checkout.WAITING_CANCEL_PS, 0},
		{"done", checkout.DONE_PS, nil, true, checkout.DONE_PS, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, line, term := setup(t, "25.00")
			line.Status = tt.status
			term.CancelErr = tt.cancelErr

			removed, err := NewPaymentLines(nil).DeletePaymentLine(ctx, o, line.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)
			assert.Equal(t, tt.wantStatus, line.Status)
			assert.Equal(t, tt.wantCancels, term.CancelCount())
			if tt.wantRemoved {
				assert.Empty(t, o.PaymentLines)
			} else {
				assert.Len(t, o.PaymentLines, 1)
			}
		})
	}
}

func TestPaymentLines_SendPaymentReversal(t *testing.T) {
	ctx := context.Background()

	t.Run("reversed", func(t *testing.T) {
		o, line, term := setup(t, "25.00")
		m := NewPaymentLines(nil)
		_, err := m.SendPaymentRequest(ctx, o, line.ID)
		require.NoError(t, err)

		ok, err := m.SendPaymentReversal(ctx, o, line.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, checkout.REVERSED_PS, line.Status)
		assert.True(t, line.Amount.IsZero())
		require.Len(t, term.Reversed, 1)
		assert.True(t, decimal.NewFromInt(25).Equal(term.Reversed[0].Amount))
	})

	t.Run("refused", func(t *testing.T) {
		o, line, term := setup(t, "25.00")
		m := NewPaymentLines(nil)
		_, err := m.SendPaymentRequest(ctx, o, line.ID)
		require.NoError(t, err)
		term.ReversalErr = errDeclined

		ok, err := m.SendPaymentReversal(ctx, o, line.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, checkout.DONE_PS, line.Status)
		assert.False(t, line.CanBeReversed)
		assert.True(t, decimal.NewFromInt(25).Equal(line.Amount))

		_, err = m.SendPaymentReversal(ctx, o, line.ID)
		assert.Equal(t, checkout.ErrNotAllowedTransition, errors.Cause(err))
	})

	t.Run("terminal without reversals", func(t *testing.T) {
		o, line, term := setup(t, "25.00")
		term.Reversals = false
		m := NewPaymentLines(nil)
		_, err := m.SendPaymentRequest(ctx, o, line.ID)
		require.NoError(t, err)
		_, err = m.SendPaymentReversal(ctx, o, line.ID)
		assert.Equal(t, checkout.ErrNotAllowedTransition, errors.Cause(err))
		assert.Empty(t, term.Reversed)
	})
}

func TestPaymentLines_SendForceDone(t *testing.T) {
	for _, from := range checkout.PaymentStatuses {
		t.Run(string(from), func(t *testing.T) {
			o, line, _ := setup(t, "25.00")
			line.Status = from
			require.NoError(t, NewPaymentLines(nil).SendForceDone(context.Background(), o, line.ID))
			assert.Equal(t, checkout.DONE_PS, line.Status)
		})
	}

	t.Run("while the request is in flight", func(t *testing.T) {
		ctx := context.Background()
		o, line, term := setup(t, "25.00")
		term.Gate = make(chan error)
		m := NewPaymentLines(nil)

		type result struct {
			auto bool
			err  error
		}
		done := make(chan result)
		go func() {
			auto, err := m.SendPaymentRequest(ctx, o, line.ID)
			done <- result{auto, err}
		}()
		<-term.Requested

		require.NoError(t, m.SendForceDone(ctx, o, line.ID))

		term.Gate <- errDeclined
		res := <-done
		require.NoError(t, res.err)
		assert.False(t, res.auto)

		o.Lock()
		defer o.Unlock()
		assert.Equal(t, checkout.DONE_PS, line.Status)
		assert.False(t, line.CanBeReversed)
	})

	t.Run("finalized order", func(t *testing.T) {
		o, line, _ := setup(t, "25.00")
		o.Finalized = true
		err := NewPaymentLines(nil).SendForceDone(context.Background(), o, line.ID)
		assert.Equal(t, checkout.ErrOrderFinalized, err)
	})
}

func TestPaymentLines_ApplyTerminalStatus(t *testing.T) {
	ctx := context.Background()
	o, line, _ := setup(t, "25.00")
	m := NewPaymentLines(nil)
	line.Status = checkout.WAITING_PS

	require.NoError(t, m.ApplyTerminalStatus(ctx, o, line.ID, checkout.WAITING_CARD_PS))
	assert.Equal(t, checkout.WAITING_CARD_PS, line.Status)
	require.NoError(t, m.ApplyTerminalStatus(ctx, o, line.ID, checkout.WAITING_CARD_PS))
	require.NoError(t, m.ApplyTerminalStatus(ctx, o, line.ID, checkout.TIMEOUT_PS))
	assert.Equal(t, checkout.TIMEOUT_PS, line.Status)

	err := m.ApplyTerminalStatus(ctx, o, line.ID, checkout.WAITING_CARD_PS)
	assert.Equal(t, checkout.ErrNotAllowedTransition, errors.Cause(err))

	err = m.ApplyTerminalStatus(ctx, o, line.ID, checkout.OPEN_PS)
	assert.Equal(t, checkout.ErrNotAllowedTransition, errors.Cause(err))

	require.NoError(t, m.ApplyTerminalStatus(ctx, o, line.ID, checkout.DONE_PS))
	assert.Equal(t, checkout.DONE_PS, line.Status)
}
