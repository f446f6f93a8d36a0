package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/engine/finalize"
	"github.com/gebv/checkout/for_testing"
	"github.com/gebv/checkout/rounding"
	"github.com/gebv/checkout/store"
)

type notifier struct {
	mu        sync.Mutex
	updates   []checkout.PaymentStatus
	finalized []string
}

func (n *notifier) PaymentLineUpdated(ctx context.Context, o *checkout.Order, line *checkout.PaymentLine) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, line.Status)
}

func (n *notifier) OrderFinalized(ctx context.Context, o *checkout.Order, res *finalize.Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finalized = append(n.finalized, o.UID)
}

type env struct {
	m       *Manager
	backend *for_testing.Backend
	store   *store.Memory
	term    *for_testing.Terminal
	n       *notifier
	cash    *checkout.PaymentMethod
	card    *checkout.PaymentMethod
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		backend: &for_testing.Backend{},
		store:   store.NewMemory(),
		term:    for_testing.NewTerminal(),
		n:       &notifier{},
	}
	e.cash = checkout.NewManualMethod(1, "Cash", checkout.CASH_METHOD)
	e.card = checkout.NewElectronicMethod(2, "Card", e.term)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.m = NewManager(ctx, Config{
		Currency: checkout.Currency{Name: "USD", Rounding: decimal.New(1, -2), DecimalPlaces: 2},
		Rounding: rounding.Config{},
	}, Deps{
		Methods:  []*checkout.PaymentMethod{e.cash, e.card},
		Backend:  e.backend,
		Store:    e.store,
		Notifier: e.n,
	})
	return e
}

func orderLines() []checkout.ExportedOrderLine {
	return []checkout.ExportedOrderLine{
		{ProductID: 1, Name: "Desk", Quantity: decimal.NewFromInt(2), PriceWithTax: decimal.RequireFromString("4.50")},
		{ProductID: 2, Name: "Lamp", Quantity: decimal.NewFromInt(1), PriceWithTax: decimal.NewFromInt(1)},
	}
}

func lineStatus(s *Session, lineID string) checkout.PaymentStatus {
	o := s.Controller.Order()
	o.Lock()
	defer o.Unlock()
	line, err := o.FindPaymentLine(lineID)
	if err != nil {
		return ""
	}
	return line.Status
}

func TestManager_Open(t *testing.T) {
	e := newEnv(t)

	s := e.m.Open("Order 1", orderLines())
	v := s.View()
	assert.Equal(t, "Order 1", v.Order.Name)
	assert.Len(t, v.Order.Lines, 2)
	assert.True(t, decimal.NewFromInt(10).Equal(v.Due))
	assert.True(t, decimal.NewFromInt(10).Equal(v.Order.AmountTotal))
	assert.Equal(t, "USD", v.Order.Currency)
	assert.Nil(t, v.MaxValue)
	assert.Empty(t, v.Selected)

	got, err := e.m.Get(v.Order.UID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	m, ok := e.m.Method(2)
	require.True(t, ok)
	assert.Same(t, e.card, m)
	_, ok = e.m.Method(42)
	assert.False(t, ok)

	assert.True(t, e.m.Close(v.Order.UID))
	assert.False(t, e.m.Close(v.Order.UID))
	_, err = e.m.Get(v.Order.UID)
	assert.Equal(t, ErrNotFound, errors.Cause(err))
}

func TestManager_cashPayment(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s := e.m.Open("Order 1", orderLines())

	line, err := s.Controller.AddNewPaymentLine(ctx, e.cash)
	require.NoError(t, err)
	require.NotNil(t, line)

	paid := decimal.NewFromInt(20)
	require.NoError(t, s.Controller.UpdateSelectedPaymentLine(ctx, &paid))
	v := s.View()
	assert.Equal(t, line.ID, v.Selected)
	assert.True(t, decimal.NewFromInt(10).Equal(v.Change))

	res, err := s.Controller.ValidateOrder(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, res.Finalized)
	assert.Equal(t, checkout.RECEIPT_SCREEN, res.Finalized.NextScreen)

	ui := s.UI.State()
	assert.Equal(t, checkout.RECEIPT_SCREEN, ui.Screen)
	assert.False(t, ui.Blocked)
	require.Len(t, e.backend.Pushed, 1)
	assert.Equal(t, s.Controller.Order().UID, e.backend.Pushed[0].UID)
	assert.Equal(t, []string{s.Controller.Order().UID}, e.n.finalized)

	left, err := e.store.ListUnsyncedOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestManager_RequestPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("paid by terminal", func(t *testing.T) {
		e := newEnv(t)
		e.term.Gate = make(chan error)
		s := e.m.Open("Order 1", orderLines())
		uid := s.Controller.Order().UID

		line, err := s.Controller.AddNewPaymentLine(ctx, e.card)
		require.NoError(t, err)
		require.NotNil(t, line)

		e.m.RequestPayment(s, line.ID)
		select {
		case <-e.term.Requested:
		case <-time.After(5 * time.Second):
			t.Fatal("the terminal got no request")
		}
		assert.Equal(t, checkout.WAITING_PS, lineStatus(s, line.ID))

		require.NoError(t, e.m.ApplyTerminalStatus(ctx, uid, line.ID, checkout.WAITING_CARD_PS))
		assert.Equal(t, checkout.WAITING_CARD_PS, lineStatus(s, line.ID))

		e.term.Gate <- nil
		e.m.Wait()

		assert.Equal(t, checkout.DONE_PS, lineStatus(s, line.ID))
		assert.Equal(t, checkout.RECEIPT_SCREEN, s.UI.State().Screen)
		require.Len(t, e.backend.Pushed, 1)

		// late status of a finalized order
		assert.NoError(t, e.m.ApplyTerminalStatus(ctx, uid, line.ID, checkout.TIMEOUT_PS))
	})

	t.Run("no terminal", func(t *testing.T) {
		e := newEnv(t)
		s := e.m.Open("Order 1", orderLines())
		line, err := s.Controller.AddNewPaymentLine(ctx, e.cash)
		require.NoError(t, err)

		e.m.RequestPayment(s, line.ID)
		e.m.Wait()

		events := s.UI.State().Events
		require.NotEmpty(t, events)
		last := events[len(events)-1]
		assert.Equal(t, ERROR_EVENT, last.Kind)
		assert.Equal(t, "Payment request failed", last.Title)
		assert.Equal(t, checkout.OPEN_PS, lineStatus(s, line.ID))
		assert.Empty(t, e.backend.Pushed)
	})
}

func TestManager_ApplyTerminalStatus(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s := e.m.Open("Order 1", orderLines())
	uid := s.Controller.Order().UID
	line, err := s.Controller.AddNewPaymentLine(ctx, e.card)
	require.NoError(t, err)

	err = e.m.ApplyTerminalStatus(ctx, "missing", line.ID, checkout.WAITING_CARD_PS)
	assert.Equal(t, ErrNotFound, errors.Cause(err))

	err = e.m.ApplyTerminalStatus(ctx, uid, "missing", checkout.WAITING_CARD_PS)
	assert.Equal(t, checkout.ErrPaymentLineNotFound, errors.Cause(err))

	// an open line is not waiting for the terminal
	assert.NoError(t, e.m.ApplyTerminalStatus(ctx, uid, line.ID, checkout.WAITING_CARD_PS))
	assert.Equal(t, checkout.OPEN_PS, lineStatus(s, line.ID))
}

func TestUI(t *testing.T) {
	ctx := context.Background()

	t.Run("prompts", func(t *testing.T) {
		u := NewUI()
		ok, err := u.Confirm(ctx, checkout.Prompt{Kind: checkout.FORCE_VALIDATE_PROMPT, Title: "Large amount"})
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = u.Confirm(ctx, checkout.Prompt{Kind: checkout.SYNC_ORDERS_PROMPT})
		require.NoError(t, err)
		assert.True(t, ok)

		events := u.State().Events
		require.Len(t, events, 2)
		assert.Equal(t, PROMPT_EVENT, events[0].Kind)
		assert.Equal(t, checkout.FORCE_VALIDATE_PROMPT, events[0].Prompt)
	})

	t.Run("offered answers are used once", func(t *testing.T) {
		u := NewUI()
		current := &checkout.Partner{ID: 1}
		p, ok, err := u.SelectPartner(ctx, current)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Same(t, current, p)

		u.OfferPartner(&checkout.Partner{ID: 7})
		p, ok, _ = u.SelectPartner(ctx, current)
		assert.True(t, ok)
		assert.Equal(t, int64(7), p.ID)
		_, ok, _ = u.SelectPartner(ctx, current)
		assert.False(t, ok)

		u.OfferNumber(decimal.NewFromInt(3))
		n, ok, _ := u.AskNumber(ctx, "Add Tip", decimal.Zero)
		assert.True(t, ok)
		assert.True(t, decimal.NewFromInt(3).Equal(n))
		_, ok, _ = u.AskNumber(ctx, "Add Tip", decimal.Zero)
		assert.False(t, ok)
	})

	t.Run("block", func(t *testing.T) {
		u := NewUI()
		u.Block()
		assert.True(t, u.State().Blocked)
		u.Unblock()
		u.Unblock()
		assert.False(t, u.State().Blocked)
		u.Block()
		assert.True(t, u.State().Blocked)
	})

	t.Run("events are capped", func(t *testing.T) {
		u := NewUI()
		for i := 0; i < maxEvents+10; i++ {
			u.ShowNotification("n")
		}
		u.ShowError("last", "")
		events := u.State().Events
		assert.Len(t, events, maxEvents)
		assert.Equal(t, "last", events[len(events)-1].Title)
	})
}
