// Package for_testing contains in-memory collaborators of the checkout for tests.
package for_testing

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/gebv/checkout"
)

// Terminal is a payment terminal answering with the configured errors.
// When Gate is not nil every request waits for a value on it.
type Terminal struct {
	mu sync.Mutex

	RequestErr  error
	CancelErr   error
	ReversalErr error
	Reversals   bool
	Gate        chan error

	Requests  []checkout.TerminalRequest
	Cancels   []string
	Reversed  []checkout.TerminalRequest
	Requested chan struct{}
}

func NewTerminal() *Terminal {
	return &Terminal{Reversals: true, Requested: make(chan struct{}, 16)}
}

func (t *Terminal) SendPaymentRequest(ctx context.Context, req checkout.TerminalRequest) error {
	t.mu.Lock()
	t.Requests = append(t.Requests, req)
	gate, err := t.Gate, t.RequestErr
	t.mu.Unlock()
	select {
	case t.Requested <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case err = <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (t *Terminal) SendPaymentCancel(ctx context.Context, orderUID, lineID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Cancels = append(t.Cancels, lineID)
	return t.CancelErr
}

func (t *Terminal) SendPaymentReversal(ctx context.Context, req checkout.TerminalRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Reversed = append(t.Reversed, req)
	return t.ReversalErr
}

func (t *Terminal) SupportsReversals() bool {
	return t.Reversals
}

func (t *Terminal) CancelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Cancels)
}

// UI records what the checkout shows to the cashier.
type UI struct {
	mu sync.Mutex

	ConfirmAnswer bool
	ConfirmErr    error
	Partner       *checkout.Partner
	Number        *decimal.Decimal

	Blocks         int
	Unblocks       int
	Screens        []checkout.Screen
	Prompts        []checkout.Prompt
	Errors         []string
	OfflineErrors  []string
	Notifications  []string
	BufferResets   int
	PartnerPrompts int
}

func (u *UI) Block() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Blocks++
}

func (u *UI) Unblock() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Unblocks++
}

func (u *UI) ShowScreen(s checkout.Screen) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Screens = append(u.Screens, s)
}

func (u *UI) Confirm(ctx context.Context, p checkout.Prompt) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Prompts = append(u.Prompts, p)
	return u.ConfirmAnswer, u.ConfirmErr
}

func (u *UI) ShowError(title, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Errors = append(u.Errors, title)
}

func (u *UI) ShowOfflineError(title, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.OfflineErrors = append(u.OfflineErrors, title)
}

func (u *UI) ShowNotification(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Notifications = append(u.Notifications, msg)
}

func (u *UI) ResetNumberBuffer() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.BufferResets++
}

func (u *UI) SelectPartner(ctx context.Context, current *checkout.Partner) (*checkout.Partner, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.PartnerPrompts++
	return u.Partner, u.Partner != nil, nil
}

func (u *UI) AskNumber(ctx context.Context, title string, start decimal.Decimal) (decimal.Decimal, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Number == nil {
		return start, false, nil
	}
	return *u.Number, true, nil
}

// Backend acknowledges pushed orders with increasing server ids.
type Backend struct {
	mu sync.Mutex

	Err         error
	AccountMove *int64
	Nothing     bool

	Pushed []*checkout.ExportedOrder
	nextID int64
}

func (b *Backend) PushOrder(ctx context.Context, o *checkout.Order) ([]checkout.SyncedOrder, error) {
	return b.PushOrders(ctx, []*checkout.ExportedOrder{o.Export()})
}

func (b *Backend) PushOrders(ctx context.Context, orders []*checkout.ExportedOrder) ([]checkout.SyncedOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	b.Pushed = append(b.Pushed, orders...)
	res := []checkout.SyncedOrder{}
	if b.Nothing {
		return res, nil
	}
	for _, o := range orders {
		b.nextID++
		res = append(res, checkout.SyncedOrder{UID: o.UID, ServerID: b.nextID, AccountMoveID: b.AccountMove})
	}
	return res, nil
}

type Invoicer struct {
	mu sync.Mutex

	Err       error
	Retrieved []int64
}

func (i *Invoicer) RetrieveInvoiceDocument(ctx context.Context, accountMoveID int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Retrieved = append(i.Retrieved, accountMoveID)
	return i.Err
}

type CashDrawer struct {
	mu    sync.Mutex
	Opens int
}

func (c *CashDrawer) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Opens++
	return nil
}
