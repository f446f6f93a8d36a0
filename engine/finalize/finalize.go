// Package finalize commits a validated order to the backend.
package finalize

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
)

type Stage string

const (
	VALIDATING_STAGE            Stage = "validating"
	COMMITTING_STAGE            Stage = "committing"
	COMMITTED_STAGE             Stage = "committed"
	COMMITTED_WITH_ERRORS_STAGE Stage = "committedWithErrors"
	CLEANUP_STAGE               Stage = "cleanup"
	TERMINAL_STAGE              Stage = "terminal"
)

// Codes of invoicing errors that keep the cashier away from the receipt.
var persistentErrorCodes = map[int]bool{
	checkout.CodeBackendInvoice:  true,
	checkout.CodeInvoiceNotFound: true,
	checkout.CodeInvoiceFailed:   true,
}

type Config struct {
	// CashDrawer opens the drawer on cash payments or change.
	CashDrawer bool
	// DownloadInvoice retrieves the invoice document of invoiced orders.
	DownloadInvoice bool
}

// PostPushHook runs after the backend acknowledged an order waiting for it.
type PostPushHook func(ctx context.Context, o *checkout.Order, serverIDs []int64) (bool, error)

// Syncer pushes the remaining unsynced orders. SyncUnsynced must not block.
type Syncer interface {
	SyncUnsynced(ctx context.Context)
}

type Notifier interface {
	OrderFinalized(ctx context.Context, o *checkout.Order, res *Result)
}

type Deps struct {
	Backend    checkout.Backend
	Invoicer   checkout.Invoicer
	Store      checkout.LocalStore
	UI         checkout.UI
	CashDrawer checkout.CashDrawer
	PostPush   PostPushHook
	Syncer     Syncer
	Notifier   Notifier
}

type Result struct {
	Stage      Stage
	Synced     []checkout.SyncedOrder
	NextScreen checkout.Screen
	// Offline is set when the backend was not reachable, the order stays queued.
	Offline bool
	// CommitErr is the absorbed error of the commit.
	CommitErr error
}

type Pipeline struct {
	cfg Config
	d   Deps
	l   *zap.Logger

	// set by invoicing errors until ResetPersistentError
	persistentError bool
}

func New(cfg Config, d Deps) *Pipeline {
	return &Pipeline{
		cfg: cfg,
		d:   d,
		l:   zap.L().Named("finalize"),
	}
}

func (p *Pipeline) PersistentError() bool {
	return p.persistentError
}

// ResetPersistentError clears the invoicing error flag. The payment screen
// calls it when a new session starts.
func (p *Pipeline) ResetPersistentError() {
	p.persistentError = false
}

func (p *Pipeline) NextScreen() checkout.Screen {
	if p.persistentError {
		return checkout.PRODUCT_SCREEN
	}
	return checkout.RECEIPT_SCREEN
}

// Finalize commits the order. Callers serialize calls.
//
// The UI is unblocked, the next screen is shown and the order is removed
// from the local store exactly once whatever happens during the commit.
// An order the backend could not be reached for is kept there instead.
// Connectivity and invoicing errors are absorbed into the result.
func (p *Pipeline) Finalize(ctx context.Context, o *checkout.Order) (res *Result, err error) {
	ctx, span := trace.StartSpan(ctx, "checkout.finalize")
	defer span.End()
	start := time.Now()

	res = &Result{Stage: VALIDATING_STAGE}
	if err := p.prepare(ctx, o); err != nil {
		return nil, err
	}
	span.AddAttributes(trace.StringAttribute("order_uid", o.UID))

	res.Stage = COMMITTING_STAGE
	p.l.Debug("Commit order.", zap.String("order_uid", o.UID))

	unblocked := false
	unblock := func() {
		if !unblocked {
			unblocked = true
			p.d.UI.Unblock()
		}
	}
	p.d.UI.Block()

	defer func() {
		res.Stage = CLEANUP_STAGE
		unblock()
		res.NextScreen = p.NextScreen()
		p.d.UI.ShowScreen(res.NextScreen)
		if res.Offline {
			// queued for the next sync
			if saveErr := p.d.Store.SaveUnsyncedOrder(ctx, o.Export()); saveErr != nil {
				p.l.Error("Failed queue unsynced order.", zap.String("order_uid", o.UID), zap.Error(saveErr))
				err = multierr.Append(err, errors.Wrap(saveErr, "Failed queue unsynced order"))
			}
		} else if rmErr := p.d.Store.RemoveUnsyncedOrder(ctx, o.UID); rmErr != nil {
			p.l.Error("Failed remove unsynced order.", zap.String("order_uid", o.UID), zap.Error(rmErr))
			err = multierr.Append(err, errors.Wrap(rmErr, "Failed remove unsynced order"))
		}
		if err == nil && res.CommitErr == nil {
			p.offerSync(ctx, o)
		}
		res.Stage = TERMINAL_STAGE
		observeFinalize(res, err, time.Since(start))
		if p.d.Notifier != nil && err == nil {
			p.d.Notifier.OrderFinalized(ctx, o, res)
		}
		if err != nil {
			span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: err.Error()})
		}
	}()

	commitErr := p.commit(ctx, o, res)
	if commitErr == nil {
		res.Stage = COMMITTED_STAGE
		return res, nil
	}

	res.Stage = COMMITTED_WITH_ERRORS_STAGE
	unblock()
	return res, p.handleCommitError(ctx, o, res, commitErr)
}

// prepare strips unpaid lines and marks the order finalized.
func (p *Pipeline) prepare(ctx context.Context, o *checkout.Order) error {
	o.Lock()
	defer o.Unlock()

	if o.Finalized {
		return checkout.ErrOrderFinalized
	}

	for _, line := range append([]*checkout.PaymentLine(nil), o.PaymentLines...) {
		if !line.IsDone() {
			o.RemovePaymentLine(line)
		}
	}

	if p.cfg.CashDrawer && p.d.CashDrawer != nil && (o.IsPaidWithCash() || o.Change().IsPositive()) {
		if err := p.d.CashDrawer.Open(ctx); err != nil {
			p.l.Warn("Failed open cash drawer.", zap.String("order_uid", o.UID), zap.Error(err))
		}
	}

	o.ValidationDate = time.Now()
	for _, line := range append([]*checkout.PaymentLine(nil), o.PaymentLines...) {
		if line.Amount.IsZero() {
			o.RemovePaymentLine(line)
		}
	}
	o.Finalized = true
	return nil
}

func (p *Pipeline) commit(ctx context.Context, o *checkout.Order, res *Result) error {
	synced, err := p.d.Backend.PushOrder(ctx, o)
	if err != nil {
		return errors.Wrap(err, "Failed push order")
	}
	if synced == nil {
		synced = []checkout.SyncedOrder{}
	}
	res.Synced = synced

	if p.cfg.DownloadInvoice && o.ToInvoice {
		if len(synced) == 0 || synced[0].AccountMoveID == nil {
			return &checkout.CodedError{Code: checkout.CodeBackendInvoice, Message: "Backend Invoice"}
		}
		if err := p.d.Invoicer.RetrieveInvoiceDocument(ctx, *synced[0].AccountMoveID); err != nil {
			return errors.Wrap(err, "Failed retrieve invoice document")
		}
	}

	if len(synced) > 0 && o.WaitForPushOrder && p.d.PostPush != nil {
		ids := make([]int64, 0, len(synced))
		for _, s := range synced {
			ids = append(ids, s.ServerID)
		}
		ok, err := p.d.PostPush(ctx, o, ids)
		if err != nil || !ok {
			p.l.Warn("Failed post push processing.", zap.String("order_uid", o.UID), zap.Error(err))
			p.d.UI.ShowError("Error: no internet connection.", "Some, if not all, post-processing after syncing order failed.")
		}
	}
	return nil
}

// handleCommitError absorbs invoicing and connectivity errors.
func (p *Pipeline) handleCommitError(ctx context.Context, o *checkout.Order, res *Result, err error) error {
	if code, ok := checkout.ErrorCode(err); ok {
		if persistentErrorCodes[code] {
			p.persistentError = true
		}
		p.l.Warn("Failed invoicing.", zap.String("order_uid", o.UID), zap.Int("code", code), zap.Error(err))
		p.handleInvoicingError(code, err)
		res.CommitErr = err
		return nil
	}
	if checkout.IsConnectionError(err) {
		p.l.Warn("Order is not synced.", zap.String("order_uid", o.UID), zap.Error(err))
		p.d.UI.ShowOfflineError("Connection Error", "Order is not synced. Check your internet connection")
		res.Offline = true
		res.CommitErr = err
		return nil
	}
	p.l.Error("Failed commit order.", zap.String("order_uid", o.UID), zap.Error(err))
	return err
}

func (p *Pipeline) handleInvoicingError(code int, err error) {
	var ce *checkout.CodedError
	msg := err.Error()
	if errors.As(err, &ce) {
		msg = ce.Message
	}
	switch code {
	case checkout.CodeBackendInvoice:
		p.d.UI.ShowError("Backend Invoice", "The order was synced but no invoice was returned. Print it from the backend.")
	default:
		p.d.UI.ShowError("Invoicing Error", msg)
	}
}

// offerSync asks to push the other unsynced orders in the background.
func (p *Pipeline) offerSync(ctx context.Context, o *checkout.Order) {
	if p.d.Syncer == nil {
		return
	}
	orders, err := p.d.Store.ListUnsyncedOrders(ctx)
	if err != nil {
		p.l.Warn("Failed list unsynced orders.", zap.Error(err))
		return
	}
	if len(orders) == 0 {
		return
	}
	ok, err := p.d.UI.Confirm(ctx, checkout.Prompt{
		Kind:  checkout.SYNC_ORDERS_PROMPT,
		Title: "Remaining unsynced orders",
		Body:  "There are unsynced orders. Do you want to sync these orders?",
	})
	if err != nil {
		p.l.Warn("Failed confirm sync of unsynced orders.", zap.Error(err))
		return
	}
	if ok {
		p.l.Debug("Sync unsynced orders.", zap.Int("count", len(orders)))
		p.d.Syncer.SyncUnsynced(ctx)
	}
}
