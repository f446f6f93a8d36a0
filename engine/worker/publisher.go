package worker

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/engine"
	"github.com/gebv/checkout/engine/finalize"
	"github.com/gebv/checkout/provider"
)

// Publisher announces checkout events on NATS.
type Publisher struct {
	nc *nats.EncodedConn
	l  *zap.Logger
}

func NewPublisher(nc *nats.EncodedConn) *Publisher {
	return &Publisher{
		nc: nc,
		l:  zap.L().Named("publisher"),
	}
}

func (p *Publisher) publish(subject string, v interface{}) {
	if err := p.nc.Publish(subject, v); err != nil {
		p.l.Warn("Failed publish.", zap.String("subject", subject), zap.Error(err))
	}
}

// PaymentLineUpdated is called with the order locked.
func (p *Publisher) PaymentLineUpdated(ctx context.Context, o *checkout.Order, line *checkout.PaymentLine) {
	p.publish(PAYMENT_LINE_UPDATED_SUBJECT, &MessagePaymentLineUpdated{
		OrderUID:      o.UID,
		LineID:        line.ID,
		Status:        line.Status,
		Amount:        line.Amount,
		CanBeReversed: line.CanBeReversed,
	})
}

func (p *Publisher) OrderFinalized(ctx context.Context, o *checkout.Order, res *finalize.Result) {
	m := &MessageOrderFinalized{
		OrderUID:    o.UID,
		Name:        o.Name,
		Stage:       res.Stage,
		NextScreen:  res.NextScreen,
		Offline:     res.Offline,
		AmountTotal: o.TotalWithTax(),
	}
	for _, s := range res.Synced {
		m.ServerIDs = append(m.ServerIDs, s.ServerID)
	}
	p.publish(ORDER_FINALIZED_SUBJECT, m)
}

// SyncUnsynced hands the sync of unsynced orders to the worker subscribed to SYNC_ORDERS_SUBJECT.
func (p *Publisher) SyncUnsynced(ctx context.Context) {
	p.publish(SYNC_ORDERS_SUBJECT, &MessageSyncOrders{RequestedAt: time.Now()})
}

// TerminalStatus is a provider.StatusHook.
func (p *Publisher) TerminalStatus(ctx context.Context, orderUID, lineID string, status checkout.PaymentStatus) {
	p.publish(TERMINAL_STATUS_SUBJECT, &MessageTerminalStatus{
		OrderUID: orderUID,
		LineID:   lineID,
		Status:   status,
	})
}

var (
	_ engine.Notifier     = (*Publisher)(nil)
	_ finalize.Notifier   = (*Publisher)(nil)
	_ finalize.Syncer     = (*Publisher)(nil)
	_ finalize.Syncer     = (*BackgroundSync)(nil)
	_ provider.StatusHook = (*Publisher)(nil).TerminalStatus
)
