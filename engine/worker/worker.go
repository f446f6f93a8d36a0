package worker

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
)

// SubToNATS serves sync requests published on SYNC_ORDERS_SUBJECT.
// Requests with a reply subject get a MessageSyncResult.
func SubToNATS(nc *nats.EncodedConn, s *Syncer, timeout time.Duration) (*nats.Subscription, error) {
	l := zap.L().Named("worker")
	sub, err := nc.QueueSubscribe(SYNC_ORDERS_SUBJECT, syncQueue, func(subject, reply string, m *MessageSyncOrders) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		l.Debug("Sync requested.", zap.Time("requested_at", m.RequestedAt))
		n, err := s.Sync(ctx)
		res := &MessageSyncResult{Synced: n}
		if err != nil {
			l.Warn("Failed sync unsynced orders.", zap.Error(err))
			res.Error = err.Error()
		}
		if reply == "" {
			return
		}
		if err := nc.Publish(reply, res); err != nil {
			l.Warn("Failed reply sync result.", zap.Error(err))
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed subscribe to sync requests")
	}
	return sub, nil
}

// TerminalStatusFunc applies a status reported by a terminal to the open payment screen.
type TerminalStatusFunc func(ctx context.Context, orderUID, lineID string, status checkout.PaymentStatus) error

// SubTerminalStatus applies the statuses published on TERMINAL_STATUS_SUBJECT.
func SubTerminalStatus(nc *nats.EncodedConn, apply TerminalStatusFunc, timeout time.Duration) (*nats.Subscription, error) {
	l := zap.L().Named("terminal_status")
	sub, err := nc.Subscribe(TERMINAL_STATUS_SUBJECT, func(m *MessageTerminalStatus) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apply(ctx, m.OrderUID, m.LineID, m.Status); err != nil {
			l.Warn("Failed apply terminal status.",
				zap.String("order_uid", m.OrderUID),
				zap.String("line_id", m.LineID),
				zap.String("status", string(m.Status)),
				zap.Error(err))
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed subscribe to terminal statuses")
	}
	return sub, nil
}
