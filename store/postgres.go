package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/reform.v1"

	"github.com/gebv/checkout"
)

// Postgres keeps unsynced orders in checkout.unsynced_orders, one row per order UID.
type Postgres struct {
	db *reform.DB
	l  *zap.Logger
}

func NewPostgres(db *reform.DB) *Postgres {
	return &Postgres{
		db: db,
		l:  zap.L().Named("unsynced_store"),
	}
}

func (s *Postgres) SaveUnsyncedOrder(ctx context.Context, o *checkout.ExportedOrder) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "Failed marshal exported order")
	}
	return s.db.InTransaction(func(tx *reform.TX) error {
		var rec UnsyncedOrder
		err := tx.SelectOneTo(&rec, "WHERE order_uid = $1", o.UID)
		switch err {
		case nil:
			rec.Payload = payload
			if err := tx.Update(&rec); err != nil {
				return errors.Wrap(err, "Failed update unsynced order")
			}
			s.l.Debug("Unsynced order updated.", zap.String("order_uid", o.UID))
			return nil
		case reform.ErrNoRows:
			rec = UnsyncedOrder{OrderUID: o.UID, Payload: payload}
			if err := tx.Insert(&rec); err != nil {
				return errors.Wrap(err, "Failed insert unsynced order")
			}
			s.l.Debug("Unsynced order saved.", zap.String("order_uid", o.UID), zap.Int64("id", rec.ID))
			return nil
		default:
			return errors.Wrap(err, "Failed find unsynced order")
		}
	})
}

func (s *Postgres) RemoveUnsyncedOrder(ctx context.Context, uid string) error {
	n, err := s.db.DeleteFrom(UnsyncedOrderTable, "WHERE order_uid = $1", uid)
	if err != nil {
		return errors.Wrap(err, "Failed remove unsynced order")
	}
	if n > 0 {
		s.l.Debug("Unsynced order removed.", zap.String("order_uid", uid))
	}
	return nil
}

func (s *Postgres) ListUnsyncedOrders(ctx context.Context) ([]*checkout.ExportedOrder, error) {
	list, err := s.db.SelectAllFrom(UnsyncedOrderTable, "ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "Failed list unsynced orders")
	}
	res := make([]*checkout.ExportedOrder, 0, len(list))
	for _, str := range list {
		rec := str.(*UnsyncedOrder)
		o := &checkout.ExportedOrder{}
		if err := json.Unmarshal(rec.Payload, o); err != nil {
			s.l.Warn("Skip broken unsynced order.", zap.String("order_uid", rec.OrderUID), zap.Error(err))
			continue
		}
		res = append(res, o)
	}
	return res, nil
}

var _ checkout.LocalStore = (*Postgres)(nil)
