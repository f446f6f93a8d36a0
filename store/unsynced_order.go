package store

import (
	"time"
)

//go:generate reform

//reform:checkout.unsynced_orders
type UnsyncedOrder struct {
	ID        int64     `reform:"id,pk"`
	OrderUID  string    `reform:"order_uid"`
	Payload   []byte    `reform:"payload"`
	CreatedAt time.Time `reform:"created_at"`
	UpdatedAt time.Time `reform:"updated_at"`
}

func (o *UnsyncedOrder) BeforeInsert() error {
	o.UpdatedAt = time.Now()
	o.CreatedAt = time.Now()
	return nil
}

func (o *UnsyncedOrder) BeforeUpdate() error {
	o.UpdatedAt = time.Now()
	return nil
}
