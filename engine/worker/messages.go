package worker

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/engine/finalize"
)

const (
	PAYMENT_LINE_UPDATED_SUBJECT = "checkout.payment_line.updated"
	ORDER_FINALIZED_SUBJECT      = "checkout.order.finalized"
	SYNC_ORDERS_SUBJECT          = "checkout.orders.sync"
	TERMINAL_STATUS_SUBJECT      = "checkout.terminal.status"

	syncQueue = "checkout-sync"
)

type MessagePaymentLineUpdated struct {
	OrderUID      string
	LineID        string
	Status        checkout.PaymentStatus
	Amount        decimal.Decimal
	CanBeReversed bool
}

type MessageOrderFinalized struct {
	OrderUID    string
	Name        string
	Stage       finalize.Stage
	NextScreen  checkout.Screen
	Offline     bool
	ServerIDs   []int64
	AmountTotal decimal.Decimal
}

type MessageSyncOrders struct {
	RequestedAt time.Time
}

type MessageSyncResult struct {
	Synced int
	Error  string `json:",omitempty"`
}

// MessageTerminalStatus is an intermediate status reported by a terminal for a running payment.
type MessageTerminalStatus struct {
	OrderUID string
	LineID   string
	Status   checkout.PaymentStatus
}
