package checkout

import (
	"context"

	"github.com/shopspring/decimal"
)

// TerminalRequest is everything a payment terminal gets to know about a payment.
type TerminalRequest struct {
	OrderUID string
	LineID   string
	Amount   decimal.Decimal
	Currency string
}

// PaymentTerminal drives an external card-payment device.
// A nil error is a success, any error is a failure of the operation.
type PaymentTerminal interface {
	SendPaymentRequest(ctx context.Context, req TerminalRequest) error
	SendPaymentCancel(ctx context.Context, orderUID, lineID string) error
	SendPaymentReversal(ctx context.Context, req TerminalRequest) error
	SupportsReversals() bool
}
