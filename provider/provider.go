package provider

import (
	"context"

	"github.com/gebv/checkout"
)

type Provider string

func (p Provider) Match(in Provider) bool {
	return p == in
}

const (
	UNKNOWN_PROVIDER Provider = ""
	GATEWAY          Provider = "gateway"
	STRIPE           Provider = "stripe"
)

// StatusHook receives the intermediate statuses of a payment running on a terminal
// (waitingCard and timeout).
type StatusHook func(ctx context.Context, orderUID, lineID string, status checkout.PaymentStatus)

// Hooks fans a status out to every non-nil hook.
func Hooks(hooks ...StatusHook) StatusHook {
	return func(ctx context.Context, orderUID, lineID string, status checkout.PaymentStatus) {
		for _, h := range hooks {
			if h != nil {
				h(ctx, orderUID, lineID, status)
			}
		}
	}
}
