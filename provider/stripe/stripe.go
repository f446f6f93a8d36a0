// Package stripe uses Stripe Terminal readers as card-present payment terminals.
package stripe

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/gebv/checkout/provider"
)

const (
	// raw status of a payment returned to the card
	REFUNDED = "refunded"
)

type Config struct {
	SecretKey     string
	ReaderID      string
	WebhookSecret string
	PollInterval  time.Duration
	// CardTimeout is how long the reader waits for a card before the payment is reported as timed out.
	CardTimeout time.Duration
}

// NewProvider with nil backends talks to the Stripe API.
func NewProvider(cfg Config, ops provider.Operations, hook provider.StatusHook, backends *stripe.Backends) *Provider {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, backends)
	return &Provider{
		cfg:  cfg,
		sc:   sc,
		ops:  ops,
		hook: hook,
		l:    zap.L().Named("stripe_provider"),
	}
}

type Provider struct {
	cfg  Config
	sc   *client.API
	ops  provider.Operations
	hook provider.StatusHook
	l    *zap.Logger
}

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

// toMinor converts an amount to the smallest currency unit Stripe expects.
func toMinor(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

// final reports whether the payment intent will not change anymore.
func final(status string) bool {
	switch status {
	case string(stripe.PaymentIntentStatusSucceeded), string(stripe.PaymentIntentStatusCanceled), REFUNDED:
		return true
	}
	return false
}
