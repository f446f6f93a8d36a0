// Package gateway drives card terminals behind an HTTP payment gateway.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/provider"
)

const (
	CREATED      = "CREATED"
	WAITING_CARD = "WAITING_CARD"
	TIMEOUT      = "TIMEOUT"
	APPROVED     = "APPROVED"
	DECLINED     = "DECLINED"
	CANCELLED    = "CANCELLED"
	REVERSED     = "REVERSED"
)

// final reports whether the gateway will not change the status anymore.
func final(status string) bool {
	switch status {
	case APPROVED, DECLINED, CANCELLED, REVERSED:
		return true
	}
	return false
}

type Config struct {
	EntrypointURL string
	Token         string
	// TerminalID is the device the payments are routed to.
	TerminalID   string
	PollInterval time.Duration
	// Timeout bounds a payment request, zero waits until the context is done.
	Timeout   time.Duration
	Reversals bool
}

func NewProvider(cfg Config, ops provider.Operations, hook provider.StatusHook) *Provider {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Provider{
		cfg:        cfg,
		ops:        ops,
		hook:       hook,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		l:          zap.L().Named("gateway_provider"),
	}
}

// Provider is a checkout.PaymentTerminal.
type Provider struct {
	cfg        Config
	ops        provider.Operations
	hook       provider.StatusHook
	httpClient *http.Client
	l          *zap.Logger
}

type gatewayResp struct {
	OrderID      string `json:"orderId"`
	Status       string `json:"status"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (r *gatewayResp) err() error {
	switch r.ErrorCode {
	case "", "0":
		return nil
	}
	return errors.Errorf("gateway error %s: %s", r.ErrorCode, r.ErrorMessage)
}

// toMinor converts an amount to cents.
func toMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (p *Provider) call(ctx context.Context, method string, q url.Values) (*gatewayResp, error) {
	_url, err := url.Parse(p.cfg.EntrypointURL + "/payment/rest/" + method)
	if err != nil {
		return nil, errors.Wrap(err, "Failed parse gateway url")
	}
	q.Set("token", p.cfg.Token)
	_url.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, _url.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "Failed new request")
	}
	res, err := p.httpClient.Do(req)
	if err != nil {
		p.l.Warn(
			method+": get url",
			zap.String("url", _url.Path),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &checkout.ConnectionError{Err: err}
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		p.l.Warn(
			method+": read body",
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "Failed read body response from gateway")
	}
	if res.StatusCode >= 500 {
		return nil, &checkout.ConnectionError{Err: errors.Errorf("gateway unavailable: %d", res.StatusCode)}
	}
	var gr gatewayResp
	if err := json.Unmarshal(body, &gr); err != nil {
		p.l.Warn(
			method+": bad unmarshal response from gateway",
			zap.String("body", string(body)),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "Failed unmarshal response from gateway")
	}
	if err := gr.err(); err != nil {
		return nil, err
	}
	return &gr, nil
}

// register starts a payment on the terminal and returns the gateway order id.
func (p *Provider) register(ctx context.Context, req checkout.TerminalRequest) (string, error) {
	q := url.Values{}
	q.Add("amount", strconv.FormatInt(toMinor(req.Amount), 10))
	q.Add("currency", req.Currency)
	q.Add("orderNumber", req.LineID)
	q.Add("description", req.OrderUID)
	if p.cfg.TerminalID != "" {
		q.Add("terminalId", p.cfg.TerminalID)
	}
	gr, err := p.call(ctx, "register.do", q)
	if err != nil {
		return "", errors.Wrap(err, "Failed register payment")
	}
	if gr.OrderID == "" {
		return "", errors.New("gateway returned no order id")
	}
	return gr.OrderID, nil
}

func (p *Provider) orderStatus(ctx context.Context, orderID string) (string, error) {
	q := url.Values{}
	q.Add("orderId", orderID)
	gr, err := p.call(ctx, "getOrderStatus.do", q)
	if err != nil {
		return "", errors.Wrap(err, "Failed get order status")
	}
	return gr.Status, nil
}

// currentStatus prefers a final status delivered by the webhook and asks the gateway otherwise.
func (p *Provider) currentStatus(ctx context.Context, orderID string) (string, error) {
	op, err := p.ops.GetByExtID(ctx, provider.GATEWAY, orderID)
	if err != nil {
		return "", err
	}
	if final(op.RawStatus) {
		return op.RawStatus, nil
	}
	status, err := p.orderStatus(ctx, orderID)
	if err != nil {
		return "", err
	}
	if _, err := p.ops.SetStatus(ctx, provider.GATEWAY, orderID, status); err != nil {
		return "", err
	}
	return status, nil
}

func (p *Provider) operation(ctx context.Context, lineID string) (*provider.TerminalOperation, error) {
	op, err := p.ops.GetByLineID(ctx, provider.GATEWAY, lineID)
	if err != nil {
		return nil, errors.Wrapf(err, "line %s", lineID)
	}
	return op, nil
}
