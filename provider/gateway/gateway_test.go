package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/provider"
)

type fakeGateway struct {
	mu       sync.Mutex
	statuses []string
	calls    []string
	amounts  []string
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	method := path.Base(r.URL.Path)
	g.calls = append(g.calls, method)
	if r.URL.Query().Get("token") != "secret" {
		w.Write([]byte(`{"errorCode":"5","errorMessage":"access denied"}`))
		return
	}
	resp := gatewayResp{ErrorCode: "0"}
	switch method {
	case "register.do":
		g.amounts = append(g.amounts, r.URL.Query().Get("amount"))
		resp.OrderID = "gw-1"
	case "getOrderStatus.do":
		resp.Status = g.statuses[0]
		if len(g.statuses) > 1 {
			g.statuses = g.statuses[1:]
		}
	case "reverse.do":
		g.amounts = append(g.amounts, r.URL.Query().Get("amount"))
	}
	json.NewEncoder(w).Encode(resp)
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type hookRecorder struct {
	mu       sync.Mutex
	statuses []checkout.PaymentStatus
	then     func(status checkout.PaymentStatus)
}

func (h *hookRecorder) hook(ctx context.Context, orderUID, lineID string, status checkout.PaymentStatus) {
	h.mu.Lock()
	h.statuses = append(h.statuses, status)
	then := h.then
	h.mu.Unlock()
	if then != nil {
		then(status)
	}
}

func setup(t *testing.T, reversals bool, statuses ...string) (*Provider, *fakeGateway, *hookRecorder, provider.Operations) {
	g := &fakeGateway{statuses: statuses}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	h := &hookRecorder{}
	ops := provider.NewMemoryStore()
	p := NewProvider(Config{
		EntrypointURL: srv.URL,
		Token:         "secret",
		PollInterval:  5 * time.Millisecond,
		Timeout:       2 * time.Second,
		Reversals:     reversals,
	}, ops, h.hook)
	return p, g, h, ops
}

func testRequest() checkout.TerminalRequest {
	return checkout.TerminalRequest{
		OrderUID: "order-1",
		LineID:   "line-1",
		Amount:   decimal.RequireFromString("12.34"),
		Currency: "EUR",
	}
}

func TestProvider_SendPaymentRequest(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		wantErr  bool
		hooked   []checkout.PaymentStatus
	}{
		{"approved", []string{CREATED, WAITING_CARD, WAITING_CARD, APPROVED}, false, []checkout.PaymentStatus{checkout.WAITING_CARD_PS}},
		{"approved after timeout", []string{WAITING_CARD, TIMEOUT, APPROVED}, false, []checkout.PaymentStatus{checkout.WAITING_CARD_PS, checkout.TIMEOUT_PS}},
		{"declined", []string{WAITING_CARD, DECLINED}, true, []checkout.PaymentStatus{checkout.WAITING_CARD_PS}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, g, h, ops := setup(t, false, tt.statuses...)

			err := p.SendPaymentRequest(context.Background(), testRequest())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.hooked, h.statuses)
			assert.Equal(t, "1234", g.amounts[0])

			op, err := ops.GetByLineID(context.Background(), provider.GATEWAY, "line-1")
			require.NoError(t, err)
			assert.Equal(t, "gw-1", op.ExtID)
			assert.Equal(t, "order-1", op.OrderUID)
			assert.Equal(t, tt.statuses[len(tt.statuses)-1], op.RawStatus)
		})
	}
}

func TestProvider_SendPaymentRequest_contextDone(t *testing.T) {
	p, _, _, _ := setup(t, false, WAITING_CARD)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.SendPaymentRequest(ctx, testRequest())
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestProvider_SendPaymentRequest_accessDenied(t *testing.T) {
	p, _, _, _ := setup(t, false, APPROVED)
	p.cfg.Token = "wrong"
	err := p.SendPaymentRequest(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestProvider_SendPaymentCancel(t *testing.T) {
	p, g, h, _ := setup(t, false, WAITING_CARD)
	h.then = func(status checkout.PaymentStatus) {
		assert.NoError(t, p.SendPaymentCancel(context.Background(), "order-1", "line-1"))
	}

	err := p.SendPaymentRequest(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Contains(t, g.Calls(), "cancel.do")
}

func TestProvider_SendPaymentCancel_unknownLine(t *testing.T) {
	p, _, _, _ := setup(t, false, WAITING_CARD)
	err := p.SendPaymentCancel(context.Background(), "order-1", "nope")
	assert.ErrorIs(t, err, provider.ErrOperationNotFound)
}

func TestProvider_SendPaymentReversal(t *testing.T) {
	p, g, _, ops := setup(t, true, APPROVED)
	assert.True(t, p.SupportsReversals())

	require.NoError(t, p.SendPaymentRequest(context.Background(), testRequest()))
	require.NoError(t, p.SendPaymentReversal(context.Background(), testRequest()))
	assert.Equal(t, []string{"1234", "1234"}, g.amounts)

	op, err := ops.GetByLineID(context.Background(), provider.GATEWAY, "line-1")
	require.NoError(t, err)
	assert.Equal(t, REVERSED, op.RawStatus)

	// only approved payments go back to the card
	assert.Error(t, p.SendPaymentReversal(context.Background(), testRequest()))
}

func TestProvider_WebhookHandler(t *testing.T) {
	p, _, h, _ := setup(t, false, WAITING_CARD)
	e := echo.New()
	e.POST("/gateway/webhook", p.WebhookHandler())

	send := func(token, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/gateway/webhook?"+query, nil)
		req.Header.Set(tokenHeader, token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	// the gateway keeps answering waiting card, the approval comes through the webhook
	var codes []int
	h.then = func(status checkout.PaymentStatus) {
		codes = append(codes, send("wrong", "orderId=gw-1&status=APPROVED").Code)
		codes = append(codes, send("secret", "orderId=gw-2&status=APPROVED").Code)
		codes = append(codes, send("secret", "orderId=gw-1").Code)
		rec := send("secret", "orderId=gw-1&status=APPROVED")
		codes = append(codes, rec.Code)
		assert.JSONEq(t, `{"orderId":"gw-1","lineId":"line-1","status":"APPROVED"}`, rec.Body.String())
	}

	require.NoError(t, p.SendPaymentRequest(context.Background(), testRequest()))
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusBadRequest, http.StatusOK}, codes)
}
