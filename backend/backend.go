// Package backend pushes finalized orders to the back office.
package backend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opencensus.io/trace"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
)

type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Client is the HTTP backend of the checkout.
type Client struct {
	cfg Config
	c   *client
	l   *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		c:   newClient(&http.Client{Timeout: cfg.Timeout}, cfg.Token),
		l:   zap.L().Named("backend"),
	}
}

func (c *Client) PushOrder(ctx context.Context, o *checkout.Order) ([]checkout.SyncedOrder, error) {
	return c.PushOrders(ctx, []*checkout.ExportedOrder{o.Export()})
}

// PushOrders sends the orders and returns the records the backend acknowledged.
func (c *Client) PushOrders(ctx context.Context, orders []*checkout.ExportedOrder) ([]checkout.SyncedOrder, error) {
	if len(orders) == 0 {
		return []checkout.SyncedOrder{}, nil
	}
	ctx, span := trace.StartSpan(ctx, "checkout.backend.push_orders")
	defer span.End()
	span.AddAttributes(trace.Int64Attribute("orders", int64(len(orders))))

	res := []checkout.SyncedOrder{}
	if err := c.c.POSTAndUnmarshalJson(ctx, strings.TrimRight(c.cfg.URL, "/")+"/orders/sync", orders, &res); err != nil {
		c.l.Warn("Failed push orders.", zap.Int("orders", len(orders)), zap.Error(err))
		span.SetStatus(trace.Status{Code: trace.StatusCodeUnavailable, Message: err.Error()})
		return nil, err
	}
	c.l.Debug("Orders pushed.", zap.Int("orders", len(orders)), zap.Int("synced", len(res)))
	return res, nil
}

var _ checkout.Backend = (*Client)(nil)
