package gateway

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/gebv/checkout/provider"
)

const tokenHeader = "X-Gateway-Token"

type webhookResp struct {
	OrderID string `json:"orderId"`
	LineID  string `json:"lineId"`
	Status  string `json:"status"`
}

// WebhookHandler stores the statuses pushed by the gateway,
// a running payment request picks them up on its next poll.
func (p *Provider) WebhookHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		if p == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Gateway terminal is not configured.")
		}
		if p.cfg.Token != "" && c.Request().Header.Get(tokenHeader) != p.cfg.Token {
			return echo.NewHTTPError(http.StatusUnauthorized)
		}
		extOrderID := c.QueryParam("orderId")
		status := c.QueryParam("status")
		if extOrderID == "" || status == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "orderId and status are required")
		}
		ctx := c.Request().Context()

		op, err := p.ops.SetStatus(ctx, provider.GATEWAY, extOrderID, status)
		if err != nil {
			if err == provider.ErrOperationNotFound {
				return echo.NewHTTPError(http.StatusNotFound, err.Error())
			}
			p.l.Warn(
				"Failed save status from gateway webhook.",
				zap.String("ext_order_id", extOrderID),
				zap.String("status", status),
				zap.Error(err),
			)
			return err
		}
		p.l.Debug(
			"GatewayWebhook",
			zap.String("ext_order_id", extOrderID),
			zap.String("line_id", op.LineID),
			zap.String("status", status),
		)
		return c.JSON(http.StatusOK, &webhookResp{
			OrderID: op.ExtID,
			LineID:  op.LineID,
			Status:  op.RawStatus,
		})
	}
}
