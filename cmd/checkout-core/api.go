package main

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/engine/worker"
	"github.com/gebv/checkout/httputils"
	"github.com/gebv/checkout/provider/gateway"
	"github.com/gebv/checkout/provider/stripe"
	"github.com/gebv/checkout/session"
)

type api struct {
	store    checkout.LocalStore
	syncer   *worker.Syncer
	invoicer checkout.Invoicer
	sessions *session.Manager
	l        *zap.Logger
}

type syncResp struct {
	Synced int `json:"synced"`
}

func (a *api) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": VERSION})
}

func (a *api) listUnsynced(c echo.Context) error {
	orders, err := a.store.ListUnsyncedOrders(c.Request().Context())
	if err != nil {
		a.l.Error("Failed list unsynced orders.", zap.Error(err))
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

func (a *api) syncUnsynced(c echo.Context) error {
	n, err := a.syncer.Sync(c.Request().Context())
	if err != nil {
		if checkout.IsConnectionError(err) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, &syncResp{Synced: n})
}

func (a *api) retrieveInvoice(c echo.Context) error {
	if a.invoicer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Invoicing is not configured.")
	}
	id, err := strconv.ParseInt(c.Param("account_move_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bad account move id")
	}
	if err := a.invoicer.RetrieveInvoiceDocument(c.Request().Context(), id); err != nil {
		if code, ok := checkout.ErrorCode(err); ok {
			return echo.NewHTTPError(http.StatusBadGateway, map[string]interface{}{"code": code, "message": err.Error()})
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func newEcho(a *api, gw *gateway.Provider, st *stripe.Provider) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echo_middleware.Recover())
	e.Use(echo_middleware.BodyLimit("64K"))
	e.Use(httputils.RequestInfoMiddleware(VERSION))

	e.GET("/health", a.health)
	e.GET("/orders/unsynced", a.listUnsynced)
	e.POST("/orders/unsynced/sync", a.syncUnsynced)
	e.POST("/invoices/:account_move_id/retrieve", a.retrieveInvoice)
	e.POST("/webhooks/gateway", gw.WebhookHandler())
	e.POST("/webhooks/stripe", st.WebhookHandler())
	registerOrders(e, a)
	return e
}
