package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/engine/validation"
	"github.com/gebv/checkout/session"
)

type openOrderReq struct {
	Name  string                       `json:"name"`
	Lines []checkout.ExportedOrderLine `json:"lines"`
}

type addPaymentLineReq struct {
	PaymentMethodID int64 `json:"payment_method_id"`
}

// updateLineReq is the numeric pad buffer, a null amount deletes the line.
type updateLineReq struct {
	Amount *decimal.Decimal `json:"amount"`
}

type validateReq struct {
	Force bool `json:"force"`
}

type validateResp struct {
	Eligible   bool              `json:"eligible"`
	Reason     validation.Reason `json:"reason,omitempty"`
	Finalized  bool              `json:"finalized"`
	Offline    bool              `json:"offline,omitempty"`
	NextScreen checkout.Screen   `json:"next_screen,omitempty"`
	View       *session.View     `json:"view"`
}

type partnerReq struct {
	Partner *checkout.Partner `json:"partner"`
}

type tipReq struct {
	Amount decimal.Decimal `json:"amount"`
}

// screenError maps the errors of the payment screen to HTTP statuses.
func screenError(err error) error {
	switch errors.Cause(err) {
	case nil:
		return nil
	case session.ErrNotFound, checkout.ErrPaymentLineNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case checkout.ErrNotAllowedTransition,
		checkout.ErrOrderFinalized,
		checkout.ErrValidationInProgress,
		checkout.ErrElectronicPaymentInProgress:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case checkout.ErrNoTerminal, checkout.ErrNoPaymentMethod:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if checkout.IsConnectionError(err) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return err
}

func (a *api) session(c echo.Context) (*session.Session, error) {
	if a.sessions == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "Payment screens are not configured.")
	}
	s, err := a.sessions.Get(c.Param("uid"))
	if err != nil {
		return nil, screenError(err)
	}
	return s, nil
}

func (a *api) listMethods(c echo.Context) error {
	if a.sessions == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Payment screens are not configured.")
	}
	return c.JSON(http.StatusOK, a.sessions.Methods())
}

func (a *api) openOrder(c echo.Context) error {
	if a.sessions == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Payment screens are not configured.")
	}
	var req openOrderReq
	if err := c.Bind(&req); err != nil {
		return err
	}
	s := a.sessions.Open(req.Name, req.Lines)
	return c.JSON(http.StatusCreated, s.View())
}

func (a *api) getOrder(c echo.Context) error {
	s, err := a.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.View())
}

func (a *api) closeOrder(c echo.Context) error {
	if a.sessions == nil || !a.sessions.Close(c.Param("uid")) {
		return echo.NewHTTPError(http.StatusNotFound, "Payment screen not found.")
	}
	return c.NoContent(http.StatusNoContent)
}

// update runs fn on the payment screen and answers with its view.
func (a *api) update(fn func(c echo.Context, s *session.Session) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := a.session(c)
		if err != nil {
			return err
		}
		if err := fn(c, s); err != nil {
			return screenError(err)
		}
		return c.JSON(http.StatusOK, s.View())
	}
}

func (a *api) addPaymentLine(c echo.Context, s *session.Session) error {
	var req addPaymentLineReq
	if err := c.Bind(&req); err != nil {
		return err
	}
	m, ok := a.sessions.Method(req.PaymentMethodID)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown payment method.")
	}
	_, err := s.Controller.AddNewPaymentLine(c.Request().Context(), m)
	return err
}

func (a *api) updateSelectedLine(c echo.Context, s *session.Session) error {
	var req updateLineReq
	if err := c.Bind(&req); err != nil {
		return err
	}
	return s.Controller.UpdateSelectedPaymentLine(c.Request().Context(), req.Amount)
}

func (a *api) selectLine(c echo.Context, s *session.Session) error {
	return s.Controller.SelectPaymentLine(c.Param("line_id"))
}

func (a *api) deleteLine(c echo.Context, s *session.Session) error {
	return s.Controller.DeletePaymentLine(c.Request().Context(), c.Param("line_id"))
}

func (a *api) cancelLine(c echo.Context, s *session.Session) error {
	return s.Controller.SendPaymentCancel(c.Request().Context(), c.Param("line_id"))
}

func (a *api) reverseLine(c echo.Context, s *session.Session) error {
	return s.Controller.SendPaymentReverse(c.Request().Context(), c.Param("line_id"))
}

func (a *api) forceDoneLine(c echo.Context, s *session.Session) error {
	return s.Controller.SendForceDone(c.Request().Context(), c.Param("line_id"))
}

// requestLine starts the payment on the terminal, the outcome shows up in the view.
func (a *api) requestLine(c echo.Context) error {
	s, err := a.session(c)
	if err != nil {
		return err
	}
	lineID := c.Param("line_id")
	o := s.Controller.Order()
	o.Lock()
	finalized := o.Finalized
	line, err := o.FindPaymentLine(lineID)
	o.Unlock()
	if finalized {
		return screenError(checkout.ErrOrderFinalized)
	}
	if err != nil {
		return screenError(err)
	}
	if !line.Method.HasTerminal() {
		return screenError(checkout.ErrNoTerminal)
	}
	a.sessions.RequestPayment(s, lineID)
	return c.JSON(http.StatusAccepted, s.View())
}

func (a *api) setPartner(c echo.Context, s *session.Session) error {
	var req partnerReq
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Partner == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Partner is required.")
	}
	s.UI.OfferPartner(req.Partner)
	return s.Controller.SelectPartner(c.Request().Context())
}

func (a *api) setTip(c echo.Context, s *session.Session) error {
	var req tipReq
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Amount.IsNegative() {
		return echo.NewHTTPError(http.StatusBadRequest, "Tip can not be negative.")
	}
	s.UI.OfferNumber(req.Amount)
	return s.Controller.AddTip(c.Request().Context())
}

func (a *api) toggleInvoice(c echo.Context, s *session.Session) error {
	s.Controller.ToggleIsToInvoice()
	return nil
}

func (a *api) toggleShip(c echo.Context, s *session.Session) error {
	s.Controller.ToggleIsToShip()
	return nil
}

func (a *api) openCashbox(c echo.Context, s *session.Session) error {
	return s.Controller.OpenCashbox(c.Request().Context())
}

func (a *api) validateOrder(c echo.Context) error {
	s, err := a.session(c)
	if err != nil {
		return err
	}
	var req validateReq
	if err := c.Bind(&req); err != nil {
		return err
	}
	res, err := s.Controller.ValidateOrder(c.Request().Context(), req.Force)
	if err != nil && (res == nil || res.Finalized == nil) {
		return screenError(err)
	}
	resp := &validateResp{
		Eligible: res.Outcome.Eligible,
		Reason:   res.Outcome.Reason,
	}
	if res.Finalized != nil {
		resp.Finalized = true
		resp.Offline = res.Finalized.Offline
		resp.NextScreen = res.Finalized.NextScreen
	}
	resp.View = s.View()
	return c.JSON(http.StatusOK, resp)
}

func registerOrders(e *echo.Echo, a *api) {
	e.GET("/payment_methods", a.listMethods)
	e.POST("/orders", a.openOrder)
	e.GET("/orders/:uid", a.getOrder)
	e.DELETE("/orders/:uid", a.closeOrder)

	e.POST("/orders/:uid/payment_lines", a.update(a.addPaymentLine))
	e.PUT("/orders/:uid/payment_lines/selected", a.update(a.updateSelectedLine))
	e.POST("/orders/:uid/payment_lines/:line_id/select", a.update(a.selectLine))
	e.DELETE("/orders/:uid/payment_lines/:line_id", a.update(a.deleteLine))
	e.POST("/orders/:uid/payment_lines/:line_id/request", a.requestLine)
	e.POST("/orders/:uid/payment_lines/:line_id/cancel", a.update(a.cancelLine))
	e.POST("/orders/:uid/payment_lines/:line_id/reverse", a.update(a.reverseLine))
	e.POST("/orders/:uid/payment_lines/:line_id/force_done", a.update(a.forceDoneLine))

	e.PUT("/orders/:uid/partner", a.update(a.setPartner))
	e.PUT("/orders/:uid/tip", a.update(a.setTip))
	e.POST("/orders/:uid/to_invoice", a.update(a.toggleInvoice))
	e.POST("/orders/:uid/to_ship", a.update(a.toggleShip))
	e.POST("/orders/:uid/cashbox", a.update(a.openCashbox))
	e.POST("/orders/:uid/validate", a.validateOrder)
}
