// Package session keeps the payment screens open on the node, one per order.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/engine"
	"github.com/gebv/checkout/engine/finalize"
	"github.com/gebv/checkout/engine/validation"
	"github.com/gebv/checkout/rounding"
	"github.com/gebv/checkout/screen"
)

var ErrNotFound = errors.New("payment screen not found")

type Config struct {
	Currency checkout.Currency
	Rounding rounding.Config
	Finalize finalize.Config
}

// Notifier publishes payment line changes and finalized orders.
type Notifier interface {
	engine.Notifier
	finalize.Notifier
}

type Deps struct {
	Methods    []*checkout.PaymentMethod
	Backend    checkout.Backend
	Invoicer   checkout.Invoicer
	Store      checkout.LocalStore
	CashDrawer checkout.CashDrawer
	Syncer     finalize.Syncer
	Notifier   Notifier
}

// Session is the payment screen of one order.
type Session struct {
	Controller *screen.Controller
	UI         *UI
}

type View struct {
	Order    *checkout.ExportedOrder `json:"order"`
	Due      decimal.Decimal         `json:"due"`
	Change   decimal.Decimal         `json:"change"`
	Selected string                  `json:"selected_line_id,omitempty"`
	MaxValue *decimal.Decimal        `json:"max_value,omitempty"`
	UI       UIState                 `json:"ui"`
}

func (s *Session) View() *View {
	nb := s.Controller.NumberBufferConfig()
	o := s.Controller.Order()
	o.Lock()
	v := &View{
		Order:    o.Export(),
		Due:      o.Due(),
		Change:   o.Change(),
		MaxValue: nb.MaxValue,
	}
	if line := o.SelectedPaymentLine(); line != nil {
		v.Selected = line.ID
	}
	o.Unlock()
	v.UI = s.UI.State()
	return v
}

// Manager owns the open payment screens. Payment lines, validation and
// methods are shared, every screen gets its own pipeline.
type Manager struct {
	ctx       context.Context
	cfg       Config
	d         Deps
	lines     *engine.PaymentLines
	validator *validation.Engine

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
	l        *zap.Logger
}

// NewManager returns a manager. Background payment requests run until ctx is done.
func NewManager(ctx context.Context, cfg Config, d Deps) *Manager {
	var n engine.Notifier
	if d.Notifier != nil {
		n = d.Notifier
	}
	return &Manager{
		ctx:       ctx,
		cfg:       cfg,
		d:         d,
		lines:     engine.NewPaymentLines(n),
		validator: validation.Default(),
		sessions:  make(map[string]*Session),
		l:         zap.L().Named("sessions"),
	}
}

// Open creates an order with the lines and its payment screen.
func (m *Manager) Open(name string, lines []checkout.ExportedOrderLine) *Session {
	o := checkout.NewOrder(name, m.cfg.Currency, m.cfg.Rounding)
	for _, l := range lines {
		o.AddOrderLine(l.ProductID, l.Name, l.Quantity, l.PriceWithTax)
	}

	ui := NewUI()
	fd := finalize.Deps{
		Backend:    m.d.Backend,
		Invoicer:   m.d.Invoicer,
		Store:      m.d.Store,
		UI:         ui,
		CashDrawer: m.d.CashDrawer,
		Syncer:     m.d.Syncer,
	}
	if m.d.Notifier != nil {
		fd.Notifier = m.d.Notifier
	}
	s := &Session{
		Controller: screen.New(o, m.d.Methods, screen.Deps{
			UI:         ui,
			Lines:      m.lines,
			Validator:  m.validator,
			Pipeline:   finalize.New(m.cfg.Finalize, fd),
			CashDrawer: m.d.CashDrawer,
		}),
		UI: ui,
	}

	m.mu.Lock()
	m.sessions[o.UID] = s
	m.mu.Unlock()
	m.l.Debug("Payment screen opened.", zap.String("order_uid", o.UID), zap.String("name", name))
	return s
}

func (m *Manager) Get(uid string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uid]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "order %s", uid)
	}
	return s, nil
}

// Close forgets the payment screen. A payment running on a terminal is left
// to finish in the background.
func (m *Manager) Close(uid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[uid]
	delete(m.sessions, uid)
	return ok
}

func (m *Manager) Method(id int64) (*checkout.PaymentMethod, bool) {
	for _, pm := range m.d.Methods {
		if pm.ID == id {
			return pm, true
		}
	}
	return nil, false
}

func (m *Manager) Methods() []*checkout.PaymentMethod {
	return m.d.Methods
}

// RequestPayment sends the payment request of the line without waiting for
// the terminal. A failure is shown on the payment screen.
func (m *Manager) RequestPayment(s *Session, lineID string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := s.Controller.SendPaymentRequest(m.ctx, lineID)
		if err == nil {
			return
		}
		m.l.Warn("Failed payment request.",
			zap.String("order_uid", s.Controller.Order().UID),
			zap.String("line_id", lineID),
			zap.Error(err))
		s.UI.ShowError("Payment request failed", err.Error())
	}()
}

// ApplyTerminalStatus routes a terminal status to the payment screen of the order.
// Statuses arriving after the line moved on are dropped.
func (m *Manager) ApplyTerminalStatus(ctx context.Context, orderUID, lineID string, status checkout.PaymentStatus) error {
	s, err := m.Get(orderUID)
	if err != nil {
		return err
	}
	err = s.Controller.ApplyTerminalStatus(ctx, lineID, status)
	switch errors.Cause(err) {
	case checkout.ErrNotAllowedTransition, checkout.ErrOrderFinalized:
		m.l.Debug("Stale terminal status.",
			zap.String("order_uid", orderUID),
			zap.String("line_id", lineID),
			zap.String("status", string(status)))
		return nil
	}
	return err
}

// Wait blocks until the background payment requests are done.
func (m *Manager) Wait() {
	m.wg.Wait()
}
