package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SyncedOrder is a record acknowledged by the backend.
type SyncedOrder struct {
	UID           string `json:"uid"`
	ServerID      int64  `json:"id"`
	AccountMoveID *int64 `json:"account_move,omitempty"`
}

// Backend commits orders.
type Backend interface {
	PushOrder(ctx context.Context, o *Order) ([]SyncedOrder, error)
	PushOrders(ctx context.Context, orders []*ExportedOrder) ([]SyncedOrder, error)
}

// Invoicer retrieves the invoice document of an account move.
type Invoicer interface {
	RetrieveInvoiceDocument(ctx context.Context, accountMoveID int64) error
}

// LocalStore keeps the orders not yet acknowledged by the backend.
type LocalStore interface {
	SaveUnsyncedOrder(ctx context.Context, o *ExportedOrder) error
	RemoveUnsyncedOrder(ctx context.Context, uid string) error
	ListUnsyncedOrders(ctx context.Context) ([]*ExportedOrder, error)
}

type CashDrawer interface {
	Open(ctx context.Context) error
}

type Screen string

const (
	RECEIPT_SCREEN Screen = "ReceiptScreen"
	PRODUCT_SCREEN Screen = "ProductScreen"
)

type PromptKind string

const (
	SELECT_PARTNER_PROMPT PromptKind = "select_partner"
	FORCE_VALIDATE_PROMPT PromptKind = "force_validate"
	SYNC_ORDERS_PROMPT    PromptKind = "sync_orders"
)

// Prompt is a confirmation asked to the cashier.
type Prompt struct {
	Kind  PromptKind
	Title string
	Body  string
}

// UI is the rendering layer of the payment screen.
type UI interface {
	Block()
	Unblock()
	ShowScreen(s Screen)
	Confirm(ctx context.Context, p Prompt) (bool, error)
	ShowError(title, body string)
	ShowOfflineError(title, body string)
	ShowNotification(msg string)
	ResetNumberBuffer()
	SelectPartner(ctx context.Context, current *Partner) (*Partner, bool, error)
	AskNumber(ctx context.Context, title string, start decimal.Decimal) (decimal.Decimal, bool, error)
}

type ExportedOrderLine struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"qty"`
	PriceWithTax decimal.Decimal `json:"price_unit_incl"`
}

type ExportedPaymentLine struct {
	ID              string          `json:"id"`
	PaymentMethodID int64           `json:"payment_method_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          PaymentStatus   `json:"payment_status"`
}

// ExportedOrder is the serializable form of an order.
type ExportedOrder struct {
	UID            string                `json:"uid"`
	Name           string                `json:"name"`
	CreatedAt      time.Time             `json:"creation_date"`
	ValidationDate *time.Time            `json:"validation_date,omitempty"`
	Lines          []ExportedOrderLine   `json:"lines"`
	PaymentLines   []ExportedPaymentLine `json:"payment_lines"`
	PartnerID      *int64                `json:"partner_id,omitempty"`
	ToInvoice      bool                  `json:"to_invoice"`
	ToShip         bool                  `json:"to_ship"`
	AmountTotal    decimal.Decimal       `json:"amount_total"`
	AmountPaid     decimal.Decimal       `json:"amount_paid"`
	AmountReturn   decimal.Decimal       `json:"amount_return"`
	Tip            decimal.Decimal       `json:"tip_amount"`
	Currency       string                `json:"currency"`
}

func (o *Order) Export() *ExportedOrder {
	e := &ExportedOrder{
		UID:          o.UID,
		Name:         o.Name,
		CreatedAt:    o.CreatedAt,
		Lines:        make([]ExportedOrderLine, 0, len(o.Lines)),
		PaymentLines: make([]ExportedPaymentLine, 0, len(o.PaymentLines)),
		ToInvoice:    o.ToInvoice,
		ToShip:       o.ToShip,
		AmountTotal:  o.TotalWithTax(),
		AmountPaid:   o.TotalPaid(),
		AmountReturn: o.Change(),
		Tip:          o.Tip,
		Currency:     o.Currency.Name,
	}
	if !o.ValidationDate.IsZero() {
		d := o.ValidationDate
		e.ValidationDate = &d
	}
	if o.Partner != nil {
		id := o.Partner.ID
		e.PartnerID = &id
	}
	for _, l := range o.Lines {
		e.Lines = append(e.Lines, ExportedOrderLine{
			ProductID:    l.ProductID,
			Name:         l.Name,
			Quantity:     l.Quantity,
			PriceWithTax: l.PriceWithTax,
		})
	}
	for _, l := range o.PaymentLines {
		var methodID int64
		if l.Method != nil {
			methodID = l.Method.ID
		}
		e.PaymentLines = append(e.PaymentLines, ExportedPaymentLine{
			ID:              l.ID,
			PaymentMethodID: methodID,
			Amount:          l.Amount,
			Status:          l.Status,
		})
	}
	return e
}
