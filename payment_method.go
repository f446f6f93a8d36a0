package checkout

type MethodType string

func (t MethodType) Match(in MethodType) bool {
	return t == in
}

const (
	CASH_METHOD       MethodType = "cash"
	ELECTRONIC_METHOD MethodType = "electronic"
	OTHER_METHOD      MethodType = "other"
)

// PaymentMethod is a configured way of paying. Read-only for the checkout.
type PaymentMethod struct {
	ID                int64      `json:"id" yaml:"id"`
	Name              string     `json:"name" yaml:"name"`
	Type              MethodType `json:"type" yaml:"type"`
	IsCashCount       bool       `json:"is_cash_count" yaml:"is_cash_count"`
	SplitTransactions bool       `json:"split_transactions" yaml:"split_transactions"`

	terminal PaymentTerminal
}

// NewManualMethod returns a method settled by the cashier (cash, bank transfer, voucher).
func NewManualMethod(id int64, name string, typ MethodType) *PaymentMethod {
	return &PaymentMethod{
		ID:          id,
		Name:        name,
		Type:        typ,
		IsCashCount: typ.Match(CASH_METHOD),
	}
}

// NewElectronicMethod returns a method settled by the payment terminal.
func NewElectronicMethod(id int64, name string, terminal PaymentTerminal) *PaymentMethod {
	if terminal == nil {
		panic("checkout: electronic payment method without terminal")
	}
	return &PaymentMethod{
		ID:       id,
		Name:     name,
		Type:     ELECTRONIC_METHOD,
		terminal: terminal,
	}
}

func (m *PaymentMethod) Terminal() (PaymentTerminal, bool) {
	if m == nil || m.terminal == nil {
		return nil, false
	}
	return m.terminal, true
}

func (m *PaymentMethod) HasTerminal() bool {
	_, ok := m.Terminal()
	return ok
}
