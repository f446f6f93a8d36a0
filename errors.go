package checkout

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotAllowedTransition        = errors.New("not allowed payment status transition")
	ErrNoTerminal                  = errors.New("payment method has no payment terminal")
	ErrPaymentLineNotFound         = errors.New("payment line not found")
	ErrElectronicPaymentInProgress = errors.New("there is already an electronic payment in progress")
	ErrOrderFinalized              = errors.New("order finalized")
	ErrValidationInProgress        = errors.New("order validation in progress")
	ErrNoPaymentMethod             = errors.New("no payment method configured")
)

// Codes of the backend which leave the cashier on the product screen.
const (
	CodeBackendInvoice  = 401
	CodeInvoiceNotFound = 700
	CodeInvoiceFailed   = 701
)

// CodedError is a structured error reported by the backend or the invoicing service.
type CodedError struct {
	Code    int
	Message string
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// ErrorCode returns the code of the first CodedError in the chain.
func ErrorCode(err error) (int, bool) {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return 0, false
}

// ConnectionError means the remote side was not reachable.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "connection error"
	}
	return "connection error: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
