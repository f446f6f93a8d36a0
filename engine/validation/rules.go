package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gebv/checkout"
)

// DefaultRules in the order they are checked.
func DefaultRules() []Rule {
	return []Rule{
		NewRule("rounding", CheckRounding),
		NewRule("empty_order", CheckEmptyOrder),
		NewRule("pending_electronic_payment", CheckPendingElectronicPayment),
		NewRule("split_transactions_partner", CheckSplitTransactionsPartner),
		NewRule("partner_required", CheckPartnerRequired),
		NewRule("shipping_address", CheckShippingAddress),
		NewRule("payment_lines", CheckPaymentLines),
		NewRule("paid", CheckPaid),
		NewRule("not_valid_rounding", CheckNotValidRounding),
		NewRule("change_without_cash", CheckChangeWithoutCash),
		NewRule("large_amount", CheckLargeAmount),
		NewRule("valid_order", CheckValidOrder),
	}
}

func CheckRounding(req *Request) Outcome {
	line, v := req.Order.CheckPaymentLinesRounding()
	if v == nil {
		return Pass()
	}
	return Outcome{
		Reason:    ROUNDING_VIOLATION_R,
		Title:     "Rounding error in payment lines",
		Body:      v.Message(req.Order.Currency.DecimalPlaces),
		Line:      line,
		Violation: v,
	}
}

func CheckEmptyOrder(req *Request) Outcome {
	if len(req.Order.Lines) != 0 || !req.Order.ToInvoice {
		return Pass()
	}
	return Outcome{
		Reason: EMPTY_ORDER_R,
		Title:  "Empty Order",
		Body:   "There must be at least one product in your order before it can be validated and invoiced.",
	}
}

func CheckPendingElectronicPayment(req *Request) Outcome {
	if !req.Order.ElectronicPaymentInProgress() {
		return Pass()
	}
	return Outcome{
		Reason: PENDING_ELECTRONIC_R,
		Title:  "Pending Electronic Payments",
		Body: "There is at least one pending electronic payment.\n" +
			"Please finish the payment with the terminal or cancel it then remove the payment line.",
	}
}

func selectPartnerPrompt(title, body string) *checkout.Prompt {
	return &checkout.Prompt{Kind: checkout.SELECT_PARTNER_PROMPT, Title: title, Body: body}
}

func CheckSplitTransactionsPartner(req *Request) Outcome {
	if req.Order.Partner != nil {
		return Pass()
	}
	for _, l := range req.Order.PaymentLines {
		if l.Method == nil || !l.Method.SplitTransactions {
			continue
		}
		return Outcome{
			Reason: SPLIT_WITHOUT_PARTNER_R,
			Prompt: selectPartnerPrompt(
				"Customer Required",
				fmt.Sprintf("Customer is required for %s payment method.", l.Method.Name),
			),
			Line: l,
		}
	}
	return Pass()
}

func CheckPartnerRequired(req *Request) Outcome {
	o := req.Order
	if o.Partner != nil || !(o.ToInvoice || o.ToShip) {
		return Pass()
	}
	return Outcome{
		Reason: PARTNER_REQUIRED_R,
		Prompt: selectPartnerPrompt(
			"Please select the Customer",
			"You need to select the customer before you can invoice or ship an order.",
		),
	}
}

func CheckShippingAddress(req *Request) Outcome {
	o := req.Order
	if !o.ToShip || o.Partner.HasShippingAddress() {
		return Pass()
	}
	return Outcome{
		Reason: INCOMPLETE_ADDRESS_R,
		Title:  "Incorrect address for shipping",
		Body:   "The selected customer needs an address.",
	}
}

func CheckPaymentLines(req *Request) Outcome {
	o := req.Order
	if o.TotalWithTax().IsZero() || len(o.PaymentLines) != 0 {
		return Pass()
	}
	return Outcome{
		Reason: NO_PAYMENT_LINES_R,
		Body:   "Select a payment method to validate the order.",
		Notice: true,
	}
}

// CheckPaid blocks silently, the due amount is on the screen already.
func CheckPaid(req *Request) Outcome {
	if req.Order.IsPaid() {
		return Pass()
	}
	return Outcome{Reason: NOT_PAID_R}
}

func CheckNotValidRounding(req *Request) Outcome {
	line := req.Order.HasNotValidRounding()
	if line == nil {
		return Pass()
	}
	return Outcome{
		Reason: INCORRECT_ROUNDING_R,
		Title:  "Incorrect rounding",
		Body:   fmt.Sprintf("You have to round your payments lines. %s is not rounded.", line.Amount.String()),
		Line:   line,
	}
}

var exactAmountTolerance = decimal.New(1, -5)

// CheckChangeWithoutCash requires the exact amount when no cash method can give change.
func CheckChangeWithoutCash(req *Request) Outcome {
	o := req.Order
	diff := o.TotalWithTax().Sub(o.TotalPaid()).Add(o.RoundingApplied())
	if !diff.Abs().GreaterThan(exactAmountTolerance) {
		return Pass()
	}
	for _, m := range req.PaymentMethods {
		if m.IsCashCount {
			return Pass()
		}
	}
	return Outcome{
		Reason: NO_CASH_FOR_CHANGE_R,
		Title:  "Cannot return change without a cash payment method",
		Body: "There is no cash payment method available in this point of sale to handle the change.\n\n" +
			"Please pay the exact amount or add a cash payment method in the point of sale configuration",
	}
}

var largeAmountFactor = decimal.NewFromInt(1000)

// CheckLargeAmount asks to confirm a change so large it is probably an input error.
func CheckLargeAmount(req *Request) Outcome {
	o := req.Order
	total, paid := o.TotalWithTax(), o.TotalPaid()
	if req.Force || !total.IsPositive() || !total.Mul(largeAmountFactor).LessThan(paid) {
		return Pass()
	}
	return Outcome{
		Reason: LARGE_AMOUNT_R,
		Prompt: &checkout.Prompt{
			Kind:  checkout.FORCE_VALIDATE_PROMPT,
			Title: "Please Confirm Large Amount",
			Body: fmt.Sprintf("Are you sure that the customer wants to pay %s for an order of %s? Clicking \"Confirm\" will validate the payment.",
				o.Currency.Format(paid), o.Currency.Format(total)),
		},
	}
}

func CheckValidOrder(req *Request) Outcome {
	if req.Order.IsValidEmptyOrder() && req.Order.OwnsPaymentLines() {
		return Pass()
	}
	return Outcome{Reason: INVALID_ORDER_R}
}
