package engine

import (
	"github.com/pkg/errors"

	"github.com/gebv/checkout"
)

// PaymentEvent moves a payment line through the transition chart.
type PaymentEvent string

func (e PaymentEvent) Match(in PaymentEvent) bool {
	return e == in
}

const (
	REQUEST_EV           PaymentEvent = "request"
	REQUEST_SUCCEEDED_EV PaymentEvent = "request_succeeded"
	REQUEST_FAILED_EV    PaymentEvent = "request_failed"
	CARD_WAITING_EV      PaymentEvent = "card_waiting"
	TIMED_OUT_EV         PaymentEvent = "timed_out"
	CANCEL_EV            PaymentEvent = "cancel"
	CANCEL_SUCCEEDED_EV  PaymentEvent = "cancel_succeeded"
	CANCEL_FAILED_EV     PaymentEvent = "cancel_failed"
	REVERSE_EV           PaymentEvent = "reverse"
	REVERSE_SUCCEEDED_EV PaymentEvent = "reverse_succeeded"
	REVERSE_FAILED_EV    PaymentEvent = "reverse_failed"
	FORCE_DONE_EV        PaymentEvent = "force_done"
)

var paymentStatusTransitionChart = PaymentStatusTransitionChart{
	checkout.OPEN_PS: {
		REQUEST_EV: checkout.WAITING_PS,
	},
	checkout.RETRY_PS: {
		REQUEST_EV: checkout.WAITING_PS,
	},
	checkout.WAITING_PS: {
		REQUEST_SUCCEEDED_EV: checkout.DONE_PS,
		REQUEST_FAILED_EV:    checkout.RETRY_PS,
		CARD_WAITING_EV:      checkout.WAITING_CARD_PS,
		TIMED_OUT_EV:         checkout.TIMEOUT_PS,
		CANCEL_EV:            checkout.WAITING_CANCEL_PS,
	},
	checkout.WAITING_CARD_PS: {
		REQUEST_SUCCEEDED_EV: checkout.DONE_PS,
		REQUEST_FAILED_EV:    checkout.RETRY_PS,
		TIMED_OUT_EV:         checkout.TIMEOUT_PS,
		CANCEL_EV:            checkout.WAITING_CANCEL_PS,
	},
	checkout.TIMEOUT_PS: {
		REQUEST_SUCCEEDED_EV: checkout.DONE_PS,
		REQUEST_FAILED_EV:    checkout.RETRY_PS,
		CANCEL_EV:            checkout.WAITING_CANCEL_PS,
	},
	// the outcome of the cancel decides, a failed request keeps waiting for it
	checkout.WAITING_CANCEL_PS: {
		CANCEL_SUCCEEDED_EV:  checkout.RETRY_PS,
		CANCEL_FAILED_EV:     checkout.WAITING_CARD_PS,
		REQUEST_SUCCEEDED_EV: checkout.DONE_PS,
		REQUEST_FAILED_EV:    checkout.WAITING_CANCEL_PS,
	},
	checkout.DONE_PS: {
		REVERSE_EV: checkout.REVERSING_PS,
	},
	checkout.REVERSING_PS: {
		REVERSE_SUCCEEDED_EV: checkout.REVERSED_PS,
		REVERSE_FAILED_EV:    checkout.DONE_PS,
	},
}

// PaymentStatusTransitionChart maps a status and an event to the next status.
// FORCE_DONE_EV is allowed from any status.
type PaymentStatusTransitionChart map[checkout.PaymentStatus]map[PaymentEvent]checkout.PaymentStatus

func (s PaymentStatusTransitionChart) Next(from checkout.PaymentStatus, ev PaymentEvent) (checkout.PaymentStatus, error) {
	if ev.Match(FORCE_DONE_EV) && from.Valid() {
		return checkout.DONE_PS, nil
	}
	events, exists := s[from]
	if !exists {
		return from, errors.Wrapf(checkout.ErrNotAllowedTransition, "%s from %s", ev, from)
	}
	to, exists := events[ev]
	if !exists {
		return from, errors.Wrapf(checkout.ErrNotAllowedTransition, "%s from %s", ev, from)
	}
	return to, nil
}

func (s PaymentStatusTransitionChart) Allowed(from checkout.PaymentStatus, ev PaymentEvent) bool {
	_, err := s.Next(from, ev)
	return err == nil
}

// Transition applies the event to the line status.
func Transition(line *checkout.PaymentLine, ev PaymentEvent) error {
	to, err := paymentStatusTransitionChart.Next(line.Status, ev)
	if err != nil {
		return err
	}
	line.Status = to
	return nil
}
