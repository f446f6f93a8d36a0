package session

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gebv/checkout"
)

const maxEvents = 50

type EventKind string

const (
	SCREEN_EVENT        EventKind = "screen"
	PROMPT_EVENT        EventKind = "prompt"
	ERROR_EVENT         EventKind = "error"
	OFFLINE_ERROR_EVENT EventKind = "offline_error"
	NOTIFICATION_EVENT  EventKind = "notification"
)

// Event is something the payment screen showed to the cashier.
type Event struct {
	Kind   EventKind           `json:"kind"`
	Title  string              `json:"title,omitempty"`
	Body   string              `json:"body,omitempty"`
	Prompt checkout.PromptKind `json:"prompt,omitempty"`
	At     time.Time           `json:"at"`
}

type UIState struct {
	Screen  checkout.Screen `json:"screen,omitempty"`
	Blocked bool            `json:"blocked"`
	Events  []Event         `json:"events"`
}

// UI is the payment screen of a remote client. It records what would be
// shown and answers the dialogs with the values offered by the client
// beforehand.
//
// Prompts are declined except the sync of unsynced orders, the client
// answers them by repeating the action (validate with force, pick a partner).
type UI struct {
	mu sync.Mutex

	screen  checkout.Screen
	blocks  int
	events  []Event
	partner *checkout.Partner
	number  *decimal.Decimal
}

func NewUI() *UI {
	return &UI{}
}

func (u *UI) record(e Event) {
	e.At = time.Now()
	u.events = append(u.events, e)
	if len(u.events) > maxEvents {
		u.events = u.events[len(u.events)-maxEvents:]
	}
}

func (u *UI) Block() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.blocks++
}

func (u *UI) Unblock() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.blocks > 0 {
		u.blocks--
	}
}

func (u *UI) ShowScreen(s checkout.Screen) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.screen = s
	u.record(Event{Kind: SCREEN_EVENT, Title: string(s)})
}

func (u *UI) Confirm(ctx context.Context, p checkout.Prompt) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.record(Event{Kind: PROMPT_EVENT, Title: p.Title, Body: p.Body, Prompt: p.Kind})
	return p.Kind == checkout.SYNC_ORDERS_PROMPT, nil
}

func (u *UI) ShowError(title, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.record(Event{Kind: ERROR_EVENT, Title: title, Body: body})
}

func (u *UI) ShowOfflineError(title, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.record(Event{Kind: OFFLINE_ERROR_EVENT, Title: title, Body: body})
}

func (u *UI) ShowNotification(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.record(Event{Kind: NOTIFICATION_EVENT, Body: msg})
}

// ResetNumberBuffer does nothing, the client keeps its own buffer.
func (u *UI) ResetNumberBuffer() {}

// OfferPartner sets the answer of the next partner selection.
func (u *UI) OfferPartner(p *checkout.Partner) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.partner = p
}

// OfferNumber sets the answer of the next number input.
func (u *UI) OfferNumber(v decimal.Decimal) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.number = &v
}

func (u *UI) SelectPartner(ctx context.Context, current *checkout.Partner) (*checkout.Partner, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p := u.partner
	u.partner = nil
	if p == nil {
		return current, false, nil
	}
	return p, true, nil
}

func (u *UI) AskNumber(ctx context.Context, title string, start decimal.Decimal) (decimal.Decimal, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v := u.number
	u.number = nil
	if v == nil {
		return start, false, nil
	}
	return *v, true, nil
}

func (u *UI) State() UIState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return UIState{
		Screen:  u.screen,
		Blocked: u.blocks > 0,
		Events:  append([]Event{}, u.events...),
	}
}
