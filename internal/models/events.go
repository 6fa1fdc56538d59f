package models

import "time"

// Event types
const (
	EventTypeCheckoutSettled    = "CHECKOUT_SETTLED"
	EventTypeCheckoutDeclined   = "CHECKOUT_DECLINED"
	EventTypeCheckoutFailed     = "CHECKOUT_FAILED"
	EventTypeCartClearFailed    = "CART_CLEAR_FAILED"
	EventTypeLedgerRepair       = "CHECKOUT_LEDGER_REPAIR"
	EventTypeCategoryReparented = "CATEGORY_REPARENTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutSettledEvent published when a charge was created
type CheckoutSettledEvent struct {
	BaseEvent
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
	ChargeID   string `json:"charge_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// CheckoutDeclinedEvent published when the gateway declined the card
type CheckoutDeclinedEvent struct {
	BaseEvent
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
	Reason     string `json:"reason"`
}

// CheckoutFailedEvent published on gateway or infrastructure failure
type CheckoutFailedEvent struct {
	BaseEvent
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
	Reason     string `json:"reason"`
	Timeout    bool   `json:"timeout"`
}

// CartClearFailedEvent published when a settled checkout could not empty the cart.
// Cart is the snapshot that was charged.
type CartClearFailedEvent struct {
	BaseEvent
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
	ChargeID   string `json:"charge_id"`
	Cart       Cart   `json:"cart"`
	Reason     string `json:"reason"`
}

// LedgerRepairEvent carries a terminal outcome the pipeline could not write
// to the ledger. The record is still CHARGING until a consumer applies it.
type LedgerRepairEvent struct {
	BaseEvent
	CheckoutID string         `json:"checkout_id"`
	UserID     string         `json:"user_id"`
	Status     CheckoutStatus `json:"status"`
	ChargeID   *string        `json:"charge_id,omitempty"`
	Message    *string        `json:"message,omitempty"`
}

// CategoryReparentedEvent is issued by catalog management when a category
// moves. Parent is nil for a move to the root.
type CategoryReparentedEvent struct {
	BaseEvent
	CategoryID string  `json:"category_id"`
	Parent     *string `json:"parent"`
}
