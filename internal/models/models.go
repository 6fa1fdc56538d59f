package models

import "time"

// Category is a node in the catalog tree. Ancestors runs from the root down to
// the parent and never contains the category itself.
type Category struct {
	ID        string   `bson:"_id" json:"_id"`
	Parent    *string  `bson:"parent,omitempty" json:"parent,omitempty"`
	Ancestors []string `bson:"ancestors" json:"ancestors"`
}

// ParentID returns the parent id or "" for a root category.
func (c *Category) ParentID() string {
	if c.Parent == nil {
		return ""
	}
	return *c.Parent
}

// Closure is the category's ancestors plus its own id.
func (c *Category) Closure() []string {
	closure := make([]string, 0, len(c.Ancestors)+1)
	closure = append(closure, c.Ancestors...)
	return append(closure, c.ID)
}

// Price is a listed price in minor units of Currency.
type Price struct {
	Amount   int64  `bson:"amount" json:"amount"`
	Currency string `bson:"currency" json:"currency"`
}

// ProductCategory is the denormalized category reference stored on a product.
// Ancestors includes ID.
type ProductCategory struct {
	ID        string   `bson:"_id" json:"_id"`
	Ancestors []string `bson:"ancestors" json:"ancestors"`
}

// ProductInternal holds fields that are not part of the listing itself.
type ProductInternal struct {
	ApproximatePriceUSD float64 `bson:"approximatePriceUSD" json:"approximatePriceUSD"`
}

// Product represents a product in the catalog
type Product struct {
	ID          string          `bson:"_id" json:"_id"`
	Name        string          `bson:"name" json:"name"`
	Description string          `bson:"description,omitempty" json:"description,omitempty"`
	Pictures    []string        `bson:"pictures,omitempty" json:"pictures,omitempty"`
	Category    ProductCategory `bson:"category" json:"category"`
	Price       Price           `bson:"price" json:"price"`
	Internal    ProductInternal `bson:"internal" json:"internal"`
}

// InCategory reports whether the product sits in categoryID or below it.
func (p *Product) InCategory(categoryID string) bool {
	for _, id := range p.Category.Ancestors {
		if id == categoryID {
			return true
		}
	}
	return false
}

// ScoredProduct is a search hit.
type ScoredProduct struct {
	Product `bson:",inline"`
	Score   float64 `bson:"score" json:"score"`
}

// CartLine references a product by id.
type CartLine struct {
	Product  string `bson:"product" json:"product"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

// Cart is an ordered list of lines, unique by product.
type Cart []CartLine

// Equal reports whether both carts hold the same lines in the same order.
func (c Cart) Equal(other Cart) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// PopulatedLine is a cart line resolved against the catalog.
type PopulatedLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Profile is the public part of a user.
type Profile struct {
	Username string `bson:"username" json:"username"`
	Picture  string `bson:"picture,omitempty" json:"picture,omitempty"`
}

// UserData holds the user's private state.
type UserData struct {
	OAuth string `bson:"oauth,omitempty" json:"oauth,omitempty"`
	Cart  Cart   `bson:"cart" json:"cart"`
}

// User owns exactly one cart.
type User struct {
	ID      string   `bson:"_id" json:"_id"`
	Profile Profile  `bson:"profile" json:"profile"`
	Data    UserData `bson:"data" json:"data"`
}

// PopulatedUser is a user whose cart lines carry product snapshots.
type PopulatedUser struct {
	ID      string          `json:"_id"`
	Profile Profile         `json:"profile"`
	Cart    []PopulatedLine `json:"cart"`
}

// Charge statuses as reported by the payment gateway
const (
	ChargeStatusCreated  = "CREATED"
	ChargeStatusDeclined = "DECLINED"
	ChargeStatusError    = "ERROR"
)

// Charge is created by the payment gateway and only referenced here.
type Charge struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CheckoutStatus is the persisted state of a checkout attempt.
type CheckoutStatus string

// Checkout statuses
const (
	CheckoutStatusCharging CheckoutStatus = "CHARGING"
	CheckoutStatusSettled  CheckoutStatus = "SETTLED"
	CheckoutStatusDeclined CheckoutStatus = "DECLINED"
	CheckoutStatusFailed   CheckoutStatus = "FAILED"
)

// IsTerminal reports whether s is a final outcome.
func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusSettled || s == CheckoutStatusDeclined || s == CheckoutStatusFailed
}

// String returns the persisted form of s.
func (s CheckoutStatus) String() string {
	return string(s)
}

// CheckoutRecord is the ledger entry of one checkout attempt. It is written
// when charging starts and updated once to a terminal status.
type CheckoutRecord struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"user_id"`
	IdempotencyKey *string        `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Amount         int64          `db:"amount" json:"amount"`
	Currency       string         `db:"currency" json:"currency"`
	Status         CheckoutStatus `db:"status" json:"status"`
	ChargeID       *string        `db:"charge_id" json:"charge_id,omitempty"`
	Message        *string        `db:"message" json:"message,omitempty"`
	CartSnapshot   CartSnapshot   `db:"cart_snapshot" json:"cart_snapshot"`
	CartCleared    bool           `db:"cart_cleared" json:"cart_cleared"`
	CartClearError *string        `db:"cart_clear_error" json:"cart_clear_error,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
