// Package pos defines the point-of-sale aggregates: the mutable cart and the
// immutable posted sale. All money fields are integer cents.
package pos

import "time"

// CartStatus is the lifecycle state of a cart.
type CartStatus string

const (
	CartActive     CartStatus = "active"
	CartCheckedOut CartStatus = "checked_out"
	CartAbandoned  CartStatus = "abandoned"
)

// SaleStatus is the lifecycle state of a posted sale.
type SaleStatus string

const (
	SaleNew      SaleStatus = "new"
	SalePaid     SaleStatus = "paid"
	SaleCanceled SaleStatus = "canceled"
)

// Cart is the mutable pre-checkout aggregate owned by a cashier session. The
// owner is either a user or an anonymous session key, never both.
type Cart struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"company_id"`
	BranchID   string     `json:"branch_id,omitempty"`
	CashboxID  string     `json:"cashbox_id"`
	UserID     string     `json:"user_id,omitempty"`
	SessionKey string     `json:"session_key,omitempty"`
	ShiftID    string     `json:"shift_id,omitempty"`
	Status     CartStatus `json:"status"`

	SubtotalCents      int64 `json:"subtotal_cents"`
	DiscountCents      int64 `json:"discount_cents"`
	TaxCents           int64 `json:"tax_cents"`
	TotalCents         int64 `json:"total_cents"`
	OrderDiscountCents int64 `json:"order_discount_cents"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartItem is one line in a cart. A line without a ProductID is a custom
// (service) line that never touches stock. BasePriceCents is the catalog
// price at the time the line was added; the gap to UnitPriceCents is the
// line's discount.
type CartItem struct {
	ID             string `json:"id"`
	CartID         string `json:"cart_id"`
	CompanyID      string `json:"company_id"`
	BranchID       string `json:"branch_id,omitempty"`
	ProductID      string `json:"product_id,omitempty"`
	CustomName     string `json:"custom_name,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	BasePriceCents int64  `json:"base_price_cents"`
}

// Sale is the immutable transaction record produced by checkout.
type Sale struct {
	ID        string     `json:"id"`
	CompanyID string     `json:"company_id"`
	BranchID  string     `json:"branch_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	AgentID   string     `json:"agent_id,omitempty"`
	CashboxID string     `json:"cashbox_id,omitempty"`
	Status    SaleStatus `json:"status"`
	DocNumber int64      `json:"doc_number"`

	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`

	CreatedAt time.Time `json:"created_at"`
	PaidAt    time.Time `json:"paid_at,omitempty"`
}

// SaleItem is one posted line. Name, barcode and price are snapshots taken at
// checkout so later catalog edits do not rewrite history.
type SaleItem struct {
	ID              string `json:"id"`
	SaleID          string `json:"sale_id"`
	CompanyID       string `json:"company_id"`
	BranchID        string `json:"branch_id,omitempty"`
	ProductID       string `json:"product_id,omitempty"`
	NameSnapshot    string `json:"name_snapshot"`
	BarcodeSnapshot string `json:"barcode_snapshot,omitempty"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	Quantity        int    `json:"quantity"`
}
