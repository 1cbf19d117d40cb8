// Package catalog defines sellable products. Money is stored in integer
// cents.
package catalog

import "time"

// Status is the review state of a product.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Product is a sellable item. Quantity is the on-hand warehouse stock and is
// only mutated by checkout and inventory flows.
type Product struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	BranchID      string    `json:"branch_id,omitempty"`
	Name          string    `json:"name"`
	Barcode       string    `json:"barcode,omitempty"`
	Quantity      int       `json:"quantity"`
	PurchaseCents int64     `json:"purchase_cents"`
	PriceCents    int64     `json:"price_cents"`
	Status        Status    `json:"status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
