// Package cashbox defines registers, cashier shifts and cash movements.
package cashbox

import "time"

// Cashbox is a register tied to a company and optionally a branch. When
// RequireShift is set, carts cannot be opened against it without an open
// shift.
type Cashbox struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	BranchID     string    `json:"branch_id,omitempty"`
	Name         string    `json:"name"`
	RequireShift bool      `json:"require_shift"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ShiftStatus is the lifecycle state of a cashier shift.
type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "open"
	ShiftClosed ShiftStatus = "closed"
)

// Shift is one cashier's session on a cashbox. At most one open shift per
// (cashbox, cashier).
type Shift struct {
	ID        string      `json:"id"`
	CompanyID string      `json:"company_id"`
	CashboxID string      `json:"cashbox_id"`
	CashierID string      `json:"cashier_id"`
	Status    ShiftStatus `json:"status"`
	OpenedAt  time.Time   `json:"opened_at"`
	ClosedAt  time.Time   `json:"closed_at,omitempty"`
}

// FlowType is the direction of a cash movement.
type FlowType string

const (
	FlowIncome  FlowType = "income"
	FlowExpense FlowType = "expense"
)

// Flow is a single cash movement against a cashbox. Amounts are positive
// cents; direction is carried by Type. Unapproved flows are excluded from
// summaries.
type Flow struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	BranchID    string    `json:"branch_id,omitempty"`
	CashboxID   string    `json:"cashbox_id"`
	Type        FlowType  `json:"type"`
	Name        string    `json:"name,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Approved    bool      `json:"approved"`
	CreatedAt   time.Time `json:"created_at"`
}

// SummarySide aggregates one direction of approved flows.
type SummarySide struct {
	TotalCents int64 `json:"total_cents"`
	Count      int   `json:"count"`
}

// Summary is the approved income/expense totals for a cashbox.
type Summary struct {
	Income  SummarySide `json:"income"`
	Expense SummarySide `json:"expense"`
}
