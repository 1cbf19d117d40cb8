// Package inventory defines agent-held stock: consignment batches handed to
// field agents, returns, and the allocations that tie sales back to batches.
package inventory

import "time"

// ConsignmentStatus tracks the acceptance lifecycle of a batch. A closed
// batch takes no further acceptances but its free quantity still sells
// through agent checkout.
type ConsignmentStatus string

const (
	ConsignmentOpen   ConsignmentStatus = "open"
	ConsignmentClosed ConsignmentStatus = "closed"
)

// Consignment is a batch of product transferred from the warehouse to an
// agent. Accepted quantity can lag transferred; returned quantity can never
// exceed accepted.
type Consignment struct {
	ID             string            `json:"id"`
	CompanyID      string            `json:"company_id"`
	BranchID       string            `json:"branch_id,omitempty"`
	UserID         string            `json:"user_id"`
	AgentID        string            `json:"agent_id"`
	ProductID      string            `json:"product_id"`
	QtyTransferred int               `json:"qty_transferred"`
	QtyAccepted    int               `json:"qty_accepted"`
	QtyReturned    int               `json:"qty_returned"`
	Status         ConsignmentStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// OnAgent is the quantity currently in the agent's hands.
func (c Consignment) OnAgent() int {
	if n := c.QtyAccepted - c.QtyReturned; n > 0 {
		return n
	}
	return 0
}

// Remaining is the transferred quantity not yet accepted.
func (c Consignment) Remaining() int {
	if n := c.QtyTransferred - c.QtyAccepted; n > 0 {
		return n
	}
	return 0
}

// Allocation records that a sale line consumed qty units from a consignment.
type Allocation struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	AgentID       string    `json:"agent_id"`
	ConsignmentID string    `json:"consignment_id"`
	SaleID        string    `json:"sale_id"`
	SaleItemID    string    `json:"sale_item_id"`
	ProductID     string    `json:"product_id"`
	Qty           int       `json:"qty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReturnStatus is the review state of a return request.
type ReturnStatus string

const (
	ReturnPending  ReturnStatus = "pending"
	ReturnAccepted ReturnStatus = "accepted"
	ReturnRejected ReturnStatus = "rejected"
)

// Return is an agent-initiated request to hand stock back to the warehouse.
type Return struct {
	ID            string       `json:"id"`
	CompanyID     string       `json:"company_id"`
	BranchID      string       `json:"branch_id,omitempty"`
	ConsignmentID string       `json:"consignment_id"`
	ReturnedBy    string       `json:"returned_by"`
	Qty           int          `json:"qty"`
	Status        ReturnStatus `json:"status"`
	AcceptedBy    string       `json:"accepted_by,omitempty"`
	ReturnedAt    time.Time    `json:"returned_at"`
	AcceptedAt    time.Time    `json:"accepted_at,omitempty"`
}

// StockLine is one row of an agent stock summary.
type StockLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Free      int    `json:"free"`
}
