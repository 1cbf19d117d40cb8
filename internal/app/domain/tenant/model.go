// Package tenant defines the company and branch aggregates that scope all
// business data.
package tenant

import "time"

// Company is the tenant root. Every business row belongs to exactly one
// company.
type Company struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	OwnerID   string            `json:"owner_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Branch is an optional physical location under a company. Rows with an empty
// BranchID are global to the company.
type Branch struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scope identifies the tenant slice a caller operates in. An empty BranchID
// means company-global visibility.
type Scope struct {
	CompanyID string
	BranchID  string
}

// Visible reports whether a row with the given branch binding is visible in
// this scope: branch callers see their branch plus global rows, global callers
// see only global rows.
func (s Scope) Visible(rowBranchID string) bool {
	if rowBranchID == "" {
		return true
	}
	return s.BranchID != "" && s.BranchID == rowBranchID
}
