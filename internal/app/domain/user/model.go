// Package user defines operator accounts.
package user

import "time"

// Role controls what an operator may do.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
	RoleAgent   Role = "agent"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCashier, RoleAgent:
		return true
	}
	return false
}

// User is an operator bound to a company and optionally to a branch.
type User struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	BranchID     string    `json:"branch_id,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
