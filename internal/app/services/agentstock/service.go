// Package agentstock manages consignment batches handed to field agents and
// the return flow that brings unsold stock back to the warehouse.
package agentstock

import (
	"context"
	"fmt"
	"time"

	"github.com/retailcore/commerce_layer/internal/app/domain/inventory"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/domain/user"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Service manages agent-held inventory.
type Service struct {
	store    storage.InventoryStore
	products storage.ProductStore
	users    storage.UserStore
	log      *logger.Logger
}

// New constructs an agent stock service.
func New(store storage.InventoryStore, products storage.ProductStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("agentstock")
	}
	return &Service{store: store, products: products, users: users, log: log}
}

// Transfer moves qty units of a product from the warehouse to an agent. The
// warehouse decrement and the consignment record happen together: if stock is
// short nothing is created.
func (s *Service) Transfer(ctx context.Context, scope tenant.Scope, byUserID, agentID, productID string, qty int) (inventory.Consignment, error) {
	if qty <= 0 {
		return inventory.Consignment{}, fmt.Errorf("quantity must be positive")
	}

	agent, err := s.users.GetUser(ctx, agentID)
	if err != nil {
		return inventory.Consignment{}, fmt.Errorf("agent validation failed: %w", err)
	}
	if agent.CompanyID != scope.CompanyID || agent.Role != user.RoleAgent {
		return inventory.Consignment{}, fmt.Errorf("user %s is not an agent of this company", agentID)
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return inventory.Consignment{}, fmt.Errorf("product validation failed: %w", err)
	}
	if product.CompanyID != scope.CompanyID || !scope.Visible(product.BranchID) {
		return inventory.Consignment{}, storage.ErrNotFound
	}

	if _, err := s.products.AdjustProductQuantity(ctx, productID, -qty); err != nil {
		return inventory.Consignment{}, err
	}

	created, err := s.store.CreateConsignment(ctx, inventory.Consignment{
		CompanyID:      scope.CompanyID,
		BranchID:       scope.BranchID,
		UserID:         byUserID,
		AgentID:        agentID,
		ProductID:      productID,
		QtyTransferred: qty,
		Status:         inventory.ConsignmentOpen,
	})
	if err != nil {
		// Give the units back; the transfer did not happen.
		if _, rerr := s.products.AdjustProductQuantity(ctx, productID, qty); rerr != nil {
			s.log.WithError(rerr).Error("failed to restore stock after consignment error")
		}
		return inventory.Consignment{}, err
	}

	s.log.WithField("consignment_id", created.ID).
		WithField("agent_id", agentID).
		WithField("product_id", productID).
		WithField("qty", qty).
		Info("stock transferred to agent")
	return created, nil
}

// Accept records the agent receiving qty units of a transfer. A fully
// accepted consignment closes; closed batches still sell through FIFO
// checkout, they just take no further acceptances.
func (s *Service) Accept(ctx context.Context, scope tenant.Scope, consignmentID string, qty int) (inventory.Consignment, error) {
	if qty <= 0 {
		return inventory.Consignment{}, fmt.Errorf("quantity must be positive")
	}
	c, err := s.get(ctx, scope, consignmentID)
	if err != nil {
		return inventory.Consignment{}, err
	}
	if c.Status != inventory.ConsignmentOpen {
		return inventory.Consignment{}, fmt.Errorf("consignment is %s", c.Status)
	}
	if qty > c.Remaining() {
		return inventory.Consignment{}, fmt.Errorf("cannot accept %d, only %d in transit", qty, c.Remaining())
	}
	c.QtyAccepted += qty
	if c.Remaining() == 0 {
		c.Status = inventory.ConsignmentClosed
	}
	return s.store.UpdateConsignment(ctx, c)
}

// RequestReturn opens a pending return of qty units from a consignment.
func (s *Service) RequestReturn(ctx context.Context, scope tenant.Scope, consignmentID, byUserID string, qty int) (inventory.Return, error) {
	if qty <= 0 {
		return inventory.Return{}, fmt.Errorf("quantity must be positive")
	}
	c, err := s.get(ctx, scope, consignmentID)
	if err != nil {
		return inventory.Return{}, err
	}
	if qty > c.OnAgent() {
		return inventory.Return{}, fmt.Errorf("cannot return %d, agent holds %d", qty, c.OnAgent())
	}
	r, err := s.store.CreateReturn(ctx, inventory.Return{
		CompanyID:     scope.CompanyID,
		BranchID:      scope.BranchID,
		ConsignmentID: consignmentID,
		ReturnedBy:    byUserID,
		Qty:           qty,
		Status:        inventory.ReturnPending,
	})
	if err != nil {
		return inventory.Return{}, err
	}
	s.log.WithField("return_id", r.ID).
		WithField("consignment_id", consignmentID).
		WithField("qty", qty).
		Info("return requested")
	return r, nil
}

// AcceptReturn approves a pending return: the consignment's returned count
// grows and the warehouse gets the units back.
func (s *Service) AcceptReturn(ctx context.Context, scope tenant.Scope, returnID, byUserID string) (inventory.Return, error) {
	r, err := s.store.GetReturn(ctx, returnID)
	if err != nil {
		return inventory.Return{}, err
	}
	if r.CompanyID != scope.CompanyID {
		return inventory.Return{}, storage.ErrNotFound
	}
	if r.Status != inventory.ReturnPending {
		return inventory.Return{}, fmt.Errorf("return is %s", r.Status)
	}

	c, err := s.get(ctx, scope, r.ConsignmentID)
	if err != nil {
		return inventory.Return{}, err
	}
	if r.Qty > c.OnAgent() {
		return inventory.Return{}, fmt.Errorf("agent no longer holds %d units", r.Qty)
	}

	c.QtyReturned += r.Qty
	if _, err := s.store.UpdateConsignment(ctx, c); err != nil {
		return inventory.Return{}, err
	}
	if _, err := s.products.AdjustProductQuantity(ctx, c.ProductID, r.Qty); err != nil {
		return inventory.Return{}, err
	}

	r.Status = inventory.ReturnAccepted
	r.AcceptedBy = byUserID
	r.AcceptedAt = time.Now().UTC()
	updated, err := s.store.UpdateReturn(ctx, r)
	if err != nil {
		return inventory.Return{}, err
	}
	s.log.WithField("return_id", returnID).WithField("qty", r.Qty).Info("return accepted")
	return updated, nil
}

// RejectReturn declines a pending return, leaving stock with the agent.
func (s *Service) RejectReturn(ctx context.Context, scope tenant.Scope, returnID, byUserID string) (inventory.Return, error) {
	r, err := s.store.GetReturn(ctx, returnID)
	if err != nil {
		return inventory.Return{}, err
	}
	if r.CompanyID != scope.CompanyID {
		return inventory.Return{}, storage.ErrNotFound
	}
	if r.Status != inventory.ReturnPending {
		return inventory.Return{}, fmt.Errorf("return is %s", r.Status)
	}
	r.Status = inventory.ReturnRejected
	r.AcceptedBy = byUserID
	r.AcceptedAt = time.Now().UTC()
	return s.store.UpdateReturn(ctx, r)
}

// ListConsignments lists consignments, optionally filtered to one agent.
func (s *Service) ListConsignments(ctx context.Context, scope tenant.Scope, agentID string) ([]inventory.Consignment, error) {
	all, err := s.store.ListConsignments(ctx, scope.CompanyID, agentID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if scope.Visible(c.BranchID) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListReturns lists a company's return requests.
func (s *Service) ListReturns(ctx context.Context, scope tenant.Scope) ([]inventory.Return, error) {
	all, err := s.store.ListReturns(ctx, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if scope.Visible(r.BranchID) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Stock summarizes how many units of each product an agent can still sell:
// accepted minus returned minus units already allocated to sales.
func (s *Service) Stock(ctx context.Context, scope tenant.Scope, agentID string) ([]inventory.StockLine, error) {
	consignments, err := s.store.ListConsignments(ctx, scope.CompanyID, agentID)
	if err != nil {
		return nil, err
	}

	onAgent := make(map[string]int)
	var productIDs []string
	for _, c := range consignments {
		if _, seen := onAgent[c.ProductID]; !seen {
			productIDs = append(productIDs, c.ProductID)
		}
		onAgent[c.ProductID] += c.OnAgent()
	}
	if len(productIDs) == 0 {
		return nil, nil
	}

	allocated, err := s.store.AllocatedByConsignment(ctx, scope.CompanyID, agentID, productIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range consignments {
		onAgent[c.ProductID] -= allocated[c.ID]
	}

	lines := make([]inventory.StockLine, 0, len(productIDs))
	for _, id := range productIDs {
		name := id
		if p, err := s.products.GetProduct(ctx, id); err == nil {
			name = p.Name
		}
		free := onAgent[id]
		if free < 0 {
			free = 0
		}
		lines = append(lines, inventory.StockLine{ProductID: id, Name: name, Free: free})
	}
	return lines, nil
}

func (s *Service) get(ctx context.Context, scope tenant.Scope, id string) (inventory.Consignment, error) {
	c, err := s.store.GetConsignment(ctx, id)
	if err != nil {
		return inventory.Consignment{}, err
	}
	if c.CompanyID != scope.CompanyID {
		return inventory.Consignment{}, storage.ErrNotFound
	}
	return c, nil
}
