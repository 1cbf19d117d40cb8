// Package checkout converts carts into sales. The whole conversion runs in
// one storage transaction: stock checks, decrements, sale insertion and cart
// closure either all land or none do.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retailcore/commerce_layer/internal/app/domain/cashbox"
	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/inventory"
	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// ErrEmptyCart is returned when a cart with no lines is checked out.
var ErrEmptyCart = errors.New("cart has no items")

// ErrNotEnoughStock is returned when warehouse stock cannot cover the cart.
var ErrNotEnoughStock = errors.New("not enough stock")

// ErrAgentNotEnoughStock is returned when the agent's free consignment stock
// cannot cover the cart.
var ErrAgentNotEnoughStock = errors.New("agent does not hold enough stock")

// ShortfallError reports the first product whose stock could not cover the
// requested quantity. It unwraps to ErrNotEnoughStock or
// ErrAgentNotEnoughStock.
type ShortfallError struct {
	ProductID string
	Name      string
	Requested int
	Available int
	sentinel  error
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("%s: product %s requested %d, available %d", e.sentinel, e.Name, e.Requested, e.Available)
}

func (e *ShortfallError) Unwrap() error { return e.sentinel }

// Notifier receives completed sales for fan-out. Implementations must not
// block.
type Notifier interface {
	SaleCompleted(companyID string, sale pos.Sale)
}

// Recorder observes checkout outcomes for metrics.
type Recorder interface {
	ObserveCheckout(companyID string, agent bool, totalCents int64)
	ObserveCheckoutFailure(companyID string)
}

// Service converts carts into sales.
type Service struct {
	carts     storage.CartStore
	sales     storage.SaleStore
	store     storage.CheckoutStore
	cashboxes storage.CashboxStore
	notifier  Notifier
	recorder  Recorder
	log       *logger.Logger
}

// New constructs a checkout service. notifier and recorder are optional.
func New(carts storage.CartStore, sales storage.SaleStore, store storage.CheckoutStore, cashboxes storage.CashboxStore, notifier Notifier, recorder Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("checkout")
	}
	return &Service{carts: carts, sales: sales, store: store, cashboxes: cashboxes, notifier: notifier, recorder: recorder, log: log}
}

// Request describes a checkout. A non-empty AgentID sells from the agent's
// consignment stock instead of the warehouse. MarkPaid posts the sale as
// already paid.
type Request struct {
	CartID   string
	AgentID  string
	MarkPaid bool
}

// Checkout converts the cart into a sale.
func (s *Service) Checkout(ctx context.Context, scope tenant.Scope, req Request) (pos.Sale, error) {
	cart, err := s.carts.GetCart(ctx, req.CartID)
	if err != nil {
		return pos.Sale{}, err
	}
	if cart.CompanyID != scope.CompanyID {
		return pos.Sale{}, storage.ErrNotFound
	}
	if cart.Status != pos.CartActive {
		return pos.Sale{}, fmt.Errorf("cart is %s", cart.Status)
	}

	items, err := s.carts.ListCartItems(ctx, cart.ID)
	if err != nil {
		return pos.Sale{}, err
	}
	if len(items) == 0 {
		return pos.Sale{}, ErrEmptyCart
	}

	// Per-product demand; custom lines never touch stock.
	needs := make(map[string]int)
	var productIDs []string
	for _, it := range items {
		if it.ProductID == "" {
			continue
		}
		if needs[it.ProductID] == 0 {
			productIDs = append(productIDs, it.ProductID)
		}
		needs[it.ProductID] += it.Quantity
	}

	var sale pos.Sale
	err = s.store.Checkout(ctx, func(tx storage.CheckoutTx) error {
		var (
			products map[string]catalog.Product
			err      error
		)
		if len(productIDs) > 0 {
			locked, err := tx.LockProducts(ctx, cart.CompanyID, productIDs)
			if err != nil {
				return err
			}
			products = make(map[string]catalog.Product, len(locked))
			for _, p := range locked {
				products[p.ID] = p
			}
		}

		var plan []allocationStep
		if req.AgentID == "" {
			if err := verifyWarehouseStock(products, needs); err != nil {
				return err
			}
		} else {
			plan, err = planAgentAllocations(ctx, tx, cart.CompanyID, req.AgentID, products, needs, productIDs)
			if err != nil {
				return err
			}
		}

		docNumber, err := tx.NextDocNumber(ctx, cart.CompanyID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		sale = pos.Sale{
			CompanyID:     cart.CompanyID,
			BranchID:      cart.BranchID,
			UserID:        cart.UserID,
			AgentID:       req.AgentID,
			CashboxID:     cart.CashboxID,
			Status:        pos.SaleNew,
			DocNumber:     docNumber,
			SubtotalCents: cart.SubtotalCents,
			DiscountCents: cart.DiscountCents,
			TaxCents:      cart.TaxCents,
			TotalCents:    cart.TotalCents,
			CreatedAt:     now,
		}
		if req.MarkPaid {
			sale.Status = pos.SalePaid
			sale.PaidAt = now
		}
		sale, err = tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}

		saleItems := make([]pos.SaleItem, 0, len(items))
		for _, it := range items {
			si := pos.SaleItem{
				SaleID:         sale.ID,
				CompanyID:      it.CompanyID,
				BranchID:       it.BranchID,
				ProductID:      it.ProductID,
				NameSnapshot:   it.CustomName,
				UnitPriceCents: it.UnitPriceCents,
				Quantity:       it.Quantity,
			}
			if p, ok := products[it.ProductID]; ok {
				si.NameSnapshot = p.Name
				si.BarcodeSnapshot = p.Barcode
			}
			saleItems = append(saleItems, si)
		}
		saleItems, err = tx.InsertSaleItems(ctx, saleItems)
		if err != nil {
			return err
		}

		if req.AgentID == "" {
			quantities := make(map[string]int, len(needs))
			for id, need := range needs {
				quantities[id] = products[id].Quantity - need
			}
			if len(quantities) > 0 {
				if err := tx.SetProductQuantities(ctx, quantities); err != nil {
					return err
				}
			}
		} else if len(plan) > 0 {
			allocs := buildAllocations(plan, sale, saleItems, req.AgentID)
			if err := tx.InsertAllocations(ctx, allocs); err != nil {
				return err
			}
		}

		return tx.CloseCart(ctx, cart.ID, pos.CartCheckedOut, true)
	})
	if err != nil {
		if s.recorder != nil {
			s.recorder.ObserveCheckoutFailure(cart.CompanyID)
		}
		return pos.Sale{}, err
	}

	s.log.WithField("sale_id", sale.ID).
		WithField("company_id", sale.CompanyID).
		WithField("doc_number", sale.DocNumber).
		WithField("total_cents", sale.TotalCents).
		Info("cart checked out")
	if s.recorder != nil {
		s.recorder.ObserveCheckout(sale.CompanyID, req.AgentID != "", sale.TotalCents)
	}
	if s.notifier != nil {
		s.notifier.SaleCompleted(sale.CompanyID, sale)
	}
	if req.MarkPaid {
		s.recordPayment(ctx, sale)
	}
	return sale, nil
}

// recordPayment books a paid sale's total as an approved income flow on the
// cashbox it was rung up at.
func (s *Service) recordPayment(ctx context.Context, sale pos.Sale) {
	if s.cashboxes == nil || sale.CashboxID == "" || sale.TotalCents == 0 {
		return
	}
	_, err := s.cashboxes.CreateFlow(ctx, cashbox.Flow{
		CompanyID:   sale.CompanyID,
		BranchID:    sale.BranchID,
		CashboxID:   sale.CashboxID,
		Type:        cashbox.FlowIncome,
		Name:        fmt.Sprintf("sale #%d", sale.DocNumber),
		AmountCents: sale.TotalCents,
		Approved:    true,
	})
	if err != nil {
		s.log.WithError(err).
			WithField("sale_id", sale.ID).
			Error("failed to record sale income flow")
	}
}

func verifyWarehouseStock(products map[string]catalog.Product, needs map[string]int) error {
	for id, need := range needs {
		p := products[id]
		if p.Quantity < need {
			return &ShortfallError{
				ProductID: id,
				Name:      p.Name,
				Requested: need,
				Available: p.Quantity,
				sentinel:  ErrNotEnoughStock,
			}
		}
	}
	return nil
}

// allocationStep is one FIFO draw from a consignment.
type allocationStep struct {
	ProductID     string
	ConsignmentID string
	Qty           int
}

// planAgentAllocations verifies the agent holds enough free stock for every
// product, then walks consignments oldest first taking what each still has.
// Verification happens before any draw so a shortfall writes nothing.
func planAgentAllocations(ctx context.Context, tx storage.CheckoutTx, companyID, agentID string, products map[string]catalog.Product, needs map[string]int, productIDs []string) ([]allocationStep, error) {
	if len(needs) == 0 {
		return nil, nil
	}

	consignments, err := tx.LockAgentConsignments(ctx, companyID, agentID, productIDs)
	if err != nil {
		return nil, err
	}
	allocated, err := tx.AllocatedByConsignment(ctx, companyID, agentID, productIDs)
	if err != nil {
		return nil, err
	}

	free := make(map[string]int, len(consignments))
	freeByProduct := make(map[string]int, len(needs))
	for _, c := range consignments {
		f := c.OnAgent() - allocated[c.ID]
		if f < 0 {
			f = 0
		}
		free[c.ID] = f
		freeByProduct[c.ProductID] += f
	}

	for id, need := range needs {
		if freeByProduct[id] < need {
			return nil, &ShortfallError{
				ProductID: id,
				Name:      products[id].Name,
				Requested: need,
				Available: freeByProduct[id],
				sentinel:  ErrAgentNotEnoughStock,
			}
		}
	}

	remaining := make(map[string]int, len(needs))
	for id, need := range needs {
		remaining[id] = need
	}

	var plan []allocationStep
	for _, c := range consignments {
		need := remaining[c.ProductID]
		if need == 0 || free[c.ID] == 0 {
			continue
		}
		take := need
		if take > free[c.ID] {
			take = free[c.ID]
		}
		plan = append(plan, allocationStep{ProductID: c.ProductID, ConsignmentID: c.ID, Qty: take})
		remaining[c.ProductID] -= take
	}
	return plan, nil
}

// buildAllocations ties each planned draw to the sale line for its product.
func buildAllocations(plan []allocationStep, sale pos.Sale, saleItems []pos.SaleItem, agentID string) []inventory.Allocation {
	itemByProduct := make(map[string]string, len(saleItems))
	for _, si := range saleItems {
		if si.ProductID != "" && itemByProduct[si.ProductID] == "" {
			itemByProduct[si.ProductID] = si.ID
		}
	}

	allocs := make([]inventory.Allocation, 0, len(plan))
	for _, step := range plan {
		allocs = append(allocs, inventory.Allocation{
			CompanyID:     sale.CompanyID,
			AgentID:       agentID,
			ConsignmentID: step.ConsignmentID,
			SaleID:        sale.ID,
			SaleItemID:    itemByProduct[step.ProductID],
			ProductID:     step.ProductID,
			Qty:           step.Qty,
		})
	}
	return allocs
}

// Pay marks a new sale as paid.
func (s *Service) Pay(ctx context.Context, scope tenant.Scope, saleID string) (pos.Sale, error) {
	sale, err := s.Get(ctx, scope, saleID)
	if err != nil {
		return pos.Sale{}, err
	}
	if sale.Status != pos.SaleNew {
		return pos.Sale{}, fmt.Errorf("sale is %s", sale.Status)
	}
	sale.Status = pos.SalePaid
	sale.PaidAt = time.Now().UTC()
	updated, err := s.sales.UpdateSale(ctx, sale)
	if err != nil {
		return pos.Sale{}, err
	}
	s.recordPayment(ctx, updated)
	s.log.WithField("sale_id", saleID).Info("sale paid")
	return updated, nil
}

// Cancel voids a sale that has not been paid.
func (s *Service) Cancel(ctx context.Context, scope tenant.Scope, saleID string) (pos.Sale, error) {
	sale, err := s.Get(ctx, scope, saleID)
	if err != nil {
		return pos.Sale{}, err
	}
	if sale.Status != pos.SaleNew {
		return pos.Sale{}, fmt.Errorf("only new sales can be canceled, sale is %s", sale.Status)
	}
	sale.Status = pos.SaleCanceled
	updated, err := s.sales.UpdateSale(ctx, sale)
	if err != nil {
		return pos.Sale{}, err
	}
	s.log.WithField("sale_id", saleID).Info("sale canceled")
	return updated, nil
}

// Get fetches a sale with tenancy enforced.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, saleID string) (pos.Sale, error) {
	sale, err := s.sales.GetSale(ctx, saleID)
	if err != nil {
		return pos.Sale{}, err
	}
	if sale.CompanyID != scope.CompanyID {
		return pos.Sale{}, storage.ErrNotFound
	}
	return sale, nil
}

// List lists a company's sales.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]pos.Sale, error) {
	all, err := s.sales.ListSales(ctx, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, sale := range all {
		if scope.Visible(sale.BranchID) {
			out = append(out, sale)
		}
	}
	return out, nil
}

// ListBetween lists a company's sales created in [from, to).
func (s *Service) ListBetween(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]pos.Sale, error) {
	all, err := s.sales.ListSalesBetween(ctx, scope.CompanyID, from, to)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, sale := range all {
		if scope.Visible(sale.BranchID) {
			out = append(out, sale)
		}
	}
	return out, nil
}

// Items lists a sale's lines.
func (s *Service) Items(ctx context.Context, scope tenant.Scope, saleID string) ([]pos.SaleItem, error) {
	if _, err := s.Get(ctx, scope, saleID); err != nil {
		return nil, err
	}
	return s.sales.ListSaleItems(ctx, saleID)
}
