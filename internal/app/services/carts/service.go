package carts

import (
	"context"
	"fmt"
	"strings"

	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Service manages active carts and their lines. Totals are recalculated on
// every mutation so the stored aggregates never drift from the items.
type Service struct {
	store     storage.CartStore
	products  storage.ProductStore
	cashboxes storage.CashboxStore
	log       *logger.Logger
}

// New constructs a cart service.
func New(store storage.CartStore, products storage.ProductStore, cashboxes storage.CashboxStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("carts")
	}
	return &Service{store: store, products: products, cashboxes: cashboxes, log: log}
}

// Open returns the caller's active cart on the cashbox, creating one when
// absent. Exactly one of userID and sessionKey must be set. On a cashbox that
// requires shifts, a signed-in cashier must have an open shift.
func (s *Service) Open(ctx context.Context, scope tenant.Scope, cashboxID, userID, sessionKey string) (pos.Cart, error) {
	if (userID == "") == (sessionKey == "") {
		return pos.Cart{}, fmt.Errorf("exactly one of user_id and session_key is required")
	}

	cb, err := s.cashboxes.GetCashbox(ctx, cashboxID)
	if err != nil {
		return pos.Cart{}, fmt.Errorf("cashbox validation failed: %w", err)
	}
	if cb.CompanyID != scope.CompanyID {
		return pos.Cart{}, storage.ErrNotFound
	}

	var shiftID string
	if cb.RequireShift && userID != "" {
		shift, err := s.cashboxes.FindOpenShift(ctx, cashboxID, userID)
		if err != nil {
			return pos.Cart{}, fmt.Errorf("cashbox requires an open shift")
		}
		shiftID = shift.ID
	}

	cart, created, err := s.store.EnsureActiveCart(ctx, pos.Cart{
		CompanyID:  scope.CompanyID,
		BranchID:   scope.BranchID,
		CashboxID:  cashboxID,
		UserID:     userID,
		SessionKey: sessionKey,
		ShiftID:    shiftID,
	})
	if err != nil {
		return pos.Cart{}, err
	}
	if created {
		s.log.WithField("cart_id", cart.ID).
			WithField("cashbox_id", cashboxID).
			Info("cart opened")
	}
	return cart, nil
}

// Get fetches a cart with tenancy enforced.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (pos.Cart, error) {
	cart, err := s.store.GetCart(ctx, id)
	if err != nil {
		return pos.Cart{}, err
	}
	if cart.CompanyID != scope.CompanyID {
		return pos.Cart{}, storage.ErrNotFound
	}
	return cart, nil
}

// Items lists a cart's lines.
func (s *Service) Items(ctx context.Context, scope tenant.Scope, cartID string) ([]pos.CartItem, error) {
	if _, err := s.Get(ctx, scope, cartID); err != nil {
		return nil, err
	}
	return s.store.ListCartItems(ctx, cartID)
}

// AddItemInput describes a new cart line. Either ProductID or CustomName is
// set. For product lines the price is either the explicit UnitPriceCents or
// the catalog price minus DiscountCents, never both.
type AddItemInput struct {
	ProductID      string
	CustomName     string
	Quantity       int
	UnitPriceCents int64
	DiscountCents  int64
}

// AddItem appends a line and recalculates totals. Adding a product already in
// the cart merges into the existing line, taking the newly resolved price.
func (s *Service) AddItem(ctx context.Context, scope tenant.Scope, cartID string, in AddItemInput) (pos.Cart, error) {
	cart, err := s.activeCart(ctx, scope, cartID)
	if err != nil {
		return pos.Cart{}, err
	}
	if in.Quantity <= 0 {
		return pos.Cart{}, fmt.Errorf("quantity must be positive")
	}
	in.CustomName = strings.TrimSpace(in.CustomName)
	if (in.ProductID == "") == (in.CustomName == "") {
		return pos.Cart{}, fmt.Errorf("exactly one of product_id and custom_name is required")
	}
	if in.UnitPriceCents < 0 || in.DiscountCents < 0 {
		return pos.Cart{}, fmt.Errorf("price and discount cannot be negative")
	}
	if in.UnitPriceCents > 0 && in.DiscountCents > 0 {
		return pos.Cart{}, fmt.Errorf("unit_price_cents and discount_cents are mutually exclusive")
	}

	base := in.UnitPriceCents
	price := in.UnitPriceCents
	if in.ProductID != "" {
		product, err := s.products.GetProduct(ctx, in.ProductID)
		if err != nil {
			return pos.Cart{}, fmt.Errorf("product validation failed: %w", err)
		}
		if product.CompanyID != scope.CompanyID || !scope.Visible(product.BranchID) {
			return pos.Cart{}, storage.ErrNotFound
		}

		base = product.PriceCents
		switch {
		case in.UnitPriceCents > 0:
			price = in.UnitPriceCents
		case in.DiscountCents > 0:
			price = base - in.DiscountCents
			if price < 0 {
				return pos.Cart{}, fmt.Errorf("discount exceeds the product price")
			}
		default:
			price = base
		}

		items, err := s.store.ListCartItems(ctx, cartID)
		if err != nil {
			return pos.Cart{}, err
		}
		for _, it := range items {
			if it.ProductID == in.ProductID {
				it.Quantity += in.Quantity
				it.UnitPriceCents = price
				it.BasePriceCents = base
				if _, err := s.store.UpdateCartItem(ctx, it); err != nil {
					return pos.Cart{}, err
				}
				return s.recalc(ctx, cart)
			}
		}
	} else {
		if in.DiscountCents > 0 {
			return pos.Cart{}, fmt.Errorf("custom lines cannot carry a discount")
		}
		if in.UnitPriceCents == 0 {
			return pos.Cart{}, fmt.Errorf("custom lines require an explicit price")
		}
	}

	_, err = s.store.CreateCartItem(ctx, pos.CartItem{
		CartID:         cartID,
		CompanyID:      cart.CompanyID,
		BranchID:       cart.BranchID,
		ProductID:      in.ProductID,
		CustomName:     in.CustomName,
		Quantity:       in.Quantity,
		UnitPriceCents: price,
		BasePriceCents: base,
	})
	if err != nil {
		return pos.Cart{}, err
	}
	return s.recalc(ctx, cart)
}

// SetItemQuantity changes a line's quantity. Zero removes the line.
func (s *Service) SetItemQuantity(ctx context.Context, scope tenant.Scope, cartID, itemID string, quantity int) (pos.Cart, error) {
	cart, err := s.activeCart(ctx, scope, cartID)
	if err != nil {
		return pos.Cart{}, err
	}
	if quantity < 0 {
		return pos.Cart{}, fmt.Errorf("quantity cannot be negative")
	}

	item, err := s.store.GetCartItem(ctx, itemID)
	if err != nil {
		return pos.Cart{}, err
	}
	if item.CartID != cartID {
		return pos.Cart{}, storage.ErrNotFound
	}

	if quantity == 0 {
		if err := s.store.DeleteCartItem(ctx, itemID); err != nil {
			return pos.Cart{}, err
		}
	} else {
		item.Quantity = quantity
		if _, err := s.store.UpdateCartItem(ctx, item); err != nil {
			return pos.Cart{}, err
		}
	}
	return s.recalc(ctx, cart)
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, scope tenant.Scope, cartID, itemID string) (pos.Cart, error) {
	return s.SetItemQuantity(ctx, scope, cartID, itemID, 0)
}

// SetOrderDiscount applies a whole-order discount in cents.
func (s *Service) SetOrderDiscount(ctx context.Context, scope tenant.Scope, cartID string, discountCents int64) (pos.Cart, error) {
	cart, err := s.activeCart(ctx, scope, cartID)
	if err != nil {
		return pos.Cart{}, err
	}
	if discountCents < 0 {
		return pos.Cart{}, fmt.Errorf("discount cannot be negative")
	}
	cart.OrderDiscountCents = discountCents
	return s.recalc(ctx, cart)
}

// Abandon closes a cart without selling, keeping its items for audit.
func (s *Service) Abandon(ctx context.Context, scope tenant.Scope, cartID string) (pos.Cart, error) {
	cart, err := s.activeCart(ctx, scope, cartID)
	if err != nil {
		return pos.Cart{}, err
	}
	cart.Status = pos.CartAbandoned
	updated, err := s.store.UpdateCart(ctx, cart)
	if err != nil {
		return pos.Cart{}, err
	}
	s.log.WithField("cart_id", cartID).Info("cart abandoned")
	return updated, nil
}

func (s *Service) activeCart(ctx context.Context, scope tenant.Scope, cartID string) (pos.Cart, error) {
	cart, err := s.Get(ctx, scope, cartID)
	if err != nil {
		return pos.Cart{}, err
	}
	if cart.Status != pos.CartActive {
		return pos.Cart{}, fmt.Errorf("cart is %s", cart.Status)
	}
	return cart, nil
}

// recalc recomputes the money aggregates from the lines. Subtotal is taken
// from base prices so line discounts stay visible; the order discount is
// clamped so the total never goes below zero.
func (s *Service) recalc(ctx context.Context, cart pos.Cart) (pos.Cart, error) {
	items, err := s.store.ListCartItems(ctx, cart.ID)
	if err != nil {
		return pos.Cart{}, err
	}

	var subtotal, lineDiscount int64
	for _, it := range items {
		base := it.BasePriceCents
		if base < it.UnitPriceCents {
			base = it.UnitPriceCents
		}
		subtotal += int64(it.Quantity) * base
		lineDiscount += int64(it.Quantity) * (base - it.UnitPriceCents)
	}

	orderDiscount := cart.OrderDiscountCents
	if orderDiscount > subtotal-lineDiscount {
		orderDiscount = subtotal - lineDiscount
	}

	cart.SubtotalCents = subtotal
	cart.DiscountCents = lineDiscount + orderDiscount
	cart.TotalCents = subtotal - cart.DiscountCents + cart.TaxCents
	return s.store.UpdateCart(ctx, cart)
}
