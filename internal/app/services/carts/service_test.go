package carts

import (
	"context"
	"testing"
	"time"

	"github.com/retailcore/commerce_layer/internal/app/domain/cashbox"
	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
)

func setup(t *testing.T) (*memory.Store, *Service, tenant.Scope, cashbox.Cashbox, catalog.Product) {
	t.Helper()
	store := memory.New()
	scope := tenant.Scope{CompanyID: "co1"}

	cb, err := store.CreateCashbox(context.Background(), cashbox.Cashbox{CompanyID: "co1", Name: "main"})
	if err != nil {
		t.Fatalf("create cashbox: %v", err)
	}
	product, err := store.CreateProduct(context.Background(), catalog.Product{
		CompanyID:  "co1",
		Name:       "widget",
		Quantity:   10,
		PriceCents: 250,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return store, New(store, store, store, nil), scope, cb, product
}

func TestOpenIsIdempotent(t *testing.T) {
	_, svc, scope, cb, _ := setup(t)

	first, err := svc.Open(context.Background(), scope, cb.ID, "cashier1", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, err := svc.Open(context.Background(), scope, cb.ID, "cashier1", "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same cart, got %s and %s", first.ID, second.ID)
	}

	if _, err := svc.Open(context.Background(), scope, cb.ID, "cashier1", "sess"); err == nil {
		t.Fatal("expected error when both owner fields are set")
	}
}

func TestOpenRequiresShift(t *testing.T) {
	store, svc, scope, _, _ := setup(t)

	strict, err := store.CreateCashbox(context.Background(), cashbox.Cashbox{CompanyID: "co1", Name: "strict", RequireShift: true})
	if err != nil {
		t.Fatalf("create cashbox: %v", err)
	}

	if _, err := svc.Open(context.Background(), scope, strict.ID, "cashier1", ""); err == nil {
		t.Fatal("expected open to fail without a shift")
	}

	shift, err := store.CreateShift(context.Background(), cashbox.Shift{
		CompanyID: "co1",
		CashboxID: strict.ID,
		CashierID: "cashier1",
		Status:    cashbox.ShiftOpen,
	})
	if err != nil {
		t.Fatalf("create shift: %v", err)
	}

	cart, err := svc.Open(context.Background(), scope, strict.ID, "cashier1", "")
	if err != nil {
		t.Fatalf("open with shift: %v", err)
	}
	if cart.ShiftID != shift.ID {
		t.Fatalf("expected cart bound to shift %s, got %q", shift.ID, cart.ShiftID)
	}
}

func TestAddItemMergesAndRecalculates(t *testing.T) {
	_, svc, scope, cb, product := setup(t)
	ctx := context.Background()

	cart, err := svc.Open(ctx, scope, cb.ID, "cashier1", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	cart, err = svc.AddItem(ctx, scope, cart.ID, AddItemInput{ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	cart, err = svc.AddItem(ctx, scope, cart.ID, AddItemInput{ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add item again: %v", err)
	}

	items, err := svc.Items(ctx, scope, cart.ID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Fatalf("expected one merged line of 3, got %+v", items)
	}
	if cart.SubtotalCents != 750 || cart.TotalCents != 750 {
		t.Fatalf("unexpected totals: subtotal=%d total=%d", cart.SubtotalCents, cart.TotalCents)
	}

	cart, err = svc.AddItem(ctx, scope, cart.ID, AddItemInput{CustomName: "delivery", Quantity: 1, UnitPriceCents: 500})
	if err != nil {
		t.Fatalf("add custom line: %v", err)
	}
	if cart.SubtotalCents != 1250 {
		t.Fatalf("expected subtotal 1250, got %d", cart.SubtotalCents)
	}

	if _, err := svc.AddItem(ctx, scope, cart.ID, AddItemInput{CustomName: "freebie", Quantity: 1}); err == nil {
		t.Fatal("expected custom line without price to fail")
	}
}

func TestLineDiscountTracked(t *testing.T) {
	store, svc, scope, cb, _ := setup(t)
	ctx := context.Background()

	pricey, err := store.CreateProduct(ctx, catalog.Product{
		CompanyID:  "co1",
		Name:       "mug",
		Quantity:   10,
		PriceCents: 1000,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	cart, _ := svc.Open(ctx, scope, cb.ID, "cashier1", "")
	cart, err = svc.AddItem(ctx, scope, cart.ID, AddItemInput{ProductID: pricey.ID, Quantity: 2, UnitPriceCents: 800})
	if err != nil {
		t.Fatalf("add discounted line: %v", err)
	}
	if cart.SubtotalCents != 2000 || cart.DiscountCents != 400 || cart.TotalCents != 1600 {
		t.Fatalf("unexpected totals: subtotal=%d discount=%d total=%d",
			cart.SubtotalCents, cart.DiscountCents, cart.TotalCents)
	}

	// Merging overwrites the line's price with the newly resolved one.
	cart, err = svc.AddItem(ctx, scope, cart.ID, AddItemInput{ProductID: pricey.ID, Quantity: 1, DiscountCents: 300})
	if err != nil {
		t.Fatalf("add with per-unit discount: %v", err)
	}
	items, _ := svc.Items(ctx, scope, cart.ID)
	if len(items) != 1 || items[0].Quantity != 3 || items[0].UnitPriceCents != 700 || items[0].BasePriceCents != 1000 {
		t.Fatalf("unexpected merged line: %+v", items)
	}
	if cart.SubtotalCents != 3000 || cart.DiscountCents != 900 || cart.TotalCents != 2100 {
		t.Fatalf("unexpected totals after merge: subtotal=%d discount=%d total=%d",
			cart.SubtotalCents, cart.DiscountCents, cart.TotalCents)
	}
}

func TestPriceAndDiscountAreExclusive(t *testing.T) {
	_, svc, scope, cb, product := setup(t)
	ctx := context.Background()

	cart, _ := svc.Open(ctx, scope, cb.ID, "cashier1", "")

	if _, err := svc.AddItem(ctx, scope, cart.ID, AddItemInput{
		ProductID: product.ID, Quantity: 1, UnitPriceCents: 200, DiscountCents: 50,
	}); err == nil {
		t.Fatal("expected explicit price plus discount to fail")
	}
	if _, err := svc.AddItem(ctx, scope, cart.ID, AddItemInput{
		ProductID: product.ID, Quantity: 1, DiscountCents: 9_999,
	}); err == nil {
		t.Fatal("expected discount above the product price to fail")
	}
	if _, err := svc.AddItem(ctx, scope, cart.ID, AddItemInput{
		CustomName: "delivery", Quantity: 1, UnitPriceCents: 500, DiscountCents: 100,
	}); err == nil {
		t.Fatal("expected discount on a custom line to fail")
	}
}

func TestOrderDiscountIsClamped(t *testing.T) {
	_, svc, scope, cb, product := setup(t)
	ctx := context.Background()

	cart, _ := svc.Open(ctx, scope, cb.ID, "cashier1", "")
	cart, err := svc.AddItem(ctx, scope, cart.ID, AddItemInput{ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	cart, err = svc.SetOrderDiscount(ctx, scope, cart.ID, 10_000)
	if err != nil {
		t.Fatalf("set discount: %v", err)
	}
	if cart.DiscountCents != cart.SubtotalCents || cart.TotalCents != 0 {
		t.Fatalf("expected discount clamped to subtotal, got discount=%d total=%d", cart.DiscountCents, cart.TotalCents)
	}
}

func TestSetItemQuantityZeroRemovesLine(t *testing.T) {
	_, svc, scope, cb, product := setup(t)
	ctx := context.Background()

	cart, _ := svc.Open(ctx, scope, cb.ID, "cashier1", "")
	cart, err := svc.AddItem(ctx, scope, cart.ID, AddItemInput{ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	items, _ := svc.Items(ctx, scope, cart.ID)

	cart, err = svc.SetItemQuantity(ctx, scope, cart.ID, items[0].ID, 0)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if cart.SubtotalCents != 0 {
		t.Fatalf("expected empty cart, subtotal=%d", cart.SubtotalCents)
	}
	items, _ = svc.Items(ctx, scope, cart.ID)
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestAbandonedCartRejectsMutation(t *testing.T) {
	_, svc, scope, cb, product := setup(t)
	ctx := context.Background()

	cart, _ := svc.Open(ctx, scope, cb.ID, "cashier1", "")
	if _, err := svc.Abandon(ctx, scope, cart.ID); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, err := svc.AddItem(ctx, scope, cart.ID, AddItemInput{ProductID: product.ID, Quantity: 1}); err == nil {
		t.Fatal("expected add to abandoned cart to fail")
	}
}

func TestJanitorSweepsStaleCarts(t *testing.T) {
	store, svc, scope, cb, _ := setup(t)
	ctx := context.Background()

	cart, _ := svc.Open(ctx, scope, cb.ID, "cashier1", "")

	janitor := NewJanitor(store, time.Nanosecond, time.Hour, nil)
	time.Sleep(5 * time.Millisecond)

	if err := janitor.Start(ctx); err != nil {
		t.Fatalf("start janitor: %v", err)
	}
	defer janitor.Stop(ctx)

	// Run one sweep directly rather than waiting for the ticker.
	janitor.sweep(ctx)

	got, err := store.GetCart(ctx, cart.ID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if got.Status != pos.CartAbandoned {
		t.Fatalf("expected abandoned, got %s", got.Status)
	}
}
