package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/inventory"
	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
)

var scope = tenant.Scope{CompanyID: "co1"}

func newCart(t *testing.T, store *memory.Store) pos.Cart {
	t.Helper()
	cart, _, err := store.EnsureActiveCart(context.Background(), pos.Cart{
		CompanyID: "co1",
		CashboxID: "cb1",
		UserID:    "cashier1",
	})
	if err != nil {
		t.Fatalf("ensure cart: %v", err)
	}
	return cart
}

func addProduct(t *testing.T, store *memory.Store, name string, qty int, price int64) catalog.Product {
	t.Helper()
	p, err := store.CreateProduct(context.Background(), catalog.Product{
		CompanyID:  "co1",
		Name:       name,
		Barcode:    "bc-" + name,
		Quantity:   qty,
		PriceCents: price,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func addLine(t *testing.T, store *memory.Store, cartID, productID, custom string, qty int, price int64) {
	t.Helper()
	_, err := store.CreateCartItem(context.Background(), pos.CartItem{
		CartID:         cartID,
		CompanyID:      "co1",
		ProductID:      productID,
		CustomName:     custom,
		Quantity:       qty,
		UnitPriceCents: price,
	})
	if err != nil {
		t.Fatalf("create cart item: %v", err)
	}
}

func recalc(t *testing.T, store *memory.Store, cart pos.Cart) pos.Cart {
	t.Helper()
	items, _ := store.ListCartItems(context.Background(), cart.ID)
	var subtotal int64
	for _, it := range items {
		subtotal += int64(it.Quantity) * it.UnitPriceCents
	}
	cart.SubtotalCents = subtotal
	cart.TotalCents = subtotal
	updated, err := store.UpdateCart(context.Background(), cart)
	if err != nil {
		t.Fatalf("update cart: %v", err)
	}
	return updated
}

func TestWarehouseCheckout(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil, nil, nil)
	ctx := context.Background()

	widget := addProduct(t, store, "widget", 10, 250)
	cart := newCart(t, store)
	addLine(t, store, cart.ID, widget.ID, "", 3, 250)
	addLine(t, store, cart.ID, "", "delivery", 1, 500)
	cart = recalc(t, store, cart)

	sale, err := svc.Checkout(ctx, scope, Request{CartID: cart.ID, MarkPaid: true})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if sale.Status != pos.SalePaid || sale.PaidAt.IsZero() {
		t.Fatalf("expected paid sale, got %s", sale.Status)
	}
	if sale.DocNumber != 1 {
		t.Fatalf("expected doc number 1, got %d", sale.DocNumber)
	}
	if sale.TotalCents != 1250 {
		t.Fatalf("expected total 1250, got %d", sale.TotalCents)
	}

	// Stock decremented only for the product line.
	p, _ := store.GetProduct(ctx, widget.ID)
	if p.Quantity != 7 {
		t.Fatalf("expected stock 7, got %d", p.Quantity)
	}

	// Cart closed and emptied.
	got, _ := store.GetCart(ctx, cart.ID)
	if got.Status != pos.CartCheckedOut {
		t.Fatalf("expected checked_out, got %s", got.Status)
	}
	items, _ := store.ListCartItems(ctx, cart.ID)
	if len(items) != 0 {
		t.Fatalf("expected cleared items, got %d", len(items))
	}

	// The paid total landed on the cashbox as an approved income flow.
	summary, _ := store.CashboxSummary(ctx, "cb1")
	if summary.Income.TotalCents != 1250 || summary.Income.Count != 1 {
		t.Fatalf("expected income flow of 1250, got %+v", summary.Income)
	}

	// Snapshots survive catalog edits.
	saleItems, _ := svc.Items(ctx, scope, sale.ID)
	if len(saleItems) != 2 {
		t.Fatalf("expected 2 sale items, got %d", len(saleItems))
	}
	var productLine, customLine pos.SaleItem
	for _, si := range saleItems {
		if si.ProductID != "" {
			productLine = si
		} else {
			customLine = si
		}
	}
	if productLine.NameSnapshot != "widget" || productLine.BarcodeSnapshot != "bc-widget" {
		t.Fatalf("unexpected product snapshot: %+v", productLine)
	}
	if customLine.NameSnapshot != "delivery" {
		t.Fatalf("unexpected custom snapshot: %+v", customLine)
	}
}

func TestWarehouseShortfallWritesNothing(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil, nil, nil)
	ctx := context.Background()

	widget := addProduct(t, store, "widget", 2, 250)
	cart := newCart(t, store)
	addLine(t, store, cart.ID, widget.ID, "", 5, 250)
	cart = recalc(t, store, cart)

	_, err := svc.Checkout(ctx, scope, Request{CartID: cart.ID})
	if !errors.Is(err, ErrNotEnoughStock) {
		t.Fatalf("expected ErrNotEnoughStock, got %v", err)
	}
	var shortfall *ShortfallError
	if !errors.As(err, &shortfall) || shortfall.Requested != 5 || shortfall.Available != 2 {
		t.Fatalf("unexpected shortfall detail: %v", err)
	}

	// Nothing moved.
	p, _ := store.GetProduct(ctx, widget.ID)
	if p.Quantity != 2 {
		t.Fatalf("stock changed on failed checkout: %d", p.Quantity)
	}
	got, _ := store.GetCart(ctx, cart.ID)
	if got.Status != pos.CartActive {
		t.Fatalf("cart closed on failed checkout: %s", got.Status)
	}
	sales, _ := store.ListSales(ctx, "co1")
	if len(sales) != 0 {
		t.Fatalf("sale recorded on failed checkout")
	}
}

func TestEmptyCart(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil, nil, nil)

	cart := newCart(t, store)
	_, err := svc.Checkout(context.Background(), scope, Request{CartID: cart.ID})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

// seedConsignment creates a fully accepted batch. Fully accepted batches are
// closed, and closed batches must still feed FIFO allocation.
func seedConsignment(t *testing.T, store *memory.Store, productID string, accepted, returned int, createdAt time.Time) inventory.Consignment {
	t.Helper()
	c, err := store.CreateConsignment(context.Background(), inventory.Consignment{
		CompanyID:      "co1",
		UserID:         "manager1",
		AgentID:        "agent1",
		ProductID:      productID,
		QtyTransferred: accepted,
		QtyAccepted:    accepted,
		QtyReturned:    returned,
		Status:         inventory.ConsignmentClosed,
		CreatedAt:      createdAt,
	})
	if err != nil {
		t.Fatalf("create consignment: %v", err)
	}
	return c
}

func TestAgentCheckoutFIFO(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil, nil, nil)
	ctx := context.Background()

	widget := addProduct(t, store, "widget", 0, 250)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	oldest := seedConsignment(t, store, widget.ID, 3, 1, base)           // 2 free
	middle := seedConsignment(t, store, widget.ID, 4, 0, base.Add(time.Hour)) // 4 free
	newest := seedConsignment(t, store, widget.ID, 5, 0, base.Add(2*time.Hour))

	cart := newCart(t, store)
	addLine(t, store, cart.ID, widget.ID, "", 5, 250)
	cart = recalc(t, store, cart)

	sale, err := svc.Checkout(ctx, scope, Request{CartID: cart.ID, AgentID: "agent1"})
	if err != nil {
		t.Fatalf("agent checkout: %v", err)
	}
	if sale.AgentID != "agent1" {
		t.Fatalf("expected agent on sale, got %q", sale.AgentID)
	}

	// Warehouse stock untouched on agent sales.
	p, _ := store.GetProduct(ctx, widget.ID)
	if p.Quantity != 0 {
		t.Fatalf("warehouse stock changed: %d", p.Quantity)
	}

	allocs, _ := store.ListAllocationsBySale(ctx, sale.ID)
	if len(allocs) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocs))
	}
	byConsignment := map[string]int{}
	for _, a := range allocs {
		byConsignment[a.ConsignmentID] = a.Qty
		if a.SaleItemID == "" {
			t.Fatal("allocation missing sale item link")
		}
	}
	if byConsignment[oldest.ID] != 2 || byConsignment[middle.ID] != 3 {
		t.Fatalf("expected FIFO draw 2 from oldest and 3 from middle, got %v", byConsignment)
	}
	if byConsignment[newest.ID] != 0 {
		t.Fatalf("newest consignment should be untouched, got %v", byConsignment)
	}
}

func TestAgentCheckoutCountsPriorAllocations(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil, nil, nil)
	ctx := context.Background()

	widget := addProduct(t, store, "widget", 0, 250)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedConsignment(t, store, widget.ID, 4, 0, base)

	first := newCart(t, store)
	addLine(t, store, first.ID, widget.ID, "", 3, 250)
	first = recalc(t, store, first)
	if _, err := svc.Checkout(ctx, scope, Request{CartID: first.ID, AgentID: "agent1"}); err != nil {
		t.Fatalf("first agent checkout: %v", err)
	}

	// Only 1 unit remains free; 2 must fail.
	second := newCart(t, store)
	addLine(t, store, second.ID, widget.ID, "", 2, 250)
	second = recalc(t, store, second)
	_, err := svc.Checkout(ctx, scope, Request{CartID: second.ID, AgentID: "agent1"})
	if !errors.Is(err, ErrAgentNotEnoughStock) {
		t.Fatalf("expected ErrAgentNotEnoughStock, got %v", err)
	}
	var shortfall *ShortfallError
	if !errors.As(err, &shortfall) || shortfall.Available != 1 {
		t.Fatalf("unexpected shortfall detail: %v", err)
	}

	// Failed checkout left no partial allocations behind.
	got, _ := store.GetCart(ctx, second.ID)
	if got.Status != pos.CartActive {
		t.Fatalf("cart closed on failed agent checkout: %s", got.Status)
	}
}

func TestPayAndCancelTransitions(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil, nil, nil)
	ctx := context.Background()

	widget := addProduct(t, store, "widget", 10, 100)
	cart := newCart(t, store)
	addLine(t, store, cart.ID, widget.ID, "", 1, 100)
	cart = recalc(t, store, cart)

	sale, err := svc.Checkout(ctx, scope, Request{CartID: cart.ID})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if sale.Status != pos.SaleNew {
		t.Fatalf("expected new sale, got %s", sale.Status)
	}

	// No income flow until the sale is paid.
	summary, _ := store.CashboxSummary(ctx, "cb1")
	if summary.Income.Count != 0 {
		t.Fatalf("expected no income flow before payment, got %+v", summary.Income)
	}

	paid, err := svc.Pay(ctx, scope, sale.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != pos.SalePaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}
	summary, _ = store.CashboxSummary(ctx, "cb1")
	if summary.Income.TotalCents != 100 || summary.Income.Count != 1 {
		t.Fatalf("expected income flow of 100 after payment, got %+v", summary.Income)
	}
	if _, err := svc.Cancel(ctx, scope, sale.ID); err == nil {
		t.Fatal("expected cancel of paid sale to fail")
	}
	if _, err := svc.Pay(ctx, scope, sale.ID); err == nil {
		t.Fatal("expected double pay to fail")
	}
}

func TestDocNumbersArePerCompany(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil, nil, nil)
	ctx := context.Background()

	widget := addProduct(t, store, "widget", 10, 100)
	for want := int64(1); want <= 3; want++ {
		cart, _, err := store.EnsureActiveCart(ctx, pos.Cart{CompanyID: "co1", CashboxID: "cb1", SessionKey: "sess"})
		if err != nil {
			t.Fatalf("ensure cart: %v", err)
		}
		addLine(t, store, cart.ID, widget.ID, "", 1, 100)
		cart = recalc(t, store, cart)
		sale, err := svc.Checkout(ctx, scope, Request{CartID: cart.ID})
		if err != nil {
			t.Fatalf("checkout %d: %v", want, err)
		}
		if sale.DocNumber != want {
			t.Fatalf("expected doc number %d, got %d", want, sale.DocNumber)
		}
	}
}
