package agentstock

import (
	"context"
	"errors"
	"testing"

	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/inventory"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/domain/user"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
)

var scope = tenant.Scope{CompanyID: "co1"}

func setup(t *testing.T) (*memory.Store, *Service, user.User, catalog.Product) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	agent, err := store.CreateUser(ctx, user.User{CompanyID: "co1", Email: "agent@example.com", Role: user.RoleAgent, Active: true})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	product, err := store.CreateProduct(ctx, catalog.Product{CompanyID: "co1", Name: "widget", Quantity: 10, PriceCents: 100})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return store, New(store, store, store, nil), agent, product
}

func TestTransferAndAccept(t *testing.T) {
	store, svc, agent, product := setup(t)
	ctx := context.Background()

	c, err := svc.Transfer(ctx, scope, "manager1", agent.ID, product.ID, 4)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if c.QtyTransferred != 4 || c.QtyAccepted != 0 {
		t.Fatalf("unexpected consignment: %+v", c)
	}

	p, _ := store.GetProduct(ctx, product.ID)
	if p.Quantity != 6 {
		t.Fatalf("expected warehouse stock 6, got %d", p.Quantity)
	}

	if _, err := svc.Accept(ctx, scope, c.ID, 5); err == nil {
		t.Fatal("expected over-accept to fail")
	}
	c, err = svc.Accept(ctx, scope, c.ID, 3)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if c.QtyAccepted != 3 || c.OnAgent() != 3 || c.Remaining() != 1 {
		t.Fatalf("unexpected counts: %+v", c)
	}
	if c.Status != inventory.ConsignmentOpen {
		t.Fatalf("expected open while units remain in transit, got %s", c.Status)
	}

	// Accepting the last unit closes the batch.
	c, err = svc.Accept(ctx, scope, c.ID, 1)
	if err != nil {
		t.Fatalf("accept remainder: %v", err)
	}
	if c.Status != inventory.ConsignmentClosed {
		t.Fatalf("expected closed after full acceptance, got %s", c.Status)
	}
	if _, err := svc.Accept(ctx, scope, c.ID, 1); err == nil {
		t.Fatal("expected accept on a closed consignment to fail")
	}

	// Closed batches still count toward the agent's sellable stock.
	lines, err := svc.Stock(ctx, scope, agent.ID)
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if len(lines) != 1 || lines[0].Free != 4 {
		t.Fatalf("expected 4 free units, got %+v", lines)
	}
}

func TestTransferValidation(t *testing.T) {
	store, svc, agent, product := setup(t)
	ctx := context.Background()

	if _, err := svc.Transfer(ctx, scope, "manager1", agent.ID, product.ID, 20); !errors.Is(err, storage.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	cashier, _ := store.CreateUser(ctx, user.User{CompanyID: "co1", Email: "c@example.com", Role: user.RoleCashier, Active: true})
	if _, err := svc.Transfer(ctx, scope, "manager1", cashier.ID, product.ID, 1); err == nil {
		t.Fatal("expected transfer to non-agent to fail")
	}
}

func TestReturnFlow(t *testing.T) {
	store, svc, agent, product := setup(t)
	ctx := context.Background()

	c, _ := svc.Transfer(ctx, scope, "manager1", agent.ID, product.ID, 4)
	c, _ = svc.Accept(ctx, scope, c.ID, 4)

	if _, err := svc.RequestReturn(ctx, scope, c.ID, agent.ID, 5); err == nil {
		t.Fatal("expected over-return to fail")
	}

	r, err := svc.RequestReturn(ctx, scope, c.ID, agent.ID, 2)
	if err != nil {
		t.Fatalf("request return: %v", err)
	}
	if r.Status != inventory.ReturnPending {
		t.Fatalf("expected pending, got %s", r.Status)
	}

	accepted, err := svc.AcceptReturn(ctx, scope, r.ID, "manager1")
	if err != nil {
		t.Fatalf("accept return: %v", err)
	}
	if accepted.Status != inventory.ReturnAccepted || accepted.AcceptedAt.IsZero() {
		t.Fatalf("unexpected return: %+v", accepted)
	}

	c, _ = store.GetConsignment(ctx, c.ID)
	if c.QtyReturned != 2 || c.OnAgent() != 2 {
		t.Fatalf("unexpected consignment after return: %+v", c)
	}
	p, _ := store.GetProduct(ctx, product.ID)
	if p.Quantity != 8 {
		t.Fatalf("expected warehouse stock 8, got %d", p.Quantity)
	}

	if _, err := svc.AcceptReturn(ctx, scope, r.ID, "manager1"); err == nil {
		t.Fatal("expected double accept to fail")
	}
}

func TestRejectReturnLeavesStock(t *testing.T) {
	store, svc, agent, product := setup(t)
	ctx := context.Background()

	c, _ := svc.Transfer(ctx, scope, "manager1", agent.ID, product.ID, 4)
	c, _ = svc.Accept(ctx, scope, c.ID, 4)
	r, _ := svc.RequestReturn(ctx, scope, c.ID, agent.ID, 2)

	rejected, err := svc.RejectReturn(ctx, scope, r.ID, "manager1")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != inventory.ReturnRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}

	c, _ = store.GetConsignment(ctx, c.ID)
	if c.QtyReturned != 0 || c.OnAgent() != 4 {
		t.Fatalf("rejected return must not move stock: %+v", c)
	}
	p, _ := store.GetProduct(ctx, product.ID)
	if p.Quantity != 6 {
		t.Fatalf("warehouse stock changed on reject: %d", p.Quantity)
	}
}

func TestStockSummary(t *testing.T) {
	_, svc, agent, product := setup(t)
	ctx := context.Background()

	c, _ := svc.Transfer(ctx, scope, "manager1", agent.ID, product.ID, 5)
	_, _ = svc.Accept(ctx, scope, c.ID, 5)
	r, _ := svc.RequestReturn(ctx, scope, c.ID, agent.ID, 1)
	_, _ = svc.AcceptReturn(ctx, scope, r.ID, "manager1")

	lines, err := svc.Stock(ctx, scope, agent.ID)
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	if lines[0].ProductID != product.ID || lines[0].Name != "widget" || lines[0].Free != 4 {
		t.Fatalf("unexpected line: %+v", lines[0])
	}
}
