package products

import (
	"context"
	"errors"
	"testing"

	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
)

func TestService(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)

	created, err := svc.Create(context.Background(), catalog.Product{
		CompanyID:  "co1",
		Name:       "widget",
		Barcode:    "123",
		Quantity:   5,
		PriceCents: 250,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != catalog.StatusPending {
		t.Fatalf("expected pending status, got %q", created.Status)
	}

	byCode, err := svc.GetByBarcode(context.Background(), "co1", "123")
	if err != nil {
		t.Fatalf("get by barcode: %v", err)
	}
	if byCode.ID != created.ID {
		t.Fatalf("barcode lookup returned wrong product")
	}

	accepted, err := svc.SetStatus(context.Background(), created.ID, catalog.StatusAccepted)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if accepted.Status != catalog.StatusAccepted {
		t.Fatalf("expected accepted, got %q", accepted.Status)
	}

	if _, err := svc.AdjustQuantity(context.Background(), created.ID, -10); !errors.Is(err, storage.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	adjusted, err := svc.AdjustQuantity(context.Background(), created.ID, -3)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if adjusted.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", adjusted.Quantity)
	}
}

func TestCacheKeyIsTenantScoped(t *testing.T) {
	if cacheKey("co1", "p1") == cacheKey("co2", "p1") {
		t.Fatal("same product id in different companies must not share a cache key")
	}
	if got := cacheKey("co1", "p1"); got != "product:co1:p1" {
		t.Fatalf("unexpected cache key %q", got)
	}
}

func TestListScoping(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)

	global, _ := svc.Create(context.Background(), catalog.Product{CompanyID: "co1", Name: "global"})
	branch, _ := svc.Create(context.Background(), catalog.Product{CompanyID: "co1", BranchID: "br1", Name: "local"})
	_, _ = svc.Create(context.Background(), catalog.Product{CompanyID: "co1", BranchID: "br2", Name: "other"})

	got, err := svc.List(context.Background(), tenant.Scope{CompanyID: "co1", BranchID: "br1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 visible products, got %d", len(got))
	}
	ids := map[string]bool{got[0].ID: true, got[1].ID: true}
	if !ids[global.ID] || !ids[branch.ID] {
		t.Fatalf("branch scope should see global and own-branch products")
	}

	got, err = svc.List(context.Background(), tenant.Scope{CompanyID: "co1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != global.ID {
		t.Fatalf("global scope should see only global products")
	}
}
