package reports

import (
	"context"
	"testing"
	"time"

	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
)

func seedSale(t *testing.T, store *memory.Store, companyID string, status pos.SaleStatus, total int64, at time.Time) {
	t.Helper()
	err := store.Checkout(context.Background(), func(tx storage.CheckoutTx) error {
		_, err := tx.InsertSale(context.Background(), pos.Sale{
			CompanyID:  companyID,
			Status:     status,
			TotalCents: total,
			CreatedAt:  at,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed sale: %v", err)
	}
}

func TestComputeDaily(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	seedSale(t, store, "co1", pos.SalePaid, 1000, day.Add(9*time.Hour))
	seedSale(t, store, "co1", pos.SalePaid, 2500, day.Add(15*time.Hour))
	seedSale(t, store, "co1", pos.SaleNew, 999, day.Add(16*time.Hour))
	seedSale(t, store, "co1", pos.SaleCanceled, 999, day.Add(17*time.Hour))
	seedSale(t, store, "co1", pos.SalePaid, 777, day.Add(25*time.Hour)) // next day
	seedSale(t, store, "co2", pos.SalePaid, 555, day.Add(10*time.Hour))

	sum, err := svc.ComputeDaily(ctx, "co1", day.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if sum.SaleCount != 2 || sum.RevenueCents != 3500 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if !sum.Day.Equal(day) {
		t.Fatalf("expected day %s, got %s", day, sum.Day)
	}

	// Recomputing replaces, not duplicates.
	if _, err := svc.ComputeDaily(ctx, "co1", day.Add(13*time.Hour)); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	list, err := svc.List(ctx, "co1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one summary, got %d", len(list))
	}
}

func TestComputeAll(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	a, _ := store.CreateCompany(ctx, tenant.Company{Name: "a"})
	b, _ := store.CreateCompany(ctx, tenant.Company{Name: "b"})

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	seedSale(t, store, a.ID, pos.SalePaid, 100, day.Add(time.Hour))
	seedSale(t, store, b.ID, pos.SalePaid, 200, day.Add(time.Hour))

	if err := svc.ComputeAll(ctx, day); err != nil {
		t.Fatalf("compute all: %v", err)
	}
	for _, companyID := range []string{a.ID, b.ID} {
		list, _ := svc.List(ctx, companyID)
		if len(list) != 1 {
			t.Fatalf("expected summary for %s", companyID)
		}
	}
}
