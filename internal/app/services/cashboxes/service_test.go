package cashboxes

import (
	"context"
	"testing"

	"github.com/retailcore/commerce_layer/internal/app/domain/cashbox"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
)

var scope = tenant.Scope{CompanyID: "co1"}

func TestShiftLifecycle(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	cb, err := svc.Create(ctx, cashbox.Cashbox{CompanyID: "co1", Name: "main"})
	if err != nil {
		t.Fatalf("create cashbox: %v", err)
	}

	shift, err := svc.OpenShift(ctx, scope, cb.ID, "cashier1")
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}
	if shift.Status != cashbox.ShiftOpen {
		t.Fatalf("expected open, got %s", shift.Status)
	}

	if _, err := svc.OpenShift(ctx, scope, cb.ID, "cashier1"); err == nil {
		t.Fatal("expected second open shift to fail")
	}
	// A different cashier can open their own shift.
	if _, err := svc.OpenShift(ctx, scope, cb.ID, "cashier2"); err != nil {
		t.Fatalf("open shift for second cashier: %v", err)
	}

	closed, err := svc.CloseShift(ctx, scope, shift.ID)
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.Status != cashbox.ShiftClosed || closed.ClosedAt.IsZero() {
		t.Fatalf("unexpected closed shift: %+v", closed)
	}
	if _, err := svc.CloseShift(ctx, scope, shift.ID); err == nil {
		t.Fatal("expected double close to fail")
	}

	// After closing, the cashier can open again.
	if _, err := svc.OpenShift(ctx, scope, cb.ID, "cashier1"); err != nil {
		t.Fatalf("reopen shift: %v", err)
	}
}

func TestFlowsAndSummary(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	cb, _ := svc.Create(ctx, cashbox.Cashbox{CompanyID: "co1", Name: "main"})

	income, err := svc.RecordFlow(ctx, scope, cashbox.Flow{CashboxID: cb.ID, Type: cashbox.FlowIncome, AmountCents: 5000})
	if err != nil {
		t.Fatalf("record income: %v", err)
	}
	expense, err := svc.RecordFlow(ctx, scope, cashbox.Flow{CashboxID: cb.ID, Type: cashbox.FlowExpense, AmountCents: 1200})
	if err != nil {
		t.Fatalf("record expense: %v", err)
	}

	// Unapproved flows are invisible to the summary.
	sum, err := svc.Summary(ctx, scope, cb.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Income.Count != 0 || sum.Expense.Count != 0 {
		t.Fatalf("expected empty summary, got %+v", sum)
	}

	if _, err := svc.ApproveFlow(ctx, scope, income.ID); err != nil {
		t.Fatalf("approve income: %v", err)
	}
	if _, err := svc.ApproveFlow(ctx, scope, expense.ID); err != nil {
		t.Fatalf("approve expense: %v", err)
	}

	sum, _ = svc.Summary(ctx, scope, cb.ID)
	if sum.Income.TotalCents != 5000 || sum.Income.Count != 1 {
		t.Fatalf("unexpected income side: %+v", sum.Income)
	}
	if sum.Expense.TotalCents != 1200 || sum.Expense.Count != 1 {
		t.Fatalf("unexpected expense side: %+v", sum.Expense)
	}
}

func TestFlowValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	cb, _ := svc.Create(ctx, cashbox.Cashbox{CompanyID: "co1", Name: "main"})

	if _, err := svc.RecordFlow(ctx, scope, cashbox.Flow{CashboxID: cb.ID, Type: "transfer", AmountCents: 100}); err == nil {
		t.Fatal("expected unknown type to fail")
	}
	if _, err := svc.RecordFlow(ctx, scope, cashbox.Flow{CashboxID: cb.ID, Type: cashbox.FlowIncome, AmountCents: 0}); err == nil {
		t.Fatal("expected zero amount to fail")
	}

	// Foreign tenants cannot see or approve the cashbox.
	foreign := tenant.Scope{CompanyID: "co2"}
	if _, err := svc.Summary(ctx, foreign, cb.ID); err == nil {
		t.Fatal("expected foreign summary to fail")
	}
	f, _ := svc.RecordFlow(ctx, scope, cashbox.Flow{CashboxID: cb.ID, Type: cashbox.FlowIncome, AmountCents: 100})
	if _, err := svc.ApproveFlow(ctx, foreign, f.ID); err == nil {
		t.Fatal("expected foreign approve to fail")
	}
}
