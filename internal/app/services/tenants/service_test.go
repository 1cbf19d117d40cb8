package tenants

import (
	"context"
	"errors"
	"testing"

	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
)

func TestService(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	company, err := svc.CreateCompany(context.Background(), tenant.Company{Name: "acme"})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}

	branch, err := svc.CreateBranch(context.Background(), tenant.Branch{CompanyID: company.ID, Name: "downtown"})
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}

	branches, err := svc.ListBranches(context.Background(), company.ID)
	if err != nil {
		t.Fatalf("list branches: %v", err)
	}
	if len(branches) != 1 || branches[0].ID != branch.ID {
		t.Fatalf("expected one branch, got %d", len(branches))
	}

	if err := svc.DeleteCompany(context.Background(), company.ID); err != nil {
		t.Fatalf("delete company: %v", err)
	}
	if _, err := svc.GetCompany(context.Background(), company.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_Validation(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	if _, err := svc.CreateCompany(context.Background(), tenant.Company{Name: "  "}); err == nil {
		t.Fatal("expected error for blank name")
	}
	if _, err := svc.CreateBranch(context.Background(), tenant.Branch{CompanyID: "missing", Name: "x"}); err == nil {
		t.Fatal("expected error for unknown company")
	}
}
