package users

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/domain/user"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
)

func TestService(t *testing.T) {
	store := memory.New()
	company, _ := store.CreateCompany(context.Background(), tenant.Company{Name: "acme"})

	svc := New(store, store, nil)
	created, err := svc.Create(context.Background(), user.User{
		CompanyID: company.ID,
		Email:     "Cashier@Example.com",
		Role:      user.RoleCashier,
	}, "s3cret-pass")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Email != "cashier@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if !created.Active {
		t.Fatal("expected new user active")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("s3cret-pass")); err != nil {
		t.Fatalf("password hash mismatch: %v", err)
	}

	if _, err := svc.Create(context.Background(), user.User{
		CompanyID: company.ID,
		Email:     "cashier@example.com",
		Role:      user.RoleCashier,
	}, "another-pass"); err == nil {
		t.Fatal("expected duplicate email to fail")
	}

	deactivated, err := svc.Deactivate(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if deactivated.Active {
		t.Fatal("expected user inactive")
	}
}

func TestService_Validation(t *testing.T) {
	store := memory.New()
	company, _ := store.CreateCompany(context.Background(), tenant.Company{Name: "acme"})
	svc := New(store, store, nil)

	if _, err := svc.Create(context.Background(), user.User{CompanyID: company.ID, Email: "a@b.c", Role: user.RoleAdmin}, "short"); err == nil {
		t.Fatal("expected short password to fail")
	}
	if _, err := svc.Create(context.Background(), user.User{CompanyID: company.ID, Email: "a@b.c", Role: "boss"}, "long-enough"); err == nil {
		t.Fatal("expected bad role to fail")
	}
}
