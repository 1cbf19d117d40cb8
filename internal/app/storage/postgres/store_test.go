package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/commerce_layer/internal/app/domain/cashbox"
	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage"
)

func TestGetProductNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT .+ FROM app_products").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	store := New(db)
	_, err = store.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCashboxSummaryAggregates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"type", "sum", "count"}).
		AddRow("income", int64(5000), 2).
		AddRow("expense", int64(1200), 1)
	mock.ExpectQuery("SELECT type, COALESCE").
		WithArgs("cb1").
		WillReturnRows(rows)

	store := New(db)
	sum, err := store.CashboxSummary(context.Background(), "cb1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), sum.Income.TotalCents)
	assert.Equal(t, 2, sum.Income.Count)
	assert.Equal(t, int64(1200), sum.Expense.TotalCents)
	assert.Equal(t, 1, sum.Expense.Count)
}

func TestCheckoutRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	store := New(db)
	err = store.Checkout(context.Background(), func(tx storage.CheckoutTx) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	company, err := store.CreateCompany(ctx, tenant.Company{Name: "acme"})
	require.NoError(t, err)

	product, err := store.CreateProduct(ctx, catalog.Product{CompanyID: company.ID, Name: "widget", Quantity: 10, PriceCents: 500})
	require.NoError(t, err)

	cb, err := store.CreateCashbox(ctx, cashbox.Cashbox{CompanyID: company.ID, Name: "main"})
	require.NoError(t, err)

	cart, created, err := store.EnsureActiveCart(ctx, pos.Cart{CompanyID: company.ID, CashboxID: cb.ID, SessionKey: "sess"})
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := store.EnsureActiveCart(ctx, pos.Cart{CompanyID: company.ID, CashboxID: cb.ID, SessionKey: "sess"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, cart.ID, again.ID)

	_, err = store.AdjustProductQuantity(ctx, product.ID, -3)
	require.NoError(t, err)

	_, err = store.AdjustProductQuantity(ctx, product.ID, -100)
	assert.ErrorIs(t, err, storage.ErrInsufficientStock)
}
