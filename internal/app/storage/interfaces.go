package storage

import (
	"context"
	"errors"
	"time"

	"github.com/retailcore/commerce_layer/internal/app/domain/cashbox"
	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/inventory"
	"github.com/retailcore/commerce_layer/internal/app/domain/messaging"
	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/domain/report"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/domain/user"
)

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientStock is returned when a quantity adjustment would drive
// on-hand stock negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// TenantStore persists companies and branches.
type TenantStore interface {
	CreateCompany(ctx context.Context, c tenant.Company) (tenant.Company, error)
	UpdateCompany(ctx context.Context, c tenant.Company) (tenant.Company, error)
	GetCompany(ctx context.Context, id string) (tenant.Company, error)
	ListCompanies(ctx context.Context) ([]tenant.Company, error)
	DeleteCompany(ctx context.Context, id string) error

	CreateBranch(ctx context.Context, b tenant.Branch) (tenant.Branch, error)
	GetBranch(ctx context.Context, id string) (tenant.Branch, error)
	ListBranches(ctx context.Context, companyID string) ([]tenant.Branch, error)
}

// UserStore persists operator accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context, companyID string) ([]user.User, error)
}

// ProductStore persists catalog products.
type ProductStore interface {
	CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error)
	UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error)
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	GetProductByBarcode(ctx context.Context, companyID, barcode string) (catalog.Product, error)
	ListProducts(ctx context.Context, companyID string) ([]catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// AdjustProductQuantity applies a delta to on-hand stock, failing if the
	// result would go negative.
	AdjustProductQuantity(ctx context.Context, id string, delta int) (catalog.Product, error)
}

// CartStore persists carts and their lines.
type CartStore interface {
	// EnsureActiveCart atomically returns the active cart for the cashbox and
	// owner, creating it when absent. The boolean reports whether a new cart
	// was created.
	EnsureActiveCart(ctx context.Context, cart pos.Cart) (pos.Cart, bool, error)
	UpdateCart(ctx context.Context, cart pos.Cart) (pos.Cart, error)
	GetCart(ctx context.Context, id string) (pos.Cart, error)
	ListStaleCarts(ctx context.Context, cutoff time.Time) ([]pos.Cart, error)

	CreateCartItem(ctx context.Context, item pos.CartItem) (pos.CartItem, error)
	UpdateCartItem(ctx context.Context, item pos.CartItem) (pos.CartItem, error)
	DeleteCartItem(ctx context.Context, id string) error
	GetCartItem(ctx context.Context, id string) (pos.CartItem, error)
	ListCartItems(ctx context.Context, cartID string) ([]pos.CartItem, error)
}

// SaleStore reads and amends posted sales.
type SaleStore interface {
	GetSale(ctx context.Context, id string) (pos.Sale, error)
	UpdateSale(ctx context.Context, sale pos.Sale) (pos.Sale, error)
	ListSales(ctx context.Context, companyID string) ([]pos.Sale, error)
	ListSalesBetween(ctx context.Context, companyID string, from, to time.Time) ([]pos.Sale, error)
	ListSaleItems(ctx context.Context, saleID string) ([]pos.SaleItem, error)
}

// CheckoutTx is the transactional view used while converting a cart into a
// sale. Implementations guarantee that all calls observe and mutate a single
// isolated transaction with the relevant rows locked.
type CheckoutTx interface {
	LockProducts(ctx context.Context, companyID string, ids []string) ([]catalog.Product, error)
	SetProductQuantities(ctx context.Context, quantities map[string]int) error

	// LockAgentConsignments returns the agent's batches for the products,
	// ordered by (product, created_at, id) for FIFO consumption. Status is not
	// filtered; free quantity is what limits a batch.
	LockAgentConsignments(ctx context.Context, companyID, agentID string, productIDs []string) ([]inventory.Consignment, error)
	// AllocatedByConsignment sums prior sale allocations per consignment.
	AllocatedByConsignment(ctx context.Context, companyID, agentID string, productIDs []string) (map[string]int, error)

	NextDocNumber(ctx context.Context, companyID string) (int64, error)
	InsertSale(ctx context.Context, sale pos.Sale) (pos.Sale, error)
	InsertSaleItems(ctx context.Context, items []pos.SaleItem) ([]pos.SaleItem, error)
	InsertAllocations(ctx context.Context, allocs []inventory.Allocation) error
	CloseCart(ctx context.Context, cartID string, status pos.CartStatus, clearItems bool) error
}

// CheckoutStore runs a checkout function inside one transaction.
type CheckoutStore interface {
	Checkout(ctx context.Context, fn func(tx CheckoutTx) error) error
}

// InventoryStore persists consignments, returns and allocations.
type InventoryStore interface {
	CreateConsignment(ctx context.Context, c inventory.Consignment) (inventory.Consignment, error)
	UpdateConsignment(ctx context.Context, c inventory.Consignment) (inventory.Consignment, error)
	GetConsignment(ctx context.Context, id string) (inventory.Consignment, error)
	ListConsignments(ctx context.Context, companyID, agentID string) ([]inventory.Consignment, error)

	CreateReturn(ctx context.Context, r inventory.Return) (inventory.Return, error)
	UpdateReturn(ctx context.Context, r inventory.Return) (inventory.Return, error)
	GetReturn(ctx context.Context, id string) (inventory.Return, error)
	ListReturns(ctx context.Context, companyID string) ([]inventory.Return, error)

	ListAllocationsBySale(ctx context.Context, saleID string) ([]inventory.Allocation, error)
	AllocatedByConsignment(ctx context.Context, companyID, agentID string, productIDs []string) (map[string]int, error)
}

// CashboxStore persists cashboxes, shifts and cash flows.
type CashboxStore interface {
	CreateCashbox(ctx context.Context, cb cashbox.Cashbox) (cashbox.Cashbox, error)
	UpdateCashbox(ctx context.Context, cb cashbox.Cashbox) (cashbox.Cashbox, error)
	GetCashbox(ctx context.Context, id string) (cashbox.Cashbox, error)
	ListCashboxes(ctx context.Context, companyID string) ([]cashbox.Cashbox, error)
	DeleteCashbox(ctx context.Context, id string) error

	CreateShift(ctx context.Context, s cashbox.Shift) (cashbox.Shift, error)
	UpdateShift(ctx context.Context, s cashbox.Shift) (cashbox.Shift, error)
	GetShift(ctx context.Context, id string) (cashbox.Shift, error)
	FindOpenShift(ctx context.Context, cashboxID, cashierID string) (cashbox.Shift, error)
	ListShifts(ctx context.Context, cashboxID string) ([]cashbox.Shift, error)

	CreateFlow(ctx context.Context, f cashbox.Flow) (cashbox.Flow, error)
	GetFlow(ctx context.Context, id string) (cashbox.Flow, error)
	ApproveFlow(ctx context.Context, id string) (cashbox.Flow, error)
	ListFlows(ctx context.Context, cashboxID string) ([]cashbox.Flow, error)
	CashboxSummary(ctx context.Context, cashboxID string) (cashbox.Summary, error)
}

// MessageStore persists inbound channel messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error)
	ListMessages(ctx context.Context, companyID string) ([]messaging.Message, error)
	MarkMessageRead(ctx context.Context, id string) (messaging.Message, error)
}

// ReportStore persists daily sales rollups.
type ReportStore interface {
	UpsertDailySummary(ctx context.Context, s report.DailySummary) (report.DailySummary, error)
	ListDailySummaries(ctx context.Context, companyID string) ([]report.DailySummary, error)
}
