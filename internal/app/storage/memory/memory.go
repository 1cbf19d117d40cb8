// Package memory provides an in-memory implementation of the storage
// interfaces, used for tests and for running without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retailcore/commerce_layer/internal/app/domain/cashbox"
	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/inventory"
	"github.com/retailcore/commerce_layer/internal/app/domain/messaging"
	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/domain/report"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/domain/user"
	"github.com/retailcore/commerce_layer/internal/app/storage"
)

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	companies    map[string]tenant.Company
	branches     map[string]tenant.Branch
	users        map[string]user.User
	products     map[string]catalog.Product
	carts        map[string]pos.Cart
	cartItems    map[string]pos.CartItem
	sales        map[string]pos.Sale
	saleItems    map[string]pos.SaleItem
	consignments map[string]inventory.Consignment
	returns      map[string]inventory.Return
	allocations  map[string]inventory.Allocation
	cashboxes    map[string]cashbox.Cashbox
	shifts       map[string]cashbox.Shift
	flows        map[string]cashbox.Flow
	messages     map[string]messaging.Message
	summaries    map[string]report.DailySummary
	docNumbers   map[string]int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		companies:    make(map[string]tenant.Company),
		branches:     make(map[string]tenant.Branch),
		users:        make(map[string]user.User),
		products:     make(map[string]catalog.Product),
		carts:        make(map[string]pos.Cart),
		cartItems:    make(map[string]pos.CartItem),
		sales:        make(map[string]pos.Sale),
		saleItems:    make(map[string]pos.SaleItem),
		consignments: make(map[string]inventory.Consignment),
		returns:      make(map[string]inventory.Return),
		allocations:  make(map[string]inventory.Allocation),
		cashboxes:    make(map[string]cashbox.Cashbox),
		shifts:       make(map[string]cashbox.Shift),
		flows:        make(map[string]cashbox.Flow),
		messages:     make(map[string]messaging.Message),
		summaries:    make(map[string]report.DailySummary),
		docNumbers:   make(map[string]int64),
	}
}

func newID() string { return uuid.NewString() }

// --- tenants ---

func (s *Store) CreateCompany(_ context.Context, c tenant.Company) (tenant.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.companies[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCompany(_ context.Context, c tenant.Company) (tenant.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.companies[c.ID]
	if !ok {
		return tenant.Company{}, storage.ErrNotFound
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.companies[c.ID] = c
	return c, nil
}

func (s *Store) GetCompany(_ context.Context, id string) (tenant.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return tenant.Company{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCompanies(_ context.Context) ([]tenant.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tenant.Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c)
	}
	sortByCreated(out, func(c tenant.Company) (time.Time, string) { return c.CreatedAt, c.ID })
	return out, nil
}

func (s *Store) DeleteCompany(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.companies, id)
	return nil
}

func (s *Store) CreateBranch(_ context.Context, b tenant.Branch) (tenant.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = newID()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	s.branches[b.ID] = b
	return b, nil
}

func (s *Store) GetBranch(_ context.Context, id string) (tenant.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[id]
	if !ok {
		return tenant.Branch{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBranches(_ context.Context, companyID string) ([]tenant.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []tenant.Branch
	for _, b := range s.branches {
		if b.CompanyID == companyID {
			out = append(out, b)
		}
	}
	sortByCreated(out, func(b tenant.Branch) (time.Time, string) { return b.CreatedAt, b.ID })
	return out, nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = newID()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, companyID string) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []user.User
	for _, u := range s.users {
		if u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	sortByCreated(out, func(u user.User) (time.Time, string) { return u.CreatedAt, u.ID })
	return out, nil
}

// --- products ---

func (s *Store) CreateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[p.ID]
	if !ok {
		return catalog.Product{}, storage.ErrNotFound
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, companyID, barcode string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.CompanyID == companyID && p.Barcode == barcode {
			return p, nil
		}
	}
	return catalog.Product{}, storage.ErrNotFound
}

func (s *Store) ListProducts(_ context.Context, companyID string) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.Product
	for _, p := range s.products {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	sortByCreated(out, func(p catalog.Product) (time.Time, string) { return p.CreatedAt, p.ID })
	return out, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AdjustProductQuantity(_ context.Context, id string, delta int) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, storage.ErrNotFound
	}
	if p.Quantity+delta < 0 {
		return catalog.Product{}, storage.ErrInsufficientStock
	}
	p.Quantity += delta
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return p, nil
}

// --- carts ---

func (s *Store) EnsureActiveCart(_ context.Context, cart pos.Cart) (pos.Cart, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.carts {
		if c.Status != pos.CartActive || c.CashboxID != cart.CashboxID {
			continue
		}
		if cart.UserID != "" && c.UserID == cart.UserID {
			return c, false, nil
		}
		if cart.UserID == "" && cart.SessionKey != "" && c.SessionKey == cart.SessionKey {
			return c, false, nil
		}
	}
	if cart.ID == "" {
		cart.ID = newID()
	}
	cart.Status = pos.CartActive
	now := time.Now().UTC()
	cart.CreatedAt, cart.UpdatedAt = now, now
	s.carts[cart.ID] = cart
	return cart, true, nil
}

func (s *Store) UpdateCart(_ context.Context, cart pos.Cart) (pos.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.carts[cart.ID]
	if !ok {
		return pos.Cart{}, storage.ErrNotFound
	}
	cart.CreatedAt = cur.CreatedAt
	cart.UpdatedAt = time.Now().UTC()
	s.carts[cart.ID] = cart
	return cart, nil
}

func (s *Store) GetCart(_ context.Context, id string) (pos.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[id]
	if !ok {
		return pos.Cart{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListStaleCarts(_ context.Context, cutoff time.Time) ([]pos.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pos.Cart
	for _, c := range s.carts {
		if c.Status == pos.CartActive && c.UpdatedAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	sortByCreated(out, func(c pos.Cart) (time.Time, string) { return c.CreatedAt, c.ID })
	return out, nil
}

func (s *Store) CreateCartItem(_ context.Context, item pos.CartItem) (pos.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = newID()
	}
	s.cartItems[item.ID] = item
	return item, nil
}

func (s *Store) UpdateCartItem(_ context.Context, item pos.CartItem) (pos.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cartItems[item.ID]; !ok {
		return pos.CartItem{}, storage.ErrNotFound
	}
	s.cartItems[item.ID] = item
	return item, nil
}

func (s *Store) DeleteCartItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cartItems[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.cartItems, id)
	return nil
}

func (s *Store) GetCartItem(_ context.Context, id string) (pos.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.cartItems[id]
	if !ok {
		return pos.CartItem{}, storage.ErrNotFound
	}
	return it, nil
}

func (s *Store) ListCartItems(_ context.Context, cartID string) ([]pos.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCartItemsLocked(cartID), nil
}

func (s *Store) listCartItemsLocked(cartID string) []pos.CartItem {
	var out []pos.CartItem
	for _, it := range s.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- sales ---

func (s *Store) GetSale(_ context.Context, id string) (pos.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	if !ok {
		return pos.Sale{}, storage.ErrNotFound
	}
	return sale, nil
}

func (s *Store) UpdateSale(_ context.Context, sale pos.Sale) (pos.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sales[sale.ID]
	if !ok {
		return pos.Sale{}, storage.ErrNotFound
	}
	sale.CreatedAt = cur.CreatedAt
	s.sales[sale.ID] = sale
	return sale, nil
}

func (s *Store) ListSales(_ context.Context, companyID string) ([]pos.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pos.Sale
	for _, sale := range s.sales {
		if sale.CompanyID == companyID {
			out = append(out, sale)
		}
	}
	sortByCreated(out, func(sale pos.Sale) (time.Time, string) { return sale.CreatedAt, sale.ID })
	return out, nil
}

func (s *Store) ListSalesBetween(_ context.Context, companyID string, from, to time.Time) ([]pos.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pos.Sale
	for _, sale := range s.sales {
		if sale.CompanyID != companyID {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		out = append(out, sale)
	}
	sortByCreated(out, func(sale pos.Sale) (time.Time, string) { return sale.CreatedAt, sale.ID })
	return out, nil
}

func (s *Store) ListSaleItems(_ context.Context, saleID string) ([]pos.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pos.SaleItem
	for _, it := range s.saleItems {
		if it.SaleID == saleID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- checkout ---

// Checkout runs fn under the store lock. State is snapshotted first and
// restored when fn fails, so a failed checkout leaves nothing behind.
func (s *Store) Checkout(ctx context.Context, fn func(tx storage.CheckoutTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		s.restoreLocked(snap)
		return err
	}
	return nil
}

type snapshot struct {
	products    map[string]catalog.Product
	carts       map[string]pos.Cart
	cartItems   map[string]pos.CartItem
	sales       map[string]pos.Sale
	saleItems   map[string]pos.SaleItem
	allocations map[string]inventory.Allocation
	docNumbers  map[string]int64
}

func (s *Store) snapshotLocked() snapshot {
	return snapshot{
		products:    copyMap(s.products),
		carts:       copyMap(s.carts),
		cartItems:   copyMap(s.cartItems),
		sales:       copyMap(s.sales),
		saleItems:   copyMap(s.saleItems),
		allocations: copyMap(s.allocations),
		docNumbers:  copyMap(s.docNumbers),
	}
}

func (s *Store) restoreLocked(snap snapshot) {
	s.products = snap.products
	s.carts = snap.carts
	s.cartItems = snap.cartItems
	s.sales = snap.sales
	s.saleItems = snap.saleItems
	s.allocations = snap.allocations
	s.docNumbers = snap.docNumbers
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// memTx operates directly on the store, which is already locked by Checkout.
type memTx struct {
	s *Store
}

func (t *memTx) LockProducts(_ context.Context, companyID string, ids []string) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		p, ok := t.s.products[id]
		if !ok || p.CompanyID != companyID {
			return nil, storage.ErrNotFound
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) SetProductQuantities(_ context.Context, quantities map[string]int) error {
	now := time.Now().UTC()
	for id, qty := range quantities {
		p, ok := t.s.products[id]
		if !ok {
			return storage.ErrNotFound
		}
		p.Quantity = qty
		p.UpdatedAt = now
		t.s.products[id] = p
	}
	return nil
}

func (t *memTx) LockAgentConsignments(_ context.Context, companyID, agentID string, productIDs []string) ([]inventory.Consignment, error) {
	want := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	var out []inventory.Consignment
	for _, c := range t.s.consignments {
		if c.CompanyID == companyID && c.AgentID == agentID && want[c.ProductID] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (t *memTx) AllocatedByConsignment(_ context.Context, companyID, agentID string, productIDs []string) (map[string]int, error) {
	want := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	out := make(map[string]int)
	for _, a := range t.s.allocations {
		if a.CompanyID == companyID && a.AgentID == agentID && want[a.ProductID] {
			out[a.ConsignmentID] += a.Qty
		}
	}
	return out, nil
}

func (t *memTx) NextDocNumber(_ context.Context, companyID string) (int64, error) {
	t.s.docNumbers[companyID]++
	return t.s.docNumbers[companyID], nil
}

func (t *memTx) InsertSale(_ context.Context, sale pos.Sale) (pos.Sale, error) {
	if sale.ID == "" {
		sale.ID = newID()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	t.s.sales[sale.ID] = sale
	return sale, nil
}

func (t *memTx) InsertSaleItems(_ context.Context, items []pos.SaleItem) ([]pos.SaleItem, error) {
	out := make([]pos.SaleItem, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			it.ID = newID()
		}
		t.s.saleItems[it.ID] = it
		out = append(out, it)
	}
	return out, nil
}

func (t *memTx) InsertAllocations(_ context.Context, allocs []inventory.Allocation) error {
	now := time.Now().UTC()
	for _, a := range allocs {
		if a.ID == "" {
			a.ID = newID()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		t.s.allocations[a.ID] = a
	}
	return nil
}

func (t *memTx) CloseCart(_ context.Context, cartID string, status pos.CartStatus, clearItems bool) error {
	c, ok := t.s.carts[cartID]
	if !ok {
		return storage.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	t.s.carts[cartID] = c
	if clearItems {
		for _, it := range t.s.listCartItemsLocked(cartID) {
			delete(t.s.cartItems, it.ID)
		}
	}
	return nil
}

// --- inventory ---

func (s *Store) CreateConsignment(_ context.Context, c inventory.Consignment) (inventory.Consignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.consignments[c.ID] = c
	return c, nil
}

func (s *Store) UpdateConsignment(_ context.Context, c inventory.Consignment) (inventory.Consignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.consignments[c.ID]
	if !ok {
		return inventory.Consignment{}, storage.ErrNotFound
	}
	c.CreatedAt = cur.CreatedAt
	s.consignments[c.ID] = c
	return c, nil
}

func (s *Store) GetConsignment(_ context.Context, id string) (inventory.Consignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consignments[id]
	if !ok {
		return inventory.Consignment{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListConsignments(_ context.Context, companyID, agentID string) ([]inventory.Consignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []inventory.Consignment
	for _, c := range s.consignments {
		if c.CompanyID != companyID {
			continue
		}
		if agentID != "" && c.AgentID != agentID {
			continue
		}
		out = append(out, c)
	}
	sortByCreated(out, func(c inventory.Consignment) (time.Time, string) { return c.CreatedAt, c.ID })
	return out, nil
}

func (s *Store) CreateReturn(_ context.Context, r inventory.Return) (inventory.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = newID()
	}
	if r.ReturnedAt.IsZero() {
		r.ReturnedAt = time.Now().UTC()
	}
	s.returns[r.ID] = r
	return r, nil
}

func (s *Store) UpdateReturn(_ context.Context, r inventory.Return) (inventory.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.returns[r.ID]; !ok {
		return inventory.Return{}, storage.ErrNotFound
	}
	s.returns[r.ID] = r
	return r, nil
}

func (s *Store) GetReturn(_ context.Context, id string) (inventory.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.returns[id]
	if !ok {
		return inventory.Return{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListReturns(_ context.Context, companyID string) ([]inventory.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []inventory.Return
	for _, r := range s.returns {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	sortByCreated(out, func(r inventory.Return) (time.Time, string) { return r.ReturnedAt, r.ID })
	return out, nil
}

func (s *Store) ListAllocationsBySale(_ context.Context, saleID string) ([]inventory.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []inventory.Allocation
	for _, a := range s.allocations {
		if a.SaleID == saleID {
			out = append(out, a)
		}
	}
	sortByCreated(out, func(a inventory.Allocation) (time.Time, string) { return a.CreatedAt, a.ID })
	return out, nil
}

func (s *Store) AllocatedByConsignment(ctx context.Context, companyID, agentID string, productIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx := &memTx{s: s}
	return tx.AllocatedByConsignment(ctx, companyID, agentID, productIDs)
}

// --- cashboxes ---

func (s *Store) CreateCashbox(_ context.Context, cb cashbox.Cashbox) (cashbox.Cashbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb.ID == "" {
		cb.ID = newID()
	}
	now := time.Now().UTC()
	cb.CreatedAt, cb.UpdatedAt = now, now
	s.cashboxes[cb.ID] = cb
	return cb, nil
}

func (s *Store) UpdateCashbox(_ context.Context, cb cashbox.Cashbox) (cashbox.Cashbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cashboxes[cb.ID]
	if !ok {
		return cashbox.Cashbox{}, storage.ErrNotFound
	}
	cb.CreatedAt = cur.CreatedAt
	cb.UpdatedAt = time.Now().UTC()
	s.cashboxes[cb.ID] = cb
	return cb, nil
}

func (s *Store) GetCashbox(_ context.Context, id string) (cashbox.Cashbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cb, ok := s.cashboxes[id]
	if !ok {
		return cashbox.Cashbox{}, storage.ErrNotFound
	}
	return cb, nil
}

func (s *Store) ListCashboxes(_ context.Context, companyID string) ([]cashbox.Cashbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []cashbox.Cashbox
	for _, cb := range s.cashboxes {
		if cb.CompanyID == companyID {
			out = append(out, cb)
		}
	}
	sortByCreated(out, func(cb cashbox.Cashbox) (time.Time, string) { return cb.CreatedAt, cb.ID })
	return out, nil
}

func (s *Store) DeleteCashbox(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cashboxes[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.cashboxes, id)
	return nil
}

func (s *Store) CreateShift(_ context.Context, sh cashbox.Shift) (cashbox.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh.ID == "" {
		sh.ID = newID()
	}
	if sh.OpenedAt.IsZero() {
		sh.OpenedAt = time.Now().UTC()
	}
	s.shifts[sh.ID] = sh
	return sh, nil
}

func (s *Store) UpdateShift(_ context.Context, sh cashbox.Shift) (cashbox.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shifts[sh.ID]; !ok {
		return cashbox.Shift{}, storage.ErrNotFound
	}
	s.shifts[sh.ID] = sh
	return sh, nil
}

func (s *Store) GetShift(_ context.Context, id string) (cashbox.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shifts[id]
	if !ok {
		return cashbox.Shift{}, storage.ErrNotFound
	}
	return sh, nil
}

func (s *Store) FindOpenShift(_ context.Context, cashboxID, cashierID string) (cashbox.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sh := range s.shifts {
		if sh.CashboxID == cashboxID && sh.CashierID == cashierID && sh.Status == cashbox.ShiftOpen {
			return sh, nil
		}
	}
	return cashbox.Shift{}, storage.ErrNotFound
}

func (s *Store) ListShifts(_ context.Context, cashboxID string) ([]cashbox.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []cashbox.Shift
	for _, sh := range s.shifts {
		if sh.CashboxID == cashboxID {
			out = append(out, sh)
		}
	}
	sortByCreated(out, func(sh cashbox.Shift) (time.Time, string) { return sh.OpenedAt, sh.ID })
	return out, nil
}

func (s *Store) CreateFlow(_ context.Context, f cashbox.Flow) (cashbox.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = newID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	s.flows[f.ID] = f
	return f, nil
}

func (s *Store) GetFlow(_ context.Context, id string) (cashbox.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[id]
	if !ok {
		return cashbox.Flow{}, storage.ErrNotFound
	}
	return f, nil
}

func (s *Store) ApproveFlow(_ context.Context, id string) (cashbox.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[id]
	if !ok {
		return cashbox.Flow{}, storage.ErrNotFound
	}
	f.Approved = true
	s.flows[id] = f
	return f, nil
}

func (s *Store) ListFlows(_ context.Context, cashboxID string) ([]cashbox.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []cashbox.Flow
	for _, f := range s.flows {
		if f.CashboxID == cashboxID {
			out = append(out, f)
		}
	}
	sortByCreated(out, func(f cashbox.Flow) (time.Time, string) { return f.CreatedAt, f.ID })
	return out, nil
}

func (s *Store) CashboxSummary(_ context.Context, cashboxID string) (cashbox.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum cashbox.Summary
	for _, f := range s.flows {
		if f.CashboxID != cashboxID || !f.Approved {
			continue
		}
		switch f.Type {
		case cashbox.FlowIncome:
			sum.Income.TotalCents += f.AmountCents
			sum.Income.Count++
		case cashbox.FlowExpense:
			sum.Expense.TotalCents += f.AmountCents
			sum.Expense.Count++
		}
	}
	return sum, nil
}

// --- messages ---

func (s *Store) CreateMessage(_ context.Context, m messaging.Message) (messaging.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ExternalID != "" {
		for _, cur := range s.messages {
			if cur.CompanyID == m.CompanyID && cur.Channel == m.Channel && cur.ExternalID == m.ExternalID {
				return cur, nil
			}
		}
	}
	if m.ID == "" {
		m.ID = newID()
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now().UTC()
	}
	s.messages[m.ID] = m
	return m, nil
}

func (s *Store) ListMessages(_ context.Context, companyID string) ([]messaging.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []messaging.Message
	for _, m := range s.messages {
		if m.CompanyID == companyID {
			out = append(out, m)
		}
	}
	sortByCreated(out, func(m messaging.Message) (time.Time, string) { return m.ReceivedAt, m.ID })
	return out, nil
}

func (s *Store) MarkMessageRead(_ context.Context, id string) (messaging.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return messaging.Message{}, storage.ErrNotFound
	}
	m.Read = true
	s.messages[id] = m
	return m, nil
}

// --- reports ---

func (s *Store) UpsertDailySummary(_ context.Context, sum report.DailySummary) (report.DailySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cur := range s.summaries {
		if cur.CompanyID == sum.CompanyID && cur.Day.Equal(sum.Day) {
			sum.ID = id
			s.summaries[id] = sum
			return sum, nil
		}
	}
	if sum.ID == "" {
		sum.ID = newID()
	}
	s.summaries[sum.ID] = sum
	return sum, nil
}

func (s *Store) ListDailySummaries(_ context.Context, companyID string) ([]report.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []report.DailySummary
	for _, sum := range s.summaries {
		if sum.CompanyID == companyID {
			out = append(out, sum)
		}
	}
	sortByCreated(out, func(sum report.DailySummary) (time.Time, string) { return sum.Day, sum.ID })
	return out, nil
}

func sortByCreated[T any](items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return idi < idj
	})
}
