package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
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

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.TenantStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.ProductStore = (*Store)(nil)
var _ storage.CartStore = (*Store)(nil)
var _ storage.SaleStore = (*Store)(nil)
var _ storage.CheckoutStore = (*Store)(nil)
var _ storage.InventoryStore = (*Store)(nil)
var _ storage.CashboxStore = (*Store)(nil)
var _ storage.MessageStore = (*Store)(nil)
var _ storage.ReportStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// --- TenantStore ------------------------------------------------------------

func (s *Store) CreateCompany(ctx context.Context, c tenant.Company) (tenant.Company, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return tenant.Company{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_companies (id, name, owner_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Name, toNullString(c.OwnerID), metadataJSON, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return tenant.Company{}, err
	}
	return c, nil
}

func (s *Store) UpdateCompany(ctx context.Context, c tenant.Company) (tenant.Company, error) {
	existing, err := s.GetCompany(ctx, c.ID)
	if err != nil {
		return tenant.Company{}, err
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return tenant.Company{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_companies
		SET name = $2, owner_id = $3, metadata = $4, updated_at = $5
		WHERE id = $1
	`, c.ID, c.Name, toNullString(c.OwnerID), metadataJSON, c.UpdatedAt)
	if err != nil {
		return tenant.Company{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return tenant.Company{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetCompany(ctx context.Context, id string) (tenant.Company, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, metadata, created_at, updated_at
		FROM app_companies
		WHERE id = $1
	`, id)

	var (
		c           tenant.Company
		ownerID     sql.NullString
		metadataRaw []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &ownerID, &metadataRaw, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return tenant.Company{}, mapNotFound(err)
	}
	c.OwnerID = ownerID.String
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &c.Metadata)
	}
	return c, nil
}

func (s *Store) ListCompanies(ctx context.Context) ([]tenant.Company, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, owner_id, metadata, created_at, updated_at
		FROM app_companies
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []tenant.Company
	for rows.Next() {
		var (
			c           tenant.Company
			ownerID     sql.NullString
			metadataRaw []byte
		)
		if err := rows.Scan(&c.ID, &c.Name, &ownerID, &metadataRaw, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.OwnerID = ownerID.String
		if len(metadataRaw) > 0 {
			_ = json.Unmarshal(metadataRaw, &c.Metadata)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) DeleteCompany(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_companies WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreateBranch(ctx context.Context, b tenant.Branch) (tenant.Branch, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_branches (id, company_id, name, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.CompanyID, b.Name, toNullString(b.Address), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return tenant.Branch{}, err
	}
	return b, nil
}

func (s *Store) GetBranch(ctx context.Context, id string) (tenant.Branch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, name, address, created_at, updated_at
		FROM app_branches
		WHERE id = $1
	`, id)

	var (
		b       tenant.Branch
		address sql.NullString
	)
	if err := row.Scan(&b.ID, &b.CompanyID, &b.Name, &address, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return tenant.Branch{}, mapNotFound(err)
	}
	b.Address = address.String
	return b, nil
}

func (s *Store) ListBranches(ctx context.Context, companyID string) ([]tenant.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, name, address, created_at, updated_at
		FROM app_branches
		WHERE company_id = $1
		ORDER BY created_at
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []tenant.Branch
	for rows.Next() {
		var (
			b       tenant.Branch
			address sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.CompanyID, &b.Name, &address, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.Address = address.String
		result = append(result, b)
	}
	return result, rows.Err()
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, company_id, branch_id, email, password_hash, first_name, last_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.CompanyID, toNullString(u.BranchID), u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role), u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CompanyID = existing.CompanyID
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET branch_id = $2, email = $3, password_hash = $4, first_name = $5, last_name = $6, role = $7, active = $8, updated_at = $9
		WHERE id = $1
	`, u.ID, toNullString(u.BranchID), u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role), u.Active, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

const userColumns = `id, company_id, branch_id, email, password_hash, first_name, last_name, role, active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (user.User, error) {
	var (
		u        user.User
		branchID sql.NullString
		role     string
	)
	if err := row.Scan(&u.ID, &u.CompanyID, &branchID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, err
	}
	u.BranchID = branchID.String
	u.Role = user.Role(role)
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM app_users WHERE id = $1
	`, id)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapNotFound(err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM app_users WHERE email = $1
	`, email)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapNotFound(err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, companyID string) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM app_users WHERE company_id = $1 ORDER BY created_at
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// --- ProductStore -----------------------------------------------------------

const productColumns = `id, company_id, branch_id, name, barcode, quantity, purchase_cents, price_cents, status, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (catalog.Product, error) {
	var (
		p        catalog.Product
		branchID sql.NullString
		barcode  sql.NullString
		status   sql.NullString
	)
	if err := row.Scan(&p.ID, &p.CompanyID, &branchID, &p.Name, &barcode, &p.Quantity, &p.PurchaseCents, &p.PriceCents, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return catalog.Product{}, err
	}
	p.BranchID = branchID.String
	p.Barcode = barcode.String
	p.Status = catalog.Status(status.String)
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if p.CompanyID == "" {
		return catalog.Product{}, errors.New("company_id required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_products (id, company_id, branch_id, name, barcode, quantity, purchase_cents, price_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.CompanyID, toNullString(p.BranchID), p.Name, toNullString(p.Barcode), p.Quantity, p.PurchaseCents, p.PriceCents, toNullString(string(p.Status)), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	existing, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		return catalog.Product{}, err
	}

	p.CompanyID = existing.CompanyID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_products
		SET branch_id = $2, name = $3, barcode = $4, quantity = $5, purchase_cents = $6, price_cents = $7, status = $8, updated_at = $9
		WHERE id = $1
	`, p.ID, toNullString(p.BranchID), p.Name, toNullString(p.Barcode), p.Quantity, p.PurchaseCents, p.PriceCents, toNullString(string(p.Status)), p.UpdatedAt)
	if err != nil {
		return catalog.Product{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return catalog.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM app_products WHERE id = $1
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		return catalog.Product{}, mapNotFound(err)
	}
	return p, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, companyID, barcode string) (catalog.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM app_products WHERE company_id = $1 AND barcode = $2
	`, companyID, barcode)
	p, err := scanProduct(row)
	if err != nil {
		return catalog.Product{}, mapNotFound(err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, companyID string) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM app_products WHERE company_id = $1 ORDER BY created_at
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_products WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustProductQuantity(ctx context.Context, id string, delta int) (catalog.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE app_products
		SET quantity = quantity + $2, updated_at = $3
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING `+productColumns+`
	`, id, delta, time.Now().UTC())
	p, err := scanProduct(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, err
	}
	// Distinguish a missing row from a stock shortfall.
	if _, gerr := s.GetProduct(ctx, id); gerr != nil {
		return catalog.Product{}, gerr
	}
	return catalog.Product{}, storage.ErrInsufficientStock
}

// --- CartStore --------------------------------------------------------------

const cartColumns = `id, company_id, branch_id, cashbox_id, user_id, session_key, shift_id, status, subtotal_cents, discount_cents, tax_cents, total_cents, order_discount_cents, created_at, updated_at`

func scanCart(row interface{ Scan(...any) error }) (pos.Cart, error) {
	var (
		c          pos.Cart
		branchID   sql.NullString
		userID     sql.NullString
		sessionKey sql.NullString
		shiftID    sql.NullString
		status     string
	)
	if err := row.Scan(&c.ID, &c.CompanyID, &branchID, &c.CashboxID, &userID, &sessionKey, &shiftID, &status,
		&c.SubtotalCents, &c.DiscountCents, &c.TaxCents, &c.TotalCents, &c.OrderDiscountCents,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return pos.Cart{}, err
	}
	c.BranchID = branchID.String
	c.UserID = userID.String
	c.SessionKey = sessionKey.String
	c.ShiftID = shiftID.String
	c.Status = pos.CartStatus(status)
	return c, nil
}

func (s *Store) EnsureActiveCart(ctx context.Context, cart pos.Cart) (pos.Cart, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pos.Cart{}, false, err
	}
	defer tx.Rollback()

	var row *sql.Row
	if cart.UserID != "" {
		row = tx.QueryRowContext(ctx, `
			SELECT `+cartColumns+` FROM app_carts
			WHERE cashbox_id = $1 AND user_id = $2 AND status = 'active'
			FOR UPDATE
		`, cart.CashboxID, cart.UserID)
	} else {
		row = tx.QueryRowContext(ctx, `
			SELECT `+cartColumns+` FROM app_carts
			WHERE cashbox_id = $1 AND session_key = $2 AND status = 'active'
			FOR UPDATE
		`, cart.CashboxID, cart.SessionKey)
	}

	existing, err := scanCart(row)
	if err == nil {
		return existing, false, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return pos.Cart{}, false, err
	}

	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}
	cart.Status = pos.CartActive
	now := time.Now().UTC()
	cart.CreatedAt = now
	cart.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO app_carts (id, company_id, branch_id, cashbox_id, user_id, session_key, shift_id, status, subtotal_cents, discount_cents, tax_cents, total_cents, order_discount_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, cart.ID, cart.CompanyID, toNullString(cart.BranchID), cart.CashboxID, toNullString(cart.UserID), toNullString(cart.SessionKey), toNullString(cart.ShiftID), string(cart.Status),
		cart.SubtotalCents, cart.DiscountCents, cart.TaxCents, cart.TotalCents, cart.OrderDiscountCents, cart.CreatedAt, cart.UpdatedAt)
	if err != nil {
		return pos.Cart{}, false, err
	}
	return cart, true, tx.Commit()
}

func (s *Store) UpdateCart(ctx context.Context, cart pos.Cart) (pos.Cart, error) {
	cart.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_carts
		SET shift_id = $2, status = $3, subtotal_cents = $4, discount_cents = $5, tax_cents = $6, total_cents = $7, order_discount_cents = $8, updated_at = $9
		WHERE id = $1
	`, cart.ID, toNullString(cart.ShiftID), string(cart.Status), cart.SubtotalCents, cart.DiscountCents, cart.TaxCents, cart.TotalCents, cart.OrderDiscountCents, cart.UpdatedAt)
	if err != nil {
		return pos.Cart{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return pos.Cart{}, storage.ErrNotFound
	}
	return cart, nil
}

func (s *Store) GetCart(ctx context.Context, id string) (pos.Cart, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cartColumns+` FROM app_carts WHERE id = $1
	`, id)
	c, err := scanCart(row)
	if err != nil {
		return pos.Cart{}, mapNotFound(err)
	}
	return c, nil
}

func (s *Store) ListStaleCarts(ctx context.Context, cutoff time.Time) ([]pos.Cart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cartColumns+` FROM app_carts
		WHERE status = 'active' AND updated_at < $1
		ORDER BY updated_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []pos.Cart
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

const cartItemColumns = `id, cart_id, company_id, branch_id, product_id, custom_name, quantity, unit_price_cents, base_price_cents`

func scanCartItem(row interface{ Scan(...any) error }) (pos.CartItem, error) {
	var (
		it         pos.CartItem
		branchID   sql.NullString
		productID  sql.NullString
		customName sql.NullString
	)
	if err := row.Scan(&it.ID, &it.CartID, &it.CompanyID, &branchID, &productID, &customName, &it.Quantity, &it.UnitPriceCents, &it.BasePriceCents); err != nil {
		return pos.CartItem{}, err
	}
	it.BranchID = branchID.String
	it.ProductID = productID.String
	it.CustomName = customName.String
	return it, nil
}

func (s *Store) CreateCartItem(ctx context.Context, item pos.CartItem) (pos.CartItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_cart_items (id, cart_id, company_id, branch_id, product_id, custom_name, quantity, unit_price_cents, base_price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.CartID, item.CompanyID, toNullString(item.BranchID), toNullString(item.ProductID), toNullString(item.CustomName), item.Quantity, item.UnitPriceCents, item.BasePriceCents)
	if err != nil {
		return pos.CartItem{}, err
	}
	return item, nil
}

func (s *Store) UpdateCartItem(ctx context.Context, item pos.CartItem) (pos.CartItem, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_cart_items
		SET quantity = $2, unit_price_cents = $3, base_price_cents = $4, custom_name = $5
		WHERE id = $1
	`, item.ID, item.Quantity, item.UnitPriceCents, item.BasePriceCents, toNullString(item.CustomName))
	if err != nil {
		return pos.CartItem{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return pos.CartItem{}, storage.ErrNotFound
	}
	return item, nil
}

func (s *Store) DeleteCartItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_cart_items WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) GetCartItem(ctx context.Context, id string) (pos.CartItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cartItemColumns+` FROM app_cart_items WHERE id = $1
	`, id)
	it, err := scanCartItem(row)
	if err != nil {
		return pos.CartItem{}, mapNotFound(err)
	}
	return it, nil
}

func (s *Store) ListCartItems(ctx context.Context, cartID string) ([]pos.CartItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cartItemColumns+` FROM app_cart_items WHERE cart_id = $1 ORDER BY id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []pos.CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

// --- SaleStore --------------------------------------------------------------

const saleColumns = `id, company_id, branch_id, user_id, agent_id, cashbox_id, status, doc_number, subtotal_cents, discount_cents, tax_cents, total_cents, created_at, paid_at`

func scanSale(row interface{ Scan(...any) error }) (pos.Sale, error) {
	var (
		sale      pos.Sale
		branchID  sql.NullString
		userID    sql.NullString
		agentID   sql.NullString
		cashboxID sql.NullString
		status    string
		paidAt    sql.NullTime
	)
	if err := row.Scan(&sale.ID, &sale.CompanyID, &branchID, &userID, &agentID, &cashboxID, &status, &sale.DocNumber,
		&sale.SubtotalCents, &sale.DiscountCents, &sale.TaxCents, &sale.TotalCents, &sale.CreatedAt, &paidAt); err != nil {
		return pos.Sale{}, err
	}
	sale.BranchID = branchID.String
	sale.UserID = userID.String
	sale.AgentID = agentID.String
	sale.CashboxID = cashboxID.String
	sale.Status = pos.SaleStatus(status)
	sale.PaidAt = paidAt.Time
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (pos.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM app_sales WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		return pos.Sale{}, mapNotFound(err)
	}
	return sale, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale pos.Sale) (pos.Sale, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_sales
		SET status = $2, paid_at = $3
		WHERE id = $1
	`, sale.ID, string(sale.Status), toNullTime(sale.PaidAt))
	if err != nil {
		return pos.Sale{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return pos.Sale{}, storage.ErrNotFound
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, companyID string) ([]pos.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+` FROM app_sales WHERE company_id = $1 ORDER BY created_at
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSales(rows)
}

func (s *Store) ListSalesBetween(ctx context.Context, companyID string, from, to time.Time) ([]pos.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+` FROM app_sales
		WHERE company_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at
	`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSales(rows)
}

func collectSales(rows *sql.Rows) ([]pos.Sale, error) {
	var result []pos.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sale)
	}
	return result, rows.Err()
}

const saleItemColumns = `id, sale_id, company_id, branch_id, product_id, name_snapshot, barcode_snapshot, unit_price_cents, quantity`

func scanSaleItem(row interface{ Scan(...any) error }) (pos.SaleItem, error) {
	var (
		it        pos.SaleItem
		branchID  sql.NullString
		productID sql.NullString
		barcode   sql.NullString
	)
	if err := row.Scan(&it.ID, &it.SaleID, &it.CompanyID, &branchID, &productID, &it.NameSnapshot, &barcode, &it.UnitPriceCents, &it.Quantity); err != nil {
		return pos.SaleItem{}, err
	}
	it.BranchID = branchID.String
	it.ProductID = productID.String
	it.BarcodeSnapshot = barcode.String
	return it, nil
}

func (s *Store) ListSaleItems(ctx context.Context, saleID string) ([]pos.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleItemColumns+` FROM app_sale_items WHERE sale_id = $1 ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []pos.SaleItem
	for rows.Next() {
		it, err := scanSaleItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

// --- InventoryStore ---------------------------------------------------------

const consignmentColumns = `id, company_id, branch_id, user_id, agent_id, product_id, qty_transferred, qty_accepted, qty_returned, status, created_at`

func scanConsignment(row interface{ Scan(...any) error }) (inventory.Consignment, error) {
	var (
		c        inventory.Consignment
		branchID sql.NullString
		status   string
	)
	if err := row.Scan(&c.ID, &c.CompanyID, &branchID, &c.UserID, &c.AgentID, &c.ProductID,
		&c.QtyTransferred, &c.QtyAccepted, &c.QtyReturned, &status, &c.CreatedAt); err != nil {
		return inventory.Consignment{}, err
	}
	c.BranchID = branchID.String
	c.Status = inventory.ConsignmentStatus(status)
	return c, nil
}

func (s *Store) CreateConsignment(ctx context.Context, c inventory.Consignment) (inventory.Consignment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_consignments (id, company_id, branch_id, user_id, agent_id, product_id, qty_transferred, qty_accepted, qty_returned, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.CompanyID, toNullString(c.BranchID), c.UserID, c.AgentID, c.ProductID, c.QtyTransferred, c.QtyAccepted, c.QtyReturned, string(c.Status), c.CreatedAt)
	if err != nil {
		return inventory.Consignment{}, err
	}
	return c, nil
}

func (s *Store) UpdateConsignment(ctx context.Context, c inventory.Consignment) (inventory.Consignment, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_consignments
		SET qty_transferred = $2, qty_accepted = $3, qty_returned = $4, status = $5
		WHERE id = $1
	`, c.ID, c.QtyTransferred, c.QtyAccepted, c.QtyReturned, string(c.Status))
	if err != nil {
		return inventory.Consignment{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return inventory.Consignment{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetConsignment(ctx context.Context, id string) (inventory.Consignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+consignmentColumns+` FROM app_consignments WHERE id = $1
	`, id)
	c, err := scanConsignment(row)
	if err != nil {
		return inventory.Consignment{}, mapNotFound(err)
	}
	return c, nil
}

func (s *Store) ListConsignments(ctx context.Context, companyID, agentID string) ([]inventory.Consignment, error) {
	query := `SELECT ` + consignmentColumns + ` FROM app_consignments WHERE company_id = $1`
	args := []any{companyID}
	if agentID != "" {
		query += ` AND agent_id = $2`
		args = append(args, agentID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Consignment
	for rows.Next() {
		c, err := scanConsignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) CreateReturn(ctx context.Context, r inventory.Return) (inventory.Return, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ReturnedAt.IsZero() {
		r.ReturnedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_consignment_returns (id, company_id, branch_id, consignment_id, returned_by, qty, status, accepted_by, returned_at, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.CompanyID, toNullString(r.BranchID), r.ConsignmentID, r.ReturnedBy, r.Qty, string(r.Status), toNullString(r.AcceptedBy), r.ReturnedAt, toNullTime(r.AcceptedAt))
	if err != nil {
		return inventory.Return{}, err
	}
	return r, nil
}

func (s *Store) UpdateReturn(ctx context.Context, r inventory.Return) (inventory.Return, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_consignment_returns
		SET status = $2, accepted_by = $3, accepted_at = $4
		WHERE id = $1
	`, r.ID, string(r.Status), toNullString(r.AcceptedBy), toNullTime(r.AcceptedAt))
	if err != nil {
		return inventory.Return{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return inventory.Return{}, storage.ErrNotFound
	}
	return r, nil
}

const returnColumns = `id, company_id, branch_id, consignment_id, returned_by, qty, status, accepted_by, returned_at, accepted_at`

func scanReturn(row interface{ Scan(...any) error }) (inventory.Return, error) {
	var (
		r          inventory.Return
		branchID   sql.NullString
		status     string
		acceptedBy sql.NullString
		acceptedAt sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.CompanyID, &branchID, &r.ConsignmentID, &r.ReturnedBy, &r.Qty, &status, &acceptedBy, &r.ReturnedAt, &acceptedAt); err != nil {
		return inventory.Return{}, err
	}
	r.BranchID = branchID.String
	r.Status = inventory.ReturnStatus(status)
	r.AcceptedBy = acceptedBy.String
	r.AcceptedAt = acceptedAt.Time
	return r, nil
}

func (s *Store) GetReturn(ctx context.Context, id string) (inventory.Return, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+returnColumns+` FROM app_consignment_returns WHERE id = $1
	`, id)
	r, err := scanReturn(row)
	if err != nil {
		return inventory.Return{}, mapNotFound(err)
	}
	return r, nil
}

func (s *Store) ListReturns(ctx context.Context, companyID string) ([]inventory.Return, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+returnColumns+` FROM app_consignment_returns WHERE company_id = $1 ORDER BY returned_at, id
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Return
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) ListAllocationsBySale(ctx context.Context, saleID string) ([]inventory.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, agent_id, consignment_id, sale_id, sale_item_id, product_id, qty, created_at
		FROM app_sale_allocations
		WHERE sale_id = $1
		ORDER BY created_at, id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Allocation
	for rows.Next() {
		var a inventory.Allocation
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.AgentID, &a.ConsignmentID, &a.SaleID, &a.SaleItemID, &a.ProductID, &a.Qty, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) AllocatedByConsignment(ctx context.Context, companyID, agentID string, productIDs []string) (map[string]int, error) {
	return allocatedByConsignment(ctx, s.db, companyID, agentID, productIDs)
}

// --- CashboxStore -----------------------------------------------------------

func (s *Store) CreateCashbox(ctx context.Context, cb cashbox.Cashbox) (cashbox.Cashbox, error) {
	if cb.ID == "" {
		cb.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cb.CreatedAt = now
	cb.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_cashboxes (id, company_id, branch_id, name, require_shift, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, cb.ID, cb.CompanyID, toNullString(cb.BranchID), cb.Name, cb.RequireShift, cb.CreatedAt, cb.UpdatedAt)
	if err != nil {
		return cashbox.Cashbox{}, err
	}
	return cb, nil
}

func (s *Store) UpdateCashbox(ctx context.Context, cb cashbox.Cashbox) (cashbox.Cashbox, error) {
	cb.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_cashboxes
		SET name = $2, require_shift = $3, updated_at = $4
		WHERE id = $1
	`, cb.ID, cb.Name, cb.RequireShift, cb.UpdatedAt)
	if err != nil {
		return cashbox.Cashbox{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return cashbox.Cashbox{}, storage.ErrNotFound
	}
	return cb, nil
}

const cashboxColumns = `id, company_id, branch_id, name, require_shift, created_at, updated_at`

func scanCashbox(row interface{ Scan(...any) error }) (cashbox.Cashbox, error) {
	var (
		cb       cashbox.Cashbox
		branchID sql.NullString
	)
	if err := row.Scan(&cb.ID, &cb.CompanyID, &branchID, &cb.Name, &cb.RequireShift, &cb.CreatedAt, &cb.UpdatedAt); err != nil {
		return cashbox.Cashbox{}, err
	}
	cb.BranchID = branchID.String
	return cb, nil
}

func (s *Store) GetCashbox(ctx context.Context, id string) (cashbox.Cashbox, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cashboxColumns+` FROM app_cashboxes WHERE id = $1
	`, id)
	cb, err := scanCashbox(row)
	if err != nil {
		return cashbox.Cashbox{}, mapNotFound(err)
	}
	return cb, nil
}

func (s *Store) ListCashboxes(ctx context.Context, companyID string) ([]cashbox.Cashbox, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cashboxColumns+` FROM app_cashboxes WHERE company_id = $1 ORDER BY created_at
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []cashbox.Cashbox
	for rows.Next() {
		cb, err := scanCashbox(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, cb)
	}
	return result, rows.Err()
}

func (s *Store) DeleteCashbox(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_cashboxes WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const shiftColumns = `id, company_id, cashbox_id, cashier_id, status, opened_at, closed_at`

func scanShift(row interface{ Scan(...any) error }) (cashbox.Shift, error) {
	var (
		sh       cashbox.Shift
		status   string
		closedAt sql.NullTime
	)
	if err := row.Scan(&sh.ID, &sh.CompanyID, &sh.CashboxID, &sh.CashierID, &status, &sh.OpenedAt, &closedAt); err != nil {
		return cashbox.Shift{}, err
	}
	sh.Status = cashbox.ShiftStatus(status)
	sh.ClosedAt = closedAt.Time
	return sh, nil
}

func (s *Store) CreateShift(ctx context.Context, sh cashbox.Shift) (cashbox.Shift, error) {
	if sh.ID == "" {
		sh.ID = uuid.NewString()
	}
	if sh.OpenedAt.IsZero() {
		sh.OpenedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_shifts (id, company_id, cashbox_id, cashier_id, status, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sh.ID, sh.CompanyID, sh.CashboxID, sh.CashierID, string(sh.Status), sh.OpenedAt, toNullTime(sh.ClosedAt))
	if err != nil {
		return cashbox.Shift{}, err
	}
	return sh, nil
}

func (s *Store) UpdateShift(ctx context.Context, sh cashbox.Shift) (cashbox.Shift, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_shifts
		SET status = $2, closed_at = $3
		WHERE id = $1
	`, sh.ID, string(sh.Status), toNullTime(sh.ClosedAt))
	if err != nil {
		return cashbox.Shift{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return cashbox.Shift{}, storage.ErrNotFound
	}
	return sh, nil
}

func (s *Store) GetShift(ctx context.Context, id string) (cashbox.Shift, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+` FROM app_shifts WHERE id = $1
	`, id)
	sh, err := scanShift(row)
	if err != nil {
		return cashbox.Shift{}, mapNotFound(err)
	}
	return sh, nil
}

func (s *Store) FindOpenShift(ctx context.Context, cashboxID, cashierID string) (cashbox.Shift, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+` FROM app_shifts
		WHERE cashbox_id = $1 AND cashier_id = $2 AND status = 'open'
	`, cashboxID, cashierID)
	sh, err := scanShift(row)
	if err != nil {
		return cashbox.Shift{}, mapNotFound(err)
	}
	return sh, nil
}

func (s *Store) ListShifts(ctx context.Context, cashboxID string) ([]cashbox.Shift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shiftColumns+` FROM app_shifts WHERE cashbox_id = $1 ORDER BY opened_at, id
	`, cashboxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []cashbox.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sh)
	}
	return result, rows.Err()
}

func (s *Store) CreateFlow(ctx context.Context, f cashbox.Flow) (cashbox.Flow, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_cash_flows (id, company_id, branch_id, cashbox_id, type, name, amount_cents, approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, f.ID, f.CompanyID, toNullString(f.BranchID), f.CashboxID, string(f.Type), toNullString(f.Name), f.AmountCents, f.Approved, f.CreatedAt)
	if err != nil {
		return cashbox.Flow{}, err
	}
	return f, nil
}

func (s *Store) GetFlow(ctx context.Context, id string) (cashbox.Flow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, branch_id, cashbox_id, type, name, amount_cents, approved, created_at
		FROM app_cash_flows
		WHERE id = $1
	`, id)
	f, err := scanFlow(row)
	if err != nil {
		return cashbox.Flow{}, mapNotFound(err)
	}
	return f, nil
}

func (s *Store) ApproveFlow(ctx context.Context, id string) (cashbox.Flow, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE app_cash_flows
		SET approved = TRUE
		WHERE id = $1
		RETURNING id, company_id, branch_id, cashbox_id, type, name, amount_cents, approved, created_at
	`, id)
	f, err := scanFlow(row)
	if err != nil {
		return cashbox.Flow{}, mapNotFound(err)
	}
	return f, nil
}

func scanFlow(row interface{ Scan(...any) error }) (cashbox.Flow, error) {
	var (
		f        cashbox.Flow
		branchID sql.NullString
		ftype    string
		name     sql.NullString
	)
	if err := row.Scan(&f.ID, &f.CompanyID, &branchID, &f.CashboxID, &ftype, &name, &f.AmountCents, &f.Approved, &f.CreatedAt); err != nil {
		return cashbox.Flow{}, err
	}
	f.BranchID = branchID.String
	f.Type = cashbox.FlowType(ftype)
	f.Name = name.String
	return f, nil
}

func (s *Store) ListFlows(ctx context.Context, cashboxID string) ([]cashbox.Flow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, branch_id, cashbox_id, type, name, amount_cents, approved, created_at
		FROM app_cash_flows
		WHERE cashbox_id = $1
		ORDER BY created_at, id
	`, cashboxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []cashbox.Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (s *Store) CashboxSummary(ctx context.Context, cashboxID string) (cashbox.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COALESCE(SUM(amount_cents), 0), COUNT(*)
		FROM app_cash_flows
		WHERE cashbox_id = $1 AND approved = TRUE
		GROUP BY type
	`, cashboxID)
	if err != nil {
		return cashbox.Summary{}, err
	}
	defer rows.Close()

	var sum cashbox.Summary
	for rows.Next() {
		var (
			ftype string
			total int64
			count int
		)
		if err := rows.Scan(&ftype, &total, &count); err != nil {
			return cashbox.Summary{}, err
		}
		switch cashbox.FlowType(ftype) {
		case cashbox.FlowIncome:
			sum.Income = cashbox.SummarySide{TotalCents: total, Count: count}
		case cashbox.FlowExpense:
			sum.Expense = cashbox.SummarySide{TotalCents: total, Count: count}
		}
	}
	return sum, rows.Err()
}

// --- MessageStore -----------------------------------------------------------

func (s *Store) CreateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now().UTC()
	}
	// Webhook retries carry the same external id; keep the first copy.
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO app_messages (id, company_id, channel, external_id, sender, text, read, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (company_id, channel, external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		RETURNING id, company_id, channel, external_id, sender, text, read, received_at
	`, m.ID, m.CompanyID, string(m.Channel), toNullString(m.ExternalID), m.Sender, m.Text, m.Read, m.ReceivedAt)
	got, err := scanMessage(row)
	if err != nil {
		return messaging.Message{}, err
	}
	return got, nil
}

func scanMessage(row interface{ Scan(...any) error }) (messaging.Message, error) {
	var (
		m          messaging.Message
		channel    string
		externalID sql.NullString
	)
	if err := row.Scan(&m.ID, &m.CompanyID, &channel, &externalID, &m.Sender, &m.Text, &m.Read, &m.ReceivedAt); err != nil {
		return messaging.Message{}, err
	}
	m.Channel = messaging.Channel(channel)
	m.ExternalID = externalID.String
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, companyID string) ([]messaging.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, channel, external_id, sender, text, read, received_at
		FROM app_messages
		WHERE company_id = $1
		ORDER BY received_at, id
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []messaging.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Store) MarkMessageRead(ctx context.Context, id string) (messaging.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE app_messages
		SET read = TRUE
		WHERE id = $1
		RETURNING id, company_id, channel, external_id, sender, text, read, received_at
	`, id)
	m, err := scanMessage(row)
	if err != nil {
		return messaging.Message{}, mapNotFound(err)
	}
	return m, nil
}

// --- ReportStore ------------------------------------------------------------

func (s *Store) UpsertDailySummary(ctx context.Context, sum report.DailySummary) (report.DailySummary, error) {
	if sum.ID == "" {
		sum.ID = uuid.NewString()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO app_daily_summaries (id, company_id, day, sale_count, revenue_cents, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, day) DO UPDATE
		SET sale_count = EXCLUDED.sale_count, revenue_cents = EXCLUDED.revenue_cents, computed_at = EXCLUDED.computed_at
		RETURNING id, company_id, day, sale_count, revenue_cents, computed_at
	`, sum.ID, sum.CompanyID, sum.Day, sum.SaleCount, sum.RevenueCents, sum.ComputedAt)

	var got report.DailySummary
	if err := row.Scan(&got.ID, &got.CompanyID, &got.Day, &got.SaleCount, &got.RevenueCents, &got.ComputedAt); err != nil {
		return report.DailySummary{}, err
	}
	return got, nil
}

func (s *Store) ListDailySummaries(ctx context.Context, companyID string) ([]report.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, day, sale_count, revenue_cents, computed_at
		FROM app_daily_summaries
		WHERE company_id = $1
		ORDER BY day
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []report.DailySummary
	for rows.Next() {
		var sum report.DailySummary
		if err := rows.Scan(&sum.ID, &sum.CompanyID, &sum.Day, &sum.SaleCount, &sum.RevenueCents, &sum.ComputedAt); err != nil {
			return nil, err
		}
		result = append(result, sum)
	}
	return result, rows.Err()
}
