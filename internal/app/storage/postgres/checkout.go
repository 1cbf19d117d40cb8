package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/inventory"
	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/storage"
)

// querier is the subset of sql.DB and sql.Tx used by shared query helpers.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Checkout runs fn inside one database transaction. The transaction is rolled
// back when fn returns an error, otherwise committed.
func (s *Store) Checkout(ctx context.Context, fn func(tx storage.CheckoutTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkout: %w", err)
	}

	if err := fn(&checkoutTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkout: %w", err)
	}
	return nil
}

type checkoutTx struct {
	tx *sql.Tx
}

var _ storage.CheckoutTx = (*checkoutTx)(nil)

// LockProducts takes row locks in id order so concurrent checkouts cannot
// deadlock on each other.
func (t *checkoutTx) LockProducts(ctx context.Context, companyID string, ids []string) ([]catalog.Product, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+productColumns+` FROM app_products
		WHERE company_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE
	`, companyID, pq.Array(ids))
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) != len(ids) {
		return nil, storage.ErrNotFound
	}
	return result, nil
}

func (t *checkoutTx) SetProductQuantities(ctx context.Context, quantities map[string]int) error {
	now := time.Now().UTC()
	for id, qty := range quantities {
		result, err := t.tx.ExecContext(ctx, `
			UPDATE app_products SET quantity = $2, updated_at = $3 WHERE id = $1
		`, id, qty, now)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return storage.ErrNotFound
		}
	}
	return nil
}

func (t *checkoutTx) LockAgentConsignments(ctx context.Context, companyID, agentID string, productIDs []string) ([]inventory.Consignment, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+consignmentColumns+` FROM app_consignments
		WHERE company_id = $1 AND agent_id = $2 AND product_id = ANY($3)
		ORDER BY product_id, created_at, id
		FOR UPDATE
	`, companyID, agentID, pq.Array(productIDs))
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

func (t *checkoutTx) AllocatedByConsignment(ctx context.Context, companyID, agentID string, productIDs []string) (map[string]int, error) {
	return allocatedByConsignment(ctx, t.tx, companyID, agentID, productIDs)
}

func allocatedByConsignment(ctx context.Context, q querier, companyID, agentID string, productIDs []string) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT consignment_id, COALESCE(SUM(qty), 0)
		FROM app_sale_allocations
		WHERE company_id = $1 AND agent_id = $2 AND product_id = ANY($3)
		GROUP BY consignment_id
	`, companyID, agentID, pq.Array(productIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			consignmentID string
			qty           int
		)
		if err := rows.Scan(&consignmentID, &qty); err != nil {
			return nil, err
		}
		out[consignmentID] = qty
	}
	return out, rows.Err()
}

// NextDocNumber increments the company's document counter, creating the
// counter row on first use. The row lock the upsert takes also serializes
// concurrent checkouts within a company.
func (t *checkoutTx) NextDocNumber(ctx context.Context, companyID string) (int64, error) {
	row := t.tx.QueryRowContext(ctx, `
		INSERT INTO app_doc_counters (company_id, last_number)
		VALUES ($1, 1)
		ON CONFLICT (company_id) DO UPDATE SET last_number = app_doc_counters.last_number + 1
		RETURNING last_number
	`, companyID)

	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (t *checkoutTx) InsertSale(ctx context.Context, sale pos.Sale) (pos.Sale, error) {
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO app_sales (id, company_id, branch_id, user_id, agent_id, cashbox_id, status, doc_number, subtotal_cents, discount_cents, tax_cents, total_cents, created_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, sale.ID, sale.CompanyID, toNullString(sale.BranchID), toNullString(sale.UserID), toNullString(sale.AgentID), toNullString(sale.CashboxID),
		string(sale.Status), sale.DocNumber, sale.SubtotalCents, sale.DiscountCents, sale.TaxCents, sale.TotalCents, sale.CreatedAt, toNullTime(sale.PaidAt))
	if err != nil {
		return pos.Sale{}, err
	}
	return sale, nil
}

func (t *checkoutTx) InsertSaleItems(ctx context.Context, items []pos.SaleItem) ([]pos.SaleItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	values := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*9)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		it := items[i]
		base := i * 9
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args, it.ID, it.SaleID, it.CompanyID, toNullString(it.BranchID), toNullString(it.ProductID),
			it.NameSnapshot, toNullString(it.BarcodeSnapshot), it.UnitPriceCents, it.Quantity)
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO app_sale_items (id, sale_id, company_id, branch_id, product_id, name_snapshot, barcode_snapshot, unit_price_cents, quantity)
		VALUES `+strings.Join(values, ", "), args...)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (t *checkoutTx) InsertAllocations(ctx context.Context, allocs []inventory.Allocation) error {
	if len(allocs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	values := make([]string, 0, len(allocs))
	args := make([]any, 0, len(allocs)*9)
	for i := range allocs {
		if allocs[i].ID == "" {
			allocs[i].ID = uuid.NewString()
		}
		if allocs[i].CreatedAt.IsZero() {
			allocs[i].CreatedAt = now
		}
		a := allocs[i]
		base := i * 9
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args, a.ID, a.CompanyID, a.AgentID, a.ConsignmentID, a.SaleID, a.SaleItemID, a.ProductID, a.Qty, a.CreatedAt)
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO app_sale_allocations (id, company_id, agent_id, consignment_id, sale_id, sale_item_id, product_id, qty, created_at)
		VALUES `+strings.Join(values, ", "), args...)
	return err
}

func (t *checkoutTx) CloseCart(ctx context.Context, cartID string, status pos.CartStatus, clearItems bool) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE app_carts SET status = $2, updated_at = $3 WHERE id = $1
	`, cartID, string(status), time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	if clearItems {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM app_cart_items WHERE cart_id = $1`, cartID); err != nil {
			return err
		}
	}
	return nil
}
