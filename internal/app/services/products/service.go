package products

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/retailcore/commerce_layer/internal/app/domain/catalog"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

const cacheTTL = 5 * time.Minute

// Service manages the product catalog. A Redis client is optional; without
// one every read goes straight to the store.
type Service struct {
	store storage.ProductStore
	cache *redis.Client
	log   *logger.Logger
}

// New constructs a product service.
func New(store storage.ProductStore, cache *redis.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("products")
	}
	return &Service{store: store, cache: cache, log: log}
}

// Create registers a product.
func (s *Service) Create(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.CompanyID == "" || p.Name == "" {
		return catalog.Product{}, fmt.Errorf("company_id and name are required")
	}
	if p.Quantity < 0 {
		return catalog.Product{}, fmt.Errorf("quantity cannot be negative")
	}
	if p.PriceCents < 0 || p.PurchaseCents < 0 {
		return catalog.Product{}, fmt.Errorf("prices cannot be negative")
	}
	if p.Status == "" {
		p.Status = catalog.StatusPending
	}
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return catalog.Product{}, err
	}
	s.log.WithField("product_id", created.ID).
		WithField("company_id", created.CompanyID).
		Info("product created")
	return created, nil
}

// Update edits a product and drops its cache entry.
func (s *Service) Update(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return catalog.Product{}, fmt.Errorf("name is required")
	}
	updated, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return catalog.Product{}, err
	}
	s.invalidate(ctx, updated.CompanyID, updated.ID)
	return updated, nil
}

// SetStatus moves a product through the review workflow.
func (s *Service) SetStatus(ctx context.Context, id string, status catalog.Status) (catalog.Product, error) {
	switch status {
	case catalog.StatusPending, catalog.StatusAccepted, catalog.StatusRejected:
	default:
		return catalog.Product{}, fmt.Errorf("unsupported status %q", status)
	}
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}
	p.Status = status
	updated, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return catalog.Product{}, err
	}
	s.invalidate(ctx, updated.CompanyID, id)
	return updated, nil
}

// Get fetches a product, serving from cache when possible. The cache is
// keyed per company, so a caller's companyID only ever hits its own entries.
func (s *Service) Get(ctx context.Context, companyID, id string) (catalog.Product, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(companyID, id)).Bytes(); err == nil {
			var p catalog.Product
			if json.Unmarshal(raw, &p) == nil {
				return p, nil
			}
		}
	}
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}
	s.fill(ctx, p)
	return p, nil
}

// GetByBarcode resolves a product by its scan code.
func (s *Service) GetByBarcode(ctx context.Context, companyID, barcode string) (catalog.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return catalog.Product{}, fmt.Errorf("barcode is required")
	}
	return s.store.GetProductByBarcode(ctx, companyID, barcode)
}

// List lists the products visible in the caller's scope.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]catalog.Product, error) {
	all, err := s.store.ListProducts(ctx, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if scope.Visible(p.BranchID) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, p.CompanyID, id)
	s.log.WithField("product_id", id).Info("product deleted")
	return nil
}

// AdjustQuantity applies a stock delta outside of checkout, e.g. receiving
// goods or correcting counts.
func (s *Service) AdjustQuantity(ctx context.Context, id string, delta int) (catalog.Product, error) {
	p, err := s.store.AdjustProductQuantity(ctx, id, delta)
	if err != nil {
		return catalog.Product{}, err
	}
	s.invalidate(ctx, p.CompanyID, id)
	return p, nil
}

func cacheKey(companyID, id string) string { return "product:" + companyID + ":" + id }

func (s *Service) fill(ctx context.Context, p catalog.Product) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(p.CompanyID, p.ID), raw, cacheTTL).Err(); err != nil {
		s.log.WithError(err).Warn("product cache write failed")
	}
}

func (s *Service) invalidate(ctx context.Context, companyID, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(companyID, id)).Err(); err != nil {
		s.log.WithError(err).Warn("product cache invalidation failed")
	}
}
