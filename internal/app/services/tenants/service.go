package tenants

import (
	"context"
	"fmt"
	"strings"

	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Service manages companies and branches.
type Service struct {
	store storage.TenantStore
	log   *logger.Logger
}

// New constructs a tenant service.
func New(store storage.TenantStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tenants")
	}
	return &Service{store: store, log: log}
}

// CreateCompany registers a new company.
func (s *Service) CreateCompany(ctx context.Context, c tenant.Company) (tenant.Company, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return tenant.Company{}, fmt.Errorf("company name is required")
	}
	created, err := s.store.CreateCompany(ctx, c)
	if err != nil {
		return tenant.Company{}, err
	}
	s.log.WithField("company_id", created.ID).Info("company created")
	return created, nil
}

// UpdateCompany renames a company or replaces its metadata.
func (s *Service) UpdateCompany(ctx context.Context, c tenant.Company) (tenant.Company, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return tenant.Company{}, fmt.Errorf("company name is required")
	}
	return s.store.UpdateCompany(ctx, c)
}

// GetCompany fetches a company by id.
func (s *Service) GetCompany(ctx context.Context, id string) (tenant.Company, error) {
	return s.store.GetCompany(ctx, id)
}

// ListCompanies lists all companies.
func (s *Service) ListCompanies(ctx context.Context) ([]tenant.Company, error) {
	return s.store.ListCompanies(ctx)
}

// DeleteCompany removes a company and everything under it.
func (s *Service) DeleteCompany(ctx context.Context, id string) error {
	if err := s.store.DeleteCompany(ctx, id); err != nil {
		return err
	}
	s.log.WithField("company_id", id).Info("company deleted")
	return nil
}

// CreateBranch adds a branch under a company.
func (s *Service) CreateBranch(ctx context.Context, b tenant.Branch) (tenant.Branch, error) {
	b.Name = strings.TrimSpace(b.Name)
	if b.CompanyID == "" || b.Name == "" {
		return tenant.Branch{}, fmt.Errorf("company_id and name are required")
	}
	if _, err := s.store.GetCompany(ctx, b.CompanyID); err != nil {
		return tenant.Branch{}, fmt.Errorf("company validation failed: %w", err)
	}
	created, err := s.store.CreateBranch(ctx, b)
	if err != nil {
		return tenant.Branch{}, err
	}
	s.log.WithField("branch_id", created.ID).
		WithField("company_id", created.CompanyID).
		Info("branch created")
	return created, nil
}

// GetBranch fetches a branch by id.
func (s *Service) GetBranch(ctx context.Context, id string) (tenant.Branch, error) {
	return s.store.GetBranch(ctx, id)
}

// ListBranches lists a company's branches.
func (s *Service) ListBranches(ctx context.Context, companyID string) ([]tenant.Branch, error) {
	return s.store.ListBranches(ctx, companyID)
}
