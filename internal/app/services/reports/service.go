package reports

import (
	"context"
	"time"

	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/domain/report"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Service computes and serves daily sales rollups.
type Service struct {
	tenants storage.TenantStore
	sales   storage.SaleStore
	store   storage.ReportStore
	log     *logger.Logger
}

// New constructs a report service.
func New(tenants storage.TenantStore, sales storage.SaleStore, store storage.ReportStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reports")
	}
	return &Service{tenants: tenants, sales: sales, store: store, log: log}
}

// ComputeDaily rolls up one company's paid sales for the UTC day containing
// the given time. Canceled and unpaid sales are excluded.
func (s *Service) ComputeDaily(ctx context.Context, companyID string, at time.Time) (report.DailySummary, error) {
	day := at.UTC().Truncate(24 * time.Hour)
	sales, err := s.sales.ListSalesBetween(ctx, companyID, day, day.Add(24*time.Hour))
	if err != nil {
		return report.DailySummary{}, err
	}

	sum := report.DailySummary{
		CompanyID:  companyID,
		Day:        day,
		ComputedAt: time.Now().UTC(),
	}
	for _, sale := range sales {
		if sale.Status != pos.SalePaid {
			continue
		}
		sum.SaleCount++
		sum.RevenueCents += sale.TotalCents
	}
	return s.store.UpsertDailySummary(ctx, sum)
}

// ComputeAll rolls up every company for the given time.
func (s *Service) ComputeAll(ctx context.Context, at time.Time) error {
	companies, err := s.tenants.ListCompanies(ctx)
	if err != nil {
		return err
	}
	for _, c := range companies {
		if _, err := s.ComputeDaily(ctx, c.ID, at); err != nil {
			s.log.WithError(err).Warnf("daily rollup for company %s failed", c.ID)
		}
	}
	return nil
}

// List lists a company's daily summaries.
func (s *Service) List(ctx context.Context, companyID string) ([]report.DailySummary, error) {
	return s.store.ListDailySummaries(ctx, companyID)
}
