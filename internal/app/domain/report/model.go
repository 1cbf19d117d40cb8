// Package report defines aggregated sales figures.
package report

import "time"

// DailySummary is the per-company sales rollup for one UTC day.
type DailySummary struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Day          time.Time `json:"day"`
	SaleCount    int       `json:"sale_count"`
	RevenueCents int64     `json:"revenue_cents"`
	ComputedAt   time.Time `json:"computed_at"`
}
