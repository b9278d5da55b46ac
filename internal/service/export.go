package service

import (
	"context"
	"fmt"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// exportPageSize is the page size used while walking history for an export.
const exportPageSize = 200

// MaxExportRows bounds a single export.
const MaxExportRows = 50_000

// Export returns the full price history matching f, newest first, by walking
// the paged listing. At most MaxExportRows records are returned.
func (d *Dashboard) Export(ctx context.Context, f domain.PriceFilter) ([]domain.PriceRecord, error) {
	limit := exportPageSize
	out := []domain.PriceRecord{}
	for page := 1; len(out) < MaxExportRows; page++ {
		p := domain.NewListParams(&page, &limit)
		res, err := d.Prices(ctx, f, p)
		if err != nil {
			return nil, fmt.Errorf("service.Dashboard.Export: %w", err)
		}
		out = append(out, res.Items...)
		if len(res.Items) < p.Limit || int64(p.Offset()+len(res.Items)) >= res.Total {
			break
		}
	}
	if len(out) > MaxExportRows {
		out = out[:MaxExportRows]
	}
	return out, nil
}
