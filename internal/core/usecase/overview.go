package usecase

import (
	"context"
	"time"

	"github.com/leafwatch/plant-admin/internal/core/domain"
	"github.com/leafwatch/plant-admin/internal/core/ports"
)

const recentActivityLimit = 5

// OverviewUseCase backs the dashboard landing page: lifetime totals,
// today's scan count, and the most recent activity.
type OverviewUseCase struct {
	store ports.RecordStore
	now   func() time.Time
}

func NewOverviewUseCase(store ports.RecordStore) *OverviewUseCase {
	return &OverviewUseCase{store: store, now: time.Now}
}

func (uc *OverviewUseCase) Load(ctx context.Context) (ports.OverviewStats, error) {
	records, err := uc.store.ListAll(ctx, false)
	if err != nil {
		return ports.OverviewStats{}, domain.WrapError(domain.ErrTemporary, "load overview totals", err)
	}

	now := uc.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := uc.store.ListBetween(ctx, midnight, midnight.AddDate(0, 0, 1))
	if err != nil {
		return ports.OverviewStats{}, domain.WrapError(domain.ErrTemporary, "load today's scans", err)
	}

	recent, err := uc.store.ListRecent(ctx, recentActivityLimit)
	if err != nil {
		return ports.OverviewStats{}, domain.WrapError(domain.ErrTemporary, "load recent activity", err)
	}

	stats := ports.OverviewStats{
		TotalScans: len(records),
		TodayScans: len(today),
		Recent:     recent,
	}
	for _, record := range records {
		if record.Classification == domain.ClassificationHealthy {
			stats.HealthyScans++
		} else {
			stats.UnhealthyScans++
		}
	}
	return stats, nil
}

var _ ports.OverviewService = (*OverviewUseCase)(nil)
