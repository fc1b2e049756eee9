package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leafwatch/plant-admin/internal/core/domain"
	"github.com/leafwatch/plant-admin/internal/core/ports"
)

// AnalyticsAggregator buckets classification records from a selected time
// window into summary counters and per-day chart series.
type AnalyticsAggregator struct {
	store  ports.RecordStore
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	period  domain.Period
	records []domain.ClassificationRecord
	loadSeq uint64
}

func NewAnalyticsAggregator(store ports.RecordStore, logger *slog.Logger) *AnalyticsAggregator {
	return &AnalyticsAggregator{
		store:  store,
		logger: logger,
		now:    time.Now,
		period: domain.PeriodWeek,
	}
}

func (a *AnalyticsAggregator) SetPeriod(period domain.Period) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.period = period
}

// Load fetches records created within the selected period. Stale loads are
// discarded the same way history loads are.
func (a *AnalyticsAggregator) Load(ctx context.Context) error {
	a.mu.Lock()
	a.loadSeq++
	seq := a.loadSeq
	since := a.period.Start(a.now())
	a.mu.Unlock()

	records, err := a.store.ListSince(ctx, since)
	if err != nil {
		a.logger.Error("analytics_load_failed", "error", err)
		return domain.WrapError(domain.ErrTemporary, "load analytics", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if seq != a.loadSeq {
		a.logger.Debug("analytics_load_superseded", "seq", seq)
		return nil
	}
	a.records = records
	return nil
}

// Metrics divides by the period's fixed day count (7/30/365), never by the
// elapsed wall time. A week-old deployment still averages over 365 for the
// year view.
func (a *AnalyticsAggregator) Metrics() domain.Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	healthy := 0
	for _, record := range a.records {
		if record.Classification == domain.ClassificationHealthy {
			healthy++
		}
	}
	total := len(a.records)
	return domain.Metrics{
		TotalScans:        total,
		HealthyScans:      healthy,
		UnhealthyScans:    total - healthy,
		DailyAverageScans: float64(total) / float64(a.period.Days()),
	}
}

// Buckets groups the loaded records by calendar-day label in
// first-encountered order. Every record lands in exactly one bucket and
// bumps exactly one of its two counters.
func (a *AnalyticsAggregator) Buckets() []domain.ChartBucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	index := make(map[string]int)
	buckets := make([]domain.ChartBucket, 0)
	for _, record := range a.records {
		date := domain.FormatDate(record.CreatedAt)
		i, ok := index[date]
		if !ok {
			i = len(buckets)
			index[date] = i
			buckets = append(buckets, domain.ChartBucket{Date: date})
		}
		if record.Classification == domain.ClassificationHealthy {
			buckets[i].Healthy++
		} else {
			buckets[i].Unhealthy++
		}
	}
	return buckets
}

// PieSeries is the fixed two-slice healthy/unhealthy breakdown with stable
// colors, so the chart renders deterministically.
func (a *AnalyticsAggregator) PieSeries() []domain.PieSlice {
	metrics := a.Metrics()
	return []domain.PieSlice{
		{Name: string(domain.ClassificationHealthy), Value: metrics.HealthyScans, Color: domain.ColorHealthy},
		{Name: string(domain.ClassificationUnhealthy), Value: metrics.UnhealthyScans, Color: domain.ColorUnhealthy},
	}
}

var _ ports.AnalyticsService = (*AnalyticsAggregator)(nil)
