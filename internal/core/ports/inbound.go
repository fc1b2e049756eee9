package ports

import (
	"context"

	"github.com/leafwatch/plant-admin/internal/core/domain"
)

// HistoryView is one rendered page of the history table.
type HistoryView struct {
	Records     []domain.ClassificationRecord `json:"records"`
	Page        int                           `json:"page"`
	TotalPages  int                           `json:"total_pages"`
	TotalCount  int                           `json:"total_count"`
	Selected    []string                      `json:"selected"`
	AllSelected bool                          `json:"all_selected"`
	Notice      string                        `json:"notice,omitempty"`
}

// HistoryService is the inbound contract for the history table view.
type HistoryService interface {
	Load(ctx context.Context, ascending bool) error
	SetSearch(term string)
	View(page int) HistoryView
	ToggleSelect(id string)
	ToggleSelectAllOnPage()
	Delete(ctx context.Context, id string) error
	DeleteSelected(ctx context.Context) error
	OpenDetail(id string) (*domain.ClassificationRecord, bool)
	CloseDetail()
}

// AnalyticsService is the inbound contract for the analytics view.
type AnalyticsService interface {
	SetPeriod(period domain.Period)
	Load(ctx context.Context) error
	Metrics() domain.Metrics
	Buckets() []domain.ChartBucket
	PieSeries() []domain.PieSlice
}

// OverviewStats backs the dashboard landing page.
type OverviewStats struct {
	TotalScans     int                           `json:"total_scans"`
	HealthyScans   int                           `json:"healthy_scans"`
	UnhealthyScans int                           `json:"unhealthy_scans"`
	TodayScans     int                           `json:"today_scans"`
	Recent         []domain.ClassificationRecord `json:"recent"`
}

// OverviewService is the inbound contract for the dashboard overview.
type OverviewService interface {
	Load(ctx context.Context) (OverviewStats, error)
}

// ProfileService is the inbound contract for the profile editor.
type ProfileService interface {
	Load(ctx context.Context, session domain.Session) (domain.Profile, error)
	ToggleEdit() bool
	EditMode() bool
	Save(ctx context.Context, session domain.Session, profile domain.Profile) (domain.Profile, error)
	ChangePassword(ctx context.Context, session domain.Session, current, newPassword, confirm string) error
}
