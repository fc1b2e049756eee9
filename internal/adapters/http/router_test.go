package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/leafwatch/plant-admin/internal/config"
	"github.com/leafwatch/plant-admin/internal/core/domain"
	"github.com/leafwatch/plant-admin/internal/core/usecase"
	"github.com/leafwatch/plant-admin/internal/observability/metrics"
)

const testBearerToken = "test-session-token"

var testSession = domain.Session{UserID: "user-1", Email: "admin@example.com"}

type stubRecordStore struct {
	records []domain.ClassificationRecord
	listErr error
}

func (s *stubRecordStore) ListAll(_ context.Context, _ bool) ([]domain.ClassificationRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.ClassificationRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *stubRecordStore) ListSince(_ context.Context, since time.Time) ([]domain.ClassificationRecord, error) {
	out := make([]domain.ClassificationRecord, 0, len(s.records))
	for _, record := range s.records {
		if !record.CreatedAt.Before(since) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *stubRecordStore) ListBetween(_ context.Context, from, to time.Time) ([]domain.ClassificationRecord, error) {
	out := make([]domain.ClassificationRecord, 0, len(s.records))
	for _, record := range s.records {
		if !record.CreatedAt.Before(from) && record.CreatedAt.Before(to) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *stubRecordStore) ListRecent(_ context.Context, limit int) ([]domain.ClassificationRecord, error) {
	if limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]domain.ClassificationRecord, limit)
	copy(out, s.records[:limit])
	return out, nil
}

func (s *stubRecordStore) Create(_ context.Context, record domain.ClassificationRecord) error {
	s.records = append(s.records, record)
	return nil
}

func (s *stubRecordStore) Delete(_ context.Context, id string) error {
	for i, record := range s.records {
		if record.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: id=%s", domain.ErrRecordNotFound, id)
}

func (s *stubRecordStore) DeleteMany(_ context.Context, ids []string) (int, error) {
	gone := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}
	kept := s.records[:0]
	deleted := 0
	for _, record := range s.records {
		if _, ok := gone[record.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	return deleted, nil
}

type stubGeocoder struct{}

func (stubGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return "Test Valley", nil
}

type stubProfileStore struct {
	profiles map[string]domain.Profile
}

func (s *stubProfileStore) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	profile, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", domain.ErrProfileNotFound, id)
	}
	return &profile, nil
}

func (s *stubProfileStore) Upsert(_ context.Context, profile *domain.Profile) error {
	if s.profiles == nil {
		s.profiles = make(map[string]domain.Profile)
	}
	s.profiles[profile.ID] = *profile
	return nil
}

type stubAuthProvider struct {
	passwordCalls int
	passwordErr   error
}

func (s *stubAuthProvider) SignIn(_ context.Context, email, password string) (domain.Session, string, error) {
	if email == testSession.Email && password == "correct-password" {
		return testSession, testBearerToken, nil
	}
	return domain.Session{}, "", domain.ErrUnauthorized
}

func (s *stubAuthProvider) Verify(_ context.Context, token string) (domain.Session, error) {
	if token == testBearerToken {
		return testSession, nil
	}
	return domain.Session{}, errors.New("bad token")
}

func (s *stubAuthProvider) UpdatePassword(_ context.Context, _ domain.Session, _, _ string) error {
	s.passwordCalls++
	return s.passwordErr
}

type testEnv struct {
	handler http.Handler
	store   *stubRecordStore
	auth    *stubAuthProvider
}

func newTestEnv(cfg config.Config, records []domain.ClassificationRecord) *testEnv {
	store := &stubRecordStore{records: records}
	auth := &stubAuthProvider{}
	logger := slog.New(slog.DiscardHandler)
	serverMetrics := metrics.NewHTTPServerMetrics(serviceName)

	history := usecase.NewHistoryAggregator(store, stubGeocoder{}, logger, cfg.HistoryPageSize)
	analytics := usecase.NewAnalyticsAggregator(store, logger)
	overview := usecase.NewOverviewUseCase(store)
	editor := usecase.NewProfileEditor(&stubProfileStore{}, auth, logger)

	rt := NewRouter(
		history,
		usecase.NewHistoryExporter(history),
		analytics,
		overview,
		editor,
		auth,
		serverMetrics,
		cfg,
	)
	return &testEnv{handler: rt.Handler(), store: store, auth: auth}
}

func historyFixture(n int) []domain.ClassificationRecord {
	out := make([]domain.ClassificationRecord, 0, n)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		classification := domain.ClassificationHealthy
		if i%2 == 1 {
			classification = domain.ClassificationUnhealthy
		}
		out = append(out, domain.ClassificationRecord{
			ID:             fmt.Sprintf("rec-%02d", i),
			Classification: classification,
			Confidence:     0.9,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
			Location:       fmt.Sprintf("plot %d", i),
		})
	}
	return out
}
