package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leafwatch/plant-admin/internal/config"
	"github.com/leafwatch/plant-admin/internal/core/usecase"
	"github.com/leafwatch/plant-admin/internal/infrastructure/auth"
	"github.com/leafwatch/plant-admin/internal/infrastructure/geocode"
	"github.com/leafwatch/plant-admin/internal/infrastructure/repository/postgres"
	"github.com/leafwatch/plant-admin/internal/infrastructure/resilience"
	"github.com/leafwatch/plant-admin/internal/observability/metrics"
)

// App wires the repositories, collaborators, and usecases behind the HTTP
// adapter. Close releases everything New acquired.
type App struct {
	Config  config.Config
	Metrics *metrics.HTTPServerMetrics

	Auth      *auth.Provider
	History   *usecase.HistoryAggregator
	Exporter  *usecase.HistoryExporter
	Analytics *usecase.AnalyticsAggregator
	Overview  *usecase.OverviewUseCase
	Profile   *usecase.ProfileEditor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	records := postgres.NewRecordRepository(db)
	if err := records.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	profiles := postgres.NewProfileRepository(db)
	users := postgres.NewUserRepository(db)

	authProvider, err := auth.NewProvider(users, cfg.JWTSecret, time.Duration(cfg.TokenTTLMinutes)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init auth provider: %w", err)
	}

	serverMetrics := metrics.NewHTTPServerMetrics("plant-admin-api")

	geocodePolicy := resilience.DefaultConfig()
	geocodePolicy.RateLimitRPS = cfg.GeocodeRPS
	geocoder := geocode.New(
		cfg.GeocodeBaseURL,
		cfg.GeocodeAPIKey,
		resilience.NewExecutor(geocodePolicy),
		time.Duration(cfg.GeocodeCacheHours)*time.Hour,
	)
	geocoder.SetObserver(func(outcome string, fromCache bool) {
		if fromCache {
			serverMetrics.RecordGeocodeCacheHit("plant-admin-api")
			return
		}
		serverMetrics.RecordGeocodeLookup("plant-admin-api", outcome)
	})

	history := usecase.NewHistoryAggregator(records, geocoder, logger, cfg.HistoryPageSize)

	return &App{
		Config:  cfg,
		Metrics: serverMetrics,

		Auth:      authProvider,
		History:   history,
		Exporter:  usecase.NewHistoryExporter(history),
		Analytics: usecase.NewAnalyticsAggregator(records, logger),
		Overview:  usecase.NewOverviewUseCase(records),
		Profile:   usecase.NewProfileEditor(profiles, authProvider, logger),

		closeFn: func() {
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
