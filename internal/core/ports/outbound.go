package ports

import (
	"context"
	"time"

	"github.com/leafwatch/plant-admin/internal/core/domain"
)

// RecordStore reads and deletes classification records. Records are created
// by the external classifier; Create exists for seeding and tests.
type RecordStore interface {
	ListAll(ctx context.Context, ascending bool) ([]domain.ClassificationRecord, error)
	ListSince(ctx context.Context, since time.Time) ([]domain.ClassificationRecord, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.ClassificationRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ClassificationRecord, error)
	Create(ctx context.Context, record domain.ClassificationRecord) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int, error)
}

// ProfileStore persists per-user profile rows keyed by the auth user id.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	Upsert(ctx context.Context, profile *domain.Profile) error
}

// Geocoder resolves coordinates to a human-readable place name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// AuthProvider is the external auth collaborator: it owns credentials,
// issues session tokens, and verifies them.
type AuthProvider interface {
	SignIn(ctx context.Context, email, password string) (domain.Session, string, error)
	Verify(ctx context.Context, token string) (domain.Session, error)
	UpdatePassword(ctx context.Context, session domain.Session, current, newPassword string) error
}
