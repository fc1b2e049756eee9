package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leafwatch/plant-admin/internal/core/domain"
	"github.com/leafwatch/plant-admin/internal/core/ports"
)

// ProfileEditor loads or initializes the per-user profile row, tracks edit
// mode, and drives the password-change flow against the auth collaborator.
type ProfileEditor struct {
	store  ports.ProfileStore
	auth   ports.AuthProvider
	logger *slog.Logger

	mu       sync.Mutex
	editMode bool
}

func NewProfileEditor(store ports.ProfileStore, auth ports.AuthProvider, logger *slog.Logger) *ProfileEditor {
	return &ProfileEditor{
		store:  store,
		auth:   auth,
		logger: logger,
	}
}

// Load fetches the user's profile row. A missing row is the normal
// first-visit path and yields a blank record flagged new; any other store
// error surfaces.
func (p *ProfileEditor) Load(ctx context.Context, session domain.Session) (domain.Profile, error) {
	profile, err := p.store.GetByID(ctx, session.UserID)
	if err != nil {
		if domain.IsKind(err, domain.ErrProfileNotFound) {
			return domain.NewProfile(session.UserID, session.Email), nil
		}
		p.logger.Error("profile_load_failed", "user_id", session.UserID, "error", err)
		return domain.Profile{}, fmt.Errorf("load profile: %w", err)
	}

	profile.Email = session.Email
	return *profile, nil
}

func (p *ProfileEditor) ToggleEdit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.editMode = !p.editMode
	return p.editMode
}

func (p *ProfileEditor) EditMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.editMode
}

// Save upserts the profile keyed by the session's user id. Success clears
// edit mode and the new-user flag.
func (p *ProfileEditor) Save(ctx context.Context, session domain.Session, profile domain.Profile) (domain.Profile, error) {
	profile.ID = session.UserID
	profile.Email = session.Email

	if err := p.store.Upsert(ctx, &profile); err != nil {
		p.logger.Error("profile_save_failed", "user_id", session.UserID, "error", err)
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}

	p.mu.Lock()
	p.editMode = false
	p.mu.Unlock()

	profile.IsNewUser = false
	return profile, nil
}

// ChangePassword short-circuits locally on a new/confirm mismatch — no
// request reaches the auth collaborator. Otherwise the collaborator's
// verdict is passed through verbatim.
func (p *ProfileEditor) ChangePassword(ctx context.Context, session domain.Session, current, newPassword, confirm string) error {
	if newPassword != confirm {
		return fmt.Errorf("%w: new password and confirmation do not match", domain.ErrInvalidInput)
	}
	return p.auth.UpdatePassword(ctx, session, current, newPassword)
}

var _ ports.ProfileService = (*ProfileEditor)(nil)
