package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/leafwatch/plant-admin/internal/core/domain"
)

// User is a credential row owned by the auth collaborator. The rest of the
// system never sees it; it only sees domain.Session.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists auth credentials.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// Provider is a self-hosted auth collaborator: bcrypt-verified credentials
// and HS256 session tokens.
type Provider struct {
	users    UserStore
	secret   []byte
	tokenTTL time.Duration
}

func NewProvider(users UserStore, secret string, tokenTTL time.Duration) (*Provider, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("auth: JWT secret must be configured")
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Provider{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Session, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return domain.Session{}, "", fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.Session{}, "", fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	token, err := p.issueToken(user)
	if err != nil {
		return domain.Session{}, "", err
	}
	return domain.Session{UserID: user.ID, Email: user.Email}, token, nil
}

func (p *Provider) Verify(ctx context.Context, tokenString string) (domain.Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Session{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: malformed claims", domain.ErrUnauthorized)
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" {
		return domain.Session{}, fmt.Errorf("%w: token missing subject", domain.ErrUnauthorized)
	}
	return domain.Session{UserID: sub, Email: email}, nil
}

// UpdatePassword re-checks the current password before re-hashing. The
// mismatch check between new and confirm happens upstream in the profile
// editor; by the time this runs the new password is final.
func (p *Provider) UpdatePassword(ctx context.Context, session domain.Session, current, newPassword string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: password too short (min 6)", domain.ErrInvalidInput)
	}
	user, err := p.users.GetByID(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("%w: unknown user", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return fmt.Errorf("%w: current password is incorrect", domain.ErrUnauthorized)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return p.users.UpdatePasswordHash(ctx, user.ID, string(hash))
}

// Register creates a credential row. Used by seeding and operator tooling;
// the dashboard itself has no sign-up flow.
func (p *Provider) Register(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email required", domain.ErrInvalidInput)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("%w: password too short (min 6)", domain.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (p *Provider) issueToken(user *User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"jti":   uuid.NewString(),
		"exp":   time.Now().Add(p.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
