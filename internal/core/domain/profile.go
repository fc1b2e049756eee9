package domain

import "time"

// Profile is the per-user profile row. Email comes from the auth identity
// and is not editable here. IsNewUser marks a locally constructed default
// for a user with no stored row yet; it clears after the first save.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsNewUser   bool      `json:"is_new_user"`
}

// NewProfile builds the blank default for a first-time user.
func NewProfile(userID, email string) Profile {
	return Profile{
		ID:        userID,
		Email:     email,
		IsNewUser: true,
	}
}

// Session identifies the authenticated user behind a request. It is created
// by the auth collaborator at sign-in and passed explicitly to every
// usecase; there is no global auth state.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
