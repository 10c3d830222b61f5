package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a persisted account record. PasswordHash and RefreshToken never
// leave the server; use Public for any response payload.
type User struct {
	ID             uuid.UUID
	UserName       string
	Email          string
	PasswordHash   string
	RefreshToken   *string
	ProfilePicture *string
	AuthProvider   *string
	IsOAuthUser    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Public is the sanitized projection of a User.
type Public struct {
	ID             uuid.UUID `json:"id"`
	UserName       string    `json:"userName"`
	Email          string    `json:"email"`
	ProfilePicture *string   `json:"profilePicture,omitempty"`
	AuthProvider   *string   `json:"authProvider,omitempty"`
	IsOAuthUser    bool      `json:"isOAuthUser"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Public strips the secret and refresh token.
func (u User) Public() Public {
	return Public{
		ID:             u.ID,
		UserName:       u.UserName,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		AuthProvider:   u.AuthProvider,
		IsOAuthUser:    u.IsOAuthUser,
		CreatedAt:      u.CreatedAt.UTC(),
		UpdatedAt:      u.UpdatedAt.UTC(),
	}
}

// Candidate carries the fields needed to create a user. PasswordHash must
// already be hashed; repositories store it as-is.
type Candidate struct {
	UserName       string
	Email          string
	PasswordHash   string
	ProfilePicture *string
	AuthProvider   *string
	IsOAuthUser    bool
}

// Normalize lowercases and trims identifiers the way they are stored.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
