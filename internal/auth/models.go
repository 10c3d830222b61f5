package auth

import (
	"time"

	"github.com/abduss/memorylane/internal/user"
)

// TokenPair bundles access and refresh tokens.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// RegisterInput carries data for user registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput carries login credentials. Identifier matches either the
// stored email or the stored username.
type LoginInput struct {
	Identifier string
	Password   string
}

// OAuthInput is the profile forwarded by the client after the identity
// provider authenticated the user.
type OAuthInput struct {
	Email    string
	Name     string
	Picture  string
	Provider string
}

// Session is the outcome of any flow that issues tokens.
type Session struct {
	User   user.Public
	Tokens TokenPair
}

// RegisterResult is the outcome of registration. Tokens is nil unless
// auto-login on registration is enabled.
type RegisterResult struct {
	User   user.Public
	Tokens *TokenPair
}

// OAuthResult is the outcome of a federated login.
type OAuthResult struct {
	Session
	IsNewUser bool
}
