package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/memorylane/internal/apperror"
	"github.com/abduss/memorylane/internal/config"
	"github.com/abduss/memorylane/internal/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer     = "memorylane"
	accessAudience  = "memorylane-access"
	refreshAudience = "memorylane-refresh"
)

// sessionSaver persists the refresh-token field of a user.
type sessionSaver interface {
	Save(ctx context.Context, u user.User) error
}

// AccessClaims is the payload of an access token. Subject holds the user id.
type AccessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c AccessClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenIssuer mints and verifies access and refresh tokens. Issuing a
// refresh token always overwrites the one stored on the user record.
type TokenIssuer struct {
	store         sessionSaver
	cfg           config.AuthConfig
	now           func() time.Time
	accessParser  *jwt.Parser
	refreshParser *jwt.Parser
}

// NewTokenIssuer creates a TokenIssuer that persists refresh tokens via store.
func NewTokenIssuer(store sessionSaver, cfg config.AuthConfig) *TokenIssuer {
	t := &TokenIssuer{store: store, cfg: cfg, now: time.Now}
	clock := jwt.WithTimeFunc(func() time.Time { return t.now() })
	methods := jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})

	t.accessParser = jwt.NewParser(methods, clock, jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(accessAudience), jwt.WithExpirationRequired())
	t.refreshParser = jwt.NewParser(methods, clock, jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(refreshAudience), jwt.WithExpirationRequired())
	return t
}

// IssueAccessToken signs a short-lived token carrying id, username and email.
func (t *TokenIssuer) IssueAccessToken(u user.User) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.cfg.AccessTokenTTL)

	claims := AccessClaims{
		Username: u.UserName,
		Email:    u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID.String(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{accessAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken signs a refresh token carrying only the user id and
// stores its digest on the user record. The token is unusable unless the
// store accepted it.
func (t *TokenIssuer) IssueRefreshToken(ctx context.Context, u user.User) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.cfg.RefreshTokenTTL)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   u.ID.String(),
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{refreshAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.RefreshTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	digest := t.digest(signed)
	u.RefreshToken = &digest
	if err := t.store.Save(ctx, u); err != nil {
		return "", time.Time{}, fmt.Errorf("store refresh token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssuePair mints both tokens. Any failure is reported as ErrTokenIssuance.
func (t *TokenIssuer) IssuePair(ctx context.Context, u user.User) (TokenPair, error) {
	access, accessExpiry, err := t.IssueAccessToken(u)
	if err != nil {
		return TokenPair{}, apperror.Wrap(apperror.Internal, ErrTokenIssuance.Message, fmt.Errorf("sign access token: %w", err))
	}

	refresh, refreshExpiry, err := t.IssueRefreshToken(ctx, u)
	if err != nil {
		return TokenPair{}, apperror.Wrap(apperror.Internal, ErrTokenIssuance.Message, err)
	}

	return TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  accessExpiry,
		RefreshToken:       refresh,
		RefreshTokenExpiry: refreshExpiry,
	}, nil
}

// ParseAccessToken verifies signature, issuer, audience and expiry.
func (t *TokenIssuer) ParseAccessToken(tokenString string) (AccessClaims, error) {
	var claims AccessClaims
	if strings.TrimSpace(tokenString) == "" {
		return claims, ErrNoToken
	}

	parsed, err := t.accessParser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(t.cfg.AccessTokenSecret), nil
	})
	if err != nil || !parsed.Valid {
		return AccessClaims{}, apperror.Wrap(apperror.Unauthorized, ErrInvalidToken.Message, err)
	}
	if _, err := claims.UserID(); err != nil {
		return AccessClaims{}, apperror.Wrap(apperror.Unauthorized, ErrInvalidToken.Message, err)
	}
	return claims, nil
}

// ParseRefreshToken verifies a refresh token and returns its subject.
func (t *TokenIssuer) ParseRefreshToken(tokenString string) (uuid.UUID, error) {
	if strings.TrimSpace(tokenString) == "" {
		return uuid.Nil, ErrRefreshTokenMissing
	}

	var claims jwt.RegisteredClaims
	parsed, err := t.refreshParser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(t.cfg.RefreshTokenSecret), nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, apperror.Wrap(apperror.Unauthorized, ErrInvalidToken.Message, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperror.Wrap(apperror.Unauthorized, ErrInvalidToken.Message, err)
	}
	return id, nil
}

// MatchesStored reports whether refreshToken is the one currently stored
// for u. A cleared or rotated token never matches.
func (t *TokenIssuer) MatchesStored(u user.User, refreshToken string) bool {
	if u.RefreshToken == nil || *u.RefreshToken == "" {
		return false
	}
	return hmac.Equal([]byte(*u.RefreshToken), []byte(t.digest(refreshToken)))
}

func (t *TokenIssuer) digest(token string) string {
	mac := hmac.New(sha256.New, []byte(t.cfg.RefreshTokenSecret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
