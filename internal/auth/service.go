package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/abduss/memorylane/internal/apperror"
	"github.com/abduss/memorylane/internal/config"
	"github.com/abduss/memorylane/internal/user"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxPasswordLength     = 72 // bcrypt limit
	placeholderSecretSize = 32
	maxUsernameAttempts   = 3
)

var errPasswordTooLong = fmt.Errorf("password exceeds maximum length of %d bytes", maxPasswordLength)

// userStore abstracts the Credential Store.
type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (user.User, error)
	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (user.User, error)
	Create(ctx context.Context, c user.Candidate) (user.User, error)
	Save(ctx context.Context, u user.User) error
}

// Service encapsulates the session flows: register, login, logout,
// current-user, refresh and OAuth login.
type Service struct {
	store  userStore
	tokens *TokenIssuer
	cfg    config.AuthConfig
	log    *zap.Logger
}

// NewService creates a Service with dependencies.
func NewService(store userStore, cfg config.AuthConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:  store,
		tokens: NewTokenIssuer(store, cfg),
		cfg:    cfg,
		log:    log,
	}
}

// Tokens exposes the issuer used by the service.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// Register creates a new user. Tokens are only issued when auto-login on
// registration is enabled; OAuth login always issues them.
func (s *Service) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	username, email := strings.TrimSpace(input.Username), strings.TrimSpace(input.Email)
	if username == "" || email == "" || strings.TrimSpace(input.Password) == "" {
		return RegisterResult{}, ErrCredentialsIncomplete
	}

	_, err := s.store.FindByEmailOrUsername(ctx, email, username)
	switch {
	case err == nil:
		return RegisterResult{}, ErrUserExists
	case !errors.Is(err, user.ErrNotFound):
		return RegisterResult{}, apperror.Wrap(apperror.Internal, "Failed to register user", err)
	}

	hash, err := hashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, errPasswordTooLong) {
			return RegisterResult{}, ErrPasswordTooLong
		}
		return RegisterResult{}, apperror.Wrap(apperror.Internal, "Failed to register user", err)
	}

	created, err := s.store.Create(ctx, user.Candidate{
		UserName:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, user.ErrAlreadyExists) {
			return RegisterResult{}, ErrUserExists
		}
		return RegisterResult{}, apperror.Wrap(apperror.Internal, "Failed to register user", err)
	}

	result := RegisterResult{User: created.Public()}
	if s.cfg.RegisterAutoLogin {
		pair, err := s.tokens.IssuePair(ctx, created)
		if err != nil {
			s.log.Error("issue tokens after registration", zap.String("user_id", created.ID.String()), zap.Error(err))
			return RegisterResult{}, err
		}
		result.Tokens = &pair
	}
	return result, nil
}

// Login verifies credentials and rotates the user's token pair.
func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || strings.TrimSpace(input.Password) == "" {
		return Session{}, ErrCredentialsIncomplete
	}

	u, err := s.store.FindByEmailOrUsername(ctx, identifier, identifier)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Session{}, ErrUserNotFound
		}
		return Session{}, apperror.Wrap(apperror.Internal, "Failed to log in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
		return Session{}, ErrWrongPassword
	}

	pair, err := s.tokens.IssuePair(ctx, u)
	if err != nil {
		s.log.Error("issue tokens on login", zap.String("user_id", u.ID.String()), zap.Error(err))
		return Session{}, err
	}
	return Session{User: u.Public(), Tokens: pair}, nil
}

// Logout clears the stored refresh token. A vanished user is an error.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	u.RefreshToken = nil
	if err := s.store.Save(ctx, u); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return apperror.Wrap(apperror.Internal, "Failed to log out", err)
	}
	return nil
}

// CurrentUser returns the sanitized projection of the user.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (user.Public, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return user.Public{}, err
	}
	return u.Public(), nil
}

// Authenticate resolves an access token to the user it names. The stored
// refresh token is not consulted, so an access token stays valid until it
// expires even after logout.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (user.Public, error) {
	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return user.Public{}, err
	}
	id, err := claims.UserID()
	if err != nil {
		return user.Public{}, ErrInvalidToken
	}

	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.Public{}, ErrInvalidToken
		}
		return user.Public{}, apperror.Wrap(apperror.Internal, "Failed to verify token", err)
	}
	return u.Public(), nil
}

// Refresh exchanges the currently stored refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	id, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return Session{}, err
	}

	u, err := s.findUser(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !s.tokens.MatchesStored(u, refreshToken) {
		return Session{}, ErrRefreshTokenStale
	}

	pair, err := s.tokens.IssuePair(ctx, u)
	if err != nil {
		s.log.Error("issue tokens on refresh", zap.String("user_id", u.ID.String()), zap.Error(err))
		return Session{}, err
	}
	return Session{User: u.Public(), Tokens: pair}, nil
}

// OAuthLogin logs in the account owning the provider email, creating it on
// first sight. Failures past input validation are logged and reported as
// ErrOAuthFailed.
func (s *Service) OAuthLogin(ctx context.Context, input OAuthInput) (OAuthResult, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return OAuthResult{}, ErrOAuthEmailRequired
	}
	provider := strings.TrimSpace(input.Provider)
	if provider == "" {
		provider = s.cfg.DefaultAuthProvider
	}

	log := s.log.With(zap.String("email", user.Normalize(email)), zap.String("provider", provider))

	isNew := false
	u, err := s.store.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, user.ErrNotFound):
		u, isNew, err = s.createOAuthUser(ctx, email, input.Name, input.Picture, provider)
		if err != nil {
			log.Error("oauth login failed", zap.String("stage", "create"), zap.Error(err))
			return OAuthResult{}, apperror.Wrap(apperror.Internal, ErrOAuthFailed.Message, err)
		}
	case err != nil:
		log.Error("oauth login failed", zap.String("stage", "lookup"), zap.Error(err))
		return OAuthResult{}, apperror.Wrap(apperror.Internal, ErrOAuthFailed.Message, err)
	}

	pair, err := s.tokens.IssuePair(ctx, u)
	if err != nil {
		log.Error("oauth login failed", zap.String("stage", "tokens"), zap.Error(err))
		return OAuthResult{}, apperror.Wrap(apperror.Internal, ErrOAuthFailed.Message, err)
	}

	log.Info("oauth login", zap.String("user_id", u.ID.String()), zap.Bool("new_user", isNew))
	return OAuthResult{
		Session:   Session{User: u.Public(), Tokens: pair},
		IsNewUser: isNew,
	}, nil
}

// createOAuthUser provisions a federated account with an unguessable
// placeholder secret. If another request created the same email first, that
// account is returned instead.
func (s *Service) createOAuthUser(ctx context.Context, email, name, picture, provider string) (user.User, bool, error) {
	secret, err := placeholderSecret()
	if err != nil {
		return user.User{}, false, err
	}
	hash, err := hashPassword(secret, s.cfg.BcryptCost)
	if err != nil {
		return user.User{}, false, err
	}

	candidate := user.Candidate{
		Email:        email,
		PasswordHash: hash,
		AuthProvider: &provider,
		IsOAuthUser:  true,
	}
	if picture = strings.TrimSpace(picture); picture != "" {
		candidate.ProfilePicture = &picture
	}

	base := synthesizeUsername(name, email)
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		candidate.UserName = base
		if attempt > 0 {
			candidate.UserName = base + "-" + uuid.NewString()[:6]
		}

		created, err := s.store.Create(ctx, candidate)
		switch {
		case err == nil:
			return created, true, nil
		case errors.Is(err, user.ErrUsernameTaken):
			continue
		case errors.Is(err, user.ErrEmailTaken):
			existing, findErr := s.store.FindByEmail(ctx, email)
			if findErr != nil {
				return user.User{}, false, findErr
			}
			return existing, false, nil
		default:
			return user.User{}, false, err
		}
	}
	return user.User{}, false, fmt.Errorf("no free username derived from %q", base)
}

func (s *Service) findUser(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, apperror.Wrap(apperror.Internal, "Failed to load user", err)
	}
	return u, nil
}

func synthesizeUsername(name, email string) string {
	if n := user.Normalize(name); n != "" {
		return n
	}
	local, _, _ := strings.Cut(email, "@")
	if local = user.Normalize(local); local != "" {
		return local
	}
	return "user"
}

func placeholderSecret() (string, error) {
	raw := make([]byte, placeholderSecretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func hashPassword(password string, cost int) (string, error) {
	if len(password) > maxPasswordLength {
		return "", errPasswordTooLong
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
