package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. It enforces the same
// uniqueness rules as the PostgreSQL schema and is used for local runs and
// tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
	now   func() time.Time
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: make(map[uuid.UUID]User),
		now:   time.Now,
	}
}

// Create persists a new user record.
func (m *MemoryRepository) Create(_ context.Context, c Candidate) (User, error) {
	if c.PasswordHash == "" {
		return User{}, ErrMissingSecret
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	email, username := Normalize(c.Email), Normalize(c.UserName)
	for _, existing := range m.users {
		if existing.UserName == username {
			return User{}, ErrUsernameTaken
		}
		if existing.Email == email {
			return User{}, ErrEmailTaken
		}
	}

	now := m.now()
	user := User{
		ID:             uuid.New(),
		UserName:       username,
		Email:          email,
		PasswordHash:   c.PasswordHash,
		ProfilePicture: c.ProfilePicture,
		AuthProvider:   c.AuthProvider,
		IsOAuthUser:    c.IsOAuthUser,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.users[user.ID] = user
	return user, nil
}

// FindByID fetches a user by identifier.
func (m *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

// FindByEmail fetches a user by email.
func (m *MemoryRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return m.FindByEmailOrUsername(ctx, email, "")
}

// FindByEmailOrUsername fetches the oldest user matching either identifier.
func (m *MemoryRepository) FindByEmailOrUsername(_ context.Context, email, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email, username = Normalize(email), Normalize(username)
	var (
		found User
		ok    bool
	)
	for _, u := range m.users {
		match := (email != "" && u.Email == email) || (username != "" && u.UserName == username)
		if match && (!ok || u.CreatedAt.Before(found.CreatedAt)) {
			found, ok = u, true
		}
	}
	if !ok {
		return User{}, ErrNotFound
	}
	return found, nil
}

// Save writes the mutable session fields of u.
func (m *MemoryRepository) Save(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	existing.RefreshToken = u.RefreshToken
	existing.UpdatedAt = m.now()
	m.users[u.ID] = existing
	return nil
}

// Delete removes a user. No HTTP flow deletes users; it exists so tests can
// simulate an identity vanishing mid-session.
func (m *MemoryRepository) Delete(_ context.Context, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

// Len reports how many users are stored.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
