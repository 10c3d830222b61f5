package authclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abduss/memorylane/internal/auth"
	"github.com/abduss/memorylane/internal/config"
	"github.com/abduss/memorylane/internal/server"
	"github.com/abduss/memorylane/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Store: config.StoreMemory,
		Auth: config.AuthConfig{
			AccessTokenSecret:   "access-secret",
			RefreshTokenSecret:  "refresh-secret",
			AccessTokenTTL:      time.Minute,
			RefreshTokenTTL:     time.Hour,
			BcryptCost:          4,
			DefaultAuthProvider: "google",
		},
		Metrics: config.MetricsConfig{PrometheusPath: "/metrics"},
	}
	handler := server.NewHandler(server.Dependencies{
		Config:      cfg,
		AuthService: auth.NewService(user.NewMemoryRepository(), cfg.Auth, zap.NewNop()),
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL+"/api/", 5*time.Second)
	require.NoError(t, err)
	return client
}

// stubBackend fails every call unless a hook is set.
type stubBackend struct {
	currentUser func() (user.Public, error)
	logout      func() error
}

var errOffline = errors.New("dial tcp: connection refused")

func (s stubBackend) Register(context.Context, RegisterRequest) (user.Public, bool, error) {
	return user.Public{}, false, errOffline
}

func (s stubBackend) Login(context.Context, string, string) (user.Public, error) {
	return user.Public{}, errOffline
}

func (s stubBackend) Logout(context.Context) error {
	if s.logout != nil {
		return s.logout()
	}
	return errOffline
}

func (s stubBackend) CurrentUser(context.Context) (user.Public, error) {
	if s.currentUser != nil {
		return s.currentUser()
	}
	return user.Public{}, errOffline
}

func (s stubBackend) OAuthLogin(context.Context, Profile) (user.Public, bool, error) {
	return user.Public{}, false, errOffline
}

func TestCoordinatorSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	mirror := newTestMirror(t)
	c := NewCoordinator(newTestClient(t), mirror)
	assert.Equal(t, StateInitializing, c.Snapshot().State)

	snap := c.CheckAuthStatus(ctx)
	assert.Equal(t, StateUnauthenticated, snap.State)

	snap, err := c.Register(ctx, RegisterRequest{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, snap.Authenticated())
	assert.False(t, snap.Verified, "registration does not open a server session")

	// No cookie yet, so the probe fails and the mirror is shown.
	snap = c.CheckAuthStatus(ctx)
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.False(t, snap.Verified)
	require.NotNil(t, snap.User)
	assert.Equal(t, "alice", snap.User.UserName)

	snap, err = c.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, snap.Verified)

	snap = c.CheckAuthStatus(ctx)
	assert.True(t, snap.Verified)
	assert.Equal(t, "a@x.com", snap.User.Email)

	snap = c.Logout(ctx)
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)

	cached, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)

	snap = c.CheckAuthStatus(ctx)
	assert.Equal(t, StateUnauthenticated, snap.State)
}

func TestCoordinatorLoginFailureClearsState(t *testing.T) {
	ctx := context.Background()
	mirror := newTestMirror(t)
	client := newTestClient(t)
	c := NewCoordinator(client, mirror)

	_, err := c.Register(ctx, RegisterRequest{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	snap, err := c.Login(ctx, "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, StateUnauthenticated, snap.State)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Password is incorrect", apiErr.Message)
	assert.Equal(t, "Incorrect password. Please try again.", UserMessage(err))

	cached, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)

	_, err = c.Register(ctx, RegisterRequest{Username: "alice", Email: "other@x.com", Password: "pw"})
	assert.Equal(t, "An account with this email or username already exists.", UserMessage(err))
}

func TestCoordinatorCompleteOAuth(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(newTestClient(t), newTestMirror(t))

	snap, isNew, err := c.CompleteOAuth(ctx, Profile{Email: "b@y.com", Name: "Bob"})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, snap.Verified)
	require.NotNil(t, snap.User)
	assert.True(t, snap.User.IsOAuthUser)

	_, isNew, err = c.CompleteOAuth(ctx, Profile{Email: "b@y.com", Name: "Bob"})
	require.NoError(t, err)
	assert.False(t, isNew)

	_, _, err = c.CompleteOAuth(ctx, Profile{Name: "Bob"})
	assert.Equal(t, "Your sign-in provider did not share an email address.", UserMessage(err))
	assert.Equal(t, StateUnauthenticated, c.Snapshot().State)
}

func TestCheckAuthStatusDiscardsCorruptMirror(t *testing.T) {
	ctx := context.Background()
	mirror := newTestMirror(t)
	_, err := mirror.db.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, mirrorUserKey, []byte("{"))
	require.NoError(t, err)

	c := NewCoordinator(stubBackend{}, mirror)
	snap := c.CheckAuthStatus(ctx)
	assert.Equal(t, StateUnauthenticated, snap.State)

	cached, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCheckAuthStatusFallsBackToMirror(t *testing.T) {
	ctx := context.Background()
	mirror := newTestMirror(t)
	alice := user.Public{ID: uuid.New(), UserName: "alice", Email: "a@x.com"}
	require.NoError(t, mirror.Store(ctx, alice))

	c := NewCoordinator(stubBackend{}, mirror)
	snap := c.CheckAuthStatus(ctx)
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.False(t, snap.Verified)
	assert.Equal(t, alice.ID, snap.User.ID)
}

func TestLogoutIsBestEffortAndRedirectsToProvider(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)

	var redirected string
	idp := config.IdentityProviderConfig{
		Domain:   "https://tenant.auth0.com/",
		ClientID: "abc",
		ReturnTo: "http://localhost:5173",
	}
	c := NewCoordinator(
		stubBackend{currentUser: func() (user.Public, error) {
			return user.Public{ID: uuid.New(), UserName: "bob"}, nil
		}},
		newTestMirror(t),
		WithLogger(zap.New(core)),
		WithIdentityProvider(idp, RedirectFunc(func(_ context.Context, target string) error {
			redirected = target
			return nil
		})),
	)
	require.True(t, c.CheckAuthStatus(ctx).Authenticated())

	snap := c.Logout(ctx)
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Equal(t, "https://tenant.auth0.com/v2/logout?client_id=abc&returnTo=http%3A%2F%2Flocalhost%3A5173&federated", redirected)
	assert.Equal(t, 1, logs.FilterMessage("server logout failed").Len())
}

func TestFederatedLogoutURLRequiresProvider(t *testing.T) {
	c := NewCoordinator(stubBackend{}, newTestMirror(t))
	_, ok := c.FederatedLogoutURL()
	assert.False(t, ok)
}

func TestClientReportsNonJSONErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = client.CurrentUser(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "HTTP error! status: 502", apiErr.Message)
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(err))
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errOffline, "Unable to reach the server. Check your connection and try again."},
		{&APIError{Status: 400, Message: "Credential Incomplete"}, "Please fill in all required fields."},
		{&APIError{Status: 404, Message: "User not found"}, "No account found with that email or username."},
		{&APIError{Status: 401, Message: "Unauthorized: Invalid token"}, "Your session has expired. Please sign in again."},
		{&APIError{Status: 500, Message: "Failed to process OAuth login"}, "Something went wrong. Please try again."},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, UserMessage(tc.err))
	}
}
