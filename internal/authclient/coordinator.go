// Package authclient is the client side of the session: an HTTP backend that
// keeps the session cookies, a local mirror of the last known user, and the
// Coordinator that reconciles the two.
package authclient

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/abduss/memorylane/internal/config"
	"github.com/abduss/memorylane/internal/user"
	"go.uber.org/zap"
)

// State is the coordinator's view of the session.
type State int

const (
	StateInitializing State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "initializing"
	}
}

// Snapshot is an immutable copy of the coordinator state. Verified is false
// when User came from the local mirror rather than the server.
type Snapshot struct {
	State    State
	User     *user.Public
	Verified bool
}

// Authenticated reports whether a user is present.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

// Redirector sends the user agent to an external URL.
type Redirector interface {
	Redirect(ctx context.Context, target string) error
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func(ctx context.Context, target string) error

func (f RedirectFunc) Redirect(ctx context.Context, target string) error {
	return f(ctx, target)
}

// Coordinator owns the client session state.
type Coordinator struct {
	backend    Backend
	mirror     Mirror
	idp        config.IdentityProviderConfig
	redirector Redirector
	log        *zap.Logger

	mu    sync.RWMutex
	state Snapshot
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithIdentityProvider enables the federated logout redirect.
func WithIdentityProvider(idp config.IdentityProviderConfig, r Redirector) Option {
	return func(c *Coordinator) {
		c.idp = idp
		c.redirector = r
	}
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// NewCoordinator starts in StateInitializing until CheckAuthStatus runs.
func NewCoordinator(backend Backend, mirror Mirror, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend: backend,
		mirror:  mirror,
		log:     zap.NewNop(),
		state:   Snapshot{State: StateInitializing},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CheckAuthStatus probes the server session. When the probe fails the mirror
// is used for display; without a mirror the state becomes unauthenticated.
// It never fails.
func (c *Coordinator) CheckAuthStatus(ctx context.Context) Snapshot {
	current, err := c.backend.CurrentUser(ctx)
	if err == nil {
		c.adopt(ctx, current, true)
		return c.Snapshot()
	}
	c.log.Debug("session probe failed", zap.Error(err))

	cached, loadErr := c.mirror.Load(ctx)
	if loadErr != nil {
		c.log.Warn("discarding unreadable auth mirror", zap.Error(loadErr))
		c.reset(ctx)
		return c.Snapshot()
	}
	if cached == nil {
		c.reset(ctx)
		return c.Snapshot()
	}

	c.set(Snapshot{State: StateAuthenticated, User: cached, Verified: false})
	return c.Snapshot()
}

// Login authenticates and adopts the returned user. On failure the state and
// mirror are cleared and the error is returned.
func (c *Coordinator) Login(ctx context.Context, identifier, password string) (Snapshot, error) {
	u, err := c.backend.Login(ctx, identifier, password)
	if err != nil {
		c.reset(ctx)
		return c.Snapshot(), err
	}
	c.adopt(ctx, u, true)
	return c.Snapshot(), nil
}

// Register creates an account and adopts it. The snapshot is verified only
// when the server also opened a session.
func (c *Coordinator) Register(ctx context.Context, req RegisterRequest) (Snapshot, error) {
	u, sessionStarted, err := c.backend.Register(ctx, req)
	if err != nil {
		c.reset(ctx)
		return c.Snapshot(), err
	}
	c.adopt(ctx, u, sessionStarted)
	return c.Snapshot(), nil
}

// CompleteOAuth forwards the provider profile and then re-probes the session
// the server just opened.
func (c *Coordinator) CompleteOAuth(ctx context.Context, profile Profile) (Snapshot, bool, error) {
	_, isNew, err := c.backend.OAuthLogin(ctx, profile)
	if err != nil {
		c.reset(ctx)
		return c.Snapshot(), false, err
	}
	return c.CheckAuthStatus(ctx), isNew, nil
}

// Logout ends the session. The server call is best effort; local state is
// always cleared. With an identity provider configured the user agent is
// also sent to the provider's logout page.
func (c *Coordinator) Logout(ctx context.Context) Snapshot {
	if err := c.backend.Logout(ctx); err != nil {
		c.log.Warn("server logout failed", zap.Error(err))
	}
	c.reset(ctx)

	if target, ok := c.FederatedLogoutURL(); ok && c.redirector != nil {
		if err := c.redirector.Redirect(ctx, target); err != nil {
			c.log.Warn("identity provider logout redirect failed", zap.Error(err))
		}
	}
	return c.Snapshot()
}

// FederatedLogoutURL builds the provider logout URL, asking the provider to
// end its own session too.
func (c *Coordinator) FederatedLogoutURL() (string, bool) {
	domain := strings.TrimSpace(c.idp.Domain)
	if domain == "" || strings.TrimSpace(c.idp.ClientID) == "" {
		return "", false
	}
	domain = strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")

	query := url.Values{}
	query.Set("client_id", c.idp.ClientID)
	if c.idp.ReturnTo != "" {
		query.Set("returnTo", c.idp.ReturnTo)
	}

	target := url.URL{
		Scheme:   "https",
		Host:     strings.TrimSuffix(domain, "/"),
		Path:     "/v2/logout",
		RawQuery: query.Encode() + "&federated",
	}
	return target.String(), true
}

func (c *Coordinator) adopt(ctx context.Context, u user.Public, verified bool) {
	if err := c.mirror.Store(ctx, u); err != nil {
		c.log.Warn("store auth mirror", zap.Error(err))
	}
	c.set(Snapshot{State: StateAuthenticated, User: &u, Verified: verified})
}

func (c *Coordinator) reset(ctx context.Context) {
	if err := c.mirror.Clear(ctx); err != nil {
		c.log.Warn("clear auth mirror", zap.Error(err))
	}
	c.set(Snapshot{State: StateUnauthenticated})
}

func (c *Coordinator) set(s Snapshot) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
