package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/abduss/memorylane/internal/apperror"
	"github.com/abduss/memorylane/internal/user"
)

// Backend is the server surface the coordinator drives.
type Backend interface {
	Register(ctx context.Context, req RegisterRequest) (user.Public, bool, error)
	Login(ctx context.Context, identifier, password string) (user.Public, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (user.Public, error)
	OAuthLogin(ctx context.Context, profile Profile) (user.Public, bool, error)
}

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Profile is what the identity provider returned about the user.
type Profile struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to the session endpoints. Session cookies live in its jar, so
// callers never handle tokens directly.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client with a fresh cookie jar.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return NewClientWithHTTP(baseURL, &http.Client{Jar: jar, Timeout: timeout}), nil
}

// NewClientWithHTTP uses hc as is. hc needs a cookie jar for sessions to work.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: hc}
}

type sessionData struct {
	User      *user.Public `json:"user"`
	IsNewUser bool         `json:"isNewUser"`
}

// Register creates an account. The flag reports whether the server also
// started a session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (user.Public, bool, error) {
	env, err := c.do(ctx, http.MethodPost, "/users/register", req)
	if err != nil {
		return user.Public{}, false, err
	}

	var session sessionData
	if err := json.Unmarshal(env.Data, &session); err == nil && session.User != nil {
		return *session.User, true, nil
	}

	var created user.Public
	if err := json.Unmarshal(env.Data, &created); err != nil {
		return user.Public{}, false, fmt.Errorf("decode register response: %w", err)
	}
	return created, false, nil
}

// Login authenticates with an email or username.
func (c *Client) Login(ctx context.Context, identifier, password string) (user.Public, error) {
	env, err := c.do(ctx, http.MethodPost, "/users/login", map[string]string{
		"email":    identifier,
		"password": password,
	})
	if err != nil {
		return user.Public{}, err
	}
	session, err := decodeSession(env)
	if err != nil {
		return user.Public{}, fmt.Errorf("decode login response: %w", err)
	}
	return *session.User, nil
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/users/logout", nil)
	return err
}

// CurrentUser probes the cookie-authenticated session.
func (c *Client) CurrentUser(ctx context.Context) (user.Public, error) {
	env, err := c.do(ctx, http.MethodGet, "/users/current-user", nil)
	if err != nil {
		return user.Public{}, err
	}
	var current user.Public
	if err := json.Unmarshal(env.Data, &current); err != nil {
		return user.Public{}, fmt.Errorf("decode current user: %w", err)
	}
	return current, nil
}

// OAuthLogin forwards a provider profile. The flag reports whether the
// account was created by this call.
func (c *Client) OAuthLogin(ctx context.Context, profile Profile) (user.Public, bool, error) {
	env, err := c.do(ctx, http.MethodPost, "/oauth/login", profile)
	if err != nil {
		return user.Public{}, false, err
	}
	session, err := decodeSession(env)
	if err != nil {
		return user.Public{}, false, fmt.Errorf("decode oauth response: %w", err)
	}
	return *session.User, session.IsNewUser, nil
}

// Refresh rotates the session cookies using the refresh cookie.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/users/refresh-token", nil)
	return err
}

func decodeSession(env apperror.RawEnvelope) (sessionData, error) {
	var session sessionData
	if err := json.Unmarshal(env.Data, &session); err != nil {
		return sessionData{}, err
	}
	if session.User == nil {
		return sessionData{}, fmt.Errorf("response has no user")
	}
	return session, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (apperror.RawEnvelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperror.RawEnvelope{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperror.RawEnvelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.RawEnvelope{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.RawEnvelope{}, fmt.Errorf("read response: %w", err)
	}

	var env apperror.RawEnvelope
	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	if isJSON {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < http.StatusBadRequest {
			return apperror.RawEnvelope{}, fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		message := env.Message
		if message == "" {
			message = fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)
		}
		return apperror.RawEnvelope{}, &APIError{Status: resp.StatusCode, Message: message}
	}
	if !isJSON {
		return apperror.RawEnvelope{}, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	return env, nil
}
