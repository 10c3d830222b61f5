package auth

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/abduss/memorylane/internal/apperror"
	"github.com/abduss/memorylane/internal/config"
	"github.com/abduss/memorylane/internal/metrics"
	"github.com/abduss/memorylane/internal/user"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the session endpoints under /users and the federated
// login under /oauth.
func RegisterRoutes(router *gin.RouterGroup, service *Service, cfg config.AuthConfig) {
	handler := &httpHandler{service: service, cfg: cfg}

	users := router.Group("/users")
	{
		users.POST("/register", handler.register)
		users.POST("/login", handler.login)
		users.POST("/refresh-token", handler.refresh)
		users.POST("/logout", Gate(service), handler.logout)
		users.GET("/current-user", Gate(service), handler.currentUser)
	}

	router.POST("/oauth/login", handler.oauthLogin)
}

type httpHandler struct {
	service *Service
	cfg     config.AuthConfig
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest keeps the historical field name: email carries either the
// email address or the username.
type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type oauthRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	Provider string `json:"provider"`
}

type sessionResponse struct {
	User         user.Public `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type oauthResponse struct {
	sessionResponse
	IsNewUser bool `json:"isNewUser"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

var errMalformedBody = apperror.New(apperror.BadRequest, "Invalid request body")

func (h *httpHandler) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.Register(c.Request.Context(), RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	h.observe("register", err)
	if err != nil {
		apperror.Abort(c, err)
		return
	}

	if result.Tokens == nil {
		apperror.Respond(c, http.StatusCreated, "User registered successfully", result.User)
		return
	}
	h.setSessionCookies(c, *result.Tokens)
	apperror.Respond(c, http.StatusCreated, "User registered successfully", sessionResponse{
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

func (h *httpHandler) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	identifier := req.Email
	if identifier == "" {
		identifier = req.Username
	}

	session, err := h.service.Login(c.Request.Context(), LoginInput{
		Identifier: identifier,
		Password:   req.Password,
	})
	h.observe("login", err)
	if err != nil {
		apperror.Abort(c, err)
		return
	}

	h.setSessionCookies(c, session.Tokens)
	apperror.Respond(c, http.StatusOK, "User logged in successfully", marshalSession(session))
}

func (h *httpHandler) logout(c *gin.Context) {
	principal, ok := CurrentUser(c)
	if !ok {
		apperror.Abort(c, ErrNoToken)
		return
	}

	err := h.service.Logout(c.Request.Context(), principal.ID)
	h.observe("logout", err)
	if err != nil {
		apperror.Abort(c, err)
		return
	}

	h.clearSessionCookies(c)
	apperror.Respond(c, http.StatusOK, "User logged out successfully", nil)
}

func (h *httpHandler) currentUser(c *gin.Context) {
	principal, ok := CurrentUser(c)
	if !ok {
		apperror.Abort(c, ErrNoToken)
		return
	}

	current, err := h.service.CurrentUser(c.Request.Context(), principal.ID)
	if err != nil {
		apperror.Abort(c, err)
		return
	}
	apperror.Respond(c, http.StatusOK, "User retrieved successfully", current)
}

func (h *httpHandler) refresh(c *gin.Context) {
	token, _ := c.Cookie(refreshTokenCookie)
	if token == "" {
		var req refreshRequest
		if !bindJSON(c, &req) {
			return
		}
		token = req.RefreshToken
	}

	session, err := h.service.Refresh(c.Request.Context(), token)
	h.observe("refresh", err)
	if err != nil {
		apperror.Abort(c, err)
		return
	}

	h.setSessionCookies(c, session.Tokens)
	apperror.Respond(c, http.StatusOK, "Access token refreshed", refreshResponse{
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	})
}

func (h *httpHandler) oauthLogin(c *gin.Context) {
	var req oauthRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.OAuthLogin(c.Request.Context(), OAuthInput{
		Email:    req.Email,
		Name:     req.Name,
		Picture:  req.Picture,
		Provider: req.Provider,
	})
	h.observe("oauth_login", err)
	if err != nil {
		apperror.Abort(c, err)
		return
	}

	h.setSessionCookies(c, result.Tokens)

	status, message := http.StatusOK, "User logged in successfully via OAuth"
	if result.IsNewUser {
		status, message = http.StatusCreated, "User created and logged in successfully via OAuth"
	}
	apperror.Respond(c, status, message, oauthResponse{
		sessionResponse: marshalSession(result.Session),
		IsNewUser:       result.IsNewUser,
	})
}

func (h *httpHandler) setSessionCookies(c *gin.Context, tokens TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, tokens.AccessToken, maxAge(h.cfg.AccessTokenTTL), "/", "", h.cfg.SecureCookies, true)
	c.SetCookie(refreshTokenCookie, tokens.RefreshToken, maxAge(h.cfg.RefreshTokenTTL), "/", "", h.cfg.SecureCookies, true)
}

func (h *httpHandler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", h.cfg.SecureCookies, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", h.cfg.SecureCookies, true)
}

func (h *httpHandler) observe(flow string, err error) {
	if err != nil {
		metrics.ObserveAuth(flow, apperror.KindOf(err).String())
		return
	}
	metrics.ObserveAuth(flow, "success")
}

// bindJSON decodes the body into dst. An empty body leaves dst zeroed so the
// service reports the missing fields.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		apperror.Abort(c, apperror.Wrap(apperror.BadRequest, errMalformedBody.Message, err))
		return false
	}
	return true
}

func marshalSession(session Session) sessionResponse {
	return sessionResponse{
		User:         session.User,
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	}
}

func maxAge(ttl time.Duration) int {
	return int(ttl / time.Second)
}
