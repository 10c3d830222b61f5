package auth

import (
	"strings"

	"github.com/abduss/memorylane/internal/apperror"
	"github.com/abduss/memorylane/internal/user"
	"github.com/gin-gonic/gin"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

const userContextKey = "memorylaneUser"

// Gate verifies the access token on protected routes and injects the
// authenticated user. The cookie wins over the Authorization header.
func Gate(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessTokenFromRequest(c)
		if token == "" {
			apperror.Abort(c, ErrNoToken)
			return
		}

		principal, err := service.Authenticate(c.Request.Context(), token)
		if err != nil {
			apperror.Abort(c, err)
			return
		}

		c.Set(userContextKey, principal)
		c.Next()
	}
}

// CurrentUser extracts the authenticated user from the context.
func CurrentUser(c *gin.Context) (user.Public, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return user.Public{}, false
	}
	principal, ok := value.(user.Public)
	return principal, ok
}

func accessTokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(accessTokenCookie); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	return extractBearerToken(c.GetHeader("Authorization"))
}

func extractBearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
