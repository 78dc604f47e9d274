package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/model"
)

const (
	usernameContextKey = "username"

	// AccessTokenCookie carries the access token for clients that do not set the
	// Authorization header, such as the live update socket.
	AccessTokenCookie = "access_token"
)

func UsernameFromContext(c *gin.Context) (string, bool) {
	username, ok := c.Get(usernameContextKey)
	if !ok {
		return "", false
	}
	value, ok := username.(string)
	return value, ok && value != ""
}

// AccessToken returns the bearer token of the request, falling back to the
// access_token cookie.
func AccessToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return cookie
	}
	return ""
}

func RequireAuth(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := AccessToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.Reply{Error: "this endpoint requires authentication"})
			return
		}

		claims, err := auth.VerifyToken(tokenString, cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.Reply{Error: "invalid authentication token"})
			return
		}

		c.Set(usernameContextKey, claims.Username)
		c.Next()
	}
}
