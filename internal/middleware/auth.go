package middleware

import (
	"net/http"
	"strings"

	"github.com/bookrent/gateway/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	// UsernameKey is the context key under which the authenticated
	// username is stored.
	UsernameKey = "username"

	bearerPrefix = "Bearer "
)

// Auth validates the bearer token and stores the authenticated username
// in the request context. Requests without a valid token are rejected
// with 401.
func Auth(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Authorization header is required",
			})
			return
		}

		if !strings.HasPrefix(authHeader, bearerPrefix) || len(authHeader) == len(bearerPrefix) {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid authorization header format",
			})
			return
		}
		token := authHeader[len(bearerPrefix):]

		username, err := auth.ValidateToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid or expired token",
			})
			return
		}

		c.Set(UsernameKey, username)
		c.Next()
	}
}

// Username returns the authenticated username from context.
func Username(c *gin.Context) string {
	return c.GetString(UsernameKey)
}
