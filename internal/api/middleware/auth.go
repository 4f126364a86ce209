package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Davzs/adezz/internal/auth"
)

const (
	// ContextKeyIdentity holds the caller's auth.Identity in the Gin context.
	ContextKeyIdentity = "identity"
	// ContextKeyUserID holds the caller's user id string in the Gin context.
	ContextKeyUserID = "userID"
)

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func resolveIdentity(tokenString, jwtSecret string) (auth.Identity, error) {
	claims, err := auth.ValidateJWT(tokenString, jwtSecret)
	if err != nil {
		return auth.Identity{}, err
	}
	return claims.Identity()
}

func setIdentity(c *gin.Context, id auth.Identity) {
	c.Set(ContextKeyIdentity, id)
	c.Set(ContextKeyUserID, id.UserID.String())
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		identity, err := resolveIdentity(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the caller when a valid bearer token is
// present and lets anonymous requests through. A malformed or expired token
// is still rejected.
func OptionalAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}
		identity, err := resolveIdentity(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		setIdentity(c, identity)
		c.Next()
	}
}

// AdminMiddleware creates a Gin middleware to check for admin privileges.
// Assumes AuthMiddleware runs first.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok || !identity.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity set by the auth middlewares.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}
