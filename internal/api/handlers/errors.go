package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Davzs/adezz/internal/api/middleware"
	"github.com/Davzs/adezz/internal/auth"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/utils"
	"github.com/Davzs/adezz/internal/validation"
)

// errorScope decides how authorization failures are reported.
type errorScope int

const (
	// scopeDefault reports ErrNotAuthorized as 403.
	scopeDefault errorScope = iota
	// scopeMembership reports ErrNotAuthorized as 404 so conversation and
	// message ids do not leak.
	scopeMembership
)

// respondError maps a service error to a status and JSON body. The error is
// attached to the context for the access log; 500s never expose detail.
func respondError(c *gin.Context, err error, scope errorScope) {
	_ = c.Error(err)

	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": vErr.Fields})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, services.ErrNotAuthorized):
		if scope == scopeMembership {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
	case errors.Is(err, services.ErrNotAMember), errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Already exists"})
	case errors.Is(err, services.ErrConflictDuringCreate):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict, please retry"})
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Operation not allowed in the current state"})
	case errors.Is(err, services.ErrPersistenceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, msg string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// bindJSON decodes the body into v, answering 400 on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, "Invalid request body", err)
		return false
	}
	return true
}

// paramID parses a SixID path parameter, answering 400 on failure.
func paramID(c *gin.Context, name string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil || id.IsZero() {
		badRequest(c, "Invalid ID format", err)
		return utils.SixID{}, false
	}
	return id, true
}

// caller returns the authenticated identity. Routes using it sit behind
// AuthMiddleware; a missing identity still answers 401.
func caller(c *gin.Context) (auth.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return auth.Identity{}, false
	}
	return id, true
}
