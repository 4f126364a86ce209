package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/logger"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/tasks"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// RestUserHandler handles REST requests for the current user and public profiles.
type RestUserHandler struct {
	cfg            *config.Config
	log            *zap.Logger
	userService    services.IUserService
	listingService services.IListingService
	enqueuer       ITaskEnqueuer
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(cfg *config.Config, log *zap.Logger, userService services.IUserService, listingService services.IListingService, enqueuer ITaskEnqueuer) *RestUserHandler {
	return &RestUserHandler{
		cfg:            cfg,
		log:            log,
		userService:    userService,
		listingService: listingService,
		enqueuer:       enqueuer,
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type objectKeyRequest struct {
	Key string `json:"key" binding:"required"`
}

// GetMe handles GET /v1/me
func (h *RestUserHandler) GetMe(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe handles PATCH /v1/me
func (h *RestUserHandler) UpdateMe(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var update services.ProfileUpdate
	if !bindJSON(c, &update) {
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), id.UserID, update)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ChangePassword handles POST /v1/me/password
func (h *RestUserHandler) ChangePassword(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.userService.ChangePassword(c.Request.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// SetAvatar handles POST /v1/me/avatar. The image must already be uploaded
// through a presigned URL; processing happens in the background.
func (h *RestUserHandler) SetAvatar(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req objectKeyRequest
	if !bindJSON(c, &req) {
		return
	}
	if !tasks.UploadBelongsTo(req.Key, id.UserID.String()) {
		badRequest(c, "Invalid upload key", nil)
		return
	}
	if err := h.enqueuer.EnqueueAvatar(c.Request.Context(), id.UserID, req.Key); err != nil {
		logger.For(c.Request.Context(), h.log).Error("failed to enqueue avatar processing", zap.Error(err))
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Avatar processing"})
}

// GetSaved handles GET /v1/me/saved
func (h *RestUserHandler) GetSaved(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	listings, err := h.listingService.FindSavedListings(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// GetActivity handles GET /v1/me/activity?limit=N
func (h *RestUserHandler) GetActivity(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultActivityLimit)))
	if err != nil || limit <= 0 || limit > maxActivityLimit {
		limit = defaultActivityLimit
	}
	entries, err := h.userService.GetActivity(c.Request.Context(), id.UserID, limit)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// GetMyListings handles GET /v1/me/listings, including drafts and inactive listings.
func (h *RestUserHandler) GetMyListings(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	listings, err := h.listingService.FindListingsByOwner(c.Request.Context(), id.UserID, true)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// GetUserByID handles GET /v1/users/:id
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}

	var public models.PublicUser
	if err := copier.Copy(&public, user); err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, public)
}

// GetUserListings handles GET /v1/users/:id/listings (active listings only).
func (h *RestUserHandler) GetUserListings(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := h.userService.FindByID(c.Request.Context(), userID); err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	listings, err := h.listingService.FindListingsByOwner(c.Request.Context(), userID, false)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings})
}
