package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/auth"
	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/logger"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/services"
)

// RestAuthHandler handles credential registration and login.
type RestAuthHandler struct {
	cfg         *config.Config
	log         *zap.Logger
	userService services.IUserService
	enqueuer    ITaskEnqueuer
}

func NewRestAuthHandler(cfg *config.Config, log *zap.Logger, userService services.IUserService, enqueuer ITaskEnqueuer) *RestAuthHandler {
	return &RestAuthHandler{cfg: cfg, log: log, userService: userService, enqueuer: enqueuer}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /v1/auth/register
func (h *RestAuthHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if !bindJSON(c, &input) {
		return
	}

	user, err := h.userService.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}

	if err := h.enqueuer.EnqueueWelcome(c.Request.Context(), user); err != nil {
		logger.For(c.Request.Context(), h.log).Warn("failed to enqueue welcome email", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login handles POST /v1/auth/login
func (h *RestAuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Token: token, User: user})
}
