package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/logger"
	"github.com/Davzs/adezz/internal/services"
)

// RestNewsletterHandler handles newsletter sign-ups.
type RestNewsletterHandler struct {
	log               *zap.Logger
	newsletterService services.INewsletterService
	enqueuer          ITaskEnqueuer
}

func NewRestNewsletterHandler(log *zap.Logger, newsletterService services.INewsletterService, enqueuer ITaskEnqueuer) *RestNewsletterHandler {
	return &RestNewsletterHandler{log: log, newsletterService: newsletterService, enqueuer: enqueuer}
}

type newsletterRequest struct {
	Email string `json:"email" binding:"required"`
}

// Subscribe handles POST /v1/newsletter/subscribe. 201 for a new address,
// 200 when the address was already known.
func (h *RestNewsletterHandler) Subscribe(c *gin.Context) {
	var req newsletterRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, result, err := h.newsletterService.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}

	if result != services.SubscribeAlready {
		if err := h.enqueuer.EnqueueNewsletterConfirmation(c.Request.Context(), sub.Email); err != nil {
			logger.For(c.Request.Context(), h.log).Warn("failed to enqueue newsletter confirmation", zap.Error(err))
		}
	}

	status := http.StatusOK
	if result == services.SubscribeCreated {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"status": result, "subscription": sub})
}

// Unsubscribe handles POST /v1/newsletter/unsubscribe
func (h *RestNewsletterHandler) Unsubscribe(c *gin.Context) {
	var req newsletterRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.newsletterService.Unsubscribe(c.Request.Context(), req.Email); err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unsubscribed"})
}
