package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/logger"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/validation"
)

// RestConversationHandler handles conversations, messages and offers.
// Membership failures are answered with 404.
type RestConversationHandler struct {
	log                 *zap.Logger
	conversationService services.IConversationService
	messageService      services.IMessageService
	userService         services.IUserService
	listingService      services.IListingService
	enqueuer            ITaskEnqueuer
}

func NewRestConversationHandler(
	log *zap.Logger,
	conversationService services.IConversationService,
	messageService services.IMessageService,
	userService services.IUserService,
	listingService services.IListingService,
	enqueuer ITaskEnqueuer,
) *RestConversationHandler {
	return &RestConversationHandler{
		log:                 log,
		conversationService: conversationService,
		messageService:      messageService,
		userService:         userService,
		listingService:      listingService,
		enqueuer:            enqueuer,
	}
}

type offerResponseRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// ListConversations handles GET /v1/conversations
func (h *RestConversationHandler) ListConversations(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	views, err := h.conversationService.ListConversationsForUser(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err, scopeMembership)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetConversation handles GET /v1/conversations/:id
func (h *RestConversationHandler) GetConversation(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.conversationService.GetConversation(c.Request.Context(), conversationID, id.UserID)
	if err != nil {
		respondError(c, err, scopeMembership)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CreateConversation handles POST /v1/conversations
func (h *RestConversationHandler) CreateConversation(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var input services.StartConversationInput
	if !bindJSON(c, &input) {
		return
	}
	// Only contacting a seller through the listing may leave the recipient out.
	if input.RecipientID.IsZero() {
		respondError(c, validation.Field("recipient_id", "required"), scopeMembership)
		return
	}
	if input.ListingID == nil {
		respondError(c, validation.Field("listing_id", "required"), scopeMembership)
		return
	}
	start, err := h.messageService.StartConversation(c.Request.Context(), id.UserID, input)
	if err != nil {
		respondError(c, err, scopeMembership)
		return
	}
	c.JSON(http.StatusOK, start)
}

// ListMessages handles GET /v1/conversations/:id/messages
func (h *RestConversationHandler) ListMessages(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	messages, err := h.messageService.ListMessages(c.Request.Context(), conversationID, id.UserID)
	if err != nil {
		respondError(c, err, scopeMembership)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// PostMessage handles POST /v1/conversations/:id/messages
func (h *RestConversationHandler) PostMessage(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.PostMessageInput
	if !bindJSON(c, &input) {
		return
	}
	message, err := h.messageService.PostMessage(c.Request.Context(), conversationID, id.UserID, input)
	if err != nil {
		respondError(c, err, scopeMembership)
		return
	}
	c.JSON(http.StatusOK, message)
}

// RespondToOffer handles POST /v1/conversations/:id/offer
func (h *RestConversationHandler) RespondToOffer(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req offerResponseRequest
	if !bindJSON(c, &req) {
		return
	}
	conversation, err := h.conversationService.RespondToOffer(c.Request.Context(), conversationID, id.UserID, *req.Accept)
	if err != nil {
		respondError(c, err, scopeMembership)
		return
	}
	h.notifyOfferAuthor(c.Request.Context(), conversation)
	c.JSON(http.StatusOK, conversation)
}

// notifyOfferAuthor is best effort.
func (h *RestConversationHandler) notifyOfferAuthor(ctx context.Context, conversation *models.Conversation) {
	offer := conversation.Metadata.LastOffer
	if offer == nil {
		return
	}
	log := logger.For(ctx, h.log)

	author, err := h.userService.FindByID(ctx, offer.CreatedBy)
	if err != nil {
		log.Warn("offer author lookup failed", zap.String("user_id", offer.CreatedBy.String()), zap.Error(err))
		return
	}
	listingTitle := ""
	if conversation.ListingID != nil {
		if listing, err := h.listingService.FindListingByID(ctx, *conversation.ListingID); err == nil {
			listingTitle = listing.Title
		}
	}
	if err := h.enqueuer.NotifyOfferUpdate(ctx, author, conversation, listingTitle); err != nil {
		log.Warn("failed to enqueue offer update", zap.Error(err))
	}
}

// MarkRead handles POST /v1/messages/:id/read
func (h *RestConversationHandler) MarkRead(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	message, err := h.messageService.MarkRead(c.Request.Context(), messageID, id.UserID)
	if err != nil {
		respondError(c, err, scopeMembership)
		return
	}
	c.JSON(http.StatusOK, message)
}
