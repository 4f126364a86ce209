package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/api/middleware"
	"github.com/Davzs/adezz/internal/logger"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/tasks"
	"github.com/Davzs/adezz/internal/utils"
)

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	log            *zap.Logger
	listingService services.IListingService
	messageService services.IMessageService
	enqueuer       ITaskEnqueuer
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(log *zap.Logger, listingService services.IListingService, messageService services.IMessageService, enqueuer ITaskEnqueuer) *RestListingHandler {
	return &RestListingHandler{
		log:            log,
		listingService: listingService,
		messageService: messageService,
		enqueuer:       enqueuer,
	}
}

type contactRequest struct {
	Message string `json:"message"`
}

// SearchListings handles GET /v1/listings
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	var query services.ListingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}
	page, err := h.listingService.SearchListings(c.Request.Context(), query)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetListingByID handles GET /v1/listings/:id and counts the view.
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var viewer *utils.SixID
	if id, ok := middleware.IdentityFrom(c); ok {
		viewer = &id.UserID
	}
	listing, err := h.listingService.ViewListing(c.Request.Context(), listingID, viewer)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// CreateListing handles POST /v1/listings
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var input services.CreateListingInput
	if !bindJSON(c, &input) {
		return
	}
	listing, err := h.listingService.CreateListing(c.Request.Context(), id.UserID, input)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// UpdateListing handles PATCH /v1/listings/:id
func (h *RestListingHandler) UpdateListing(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var update services.ListingUpdate
	if !bindJSON(c, &update) {
		return
	}
	listing, err := h.listingService.UpdateListing(c.Request.Context(), listingID, id.UserID, update)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// DeleteListing handles DELETE /v1/listings/:id (soft delete).
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.listingService.SoftDelete(c.Request.Context(), listingID, id.UserID); err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Listing deleted"})
}

// RestoreListing handles POST /v1/listings/:id/restore
func (h *RestListingHandler) RestoreListing(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	listing, err := h.listingService.Restore(c.Request.Context(), listingID, id.UserID)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// SaveListing handles POST /v1/listings/:id/save
func (h *RestListingHandler) SaveListing(c *gin.Context) {
	h.setSaved(c, func(listingID, userID utils.SixID) (bool, error) {
		return true, h.listingService.Save(c.Request.Context(), listingID, userID)
	})
}

// UnsaveListing handles POST /v1/listings/:id/unsave
func (h *RestListingHandler) UnsaveListing(c *gin.Context) {
	h.setSaved(c, func(listingID, userID utils.SixID) (bool, error) {
		return false, h.listingService.Unsave(c.Request.Context(), listingID, userID)
	})
}

// ToggleSave handles POST /v1/listings/:id/toggle-save
func (h *RestListingHandler) ToggleSave(c *gin.Context) {
	h.setSaved(c, func(listingID, userID utils.SixID) (bool, error) {
		return h.listingService.ToggleSave(c.Request.Context(), listingID, userID)
	})
}

func (h *RestListingHandler) setSaved(c *gin.Context, op func(listingID, userID utils.SixID) (bool, error)) {
	id, ok := caller(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	saved, err := op(listingID, id.UserID)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

// ContactSeller handles POST /v1/listings/:id/contact: opens or continues the
// conversation with the listing owner.
func (h *RestListingHandler) ContactSeller(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req contactRequest
	if !bindJSON(c, &req) {
		return
	}
	start, err := h.messageService.StartConversation(c.Request.Context(), id.UserID, services.StartConversationInput{
		ListingID: &listingID,
		Content:   req.Message,
	})
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, start)
}

// AddImage handles POST /v1/listings/:id/images. The upload is processed in
// the background and appended to the listing's images.
func (h *RestListingHandler) AddImage(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req objectKeyRequest
	if !bindJSON(c, &req) {
		return
	}

	listing, err := h.listingService.FindOwnedListing(c.Request.Context(), listingID, id.UserID)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	if len(listing.Images) >= models.MaxListingImages {
		badRequest(c, "Listing already has the maximum number of images", nil)
		return
	}
	if !tasks.UploadBelongsTo(req.Key, id.UserID.String()) {
		badRequest(c, "Invalid upload key", nil)
		return
	}

	if err := h.enqueuer.EnqueueListingImage(c.Request.Context(), listingID, id.UserID, req.Key); err != nil {
		logger.For(c.Request.Context(), h.log).Error("failed to enqueue image processing", zap.String("listing_id", listingID.String()), zap.Error(err))
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Image processing"})
}
