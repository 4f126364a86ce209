package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/storage"
	"github.com/Davzs/adezz/internal/tasks"
)

var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// RestUploadHandler issues presigned upload URLs.
type RestUploadHandler struct {
	cfg            *config.Config
	storageService storage.IS3Storage
}

func NewRestUploadHandler(cfg *config.Config, storageService storage.IS3Storage) *RestUploadHandler {
	return &RestUploadHandler{cfg: cfg, storageService: storageService}
}

type uploadRequest struct {
	Filename    string `json:"filename" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"required"`
	Size        int64  `json:"size" binding:"required,gt=0"`
}

// UploadResponse tells the client where to PUT the file and which key to
// reference afterwards.
type UploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expires_in"`
}

// CreateUpload handles POST /v1/uploads
func (h *RestUploadHandler) CreateUpload(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req uploadRequest
	if !bindJSON(c, &req) {
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if !allowedUploadTypes[contentType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported content type", "fields": gin.H{"content_type": "image"}})
		return
	}
	if req.Size > h.cfg.UploadMaxBytes() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large", "fields": gin.H{"size": "max"}})
		return
	}

	url, key, err := h.storageService.GeneratePresignedPutURL(c.Request.Context(), tasks.UploadPrefix, id.UserID.String(), req.Filename, contentType)
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, UploadResponse{URL: url, Key: key, ExpiresIn: int(h.cfg.UploadURLTTL.Seconds())})
}
