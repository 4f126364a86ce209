package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/services"
)

// RestEmailTemplateHandler lets administrators override the built-in email
// templates per locale.
type RestEmailTemplateHandler struct {
	templateService services.IEmailTemplateService
}

func NewRestEmailTemplateHandler(templateService services.IEmailTemplateService) *RestEmailTemplateHandler {
	return &RestEmailTemplateHandler{templateService: templateService}
}

type emailTemplateRequest struct {
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

func locale(c *gin.Context) string {
	return c.DefaultQuery("locale", services.DefaultLocale)
}

// GetTemplate handles GET /v1/admin/email-templates/:template_id?locale=
func (h *RestEmailTemplateHandler) GetTemplate(c *gin.Context) {
	tmpl, err := h.templateService.GetTemplate(c.Request.Context(), c.Param("template_id"), locale(c))
	if err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// SaveTemplate handles PUT /v1/admin/email-templates/:template_id?locale=
func (h *RestEmailTemplateHandler) SaveTemplate(c *gin.Context) {
	var req emailTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	tmpl := &models.EmailTemplate{
		TemplateID: c.Param("template_id"),
		Locale:     locale(c),
		Subject:    req.Subject,
		Body:       req.Body,
	}
	if err := h.templateService.SaveTemplate(c.Request.Context(), tmpl); err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// DeleteTemplate handles DELETE /v1/admin/email-templates/:template_id?locale=
// The built-in default, if any, applies again afterwards.
func (h *RestEmailTemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.templateService.DeleteTemplate(c.Request.Context(), c.Param("template_id"), locale(c)); err != nil {
		respondError(c, err, scopeDefault)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}
