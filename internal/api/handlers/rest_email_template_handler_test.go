package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Davzs/adezz/internal/api/handlers"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/utils"
)

func setupTemplateRoutes() (*gin.Engine, *MockEmailTemplateService) {
	templates := new(MockEmailTemplateService)
	h := handlers.NewRestEmailTemplateHandler(templates)

	r := newEngine(utils.NewSixID())
	r.GET("/v1/admin/email-templates/:template_id", h.GetTemplate)
	r.PUT("/v1/admin/email-templates/:template_id", h.SaveTemplate)
	r.DELETE("/v1/admin/email-templates/:template_id", h.DeleteTemplate)
	return r, templates
}

func TestRestEmailTemplateHandler_Get(t *testing.T) {
	r, templates := setupTemplateRoutes()

	templates.On("GetTemplate", mock.Anything, models.TemplateWelcome, services.DefaultLocale).
		Return(&models.EmailTemplate{TemplateID: models.TemplateWelcome, Locale: services.DefaultLocale, Subject: "Hi"}, nil)
	templates.On("GetTemplate", mock.Anything, "missing", "fr-FR").
		Return(nil, fmt.Errorf("template missing: %w", services.ErrNotFound))

	w := doRequest(r, http.MethodGet, "/v1/admin/email-templates/"+models.TemplateWelcome, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hi", errorBody(t, w)["subject"])

	w = doRequest(r, http.MethodGet, "/v1/admin/email-templates/missing?locale=fr-FR", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestEmailTemplateHandler_Save(t *testing.T) {
	r, templates := setupTemplateRoutes()

	templates.On("SaveTemplate", mock.Anything, mock.MatchedBy(func(tmpl *models.EmailTemplate) bool {
		return tmpl.TemplateID == models.TemplateOfferUpdate && tmpl.Locale == "de-DE" && tmpl.Subject == "Angebot"
	})).Return(nil)

	w := doRequest(r, http.MethodPut, "/v1/admin/email-templates/"+models.TemplateOfferUpdate+"?locale=de-DE",
		gin.H{"subject": "Angebot", "body": "{{.ListingTitle}}"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPut, "/v1/admin/email-templates/"+models.TemplateOfferUpdate, gin.H{"subject": "No body"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	templates.AssertNumberOfCalls(t, "SaveTemplate", 1)
}

func TestRestEmailTemplateHandler_Delete(t *testing.T) {
	r, templates := setupTemplateRoutes()
	templates.On("DeleteTemplate", mock.Anything, models.TemplateWelcome, services.DefaultLocale).Return(nil)

	w := doRequest(r, http.MethodDelete, "/v1/admin/email-templates/"+models.TemplateWelcome, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	templates.AssertExpectations(t)
}
