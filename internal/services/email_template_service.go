package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Davzs/adezz/internal/db"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/utils"
	"github.com/Davzs/adezz/internal/validation"
)

// DefaultLocale is used when no template exists for the requested locale.
const DefaultLocale = "en-US"

// Default email templates used as fallback when not found in database
var defaultEmailTemplates = map[string]models.EmailTemplate{
	models.TemplateNewMessage: {
		TemplateID: models.TemplateNewMessage,
		Locale:     DefaultLocale,
		Subject:    "New message from {{.SenderName}}{{if .ListingTitle}} about {{.ListingTitle}}{{end}}",
		Body: "Hi {{.RecipientName}},\n\n{{.SenderName}} sent you a message on {{.AppName}}." +
			"\n\nRead and reply: {{.AppBaseURL}}/messages/{{.ConversationID}}\n",
	},
	models.TemplateOfferUpdate: {
		TemplateID: models.TemplateOfferUpdate,
		Locale:     DefaultLocale,
		Subject:    "Your offer was {{.OfferStatus}}",
		Body: "Hi {{.RecipientName}},\n\nYour offer of {{.OfferAmount}}{{if .ListingTitle}} for {{.ListingTitle}}{{end}} was {{.OfferStatus}}." +
			"\n\n{{.AppBaseURL}}/messages/{{.ConversationID}}\n",
	},
	models.TemplateWelcome: {
		TemplateID: models.TemplateWelcome,
		Locale:     DefaultLocale,
		Subject:    "Welcome to {{.AppName}}",
		Body:       "Hi {{.RecipientName}},\n\nYour account is ready. Start browsing at {{.AppBaseURL}}.\n",
	},
	models.TemplateNewsletterOK: {
		TemplateID: models.TemplateNewsletterOK,
		Locale:     DefaultLocale,
		Subject:    "You are subscribed to the {{.AppName}} newsletter",
		Body:       "Thanks for subscribing. You can unsubscribe at any time from {{.AppBaseURL}}/newsletter.\n",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
	Render(ctx context.Context, templateID, locale string, data any) (subject, body string, err error)
	SaveTemplate(ctx context.Context, template *models.EmailTemplate) error
	DeleteTemplate(ctx context.Context, templateID, locale string) error
}

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{
		db: db,
	}
}

// GetTemplate retrieves an email template by ID and locale, falling back to
// the built-in default.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	collection := s.db.Collection(db.EmailTemplatesCollection)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	var tmpl models.EmailTemplate
	err := collection.FindOne(ctx, filter).Decode(&tmpl)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
				return &defaultTemplate, nil
			}
			return nil, fmt.Errorf("template %s (locale: %s): %w", templateID, locale, ErrNotFound)
		}
		return nil, storeError("retrieve template", err)
	}

	return &tmpl, nil
}

// Render executes the subject and body of a template against data.
func (s *EmailTemplateService) Render(ctx context.Context, templateID, locale string, data any) (string, string, error) {
	tmpl, err := s.GetTemplate(ctx, templateID, locale)
	if err != nil {
		return "", "", err
	}
	subject, err := execute(templateID+".subject", tmpl.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err := execute(templateID+".body", tmpl.Body, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func execute(name, text string, data any) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// SaveTemplate saves an email template to the database
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, tmpl *models.EmailTemplate) error {
	if tmpl.Locale == "" {
		tmpl.Locale = DefaultLocale
	}
	for _, text := range []string{tmpl.Subject, tmpl.Body} {
		if _, err := template.New(tmpl.TemplateID).Parse(text); err != nil {
			return validation.Field("body", "template")
		}
	}

	collection := s.db.Collection(db.EmailTemplatesCollection)
	filter := bson.M{
		"template_id": tmpl.TemplateID,
		"locale":      tmpl.Locale,
	}
	update := bson.M{
		"$set":         bson.M{"subject": tmpl.Subject, "body": tmpl.Body},
		"$setOnInsert": bson.M{"_id": utils.NewSixID()},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return storeError("save template", err)
	}
	return nil
}

// DeleteTemplate deletes an email template from the database
func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	collection := s.db.Collection(db.EmailTemplatesCollection)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	if _, err := collection.DeleteOne(ctx, filter); err != nil {
		return storeError("delete template", err)
	}
	return nil
}
