package models

// Email template identifiers.
const (
	TemplateNewMessage   = "new_message"
	TemplateOfferUpdate  = "offer_update"
	TemplateWelcome      = "welcome"
	TemplateNewsletterOK = "newsletter_subscribed"
)

// EmailTemplate is a subject/body pair rendered with text/template. Stored
// templates override the built-in defaults per locale.
type EmailTemplate struct {
	Base       `bson:",inline"`
	TemplateID string `bson:"template_id" json:"template_id"`
	Locale     string `bson:"locale" json:"locale"`
	Subject    string `bson:"subject" json:"subject"`
	Body       string `bson:"body" json:"body"`
}
