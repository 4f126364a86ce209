package models

import (
	"time"

	"github.com/Davzs/adezz/internal/utils"
)

// NewsletterSubscription is one email address on the newsletter list.
type NewsletterSubscription struct {
	ID             utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	Email          string      `bson:"email" json:"email"`
	Subscribed     bool        `bson:"subscribed" json:"subscribed"`
	SubscribedAt   time.Time   `bson:"subscribed_at" json:"subscribed_at"`
	UnsubscribedAt *time.Time  `bson:"unsubscribed_at,omitempty" json:"unsubscribed_at,omitempty"`
}
