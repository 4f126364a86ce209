package models

import (
	"time"

	"github.com/Davzs/adezz/internal/utils"
)

// OfferStatus tracks a price negotiation inside a conversation.
type OfferStatus string

const (
	OfferNone     OfferStatus = "none"
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
	OfferExpired  OfferStatus = "expired"
)

// LastOffer is the most recent offer made in a conversation.
type LastOffer struct {
	Amount    float64     `bson:"amount" json:"amount"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	CreatedBy utils.SixID `bson:"created_by" json:"created_by"`
}

// ConversationMetadata holds negotiation state.
type ConversationMetadata struct {
	OfferStatus OfferStatus `bson:"offer_status" json:"offer_status"`
	LastOffer   *LastOffer  `bson:"last_offer,omitempty" json:"last_offer,omitempty"`
}

// Conversation is a two-party thread, optionally about a listing.
// At most one active conversation exists per ParticipantKey and ListingID.
type Conversation struct {
	ID             utils.SixID          `bson:"_id,omitempty" json:"id,omitempty"`
	Participants   []utils.SixID        `bson:"participants" json:"participants"`
	ParticipantKey string               `bson:"participant_key" json:"-"`
	ListingID      *utils.SixID         `bson:"listing_id,omitempty" json:"listing_id,omitempty"`
	LastMessageID  *utils.SixID         `bson:"last_message,omitempty" json:"last_message,omitempty"`
	LastMessageAt  *time.Time           `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	IsActive       bool                 `bson:"is_active" json:"is_active"`
	Metadata       ConversationMetadata `bson:"metadata" json:"metadata"`
	CreatedAt      time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at" json:"updated_at"`
}

// ParticipantKey returns the canonical key of an unordered participant pair.
func ParticipantKey(a, b utils.SixID) string {
	sa, sb := a.String(), b.String()
	if sb < sa {
		sa, sb = sb, sa
	}
	return sa + ":" + sb
}

// SortedPair returns a and b in the order used by ParticipantKey.
func SortedPair(a, b utils.SixID) []utils.SixID {
	if b.String() < a.String() {
		return []utils.SixID{b, a}
	}
	return []utils.SixID{a, b}
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID utils.SixID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID.
func (c *Conversation) OtherParticipants(userID utils.SixID) []utils.SixID {
	others := make([]utils.SixID, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// ParticipantSummary is the resolved identity of a user in conversation and message views.
type ParticipantSummary struct {
	ID    utils.SixID `json:"id"`
	Name  string      `json:"name"`
	Image string      `json:"image,omitempty"`
}

// ListingSummary is the resolved listing shown alongside a conversation.
type ListingSummary struct {
	ID    utils.SixID `json:"id"`
	Title string      `json:"title"`
	Image string      `json:"image,omitempty"`
	Price float64     `json:"price"`
}

// MessagePreview is the resolved last message of a conversation.
type MessagePreview struct {
	ID        utils.SixID `json:"id"`
	Content   string      `json:"content"`
	SenderID  utils.SixID `json:"sender_id"`
	CreatedAt time.Time   `json:"created_at"`
}

// ConversationView is a conversation with its references resolved.
type ConversationView struct {
	ID            utils.SixID          `json:"id"`
	Participants  []ParticipantSummary `json:"participants" copier:"-"`
	Listing       *ListingSummary      `json:"listing"`
	LastMessage   *MessagePreview      `json:"last_message"`
	LastMessageAt *time.Time           `json:"last_message_at,omitempty"`
	Metadata      ConversationMetadata `json:"metadata"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}
