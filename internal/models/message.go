package models

import (
	"time"

	"github.com/Davzs/adezz/internal/utils"
)

// MaxMessageLength is the maximum message length in characters.
const MaxMessageLength = 2000

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

var messageStatusRank = map[MessageStatus]int{
	MessageSent:      0,
	MessageDelivered: 1,
	MessageRead:      2,
}

// Advance returns the later of s and next. Status never moves backwards.
func (s MessageStatus) Advance(next MessageStatus) MessageStatus {
	if messageStatusRank[next] > messageStatusRank[s] {
		return next
	}
	return s
}

// AttachmentType is the kind of a message attachment.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
)

// Attachment is a file reference carried by a message.
type Attachment struct {
	Type AttachmentType `bson:"type" json:"type" validate:"required,oneof=image file"`
	URL  string         `bson:"url" json:"url" validate:"required,url"`
	Name string         `bson:"name" json:"name" validate:"required,max=255"`
	Size int64          `bson:"size" json:"size" validate:"gte=0"`
}

// ReadReceipt records when a participant read a message.
type ReadReceipt struct {
	UserID utils.SixID `bson:"user_id" json:"user_id"`
	ReadAt time.Time   `bson:"read_at" json:"read_at"`
}

// MessageMetadata links a message to its listing and any offer it carries.
type MessageMetadata struct {
	ListingID   *utils.SixID `bson:"listing_id,omitempty" json:"listing_id,omitempty"`
	OfferAmount *float64     `bson:"offer_amount,omitempty" json:"offer_amount,omitempty"`
	OfferStatus OfferStatus  `bson:"offer_status,omitempty" json:"offer_status,omitempty"`
}

// Message is an immutable entry in a conversation; only Status and ReadBy change.
type Message struct {
	ID             utils.SixID     `bson:"_id,omitempty" json:"id,omitempty"`
	ConversationID utils.SixID     `bson:"conversation_id" json:"conversation_id"`
	SenderID       utils.SixID     `bson:"sender_id" json:"sender_id"`
	Content        string          `bson:"content" json:"content"`
	Attachments    []Attachment    `bson:"attachments" json:"attachments"`
	ReadBy         []ReadReceipt   `bson:"read_by" json:"read_by"`
	Status         MessageStatus   `bson:"status" json:"status"`
	Metadata       MessageMetadata `bson:"metadata" json:"metadata"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`
}

// IsReadBy reports whether userID has a read receipt on the message.
func (m *Message) IsReadBy(userID utils.SixID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Preview returns the short form used as a conversation's last message.
func (m *Message) Preview() *MessagePreview {
	return &MessagePreview{ID: m.ID, Content: m.Content, SenderID: m.SenderID, CreatedAt: m.CreatedAt}
}

// MessageView is a message with its sender resolved.
type MessageView struct {
	Message
	Sender *ParticipantSummary `json:"sender"`
}
