package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/db"
	"github.com/Davzs/adezz/internal/logger"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/utils"
	"github.com/Davzs/adezz/internal/validation"
)

// PostMessageInput is the body of a new message.
type PostMessageInput struct {
	Content     string              `json:"message" validate:"required,max=2000"`
	Attachments []models.Attachment `json:"attachments" validate:"max=10,dive"`
	OfferAmount *float64            `json:"offer_amount" validate:"omitnil,gte=0,lte=1000000"`
}

// StartConversationInput opens (or continues) a conversation with a first message.
// An empty RecipientID means the listing owner.
type StartConversationInput struct {
	RecipientID utils.SixID  `json:"recipient_id"`
	ListingID   *utils.SixID `json:"listing_id"`
	Content     string       `json:"message"`
}

// ConversationStart is the result of StartConversation.
type ConversationStart struct {
	Conversation *models.ConversationView `json:"conversation"`
	Message      *models.MessageView      `json:"message"`
}

// MessageNotification describes a new message for a recipient who wants email.
type MessageNotification struct {
	ConversationID utils.SixID
	MessageID      utils.SixID
	RecipientID    utils.SixID
	RecipientEmail string
	RecipientName  string
	SenderName     string
	ListingTitle   string
}

// Notifier tells recipients about new messages out of band.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, n MessageNotification) error
}

// IMessageService stores and reads conversation messages.
type IMessageService interface {
	PostMessage(ctx context.Context, conversationID, senderID utils.SixID, input PostMessageInput) (*models.MessageView, error)
	ListMessages(ctx context.Context, conversationID, requester utils.SixID) ([]models.MessageView, error)
	MarkRead(ctx context.Context, messageID, readerID utils.SixID) (*models.Message, error)
	StartConversation(ctx context.Context, senderID utils.SixID, input StartConversationInput) (*ConversationStart, error)
}

// messageService implements IMessageService.
type messageService struct {
	db            *mongo.Database
	cfg           *config.Config
	log           *zap.Logger
	conversations IConversationService
	users         IUserService
	listings      IListingService
	notifier      Notifier
}

// NewMessageService creates a new MessageService. notifier may be nil.
func NewMessageService(db *mongo.Database, cfg *config.Config, log *zap.Logger, conversations IConversationService, users IUserService, listings IListingService, notifier Notifier) IMessageService {
	return &messageService{
		db:            db,
		cfg:           cfg,
		log:           log,
		conversations: conversations,
		users:         users,
		listings:      listings,
		notifier:      notifier,
	}
}

func (s *messageService) messages() *mongo.Collection {
	return s.db.Collection(db.MessagesCollection)
}

func normalizeMessageInput(input PostMessageInput) (PostMessageInput, error) {
	input.Content = strings.TrimSpace(input.Content)
	if input.Attachments == nil {
		input.Attachments = []models.Attachment{}
	}
	if err := validation.Struct(input); err != nil {
		return input, err
	}
	return input, nil
}

// PostMessage stores a message from senderID and makes it the conversation's
// last message.
func (s *messageService) PostMessage(ctx context.Context, conversationID, senderID utils.SixID, input PostMessageInput) (*models.MessageView, error) {
	input, err := normalizeMessageInput(input)
	if err != nil {
		return nil, err
	}

	conversation, err := s.conversations.FindActiveForMember(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	metadata := models.MessageMetadata{ListingID: conversation.ListingID}
	if input.OfferAmount != nil {
		metadata.OfferAmount = input.OfferAmount
		metadata.OfferStatus = models.OfferPending
	}

	var message *models.Message
	err = db.Try(func() error {
		message = &models.Message{
			ID:             utils.NewSixID(),
			ConversationID: conversationID,
			SenderID:       senderID,
			Content:        input.Content,
			Attachments:    input.Attachments,
			ReadBy:         []models.ReadReceipt{},
			Status:         models.MessageSent,
			Metadata:       metadata,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		_, insertErr := s.messages().InsertOne(ctx, message)
		return insertErr
	})
	if err != nil {
		return nil, storeError(fmt.Sprintf("insert message into %s", conversationID), err)
	}

	if err := s.conversations.RecordNewMessage(ctx, conversationID, message); err != nil {
		return nil, err
	}
	if input.OfferAmount != nil {
		if err := s.conversations.MarkOfferPending(ctx, conversationID, senderID, *input.OfferAmount, now); err != nil {
			return nil, err
		}
	}

	if err := s.users.RecordActivity(ctx, senderID, models.ActivityEntry{
		Action:     models.ActivityMessage,
		TargetType: models.TargetMessage,
		TargetID:   message.ID,
	}); err != nil {
		logger.For(ctx, s.log).Warn("failed to record message activity", zap.Error(err))
	}

	sender, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, conversation, message, sender)

	return &models.MessageView{Message: *message, Sender: summaryOf(sender)}, nil
}

// notify is best effort; a failed notification never fails the post.
func (s *messageService) notify(ctx context.Context, conversation *models.Conversation, message *models.Message, sender *models.User) {
	if s.notifier == nil {
		return
	}
	log := logger.For(ctx, s.log)

	listingTitle := ""
	if conversation.ListingID != nil {
		if listing, err := s.listings.FindListingByID(ctx, *conversation.ListingID); err == nil {
			listingTitle = listing.Title
		}
	}

	for _, recipientID := range conversation.OtherParticipants(message.SenderID) {
		recipient, err := s.users.FindByID(ctx, recipientID)
		if err != nil {
			log.Warn("notification recipient lookup failed", zap.String("user_id", recipientID.String()), zap.Error(err))
			continue
		}
		if !recipient.EmailNotifications {
			continue
		}
		err = s.notifier.NotifyNewMessage(ctx, MessageNotification{
			ConversationID: conversation.ID,
			MessageID:      message.ID,
			RecipientID:    recipient.ID,
			RecipientEmail: recipient.Email,
			RecipientName:  recipient.Name,
			SenderName:     sender.Name,
			ListingTitle:   listingTitle,
		})
		if err != nil {
			log.Warn("failed to enqueue message notification", zap.String("user_id", recipientID.String()), zap.Error(err))
		}
	}
}

// ListMessages returns the conversation's messages oldest first. Messages
// from other participants that are still sent become delivered.
func (s *messageService) ListMessages(ctx context.Context, conversationID, requester utils.SixID) ([]models.MessageView, error) {
	if _, err := s.conversations.FindActiveForMember(ctx, conversationID, requester); err != nil {
		if errors.Is(err, ErrNotAMember) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotAuthorized)
		}
		return nil, err
	}

	_, err := s.messages().UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"sender_id":       bson.M{"$ne": requester},
			"status":          models.MessageSent,
		},
		bson.M{"$set": bson.M{"status": models.MessageSent.Advance(models.MessageDelivered), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return nil, storeError("mark messages delivered", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.messages().Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, storeError("find messages", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, storeError("decode messages", err)
	}

	senderIDs := make([]utils.SixID, 0, len(messages))
	for _, m := range messages {
		senderIDs = append(senderIDs, m.SenderID)
	}
	senders, err := participantSummaries(ctx, s.db, senderIDs)
	if err != nil {
		return nil, err
	}

	views := make([]models.MessageView, 0, len(messages))
	for _, m := range messages {
		view := models.MessageView{Message: m}
		if sender, ok := senders[m.SenderID]; ok {
			view.Sender = &sender
		}
		views = append(views, view)
	}
	return views, nil
}

// MarkRead records that readerID has read the message. Repeated calls and
// calls by the sender change nothing.
func (s *messageService) MarkRead(ctx context.Context, messageID, readerID utils.SixID) (*models.Message, error) {
	message, err := s.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conversation, err := s.conversations.FindByID(ctx, message.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(readerID) {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if message.SenderID == readerID || message.IsReadBy(readerID) {
		return message, nil
	}

	now := time.Now().UTC()
	_, err = s.messages().UpdateOne(ctx,
		bson.M{"_id": messageID, "read_by.user_id": bson.M{"$ne": readerID}},
		bson.M{
			"$push": bson.M{"read_by": models.ReadReceipt{UserID: readerID, ReadAt: now}},
			"$set":  bson.M{"status": message.Status.Advance(models.MessageRead), "updated_at": now},
		},
	)
	if err != nil {
		return nil, storeError(fmt.Sprintf("mark message %s read", messageID), err)
	}
	return s.findMessage(ctx, messageID)
}

func (s *messageService) findMessage(ctx context.Context, messageID utils.SixID) (*models.Message, error) {
	var message models.Message
	if err := s.messages().FindOne(ctx, bson.M{"_id": messageID}).Decode(&message); err != nil {
		return nil, storeError(fmt.Sprintf("find message %s", messageID), err)
	}
	return &message, nil
}

// StartConversation finds or creates the conversation between senderID and
// the recipient about a listing and posts the first message to it. An empty
// recipient means the listing owner.
func (s *messageService) StartConversation(ctx context.Context, senderID utils.SixID, input StartConversationInput) (*ConversationStart, error) {
	messageInput, err := normalizeMessageInput(PostMessageInput{Content: input.Content})
	if err != nil {
		return nil, err
	}

	if input.ListingID == nil {
		return nil, validation.Field("listing_id", "required")
	}
	listing, err := s.listings.FindListingByID(ctx, *input.ListingID)
	if err != nil {
		return nil, err
	}
	recipientID := input.RecipientID
	if recipientID.IsZero() {
		recipientID = listing.UserID
	}
	if recipientID == senderID {
		return nil, validation.Field("recipient_id", "nefield=sender")
	}
	if _, err := s.users.FindByID(ctx, recipientID); err != nil {
		return nil, err
	}

	conversation, err := s.conversations.FindOrCreateConversation(ctx, senderID, recipientID, input.ListingID)
	if err != nil {
		return nil, err
	}
	message, err := s.PostMessage(ctx, conversation.ID, senderID, messageInput)
	if err != nil {
		return nil, err
	}
	view, err := s.conversations.GetConversation(ctx, conversation.ID, senderID)
	if err != nil {
		return nil, err
	}
	return &ConversationStart{Conversation: view, Message: message}, nil
}

func summaryOf(user *models.User) *models.ParticipantSummary {
	return &models.ParticipantSummary{ID: user.ID, Name: user.Name, Image: user.Image}
}
