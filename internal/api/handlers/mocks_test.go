package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/storage"
	"github.com/Davzs/adezz/internal/utils"
)

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID utils.SixID, update services.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, userID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error {
	return m.Called(ctx, userID, current, next).Error(0)
}

func (m *MockUserService) SetAvatar(ctx context.Context, userID utils.SixID, imageURL, thumbURL string) error {
	return m.Called(ctx, userID, imageURL, thumbURL).Error(0)
}

func (m *MockUserService) RecordActivity(ctx context.Context, userID utils.SixID, entry models.ActivityEntry) error {
	return m.Called(ctx, userID, entry).Error(0)
}

func (m *MockUserService) SetSavedListing(ctx context.Context, userID, listingID utils.SixID, saved bool) error {
	return m.Called(ctx, userID, listingID, saved).Error(0)
}

func (m *MockUserService) GetActivity(ctx context.Context, userID utils.SixID, limit int) ([]models.ActivityEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityEntry), args.Error(1)
}

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) listing(args mock.Arguments) (*models.Listing, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) listings(args mock.Arguments) ([]models.Listing, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) CreateListing(ctx context.Context, userID utils.SixID, input services.CreateListingInput) (*models.Listing, error) {
	return m.listing(m.Called(ctx, userID, input))
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	return m.listing(m.Called(ctx, listingID))
}

func (m *MockListingService) FindOwnedListing(ctx context.Context, listingID, actor utils.SixID) (*models.Listing, error) {
	return m.listing(m.Called(ctx, listingID, actor))
}

func (m *MockListingService) ViewListing(ctx context.Context, listingID utils.SixID, viewer *utils.SixID) (*models.Listing, error) {
	return m.listing(m.Called(ctx, listingID, viewer))
}

func (m *MockListingService) SearchListings(ctx context.Context, query services.ListingQuery) (*services.ListingPage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ListingPage), args.Error(1)
}

func (m *MockListingService) FindListingsByOwner(ctx context.Context, ownerID utils.SixID, includeInactive bool) ([]models.Listing, error) {
	return m.listings(m.Called(ctx, ownerID, includeInactive))
}

func (m *MockListingService) UpdateListing(ctx context.Context, listingID, actor utils.SixID, update services.ListingUpdate) (*models.Listing, error) {
	return m.listing(m.Called(ctx, listingID, actor, update))
}

func (m *MockListingService) UpdatePriceWithHistory(ctx context.Context, listingID utils.SixID, newPrice float64, actor utils.SixID) (*models.Listing, error) {
	return m.listing(m.Called(ctx, listingID, newPrice, actor))
}

func (m *MockListingService) SoftDelete(ctx context.Context, listingID, actor utils.SixID) error {
	return m.Called(ctx, listingID, actor).Error(0)
}

func (m *MockListingService) Restore(ctx context.Context, listingID, actor utils.SixID) (*models.Listing, error) {
	return m.listing(m.Called(ctx, listingID, actor))
}

func (m *MockListingService) ToggleSave(ctx context.Context, listingID, userID utils.SixID) (bool, error) {
	args := m.Called(ctx, listingID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockListingService) Save(ctx context.Context, listingID, userID utils.SixID) error {
	return m.Called(ctx, listingID, userID).Error(0)
}

func (m *MockListingService) Unsave(ctx context.Context, listingID, userID utils.SixID) error {
	return m.Called(ctx, listingID, userID).Error(0)
}

func (m *MockListingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageURL string) error {
	return m.Called(ctx, listingID, imageURL).Error(0)
}

func (m *MockListingService) FindSavedListings(ctx context.Context, userID utils.SixID) ([]models.Listing, error) {
	return m.listings(m.Called(ctx, userID))
}

// MockConversationService
type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) conversation(args mock.Arguments) (*models.Conversation, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationService) FindOrCreateConversation(ctx context.Context, userA, userB utils.SixID, listingID *utils.SixID) (*models.Conversation, error) {
	return m.conversation(m.Called(ctx, userA, userB, listingID))
}

func (m *MockConversationService) ListConversationsForUser(ctx context.Context, userID utils.SixID) ([]models.ConversationView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationView), args.Error(1)
}

func (m *MockConversationService) GetConversation(ctx context.Context, conversationID, requester utils.SixID) (*models.ConversationView, error) {
	args := m.Called(ctx, conversationID, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationView), args.Error(1)
}

func (m *MockConversationService) FindByID(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error) {
	return m.conversation(m.Called(ctx, conversationID))
}

func (m *MockConversationService) FindActiveForMember(ctx context.Context, conversationID, userID utils.SixID) (*models.Conversation, error) {
	return m.conversation(m.Called(ctx, conversationID, userID))
}

func (m *MockConversationService) RecordNewMessage(ctx context.Context, conversationID utils.SixID, message *models.Message) error {
	return m.Called(ctx, conversationID, message).Error(0)
}

func (m *MockConversationService) MarkOfferPending(ctx context.Context, conversationID, userID utils.SixID, amount float64, at time.Time) error {
	return m.Called(ctx, conversationID, userID, amount, at).Error(0)
}

func (m *MockConversationService) RespondToOffer(ctx context.Context, conversationID, userID utils.SixID, accept bool) (*models.Conversation, error) {
	return m.conversation(m.Called(ctx, conversationID, userID, accept))
}

func (m *MockConversationService) ExpireStaleOffers(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// MockMessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) PostMessage(ctx context.Context, conversationID, senderID utils.SixID, input services.PostMessageInput) (*models.MessageView, error) {
	args := m.Called(ctx, conversationID, senderID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MessageView), args.Error(1)
}

func (m *MockMessageService) ListMessages(ctx context.Context, conversationID, requester utils.SixID) ([]models.MessageView, error) {
	args := m.Called(ctx, conversationID, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MessageView), args.Error(1)
}

func (m *MockMessageService) MarkRead(ctx context.Context, messageID, readerID utils.SixID) (*models.Message, error) {
	args := m.Called(ctx, messageID, readerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) StartConversation(ctx context.Context, senderID utils.SixID, input services.StartConversationInput) (*services.ConversationStart, error) {
	args := m.Called(ctx, senderID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ConversationStart), args.Error(1)
}

// MockNewsletterService
type MockNewsletterService struct {
	mock.Mock
}

func (m *MockNewsletterService) Subscribe(ctx context.Context, email string) (*models.NewsletterSubscription, services.SubscribeResult, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*models.NewsletterSubscription), args.Get(1).(services.SubscribeResult), args.Error(2)
}

func (m *MockNewsletterService) Unsubscribe(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

// MockEmailTemplateService
type MockEmailTemplateService struct {
	mock.Mock
}

func (m *MockEmailTemplateService) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, templateID, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

func (m *MockEmailTemplateService) Render(ctx context.Context, templateID, locale string, data any) (string, string, error) {
	args := m.Called(ctx, templateID, locale, data)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockEmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	return m.Called(ctx, template).Error(0)
}

func (m *MockEmailTemplateService) DeleteTemplate(ctx context.Context, templateID, locale string) error {
	return m.Called(ctx, templateID, locale).Error(0)
}

// MockStorage implements storage.IS3Storage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GeneratePresignedPutURL(ctx context.Context, prefix, ownerID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, prefix, ownerID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockStorage) GetObject(ctx context.Context, key string, maxBytes int64) (*storage.Object, error) {
	args := m.Called(ctx, key, maxBytes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Object), args.Error(1)
}

func (m *MockStorage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}

func (m *MockStorage) DeleteObject(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockStorage) PublicURL(key string) string {
	return m.Called(key).String(0)
}

// MockEnqueuer implements handlers.ITaskEnqueuer
type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueWelcome(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockEnqueuer) EnqueueNewsletterConfirmation(ctx context.Context, address string) error {
	return m.Called(ctx, address).Error(0)
}

func (m *MockEnqueuer) EnqueueListingImage(ctx context.Context, listingID, userID utils.SixID, objectKey string) error {
	return m.Called(ctx, listingID, userID, objectKey).Error(0)
}

func (m *MockEnqueuer) EnqueueAvatar(ctx context.Context, userID utils.SixID, objectKey string) error {
	return m.Called(ctx, userID, objectKey).Error(0)
}

func (m *MockEnqueuer) NotifyOfferUpdate(ctx context.Context, recipient *models.User, conversation *models.Conversation, listingTitle string) error {
	return m.Called(ctx, recipient, conversation, listingTitle).Error(0)
}
