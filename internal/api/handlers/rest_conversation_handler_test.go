package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/Davzs/adezz/internal/api/handlers"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/utils"
	"github.com/Davzs/adezz/internal/validation"
)

type conversationFixture struct {
	conversations *MockConversationService
	messages      *MockMessageService
	users         *MockUserService
	listings      *MockListingService
	enqueuer      *MockEnqueuer
	handler       *handlers.RestConversationHandler
}

func newConversationFixture(t *testing.T) *conversationFixture {
	f := &conversationFixture{
		conversations: new(MockConversationService),
		messages:      new(MockMessageService),
		users:         new(MockUserService),
		listings:      new(MockListingService),
		enqueuer:      new(MockEnqueuer),
	}
	f.handler = handlers.NewRestConversationHandler(zaptest.NewLogger(t), f.conversations, f.messages, f.users, f.listings, f.enqueuer)
	return f
}

func (f *conversationFixture) routes(userID utils.SixID) *gin.Engine {
	r := newEngine(userID)
	r.GET("/v1/conversations", f.handler.ListConversations)
	r.POST("/v1/conversations", f.handler.CreateConversation)
	r.GET("/v1/conversations/:id", f.handler.GetConversation)
	r.GET("/v1/conversations/:id/messages", f.handler.ListMessages)
	r.POST("/v1/conversations/:id/messages", f.handler.PostMessage)
	r.POST("/v1/conversations/:id/offer", f.handler.RespondToOffer)
	r.POST("/v1/messages/:id/read", f.handler.MarkRead)
	return r
}

func TestRestConversationHandler_List(t *testing.T) {
	f := newConversationFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	f.conversations.On("ListConversationsForUser", mock.Anything, userID).
		Return([]models.ConversationView{{}, {}}, nil)

	w := doRequest(r, http.MethodGet, "/v1/conversations", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var views []models.ConversationView
	decodeBody(t, w, &views)
	assert.Len(t, views, 2)
}

func TestRestConversationHandler_Get_NotMemberIs404(t *testing.T) {
	f := newConversationFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	convID := utils.NewSixID()
	f.conversations.On("GetConversation", mock.Anything, convID, userID).
		Return(nil, fmt.Errorf("conversation %s: %w", convID, services.ErrNotAuthorized))

	w := doRequest(r, http.MethodGet, "/v1/conversations/"+convID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", errorBody(t, w)["error"])
}

func TestRestConversationHandler_Create(t *testing.T) {
	f := newConversationFixture(t)
	sender := utils.NewSixID()
	r := f.routes(sender)

	recipient := utils.NewSixID()
	listing := utils.NewSixID()
	f.messages.On("StartConversation", mock.Anything, sender, mock.MatchedBy(func(in services.StartConversationInput) bool {
		return in.RecipientID == recipient && in.ListingID != nil && *in.ListingID == listing && in.Content == "Hello"
	})).Return(&services.ConversationStart{
		Conversation: &models.ConversationView{},
		Message:      &models.MessageView{Message: models.Message{Content: "Hello"}},
	}, nil)

	w := doRequest(r, http.MethodPost, "/v1/conversations", gin.H{"recipient_id": recipient.String(), "listing_id": listing.String(), "message": "Hello"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"message"`)
	f.messages.AssertExpectations(t)
}

func TestRestConversationHandler_Create_SelfIsValidationError(t *testing.T) {
	f := newConversationFixture(t)
	sender := utils.NewSixID()
	r := f.routes(sender)

	f.messages.On("StartConversation", mock.Anything, sender, mock.Anything).
		Return(nil, validation.Field("recipient_id", "nefield=sender"))

	w := doRequest(r, http.MethodPost, "/v1/conversations", gin.H{"recipient_id": sender.String(), "listing_id": utils.NewSixID().String(), "message": "Hi me"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"recipient_id": "nefield=sender"}, errorBody(t, w)["fields"])
}

func TestRestConversationHandler_Create_RequiresRecipientAndListing(t *testing.T) {
	f := newConversationFixture(t)
	r := f.routes(utils.NewSixID())

	tests := []struct {
		name  string
		body  gin.H
		field string
	}{
		{"missing recipient", gin.H{"listing_id": utils.NewSixID().String(), "message": "Hi"}, "recipient_id"},
		{"missing listing", gin.H{"recipient_id": utils.NewSixID().String(), "message": "Hi"}, "listing_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/v1/conversations", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, map[string]any{tt.field: "required"}, errorBody(t, w)["fields"])
		})
	}
	f.messages.AssertNotCalled(t, "StartConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestRestConversationHandler_Messages(t *testing.T) {
	f := newConversationFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	convID, other := utils.NewSixID(), utils.NewSixID()
	f.messages.On("ListMessages", mock.Anything, convID, userID).
		Return([]models.MessageView{{Message: models.Message{Content: "first"}}}, nil)
	f.messages.On("ListMessages", mock.Anything, other, userID).
		Return(nil, services.ErrNotAuthorized)

	w := doRequest(r, http.MethodGet, "/v1/conversations/"+convID.String()+"/messages", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "first")

	w = doRequest(r, http.MethodGet, "/v1/conversations/"+other.String()+"/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestConversationHandler_PostMessage(t *testing.T) {
	f := newConversationFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	convID := utils.NewSixID()
	f.messages.On("PostMessage", mock.Anything, convID, userID, mock.MatchedBy(func(in services.PostMessageInput) bool {
		return in.Content == "Would you take 80?" && in.OfferAmount != nil && *in.OfferAmount == 80
	})).Return(&models.MessageView{Message: models.Message{Content: "Would you take 80?"}}, nil)

	w := doRequest(r, http.MethodPost, "/v1/conversations/"+convID.String()+"/messages", gin.H{"message": "Would you take 80?", "offer_amount": 80})

	assert.Equal(t, http.StatusOK, w.Code)
	f.messages.AssertExpectations(t)
}

func TestRestConversationHandler_PostMessage_Errors(t *testing.T) {
	f := newConversationFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	tooLong, notMember := utils.NewSixID(), utils.NewSixID()
	f.messages.On("PostMessage", mock.Anything, tooLong, userID, mock.Anything).
		Return(nil, validation.Field("message", "max=2000"))
	f.messages.On("PostMessage", mock.Anything, notMember, userID, mock.Anything).
		Return(nil, services.ErrNotAMember)

	w := doRequest(r, http.MethodPost, "/v1/conversations/"+tooLong.String()+"/messages", gin.H{"message": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/conversations/"+notMember.String()+"/messages", gin.H{"message": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestConversationHandler_RespondToOffer(t *testing.T) {
	f := newConversationFixture(t)
	seller := utils.NewSixID()
	r := f.routes(seller)

	buyer := newUser("Buyer")
	convID, listingID := utils.NewSixID(), utils.NewSixID()
	conversation := &models.Conversation{
		ID:        convID,
		ListingID: &listingID,
		Metadata: models.ConversationMetadata{
			OfferStatus: models.OfferAccepted,
			LastOffer:   &models.LastOffer{Amount: 80, CreatedBy: buyer.ID, CreatedAt: time.Now()},
		},
	}
	f.conversations.On("RespondToOffer", mock.Anything, convID, seller, true).Return(conversation, nil)
	f.users.On("FindByID", mock.Anything, buyer.ID).Return(buyer, nil)
	f.listings.On("FindListingByID", mock.Anything, listingID).Return(&models.Listing{Title: "Bike"}, nil)
	f.enqueuer.On("NotifyOfferUpdate", mock.Anything, buyer, conversation, "Bike").Return(nil)

	w := doRequest(r, http.MethodPost, "/v1/conversations/"+convID.String()+"/offer", gin.H{"accept": true})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"offer_status":"accepted"`)
	f.enqueuer.AssertExpectations(t)
}

func TestRestConversationHandler_RespondToOffer_Errors(t *testing.T) {
	f := newConversationFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)
	convID := utils.NewSixID()

	w := doRequest(r, http.MethodPost, "/v1/conversations/"+convID.String()+"/offer", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.conversations.On("RespondToOffer", mock.Anything, convID, userID, false).Return(nil, services.ErrInvalidState)
	w = doRequest(r, http.MethodPost, "/v1/conversations/"+convID.String()+"/offer", gin.H{"accept": false})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.enqueuer.AssertNotCalled(t, "NotifyOfferUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRestConversationHandler_MarkRead(t *testing.T) {
	f := newConversationFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	readable, hidden := utils.NewSixID(), utils.NewSixID()
	f.messages.On("MarkRead", mock.Anything, readable, userID).
		Return(&models.Message{ID: readable, Status: models.MessageRead}, nil)
	f.messages.On("MarkRead", mock.Anything, hidden, userID).
		Return(nil, services.ErrNotFound)

	w := doRequest(r, http.MethodPost, "/v1/messages/"+readable.String()+"/read", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"read"`)

	w = doRequest(r, http.MethodPost, "/v1/messages/"+hidden.String()+"/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
