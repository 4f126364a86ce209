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
	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/utils"
)

type userFixture struct {
	users    *MockUserService
	listings *MockListingService
	enqueuer *MockEnqueuer
	handler  *handlers.RestUserHandler
}

func newUserFixture(t *testing.T) *userFixture {
	f := &userFixture{
		users:    new(MockUserService),
		listings: new(MockListingService),
		enqueuer: new(MockEnqueuer),
	}
	f.handler = handlers.NewRestUserHandler(&config.Config{}, zaptest.NewLogger(t), f.users, f.listings, f.enqueuer)
	return f
}

func (f *userFixture) routes(userID utils.SixID) *gin.Engine {
	r := newEngine(userID)
	r.GET("/v1/me", f.handler.GetMe)
	r.PATCH("/v1/me", f.handler.UpdateMe)
	r.POST("/v1/me/password", f.handler.ChangePassword)
	r.POST("/v1/me/avatar", f.handler.SetAvatar)
	r.GET("/v1/me/saved", f.handler.GetSaved)
	r.GET("/v1/me/activity", f.handler.GetActivity)
	r.GET("/v1/me/listings", f.handler.GetMyListings)
	r.GET("/v1/users/:id", f.handler.GetUserByID)
	r.GET("/v1/users/:id/listings", f.handler.GetUserListings)
	return r
}

func newUser(name string) *models.User {
	return &models.User{
		Base:               models.NewBase(),
		Name:               name,
		Email:              "user@example.com",
		PasswordHash:       "$2a$10$secret",
		Bio:                "Collector",
		EmailNotifications: true,
		CreatedAt:          time.Now().Add(-24 * time.Hour).UTC(),
	}
}

func TestRestUserHandler_GetUserByID_Success(t *testing.T) {
	f := newUserFixture(t)
	r := f.routes(utils.SixID{})

	user := newUser("Test User")
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	w := doRequest(r, http.MethodGet, "/v1/users/"+user.ID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var public models.PublicUser
	decodeBody(t, w, &public)
	assert.Equal(t, user.ID, public.ID)
	assert.Equal(t, "Test User", public.Name)
	assert.Equal(t, "Collector", public.Bio)
	assert.NotContains(t, w.Body.String(), "user@example.com")
	assert.NotContains(t, w.Body.String(), "secret")
	f.users.AssertExpectations(t)
}

func TestRestUserHandler_GetUserByID_NotFound(t *testing.T) {
	f := newUserFixture(t)
	r := f.routes(utils.SixID{})

	userID := utils.NewSixID()
	f.users.On("FindByID", mock.Anything, userID).Return(nil, fmt.Errorf("find user: %w", services.ErrNotFound))

	w := doRequest(r, http.MethodGet, "/v1/users/"+userID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", errorBody(t, w)["error"])
}

func TestRestUserHandler_GetUserByID_InvalidID(t *testing.T) {
	f := newUserFixture(t)
	r := f.routes(utils.SixID{})

	w := doRequest(r, http.MethodGet, "/v1/users/invalid-id-format", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestRestUserHandler_GetUserListings(t *testing.T) {
	f := newUserFixture(t)
	r := f.routes(utils.SixID{})

	user := newUser("Seller")
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.listings.On("FindListingsByOwner", mock.Anything, user.ID, false).Return([]models.Listing{{Title: "Chair"}}, nil)

	w := doRequest(r, http.MethodGet, "/v1/users/"+user.ID.String()+"/listings", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.Listing `json:"data"`
	}
	decodeBody(t, w, &body)
	assert.Len(t, body.Data, 1)
	f.listings.AssertExpectations(t)
}

func TestRestUserHandler_GetMe(t *testing.T) {
	f := newUserFixture(t)
	user := newUser("Me")
	r := f.routes(user.ID)
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	w := doRequest(r, http.MethodGet, "/v1/me", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user@example.com")
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestRestUserHandler_UpdateMe_EmailTaken(t *testing.T) {
	f := newUserFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	f.users.On("UpdateProfile", mock.Anything, userID, mock.MatchedBy(func(u services.ProfileUpdate) bool {
		return u.Email != nil && *u.Email == "taken@example.com" && u.Name == nil
	})).Return(nil, fmt.Errorf("email: %w", services.ErrAlreadyExists))

	w := doRequest(r, http.MethodPatch, "/v1/me", gin.H{"email": "taken@example.com"})

	assert.Equal(t, http.StatusConflict, w.Code)
	f.users.AssertExpectations(t)
}

func TestRestUserHandler_ChangePassword(t *testing.T) {
	f := newUserFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	f.users.On("ChangePassword", mock.Anything, userID, "old-password", "new-password").Return(nil).Once()
	f.users.On("ChangePassword", mock.Anything, userID, "wrong", "new-password").Return(services.ErrInvalidCredentials).Once()

	w := doRequest(r, http.MethodPost, "/v1/me/password", gin.H{"current_password": "old-password", "new_password": "new-password"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/me/password", gin.H{"current_password": "wrong", "new_password": "new-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/me/password", gin.H{"new_password": "new-password"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRestUserHandler_SetAvatar(t *testing.T) {
	f := newUserFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	key := "uploads/" + userID.String() + "/me.png"
	f.enqueuer.On("EnqueueAvatar", mock.Anything, userID, key).Return(nil)

	w := doRequest(r, http.MethodPost, "/v1/me/avatar", gin.H{"key": key})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/me/avatar", gin.H{"key": "uploads/" + utils.NewSixID().String() + "/me.png"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.enqueuer.AssertNumberOfCalls(t, "EnqueueAvatar", 1)
}

func TestRestUserHandler_GetActivity_Limit(t *testing.T) {
	f := newUserFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	f.users.On("GetActivity", mock.Anything, userID, 5).Return([]models.ActivityEntry{{Action: models.ActivitySave}}, nil)
	f.users.On("GetActivity", mock.Anything, userID, 50).Return([]models.ActivityEntry{}, nil)

	w := doRequest(r, http.MethodGet, "/v1/me/activity?limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"save"`)

	w = doRequest(r, http.MethodGet, "/v1/me/activity?limit=-3", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	f.users.AssertExpectations(t)
}

func TestRestUserHandler_SavedAndOwnListings(t *testing.T) {
	f := newUserFixture(t)
	userID := utils.NewSixID()
	r := f.routes(userID)

	f.listings.On("FindSavedListings", mock.Anything, userID).Return([]models.Listing{{Title: "Saved"}}, nil)
	f.listings.On("FindListingsByOwner", mock.Anything, userID, true).Return([]models.Listing{{Title: "Draft"}}, nil)

	w := doRequest(r, http.MethodGet, "/v1/me/saved", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Saved")

	w = doRequest(r, http.MethodGet, "/v1/me/listings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Draft")
}
