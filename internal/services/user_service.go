package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/auth"
	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/db"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/utils"
	"github.com/Davzs/adezz/internal/validation"
)

const emailIndex = "uniq_email"

// RegisterInput is the credential signup form.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// ProfileUpdate carries the profile fields to change; nil fields are left alone.
type ProfileUpdate struct {
	Name               *string `json:"name" validate:"omitnil,min=2,max=50"`
	Email              *string `json:"email" validate:"omitnil,email,max=254"`
	Bio                *string `json:"bio" validate:"omitnil,max=500"`
	Location           *string `json:"location" validate:"omitnil,max=100"`
	Website            *string `json:"website" validate:"omitempty,url,max=200"`
	EmailNotifications *bool   `json:"email_notifications"`
	PushNotifications  *bool   `json:"push_notifications"`
}

// IUserService defines the interface for user-related operations.
type IUserService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID utils.SixID, update ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error
	SetAvatar(ctx context.Context, userID utils.SixID, imageURL, thumbURL string) error
	RecordActivity(ctx context.Context, userID utils.SixID, entry models.ActivityEntry) error
	SetSavedListing(ctx context.Context, userID, listingID utils.SixID, saved bool) error
	GetActivity(ctx context.Context, userID utils.SixID, limit int) ([]models.ActivityEntry, error)
}

// userService implements IUserService.
type userService struct {
	db  *mongo.Database
	cfg *config.Config
	log *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database, cfg *config.Config, log *zap.Logger) IUserService {
	return &userService{db: db, cfg: cfg, log: log}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) users() *mongo.Collection {
	return s.db.Collection(db.UsersCollection)
}

// Register creates a credential user. Emails are unique regardless of case.
func (s *userService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if !auth.PasswordLongEnough(input.Password, s.cfg.PasswordMinLength) {
		return nil, validation.Field("password", fmt.Sprintf("min=%d", s.cfg.PasswordMinLength))
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var user *models.User
	err = db.WithRetries(func() error {
		user = &models.User{
			Base:               models.NewBase(),
			Name:               input.Name,
			Email:              input.Email,
			PasswordHash:       hash,
			EmailNotifications: true,
			PushNotifications:  false,
			SavedListings:      []utils.SixID{},
			ActivityHistory:    []models.ActivityEntry{},
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		_, insertErr := s.users().InsertOne(ctx, user)
		return insertErr
	}, db.DefaultMaxRetries, func(err error) bool {
		return db.IsMongoDuplicateKeyError(err) && !db.IsDuplicateKeyOnIndex(err, emailIndex)
	})
	if err != nil {
		if db.IsDuplicateKeyOnIndex(err, emailIndex) {
			return nil, fmt.Errorf("email %s: %w", input.Email, ErrAlreadyExists)
		}
		return nil, storeError("insert user", err)
	}

	return user, nil
}

// Authenticate checks credentials. Unknown email and wrong password are indistinguishable.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	if err := s.users().FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		return nil, storeError(fmt.Sprintf("find user %s", userID), err)
	}
	return &user, nil
}

func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.users().FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&user); err != nil {
		return nil, storeError("find user by email", err)
	}
	return &user, nil
}

// UpdateProfile applies the non-nil fields of update.
func (s *userService) UpdateProfile(ctx context.Context, userID utils.SixID, update ProfileUpdate) (*models.User, error) {
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		update.Name = &trimmed
	}
	if update.Email != nil {
		normalized := normalizeEmail(*update.Email)
		update.Email = &normalized
	}
	if err := validation.Struct(update); err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.Bio != nil {
		set["bio"] = strings.TrimSpace(*update.Bio)
	}
	if update.Location != nil {
		set["location"] = strings.TrimSpace(*update.Location)
	}
	if update.Website != nil {
		set["website"] = strings.TrimSpace(*update.Website)
	}
	if update.EmailNotifications != nil {
		set["email_notifications"] = *update.EmailNotifications
	}
	if update.PushNotifications != nil {
		set["push_notifications"] = *update.PushNotifications
	}

	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.users().FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if db.IsDuplicateKeyOnIndex(err, emailIndex) {
			return nil, fmt.Errorf("email %s: %w", *update.Email, ErrAlreadyExists)
		}
		return nil, storeError(fmt.Sprintf("update profile %s", userID), err)
	}
	return &user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *userService) ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error {
	if !auth.PasswordLongEnough(next, s.cfg.PasswordMinLength) {
		return validation.Field("new_password", fmt.Sprintf("min=%d", s.cfg.PasswordMinLength))
	}
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	_, err = s.users().UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"password":   hash,
		"updated_at": time.Now().UTC(),
	}})
	return storeError("update password", err)
}

func (s *userService) SetAvatar(ctx context.Context, userID utils.SixID, imageURL, thumbURL string) error {
	res, err := s.users().UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"image":       imageURL,
		"image_thumb": thumbURL,
		"updated_at":  time.Now().UTC(),
	}})
	if err != nil {
		return storeError("set avatar", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// RecordActivity appends to the activity history. A positive
// ActivityHistoryLimit keeps only the newest entries.
func (s *userService) RecordActivity(ctx context.Context, userID utils.SixID, entry models.ActivityEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	push := bson.M{"$each": []models.ActivityEntry{entry}}
	if s.cfg.ActivityHistoryLimit > 0 {
		push["$slice"] = -s.cfg.ActivityHistoryLimit
	}
	res, err := s.users().UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$push": bson.M{"activity_history": push}})
	if err != nil {
		return storeError("record activity", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// SetSavedListing adds or removes listingID from the user's saved listings.
func (s *userService) SetSavedListing(ctx context.Context, userID, listingID utils.SixID, saved bool) error {
	op := "$pull"
	if saved {
		op = "$addToSet"
	}
	res, err := s.users().UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		op:     bson.M{"saved_listings": listingID},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return storeError("update saved listings", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// GetActivity returns up to limit of the newest activity entries, newest first.
func (s *userService) GetActivity(ctx context.Context, userID utils.SixID, limit int) ([]models.ActivityEntry, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	history := user.ActivityHistory
	out := make([]models.ActivityEntry, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
