package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/db"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/utils"
	"github.com/Davzs/adezz/internal/validation"
)

// SubscribeResult tells a new subscription apart from a repeated one.
type SubscribeResult string

const (
	SubscribeCreated      SubscribeResult = "created"
	SubscribeResubscribed SubscribeResult = "resubscribed"
	SubscribeAlready      SubscribeResult = "already_subscribed"
)

type newsletterEmail struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// INewsletterService manages the newsletter list.
type INewsletterService interface {
	Subscribe(ctx context.Context, email string) (*models.NewsletterSubscription, SubscribeResult, error)
	Unsubscribe(ctx context.Context, email string) error
}

type newsletterService struct {
	db  *mongo.Database
	cfg *config.Config
	log *zap.Logger
}

func NewNewsletterService(db *mongo.Database, cfg *config.Config, log *zap.Logger) INewsletterService {
	return &newsletterService{db: db, cfg: cfg, log: log}
}

func (s *newsletterService) subscriptions() *mongo.Collection {
	return s.db.Collection(db.NewsletterCollection)
}

func (s *newsletterService) Subscribe(ctx context.Context, email string) (*models.NewsletterSubscription, SubscribeResult, error) {
	email = normalizeEmail(email)
	if err := validation.Struct(newsletterEmail{Email: email}); err != nil {
		return nil, "", err
	}

	var (
		sub    models.NewsletterSubscription
		result SubscribeResult
	)
	err := db.Try(func() error {
		sub = models.NewsletterSubscription{}
		err := s.subscriptions().FindOne(ctx, bson.M{"email": email}).Decode(&sub)
		switch {
		case err == nil && sub.Subscribed:
			result = SubscribeAlready
			return nil
		case err == nil:
			now := time.Now().UTC()
			_, err = s.subscriptions().UpdateOne(ctx, bson.M{"_id": sub.ID}, bson.M{
				"$set":   bson.M{"subscribed": true, "subscribed_at": now},
				"$unset": bson.M{"unsubscribed_at": ""},
			})
			if err != nil {
				return err
			}
			sub.Subscribed, sub.SubscribedAt, sub.UnsubscribedAt = true, now, nil
			result = SubscribeResubscribed
			return nil
		case errors.Is(err, mongo.ErrNoDocuments):
			sub = models.NewsletterSubscription{
				ID:           utils.NewSixID(),
				Email:        email,
				Subscribed:   true,
				SubscribedAt: time.Now().UTC(),
			}
			if _, err := s.subscriptions().InsertOne(ctx, &sub); err != nil {
				return err
			}
			result = SubscribeCreated
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, "", storeError("subscribe "+email, err)
	}
	return &sub, result, nil
}

// Unsubscribe is a no-op for addresses that never subscribed.
func (s *newsletterService) Unsubscribe(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validation.Struct(newsletterEmail{Email: email}); err != nil {
		return err
	}
	_, err := s.subscriptions().UpdateOne(ctx,
		bson.M{"email": email, "subscribed": true},
		bson.M{"$set": bson.M{"subscribed": false, "unsubscribed_at": time.Now().UTC()}},
	)
	if err != nil {
		return storeError(fmt.Sprintf("unsubscribe %s", email), err)
	}
	return nil
}
