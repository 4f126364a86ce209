package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/db"
	"github.com/Davzs/adezz/internal/logger"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/utils"
	"github.com/Davzs/adezz/internal/validation"
)

// IConversationService manages two-party conversations.
type IConversationService interface {
	FindOrCreateConversation(ctx context.Context, userA, userB utils.SixID, listingID *utils.SixID) (*models.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID utils.SixID) ([]models.ConversationView, error)
	GetConversation(ctx context.Context, conversationID, requester utils.SixID) (*models.ConversationView, error)
	FindByID(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error)
	FindActiveForMember(ctx context.Context, conversationID, userID utils.SixID) (*models.Conversation, error)
	RecordNewMessage(ctx context.Context, conversationID utils.SixID, message *models.Message) error
	MarkOfferPending(ctx context.Context, conversationID, userID utils.SixID, amount float64, at time.Time) error
	RespondToOffer(ctx context.Context, conversationID, userID utils.SixID, accept bool) (*models.Conversation, error)
	ExpireStaleOffers(ctx context.Context, olderThan time.Duration) (int64, error)
}

// conversationService implements IConversationService.
type conversationService struct {
	db  *mongo.Database
	cfg *config.Config
	log *zap.Logger
	// createRetries bounds the find-or-insert loop on duplicate keys.
	createRetries int
}

// NewConversationService creates a new ConversationService.
func NewConversationService(database *mongo.Database, cfg *config.Config, log *zap.Logger) IConversationService {
	return &conversationService{db: database, cfg: cfg, log: log, createRetries: db.DefaultMaxRetries}
}

func (s *conversationService) conversations() *mongo.Collection {
	return s.db.Collection(db.ConversationsCollection)
}

// FindOrCreateConversation returns the active conversation between the two
// users about listingID (nil for none), inserting it if there is none yet.
// Concurrent callers converge on one document: the loser of the insert race
// hits the partial unique index and re-reads.
func (s *conversationService) FindOrCreateConversation(ctx context.Context, userA, userB utils.SixID, listingID *utils.SixID) (*models.Conversation, error) {
	if userA.IsZero() || userB.IsZero() {
		return nil, validation.Field("recipient_id", "required")
	}
	if userA == userB {
		return nil, validation.Field("recipient_id", "nefield=sender")
	}

	key := models.ParticipantKey(userA, userB)
	filter := bson.M{"participant_key": key, "is_active": true, "listing_id": nil}
	if listingID != nil {
		filter["listing_id"] = *listingID
	}

	var conversation *models.Conversation
	err := db.WithRetries(func() error {
		existing, err := s.findActive(ctx, filter)
		if err != nil {
			return err
		}
		if existing != nil {
			conversation = existing
			return nil
		}

		now := time.Now().UTC().Truncate(time.Millisecond)
		created := &models.Conversation{
			ID:             utils.NewSixID(),
			Participants:   models.SortedPair(userA, userB),
			ParticipantKey: key,
			ListingID:      listingID,
			IsActive:       true,
			Metadata:       models.ConversationMetadata{OfferStatus: models.OfferNone},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := s.conversations().InsertOne(ctx, created); err != nil {
			return err
		}
		conversation = created
		return nil
	}, s.createRetries, db.IsMongoDuplicateKeyError)
	if err != nil && db.IsMongoDuplicateKeyError(err) {
		// The winner of the last collision is committed by now.
		existing, findErr := s.findActive(ctx, filter)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		s.log.Warn("find or create conversation kept colliding", zap.String("participant_key", key), zap.Error(err))
		return nil, fmt.Errorf("conversation %s: %w", key, ErrConflictDuringCreate)
	}
	if err != nil {
		return nil, storeError("find or create conversation", err)
	}
	return conversation, nil
}

// findActive returns the conversation matching filter, or nil when there is none.
func (s *conversationService) findActive(ctx context.Context, filter bson.M) (*models.Conversation, error) {
	var existing models.Conversation
	err := s.conversations().FindOne(ctx, filter).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// ListConversationsForUser returns the user's active conversations, most
// recently active first, with references resolved.
func (s *conversationService) ListConversationsForUser(ctx context.Context, userID utils.SixID) ([]models.ConversationView, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "last_message_at", Value: -1},
		{Key: "updated_at", Value: -1},
	})
	cursor, err := s.conversations().Find(ctx, bson.M{"participants": userID, "is_active": true}, opts)
	if err != nil {
		return nil, storeError("find conversations", err)
	}
	defer cursor.Close(ctx)

	var conversations []models.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, storeError("decode conversations", err)
	}
	return s.resolve(ctx, conversations)
}

// GetConversation returns the resolved conversation if requester takes part
// in it and it is active.
func (s *conversationService) GetConversation(ctx context.Context, conversationID, requester utils.SixID) (*models.ConversationView, error) {
	conversation, err := s.FindActiveForMember(ctx, conversationID, requester)
	if err != nil {
		if errors.Is(err, ErrNotAMember) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotAuthorized)
		}
		return nil, err
	}
	views, err := s.resolve(ctx, []models.Conversation{*conversation})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *conversationService) FindByID(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := s.conversations().FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conversation); err != nil {
		return nil, storeError(fmt.Sprintf("find conversation %s", conversationID), err)
	}
	return &conversation, nil
}

// FindActiveForMember returns the conversation, or ErrNotAMember when userID
// is not a participant or the conversation is no longer active.
func (s *conversationService) FindActiveForMember(ctx context.Context, conversationID, userID utils.SixID) (*models.Conversation, error) {
	conversation, err := s.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.IsActive || !conversation.HasParticipant(userID) {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotAMember)
	}
	return conversation, nil
}

// RecordNewMessage points the conversation at message. It must only be called
// once the message is stored. Concurrent posts race and the last write wins.
func (s *conversationService) RecordNewMessage(ctx context.Context, conversationID utils.SixID, message *models.Message) error {
	res, err := s.conversations().UpdateOne(ctx, bson.M{"_id": conversationID}, bson.M{"$set": bson.M{
		"last_message":    message.ID,
		"last_message_at": message.CreatedAt,
		"updated_at":      time.Now().UTC(),
	}})
	if err != nil {
		return storeError(fmt.Sprintf("record last message of %s", conversationID), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	return nil
}

// MarkOfferPending opens a new offer, replacing whatever offer came before.
func (s *conversationService) MarkOfferPending(ctx context.Context, conversationID, userID utils.SixID, amount float64, at time.Time) error {
	res, err := s.conversations().UpdateOne(ctx, bson.M{"_id": conversationID, "is_active": true}, bson.M{"$set": bson.M{
		"metadata.offer_status": models.OfferPending,
		"metadata.last_offer": models.LastOffer{
			Amount:    amount,
			CreatedAt: at,
			CreatedBy: userID,
		},
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return storeError(fmt.Sprintf("open offer on %s", conversationID), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	return nil
}

// RespondToOffer accepts or rejects the pending offer. Only the participant
// who did not make the offer may respond.
func (s *conversationService) RespondToOffer(ctx context.Context, conversationID, userID utils.SixID, accept bool) (*models.Conversation, error) {
	conversation, err := s.FindActiveForMember(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, ErrNotAMember) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotAuthorized)
		}
		return nil, err
	}
	if conversation.Metadata.OfferStatus != models.OfferPending || conversation.Metadata.LastOffer == nil {
		return nil, fmt.Errorf("conversation %s has no pending offer: %w", conversationID, ErrInvalidState)
	}
	if conversation.Metadata.LastOffer.CreatedBy == userID {
		return nil, fmt.Errorf("cannot respond to own offer: %w", ErrInvalidState)
	}

	status := models.OfferRejected
	if accept {
		status = models.OfferAccepted
	}

	var updated models.Conversation
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = s.conversations().FindOneAndUpdate(ctx,
		bson.M{
			"_id":                            conversationID,
			"is_active":                      true,
			"metadata.offer_status":          models.OfferPending,
			"metadata.last_offer.created_by": bson.M{"$ne": userID},
		},
		bson.M{"$set": bson.M{"metadata.offer_status": status, "updated_at": time.Now().UTC()}},
		opts,
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// The offer expired or was answered in the meantime.
		return nil, fmt.Errorf("conversation %s has no pending offer: %w", conversationID, ErrInvalidState)
	}
	if err != nil {
		return nil, storeError(fmt.Sprintf("respond to offer on %s", conversationID), err)
	}
	return &updated, nil
}

// ExpireStaleOffers moves offers pending for longer than olderThan to expired.
func (s *conversationService) ExpireStaleOffers(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.conversations().UpdateMany(ctx,
		bson.M{
			"metadata.offer_status":          models.OfferPending,
			"metadata.last_offer.created_at": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{"metadata.offer_status": models.OfferExpired, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, storeError("expire stale offers", err)
	}
	if res.ModifiedCount > 0 {
		s.log.Info("expired stale offers", zap.Int64("count", res.ModifiedCount), zap.Time("cutoff", cutoff))
	}
	return res.ModifiedCount, nil
}

// resolve builds views for conversations, fetching participants, listings and
// last messages with one query each.
func (s *conversationService) resolve(ctx context.Context, conversations []models.Conversation) ([]models.ConversationView, error) {
	views := make([]models.ConversationView, 0, len(conversations))
	if len(conversations) == 0 {
		return views, nil
	}

	var userIDs, listingIDs, messageIDs []utils.SixID
	for _, c := range conversations {
		userIDs = append(userIDs, c.Participants...)
		if c.ListingID != nil {
			listingIDs = append(listingIDs, *c.ListingID)
		}
		if c.LastMessageID != nil {
			messageIDs = append(messageIDs, *c.LastMessageID)
		}
	}

	var (
		users    map[utils.SixID]models.ParticipantSummary
		listings map[utils.SixID]*models.ListingSummary
		messages map[utils.SixID]*models.MessagePreview
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = participantSummaries(gctx, s.db, userIDs)
		return err
	})
	g.Go(func() error {
		found, err := findByIDs[models.Listing](gctx, s.db.Collection(db.ListingsCollection), listingIDs,
			options.Find().SetProjection(bson.M{"title": 1, "images": 1, "price": 1}))
		if err != nil {
			return err
		}
		listings = make(map[utils.SixID]*models.ListingSummary, len(found))
		for i := range found {
			listings[found[i].ID] = found[i].Summary()
		}
		return nil
	})
	g.Go(func() error {
		found, err := findByIDs[models.Message](gctx, s.db.Collection(db.MessagesCollection), messageIDs, options.Find())
		if err != nil {
			return err
		}
		messages = make(map[utils.SixID]*models.MessagePreview, len(found))
		for i := range found {
			messages[found[i].ID] = found[i].Preview()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range conversations {
		c := &conversations[i]
		var view models.ConversationView
		if err := copier.Copy(&view, c); err != nil {
			return nil, fmt.Errorf("copy conversation %s: %w", c.ID, err)
		}
		view.Participants = make([]models.ParticipantSummary, 0, len(c.Participants))
		for _, p := range c.Participants {
			summary, ok := users[p]
			if !ok {
				logger.For(ctx, s.log).Warn("conversation participant missing",
					zap.String("conversation_id", c.ID.String()),
					zap.String("user_id", p.String()))
				summary = models.ParticipantSummary{ID: p}
			}
			view.Participants = append(view.Participants, summary)
		}
		if c.ListingID != nil {
			view.Listing = listings[*c.ListingID]
		}
		if c.LastMessageID != nil {
			view.LastMessage = messages[*c.LastMessageID]
		}
		views = append(views, view)
	}
	return views, nil
}

// participantSummaries loads the public identity of each user in ids.
func participantSummaries(ctx context.Context, database *mongo.Database, ids []utils.SixID) (map[utils.SixID]models.ParticipantSummary, error) {
	found, err := findByIDs[models.User](ctx, database.Collection(db.UsersCollection), ids,
		options.Find().SetProjection(bson.M{"name": 1, "image": 1}))
	if err != nil {
		return nil, err
	}
	out := make(map[utils.SixID]models.ParticipantSummary, len(found))
	for i := range found {
		var summary models.ParticipantSummary
		if err := copier.Copy(&summary, &found[i]); err != nil {
			return nil, fmt.Errorf("copy user %s: %w", found[i].ID, err)
		}
		out[found[i].ID] = summary
	}
	return out, nil
}

// findByIDs fetches the documents whose _id is in ids.
func findByIDs[T any](ctx context.Context, coll *mongo.Collection, ids []utils.SixID, opts *options.FindOptions) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": uniqueIDs(ids)}}, opts)
	if err != nil {
		return nil, storeError(fmt.Sprintf("batch find in %s", coll.Name()), err)
	}
	defer cursor.Close(ctx)

	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, storeError(fmt.Sprintf("batch decode from %s", coll.Name()), err)
	}
	return out, nil
}

func uniqueIDs(ids []utils.SixID) []utils.SixID {
	seen := make(map[utils.SixID]struct{}, len(ids))
	out := make([]utils.SixID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
