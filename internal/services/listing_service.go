package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
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

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateListingInput is the owner-supplied content of a new listing.
type CreateListingInput struct {
	Title       string          `json:"title" validate:"required,min=3,max=100"`
	Description string          `json:"description" validate:"required,min=10,max=2000"`
	Price       float64         `json:"price" validate:"gte=0,lte=1000000"`
	Category    string          `json:"category" validate:"required,category"`
	Condition   string          `json:"condition" validate:"required,condition"`
	Location    string          `json:"location" validate:"required,max=100"`
	Images      []string        `json:"images" validate:"max=10,dive,url"`
	Tags        []string        `json:"tags" validate:"max=5,dive,min=1,max=30"`
	Shipping    models.Shipping `json:"shipping"`
	Negotiable  bool            `json:"negotiable"`
	Draft       bool            `json:"draft"`
}

// ListingUpdate carries owner edits; nil fields are left alone.
type ListingUpdate struct {
	Title       *string               `json:"title" validate:"omitnil,min=3,max=100"`
	Description *string               `json:"description" validate:"omitnil,min=10,max=2000"`
	Price       *float64              `json:"price" validate:"omitnil,gte=0,lte=1000000"`
	Category    *string               `json:"category" validate:"omitnil,category"`
	Condition   *string               `json:"condition" validate:"omitnil,condition"`
	Location    *string               `json:"location" validate:"omitnil,min=1,max=100"`
	Images      *[]string             `json:"images" validate:"omitnil,max=10,dive,url"`
	Tags        *[]string             `json:"tags" validate:"omitnil,max=5,dive,min=1,max=30"`
	Status      *models.ListingStatus `json:"status" validate:"omitnil,listing_status"`
	Shipping    *models.Shipping      `json:"shipping"`
	Negotiable  *bool                 `json:"negotiable"`
}

// ListingQuery filters and orders a listing search.
type ListingQuery struct {
	Category  string   `form:"category" json:"category" validate:"omitempty,category"`
	Condition string   `form:"condition" json:"condition" validate:"omitempty,condition"`
	Q         string   `form:"q" json:"q" validate:"max=100"`
	MinPrice  *float64 `form:"min_price" json:"min_price" validate:"omitnil,gte=0"`
	MaxPrice  *float64 `form:"max_price" json:"max_price" validate:"omitnil,gte=0"`
	Sort      string   `form:"sort" json:"sort" validate:"omitempty,oneof=created_at price views"`
	Order     string   `form:"order" json:"order" validate:"omitempty,oneof=asc desc"`
	Page      int      `form:"page" json:"page" validate:"gte=0"`
	Limit     int      `form:"limit" json:"limit" validate:"gte=0"`
}

// ListingPage is one page of search results.
type ListingPage struct {
	Listings []models.Listing `json:"listings"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

// ListingCache is an optional read-through cache for single listings. Set
// must refuse a copy when Invalidate ran after the given Version was read.
type ListingCache interface {
	Get(ctx context.Context, id utils.SixID) (*models.Listing, error)
	Version(ctx context.Context, id utils.SixID) (int64, error)
	Set(ctx context.Context, listing *models.Listing, version int64) (bool, error)
	Invalidate(ctx context.Context, id utils.SixID) error
}

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, userID utils.SixID, input CreateListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	FindOwnedListing(ctx context.Context, listingID, actor utils.SixID) (*models.Listing, error)
	ViewListing(ctx context.Context, listingID utils.SixID, viewer *utils.SixID) (*models.Listing, error)
	SearchListings(ctx context.Context, query ListingQuery) (*ListingPage, error)
	FindListingsByOwner(ctx context.Context, ownerID utils.SixID, includeInactive bool) ([]models.Listing, error)
	UpdateListing(ctx context.Context, listingID, actor utils.SixID, update ListingUpdate) (*models.Listing, error)
	UpdatePriceWithHistory(ctx context.Context, listingID utils.SixID, newPrice float64, actor utils.SixID) (*models.Listing, error)
	SoftDelete(ctx context.Context, listingID, actor utils.SixID) error
	Restore(ctx context.Context, listingID, actor utils.SixID) (*models.Listing, error)
	ToggleSave(ctx context.Context, listingID, userID utils.SixID) (bool, error)
	Save(ctx context.Context, listingID, userID utils.SixID) error
	Unsave(ctx context.Context, listingID, userID utils.SixID) error
	AddImageToListing(ctx context.Context, listingID utils.SixID, imageURL string) error
	FindSavedListings(ctx context.Context, userID utils.SixID) ([]models.Listing, error)
}

// listingService implements IListingService.
type listingService struct {
	db          *mongo.Database
	cfg         *config.Config
	log         *zap.Logger
	userService IUserService
	cache       ListingCache
}

// NewListingService creates a new ListingService. cache may be nil.
func NewListingService(db *mongo.Database, cfg *config.Config, log *zap.Logger, userService IUserService, cache ListingCache) IListingService {
	return &listingService{db: db, cfg: cfg, log: log, userService: userService, cache: cache}
}

var errPriceMoved = errors.New("price changed concurrently")

func (s *listingService) listings() *mongo.Collection {
	return s.db.Collection(db.ListingsCollection)
}

// CreateListing inserts a listing owned by userID, active unless Draft is set.
func (s *listingService) CreateListing(ctx context.Context, userID utils.SixID, input CreateListingInput) (*models.Listing, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Location = strings.TrimSpace(input.Location)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	status := models.ListingActive
	if input.Draft {
		status = models.ListingDraft
	}
	images := input.Images
	if images == nil {
		images = []string{}
	}
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	var listing *models.Listing
	err := db.Try(func() error {
		listing = &models.Listing{
			ID:          utils.NewSixID(),
			UserID:      userID,
			Title:       input.Title,
			Description: input.Description,
			Price:       input.Price,
			Category:    input.Category,
			Condition:   input.Condition,
			Location:    input.Location,
			Images:      images,
			Tags:        tags,
			Status:      status,
			Views:       models.Views{Unique: []models.ViewEntry{}},
			SavedBy:     []utils.SixID{},
			Metadata: models.ListingMetadata{
				LastStatusUpdate: &now,
				OriginalPrice:    input.Price,
				PriceHistory:     []models.PriceHistoryEntry{},
			},
			Shipping:   input.Shipping,
			Negotiable: input.Negotiable,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		_, insertErr := s.listings().InsertOne(ctx, listing)
		return insertErr
	})
	if err != nil {
		return nil, storeError(fmt.Sprintf("insert listing for user %s", userID), err)
	}

	s.recordActivity(ctx, userID, models.ActivityEntry{
		Action:     models.ActivityCreate,
		TargetType: models.TargetListing,
		TargetID:   listing.ID,
	})
	return listing, nil
}

// FindListingByID returns a listing that is not deleted. It does not check ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	cacheable := false
	var version int64
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, listingID)
		if err != nil {
			logger.For(ctx, s.log).Warn("listing cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
		// The version must be read before the database so a concurrent
		// invalidation stops a stale copy from being stored.
		if version, err = s.cache.Version(ctx, listingID); err != nil {
			logger.For(ctx, s.log).Warn("listing cache version read failed", zap.Error(err))
		} else {
			cacheable = true
		}
	}

	listing, err := s.findListing(ctx, listingID, false)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if _, err := s.cache.Set(ctx, listing, version); err != nil {
			logger.For(ctx, s.log).Warn("listing cache write failed", zap.Error(err))
		}
	}
	return listing, nil
}

func (s *listingService) findListing(ctx context.Context, listingID utils.SixID, includeDeleted bool) (*models.Listing, error) {
	filter := bson.M{"_id": listingID}
	if !includeDeleted {
		filter["is_deleted"] = false
	}
	var listing models.Listing
	if err := s.listings().FindOne(ctx, filter).Decode(&listing); err != nil {
		return nil, storeError(fmt.Sprintf("find listing %s", listingID), err)
	}
	return &listing, nil
}

// FindOwnedListing returns the listing if actor owns it: ErrNotFound if it is
// missing or deleted, ErrNotAuthorized if someone else owns it.
func (s *listingService) FindOwnedListing(ctx context.Context, listingID, actor utils.SixID) (*models.Listing, error) {
	return s.ownedListing(ctx, listingID, actor, false)
}

func (s *listingService) ownedListing(ctx context.Context, listingID, actor utils.SixID, includeDeleted bool) (*models.Listing, error) {
	listing, err := s.findListing(ctx, listingID, includeDeleted)
	if err != nil {
		return nil, err
	}
	if listing.UserID != actor {
		return nil, fmt.Errorf("listing %s: %w", listingID, ErrNotAuthorized)
	}
	return listing, nil
}

// ViewListing counts a view. A signed-in viewer other than the owner also
// gets a per-user entry in views.unique.
func (s *listingService) ViewListing(ctx context.Context, listingID utils.SixID, viewer *utils.SixID) (*models.Listing, error) {
	now := time.Now().UTC()
	res, err := s.listings().UpdateOne(ctx,
		bson.M{"_id": listingID, "is_deleted": false},
		bson.M{"$inc": bson.M{"views.total": 1}},
	)
	if err != nil {
		return nil, storeError("count listing view", err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
	}

	listing, err := s.findListing(ctx, listingID, false)
	if err != nil {
		return nil, err
	}
	if viewer == nil || viewer.IsZero() || *viewer == listing.UserID {
		return listing, nil
	}

	res, err = s.listings().UpdateOne(ctx,
		bson.M{"_id": listingID, "views.unique.user_id": *viewer},
		bson.M{
			"$inc": bson.M{"views.unique.$.view_count": 1},
			"$set": bson.M{"views.unique.$.last_viewed": now},
		},
	)
	if err != nil {
		return nil, storeError("update unique view", err)
	}
	if res.MatchedCount == 0 {
		_, err = s.listings().UpdateOne(ctx,
			bson.M{"_id": listingID, "views.unique.user_id": bson.M{"$ne": *viewer}},
			bson.M{"$push": bson.M{"views.unique": models.ViewEntry{UserID: *viewer, LastViewed: now, ViewCount: 1}}},
		)
		if err != nil {
			return nil, storeError("add unique view", err)
		}
	}

	s.recordActivity(ctx, *viewer, models.ActivityEntry{
		Action:     models.ActivityView,
		TargetType: models.TargetListing,
		TargetID:   listingID,
	})
	return listing, nil
}

// SearchListings returns active, non-deleted listings matching query.
func (s *listingService) SearchListings(ctx context.Context, query ListingQuery) (*ListingPage, error) {
	if err := validation.Struct(query); err != nil {
		return nil, err
	}
	if query.MinPrice != nil && query.MaxPrice != nil && *query.MinPrice > *query.MaxPrice {
		return nil, validation.Field("min_price", "ltefield=max_price")
	}

	filter := bson.M{"status": models.ListingActive, "is_deleted": false}
	if query.Category != "" {
		filter["category"] = query.Category
	}
	if query.Condition != "" {
		filter["condition"] = query.Condition
	}
	if q := strings.TrimSpace(query.Q); q != "" {
		pattern := containsPattern(q)
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}
	if query.MinPrice != nil || query.MaxPrice != nil {
		price := bson.M{}
		if query.MinPrice != nil {
			price["$gte"] = *query.MinPrice
		}
		if query.MaxPrice != nil {
			price["$lte"] = *query.MaxPrice
		}
		filter["price"] = price
	}

	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	sortField := "created_at"
	switch query.Sort {
	case "price":
		sortField = "price"
	case "views":
		sortField = "views.total"
	}
	direction := -1
	if query.Order == "asc" {
		direction = 1
	}

	total, err := s.listings().CountDocuments(ctx, filter)
	if err != nil {
		return nil, storeError("count listings", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: direction}, {Key: "_id", Value: direction}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"views.unique": 0})
	listings, err := s.findMany(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	return &ListingPage{Listings: listings, Total: total, Page: page, Limit: limit}, nil
}

// containsPattern matches q literally, ignoring case.
func containsPattern(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}

func (s *listingService) findMany(ctx context.Context, filter any, opts *options.FindOptions) ([]models.Listing, error) {
	cursor, err := s.listings().Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError("find listings", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, storeError("decode listings", err)
	}
	return listings, nil
}

// FindListingsByOwner returns the owner's non-deleted listings, newest first.
// Without includeInactive only active listings are returned.
func (s *listingService) FindListingsByOwner(ctx context.Context, ownerID utils.SixID, includeInactive bool) ([]models.Listing, error) {
	filter := bson.M{"user_id": ownerID, "is_deleted": false}
	if !includeInactive {
		filter["status"] = models.ListingActive
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.findMany(ctx, filter, opts)
}

// UpdateListing applies owner edits. A price change goes through the price
// history and a status change stamps metadata.last_status_update.
func (s *listingService) UpdateListing(ctx context.Context, listingID, actor utils.SixID, update ListingUpdate) (*models.Listing, error) {
	if err := validation.Struct(update); err != nil {
		return nil, err
	}
	current, err := s.ownedListing(ctx, listingID, actor, false)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	set := bson.M{}
	if update.Title != nil {
		set["title"] = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		set["description"] = strings.TrimSpace(*update.Description)
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}
	if update.Condition != nil {
		set["condition"] = *update.Condition
	}
	if update.Location != nil {
		set["location"] = strings.TrimSpace(*update.Location)
	}
	if update.Images != nil {
		set["images"] = nonNil(*update.Images)
	}
	if update.Tags != nil {
		set["tags"] = nonNil(*update.Tags)
	}
	if update.Shipping != nil {
		set["shipping"] = *update.Shipping
	}
	if update.Negotiable != nil {
		set["negotiable"] = *update.Negotiable
	}
	if update.Status != nil && *update.Status != current.Status {
		set["status"] = *update.Status
		set["metadata.last_status_update"] = now
	}

	if len(set) > 0 {
		set["updated_at"] = now
		res, err := s.listings().UpdateOne(ctx,
			bson.M{"_id": listingID, "user_id": actor, "is_deleted": false},
			bson.M{"$set": set},
		)
		if err != nil {
			return nil, storeError(fmt.Sprintf("update listing %s", listingID), err)
		}
		if res.MatchedCount == 0 {
			return nil, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
	}

	if update.Price != nil {
		if _, err := s.UpdatePriceWithHistory(ctx, listingID, *update.Price, actor); err != nil {
			return nil, err
		}
	}

	s.invalidate(ctx, listingID)
	s.recordActivity(ctx, actor, models.ActivityEntry{
		Action:     models.ActivityEdit,
		TargetType: models.TargetListing,
		TargetID:   listingID,
	})
	return s.findListing(ctx, listingID, false)
}

// UpdatePriceWithHistory sets a new price, pushing the old one onto
// metadata.price_history. An unchanged price leaves the history alone.
func (s *listingService) UpdatePriceWithHistory(ctx context.Context, listingID utils.SixID, newPrice float64, actor utils.SixID) (*models.Listing, error) {
	if newPrice < 0 {
		return nil, validation.Field("price", "gte=0")
	}
	if newPrice > models.MaxListingPrice {
		return nil, validation.Field("price", fmt.Sprintf("lte=%d", models.MaxListingPrice))
	}

	var updated *models.Listing
	err := db.WithRetries(func() error {
		current, err := s.ownedListing(ctx, listingID, actor, false)
		if err != nil {
			return err
		}
		if current.Price == newPrice {
			updated = current
			return nil
		}

		now := time.Now().UTC()
		filter := bson.M{"_id": listingID, "user_id": actor, "is_deleted": false, "price": current.Price}
		change := bson.M{
			"$push": bson.M{"metadata.price_history": models.PriceHistoryEntry{Price: current.Price, Date: now}},
			"$set": bson.M{
				"price":                      newPrice,
				"metadata.last_price_update": now,
				"updated_at":                 now,
			},
		}
		var listing models.Listing
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = s.listings().FindOneAndUpdate(ctx, filter, change, opts).Decode(&listing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return errPriceMoved
		}
		if err != nil {
			return storeError(fmt.Sprintf("update price of listing %s", listingID), err)
		}
		updated = &listing
		return nil
	}, db.DefaultMaxRetries, func(err error) bool {
		return errors.Is(err, errPriceMoved)
	})
	if errors.Is(err, errPriceMoved) {
		return nil, fmt.Errorf("listing %s: %w: %v", listingID, ErrInvalidState, err)
	}
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, listingID)
	return updated, nil
}

// SoftDelete marks a listing deleted. Only the owner may do so.
func (s *listingService) SoftDelete(ctx context.Context, listingID, actor utils.SixID) error {
	if _, err := s.ownedListing(ctx, listingID, actor, false); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.listings().UpdateOne(ctx,
		bson.M{"_id": listingID, "user_id": actor, "is_deleted": false},
		bson.M{"$set": bson.M{
			"is_deleted":                  true,
			"status":                      models.ListingDeleted,
			"deleted_at":                  now,
			"deleted_by":                  actor,
			"metadata.last_status_update": now,
			"updated_at":                  now,
		}},
	)
	if err != nil {
		return storeError(fmt.Sprintf("delete listing %s", listingID), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
	}

	s.invalidate(ctx, listingID)
	s.recordActivity(ctx, actor, models.ActivityEntry{
		Action:     models.ActivityDelete,
		TargetType: models.TargetListing,
		TargetID:   listingID,
	})
	return nil
}

// Restore brings a soft-deleted listing back as inactive.
func (s *listingService) Restore(ctx context.Context, listingID, actor utils.SixID) (*models.Listing, error) {
	current, err := s.ownedListing(ctx, listingID, actor, true)
	if err != nil {
		return nil, err
	}
	if !current.IsDeleted {
		return nil, fmt.Errorf("listing %s is not deleted: %w", listingID, ErrInvalidState)
	}

	now := time.Now().UTC()
	var listing models.Listing
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = s.listings().FindOneAndUpdate(ctx,
		bson.M{"_id": listingID, "user_id": actor, "is_deleted": true},
		bson.M{
			"$set": bson.M{
				"is_deleted":                  false,
				"status":                      models.ListingInactive,
				"metadata.last_status_update": now,
				"updated_at":                  now,
			},
			"$unset": bson.M{"deleted_at": "", "deleted_by": ""},
		},
		opts,
	).Decode(&listing)
	if err != nil {
		return nil, storeError(fmt.Sprintf("restore listing %s", listingID), err)
	}

	s.invalidate(ctx, listingID)
	return &listing, nil
}

// ToggleSave flips whether userID has saved the listing and reports the new state.
func (s *listingService) ToggleSave(ctx context.Context, listingID, userID utils.SixID) (bool, error) {
	listing, err := s.findListing(ctx, listingID, false)
	if err != nil {
		return false, err
	}
	if listing.IsSavedBy(userID) {
		return false, s.Unsave(ctx, listingID, userID)
	}
	return true, s.Save(ctx, listingID, userID)
}

// Save adds userID to the listing's saved-by set. Saving twice is a no-op.
func (s *listingService) Save(ctx context.Context, listingID, userID utils.SixID) error {
	return s.setSaved(ctx, listingID, userID, true)
}

// Unsave removes userID from the listing's saved-by set. Unsaving twice is a no-op.
func (s *listingService) Unsave(ctx context.Context, listingID, userID utils.SixID) error {
	return s.setSaved(ctx, listingID, userID, false)
}

func (s *listingService) setSaved(ctx context.Context, listingID, userID utils.SixID, saved bool) error {
	op := "$pull"
	if saved {
		op = "$addToSet"
	}
	res, err := s.listings().UpdateOne(ctx,
		bson.M{"_id": listingID, "is_deleted": false},
		bson.M{op: bson.M{"saved_by": userID}},
	)
	if err != nil {
		return storeError(fmt.Sprintf("update saved_by of listing %s", listingID), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
	}
	// The user's list mirrors saved_by, so it follows the listing update.
	if err := s.userService.SetSavedListing(ctx, userID, listingID, saved); err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return nil
	}

	s.invalidate(ctx, listingID)
	entry := models.ActivityEntry{
		Action:     models.ActivitySave,
		TargetType: models.TargetListing,
		TargetID:   listingID,
	}
	if !saved {
		entry.Action = models.ActivityUnsave
		if s.cfg.UnsaveActivityAction != string(models.ActivityUnsave) {
			entry.Action = models.ActivityDelete
			entry.Metadata = map[string]string{"action": "unsave"}
		}
	}
	s.recordActivity(ctx, userID, entry)
	return nil
}

// AddImageToListing appends a processed image URL, up to MaxListingImages.
func (s *listingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageURL string) error {
	lastSlot := fmt.Sprintf("images.%d", models.MaxListingImages-1)
	res, err := s.listings().UpdateOne(ctx,
		bson.M{"_id": listingID, "is_deleted": false, lastSlot: bson.M{"$exists": false}},
		bson.M{
			"$push": bson.M{"images": imageURL},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return storeError(fmt.Sprintf("add image to listing %s", listingID), err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.findListing(ctx, listingID, false); err != nil {
			return err
		}
		return fmt.Errorf("listing %s already has %d images: %w", listingID, models.MaxListingImages, ErrInvalidState)
	}

	s.invalidate(ctx, listingID)
	return nil
}

// FindSavedListings returns the user's saved listings that still exist, in save order.
func (s *listingService) FindSavedListings(ctx context.Context, userID utils.SixID) ([]models.Listing, error) {
	user, err := s.userService.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.SavedListings) == 0 {
		return []models.Listing{}, nil
	}

	found, err := s.findMany(ctx, bson.M{"_id": bson.M{"$in": user.SavedListings}, "is_deleted": false}, options.Find())
	if err != nil {
		return nil, err
	}
	byID := make(map[utils.SixID]models.Listing, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	ordered := make([]models.Listing, 0, len(found))
	for _, id := range user.SavedListings {
		if l, ok := byID[id]; ok {
			ordered = append(ordered, l)
		}
	}
	return ordered, nil
}

func (s *listingService) invalidate(ctx context.Context, listingID utils.SixID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, listingID); err != nil {
		logger.For(ctx, s.log).Warn("listing cache invalidate failed", zap.String("listing_id", listingID.String()), zap.Error(err))
	}
}

// recordActivity is best effort; the listing mutation has already happened.
func (s *listingService) recordActivity(ctx context.Context, userID utils.SixID, entry models.ActivityEntry) {
	if err := s.userService.RecordActivity(ctx, userID, entry); err != nil {
		logger.For(ctx, s.log).Warn("failed to record activity",
			zap.String("user_id", userID.String()),
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
