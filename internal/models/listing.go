package models

import (
	"time"

	"github.com/Davzs/adezz/internal/utils"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingDraft    ListingStatus = "draft"
	ListingActive   ListingStatus = "active"
	ListingInactive ListingStatus = "inactive"
	ListingSold     ListingStatus = "sold"
	ListingDeleted  ListingStatus = "deleted"
)

// MaxListingPrice caps listing prices.
const MaxListingPrice = 1_000_000

// MaxListingImages caps the number of images on a listing.
const MaxListingImages = 10

// Categories is the closed set of listing categories.
var Categories = []string{
	"Electronics",
	"Computers",
	"Mobile Phones",
	"Furniture",
	"Home & Garden",
	"Clothing",
	"Fashion",
	"Books",
	"Sports",
	"Automotive",
	"Real Estate",
	"Jobs",
	"Services",
	"Other",
}

// Conditions is the closed set of item conditions.
var Conditions = []string{"New", "Like New", "Good", "Fair", "Poor"}

// Shipping describes whether an item can be shipped and at what cost.
type Shipping struct {
	Available bool    `bson:"available" json:"available"`
	Cost      float64 `bson:"cost" json:"cost" validate:"gte=0"`
}

// ViewEntry tracks repeat views by one user.
type ViewEntry struct {
	UserID     utils.SixID `bson:"user_id" json:"user_id"`
	LastViewed time.Time   `bson:"last_viewed" json:"last_viewed"`
	ViewCount  int         `bson:"view_count" json:"view_count"`
}

// Views holds the view counters of a listing.
type Views struct {
	Total  int         `bson:"total" json:"total"`
	Unique []ViewEntry `bson:"unique" json:"-"`
}

// PriceHistoryEntry records a price the listing had until Date.
type PriceHistoryEntry struct {
	Price float64   `bson:"price" json:"price"`
	Date  time.Time `bson:"date" json:"date"`
}

// ListingMetadata is bookkeeping derived from owner mutations.
type ListingMetadata struct {
	LastStatusUpdate *time.Time          `bson:"last_status_update,omitempty" json:"last_status_update,omitempty"`
	LastPriceUpdate  *time.Time          `bson:"last_price_update,omitempty" json:"last_price_update,omitempty"`
	OriginalPrice    float64             `bson:"original_price" json:"original_price"`
	PriceHistory     []PriceHistoryEntry `bson:"price_history" json:"price_history"`
}

// Listing represents a classified listing.
type Listing struct {
	ID          utils.SixID     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID      utils.SixID     `bson:"user_id" json:"user_id"`
	Title       string          `bson:"title" json:"title"`
	Description string          `bson:"description" json:"description"`
	Price       float64         `bson:"price" json:"price"`
	Category    string          `bson:"category" json:"category"`
	Condition   string          `bson:"condition" json:"condition"`
	Location    string          `bson:"location" json:"location"`
	Images      []string        `bson:"images" json:"images"`
	Tags        []string        `bson:"tags" json:"tags"`
	Status      ListingStatus   `bson:"status" json:"status"`
	IsDeleted   bool            `bson:"is_deleted" json:"-"`
	DeletedAt   *time.Time      `bson:"deleted_at,omitempty" json:"-"`
	DeletedBy   *utils.SixID    `bson:"deleted_by,omitempty" json:"-"`
	Views       Views           `bson:"views" json:"views"`
	SavedBy     []utils.SixID   `bson:"saved_by" json:"saved_by"`
	Metadata    ListingMetadata `bson:"metadata" json:"metadata"`
	Shipping    Shipping        `bson:"shipping" json:"shipping"`
	Negotiable  bool            `bson:"negotiable" json:"negotiable"`
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at" json:"updated_at"`
}

// IsSavedBy reports whether userID is in the listing's saved-by set.
func (l *Listing) IsSavedBy(userID utils.SixID) bool {
	for _, id := range l.SavedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Summary returns the short form embedded in conversation views.
func (l *Listing) Summary() *ListingSummary {
	s := &ListingSummary{ID: l.ID, Title: l.Title, Price: l.Price}
	if len(l.Images) > 0 {
		s.Image = l.Images[0]
	}
	return s
}
