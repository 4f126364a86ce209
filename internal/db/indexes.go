package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection          = "users"
	ListingsCollection       = "listings"
	ConversationsCollection  = "conversations"
	MessagesCollection       = "messages"
	NewsletterCollection     = "newsletter"
	EmailTemplatesCollection = "email_templates"
)

// ActiveConversationIndex is the partial unique index allowing one active
// conversation per participant pair and listing.
const ActiveConversationIndex = "uniq_active_pair_listing"

// Indexes returns the index models of every collection.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		},
		ListingsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "is_deleted", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "price", Value: 1}}},
			{Keys: bson.D{{Key: "saved_by", Value: 1}}},
		},
		ConversationsCollection: {
			{
				Keys: bson.D{{Key: "participant_key", Value: 1}, {Key: "listing_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName(ActiveConversationIndex).
					SetPartialFilterExpression(bson.M{"is_active": true}),
			},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}}},
			{Keys: bson.D{{Key: "metadata.offer_status", Value: 1}, {Key: "metadata.last_offer.created_at", Value: 1}}},
		},
		MessagesCollection: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		NewsletterCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		},
		EmailTemplatesCollection: {
			{Keys: bson.D{{Key: "template_id", Value: 1}, {Key: "locale", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
}

// EnsureIndexes creates every index. Existing identical indexes are left alone.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	for collection, models := range Indexes() {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
