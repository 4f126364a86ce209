package handlers

import (
	"context"

	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/utils"
)

// ITaskEnqueuer is the background work the handlers hand off. *tasks.Enqueuer
// implements it.
type ITaskEnqueuer interface {
	EnqueueWelcome(ctx context.Context, user *models.User) error
	EnqueueNewsletterConfirmation(ctx context.Context, address string) error
	EnqueueListingImage(ctx context.Context, listingID, userID utils.SixID, objectKey string) error
	EnqueueAvatar(ctx context.Context, userID utils.SixID, objectKey string) error
	NotifyOfferUpdate(ctx context.Context, recipient *models.User, conversation *models.Conversation, listingTitle string) error
}
