package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/logger"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/utils"
)

// IAsynqClient is the part of *asynq.Client used for enqueueing.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer builds task payloads and puts them on the right queue.
type Enqueuer struct {
	client IAsynqClient
	cfg    *config.Config
	log    *zap.Logger
}

func NewEnqueuer(client IAsynqClient, cfg *config.Config, log *zap.Logger) *Enqueuer {
	return &Enqueuer{client: client, cfg: cfg, log: log}
}

func (e *Enqueuer) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	return e.enqueueTask(ctx, asynq.NewTask(taskType, raw), opts...)
}

func (e *Enqueuer) enqueueTask(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	taskType := task.Type()
	info, err := e.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			logger.For(ctx, e.log).Debug("duplicate task suppressed", zap.String("type", taskType))
			return nil
		}
		return fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	if info != nil {
		logger.For(ctx, e.log).Debug("task enqueued", zap.String("type", taskType), zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	}
	return nil
}

// EnqueueEmail queues one templated email.
func (e *Enqueuer) EnqueueEmail(ctx context.Context, payload EmailTaskPayload, opts ...asynq.Option) error {
	opts = append([]asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(5)}, opts...)
	return e.enqueue(ctx, TypeEmailDelivery, payload, opts...)
}

// EnqueueWelcome queues the welcome email for a new user.
func (e *Enqueuer) EnqueueWelcome(ctx context.Context, user *models.User) error {
	return e.EnqueueEmail(ctx, EmailTaskPayload{
		To:         user.Email,
		TemplateID: models.TemplateWelcome,
		Data:       map[string]any{"RecipientName": user.Name},
	}, asynq.Queue(QueueLow))
}

// EnqueueNewsletterConfirmation queues the subscription confirmation.
func (e *Enqueuer) EnqueueNewsletterConfirmation(ctx context.Context, address string) error {
	return e.EnqueueEmail(ctx, EmailTaskPayload{
		To:         address,
		TemplateID: models.TemplateNewsletterOK,
	}, asynq.Queue(QueueLow))
}

// NotifyNewMessage queues a new-message email. At most one is sent per
// recipient and conversation within MessageNotifyWindow.
func (e *Enqueuer) NotifyNewMessage(ctx context.Context, n services.MessageNotification) error {
	opts := []asynq.Option{asynq.Queue(QueueCritical)}
	if e.cfg.MessageNotifyWindow > 0 {
		opts = append(opts, asynq.Unique(e.cfg.MessageNotifyWindow))
	}
	return e.EnqueueEmail(ctx, EmailTaskPayload{
		To:         n.RecipientEmail,
		TemplateID: models.TemplateNewMessage,
		Data: map[string]any{
			"RecipientName":  n.RecipientName,
			"SenderName":     n.SenderName,
			"ListingTitle":   n.ListingTitle,
			"ConversationID": n.ConversationID.String(),
		},
	}, opts...)
}

// NotifyOfferUpdate queues the email telling the offer's author how it was answered.
func (e *Enqueuer) NotifyOfferUpdate(ctx context.Context, recipient *models.User, conversation *models.Conversation, listingTitle string) error {
	if recipient == nil || !recipient.EmailNotifications || conversation.Metadata.LastOffer == nil {
		return nil
	}
	return e.EnqueueEmail(ctx, EmailTaskPayload{
		To:         recipient.Email,
		TemplateID: models.TemplateOfferUpdate,
		Data: map[string]any{
			"RecipientName":  recipient.Name,
			"ListingTitle":   listingTitle,
			"OfferAmount":    conversation.Metadata.LastOffer.Amount,
			"OfferStatus":    string(conversation.Metadata.OfferStatus),
			"ConversationID": conversation.ID.String(),
		},
	})
}

// EnqueueListingImage queues processing of an uploaded listing image.
func (e *Enqueuer) EnqueueListingImage(ctx context.Context, listingID, userID utils.SixID, objectKey string) error {
	return e.enqueue(ctx, TypeImageProcess, ImageTaskPayload{
		ListingID: listingID.String(),
		UserID:    userID.String(),
		ObjectKey: objectKey,
	}, asynq.Queue(QueueImages), asynq.MaxRetry(3))
}

// EnqueueAvatar queues processing of an uploaded profile picture.
func (e *Enqueuer) EnqueueAvatar(ctx context.Context, userID utils.SixID, objectKey string) error {
	return e.enqueue(ctx, TypeAvatarProcess, AvatarTaskPayload{
		UserID:    userID.String(),
		ObjectKey: objectKey,
	}, asynq.Queue(QueueImages), asynq.MaxRetry(3))
}

// NewOfferExpiryTask is the periodic task that expires stale offers.
func NewOfferExpiryTask() *asynq.Task {
	raw, _ := json.Marshal(OfferExpiryPayload{})
	return asynq.NewTask(TypeOfferExpiry, raw)
}
