package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/email"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/storage"
	"github.com/Davzs/adezz/internal/utils"
)

// Task types.
const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
	TypeAvatarProcess = "image:avatar"
	TypeOfferExpiry   = "conversation:offers:expire"
)

// Queue names.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
	QueueImages   = "images"
)

// RedisOpt returns the asynq connection options for the configured Redis.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NewClient creates the asynq client used to enqueue tasks.
func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// TaskProcessor holds the dependencies of the task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	log                  *zap.Logger
	emailSender          email.Sender
	storageService       storage.IS3Storage
	listingService       services.IListingService
	userService          services.IUserService
	conversationService  services.IConversationService
	emailTemplateService services.IEmailTemplateService
}

func NewTaskProcessor(
	cfg *config.Config,
	log *zap.Logger,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	listingService services.IListingService,
	userService services.IUserService,
	conversationService services.IConversationService,
	emailTemplateService services.IEmailTemplateService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		log:                  log,
		emailSender:          emailSender,
		storageService:       storageService,
		listingService:       listingService,
		userService:          userService,
		conversationService:  conversationService,
		emailTemplateService: emailTemplateService,
	}
}

// SetupServer configures an asynq server and the mux of handlers for the
// worker roles requested. It returns a nil server when neither role is set.
func SetupServer(cfg *config.Config, log *zap.Logger, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		return nil, nil
	}

	queues := map[string]int{}
	mux := asynq.NewServeMux()

	if isBgWorker {
		queues[QueueCritical] = 6
		queues[QueueDefault] = 3
		queues[QueueLow] = 1
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeOfferExpiry, processor.HandleOfferExpiryTask)
		log.Info("registered background task handlers")
	}
	if isImageWorker {
		queues[QueueImages] = 5
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		mux.HandleFunc(TypeAvatarProcess, processor.HandleAvatarProcessTask)
		log.Info("registered image processing task handlers")
	}

	srv := asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Queues: queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Error("task failed",
				zap.String("type", task.Type()),
				zap.Int("retried", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err),
			)
		}),
		Logger: zapAsynqLogger{log.Sugar().Named("asynq")},
	})
	return srv, mux
}

// zapAsynqLogger adapts zap to asynq.Logger.
type zapAsynqLogger struct {
	s *zap.SugaredLogger
}

func (l zapAsynqLogger) Debug(args ...interface{}) { l.s.Debug(args...) }
func (l zapAsynqLogger) Info(args ...interface{})  { l.s.Info(args...) }
func (l zapAsynqLogger) Warn(args ...interface{})  { l.s.Warn(args...) }
func (l zapAsynqLogger) Error(args ...interface{}) { l.s.Error(args...) }
func (l zapAsynqLogger) Fatal(args ...interface{}) { l.s.Fatal(args...) }

// EmailTaskPayload is rendered with the named template and sent to To.
type EmailTaskPayload struct {
	To         string         `json:"to"`
	TemplateID string         `json:"template_id"`
	Locale     string         `json:"locale,omitempty"`
	Data       map[string]any `json:"data"`
}

// HandleEmailDeliveryTask renders and sends one email.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.To) == "" {
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}

	data := map[string]any{
		"AppName":    p.cfg.AppName,
		"AppBaseURL": p.cfg.AppBaseURL,
	}
	for k, v := range payload.Data {
		data[k] = v
	}

	subject, body, err := p.emailTemplateService.Render(ctx, payload.TemplateID, payload.Locale, data)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fmt.Errorf("email template %s not found: %w", payload.TemplateID, asynq.SkipRetry)
		}
		return fmt.Errorf("render email template %s: %w", payload.TemplateID, err)
	}

	from := p.cfg.SmtpFromAddress
	if from == "" {
		from = "noreply@example.com"
	}
	to := []string{payload.To}
	msg := email.Message{
		To:      to,
		Subject: subject,
		Kind:    payload.TemplateID,
		Raw:     email.Build(from, to, subject, body, time.Now()),
	}
	if err := p.emailSender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email %s: %w", payload.TemplateID, err)
	}

	p.log.Info("email task processed", zap.String("to", payload.To), zap.String("template", payload.TemplateID))
	return nil
}

// OfferExpiryPayload is empty; the cutoff comes from configuration.
type OfferExpiryPayload struct{}

// HandleOfferExpiryTask moves stale pending offers to expired.
func (p *TaskProcessor) HandleOfferExpiryTask(ctx context.Context, t *asynq.Task) error {
	n, err := p.conversationService.ExpireStaleOffers(ctx, p.cfg.OfferTTL)
	if err != nil {
		return err
	}
	p.log.Debug("offer expiry run finished", zap.Int64("expired", n))
	return nil
}

func parseID(field, value string) (utils.SixID, error) {
	id, err := utils.ParseSixID(value)
	if err != nil || id.IsZero() {
		return utils.SixID{}, fmt.Errorf("invalid %s %q in payload: %w", field, value, asynq.SkipRetry)
	}
	return id, nil
}
