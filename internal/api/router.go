package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/api/handlers"
	"github.com/Davzs/adezz/internal/api/middleware"
	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/email"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/storage"
)

// Dependencies are the services the public API is built from.
type Dependencies struct {
	Users          services.IUserService
	Listings       services.IListingService
	Conversations  services.IConversationService
	Messages       services.IMessageService
	Newsletter     services.INewsletterService
	EmailTemplates services.IEmailTemplateService
	Storage        storage.IS3Storage
	Enqueuer       handlers.ITaskEnqueuer
}

// SetupRouter configures and returns the main Gin engine. The returned stop
// function ends the rate limiters' cleanup loops.
func SetupRouter(cfg *config.Config, log *zap.Logger, deps Dependencies) (*gin.Engine, func()) {
	r := gin.New()

	rateLimiter := middleware.NewRateLimiterMiddleware("global", cfg.RateLimitBucketSize, cfg.RateLimitRefillRate, log)
	authLimiter := middleware.NewRateLimiterMiddleware("auth", cfg.AuthRateLimitBucketSize, cfg.AuthRateLimitRefillRate, log)
	stop := func() {
		rateLimiter.Stop()
		authLimiter.Stop()
	}

	// Order matters: the request id must exist before anything logs.
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.AccessLogMiddleware(log))
	r.Use(middleware.RecoveryMiddleware(log))
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewRestAuthHandler(cfg, log, deps.Users, deps.Enqueuer)
	userHandler := handlers.NewRestUserHandler(cfg, log, deps.Users, deps.Listings, deps.Enqueuer)
	listingHandler := handlers.NewRestListingHandler(log, deps.Listings, deps.Messages, deps.Enqueuer)
	conversationHandler := handlers.NewRestConversationHandler(log, deps.Conversations, deps.Messages, deps.Users, deps.Listings, deps.Enqueuer)
	uploadHandler := handlers.NewRestUploadHandler(cfg, deps.Storage)
	newsletterHandler := handlers.NewRestNewsletterHandler(log, deps.Newsletter, deps.Enqueuer)
	templateHandler := handlers.NewRestEmailTemplateHandler(deps.EmailTemplates)

	requireAuth := middleware.AuthMiddleware(cfg.JwtSecret)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authRoutes := v1.Group("/auth")
		authRoutes.Use(authLimiter.Limit())
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
		}

		newsletter := v1.Group("/newsletter")
		newsletter.Use(authLimiter.Limit())
		{
			newsletter.POST("/subscribe", newsletterHandler.Subscribe)
			newsletter.POST("/unsubscribe", newsletterHandler.Unsubscribe)
		}

		// Public reads
		v1.GET("/listings", listingHandler.SearchListings)
		v1.GET("/listings/:id", middleware.OptionalAuthMiddleware(cfg.JwtSecret), listingHandler.GetListingByID)
		v1.GET("/users/:id", userHandler.GetUserByID)
		v1.GET("/users/:id/listings", userHandler.GetUserListings)

		authRequired := v1.Group("")
		authRequired.Use(requireAuth)
		{
			authRequired.GET("/me", userHandler.GetMe)
			authRequired.PATCH("/me", userHandler.UpdateMe)
			authRequired.POST("/me/password", userHandler.ChangePassword)
			authRequired.POST("/me/avatar", userHandler.SetAvatar)
			authRequired.GET("/me/saved", userHandler.GetSaved)
			authRequired.GET("/me/activity", userHandler.GetActivity)
			authRequired.GET("/me/listings", userHandler.GetMyListings)

			authRequired.POST("/listings", listingHandler.CreateListing)
			authRequired.PATCH("/listings/:id", listingHandler.UpdateListing)
			authRequired.DELETE("/listings/:id", listingHandler.DeleteListing)
			authRequired.POST("/listings/:id/restore", listingHandler.RestoreListing)
			authRequired.POST("/listings/:id/save", listingHandler.SaveListing)
			authRequired.POST("/listings/:id/unsave", listingHandler.UnsaveListing)
			authRequired.POST("/listings/:id/toggle-save", listingHandler.ToggleSave)
			authRequired.POST("/listings/:id/contact", listingHandler.ContactSeller)
			authRequired.POST("/listings/:id/images", listingHandler.AddImage)

			authRequired.GET("/conversations", conversationHandler.ListConversations)
			authRequired.POST("/conversations", conversationHandler.CreateConversation)
			authRequired.GET("/conversations/:id", conversationHandler.GetConversation)
			authRequired.GET("/conversations/:id/messages", conversationHandler.ListMessages)
			authRequired.POST("/conversations/:id/messages", conversationHandler.PostMessage)
			authRequired.POST("/conversations/:id/offer", conversationHandler.RespondToOffer)
			authRequired.POST("/messages/:id/read", conversationHandler.MarkRead)

			authRequired.POST("/uploads", uploadHandler.CreateUpload)
		}

		adminRequired := v1.Group("/admin")
		adminRequired.Use(requireAuth, middleware.AdminMiddleware())
		{
			adminRequired.GET("/email-templates/:template_id", templateHandler.GetTemplate)
			adminRequired.PUT("/email-templates/:template_id", templateHandler.SaveTemplate)
			adminRequired.DELETE("/email-templates/:template_id", templateHandler.DeleteTemplate)
		}
	}

	return r, stop
}

const (
	testEmailPolls     = 10
	testEmailPollDelay = 200 * time.Millisecond
)

// SetupServiceRouter configures the internal service engine. It is bound to a
// separate port and never exposed publicly. mockEmails may be nil when emails
// are really delivered.
func SetupServiceRouter(log *zap.Logger, mockEmails *email.RedisSender, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestIDMiddleware(), middleware.AccessLogMiddleware(log), middleware.RecoveryMiddleware(log))

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Info("shutdown requested via service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Warn("shutdown already signaled")
			}
		case "getTestEmail":
			getTestEmail(c, log, mockEmails, req.Arguments)
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// getTestEmail expects arguments ["kind", "address"] and polls briefly, since
// the email is written by a worker after the triggering request returned.
func getTestEmail(c *gin.Context, log *zap.Logger, mockEmails *email.RedisSender, raw json.RawMessage) {
	if mockEmails == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Mock emails are disabled"})
		return
	}
	var args []string
	if err := json.Unmarshal(raw, &args); err != nil || len(args) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
		return
	}
	kind, address := args[0], args[1]

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	for i := 0; i < testEmailPolls; i++ {
		stored, err := mockEmails.Fetch(ctx, address, kind)
		if err != nil {
			log.Error("service API: failed to read test email", zap.String("key", email.MockEmailKey(address, kind)), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
			return
		}
		if stored != nil {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": stored})
			return
		}
		select {
		case <-ctx.Done():
			i = testEmailPolls
		case <-time.After(testEmailPollDelay):
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found for key %s", email.MockEmailKey(address, kind))})
}
