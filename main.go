package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/api"
	"github.com/Davzs/adezz/internal/cache"
	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/db"
	"github.com/Davzs/adezz/internal/email"
	"github.com/Davzs/adezz/internal/logger"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/storage"
	"github.com/Davzs/adezz/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	if !cfg.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, logger.NewMongoMonitor(zl, cfg.MongoSlowQuery))
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			zl.Error("error disconnecting from MongoDB", zap.Error(err))
		}
	}()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		cancelIndexes()
		zl.Fatal("failed to ensure indexes", zap.Error(err))
	}
	cancelIndexes()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, zl)
	if err != nil {
		zl.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient, zl); err != nil {
			zl.Error("error disconnecting from Redis", zap.Error(err))
		}
	}()

	s3StorageService, err := storage.NewS3Storage(context.Background(), cfg)
	if err != nil {
		zl.Fatal("failed to initialize S3 storage", zap.Error(err))
	}

	// Email: mock services keep emails in Redis for the service API to read back.
	var mockEmails *email.RedisSender
	var primaryEmailSender email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		zl.Info("MOCK_SERVICES enabled, using Redis email sender")
		mockEmails = email.NewRedisSender(redisClient, cfg.SmtpFromAddress)
		primaryEmailSender = mockEmails
	} else {
		primaryEmailSender = email.NewSMTPSender(cfg, zl)
	}
	emailSender := email.NewCompositeEmailSender(primaryEmailSender)
	if logEmailsPath := os.Getenv("LOG_EMAILS"); logEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(logEmailsPath)
		if err != nil {
			zl.Warn("failed to initialize file email sender, continuing without it", zap.String("path", logEmailsPath), zap.Error(err))
		} else {
			emailSender.AddSender(fileSender)
		}
	}

	asynqClient := tasks.NewClient(cfg)
	defer func() {
		if err := asynqClient.Close(); err != nil {
			zl.Error("error closing task client", zap.Error(err))
		}
	}()
	enqueuer := tasks.NewEnqueuer(asynqClient, cfg, zl)

	userService := services.NewUserService(mongoDb, cfg, zl)
	listingService := services.NewListingService(mongoDb, cfg, zl, userService, cache.NewListingCache(redisClient, cfg.ListingCacheTTL))
	conversationService := services.NewConversationService(mongoDb, cfg, zl)
	messageService := services.NewMessageService(mongoDb, cfg, zl, conversationService, userService, listingService, enqueuer)
	newsletterService := services.NewNewsletterService(mongoDb, cfg, zl)
	emailTemplateService := services.NewEmailTemplateService(mongoDb)

	taskProcessor := tasks.NewTaskProcessor(cfg, zl, emailSender, s3StorageService, listingService, userService, conversationService, emailTemplateService)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	// The service API always runs.
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(zl, mockEmails, shutdownChan),
	}
	serve(&wg, zl, "service API", serviceSrv)

	var mainApiSrv *http.Server
	var stopLimiters func()
	var taskServers []*asynq.Server
	var scheduler *tasks.Scheduler

	zl.Info("starting application", zap.String("mode", cfg.RunMode))

	apiMode := func() {
		router, stop := api.SetupRouter(cfg, zl, api.Dependencies{
			Users:          userService,
			Listings:       listingService,
			Conversations:  conversationService,
			Messages:       messageService,
			Newsletter:     newsletterService,
			EmailTemplates: emailTemplateService,
			Storage:        s3StorageService,
			Enqueuer:       enqueuer,
		})
		stopLimiters = stop
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		serve(&wg, zl, "main API", mainApiSrv)
	}

	startWorker := func(name string, isImageWorker, isBgWorker bool) {
		srv, mux := tasks.SetupServer(cfg, zl, taskProcessor, isImageWorker, isBgWorker)
		if srv == nil {
			return
		}
		if err := srv.Start(mux); err != nil {
			zl.Fatal("task server failed to start", zap.String("server", name), zap.Error(err))
		}
		zl.Info("task server started", zap.String("server", name))
		taskServers = append(taskServers, srv)
	}

	bgMode := func() {
		startWorker("background", false, true)
		scheduler, err = tasks.NewScheduler(enqueuer, cfg.OfferExpirySchedule, zl)
		if err != nil {
			zl.Fatal("failed to create scheduler", zap.Error(err))
		}
		scheduler.Start()
	}

	imgMode := func() {
		startWorker("image", true, false)
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "img":
		imgMode()
	case "all":
		apiMode()
		bgMode()
		imgMode()
	default:
		zl.Fatal("invalid run mode", zap.String("mode", cfg.RunMode))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zl.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		zl.Info("shutdown requested via service API")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if scheduler != nil {
		scheduler.Stop()
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			zl.Error("main API shutdown error", zap.Error(err))
		}
	}
	if stopLimiters != nil {
		stopLimiters()
	}
	for _, srv := range taskServers {
		srv.Shutdown()
	}
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		zl.Error("service API shutdown error", zap.Error(err))
	}

	wg.Wait()
	zl.Info("server gracefully stopped")
}

func serve(wg *sync.WaitGroup, zl *zap.Logger, name string, srv *http.Server) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		zl.Info("listening", zap.String("server", name), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("ListenAndServe error", zap.String("server", name), zap.Error(err))
		}
		zl.Info("server stopped", zap.String("server", name))
	}()
}
