// Package main runs the VolunteerHub HTTP API with WebSocket push and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/volunteerhub/backend/config"
	"github.com/volunteerhub/backend/internal/applications"
	"github.com/volunteerhub/backend/internal/auth"
	"github.com/volunteerhub/backend/internal/emaillogs"
	"github.com/volunteerhub/backend/internal/messages"
	"github.com/volunteerhub/backend/internal/metrics"
	"github.com/volunteerhub/backend/internal/middleware"
	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/internal/notify"
	"github.com/volunteerhub/backend/internal/opportunities"
	"github.com/volunteerhub/backend/internal/realtime"
	"github.com/volunteerhub/backend/internal/uploads"
	"github.com/volunteerhub/backend/pkg/database"
	"github.com/volunteerhub/backend/pkg/queue"
	"github.com/volunteerhub/backend/pkg/redis"
	"github.com/volunteerhub/backend/pkg/response"
	"github.com/volunteerhub/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: int32(cfg.Database.MaxConns)}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Server.AutoMigrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	// Redis backs rate limits, cross-instance push and the email queue. Without
	// it the API still serves requests: limits are per process, push is local
	// and no emails are queued.
	var (
		limiter middleware.Limiter = middleware.NewMemoryLimiter()
		hub                        = realtime.NewHub(logger, nil, nil)
		emailQ  notify.EmailQueue
	)
	redisCli, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, running single-instance", zap.Error(err))
	} else {
		defer redisCli.Close()
		limiter = middleware.NewRedisLimiter(redisCli.Client)
		pubsub := realtime.NewRedisPubSub(redisCli.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
		emailQ = queue.NewQueue(redisCli.Client, logger)
	}

	var uploader uploads.Uploader
	if cfg.AWS.UploadsEnabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			MediaBucket:     cfg.AWS.MediaBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			uploader = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	authRepo := auth.NewRepository(pool)
	oppRepo := opportunities.NewRepository(pool)
	appRepo := applications.NewRepository(pool)
	msgRepo := messages.NewRepository(pool)
	emailLogRepo := emaillogs.NewRepository(pool)

	dispatcher := notify.NewDispatcher(hub, authRepo, emailQ, logger)
	manager := applications.NewManager(appRepo, oppRepo, authRepo, msgRepo, dispatcher, logger)

	authHandler := auth.NewHandler(authRepo, jwtService, cfg.Auth.AllowAdminSignup, logger)
	oppHandler := opportunities.NewHandler(oppRepo, logger)
	appHandler := applications.NewHandler(manager, logger)
	msgHandler := messages.NewHandler(msgRepo, manager, hub, logger)
	emailLogsHandler := emaillogs.NewHandler(emailLogRepo, logger)
	uploadHandler := uploads.NewHandler(uploader, logger)
	if uploader != nil {
		authHandler.SetMediaCleaner(uploadHandler)
		oppHandler.SetMediaCleaner(uploadHandler)
	}

	applyLimit := middleware.RateLimit(limiter, "apply", cfg.RateLimit.ApplyPerMinute, time.Minute)
	messageLimit := middleware.RateLimit(limiter, "messages", cfg.RateLimit.MessagesPerMinute, time.Minute)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// WebSocket (token in query; browsers cannot set Authorization on upgrade)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtService))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Opportunities are browsable without an account.
	public := router.Group("", middleware.OptionalJWT(jwtService))
	{
		public.GET("/opportunities", oppHandler.List)
		public.GET("/opportunities/:id", oppHandler.GetByID)
	}

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users/me", authHandler.Me)
		api.PUT("/users/profile", authHandler.UpdateProfile)
		api.GET("/users", middleware.RequireRole(models.RoleAdmin), authHandler.List)

		orgOnly := middleware.RequireRole(models.RoleOrg)
		api.POST("/opportunities", orgOnly, oppHandler.Create)
		api.PUT("/opportunities/:id", orgOnly, oppHandler.Update)
		api.DELETE("/opportunities/:id", orgOnly, oppHandler.Delete)
		api.GET("/opportunities/:id/applications", appHandler.ListForOpportunity)

		api.POST("/applications/:opportunityId", applyLimit, appHandler.Apply)
		api.GET("/applications", appHandler.List)
		api.GET("/applications/notifications", appHandler.Notifications)
		api.PUT("/applications/notifications/read", appHandler.MarkAllRead)
		api.GET("/applications/:id", appHandler.Get)
		api.PUT("/applications/:id", appHandler.SetStatus)
		api.PUT("/applications/:id/cancel", appHandler.Cancel)
		api.PUT("/applications/:id/notifications/read", appHandler.MarkRead)

		api.POST("/messages/send", messageLimit, msgHandler.Send)
		api.GET("/messages/conversations", msgHandler.Conversations)
		api.GET("/messages/:userId", msgHandler.Thread)
		api.PUT("/messages/read/:userId", msgHandler.MarkRead)

		api.POST("/uploads/avatar", uploadHandler.Avatar)
		api.POST("/uploads/opportunity", orgOnly, uploadHandler.OpportunityImage)

		admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/stats", appHandler.Stats)
			admin.GET("/notifications", appHandler.Notifications)
			admin.PUT("/notifications/read", appHandler.MarkAllRead)
			admin.GET("/leaderboard", appHandler.Leaderboard)
			admin.GET("/emails", emailLogsHandler.ListRecent)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
