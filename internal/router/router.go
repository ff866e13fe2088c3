package router

import (
	"net/http"

	"tipwall/config"
	"tipwall/internal/dedupe"
	"tipwall/internal/handler"
	"tipwall/internal/metrics"
	"tipwall/internal/middleware"
	"tipwall/internal/repository"
	"tipwall/internal/service"
	"tipwall/internal/ws"
	"tipwall/pkg/cloudinary"
	"tipwall/pkg/solana"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the process-level collaborators built in main. Dedupe, FCM and
// Cloud are optional.
type Deps struct {
	Wallet  solana.Wallet
	Dedupe  dedupe.Store
	FCM     *service.FCMService
	Cloud   cloudinary.Client
	Metrics *metrics.Metrics
	Logger  *logrus.Logger
}

// Router is the HTTP engine plus the pieces main runs in the background.
type Router struct {
	Engine  *gin.Engine
	Sweep   *service.SweepService
	Limiter *middleware.IPRateLimiter
	Hub     *ws.Hub
}

func Setup(cfg *config.Config, db *gorm.DB, deps Deps) *Router {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(deps.Metrics.Instrument())
	if len(cfg.Server.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
		corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
		r.Use(cors.New(corsCfg))
	}
	limiter := middleware.NewIPRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	tipRepo := repository.NewTipRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := ws.NewHub()

	// Services
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, deps.FCM, hub, log)
	authSvc := service.NewAuthService(cfg, userRepo)
	tipSvc := service.NewTipService(tipRepo, answerRepo, userRepo, deps.Wallet.Address(), cfg.Tips.AnswerTimeout, log)
	settlementSvc := service.NewSettlementService(db, deps.Wallet, service.SettlementOptions{
		FeeAddress:    cfg.Solana.FeeAddress,
		ResubmitAfter: cfg.Solana.ResubmitAfter,
		Notifier:      notifSvc,
		Metrics:       deps.Metrics,
		Logger:        log,
	})
	watcherSvc := service.NewWatcherService(tipRepo, deps.Wallet.Address(), deps.Dedupe, notifSvc, deps.Metrics, log)
	sweepSvc := service.NewSweepService(tipRepo, settlementSvc, service.SweepOptions{
		BatchSize:      cfg.Cron.BatchSize,
		ExpireUnfunded: cfg.Cron.ExpireUnfunded,
		Metrics:        deps.Metrics,
		Logger:         log,
	})
	creatorSvc := service.NewCreatorService(userRepo, tipRepo, answerRepo, deps.Cloud)

	// Handlers
	tipHandler := handler.NewTipHandler(tipSvc, settlementSvc, log)
	webhookHandler := handler.NewWebhookHandler(watcherSvc, cfg.Webhook.MaxEvents, log)
	cronHandler := handler.NewCronHandler(sweepSvc, log)
	creatorHandler := handler.NewCreatorHandler(creatorSvc, userRepo, log)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)
	xOAuthHandler := handler.NewXOAuthHandler(cfg, authSvc, log)

	authMw := middleware.AuthRequired(&cfg.JWT)
	rateMw := middleware.RateLimit(limiter)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth", rateMw)
		{
			authGroup.GET("/x", xOAuthHandler.Redirect)
			authGroup.GET("/x/callback", xOAuthHandler.Callback)
		}

		tips := api.Group("/tips", rateMw)
		{
			tips.POST("", middleware.OptionalAuth(&cfg.JWT), tipHandler.Create)
			tips.GET("/:id", tipHandler.Get)
			tips.POST("/:id/answer", authMw, tipHandler.Answer)
			tips.POST("/:id/decline", authMw, tipHandler.Decline)
		}

		api.GET("/creators/:handle", rateMw, creatorHandler.Card)
		api.GET("/leaderboard", rateMw, creatorHandler.Leaderboard)

		me := api.Group("/me", rateMw, authMw)
		{
			me.GET("", creatorHandler.Me)
			me.GET("/tips", creatorHandler.Inbox)
			me.POST("/wallet", creatorHandler.SetWallet)
			me.PUT("/profile", creatorHandler.SaveProfile)
			me.POST("/avatar", creatorHandler.UploadAvatar)
			me.POST("/fcm-token", creatorHandler.RegisterFCMToken)
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		}

		api.POST("/webhooks/helius", middleware.SharedSecret("x-helius-secret", cfg.Webhook.HeliusSecret), webhookHandler.Helius)
		api.POST("/cron/refund-expired", middleware.SharedSecret("x-cron-secret", cfg.Cron.Secret), cronHandler.RefundExpired)
	}

	r.GET("/ws/tips", ws.UpgradeTipFeed(&cfg.JWT, hub))

	return &Router{Engine: r, Sweep: sweepSvc, Limiter: limiter, Hub: hub}
}
