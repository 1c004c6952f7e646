package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ayush-jadaun/livekitagent/internal/agent"
	"github.com/ayush-jadaun/livekitagent/internal/cache"
	"github.com/ayush-jadaun/livekitagent/internal/config"
	"github.com/ayush-jadaun/livekitagent/internal/livekit"
	"github.com/ayush-jadaun/livekitagent/internal/middleware"
	"github.com/ayush-jadaun/livekitagent/internal/payments"
	"github.com/ayush-jadaun/livekitagent/internal/repository"
	"github.com/ayush-jadaun/livekitagent/internal/service"
	"github.com/ayush-jadaun/livekitagent/internal/storage"
)

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	db         *pgxpool.Pool
	cache      *redis.Client
	users      *repository.UserRepository
	sessions   *service.SessionService
	billing    *service.BillingService
	reconciler *service.Reconciler
	provider   *payments.Client
	tokens     *livekit.TokenIssuer
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	redisClient *redis.Client,
	store *storage.ObjectStore,
	agents *agent.Manager,
	cfg *config.AppConfig,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	planRepo := repository.NewPlanRepository(db)

	tokens := livekit.NewTokenIssuer(cfg.LiveKit)
	provider := payments.NewClient(cfg.Razorpay)
	evaluator := service.NewEvaluator(userRepo, paymentRepo, cfg.Entitlement)
	sessions := service.NewSessionService(userRepo, sessionRepo, evaluator, tokens, agents, log)
	billing := service.NewBillingService(userRepo, planRepo, paymentRepo, provider, log)
	reconciler := service.NewReconciler(paymentRepo, cache.NewDeduper(redisClient), store, cfg.Entitlement, log)

	return HandlerSet{
		log:        log,
		cfg:        cfg,
		db:         db,
		cache:      redisClient,
		users:      userRepo,
		sessions:   sessions,
		billing:    billing,
		reconciler: reconciler,
		provider:   provider,
		tokens:     tokens,
	}
}

// Sessions exposes the session service for the scheduler.
func (h HandlerSet) Sessions() *service.SessionService {
	return h.sessions
}

func (h HandlerSet) Register(engine *gin.Engine) {
	// Legacy surface kept for old clients.
	engine.GET("/getToken", h.LegacyGetToken)
	engine.GET("/config", h.LegacyConfig)
	engine.GET("/health", h.LegacyHealth)
	engine.GET("/ping", h.Ping)
	engine.POST("/livekit-webhook", h.LiveKitWebhook)

	api := engine.Group("/api")
	api.GET("/healthz", h.Health)
	api.GET("/plans", h.ListPlans)
	api.POST("/payments/webhook", h.PaymentWebhook)

	authed := api.Group("")
	authed.Use(middleware.Auth(h.cfg))

	users := authed.Group("/users")
	users.POST("/setup", h.SetupUser)
	users.POST("/profile/sync", h.SyncProfile)
	users.GET("/room", h.GetRoom)

	sessions := authed.Group("/sessions")
	sessions.POST("/start", h.StartSession)
	sessions.POST("/:id/end", h.EndSession)
	sessions.GET("/active", h.ActiveSessions)

	pay := authed.Group("/payments")
	pay.POST("/subscribe", h.Subscribe)
	pay.GET("/subscription", h.GetSubscription)
	pay.POST("/subscription/cancel", h.CancelSubscription)
}

// respondError translates component failures into the error taxonomy.
// Clients get a stable snake_case code; detail stays in the log.
func (h HandlerSet) respondError(c *gin.Context, err error, msg string) {
	h.log.Error().Err(err).
		Str("request_id", c.Writer.Header().Get("X-Request-Id")).
		Str("path", c.Request.URL.Path).
		Msg(msg)

	var denied *service.EntitlementDeniedError
	switch {
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{
			"error":  "entitlement_denied",
			"reason": denied.Decision.Reason,
			"mode":   string(denied.Decision.Mode),
		})
	case errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
	case errors.Is(err, repository.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	case errors.Is(err, repository.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription_not_found"})
	case errors.Is(err, repository.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan_not_found"})
	case errors.Is(err, service.ErrNoCancellableSubscription):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no_cancellable_subscription"})
	case errors.Is(err, service.ErrUpstream):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment_provider_error"})
	case errors.Is(err, service.ErrStoreUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
	}
}
