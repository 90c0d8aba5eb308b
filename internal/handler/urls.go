package handlers

import (
	"time"

	"PostOpTriage/internal/appointment"
	"PostOpTriage/internal/dispatch"
	"PostOpTriage/internal/intake"
	"PostOpTriage/internal/store"
	"PostOpTriage/pkg/cache"
	"PostOpTriage/pkg/metrics"
	"PostOpTriage/pkg/middleware"
	"PostOpTriage/pkg/sse"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Options struct {
	Repo         *store.Repository
	Intake       *intake.Service
	Dispatcher   *dispatch.Dispatcher
	Appointments *appointment.Service
	Hub          *sse.Hub
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	// RateLimiter, when set together with APISecretKey, exposes a signed
	// endpoint to change limits at runtime.
	RateLimiter *middleware.RateLimiter

	// APISecretKey enables signature checks on the form webhook.
	APISecretKey string
	// IdemStore backs Idempotency-Key handling; nil uses an in-process cache.
	IdemStore cache.Cache
	CacheType string
}

type Handlers struct {
	repo         *store.Repository
	intake       *intake.Service
	dispatcher   *dispatch.Dispatcher
	appointments *appointment.Service
	hub          *sse.Hub
	metrics      *metrics.Metrics
	logger       *zap.Logger
	limiter      *middleware.RateLimiter
	opts         Options
}

func NewHandlers(opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		repo:         opts.Repo,
		intake:       opts.Intake,
		dispatcher:   opts.Dispatcher,
		appointments: opts.Appointments,
		hub:          opts.Hub,
		metrics:      opts.Metrics,
		logger:       logger.Named("http"),
		limiter:      opts.RateLimiter,
		opts:         opts,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	idem := middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{
		TTL:       10 * time.Minute,
		Store:     h.opts.IdemStore,
		CacheType: h.opts.CacheType,
		Metrics:   h.metrics,
	})

	// Register System Module Routes
	h.registerSystemRoutes(engine)

	limit := middleware.BodyLimitMiddleware(middleware.MaxBodyBytes)

	// Form webhook
	engine.POST("/webhook/form-submit",
		limit,
		middleware.SignVerifyMiddleware(h.opts.APISecretKey, 0),
		idem,
		h.handleFormSubmit)

	api := engine.Group("/api")
	api.Use(limit, idem)
	h.registerIntakeRoutes(api)
	h.registerOutboundRoutes(api)
	h.registerAppointmentRoutes(api)
	h.registerAlertRoutes(api)

	if h.limiter != nil && h.opts.APISecretKey != "" {
		admin := engine.Group("/admin", limit, middleware.SignVerifyMiddleware(h.opts.APISecretKey, 0))
		admin.PUT("/rate-limit", h.UpdateRateLimiterConfig)
	}
}

func (h *Handlers) registerSystemRoutes(r gin.IRoutes) {
	r.GET("/healthz", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
}

func (h *Handlers) registerIntakeRoutes(r *gin.RouterGroup) {
	r.POST("/save-response", h.handleSaveResponse)
	r.POST("/notify-clinician", h.handleNotifyClinician)
	r.GET("/submissions", h.handleListSubmissions)
	r.GET("/submissions/:id", h.handleGetSubmission)
}

func (h *Handlers) registerOutboundRoutes(r *gin.RouterGroup) {
	r.POST("/send-email", h.handleSendEmail)
	r.POST("/send-sms", h.handleSendSMS)
}

func (h *Handlers) registerAppointmentRoutes(r *gin.RouterGroup) {
	r.POST("/create-appointment", h.handleCreateAppointment)
	r.GET("/appointments", h.handleListAppointments)
}

func (h *Handlers) registerAlertRoutes(r *gin.RouterGroup) {
	r.GET("/alerts/stream", h.handleAlertStream)
}
