package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PostOpTriage/internal/appointment"
	"PostOpTriage/internal/dispatch"
	handlers "PostOpTriage/internal/handler"
	"PostOpTriage/internal/intake"
	"PostOpTriage/internal/store"
	"PostOpTriage/pkg/backup"
	"PostOpTriage/pkg/cache"
	"PostOpTriage/pkg/config"
	"PostOpTriage/pkg/i18n"
	"PostOpTriage/pkg/logger"
	"PostOpTriage/pkg/metrics"
	"PostOpTriage/pkg/middleware"
	"PostOpTriage/pkg/notification"
	"PostOpTriage/pkg/scheduler"
	"PostOpTriage/pkg/sse"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.Log, cfg.Mode); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	repo, err := store.Open(cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Lg.Fatal("open database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}

	m := metrics.NewMetrics(nil)

	messages, err := i18n.NewI18nSupport(cfg.DefaultLanguage, logger.Named("i18n"))
	if err != nil {
		logger.Lg.Fatal("load message texts", zap.Error(err))
	}

	// channels
	var channels dispatch.Channels
	if cfg.ClinicianEndpoint != "" {
		hook, err := notification.NewWebhook(notification.WebhookConfig{
			URL:     cfg.ClinicianEndpoint,
			Timeout: cfg.ClinicianTimeout,
		}, nil)
		if err != nil {
			logger.Lg.Fatal("clinician endpoint", zap.Error(err))
		}
		channels.Clinician = hook
		logger.Info("clinician channel enabled", zap.String("endpoint", hook.Endpoint()))
	}
	sms := notification.NewSMSGateway(notification.SMSGatewayConfig{
		URL:     cfg.SMSGatewayURL,
		APIKey:  cfg.SMSAPIKey,
		Timeout: cfg.SMSTimeout,
	}, nil)
	if sms.Configured() {
		channels.SMS = sms
	}
	mailer := notification.NewMailNotification(cfg.Mail)
	channels.Email = mailer
	if !mailer.Configured() {
		logger.Warn("SMTP_HOST not set, email sends will fail")
	}

	dispatcher, err := dispatch.NewDispatcher(dispatch.Config{
		ClinicianEndpoint: cfg.ClinicianEndpoint,
		SMSGatewayURL:     cfg.SMSGatewayURL,
		SMSAPIKey:         cfg.SMSAPIKey,
		ClinicianPhone:    cfg.ClinicianPhone,
		ClinicianEmail:    cfg.ClinicianEmail,
		ClinicianTimeout:  cfg.ClinicianTimeout,
		SMSTimeout:        cfg.SMSTimeout,
		EmailTimeout:      cfg.Mail.Timeout,
	}, channels, dispatch.Options{
		Logger:   logger.Lg,
		Metrics:  m,
		Messages: messages,
	})
	if err != nil {
		logger.Lg.Fatal("create dispatcher", zap.Error(err))
	}

	hub := sse.NewHub(30*time.Second, 256)
	hub.OnConnect = func() { m.AddSSESubscribers(1) }
	hub.OnDisconnect = func() { m.AddSSESubscribers(-1) }

	intakeOpts := intake.Options{
		Store:      repo,
		Dispatcher: dispatcher,
		Feed:       hub,
		Logger:     logger.Lg,
		Metrics:    m,
	}
	if cfg.SaveResponseEndpoint != "" {
		crm, err := notification.NewWebhook(notification.WebhookConfig{URL: cfg.SaveResponseEndpoint}, nil)
		if err != nil {
			logger.Lg.Fatal("save response endpoint", zap.Error(err))
		}
		intakeOpts.CRM = crm
	}
	svc := intake.NewService(intakeOpts)
	appts := appointment.NewService(repo, dispatcher, svc, logger.Lg)

	idemStore, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Lg.Fatal("create cache", zap.String("type", cfg.Cache.Type), zap.Error(err))
	}

	// scheduled jobs
	cr := scheduler.NewCron(time.UTC, logger.Lg, m)
	if cfg.RetentionDays > 0 {
		job := store.NewRetentionJob(repo, int(cfg.RetentionDays), logger.Lg)
		if _, err := cr.Add("retention", cfg.RetentionSchedule, job); err != nil {
			logger.Lg.Fatal("schedule retention", zap.Error(err))
		}
	}
	if cfg.BackupEnabled {
		job := backup.New(repo.DB(), cfg.DBDriver, cfg.BackupPath, 7, logger.Lg)
		if _, err := cr.Add("backup", cfg.BackupSchedule, job); err != nil {
			logger.Lg.Fatal("schedule backup", zap.Error(err))
		}
	}
	cr.Start()

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       cfg.RateLimit,
		SkipPaths:  []string{"/healthz", "/metrics"},
		AddHeaders: true,
	}, memory.NewStore()).WithObserver(m)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.AccessLogMiddleware(logger.Named("http")),
		metrics.MonitorMiddleware(m),
		limiter.Middleware(),
		middleware.LanguageMiddleware(messages),
	)

	handlers.NewHandlers(handlers.Options{
		Repo:         repo,
		Intake:       svc,
		Dispatcher:   dispatcher,
		Appointments: appts,
		Hub:          hub,
		Metrics:      m,
		Logger:       logger.Lg,
		RateLimiter:  limiter,
		APISecretKey: cfg.APISecretKey,
		IdemStore:    idemStore,
		CacheType:    cfg.Cache.Type,
	}).Register(engine)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr), zap.String("mode", cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Lg.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// close streams first, otherwise Shutdown waits on them
	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := svc.Shutdown(ctx); err != nil {
		logger.Warn("background work not drained", zap.Error(err))
	}
	cr.Stop()
	if err := idemStore.Close(); err != nil {
		logger.Warn("close cache", zap.Error(err))
	}
	if err := repo.Close(); err != nil {
		logger.Warn("close database", zap.Error(err))
	}
	logger.Info("server exited")
}
