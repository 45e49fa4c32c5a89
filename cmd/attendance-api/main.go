package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-attendance-api/api/swagger"
	"github.com/noah-isme/lms-attendance-api/internal/handler"
	"github.com/noah-isme/lms-attendance-api/internal/middleware"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/internal/repository"
	"github.com/noah-isme/lms-attendance-api/internal/service"
	"github.com/noah-isme/lms-attendance-api/pkg/cache"
	"github.com/noah-isme/lms-attendance-api/pkg/config"
	"github.com/noah-isme/lms-attendance-api/pkg/database"
	"github.com/noah-isme/lms-attendance-api/pkg/jobs"
	"github.com/noah-isme/lms-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-attendance-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-attendance-api/pkg/notify"
)

// @title LMS Attendance API
// @version 1.0.0
// @description QR and geofence based attendance sessions for LMS courses
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional: without it the summary cache and the rate limiter are off.
	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
	} else {
		redisClient = client
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logr.Warn("unknown scheduler timezone, using UTC", zap.String("timezone", cfg.Scheduler.Timezone))
		loc = time.UTC
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	sessionRepo := repository.NewSessionRepository(db)
	checkinRepo := repository.NewCheckinRepository(db)
	scheduleRepo := repository.NewRecurringScheduleRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Summary.CacheTTL, logr, cfg.Summary.CacheEnabled && redisClient != nil)

	notifications := service.NewNotificationService(courseRepo, newSender(cfg, logr), metrics, logr, cfg.Notifications.AppName)
	queue := jobs.NewQueue("notifications", notifications.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	notifications.AttachQueue(queue)

	// The queue outlives the signal context so requests drained during
	// shutdown can still enqueue.
	queue.Start(context.Background())
	defer queue.Stop()

	sessionSvc := service.NewSessionService(sessionRepo, courseRepo, notifications, cacheSvc, metrics, validate, logr, service.SessionServiceConfig{
		CodePrefix:   cfg.Attendance.CodePrefix,
		CodeAttempts: cfg.Attendance.CodeAttempts,
		MaxDuration:  cfg.Attendance.MaxDuration,
	})
	checkinSvc := service.NewCheckinService(sessionRepo, checkinRepo, courseRepo, notifications, cacheSvc, metrics, validate, logr, service.CheckinServiceConfig{
		LateAfter:       cfg.Attendance.LateAfter,
		LocationTimeout: cfg.Attendance.LocationTimeout,
		ClockSkew:       cfg.Attendance.ClockSkew,
	})
	ledgerSvc := service.NewLedgerService(checkinRepo, sessionRepo, courseRepo, cacheSvc, logr)
	scheduleSvc := service.NewRecurringScheduleService(scheduleRepo, courseRepo, validate, logr)
	schedulerSvc := service.NewSchedulerService(sessionRepo, scheduleRepo, metrics, logr, service.SchedulerConfig{
		DefaultRadiusMeters: cfg.Scheduler.DefaultRadiusMeters,
		Location:            loc,
		CodePrefix:          cfg.Attendance.CodePrefix,
		CodeAttempts:        cfg.Attendance.CodeAttempts,
	})
	verifier := service.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)

	var limiter *middleware.RateLimiter
	if redisClient != nil {
		limiter = middleware.NewRateLimiter(cacheRepo, "ratelimit:checkin", cfg.Attendance.RateLimitPerMin, logr)
	}

	deps := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		deps["redis"] = handler.PingerFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, deps)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix, middleware.JWT(verifier)), routes{
		sessions:  handler.NewSessionHandler(sessionSvc),
		checkins:  handler.NewCheckinHandler(checkinSvc),
		ledger:    handler.NewLedgerHandler(ledgerSvc),
		schedules: handler.NewRecurringScheduleHandler(scheduleSvc, schedulerSvc),
		metrics:   metricsHandler,
		limiter:   limiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
	}
	if redisClient != nil {
		_ = cacheRepo.Close()
	}
}

type routes struct {
	sessions  *handler.SessionHandler
	checkins  *handler.CheckinHandler
	ledger    *handler.LedgerHandler
	schedules *handler.RecurringScheduleHandler
	metrics   *handler.MetricsHandler
	limiter   *middleware.RateLimiter
}

func registerRoutes(api *gin.RouterGroup, h routes) {
	staff := middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin)

	api.POST("/sessions", staff, h.sessions.Issue)
	api.GET("/sessions/:id", staff, h.sessions.Get)
	api.PATCH("/sessions/:id", staff, h.sessions.Edit)
	api.DELETE("/sessions/:id", staff, h.sessions.Delete)
	api.GET("/sessions/:id/qr", staff, h.sessions.QR)
	api.GET("/sessions/:id/records", h.ledger.Records)
	api.PUT("/sessions/:id/records/:studentId", staff, h.checkins.Override)
	api.GET("/sessions/:id/summary", staff, h.ledger.Summary)
	api.GET("/sessions/:id/edits", staff, h.ledger.Edits)

	api.POST("/checkins", middleware.RequireRoles(models.RoleStudent), h.limiter.Middleware(), h.checkins.CheckIn)

	api.GET("/students/:id/attendance-rate", middleware.RBAC(string(models.RoleFaculty), string(models.RoleAdmin), "SELF"), h.ledger.StudentRate)

	api.GET("/schedules", staff, h.schedules.List)
	api.POST("/schedules", staff, h.schedules.Create)
	api.POST("/schedules/generate", staff, h.schedules.Generate)
	api.GET("/schedules/:id", staff, h.schedules.Get)
	api.PUT("/schedules/:id", staff, h.schedules.Update)
	api.DELETE("/schedules/:id", staff, h.schedules.Delete)

	api.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), h.metrics.Snapshot)
}

func newSender(cfg *config.Config, logr *zap.Logger) notify.Sender {
	if cfg.Notifications.Driver == config.NotifyDriverSendGrid && cfg.Notifications.SendGridAPIKey != "" {
		return notify.NewSendGridSender(cfg.Notifications.SendGridAPIKey, cfg.Notifications.AppName, cfg.Notifications.FromEmail)
	}
	if cfg.Notifications.Driver == config.NotifyDriverSendGrid {
		logr.Warn("SENDGRID_API_KEY missing, falling back to console notifications")
	}
	return notify.NewConsoleSender(logr)
}
