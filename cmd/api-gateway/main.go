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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/confero-api/api/swagger"
	"github.com/noah-isme/confero-api/internal/handler"
	"github.com/noah-isme/confero-api/internal/middleware"
	"github.com/noah-isme/confero-api/internal/models"
	"github.com/noah-isme/confero-api/internal/repository"
	"github.com/noah-isme/confero-api/internal/service"
	"github.com/noah-isme/confero-api/pkg/cache"
	"github.com/noah-isme/confero-api/pkg/config"
	"github.com/noah-isme/confero-api/pkg/database"
	"github.com/noah-isme/confero-api/pkg/jobs"
	"github.com/noah-isme/confero-api/pkg/logger"
	"github.com/noah-isme/confero-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/confero-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/confero-api/pkg/middleware/requestid"
	"github.com/noah-isme/confero-api/pkg/storage"
)

// @title Confero API
// @version 0.1.0
// @description Conference submission and review lifecycle service
// @BasePath /api/v1
// @schemes http

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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, aggregates will be recomputed on every read", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	var outbound mailer.Mailer
	if smtp, err := mailer.NewSMTPMailer(cfg.SMTP); err != nil {
		logr.Sugar().Warnw("smtp not configured, decision notices will fail", "error", err)
		outbound = mailer.Discard{}
	} else {
		outbound = smtp
	}

	notifierSvc := service.NewNotifierService(userRepo, outbound, jobs.QueueConfig{
		Workers:    cfg.Notifier.Workers,
		MaxRetries: cfg.Notifier.MaxRetries,
		RetryDelay: cfg.Notifier.RetryDelay,
	}, metricsSvc, logr)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	lifecycleSvc := service.NewLifecycleService(submissionRepo, reviewRepo, assignmentRepo, cacheRepo, userRepo, notifierSvc, metricsSvc, nil, logr, cfg.Aggregates.CacheTTL)
	reviewSvc := service.NewReviewService(reviewRepo, assignmentRepo, submissionRepo, cacheRepo, metricsSvc, nil, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, userRepo, submissionRepo, reviewRepo, cacheRepo, nil, logr)
	exportSvc := service.NewExportService(submissionRepo, lifecycleSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifierSvc.Start(ctx)
	defer notifierSvc.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	registerRoutes(r, cfg, routeDeps{
		auth:        handler.NewAuthHandler(authSvc),
		submissions: handler.NewSubmissionHandler(lifecycleSvc, store, signer, cfg.Uploads.MaxFileSizeBytes),
		reviews:     handler.NewReviewHandler(reviewSvc),
		assignments: handler.NewAssignmentHandler(assignmentSvc),
		exports:     handler.NewExportHandler(exportSvc),
		metrics:     handler.NewMetricsHandler(metricsSvc),
		authSvc:     authSvc,
		userRepo:    userRepo,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	_ = cacheRepo.Close()
}

type routeDeps struct {
	auth        *handler.AuthHandler
	submissions *handler.SubmissionHandler
	reviews     *handler.ReviewHandler
	assignments *handler.AssignmentHandler
	exports     *handler.ExportHandler
	metrics     *handler.MetricsHandler
	authSvc     *service.AuthService
	userRepo    *repository.UserRepository
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Health)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", deps.auth.Login)

	// Signed token is the credential; no JWT on the download route.
	api.GET("/downloads/papers", deps.submissions.DownloadPDF)

	authed := api.Group("", middleware.JWT(deps.authSvc))
	authed.GET("/auth/me", deps.auth.Me)

	authed.POST("/submissions", deps.submissions.Create)
	authed.GET("/submissions", deps.submissions.List)
	authed.GET("/submissions/:id", deps.submissions.Get)
	authed.PUT("/submissions/:id", deps.submissions.Update)
	authed.DELETE("/submissions/:id", deps.submissions.Delete)
	authed.POST("/submissions/:id/submit", deps.submissions.Submit)
	authed.POST("/submissions/:id/resubmit", deps.submissions.Resubmit)
	authed.POST("/submissions/:id/pdf",
		middleware.Audit(deps.userRepo, models.AuditActionPDFUpload, "submission"),
		deps.submissions.UploadPDF)
	authed.GET("/submissions/:id/pdf-link", deps.submissions.PDFLink)

	authed.GET("/submissions/:id/review", deps.reviews.Mine)
	authed.PUT("/submissions/:id/review", middleware.RequireRoles(models.RoleReviewer), deps.reviews.Submit)
	authed.GET("/assignments/mine", middleware.RequireRoles(models.RoleReviewer, models.RoleAdmin), deps.assignments.Mine)

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/submissions/:id/start-review", deps.submissions.StartReview)
	admin.POST("/submissions/:id/decide", deps.submissions.Decide)
	admin.GET("/submissions/:id/aggregate", deps.submissions.Aggregate)
	admin.GET("/submissions/:id/reviews", deps.reviews.ListBySubmission)
	admin.DELETE("/submissions/:id/reviews/:reviewerId", deps.assignments.RemoveReview)
	admin.POST("/submissions/:id/assignments", deps.assignments.Assign)
	admin.GET("/submissions/:id/assignments", deps.assignments.ListBySubmission)
	admin.DELETE("/assignments/:id", deps.assignments.Remove)
	admin.GET("/events/:eventId/decision-sheet", deps.exports.DecisionSheet)
}
