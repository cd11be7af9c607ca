package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edulink/tutoring-api/api/swagger"
	"github.com/edulink/tutoring-api/internal/handler"
	"github.com/edulink/tutoring-api/internal/middleware"
	"github.com/edulink/tutoring-api/internal/models"
	"github.com/edulink/tutoring-api/internal/repository"
	"github.com/edulink/tutoring-api/internal/service"
	"github.com/edulink/tutoring-api/pkg/cache"
	"github.com/edulink/tutoring-api/pkg/config"
	"github.com/edulink/tutoring-api/pkg/database"
	"github.com/edulink/tutoring-api/pkg/jobs"
	"github.com/edulink/tutoring-api/pkg/logger"
	corsmiddleware "github.com/edulink/tutoring-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edulink/tutoring-api/pkg/middleware/requestid"
	"github.com/edulink/tutoring-api/pkg/storage"
)

// @title EduLink Tutoring API
// @version 1.0.0
// @description Course request, application and scheduling workflow for the tutoring marketplace
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	defer cacheRepo.Close()

	validate := validator.New()

	requestRepo := repository.NewRequestRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, logr)
	requestSvc := service.NewRequestService(requestRepo, userRepo, cacheRepo, cfg.Cache.OpenQueueTTL, validate, logr)
	applicationSvc := service.NewApplicationService(requestRepo, applicationRepo, workflowRepo, userRepo, cacheRepo, cfg.Meetings.BaseURL, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(requestRepo, userRepo, courseRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reportHandler *handler.ReportHandler
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

		var reportSvc *service.ReportService
		reportQueue = jobs.NewQueue("reports", func(ctx context.Context, job jobs.Job) error {
			return reportSvc.Process(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportSvc = service.NewReportService(reportRepo, requestRepo, courseRepo, reportQueue, store, signer, validate, logr)
		reportQueue.Start(ctx)
		defer reportQueue.Stop()

		reportHandler = handler.NewReportHandler(reportSvc)
	}

	requestHandler := handler.NewRequestHandler(requestSvc, metricsSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc, metricsSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, metricsSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		requests := api.Group("/requests")
		{
			requests.POST("", middleware.RequireRoles(models.RoleParent),
				middleware.Audit(auditRepo, models.AuditActionRequestCreate, "requests"), requestHandler.Create)
			requests.GET("", requestHandler.List)
			requests.GET("/:id", requestHandler.Get)
			requests.POST("/:id/cancel",
				middleware.Audit(auditRepo, models.AuditActionRequestCancel, "requests"), requestHandler.Cancel)
			requests.POST("/:id/complete", middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin),
				middleware.Audit(auditRepo, models.AuditActionRequestComplete, "requests"), requestHandler.Complete)

			requests.POST("/:id/applications", middleware.RequireRoles(models.RoleTeacher),
				middleware.Audit(auditRepo, models.AuditActionApplicationSubmit, "requests"), applicationHandler.Submit)
			requests.GET("/:id/applications", applicationHandler.List)
			requests.POST("/:id/applications/:applicationId/accept",
				middleware.Audit(auditRepo, models.AuditActionApplicationAccept, "requests"), applicationHandler.Accept)
		}

		courses := api.Group("/courses")
		{
			courses.GET("", courseHandler.List)
			courses.GET("/:id", courseHandler.Get)
			courses.PATCH("/:id/status",
				middleware.Audit(auditRepo, models.AuditActionCourseStatusSet, "courses"), courseHandler.UpdateStatus)
			courses.POST("/:id/rating", middleware.RequireRoles(models.RoleParent),
				middleware.Audit(auditRepo, models.AuditActionCourseRate, "courses"), courseHandler.Rate)
		}

		dashboard := api.Group("/dashboard")
		{
			dashboard.GET("/coordinator", middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin), dashboardHandler.Coordinator)
			dashboard.GET("/admin", middleware.RequireRoles(models.RoleAdmin), dashboardHandler.Admin)
		}

		if reportHandler != nil {
			reports := api.Group("/reports")
			{
				reports.POST("", middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin),
					middleware.Audit(auditRepo, models.AuditActionReportCreate, "reports"), reportHandler.Create)
				reports.GET("/:id", middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin), reportHandler.Get)
			}
		}
	}

	// The signed token is the credential here, no JWT required.
	if reportHandler != nil {
		r.GET(cfg.APIPrefix+"/reports/download", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
