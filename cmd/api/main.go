package main

import (
	"context"
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

	_ "github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/api/swagger"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/handler"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/middleware"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/models"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/repository"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/service"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/cache"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/config"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/database"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/jobs"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/logger"
	corsmiddleware "github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/middleware/cors"
	reqidmiddleware "github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/middleware/requestid"
)

// @title Sistema de Gestao de Matricula Escolar
// @version 1.0.0
// @description School enrollment management API
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	queueRepo := repository.NewQueueRepository(redisClient)

	metricsSvc := service.NewMetricsService()

	// Notification delivery is decoupled from request handling: publishes go
	// through an in-memory worker pool and failures are counted, not surfaced.
	publishTimeout := cfg.Queue.PublishTimeout
	notifications := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := queueRepo.Publish(ctx, job.Topic, job.Message); err != nil {
			metricsSvc.RecordPublishFailure()
			return err
		}
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Queue.Workers,
		BufferSize: cfg.Queue.BufferSize,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		Logger:     logr,
	})
	notifications.Start(context.Background())

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 10*time.Second)
	if err := authSvc.Bootstrap(bootstrapCtx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
		logr.Sugar().Fatalw("failed to provision administrator account", "error", err)
	}
	cancelBootstrap()

	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	sectionSvc := service.NewSectionService(sectionRepo, userRepo, enrollmentRepo, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, sectionRepo, notifications, queueRepo, metricsSvc, nil, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	sectionHandler := handler.NewSectionHandler(sectionSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSecretary)

	authed.GET("/students", studentHandler.List)
	authed.GET("/students/:id", studentHandler.Get)
	authed.POST("/students", staff, studentHandler.Create)
	authed.PUT("/students/:id", staff, studentHandler.Update)
	authed.DELETE("/students/:id", staff, studentHandler.Cancel)

	authed.GET("/sections", sectionHandler.List)
	authed.GET("/sections/:id", sectionHandler.Get)
	authed.GET("/sections/:id/roster", sectionHandler.ExportRoster)
	authed.POST("/sections", staff, sectionHandler.Create)
	authed.PUT("/sections/:id", staff, sectionHandler.Update)
	authed.DELETE("/sections/:id", staff, sectionHandler.Deactivate)

	authed.GET("/enrollments", enrollmentHandler.List)
	authed.GET("/enrollments/queue/status", enrollmentHandler.QueueStatus)
	authed.GET("/enrollments/:id", enrollmentHandler.Get)
	authed.POST("/enrollments", staff, enrollmentHandler.Create)
	authed.DELETE("/enrollments/:id", staff, enrollmentHandler.Cancel)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	notifications.Stop()

	logr.Sugar().Infow("server stopped")
}
