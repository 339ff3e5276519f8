package main

import (
	"context"
	"errors"
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
	"go.uber.org/zap"

	_ "github.com/campus-adm/university-api/api/swagger"
	"github.com/campus-adm/university-api/internal/handler"
	"github.com/campus-adm/university-api/internal/middleware"
	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/internal/repository"
	"github.com/campus-adm/university-api/internal/service"
	"github.com/campus-adm/university-api/pkg/cache"
	"github.com/campus-adm/university-api/pkg/config"
	"github.com/campus-adm/university-api/pkg/database"
	"github.com/campus-adm/university-api/pkg/export"
	"github.com/campus-adm/university-api/pkg/logger"
	"github.com/campus-adm/university-api/pkg/mailer"
	corsmiddleware "github.com/campus-adm/university-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campus-adm/university-api/pkg/middleware/requestid"
)

// @title University Administration API
// @version 1.0.0
// @description Student onboarding, academic catalog and course registration backend
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, registration reads will not be cached", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	runner := database.NewRunner(db)

	registrationRepo := repository.NewRegistrationRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	resultRepo := repository.NewResultRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()
	tokenService := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, logr)

	registrationService := service.NewRegistrationService(service.RegistrationServiceParams{
		Repo:          registrationRepo,
		Courses:       courseRepo,
		Students:      studentRepo,
		Departments:   departmentRepo,
		Sessions:      sessionRepo,
		Outbox:        outboxRepo,
		Cache:         cacheRepo,
		Roster:        export.NewCSVExporter(),
		Tx:            runner,
		DB:            db,
		Metrics:       metricsService,
		Validator:     validate,
		Logger:        logr,
		MinCredits:    cfg.Registration.MinCredits,
		MaxCredits:    cfg.Registration.MaxCredits,
		CacheTTL:      cfg.Registration.CacheTTL,
		OutboxEnabled: cfg.Outbox.Enabled,
	})
	studentService := service.NewStudentService(studentRepo, registrationRepo, departmentRepo, sessionRepo, runner, db, validate, logr)
	courseService := service.NewCourseService(courseRepo, sessionRepo, validate, logr)
	departmentService := service.NewDepartmentService(departmentRepo, validate, logr)
	sessionService := service.NewSessionService(sessionRepo, validate, logr)
	resultService := service.NewResultService(resultRepo, registrationRepo, courseRepo, studentRepo, departmentRepo, sessionRepo, export.NewTranscriptPDFExporter(), cacheRepo, runner, db, validate, logr)

	var dispatcher *service.NotificationDispatcher
	if cfg.Outbox.Enabled {
		sender, err := mailer.NewSMTPSender(cfg.Mail)
		if err != nil {
			logr.Fatal("failed to init smtp sender", zap.Error(err))
		}
		dispatcher = service.NewNotificationDispatcher(outboxRepo, sender, cfg.Outbox, metricsService, logr)
	}

	registrationHandler := handler.NewRegistrationHandler(registrationService)
	studentHandler := handler.NewStudentHandler(studentService)
	courseHandler := handler.NewCourseHandler(courseService)
	departmentHandler := handler.NewDepartmentHandler(departmentService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	resultHandler := handler.NewResultHandler(resultService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.JWT(tokenService)
	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty, models.RoleStudent)

	api := r.Group(cfg.APIPrefix)
	{
		registrations := api.Group("/registrations", auth)
		{
			registrations.POST("", middleware.RBAC(string(models.RoleAdmin), string(models.RoleStudent)), registrationHandler.Create)
			registrations.GET("", staff, registrationHandler.List)
			registrations.GET("/:id", staff, registrationHandler.Get)
			registrations.GET("/my/:studentId", middleware.RBAC(string(models.RoleAdmin), "SELF"), registrationHandler.Mine)
			registrations.GET("/course/:courseId", staff, registrationHandler.StudentsByCourse)
			registrations.GET("/course/:courseId/export", staff, registrationHandler.ExportStudentsByCourse)
			registrations.PATCH("/:id/approve", admin, registrationHandler.Approve)
			registrations.PATCH("/drop", middleware.RequireRoles(models.RoleStudent), registrationHandler.Drop)
			registrations.PATCH("/drop/admin", admin, registrationHandler.DropAdmin)
		}

		students := api.Group("/students")
		{
			students.POST("", studentHandler.Create)
			students.GET("", auth, staff, studentHandler.List)
			students.GET("/:id", auth, middleware.RBAC(string(models.RoleAdmin), string(models.RoleFaculty), "SELF"), studentHandler.Get)
			students.PUT("/:id", auth, admin, studentHandler.Update)
			students.PATCH("/:id/approve", auth, admin, studentHandler.Approve)
			students.DELETE("/:id", auth, admin, studentHandler.Delete)
		}

		courses := api.Group("/courses", auth)
		{
			courses.GET("", anyRole, courseHandler.List)
			courses.GET("/:id", anyRole, courseHandler.Get)
			courses.POST("", admin, courseHandler.Create)
			courses.PUT("/:id", admin, courseHandler.Update)
			courses.DELETE("/:id", admin, courseHandler.Delete)
		}

		departments := api.Group("/departments", auth)
		{
			departments.GET("", anyRole, departmentHandler.List)
			departments.GET("/:id", anyRole, departmentHandler.Get)
			departments.POST("", admin, departmentHandler.Create)
			departments.PUT("/:id", admin, departmentHandler.Update)
		}

		sessions := api.Group("/sessions", auth)
		{
			sessions.GET("", anyRole, sessionHandler.List)
			sessions.GET("/:id", anyRole, sessionHandler.Get)
			sessions.POST("", admin, sessionHandler.Create)
		}

		results := api.Group("/results", auth)
		{
			results.POST("", staff, resultHandler.Publish)
			results.GET("/:registrationId", anyRole, resultHandler.Get)
			results.GET("/:registrationId/transcript.pdf", anyRole, resultHandler.Transcript)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dispatcher != nil {
		dispatcher.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	if dispatcher != nil {
		dispatcher.Stop()
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Warn("redis close failed", zap.Error(err))
	}
	logr.Info("shutdown complete")
}
