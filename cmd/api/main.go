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

	"github.com/univtrack/attendance-api/internal/handler"
	"github.com/univtrack/attendance-api/internal/middleware"
	"github.com/univtrack/attendance-api/internal/models"
	"github.com/univtrack/attendance-api/internal/repository"
	"github.com/univtrack/attendance-api/internal/service"
	"github.com/univtrack/attendance-api/pkg/cache"
	"github.com/univtrack/attendance-api/pkg/config"
	"github.com/univtrack/attendance-api/pkg/database"
	"github.com/univtrack/attendance-api/pkg/logger"
	corsmiddleware "github.com/univtrack/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/univtrack/attendance-api/pkg/middleware/requestid"
	"github.com/univtrack/attendance-api/pkg/storage"
)

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
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, summary caching disabled", "error", err)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Summary.CacheTTL, logr, cfg.Summary.CacheEnabled)
		defer cacheRepo.Close() //nolint:errcheck
	}

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("export storage init failed", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)

	validate := validator.New()
	policy := service.NewAccessPolicy(enrollmentRepo)

	authSvc := service.NewAuthService(userRepo, studentRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, studentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, enrollmentRepo, policy, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, courseRepo, policy, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, courseRepo, enrollmentRepo, studentRepo, policy, metricsSvc, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, courseRepo, enrollmentRepo, policy, validate, logr)
	reportSvc := service.NewReportService(courseRepo, sessionRepo, enrollmentRepo, attendanceRepo, attendanceSvc, exportStore, cacheSvc, metricsSvc, service.ReportConfig{
		SummaryCacheTTL: cfg.Summary.CacheTTL,
		ExportTTL:       cfg.Exports.RetentionTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	}, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, userSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc, userSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, userSvc)
	reportHandler := handler.NewReportHandler(reportSvc, userSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc, userSvc)
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
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleLecturer)

	users := protected.Group("/users")
	users.GET("", adminOnly, userHandler.List)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
	users.PUT("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Update)
	users.DELETE("/:id", adminOnly, userHandler.Delete)

	students := protected.Group("/students")
	students.GET("", staff, userHandler.ListStudents)
	students.GET("/:id", staff, userHandler.GetStudent)
	students.PUT("/:id", adminOnly, userHandler.UpdateStudent)
	students.GET("/:id/attendance", attendanceHandler.StudentView)

	courses := protected.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.GET("/:id", courseHandler.Get)
	courses.POST("", staff, courseHandler.Create)
	courses.PUT("/:id", staff, courseHandler.Update)
	courses.DELETE("/:id", staff, courseHandler.Delete)
	courses.POST("/:id/enroll", courseHandler.Enroll)
	courses.DELETE("/:id/enroll/:studentId", staff, courseHandler.Unenroll)
	courses.GET("/:id/roster", staff, courseHandler.Roster)
	courses.GET("/:id/attendance", staff, attendanceHandler.CourseMatrix)
	courses.POST("/:id/sessions", staff, sessionHandler.Create)

	sessions := protected.Group("/sessions")
	sessions.GET("", sessionHandler.List)
	sessions.GET("/:id", sessionHandler.Get)
	sessions.PUT("/:id", staff, sessionHandler.Update)
	sessions.DELETE("/:id", staff, sessionHandler.Delete)
	sessions.POST("/:id/attendance/open", staff, sessionHandler.OpenAttendance)
	sessions.POST("/:id/attendance/close", staff, sessionHandler.CloseAttendance)
	sessions.POST("/:id/check-in", middleware.RequireRoles(models.RoleStudent), attendanceHandler.CheckIn)
	sessions.POST("/:id/attendance", staff, attendanceHandler.Mark)
	sessions.GET("/:id/attendance", staff, attendanceHandler.SessionView)

	reports := protected.Group("/reports")
	reports.GET("/summary", staff, reportHandler.Summary)
	reports.GET("/courses/:id/export", staff, reportHandler.ExportCourse)
	reports.GET("/students/:id/export", reportHandler.ExportStudent)

	announcements := protected.Group("/announcements")
	announcements.GET("", announcementHandler.List)
	announcements.POST("", staff, announcementHandler.Create)
	announcements.PUT("/:id", staff, announcementHandler.Update)
	announcements.DELETE("/:id", staff, announcementHandler.Delete)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportSvc.StartCleanup(ctx)
	defer reportSvc.StopCleanup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
