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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/bk-tutor/tutor-support-api/api/swagger"
	"github.com/bk-tutor/tutor-support-api/internal/handler"
	"github.com/bk-tutor/tutor-support-api/internal/integration"
	"github.com/bk-tutor/tutor-support-api/internal/middleware"
	"github.com/bk-tutor/tutor-support-api/internal/models"
	"github.com/bk-tutor/tutor-support-api/internal/repository"
	"github.com/bk-tutor/tutor-support-api/internal/service"
	"github.com/bk-tutor/tutor-support-api/pkg/cache"
	"github.com/bk-tutor/tutor-support-api/pkg/config"
	"github.com/bk-tutor/tutor-support-api/pkg/database"
	"github.com/bk-tutor/tutor-support-api/pkg/logger"
	corsmiddleware "github.com/bk-tutor/tutor-support-api/pkg/middleware/cors"
	reqidmiddleware "github.com/bk-tutor/tutor-support-api/pkg/middleware/requestid"
)

// @title Tutor Support API
// @version 1.0.0
// @description Student-tutor pairing, slot scheduling and booking arbitration.
// @BasePath /api/v1
// @schemes http
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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Migrations.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := database.Migrate(ctx, db, cfg.Migrations.Dir); err != nil {
			cancel()
			logr.Sugar().Fatalw("migrations failed", "error", err)
		}
		cancel()
		if version, err := database.MigrationVersion(context.Background(), db); err == nil {
			logr.Sugar().Infow("migrations applied", "version", version)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The directory cache degrades to a pass-through when Redis is
		// absent, so a failed connection is not fatal.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	pairingRepo := repository.NewPairingRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	programRepo := repository.NewProgramRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	sso := integration.NewAuthenticator(cfg.SSO, logr)

	authService := service.NewAuthService(userRepo, sso, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	metricsService := service.NewMetricsService()

	slotService := service.NewSlotService(slotRepo, validate, logr, cfg.Booking.SlotDuration)
	pairingService := service.NewPairingService(pairingRepo, userRepo, validate, logr)
	bookingService := service.NewBookingService(bookingRepo, pairingRepo, slotRepo, metricsService, validate, logr)
	programService := service.NewProgramService(programRepo, validate, logr)
	directoryService := service.NewDirectoryService(userRepo, cacheRepo, cfg.Directory.CacheTTL, metricsService, logr)
	userService := service.NewUserService(userRepo, logr)

	auditService := service.NewAuditService(userRepo, logr)
	auditService.Start(context.Background())
	defer auditService.Stop()

	authHandler := handler.NewAuthHandler(authService)
	slotHandler := handler.NewSlotHandler(slotService)
	pairingHandler := handler.NewPairingHandler(pairingService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	programHandler := handler.NewProgramHandler(programService)
	directoryHandler := handler.NewDirectoryHandler(directoryService)
	userHandler := handler.NewUserHandler(userService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	student := authed.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	student.GET("/tutors", directoryHandler.ListTutors)
	student.POST("/pairings",
		middleware.Audit(auditService, models.AuditActionPairingSelect, "pairing"),
		pairingHandler.SelectTutor)
	student.GET("/pairings", pairingHandler.Mine)
	student.GET("/slots/available", bookingHandler.AvailableSlots)
	student.POST("/bookings",
		middleware.Audit(auditService, models.AuditActionBookingCreate, "booking"),
		bookingHandler.Create)
	student.GET("/bookings", bookingHandler.History)
	student.DELETE("/bookings/:id",
		middleware.Audit(auditService, models.AuditActionBookingCancel, "booking"),
		bookingHandler.Cancel)
	student.POST("/appointments", slotHandler.BookDirect)
	student.POST("/programs/:id/registrations",
		middleware.Audit(auditService, models.AuditActionRegistration, "program"),
		programHandler.Register)
	student.GET("/registrations", programHandler.MyRegistrations)

	tutor := authed.Group("/tutor")
	tutor.Use(middleware.RequireRoles(models.RoleTutor))
	tutor.POST("/slots",
		middleware.Audit(auditService, models.AuditActionSlotCreate, "slot"),
		slotHandler.Create)
	tutor.DELETE("/slots",
		middleware.Audit(auditService, models.AuditActionSlotDelete, "slot"),
		slotHandler.Delete)
	tutor.GET("/slots", slotHandler.List)
	tutor.GET("/pairings", pairingHandler.Pending)
	tutor.POST("/pairings/:id/respond",
		middleware.Audit(auditService, models.AuditActionPairingRespond, "pairing"),
		pairingHandler.Respond)
	tutor.GET("/bookings", bookingHandler.Pending)
	tutor.POST("/bookings/:id/respond",
		middleware.Audit(auditService, models.AuditActionBookingRespond, "booking"),
		bookingHandler.Respond)
	tutor.GET("/sessions", bookingHandler.Upcoming)
	tutor.GET("/sessions/export", bookingHandler.ExportUpcoming)

	coordinator := authed.Group("")
	coordinator.Use(middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin))
	coordinator.POST("/programs", programHandler.Create)

	authed.GET("/programs", programHandler.ListOpen)

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/users", userHandler.List)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("shutdown error", "error", err)
	}
}
