package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-admissions-api/api/swagger"
	"github.com/noah-isme/sma-admissions-api/internal/handler"
	"github.com/noah-isme/sma-admissions-api/internal/middleware"
	"github.com/noah-isme/sma-admissions-api/internal/models"
	"github.com/noah-isme/sma-admissions-api/internal/repository"
	"github.com/noah-isme/sma-admissions-api/internal/service"
	"github.com/noah-isme/sma-admissions-api/pkg/cache"
	"github.com/noah-isme/sma-admissions-api/pkg/config"
	"github.com/noah-isme/sma-admissions-api/pkg/database"
	"github.com/noah-isme/sma-admissions-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-admissions-api/pkg/middleware/requestid"
)

// @title SMA Admissions API
// @version 1.0.0
// @description Admission pipeline service: candidate intake, stage transitions and enrollment finalization
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, list caching disabled", "error", err)
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Admissions.ListCacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Admissions.ListCacheTTL, logr, true)
	}

	candidateRepo := repository.NewCandidateRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	userRepo := repository.NewUserRepository(db)

	locks := service.NewCandidateLocks()

	candidateSvc := service.NewCandidateService(candidateRepo, userRepo, metricsSvc, cacheSvc, cfg.Admissions.ListCacheTTL, nil, logr)
	pipelineSvc := service.NewPipelineService(candidateRepo, locks, userRepo, metricsSvc, cacheSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(candidateRepo, enrollmentRepo, locks, userRepo, metricsSvc, cacheSvc, service.EnrollmentConfig{
		TuitionDeposit:   cfg.Admissions.TuitionDeposit,
		InvoiceDueDays:   cfg.Admissions.InvoiceDueDays,
		RequireDocuments: cfg.Admissions.RequireDocuments,
	}, logr)
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sma-admissions-api",
	})
	studentSvc := service.NewStudentService(studentRepo, invoiceRepo, logr)
	exportSvc := service.NewExportService(candidateRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	candidateHandler := handler.NewCandidateHandler(candidateSvc, pipelineSvc, enrollmentSvc, exportSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	staff := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff}
	admins := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}

	candidates := api.Group("/candidates", middleware.JWT(authSvc))
	{
		candidates.GET("", middleware.RequireRoles(staff...), candidateHandler.List)
		candidates.POST("", middleware.RequireRoles(staff...), candidateHandler.Register)
		candidates.GET("/export", middleware.RequireRoles(admins...), candidateHandler.Export)
		candidates.GET("/:id", middleware.RequireRoles(staff...), candidateHandler.Get)
		candidates.POST("/:id/advance", middleware.RequireRoles(staff...), candidateHandler.Advance)
		candidates.POST("/:id/revert", middleware.RequireRoles(staff...), candidateHandler.Revert)
		candidates.POST("/:id/finalize", middleware.RequireRoles(admins...), candidateHandler.Finalize)
		candidates.POST("/:id/documents", middleware.RequireRoles(staff...), candidateHandler.AttachDocument)
		candidates.PUT("/:id/documents/:docId/verify", middleware.RequireRoles(staff...), candidateHandler.VerifyDocument)
	}

	students := api.Group("/students", middleware.JWT(authSvc))
	{
		students.GET("", middleware.RequireRoles(staff...), studentHandler.List)
		students.GET("/:id", middleware.RequireRoles(staff...), studentHandler.Get)
		students.GET("/:id/invoices", middleware.RequireRoles(staff...), studentHandler.Invoices)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
