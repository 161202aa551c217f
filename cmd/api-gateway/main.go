package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edudesk/school-records-api/api/swagger"
	"github.com/edudesk/school-records-api/internal/handler"
	"github.com/edudesk/school-records-api/internal/middleware"
	"github.com/edudesk/school-records-api/internal/models"
	"github.com/edudesk/school-records-api/internal/repository"
	"github.com/edudesk/school-records-api/internal/service"
	"github.com/edudesk/school-records-api/pkg/cache"
	"github.com/edudesk/school-records-api/pkg/config"
	"github.com/edudesk/school-records-api/pkg/database"
	"github.com/edudesk/school-records-api/pkg/logger"
	corsmiddleware "github.com/edudesk/school-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edudesk/school-records-api/pkg/middleware/requestid"
)

// @title School Records API
// @version 0.1.0
// @description Record store and meeting scheduling backend for the school platform
// @BasePath /
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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, record query caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	recordRepo := repository.NewRecordRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	tokenSvc := service.NewTokenService(cfg.JWT)
	recordSvc := service.NewRecordService(recordRepo, cacheRepo, cfg.Records.CacheTTL, validate, logr)
	meetingSvc := service.NewMeetingService(meetingRepo, validate, logr, cfg.Meetings.IDAttempts)

	recordHandler := handler.NewRecordHandler(recordSvc)
	meetingHandler := handler.NewMeetingHandler(meetingSvc)

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
	api.Use(middleware.JWT(tokenSvc))
	{
		records := api.Group("/records")
		records.POST("", recordHandler.Create)
		records.GET("", recordHandler.Query)
		records.POST("/append", recordHandler.Append)
		records.GET("/:id", recordHandler.Get)
		records.PATCH("/:id/status",
			middleware.RequireRoles(models.RolePrincipal, models.RoleDistrict, models.RoleAdmin),
			recordHandler.SetLeaveStatus)
		records.POST("/:id/students", recordHandler.EnrollStudent)

		scheduler := middleware.RequireRoles(models.RolePrincipal, models.RoleDistrict, models.RoleAdmin)
		meetings := api.Group("/meetings")
		meetings.POST("", scheduler, meetingHandler.Schedule)
		meetings.GET("", meetingHandler.List)
		meetings.GET("/:id", meetingHandler.Get)
		meetings.PATCH("/:id/status", scheduler, meetingHandler.SetStatus)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
