package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/optiroute/backend/internal/config"
	"github.com/optiroute/backend/internal/db"
	"github.com/optiroute/backend/internal/geocode"
	"github.com/optiroute/backend/internal/http/handlers"
	"github.com/optiroute/backend/internal/http/middleware"
	"github.com/optiroute/backend/internal/routing"

	_ "github.com/optiroute/backend/docs"
)

func Router(cfg config.Config, store *db.Store, orchestrator *routing.Orchestrator, geocoder geocode.Geocoder, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id", "X-Company-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:        store,
		Orchestrator: orchestrator,
		Geocoder:     geocoder,
		Validator:    validator.New(),
		Logger:       logger,
		AdminKey:     cfg.AdminKey,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/missions", h.MissionsList)
		api.POST("/missions", h.MissionCreate)
		api.PATCH("/missions/:id/status", h.MissionStatusUpdate)
		api.GET("/technicians", h.TechniciansList)
		api.GET("/runs/latest", h.RunsLatest)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/technicians", h.TechnicianCreate)
		admin.POST("/import", h.Import)
		admin.POST("/optimize", h.Optimize)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
