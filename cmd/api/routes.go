package main

import (
	"net/http"

	"ecos/internal/config"
	"ecos/internal/identity"
	"ecos/internal/middleware"
	"ecos/internal/modules/accrual"
	"ecos/internal/modules/moderation"
	"ecos/internal/modules/receptionpoint"
	"ecos/internal/modules/user"
	"ecos/internal/modules/waste"
	"ecos/internal/pkg/logger"
	"ecos/internal/storage"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	users       *user.Handler
	points      *receptionpoint.Handler
	wastes      *waste.Handler
	moderations *moderation.Handler
	accruals    *accrual.Handler
}

func newRouter(cfg *config.Config, lg *logger.Logger, ids identity.Provider, h handlers) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(lg), middleware.CORS(cfg.CORSAllowedOrigins))
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Storage.Driver == storage.DriverLocal && cfg.Storage.PublicBaseURL == "" {
		r.Static("/files", cfg.Storage.LocalDir)
	}

	v1 := r.Group("/api/v1")
	protected := v1.Group("", middleware.JWTAuth(ids))
	verified := protected.Group("", middleware.RequireVerifiedEmail())
	moderator := protected.Group("", middleware.ModeratorOnly())

	h.users.RegisterRoutes(v1, protected)
	h.points.RegisterRoutes(v1, verified, moderator)
	h.wastes.RegisterRoutes(v1, moderator)
	h.moderations.RegisterRoutes(moderator)
	h.accruals.RegisterRoutes(protected, moderator)
	return r
}
