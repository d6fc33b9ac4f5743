// Package router assembles the gin engine from the application modules.
package router

import (
	"context"
	"net/http"
	"time"

	"claims_portal_backend/internal/auth/permissions"
	apphttp "claims_portal_backend/internal/http"
	"claims_portal_backend/platform/httpkit"
	"claims_portal_backend/platform/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// New builds the engine: shared middleware, the health and metrics endpoints,
// then every module's routes under /api/v1.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))
	engine.Use(metrics.Middleware())

	engine.GET("/api/health", health(app.Health))
	engine.GET("/metrics", metrics.Handler())

	v1 := engine.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(httpkit.AuthRequired(app.Config, app.Sessions))
	admin := protected.Group("/admin")
	admin.Use(httpkit.RequireRole(permissions.RoleAdmin))

	ctx := &apphttp.RouterContext{
		Engine:          engine,
		V1:              v1,
		Protected:       protected,
		Admin:           admin,
		AuthRateLimiter: httpkit.NewAuthRateLimiter(app.Logger),
	}
	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", httpkit.HeaderRequestID},
		ExposeHeaders:    []string{httpkit.HeaderRequestID},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() || len(cfg.GetCORSOrigins()) == 0 {
		c.AllowAllOrigins = true
		// Wildcard origins cannot carry credentials.
		c.AllowCredentials = false
		return c
	}
	c.AllowOrigins = cfg.GetCORSOrigins()
	return c
}

func health(checker apphttp.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := checker.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
