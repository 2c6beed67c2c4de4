// Package http assembles the gin router for the engine's API surface.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentra-sec/sentra/internal/application"
	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/domain/service"
	"github.com/sentra-sec/sentra/internal/interfaces/http/handlers"
	"github.com/sentra-sec/sentra/internal/interfaces/http/middleware"
	"github.com/sentra-sec/sentra/internal/security/session"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/logger"
)

// Router owns the gin engine and the HTTP server lifecycle.
type Router struct {
	engine          *gin.Engine
	cfg             *config.Config
	log             logger.Logger
	securityHandler *handlers.SecurityHandler
	sessionHandler  *handlers.SessionHandler
	healthHandler   *handlers.HealthHandler
	limiter         service.RateLimitService
	server          *http.Server
}

// NewRouter creates the router over the security manager.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	manager *application.SecurityManager,
	limiter service.RateLimitService,
	tokens *session.TokenIssuer,
) *Router {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Router{
		engine:          gin.New(),
		cfg:             cfg,
		log:             log,
		securityHandler: handlers.NewSecurityHandler(manager),
		sessionHandler:  handlers.NewSessionHandler(manager, tokens),
		healthHandler:   handlers.NewHealthHandler(manager),
		limiter:         limiter,
	}
}

// SetupRoutes wires middleware and the route table.
func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger(r.log))

	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.engine.GET("/health", r.healthHandler.HealthCheck)
	r.engine.GET("/ready", r.healthHandler.ReadinessCheck)
	r.engine.GET("/live", r.healthHandler.LivenessCheck)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if r.cfg.Server.Environment != "production" {
		pprof.Register(r.engine)
	}

	v1 := r.engine.Group("/api/v1")
	v1.Use(middleware.RateLimit(r.limiter, constants.ClassAPI, r.log))
	{
		v1.POST("/events", r.securityHandler.ProcessEvent)
		v1.GET("/status", r.securityHandler.GetStatus)
		v1.GET("/export", r.securityHandler.Export)
		v1.PUT("/config", r.securityHandler.UpdateConfig)
		v1.POST("/reset", r.securityHandler.Reset)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", middleware.RateLimit(r.limiter, constants.ClassAuthentication, r.log),
				r.sessionHandler.CreateSession)
			sessions.GET("/:session_id", r.sessionHandler.ValidateSession)
			sessions.POST("/:session_id/extend", r.sessionHandler.ExtendSession)
			sessions.DELETE("/:session_id", r.sessionHandler.InvalidateSession)
		}

		principals := v1.Group("/principals/:principal_id")
		{
			principals.DELETE("/sessions", r.sessionHandler.InvalidatePrincipalSessions)
			principals.POST("/failed-attempts", r.sessionHandler.RecordFailedAttempt)
			principals.DELETE("/failed-attempts", r.sessionHandler.ResetFailedAttempts)
			principals.GET("/lockout", r.sessionHandler.GetLockout)
			principals.GET("/profile", r.sessionHandler.GetProfile)
			principals.GET("/anomalies", r.sessionHandler.DetectAnomalies)
		}

		pins := v1.Group("/pins")
		{
			pins.GET("", r.securityHandler.ListPins)
			pins.PUT("/:domain", r.securityHandler.PinCertificate)
			pins.DELETE("/:domain", r.securityHandler.UnpinCertificate)
			pins.POST("/:domain/verify", r.securityHandler.VerifyCertificate)
		}

		patterns := v1.Group("/threat-patterns")
		{
			patterns.GET("", r.securityHandler.ListPatterns)
			patterns.POST("", r.securityHandler.RegisterPattern)
			patterns.DELETE("/:id", r.securityHandler.UnregisterPattern)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "the requested resource was not found",
		})
	})
}

// Engine exposes the gin engine, for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Start runs the HTTP server until Stop is called or the listener fails.
func (r *Router) Start() error {
	r.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", r.cfg.Server.Host, r.cfg.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    time.Duration(r.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(r.cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	r.log.Info(context.Background(), "starting http server", logger.String("address", addr))
	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.log.Info(ctx, "stopping http server")
	return r.server.Shutdown(ctx)
}
