package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sentra-sec/sentra/internal/application"
	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/internal/domain/service"
	"github.com/sentra-sec/sentra/internal/infrastructure/alerting"
	"github.com/sentra-sec/sentra/internal/infrastructure/monitoring"
	httpiface "github.com/sentra-sec/sentra/internal/interfaces/http"
	"github.com/sentra-sec/sentra/internal/maintenance"
	"github.com/sentra-sec/sentra/internal/security/behavior"
	"github.com/sentra-sec/sentra/internal/security/certpin"
	"github.com/sentra-sec/sentra/internal/security/enclave"
	"github.com/sentra-sec/sentra/internal/security/metrics"
	"github.com/sentra-sec/sentra/internal/security/ratelimit"
	"github.com/sentra-sec/sentra/internal/security/session"
	"github.com/sentra-sec/sentra/internal/security/threat"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/logger"
)

func main() {
	// Logger for startup
	startupLogger, _ := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})

	// Load config
	loader := config.NewLoader(startupLogger)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	ctx := context.Background()

	// Initialize tracing
	tracer, err := monitoring.NewTracingManager(&cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Error(ctx, "Failed to initialize tracer", err)
		os.Exit(1)
	}

	// Initialize infrastructure
	prom := monitoring.NewMetrics()

	var store ratelimit.Store
	var redisClient goredis.UniversalClient
	if cfg.Redis.Enabled {
		redisClient = goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    cfg.Redis.Addresses,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			appLogger.Error(ctx, "Failed to connect to Redis", err)
			os.Exit(1)
		}
		store = ratelimit.NewRedisStore(redisClient)
	} else {
		store = ratelimit.NewMemoryStore()
	}

	var alerts service.AlertSink
	if cfg.Kafka.Enabled {
		alerts = alerting.NewKafkaSink(cfg.Kafka, appLogger)
	} else {
		alerts = alerting.NewNoopSink()
	}

	// Initialize engine components
	limiter := ratelimit.NewLimiter(store, cfg.Security.RateLimits)
	components := application.Components{
		Threats:  threat.NewMatcher(),
		Limiter:  limiter,
		Pins:     certpin.NewStore(cfg.Security.CertificatePins),
		Enclaves: enclave.NewRegistry(appLogger),
		Behavior: behavior.NewAnalyzer(appLogger),
		Sessions: session.NewManager(appLogger),
		Metrics:  metrics.NewReporter(appLogger),
		Alerts:   alerts,
	}

	manager := application.NewSecurityManager(components, appLogger,
		application.WithTracing(tracer),
		application.WithPrometheus(prom),
	)
	if err := manager.UpdateConfig(cfg.Security); err != nil {
		appLogger.Error(ctx, "Failed to apply security configuration", err)
		os.Exit(1)
	}

	// Probe for hardware-backed enclaves before serving traffic.
	logDetectedEnclaves(ctx, appLogger, manager.DetectEnclaves(ctx))

	// Hot reload: validated updates flow into the running engine.
	loader.Watch(func(next *config.Config) {
		if err := manager.UpdateConfig(next.Security); err != nil {
			appLogger.Error(ctx, "Rejected configuration update", err)
		}
	})

	var tokens *session.TokenIssuer
	if cfg.Security.SessionTokenKey != "" {
		tokens, err = session.NewTokenIssuer(cfg.Security.SessionTokenKey, cfg.Security.SessionTimeout)
		if err != nil {
			appLogger.Error(ctx, "Failed to create token issuer", err)
			os.Exit(1)
		}
	}

	router := httpiface.NewRouter(cfg, appLogger, manager, limiter, tokens)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := maintenance.NewSweeper(manager, appLogger, constants.DefaultSweepInterval)
	go func() {
		if err := sweeper.Run(runCtx); err != nil && err != context.Canceled {
			appLogger.Error(ctx, "Maintenance sweeper stopped", err)
		}
	}()

	go reportPosture(runCtx, manager, appLogger, cfg.Security.ReportingInterval)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- router.Start()
	}()

	select {
	case <-runCtx.Done():
		appLogger.Info(ctx, "shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(ctx, "HTTP server failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx,
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := router.Stop(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP shutdown failed", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "Tracer shutdown failed", err)
	}
	if err := manager.Close(); err != nil {
		appLogger.Error(shutdownCtx, "Alert sink shutdown failed", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			appLogger.Error(shutdownCtx, "Redis shutdown failed", err)
		}
	}
	appLogger.Info(ctx, "shutdown complete")
}

// logDetectedEnclaves logs one line per enclave found at startup.
func logDetectedEnclaves(ctx context.Context, log logger.Logger, enclaves []*models.SecureEnclave) {
	for _, e := range enclaves {
		log.Info(ctx, "enclave registered",
			logger.String("enclave_id", e.ID),
			logger.String("kind", string(e.Kind)))
	}
}

// reportPosture logs the aggregate security posture at the configured
// reporting interval so operators see the trend without polling the API.
func reportPosture(ctx context.Context, manager *application.SecurityManager, log logger.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = constants.DefaultReportingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := manager.SecurityStatus()
			log.Info(ctx, "security posture",
				logger.String("overall", string(status.Overall)),
				logger.Float64("risk_score", status.RiskScore),
				logger.String("trend", string(status.Trend)),
				logger.Int("active_threats", status.ActiveThreats),
				logger.Float64("enclave_health", status.EnclaveHealth))
		}
	}
}
