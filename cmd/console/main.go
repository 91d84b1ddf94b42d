// Package main runs the desk console HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/visitorpass/desk/config"
	"github.com/visitorpass/desk/internal/auth"
	"github.com/visitorpass/desk/internal/desk"
	"github.com/visitorpass/desk/internal/events"
	"github.com/visitorpass/desk/internal/handlers"
	"github.com/visitorpass/desk/internal/live"
	"github.com/visitorpass/desk/internal/middleware"
	"github.com/visitorpass/desk/internal/realtime"
	"github.com/visitorpass/desk/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Redis is optional: without it the console runs as a single instance.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// Change broadcaster, one per tenant
	changes := events.NewTenants(func(tenantID int64) events.Broadcaster {
		if rdb == nil {
			return events.NewChangeBus(logger)
		}
		relay := events.NewRedisRelay(rdb.Client, tenantID, logger)
		if err := relay.Start(ctx); err != nil {
			logger.Warn("change relay not started", zap.Int64("tenant_id", tenantID), zap.Error(err))
		}
		return relay
	})
	defer changes.Close()

	// Live update channel, one STOMP session per tenant with open dashboards
	var liveReg *live.Registry
	if !cfg.Live.Disabled {
		url := cfg.Live.URL
		if url == "" {
			url, err = live.EndpointFromAPI(cfg.API.BaseURL)
			if err != nil {
				logger.Fatal("live endpoint", zap.Error(err))
			}
		}
		liveReg = live.NewRegistry(live.Config{
			URL:               url,
			ReconnectDelay:    time.Duration(cfg.Live.ReconnectDelayMS) * time.Millisecond,
			MaxReconnectDelay: time.Duration(cfg.Live.MaxReconnectDelayMS) * time.Millisecond,
			MaxRetries:        cfg.Live.MaxRetries,
		}, logger)
		defer liveReg.Close()
		logger.Info("live updates enabled", zap.String("url", url))
	}

	// Browser hub
	var hub *realtime.Hub
	if rdb != nil {
		relay := realtime.NewRoomRelay(rdb.Client, logger)
		if err := relay.Start(ctx); err != nil {
			logger.Warn("room relay not started, browsers must reach the replica holding their desk", zap.Error(err))
			hub = realtime.NewHub(logger, nil, nil)
		} else {
			hub = realtime.NewHub(logger, relay, relay)
		}
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	// Desks
	desks := desk.NewRegistry(desk.RegistryConfig{
		APIBaseURL:        cfg.API.BaseURL,
		HTTPClient:        &http.Client{Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second},
		PageSize:          cfg.Desk.PageSize,
		DashboardPageSize: cfg.Desk.DashboardPageSize,
		IdleTimeout:       time.Duration(cfg.Desk.IdleTimeoutMin) * time.Minute,
	}, changes, liveReg, logger)
	desks.SetSinks(hub.Toasts, hub.Views)
	desks.SetActive(func(id string) bool { return hub.Count(id) > 0 })
	go desks.Run(ctx, time.Minute)

	jwtService := auth.NewJWTService(cfg.JWT.Secret)
	if !jwtService.Verifies() {
		logger.Warn("JWT_SECRET not set, token signatures are left to the backend")
	}
	deskHandler := handlers.NewHandler(desks, jwtService, logger)
	if rdb != nil {
		deskHandler.SetRedis(rdb)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, "/health"))
	router.Use(middleware.RateLimit(limiter, logger))

	// Health
	router.GET("/health", deskHandler.Health)

	// Desk API (backend bearer token required)
	deskHandler.Register(router)

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, deskHandler.WebsocketSession))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				limiter.Cleanup(now)
			}
		}
	}()

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("api", cfg.API.BaseURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	desks.Shutdown()
	stop()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
