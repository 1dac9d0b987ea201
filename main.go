// ABOUTME: Entry point for the deliverables admin backend service
// ABOUTME: Provides HTTP API over the OData deliverables backend with managed token auth

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edms-tools/deliverables-admin/backend/cache"
	"github.com/edms-tools/deliverables-admin/backend/config"
	"github.com/edms-tools/deliverables-admin/backend/handlers"
	"github.com/edms-tools/deliverables-admin/backend/logger"
	"github.com/edms-tools/deliverables-admin/backend/middleware"
	"github.com/edms-tools/deliverables-admin/backend/services"
)

func main() {
	// Initialize structured logging
	logger.Init("deliverables-admin")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	authMode, err := middleware.ValidateAuthMode(cfg.AuthMode)
	if err != nil {
		slog.Error("Invalid AUTH_MODE", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting Deliverables Admin Backend")
	slog.Info("OData API configured", "url", cfg.ODataAPIUrl)

	// Token mirror: Redis when configured, in-process otherwise
	var store services.TokenStore
	if cfg.RedisURL != "" {
		redisStore, err := services.NewRedisTokenStore(cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		slog.Info("Token mirror using Redis")
	} else {
		store = services.NewMemoryTokenStore()
		slog.Info("Token mirror in-process only")
	}

	source := services.NewAADTokenSource(
		cfg.AADTenantID,
		cfg.AADClientID,
		cfg.AADClientSecret,
		cfg.AADScope,
		time.Duration(cfg.TokenAssumedLifetime)*time.Second,
	)
	tokens := services.NewTokenManager(source, store, time.Duration(cfg.TokenExpiryBuffer)*time.Second)

	refresher := services.NewTokenRefresher(tokens, time.Duration(cfg.TokenRefreshInterval)*time.Second)
	refresher.Start(context.Background())
	defer refresher.Stop()

	odata := services.NewODataClient(services.ODataClientConfig{
		BaseURL:           cfg.ODataAPIUrl,
		CACert:            cfg.ODataCACert,
		SkipSSLValidation: cfg.ODataSkipSSLValidation,
		AllProxy:          cfg.ODataAllProxy,
	}, tokens)

	// Initialize cache
	cacheTTL := time.Duration(cfg.CacheTTL) * time.Second
	c := cache.New(cacheTTL)
	defer c.Close()
	slog.Info("Cache initialized", "ttl", cacheTTL)

	// Initialize handlers and router
	h := handlers.NewHandler(cfg, c, tokens, odata)

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.LogRequest(refresher))
	r.Use(middleware.Auth(authMode))

	for _, route := range h.Routes() {
		r.With(middleware.RequireRole(route.MinRole)).Method(route.Method, route.Path, route.Handler)
	}

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Serve until interrupted, then drain in-flight requests
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
