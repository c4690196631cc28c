package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"campuspulse/internal/cache"
	"campuspulse/internal/config"
	"campuspulse/internal/handler"
	"campuspulse/internal/hub"
	"campuspulse/internal/middleware"
	"campuspulse/internal/planner"
	"campuspulse/internal/probe"
	"campuspulse/internal/resolver"
	"campuspulse/internal/store"
	"campuspulse/pkg/bvgapi"
	"campuspulse/pkg/nominatim"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting campuspulse server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"campus", cfg.CampusLocation,
		"preferences_backend", cfg.PreferencesBackend,
		"redis_enabled", cfg.RedisEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisCache *cache.RedisCache
	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		logger.Info("redis cache enabled", "addr", cfg.RedisAddr)
	}

	prefs, err := openPreferences(ctx, cfg)
	if err != nil {
		logger.Error("failed to open preferences store", "backend", cfg.PreferencesBackend, "error", err)
		os.Exit(1)
	}

	userAgent := fmt.Sprintf("CampusPulse/1.0 (%s)", cfg.GeocodeContact)
	bvg := bvgapi.New(cfg.BVGAPIBaseURL, userAgent, cfg.UpstreamTimeout)
	geocoder := nominatim.New(cfg.GeocodeURL, cfg.GeocodeContact, cfg.UpstreamTimeout, time.Second, logger)
	if redisCache != nil {
		geocoder.WithCache(redisCache, cfg.GeocodeCacheTTL)
		geocoder.OnCacheLookup = handler.ServerStats.RecordCacheLookup
	}

	res := resolver.New(bvg, bvg, resolver.DefaultStrategies(geocoder), logger)
	res.OnResolved = handler.ServerStats.RecordResolved

	wsHub := hub.NewHub(logger)

	var (
		sessions planner.SessionStore
		pruner   probe.Pruner
		counter  handler.SessionCounter
	)
	if redisCache != nil {
		sessions = store.NewRedisStore(redisCache, cfg.SessionTTL)
		wsHub.WithSnapshotStore(redisCache, cfg.SessionTTL)
	} else {
		memStore := store.New(cfg.SessionTTL)
		sessions = memStore
		pruner = memStore
		counter = memStore
	}

	plan := planner.New(planner.Config{
		CampusLocation: cfg.CampusLocation,
		Location:       cfg.Timezone,
		ArrivalBuffer:  cfg.ArrivalBuffer,
		Results:        cfg.JourneyResults,
	}, res, bvg, sessions, prefs, wsHub, logger)

	prb := probe.New(bvg, pruner, wsHub, cfg.CampusLocation, cfg.ProbeInterval, cfg.UpstreamTimeout, logger)

	rl := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)
	rl.OnReject = handler.ServerStats.IncRateLimitBlocked

	sessionHandler := handler.NewSessionHandler(plan, logger)
	locationHandler := handler.NewLocationHandler(res, bvg)
	preferencesHandler := handler.NewPreferencesHandler(prefs, logger)
	healthHandler := handler.NewHealthHandler(prb)
	statsHandler := handler.NewStatsHandler(counter, wsHub.ClientCount)
	wsHandler := handler.NewWSHandler(wsHub, plan, cfg.CORSAllowedOrigins, logger)

	api := http.NewServeMux()

	api.HandleFunc("POST /v1/sessions", sessionHandler.Create)
	api.HandleFunc("GET /v1/sessions/{id}", sessionHandler.Get)
	api.HandleFunc("DELETE /v1/sessions/{id}", sessionHandler.Delete)
	api.HandleFunc("PUT /v1/sessions/{id}/origin", sessionHandler.SetOrigin)
	api.HandleFunc("POST /v1/sessions/{id}/toggle", sessionHandler.Toggle)
	api.HandleFunc("POST /v1/sessions/{id}/locate", sessionHandler.Locate)
	api.HandleFunc("POST /v1/sessions/{id}/plan", sessionHandler.Plan)

	api.HandleFunc("GET /v1/locations/resolve", locationHandler.Resolve)
	api.HandleFunc("GET /v1/locations/nearby", locationHandler.Nearby)
	api.HandleFunc("GET /v1/stops/{id}/departures", locationHandler.Departures)

	api.HandleFunc("GET /v1/users/{userId}/preferences", preferencesHandler.Get)
	api.HandleFunc("PUT /v1/users/{userId}/preferences", preferencesHandler.Put)

	api.HandleFunc("GET /v1/stats", statsHandler.GetStats)
	api.HandleFunc("GET /healthz", healthHandler.Healthz)
	api.HandleFunc("GET /readyz", healthHandler.Readyz)

	// The websocket route bypasses gzip; it needs the raw connection.
	mux := http.NewServeMux()
	mux.Handle("/", handler.GzipMiddleware(api))
	mux.HandleFunc("GET /v1/sessions/{id}/ws", wsHandler.ServeWS)

	var root http.Handler = mux
	root = rl.Middleware(root)
	root = handler.CORSMiddleware(cfg.CORSAllowedOrigins)(root)
	root = handler.CountRequests(root)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)

	go prb.Run(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	rl.Stop()

	if err := prefs.Close(); err != nil {
		logger.Error("preferences store close error", "error", err)
	}
	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func openPreferences(ctx context.Context, cfg *config.Config) (store.Preferences, error) {
	switch cfg.PreferencesBackend {
	case config.BackendPostgres:
		return store.NewPostgresPreferences(ctx, cfg.DatabaseURL)
	case config.BackendSQLite:
		return store.NewSQLitePreferences(ctx, cfg.SQLiteDatabase)
	default:
		return store.NewMemoryPreferences(), nil
	}
}
