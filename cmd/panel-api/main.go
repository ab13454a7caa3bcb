package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr1s57/netlens/internal/adapter/controller/http/handlers"
	"github.com/kr1s57/netlens/internal/adapter/controller/http/middleware"
	"github.com/kr1s57/netlens/internal/adapter/controller/ws"
	"github.com/kr1s57/netlens/internal/app"
	"github.com/kr1s57/netlens/internal/config"
	"github.com/kr1s57/netlens/internal/entity"
	"github.com/kr1s57/netlens/internal/usecase/netwatch"
	"github.com/kr1s57/netlens/internal/usecase/notifications"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := config.SetupLogger(cfg)
	logger.Info("Starting netlens panel API",
		"env", cfg.App.Env,
		"port", cfg.Panel.Port,
	)

	rt, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// WebSocket hub doubles as a notification sink
	hub := ws.NewHub(logger)
	go hub.Run(ctx)
	rt.Notifier.AddSink(notifications.NewHubSink(hub))

	factory := func(c config.Config) (handlers.Runner, error) {
		return rt.Service(c)
	}
	panelHandler := handlers.NewPanelHandler(*cfg, factory, hub, logger)

	var emailTester handlers.EmailTester
	if rt.Email != nil {
		emailTester = rt.Email
	}
	notificationHandler := handlers.NewNotificationHandler(rt.Notifier, emailTester)

	// Background watcher runs event-mode reports on a timer
	var watchStats handlers.WatchStats
	if cfg.Watch.Interval > 0 {
		eventCfg := *cfg
		eventCfg.Run.Mode = entity.TriggerEvent
		eventCfg.Run.EventDelay = 0
		runner, err := rt.Service(eventCfg)
		if err != nil {
			logger.Error("Failed to build watcher run", "error", err)
			os.Exit(1)
		}
		watcher := netwatch.NewService(netwatch.Config{
			PollInterval: cfg.Watch.Interval,
			Cooldown:     cfg.Watch.Cooldown,
		}, runner, logger)
		go watcher.Start(ctx)
		watchStats = watcher
	}

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Each run fans out to a dozen providers
	r.Use(httprate.LimitByIP(30, time.Minute))

	// Health check
	r.Get("/health", handlers.HealthCheck(handlers.HealthSources{
		Environment: cfg.App.Env,
		Store:       rt.Store,
		OfflineGeo:  rt.Offline,
		Clients:     hub,
		Sinks:       rt.Notifier,
	}))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/panel", panelHandler.GetPanel)
		r.Post("/events/network-change", panelHandler.NetworkChanged)

		r.Get("/watch/stats", handlers.WatchStatus(watchStats))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/status", notificationHandler.GetStatus)
			r.Post("/test-email", notificationHandler.SendTestEmail)
		})
	})

	// WebSocket endpoint
	r.Get("/ws", hub.ServeWS)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Panel.Host, cfg.Panel.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Run.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
