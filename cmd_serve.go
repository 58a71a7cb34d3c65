package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pilgrimsafe/admin"
	"pilgrimsafe/auth"
	"pilgrimsafe/console"
	"pilgrimsafe/events"
	"pilgrimsafe/filemgr"
	"pilgrimsafe/middleware"
	"pilgrimsafe/places"
	"pilgrimsafe/ratelim"
	"pilgrimsafe/routes"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close(context.Background())

	authSvc := auth.NewService(b.Store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)
	limiter := ratelim.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	sweepStop := make(chan struct{})
	defer close(sweepStop)
	go limiter.Run(time.Minute, sweepStop)

	hub := console.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	placeHandlers := places.NewHandlers(b.Store, b.Cache, logger)
	placeHandlers.CardFont = cfg.Cards.FontPath
	eventHandlers := events.NewHandlers(b.Store, b.Cache, logger)
	if sub, err := placeHandlers.KeepCacheFresh(ctx, cfg.Redis.CacheTTL); err != nil {
		logger.Warn("places cache mirror not running", zap.Error(err))
	} else {
		defer sub.Close()
	}
	if sub, err := eventHandlers.KeepCacheFresh(ctx, cfg.Redis.CacheTTL); err != nil {
		logger.Warn("events cache mirror not running", zap.Error(err))
	} else {
		defer sub.Close()
	}

	router := routes.New(routes.Deps{
		Auth:      authSvc,
		Guard:     middleware.NewAuth(authSvc, logger),
		Limiter:   limiter,
		Places:    placeHandlers,
		Events:    eventHandlers,
		Uploads:   filemgr.NewHandler(cfg.Uploads, logger),
		Dashboard: &admin.DashboardHandler{Store: b.Store, Log: logger},
		Console:   console.NewServer(hub, b.Store, cfg.Server.AllowedOrigins, logger),
		UploadDir: cfg.Uploads.Dir,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := middleware.Recovery(logger, middleware.RequestLogger(logger, middleware.SecurityHeaders(corsHandler)))

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
	}
	server.RegisterOnShutdown(hub.Stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr), zap.String("store", cfg.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received; shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}
