package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"cmms-backend/internal/api"
	"cmms-backend/internal/auth"
	"cmms-backend/internal/machines"
	"cmms-backend/internal/notification"
	"cmms-backend/internal/prefs"
	"cmms-backend/internal/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := log.New(os.Stdout, "cmms-backend ", log.LstdFlags)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	cfg := a.cfg

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Println("VAPID keys are not configured; push delivery is disabled")
	}

	sessions := session.NewController(a.store, a.users, session.Options{
		MaxActive: cfg.Session.MaxActive,
		Duration:  cfg.Session.Duration,
		AdminUser: cfg.Session.AdminUser,
	})
	go session.NewSweeper(sessions, cfg.Session.SweepInterval).Run(ctx)

	subs := notification.NewSubscriptions(a.store)
	notes := notification.NewLog(a.store, cfg.Notifications.MaxKept)
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, subs, a.users, &webpushOptions)
	workerPool.Start(ctx)
	notes.SetDispatcher(workerPool.Dispatch)

	history := prefs.NewHistory(a.store, cfg.Prefs.HistorySize)
	router := api.NewRouter(api.Deps{
		Users:         a.users,
		Tokens:        auth.NewTokens(cfg.Server.TokenSecret, time.Duration(cfg.Server.TokenTTLHours)*time.Hour),
		Sessions:      sessions,
		Machines:      machines.NewService(a.registry, a.sync, notes, history),
		Sync:          a.sync,
		Notifications: notes,
		Subscriptions: subs,
		Favorites:     prefs.NewFavorites(a.store, cfg.Prefs.FavoritesPerUser),
		History:       history,
		WebPush:       &webpushOptions,
	}, api.RouterOptions{
		RateLimit: rate.Limit(cfg.Server.RateLimitPerSec),
		Burst:     cfg.Server.RateLimitBurst,
		CacheTTL:  time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	logger.Println("Server gracefully stopped")
	return nil
}
