package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmuslimabdulj/goat-dm/internal/auth"
	"github.com/mmuslimabdulj/goat-dm/internal/config"
	httpHandler "github.com/mmuslimabdulj/goat-dm/internal/delivery/http"
	"github.com/mmuslimabdulj/goat-dm/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-dm/internal/logging"
	"github.com/mmuslimabdulj/goat-dm/internal/middleware"
	"github.com/mmuslimabdulj/goat-dm/internal/store"
	"github.com/mmuslimabdulj/goat-dm/internal/translate"
	"github.com/mmuslimabdulj/goat-dm/internal/usecase"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()

	cfg := config.LoadFromEnv()
	log := logging.New(cfg.LogLevel, os.Stderr)

	secret, generated, err := auth.ResolveSecret(cfg.SessionSecret)
	if err != nil {
		log.Error("invalid SESSION_SECRET", "err", err)
		os.Exit(1)
	}
	if generated {
		log.Warn("SESSION_SECRET not set, using a random secret; sessions end on restart")
	}
	cfg.SessionSecret = secret

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	translator, closeTranslator, err := translate.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to set up translation", "provider", cfg.TranslateProvider, "err", err)
		_ = st.Close(context.Background())
		os.Exit(1)
	}

	// Initialize dependencies
	registry := ws.NewRegistry(log)
	registryDone := make(chan struct{})
	go func() {
		registry.Run(ctx)
		close(registryDone)
	}()

	secure := strings.HasPrefix(firstOrigin(cfg.AllowedOrigins), "https://")
	svc := httpHandler.Services{
		Sessions:  auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL, secure),
		Accounts:  usecase.NewAccounts(st, log),
		Contacts:  usecase.NewContacts(st, registry),
		Messenger: usecase.NewMessenger(st, translator, registry, cfg.TranslateTarget, cfg.TranslateTimeout, log),
		Registry:  registry,
	}
	handler := httpHandler.NewHandler(ctx, cfg, svc, log)
	router := httpHandler.NewRouter(handler, middleware.NewLimiters(ctx, cfg), log)

	// Create server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("dm chat running", "addr", "http://localhost:"+cfg.Port,
			"store", cfg.StoreDriver, "translate", cfg.TranslateProvider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-serverErr:
		log.Error("server error", "err", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "err", err)
	}
	<-registryDone

	if err := closeTranslator(); err != nil {
		log.Warn("failed to close translator", "err", err)
	}
	if err := st.Close(shutdownCtx); err != nil {
		log.Warn("failed to close store", "err", err)
	}

	log.Info("server exited gracefully")
}

func firstOrigin(origins []string) string {
	if len(origins) == 0 {
		return ""
	}
	return origins[0]
}
