// Package main runs the local droidkey host: an HTTP server over the
// encrypted key store, the usage cache, and the droid workspace managers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"droidkey/config"
	"droidkey/internal/api"
	"droidkey/internal/engine"
	"droidkey/internal/store"
	"droidkey/internal/usage"
	"droidkey/internal/workspace"
	"droidkey/observability"
)

func main() {
	// Load environment variables; a missing .env file is fine
	_ = godotenv.Load()

	production := os.Getenv("DROIDKEY_ENV") == "production"
	observability.InitLogger(production)
	observability.InitMetrics()

	cfg, err := config.Load()
	if err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	st, err := store.New(cfg.Store.DataDir)
	if err != nil {
		observability.Fatal("failed to open key store", "error", err, "dir", cfg.Store.DataDir)
	}

	fetcher := usage.NewFetcher(cfg.Usage.Endpoint, cfg.Usage.UserAgent,
		time.Duration(cfg.Usage.TimeoutSeconds)*time.Second)
	cache := usage.NewManager(cfg.Store.DataDir, fetcher)
	eng := engine.New(st, cache)
	ws := workspace.NewManager(cfg.Workspace.Dir)

	handler := api.NewHandler(eng, ws, cfg)
	router := api.NewRouter(handler, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		observability.Info("starting droidkey host", "addr", addr, "data_dir", cfg.Store.DataDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down droidkey host...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Fatal("server forced to shutdown", "error", err)
	}

	observability.Info("droidkey host stopped")
}
