package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"docx2pdf/internal/app"
	"docx2pdf/internal/handlers"
	"docx2pdf/internal/store"
	u "docx2pdf/internal/utils"
)

func runServe(cfg u.Config) error {
	conv, err := newConverter(cfg.Converter)
	if err != nil {
		return err
	}
	if err := conv.Check(); err != nil {
		u.Warn("Converter not available on this host", "backend", conv.Backend(), "error", err)
	} else {
		u.Info("Converter ready", "backend", conv.Backend())
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Cache.RedisHost,
		DB:   cfg.Cache.PDFCacheDB,
	})
	defer rdb.Close()

	idleConnsClosed := make(chan struct{})
	tokens := store.NewTokens()
	history, closeDB := openControlPlane(context.Background(), cfg, tokens, idleConnsClosed)
	defer closeDB()

	svc := handlers.NewConvertService(cfg, rdb, conv, history)
	fiberApp := app.SetupApp(cfg, app.Deps{Service: svc, Tokens: tokens})

	startServer(fiberApp, cfg, idleConnsClosed)
	<-idleConnsClosed
	return nil
}

// openControlPlane loads API tokens and prepares the history table. Without
// Postgres settings API keys are refused and history stays off.
func openControlPlane(ctx context.Context, cfg u.Config, tokens *store.Tokens, stop <-chan struct{}) (handlers.HistoryStore, func()) {
	if !cfg.Auth.Postgres.Enabled() {
		tokens.Replace(nil)
		if cfg.History.Enabled {
			u.Warn("Conversion history needs auth.postgres, history disabled")
		}
		return nil, func() {}
	}

	dbm := store.NewDB()
	db, err := dbm.Open(ctx, cfg.Auth.Postgres)
	if db == nil {
		u.Error("Invalid Postgres settings", "error", err)
		tokens.Replace(nil)
		return nil, func() {}
	}
	if err != nil {
		u.Error("Postgres not reachable, retrying in the background", "error", err)
	}

	if err := tokens.Refresh(ctx, db); err != nil {
		u.Error("Failed to load API tokens", "error", err)
	}
	go tokens.RefreshPeriodically(db, cfg.Auth.ReloadInterval, stop)

	var history handlers.HistoryStore
	if cfg.History.Enabled {
		h := store.NewHistory(db)
		if err := h.EnsureSchema(ctx); err != nil {
			u.Error("Failed to prepare conversion history", "error", err)
		}
		history = h
	}
	return history, func() { _ = dbm.Close() }
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg u.Config, idleConnsClosed chan struct{}) {
	go func() {
		u.Info("Listening", "addr", cfg.Server.Host+cfg.Server.Port)
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)
	<-sigint

	u.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}
