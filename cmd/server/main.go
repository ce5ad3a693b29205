package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/notifyhub/internal/api"
	"github.com/gyaneshwarpardhi/notifyhub/internal/bus"
	"github.com/gyaneshwarpardhi/notifyhub/internal/config"
	"github.com/gyaneshwarpardhi/notifyhub/internal/engine"
	"github.com/gyaneshwarpardhi/notifyhub/internal/notification"
	"github.com/gyaneshwarpardhi/notifyhub/internal/store"
	"github.com/gyaneshwarpardhi/notifyhub/internal/subscription"
)

const severityCacheTTL = 30 * time.Second

func main() {
	cfgPath := flag.String("config", "configs/notifyhub.yaml", "Path to YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Config().Seed(ctx, cfg.Severities, cfg.EventTypes); err != nil {
		slog.Error("failed to seed configuration tables", "err", err)
		os.Exit(1)
	}
	slog.Info("database ready", "path", cfg.DBPath,
		"severities", len(cfg.Severities), "event_types", len(cfg.EventTypes))

	// ── Message bus ──────────────────────────────────────────────────────────
	b, err := bus.Connect(cfg.NATSURL)
	if err != nil {
		slog.Error("failed to connect to nats", "url", cfg.NATSURL, "err", err)
		os.Exit(1)
	}
	defer b.Close()

	// ── Engine ────────────────────────────────────────────────────────────────
	severities := config.NewSeverityCache(st.Config(), severityCacheTTL)
	defer severities.Stop()

	eng := engine.New(ctx,
		subscription.NewIndex(st.Subscriptions()),
		notification.NewMaterializer(st.Notifications(), severities, cfg.RoutePrefix),
		b, cfg.Engine)

	eventSub, err := b.SubscribeEvents(eng.HandleMessage)
	if err != nil {
		slog.Error("failed to subscribe to events", "err", err)
		os.Exit(1)
	}
	slog.Info("consuming events", "subject", bus.SubjectEvents)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		if err := st.Config().Seed(context.Background(), newCfg.Severities, newCfg.EventTypes); err != nil {
			slog.Warn("hot-reload skipped: config table seed failed", "err", err)
			return
		}
		severities.Invalidate()
		slog.Info("configuration hot-reloaded",
			"severities", len(newCfg.Severities), "event_types", len(newCfg.EventTypes))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     api.New(st, eng, loader, b),
		ReadTimeout: 10 * time.Second,
		// No write timeout: websocket streams stay open indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	// Stop intake first so the queue can drain.
	_ = eventSub.Drain()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	eng.Shutdown() // drain queued events before the workers' context dies
	cancel()
	slog.Info("goodbye")
}
