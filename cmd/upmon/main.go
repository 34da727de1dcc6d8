package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"upmon/internal/config"
	"upmon/internal/monitor"
	"upmon/internal/notify"
	"upmon/internal/storage/sqlite"
	"upmon/internal/web"
)

func main() {
	// --- 1. Load Config ---
	cfgMgr, err := config.NewManager("config.json")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := cfgMgr.Get()

	// --- 2. Setup Logger ---
	setupLogger(cfg.System.LogLevel)
	slog.Info("starting upmon", "bind", cfg.System.BindAddress, "db", cfg.Database.Path)

	// --- 3. Open Storage ---
	ctx := context.Background()
	store, err := sqlite.New(ctx, cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// --- 4. Notification Transports ---
	var push notify.PushSender
	if tg := notify.NewTelegramSender(cfg.Telegram.BotToken); tg.Validate() == nil {
		push = tg
	} else {
		slog.Warn("telegram bot token not configured, push notifications disabled")
	}

	var email notify.EmailSender
	if sm := notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From); sm.Validate() == nil {
		email = sm
	} else {
		slog.Warn("smtp not configured, email notifications disabled")
	}

	alerter := notify.NewAlerter(store, push, email)

	// --- 5. Checker & Scheduler ---
	checker := monitor.NewChecker()
	scheduler := monitor.NewScheduler(store, checker, alerter,
		time.Duration(cfg.System.TickInterval)*time.Second,
		time.Duration(cfg.System.MinMonitorInterval)*time.Second,
		cfg.System.MaxConcurrentChecks)
	scheduler.Start()

	// --- 6. Operational HTTP Server ---
	srv := &http.Server{
		Addr:    cfg.System.BindAddress,
		Handler: web.NewRouter(cfg, store),
	}
	go func() {
		slog.Info("upmon is running", "address", cfg.System.BindAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// --- 7. Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received shutdown signal", "signal", sig)

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}

	slog.Info("upmon stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}
