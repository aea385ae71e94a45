package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/api"
	"github.com/yourusername/jejecipher/internal/auth"
	"github.com/yourusername/jejecipher/internal/config"
	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/history"
	"github.com/yourusername/jejecipher/internal/notify"
	"github.com/yourusername/jejecipher/internal/platform"
	"github.com/yourusername/jejecipher/internal/scheduler"
	"github.com/yourusername/jejecipher/internal/telegram"
	"github.com/yourusername/jejecipher/internal/transform"
	"github.com/yourusername/jejecipher/internal/webhook"
	"github.com/yourusername/jejecipher/internal/wizard"
	"github.com/yourusername/jejecipher/internal/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, live feed, Telegram bot and scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, logger)
}

func serve(ctx context.Context, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	log.Info("starting", zap.String("version", Version))

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Info("config", zap.String("port", cfg.Port), zap.String("work_dir", cfg.WorkDir))

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		log.Warn("no .env found, using built-in defaults; run 'jejecipher setup' before going to production")
	}

	// ── 2. Ensure work directory exists ─────────────────────────────────────
	for _, dir := range []string{cfg.WorkDir, filepath.Dir(cfg.DBPath)} {
		if err := platform.EnsureDir(dir); err != nil {
			return err
		}
	}

	// ── 3. Open database + migrate ───────────────────────────────────────────
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		return err
	}
	cfg.ApplyStored(func(key string) string { return database.GetSetting(key, "") })
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info("database ready", zap.String("path", cfg.DBPath))

	// ── 4. Seed default admin user ───────────────────────────────────────────
	if err := auth.SeedAdmin(ctx, database, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}

	// ── 5. WebSocket hub ─────────────────────────────────────────────────────
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	// ── 6. History, webhooks, notifications, transform service ──────────────
	store := history.New(database)
	webhookDispatcher := webhook.New(database, log)

	// The bot's command handler needs the service, which notifies through
	// the bot; it is attached once the service exists.
	bot, err := telegram.New(log, cfg.TelegramToken, cfg.TelegramChatID, nil)
	if err != nil {
		log.Warn("telegram init failed, continuing without Telegram", zap.Error(err))
	}
	notifier := notify.New(log, telegramSender(bot), webhookDispatcher)

	svc := transform.New(log, store, hub, notifier, transform.Options{
		MaxInputBytes: cfg.MaxInputBytes,
		Delay:         cfg.ResponseDelay(),
	})

	// ── 7. Telegram bot ──────────────────────────────────────────────────────
	if bot != nil {
		bot.SetHandler(telegram.NewCommandHandler(svc, store))
		go bot.Start(ctx)
		log.Info("telegram bot started", zap.String("bot", bot.Username()), zap.Int64("chat_id", cfg.TelegramChatID))
	}

	// ── 8. Cron scheduler ────────────────────────────────────────────────────
	schedEngine := scheduler.New(log, database, svc, store, hub, notifier, scheduler.Options{
		PruneCron: cfg.PruneCron,
		Retention: cfg.Retention(),
	})
	if err := schedEngine.Start(ctx); err != nil {
		return err
	}

	// ── 9. HTTP router ───────────────────────────────────────────────────────
	mux := http.NewServeMux()
	api.SetupRoutes(mux, &api.Deps{
		Log:       log,
		DB:        database,
		Config:    cfg,
		History:   store,
		Transform: svc,
		Hub:       hub,
		Notify:    notifier,
		Webhook:   webhookDispatcher,
		Scheduler: schedEngine,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.Middleware(log, mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── 10. Serve until signalled ────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", "http://0.0.0.0:"+cfg.Port))
		errCh <- srv.ListenAndServe()
	}()
	wizard.PrintDashboardURLs(os.Stdout, cfg.Port)
	database.WriteLog("info", "daemon", "started "+Version)

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
		cancelShutdown()
	}

	cancel()
	schedEngine.Wait()
	webhookDispatcher.Wait()
	database.WriteLog("info", "daemon", "stopped")
	log.Info("stopped")
	return serveErr
}

// telegramSender wraps *telegram.Bot to implement notify.Sender.
// Returns nil if bot is nil (Telegram disabled).
func telegramSender(bot *telegram.Bot) notify.Sender {
	if bot == nil {
		return nil
	}
	return bot
}
