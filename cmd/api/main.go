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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"picrm/internal/app"
	"picrm/internal/config"
	"picrm/internal/email"
	"picrm/internal/promptrepo"
	"picrm/internal/render"
	"picrm/internal/search"
	"picrm/internal/session"
	"picrm/internal/store"
	"picrm/internal/textgen"
)

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir, logger); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	if err := os.MkdirAll(cfg.PromptsDir, 0o755); err != nil {
		logger.Fatal("create prompts dir", zap.Error(err))
	}

	dataStore := store.NewPostgresStore(db)
	engine := render.New()

	var primary search.Index
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
		primary = meiliClient
	}
	searchService := search.NewService(primary, search.NewPgFTS(db), logger)

	deps := app.Deps{
		Search:   searchService,
		Renderer: engine,
		Prompts:  promptrepo.New(cfg.PromptsDir),
		Logger:   logger,
		Mailer: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			AppURL:   cfg.AppURL,
		}, engine),
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
		deps.Locker = redisStore
		logger.Info("using redis for refresh sessions and locks")
	} else {
		logger.Info("using postgres for refresh sessions")
	}

	if cfg.GeminiAPIKey != "" {
		generator, err := textgen.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Fatal("text generation setup failed", zap.Error(err))
		}
		deps.Generator = generator
		logger.Info("text generation enabled", zap.String("model", generator.Model()))
	}

	service := app.New(cfg, dataStore, deps)
	go searchService.ReindexAllFromPG(ctx)

	stopReminders := make(chan struct{})
	if cfg.ReminderInterval > 0 {
		go runReminders(service, cfg.ReminderInterval, logger, stopReminders)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Pi-CRM API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	close(stopReminders)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	service.Wait()
}

func runReminders(service *app.Service, interval time.Duration, logger *zap.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			sent, err := service.SendDueReminders(ctx)
			cancel()
			if err != nil {
				logger.Warn("todo reminders failed", zap.Error(err))
				continue
			}
			if sent > 0 {
				logger.Info("todo reminders sent", zap.Int("digests", sent))
			}
		}
	}
}
