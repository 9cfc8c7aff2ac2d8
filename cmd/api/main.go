package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ARPaule28/omnichannel/internal/attachments"
	"github.com/ARPaule28/omnichannel/internal/auth"
	"github.com/ARPaule28/omnichannel/internal/calls"
	"github.com/ARPaule28/omnichannel/internal/commlog"
	"github.com/ARPaule28/omnichannel/internal/config"
	"github.com/ARPaule28/omnichannel/internal/directory"
	"github.com/ARPaule28/omnichannel/internal/httpapi"
	"github.com/ARPaule28/omnichannel/internal/mailbox"
	"github.com/ARPaule28/omnichannel/internal/mailer"
	"github.com/ARPaule28/omnichannel/internal/providerevents"
	"github.com/ARPaule28/omnichannel/internal/storage"
	"github.com/ARPaule28/omnichannel/internal/telephony"
	"github.com/ARPaule28/omnichannel/internal/timeline"
	"github.com/ARPaule28/omnichannel/pkg/logger"
	"github.com/ARPaule28/omnichannel/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	if err := storage.Migrate(rootCtx, db); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	store, err := attachments.NewStore(cfg.Attachments.Dir)
	if err != nil {
		log.Error("attachment store init failed", "err", err)
		os.Exit(1)
	}

	// Services
	users := directory.NewService(directory.NewPostgresRepo(db))
	messages := commlog.NewService(commlog.NewPostgresRepo(db), users)
	provider := telephony.NewTwilioProvider(cfg.Twilio)
	callSvc := calls.NewService(calls.NewPostgresRepo(db), users, provider)
	feed := timeline.NewService(messages, callSvc, users)
	events := providerevents.NewService(providerevents.NewPostgresRepo(db))

	seedCtx := logger.With(rootCtx, log)
	if err := storage.SeedDemoUsers(seedCtx, users, demoUsers()); err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}

	api := httpapi.Handlers{
		Auth:     authManager,
		Users:    users,
		Messages: messages,
		Calls:    callSvc,
		Timeline: feed,
		Mail:     mailer.NewSMTPSender(cfg.SMTP),
		Inbox:    mailbox.NewIMAPFetcher(cfg.IMAP),
		Attach:   store,
		SMS:      provider,
	}
	webhooks := telephony.NewWebhookHandlers(messages, callSvc, events, users, telephony.NewRedisDeduper(rdb))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, api, webhooks, auth.RequireAccessToken(authManager), db, rdb)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// demoUsers seeds two accounts on first boot against an empty database.
// Passwords come from the environment so nothing secret lives in the binary.
func demoUsers() []storage.DemoUser {
	p1 := os.Getenv("DEMO_USER1_PASSWORD")
	p2 := os.Getenv("DEMO_USER2_PASSWORD")
	if p1 == "" || p2 == "" {
		return nil
	}
	return []storage.DemoUser{
		{Username: "user1", Email: "user1@example.com", Phone: "+15550001111", Password: p1},
		{Username: "user2", Email: "user2@example.com", Phone: "+15550002222", Password: p2},
	}
}
