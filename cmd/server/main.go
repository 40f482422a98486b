package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/database"
	"github.com/skyhub/auth-service/internal/handler"
	"github.com/skyhub/auth-service/internal/logger"
	"github.com/skyhub/auth-service/internal/mail"
	"github.com/skyhub/auth-service/internal/metrics"
	"github.com/skyhub/auth-service/internal/middleware"
	"github.com/skyhub/auth-service/internal/queue"
	"github.com/skyhub/auth-service/internal/repository"
	"github.com/skyhub/auth-service/internal/router"
	"github.com/skyhub/auth-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(config.LogConfig{}).WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("connect mysql")
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.WithError(err).Fatal("ensure schema")
	}

	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("connect redis")
	}
	defer rdb.Close()

	users := repository.NewUserRepo(db, cfg.Auth.BcryptCost)
	codesStore := repository.NewRedisCredentialStore(rdb)

	publisher := queue.NewPublisher(cfg.AMQP, log)
	defer publisher.Close()

	m := metrics.New()

	tokens := service.NewTokenService(cfg.Auth)
	codes := service.NewVerificationService(cfg.Verification, codesStore, users, publisher, log).WithMetrics(m)
	auth := service.NewAuthService(users, tokens, codes, publisher, log).WithMetrics(m)

	renderer, err := mail.NewRenderer(cfg.Mail)
	if err != nil {
		log.WithError(err).Fatal("load mail templates")
	}
	consumer := queue.NewConsumer(cfg.AMQP, mail.NewSMTPSender(cfg.Mail, renderer, log), log).WithMetrics(m)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil {
			log.WithError(err).Error("email consumer stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	guard := middleware.NewGuardDeps(tokens, users, cfg.Auth, log)
	guard.Metrics = m
	router.Register(e, router.Deps{
		Auth:    handler.NewAuthHandler(auth, codes),
		Guard:   guard,
		Limit:   middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		Metrics: echo.WrapHandler(m.Handler()),
		Health: handler.Health(map[string]handler.Pinger{
			"mysql": db.PingContext,
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
	})

	go func() {
		addr := ":" + cfg.Port
		log.WithField("addr", addr).WithField("env", cfg.Env).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	<-consumerDone
}
