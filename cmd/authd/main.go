package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/parcelpeer/authcore/internal/auth"
	"github.com/parcelpeer/authcore/internal/config"
	"github.com/parcelpeer/authcore/internal/obs"
	"github.com/parcelpeer/authcore/internal/repository/postgres"
	authsvc "github.com/parcelpeer/authcore/internal/services/auth"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := obs.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting authd", zap.String("env", string(cfg.Env)), zap.Int("port", cfg.Port))
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(rootCtx) }()

	db, err := postgres.Init(rootCtx, postgres.Config{DSN: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer postgres.CloseShared()

	tokenManager, err := auth.ManagerFromConfig(cfg)
	if err != nil {
		logger.Fatal("token manager", zap.Error(err))
	}
	sessions := auth.NewSessionStore()

	obs.RegisterPoolStats(db.Stats)
	obs.RegisterSessionCount(sessions.Len)

	transactor := postgres.NewTransactor(db, logger)
	users := postgres.NewUserRepo(db, transactor)
	usecase := authsvc.NewUsecase(users, tokenManager, sessions, logger)
	controller := authsvc.NewController(usecase, tokenManager, logger)

	httpSrv := buildHTTPServer(cfg, logger, db, controller)

	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", httpSrv.Addr))
		httpErrCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal")
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)
	logger.Info("bye")
}

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	closer, err := obs.SetupOTel(ctx, obs.OTELConfig{
		Enable:      endpoint != "",
		Endpoint:    endpoint,
		ServiceName: cfg.AppName,
		SampleRatio: 1.0,
	})
	if err != nil {
		return nil, err
	}
	return closer.Shutdown, nil
}
