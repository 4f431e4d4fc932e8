package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/parcelpeer/authcore/internal/config"
	"github.com/parcelpeer/authcore/internal/httpmw"
	"github.com/parcelpeer/authcore/internal/obs"
	"github.com/parcelpeer/authcore/internal/repository/postgres"
	authsvc "github.com/parcelpeer/authcore/internal/services/auth"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *postgres.DB, controller *authsvc.Controller) *http.Server {
	mux := http.NewServeMux()
	controller.Register(mux)

	mux.Handle("/metrics", obs.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		hctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := db.Ping(hctx); err != nil {
			logger.Warn("healthz: db unreachable", zap.Error(err))
			http.Error(w, "unhealthy: db", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	handler = httpmw.NoCache(handler)
	handler = httpmw.CORS(cfg)(handler)
	handler = httpmw.SecurityHeaders(cfg)(handler)
	handler = httpmw.StripServerHeaders(handler)
	handler = otelhttp.NewHandler(handler, "authd")

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
