// Command devserver serves the interactions endpoint over plain HTTP so the
// bot can be exercised through a tunnel without deploying.
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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"halfjourney/handler"
	"halfjourney/internal/config"
	"halfjourney/internal/observability"
	"halfjourney/internal/repository"
	"halfjourney/internal/usecase"
	"halfjourney/internal/verify"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration", err)
	}
	if err := cfg.Require("PUBLIC_KEY", "TABLENAME"); err != nil {
		fatal("invalid configuration", err)
	}
	scheme, err := usecase.ParseRequestIDScheme(cfg.RequestIDScheme)
	if err != nil {
		fatal("invalid configuration", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(cfg.MetricsNamespace, reg)

	verifier, err := verify.New(cfg.PublicKey)
	if err != nil {
		fatal("failed to create verifier", err)
	}
	requests, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.TableName)
	if err != nil {
		fatal("failed to create requests client", err)
	}
	imagine, err := usecase.NewImagineService(requests, scheme)
	if err != nil {
		fatal("failed to create imagine service", err)
	}
	router := usecase.NewRouter()
	if err := router.Register(usecase.ImagineCommand, imagine); err != nil {
		fatal("failed to register command", err)
	}
	interactions, err := handler.NewInteractionHandler(verifier, router,
		handler.WithLogger(logger),
		handler.WithMetrics(metrics),
	)
	if err != nil {
		fatal("failed to create handler", err)
	}

	srv := &http.Server{
		Addr:              cfg.DevBindAddr,
		Handler:           newRouter(interactions, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dev server listening", "addr", cfg.DevBindAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("listen error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "err", err)
		_ = srv.Close()
	}
}

func newRouter(interactions http.Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", observability.Handler(gatherer))
	r.Post("/interactions", interactions.ServeHTTP)
	return r
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
