package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"

	"halfjourney/handler"
	"halfjourney/internal/config"
	"halfjourney/internal/observability"
	"halfjourney/internal/repository"
	"halfjourney/internal/usecase"
	"halfjourney/internal/verify"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
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

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	verifier, err := verify.New(cfg.PublicKey)
	if err != nil {
		fatal("failed to create verifier", err)
	}
	requests, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.TableName)
	if err != nil {
		fatal("failed to create requests client", err)
	}

	// ---- Handler ----
	imagine, err := usecase.NewImagineService(requests, scheme)
	if err != nil {
		fatal("failed to create imagine service", err)
	}
	router := usecase.NewRouter()
	if err := router.Register(usecase.ImagineCommand, imagine); err != nil {
		fatal("failed to register command", err)
	}

	reg := prometheus.NewRegistry()
	h, err := handler.NewInteractionHandler(verifier, router,
		handler.WithLogger(logger),
		handler.WithMetrics(observability.NewMetrics(cfg.MetricsNamespace, reg)),
		handler.WithMetricsLog(reg),
	)
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
