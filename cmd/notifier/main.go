package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"

	"halfjourney/handler"
	"halfjourney/internal/assetstore"
	"halfjourney/internal/config"
	"halfjourney/internal/integrations/discord"
	"halfjourney/internal/observability"
	"halfjourney/internal/usecase"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration", err)
	}
	if err := cfg.Require("BUCKET", "APP_ID"); err != nil {
		fatal("invalid configuration", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	assets, err := assetstore.New(awss3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Region, assetstore.WithPublicBaseURL(cfg.PublicBaseURL))
	if err != nil {
		fatal("failed to create asset store", err)
	}
	poster, err := discord.NewClient(cfg.AppID, discord.WithHTTPClient(&http.Client{Timeout: cfg.DeliveryTimeout}))
	if err != nil {
		fatal("failed to create webhook client", err)
	}
	delivery, err := usecase.NewDeliveryService(assets, poster)
	if err != nil {
		fatal("failed to create delivery service", err)
	}

	reg := prometheus.NewRegistry()
	h, err := handler.NewDeliveryHandler(delivery,
		handler.WithLogger(logger),
		handler.WithTimeout(cfg.DeliveryTimeout),
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
