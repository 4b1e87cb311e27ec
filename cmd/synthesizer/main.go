package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"

	"halfjourney/handler"
	"halfjourney/internal/assetstore"
	"halfjourney/internal/config"
	"halfjourney/internal/integrations/bedrock"
	"halfjourney/internal/integrations/discord"
	"halfjourney/internal/integrations/paramstore"
	"halfjourney/internal/integrations/stability"
	"halfjourney/internal/observability"
	"halfjourney/internal/repository"
	"halfjourney/internal/usecase"
)

const synthesisKeyParam = "/synthesis-api-key"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration", err)
	}
	if err := cfg.Require("TABLENAME", "BUCKET"); err != nil {
		fatal("invalid configuration", err)
	}
	if err := cfg.RequireSynthesisKey(); err != nil {
		fatal("invalid configuration", err)
	}
	mode, err := usecase.ParseFailureMode(cfg.FailureMode)
	if err != nil {
		fatal("invalid configuration", err)
	}
	if mode == usecase.FailureExplicit {
		if err := cfg.Require("APP_ID"); err != nil {
			fatal("invalid configuration", err)
		}
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	synth, err := newSynthesizer(cfg, awsCfg)
	if err != nil {
		fatal("failed to create synthesizer", err)
	}
	assets, err := assetstore.New(awss3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Region, assetstore.WithPublicBaseURL(cfg.PublicBaseURL))
	if err != nil {
		fatal("failed to create asset store", err)
	}
	requests, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.TableName)
	if err != nil {
		fatal("failed to create requests client", err)
	}

	// ---- Handler ----
	synthesis, err := usecase.NewSynthesisService(synth, assets, requests, mode, logger)
	if err != nil {
		fatal("failed to create synthesis service", err)
	}

	var notifier handler.FailureNotifier
	if mode == usecase.FailureExplicit {
		poster, err := discord.NewClient(cfg.AppID, discord.WithHTTPClient(&http.Client{Timeout: cfg.DeliveryTimeout}))
		if err != nil {
			fatal("failed to create webhook client", err)
		}
		notifier, err = usecase.NewFailureNotifyService(poster)
		if err != nil {
			fatal("failed to create failure notifier", err)
		}
	}

	reg := prometheus.NewRegistry()
	h, err := handler.NewStreamHandler(synthesis, notifier,
		handler.WithLogger(logger),
		handler.WithMetrics(observability.NewMetrics(cfg.MetricsNamespace, reg)),
		handler.WithMetricsLog(reg),
		handler.WithTimeout(cfg.SynthesisTimeout+cfg.DeliveryTimeout),
	)
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func newSynthesizer(cfg config.Config, awsCfg aws.Config) (usecase.Synthesizer, error) {
	if cfg.SynthesisProvider == config.ProviderBedrock {
		bedrockCfg := awsCfg.Copy()
		bedrockCfg.Region = cfg.BedrockRegion
		return bedrock.NewClient(bedrockruntime.NewFromConfig(bedrockCfg), cfg.BedrockModelID)
	}

	var key stability.KeySource = paramstore.StaticSecret(cfg.APIKey)
	if cfg.APIKey == "" {
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		key, err = paramstore.NewSecret(params, cfg.ParamPrefix+synthesisKeyParam)
		if err != nil {
			return nil, err
		}
	}
	return stability.NewClient(key,
		stability.WithEngine(cfg.SynthesisEngine),
		stability.WithHTTPClient(&http.Client{Timeout: cfg.SynthesisTimeout}),
	)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
