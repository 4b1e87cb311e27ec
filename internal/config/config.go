package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	ProviderStability = "stability"
	ProviderBedrock   = "bedrock"
)

// Config contains the runtime settings shared by every entrypoint. Each
// binary calls Require for the keys it actually needs.
type Config struct {
	AppID         string
	PublicKey     string
	TableName     string
	Bucket        string
	Region        string
	PublicBaseURL string

	APIKey      string
	ParamPrefix string

	SynthesisProvider string
	SynthesisEngine   string
	BedrockModelID    string
	BedrockRegion     string
	SynthesisTimeout  time.Duration
	DeliveryTimeout   time.Duration

	FailureMode     string
	RequestIDScheme string

	DevBindAddr      string
	MetricsNamespace string
}

func Load() (Config, error) {
	cfg := Config{
		AppID:         trimmedEnv("APP_ID"),
		PublicKey:     trimmedEnv("PUBLIC_KEY"),
		TableName:     trimmedEnv("TABLENAME"),
		Bucket:        trimmedEnv("BUCKET"),
		Region:        envOrDefault("AWS_REGION", "eu-north-1"),
		PublicBaseURL: trimmedEnv("PUBLIC_BASE_URL"),

		APIKey:      trimmedEnv("APIKEY"),
		ParamPrefix: trimmedEnv("PARAM_PREFIX"),

		SynthesisProvider: strings.ToLower(envOrDefault("SYNTHESIS_PROVIDER", ProviderStability)),
		SynthesisEngine:   envOrDefault("SYNTHESIS_ENGINE", "stable-diffusion-v1-5"),
		BedrockModelID:    envOrDefault("BEDROCK_MODEL_ID", "stability.stable-diffusion-xl-v0"),
		BedrockRegion:     envOrDefault("BEDROCK_REGION", "us-west-2"),
		SynthesisTimeout:  25 * time.Second,
		DeliveryTimeout:   10 * time.Second,

		FailureMode:     trimmedEnv("FAILURE_MODE"),
		RequestIDScheme: trimmedEnv("REQUEST_ID_SCHEME"),

		DevBindAddr:      envOrDefault("DEV_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("METRICS_NAMESPACE", "halfjourney"),
	}

	var err error
	cfg.SynthesisTimeout, err = durationFromEnv("SYNTHESIS_TIMEOUT", cfg.SynthesisTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.DeliveryTimeout, err = durationFromEnv("DELIVERY_TIMEOUT", cfg.DeliveryTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.SynthesisTimeout <= 0 {
		return Config{}, fmt.Errorf("SYNTHESIS_TIMEOUT must be positive")
	}
	if cfg.DeliveryTimeout <= 0 {
		return Config{}, fmt.Errorf("DELIVERY_TIMEOUT must be positive")
	}
	switch cfg.SynthesisProvider {
	case ProviderStability, ProviderBedrock:
	default:
		return Config{}, fmt.Errorf("SYNTHESIS_PROVIDER must be %q or %q, got %q", ProviderStability, ProviderBedrock, cfg.SynthesisProvider)
	}

	return cfg, nil
}

// Require reports the first of the named variables that is empty.
func (c Config) Require(keys ...string) error {
	values := c.byKey()
	for _, key := range keys {
		v, ok := values[key]
		if !ok {
			return fmt.Errorf("config: unknown key %q", key)
		}
		if v == "" {
			return fmt.Errorf("required environment variable %s is not set", key)
		}
	}
	return nil
}

// RequireSynthesisKey checks that the synthesis key has a source.
func (c Config) RequireSynthesisKey() error {
	if c.SynthesisProvider == ProviderBedrock || c.APIKey != "" || c.ParamPrefix != "" {
		return nil
	}
	return fmt.Errorf("one of APIKEY or PARAM_PREFIX must be set")
}

func (c Config) byKey() map[string]string {
	return map[string]string{
		"APP_ID":          c.AppID,
		"PUBLIC_KEY":      c.PublicKey,
		"TABLENAME":       c.TableName,
		"BUCKET":          c.Bucket,
		"AWS_REGION":      c.Region,
		"PUBLIC_BASE_URL": c.PublicBaseURL,
		"APIKEY":          c.APIKey,
		"PARAM_PREFIX":    c.ParamPrefix,
	}
}

func envOrDefault(key, fallback string) string {
	v := trimmedEnv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}
