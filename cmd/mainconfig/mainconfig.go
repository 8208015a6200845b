package mainconfig

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/appointment-assistant/internal/assistant"
	appconfig "github.com/wolfman30/appointment-assistant/internal/config"
	"github.com/wolfman30/appointment-assistant/internal/dialogue"
	"github.com/wolfman30/appointment-assistant/pkg/logging"
)

// Provider names accepted by LLM_PROVIDER and LLM_FALLBACK_PROVIDER.
const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				if service == bedrockruntime.ServiceID {
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			},
		)
	}

	return awsCfg, nil
}

// NewLLMClient builds the configured provider, wrapped with the fallback
// provider when one is set. The returned closer releases provider clients.
func NewLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (assistant.LLMClient, func(), error) {
	primary, closePrimary, err := newProvider(ctx, cfg, cfg.LLMProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("primary llm provider: %w", err)
	}
	if cfg.LLMFallbackProvider == "" || cfg.LLMFallbackProvider == cfg.LLMProvider {
		return primary, closePrimary, nil
	}

	fallback, closeFallback, err := newProvider(ctx, cfg, cfg.LLMFallbackProvider)
	if err != nil {
		logger.Warn("fallback llm provider unavailable, continuing without it",
			"provider", cfg.LLMFallbackProvider,
			"error", err,
		)
		return primary, closePrimary, nil
	}
	closeBoth := func() {
		closePrimary()
		closeFallback()
	}
	return assistant.NewFallbackLLMClient(primary, fallback, logger), closeBoth, nil
}

func newProvider(ctx context.Context, cfg *appconfig.Config, name string) (assistant.LLMClient, func(), error) {
	noop := func() {}
	switch name {
	case ProviderOpenAI:
		client, err := assistant.NewOpenAIClientFromKey(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return assistant.NewOpenAILLMClient(client, cfg.OpenAIModel), noop, nil
	case ProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, nil, fmt.Errorf("BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		return assistant.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), noop, nil
	case ProviderGemini:
		client, err := assistant.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", name)
	}
}

// NewTrackerStore returns the Redis-backed store, or the in-memory one when
// USE_MEMORY_STORE is set. The Redis client is returned for health checks.
func NewTrackerStore(cfg *appconfig.Config) (dialogue.TrackerStore, *redis.Client) {
	if cfg.UseMemoryStore {
		return dialogue.NewMemoryTrackerStore(), nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	return dialogue.NewRedisTrackerStore(client, cfg.SessionTTL, nil), client
}
