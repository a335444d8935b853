package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/config"
)

// ModelTransport sends one prompt to one named model. Implementations must
// report a missing model as KindModelUnavailable and throttling as KindRateLimited.
type ModelTransport interface {
	Name() string
	Generate(ctx context.Context, model string, prompt Prompt) (string, error)
}

type AIClient interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

type SleepFunc func(ctx context.Context, d time.Duration) error

type AIClientOptions struct {
	Models           []string
	MaxAttempts      int
	RateLimitBackoff time.Duration
	Sleep            SleepFunc
}

type aiClient struct {
	transport   ModelTransport
	models      []string
	maxAttempts int
	backoff     time.Duration
	sleep       SleepFunc
}

func NewAIClient(transport ModelTransport, opts AIClientOptions) AIClient {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &aiClient{
		transport:   transport,
		models:      opts.Models,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.RateLimitBackoff,
		sleep:       opts.Sleep,
	}
}

// Generate walks the candidate models in order. A missing model moves on to the
// next candidate, a rate limit is retried on the same model with a flat sleep,
// anything else aborts.
func (c *aiClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if len(c.models) == 0 {
		return "", apperrors.New(apperrors.KindConfiguration, "no AI models configured", nil)
	}

	var lastErr error
	for _, model := range c.models {
		for attempt := 1; attempt <= c.maxAttempts; attempt++ {
			log.Debug().Str("transport", c.transport.Name()).Str("model", model).Int("attempt", attempt).Msg("🤖 Calling AI model")

			text, err := c.transport.Generate(ctx, model, prompt)
			if err == nil {
				log.Info().Str("model", model).Int("chars", len(text)).Msg("📊 AI response received")
				return text, nil
			}
			lastErr = err

			if !apperrors.Retryable(err) {
				log.Error().Err(err).Str("model", model).Msg("❌ AI request failed")
				return "", err
			}

			if apperrors.IsKind(err, apperrors.KindRateLimited) {
				if attempt < c.maxAttempts {
					log.Warn().Str("model", model).Int("attempt", attempt).Dur("backoff", c.backoff).Msg("⏳ Rate limited, waiting before retry")
					if sleepErr := c.sleep(ctx, c.backoff); sleepErr != nil {
						return "", apperrors.New(apperrors.KindTransport,
							fmt.Sprintf("retry of model %s cancelled while rate limited", model), sleepErr)
					}
					continue
				}
				return "", apperrors.New(apperrors.KindRateLimited,
					fmt.Sprintf("model %s still rate limited after %d attempts", model, c.maxAttempts), err)
			}

			log.Warn().Str("model", model).Msg("⚠️ Model not available, trying next candidate")
			break
		}
	}

	return "", apperrors.New(apperrors.KindModelUnavailable,
		fmt.Sprintf("none of the %d candidate models is available", len(c.models)), lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewAIClientFromConfig builds the transport for the configured provider and
// wraps it in the fallback policy. A missing credential yields a configuration error.
func NewAIClientFromConfig(ctx context.Context, cfg config.AIConfig) (AIClient, error) {
	apiKey, err := cfg.Credential()
	if err != nil {
		return nil, err
	}

	var transport ModelTransport
	switch cfg.Provider {
	case config.ProviderGemini:
		transport, err = NewGeminiTransport(ctx, GeminiOptions{
			APIKey:      apiKey,
			Temperature: cfg.Temperature,
		})
	case config.ProviderGeminiREST:
		transport, err = NewGeminiRESTTransport(GeminiRESTOptions{
			Host:        cfg.GeminiAPIHost,
			APIKey:      apiKey,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	case config.ProviderOpenAI:
		transport, err = NewOpenAITransport(OpenAIOptions{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      apiKey,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, apperrors.Newf(apperrors.KindConfiguration, "unknown AI provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewAIClient(transport, AIClientOptions{
		Models:           cfg.Models,
		MaxAttempts:      cfg.MaxAttempts,
		RateLimitBackoff: cfg.RateLimitBackoff,
	}), nil
}
