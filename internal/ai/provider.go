package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/segcompare/internal/ai/gemini"
	"github.com/spigell/segcompare/internal/ai/openai"
	"github.com/spigell/segcompare/internal/secrets"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries     = 3
	defaultAttemptTimeout = 30 * time.Second
)

// GeminiOptions are the provider options accepted under oracle.options for gemini.
type GeminiOptions struct {
	APIKey         string        `mapstructure:"api-key"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	Model          string        `mapstructure:"model"`
	MaxRetries     int           `mapstructure:"max-retries"`
	AttemptTimeout time.Duration `mapstructure:"attempt-timeout"`
}

// OpenAIOptions are the provider options accepted under oracle.options for openai.
type OpenAIOptions struct {
	APIKey         string        `mapstructure:"api-key"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	Model          string        `mapstructure:"model"`
	BaseURL        string        `mapstructure:"base-url"`
	Temperature    *float32      `mapstructure:"temperature"`
	MaxRetries     int           `mapstructure:"max-retries"`
	AttemptTimeout time.Duration `mapstructure:"attempt-timeout"`
}

// NewGenerator builds the generator of the named provider. An empty name selects gemini.
func NewGenerator(ctx context.Context, provider string, options map[string]any, logger *zap.Logger) (Generator, error) {
	switch strings.TrimSpace(strings.ToLower(provider)) {
	case "", gemini.ProviderName:
		opts := GeminiOptions{MaxRetries: defaultMaxRetries, AttemptTimeout: defaultAttemptTimeout}
		if err := DecodeOptions(options, &opts); err != nil {
			return nil, fmt.Errorf("gemini options: %w", err)
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: opts.APIKey,
			File:  opts.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set oracle.options.api-key-file or GEMINI_API_KEY)", err)
		}

		generator, err := gemini.NewGenerator(ctx, gemini.Config{
			APIKey:         apiKey,
			Model:          opts.Model,
			MaxRetries:     opts.MaxRetries,
			AttemptTimeout: opts.AttemptTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return generator, nil
	case openai.ProviderName:
		opts := OpenAIOptions{MaxRetries: defaultMaxRetries, AttemptTimeout: defaultAttemptTimeout}
		if err := DecodeOptions(options, &opts); err != nil {
			return nil, fmt.Errorf("openai options: %w", err)
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: opts.APIKey,
			File:  opts.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set oracle.options.api-key-file or OPENAI_API_KEY)", err)
		}

		generator, err := openai.NewGenerator(openai.Config{
			APIKey:         apiKey,
			BaseURL:        opts.BaseURL,
			Model:          opts.Model,
			Temperature:    opts.Temperature,
			MaxRetries:     opts.MaxRetries,
			AttemptTimeout: opts.AttemptTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return generator, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", provider)
	}
}

// DecodeOptions decodes a loosely typed options map into target, rejecting unknown keys.
func DecodeOptions(options map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}

	if options == nil {
		return nil
	}

	return decoder.Decode(options)
}
