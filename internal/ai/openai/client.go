package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spigell/segcompare/internal/ai/retry"
	"github.com/spigell/segcompare/internal/logger"
	"go.uber.org/zap"
)

const (
	ProviderName       = "openai"
	defaultModel       = goopenai.GPT4
	defaultTemperature = float32(0.5)
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Temperature defaults to 0.5 when nil. Zero is a valid setting.
	Temperature *float32
	// MaxRetries is the total number of attempts per request.
	MaxRetries int
	// AttemptTimeout bounds each attempt. Zero leaves it to the caller's context.
	AttemptTimeout time.Duration
}

// Generator sends prompts to the OpenAI chat completions API.
type Generator struct {
	client         chatCompleter
	model          string
	temperature    float32
	maxRetries     int
	attemptTimeout time.Duration
	logger         *zap.Logger
}

func NewGenerator(cfg Config, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientConfig := goopenai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	temperature := defaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if temperature < 0 {
		return nil, fmt.Errorf("temperature must not be negative, got %v", temperature)
	}

	return &Generator{
		client:         goopenai.NewClientWithConfig(clientConfig),
		model:          model,
		temperature:    temperature,
		maxRetries:     cfg.MaxRetries,
		attemptTimeout: cfg.AttemptTimeout,
		logger:         logger.WithOracle(log, ProviderName, model),
	}, nil
}

// GenerateContent sends a system and a user message and returns the first choice.
func (g *Generator) GenerateContent(ctx context.Context, systemInstruction, message string) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("openai generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if systemInstruction = strings.TrimSpace(systemInstruction); systemInstruction != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: message,
	})

	req := goopenai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: requestTemperature(g.temperature),
	}

	policy := retry.Policy{
		Attempts:       g.maxRetries,
		AttemptTimeout: g.attemptTimeout,
		Logger:         g.logger,
	}

	return retry.Do(ctx, policy, classify, func(ctx context.Context) (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("create chat completion: %w", err)
		}
		return responseText(resp)
	})
}

// requestTemperature keeps an explicit zero on the wire; the request field is omitempty.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func responseText(resp goopenai.ChatCompletionResponse) (string, error) {
	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, nil
		}
	}
	return "", errors.New("openai api returned empty response")
}

func classify(err error) (time.Duration, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return 0, true
	}

	return 0, false
}

func classifyStatus(code int, message string) (time.Duration, bool) {
	switch {
	case code == http.StatusTooManyRequests:
		return retry.HintFromMessage(message), true
	case code >= http.StatusInternalServerError:
		return 0, true
	default:
		return 0, false
	}
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
