package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/segcompare/internal/ai/retry"
	"github.com/spigell/segcompare/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	ProviderName = "gemini"
	defaultModel = "gemini-2.5-pro"
	temperature  = float32(0.5)
)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

type Config struct {
	APIKey string
	Model  string
	// MaxRetries is the total number of attempts per request.
	MaxRetries int
	// AttemptTimeout bounds each attempt. Zero leaves it to the caller's context.
	AttemptTimeout time.Duration
}

// Generator wraps the Google GenAI chats API to provide prompt-based interactions.
type Generator struct {
	chats          chatCreator
	model          string
	maxRetries     int
	attemptTimeout time.Duration
	logger         *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return &Generator{
		chats:          genaiChats{chats: client.Chats},
		model:          model,
		maxRetries:     cfg.MaxRetries,
		attemptTimeout: cfg.AttemptTimeout,
		logger:         logger.WithOracle(log, ProviderName, model),
	}, nil
}

// GenerateContent sends message with the given system instruction and returns the textual answer.
// Transient API failures are retried with exponential backoff.
func (g *Generator) GenerateContent(ctx context.Context, systemInstruction, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	policy := retry.Policy{
		Attempts:       g.maxRetries,
		AttemptTimeout: g.attemptTimeout,
		Logger:         g.logger,
	}

	return retry.Do(ctx, policy, classify, func(ctx context.Context) (string, error) {
		return g.send(ctx, systemInstruction, message)
	})
}

func (g *Generator) send(ctx context.Context, systemInstruction, message string) (string, error) {
	temp := temperature
	config := &genai.GenerateContentConfig{Temperature: &temp}
	if systemInstruction = strings.TrimSpace(systemInstruction); systemInstruction != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}

	chat, err := g.chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// classify treats rate limits, server errors and network failures as transient.
func classify(err error) (time.Duration, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyAPIError(*apiErrPtr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return 0, true
	}

	return 0, false
}

func classifyAPIError(apiErr genai.APIError) (time.Duration, bool) {
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return retryHint(apiErr), true
	case apiErr.Code >= http.StatusInternalServerError:
		return 0, true
	default:
		return 0, false
	}
}

// retryHint reads the RetryInfo detail when present, falling back to the message text.
func retryHint(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return retry.HintFromMessage(apiErr.Message)
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
