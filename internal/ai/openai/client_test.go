package openai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spigell/segcompare/internal/ai/retry"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	requests  []goopenai.ChatCompletionRequest
	responses []goopenai.ChatCompletionResponse
	errs      []error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return goopenai.ChatCompletionResponse{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return goopenai.ChatCompletionResponse{}, errors.New("unexpected call")
}

func choice(text string) goopenai.ChatCompletionResponse {
	return goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{
			Message: goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: text},
		}},
	}
}

func skipSleep(t *testing.T) {
	t.Helper()

	original := retry.Sleep
	retry.Sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { retry.Sleep = original })
}

func TestGeneratorSendsSystemAndUserMessages(t *testing.T) {
	fake := &fakeCompleter{responses: []goopenai.ChatCompletionResponse{choice("  Status: Sufficient  ")}}
	g := &Generator{client: fake, model: "gpt-4", temperature: 0.5, maxRetries: 1, logger: zap.NewNop()}

	out, err := g.GenerateContent(context.Background(), "You are a document comparison expert.", "compare this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Status: Sufficient" {
		t.Fatalf("unexpected output %q", out)
	}

	req := fake.requests[0]
	if req.Model != "gpt-4" || req.Temperature != 0.5 {
		t.Fatalf("unexpected request settings: %+v", req)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != goopenai.ChatMessageRoleSystem || req.Messages[1].Content != "compare this" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
}

func TestGeneratorRetriesServerErrors(t *testing.T) {
	skipSleep(t)

	fake := &fakeCompleter{
		errs:      []error{&goopenai.APIError{HTTPStatusCode: http.StatusBadGateway, Message: "bad gateway"}},
		responses: []goopenai.ChatCompletionResponse{{}, choice("ok")},
	}
	g := &Generator{client: fake, model: "gpt-4", maxRetries: 3, logger: zap.NewNop()}

	out, err := g.GenerateContent(context.Background(), "", "msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" || len(fake.requests) != 2 {
		t.Fatalf("expected a retried success, got %q after %d calls", out, len(fake.requests))
	}
}

func TestGeneratorDoesNotRetryAuthErrors(t *testing.T) {
	skipSleep(t)

	fake := &fakeCompleter{
		errs: []error{&goopenai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "invalid api key"}},
	}
	g := &Generator{client: fake, model: "gpt-4", maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error")
	}
	if len(fake.requests) != 1 {
		t.Fatalf("expected a single call, got %d", len(fake.requests))
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(Config{APIKey: "  "}, nil); err == nil {
		t.Fatal("expected error for missing key")
	}

	g, err := NewGenerator(Config{APIKey: "sk-test"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Model() != goopenai.GPT4 {
		t.Fatalf("unexpected default model %q", g.Model())
	}
}

func TestNewGeneratorTemperature(t *testing.T) {
	zero := float32(0)
	negative := float32(-1)
	custom := float32(0.2)

	tests := []struct {
		name        string
		temperature *float32
		expect      float32
		wire        float32
		wantErr     bool
	}{
		{name: "unset uses default", temperature: nil, expect: 0.5, wire: 0.5},
		{name: "explicit zero is kept", temperature: &zero, expect: 0, wire: math.SmallestNonzeroFloat32},
		{name: "custom", temperature: &custom, expect: 0.2, wire: 0.2},
		{name: "negative is rejected", temperature: &negative, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGenerator(Config{APIKey: "sk-test", Temperature: tt.temperature, MaxRetries: 1}, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if g.temperature != tt.expect {
				t.Fatalf("expected temperature %v, got %v", tt.expect, g.temperature)
			}

			fake := &fakeCompleter{responses: []goopenai.ChatCompletionResponse{choice("ok")}}
			g.client = fake
			if _, err := g.GenerateContent(context.Background(), "", "msg"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := fake.requests[0].Temperature; got != tt.wire {
				t.Fatalf("expected request temperature %v, got %v", tt.wire, got)
			}
		})
	}
}

func TestGeneratorRetriesHungAttempt(t *testing.T) {
	skipSleep(t)

	calls := 0
	g := &Generator{
		client: completerFunc(func(ctx context.Context, _ goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
			calls++
			if calls == 1 {
				<-ctx.Done()
				return goopenai.ChatCompletionResponse{}, ctx.Err()
			}
			return choice("ok"), nil
		}),
		model:          "gpt-4",
		maxRetries:     2,
		attemptTimeout: 10 * time.Millisecond,
		logger:         zap.NewNop(),
	}

	out, err := g.GenerateContent(context.Background(), "", "msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" || calls != 2 {
		t.Fatalf("expected success on the second attempt, got %q after %d calls", out, calls)
	}
}

type completerFunc func(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)

func (f completerFunc) CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	return f(ctx, req)
}
